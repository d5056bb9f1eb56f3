package plex_test

import (
	"go/scanner"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jensenwirth/p4/internal/plex"
	"github.com/jensenwirth/p4/internal/ptoken"
)

func scanAll(t *testing.T, src string) ([]plex.Token, *scanner.ErrorList) {
	t.Helper()
	fset := token.NewFileSet()
	file := fset.AddFile("test.pas", -1, len(src))
	var errs scanner.ErrorList
	lx := plex.New(file, []byte(src), &errs, plex.DefaultOptions())

	var toks []plex.Token
	for {
		tok := lx.Scan()
		toks = append(toks, tok)
		if tok.Kind == ptoken.EOF {
			break
		}
	}
	return toks, &errs
}

func kinds(toks []plex.Token) []ptoken.Token {
	out := make([]ptoken.Token, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	toks, errs := scanAll(t, "PROGRAM Hello; VAR x: integer;")
	require.Empty(t, errs.Errors())
	assert.Equal(t, []ptoken.Token{
		ptoken.PROGRAM, ptoken.IDENT, ptoken.SEMI, ptoken.VAR, ptoken.IDENT,
		ptoken.COLON, ptoken.IDENT, ptoken.SEMI, ptoken.EOF,
	}, kinds(toks))
	assert.Equal(t, "hello", toks[1].Lit)
}

func TestScanIdentifierFoldsAndTruncates(t *testing.T) {
	toks, _ := scanAll(t, "VeryLongIdentifierName")
	assert.Equal(t, "verylong", toks[0].Lit)
}

func TestScanIntegerAndRealLiterals(t *testing.T) {
	toks, errs := scanAll(t, "42 3.14 6.02e23 1e-3")
	require.Empty(t, errs.Errors())
	require.Equal(t, ptoken.INTCONST, toks[0].Kind)
	assert.Equal(t, int64(42), toks[0].Int)
	require.Equal(t, ptoken.REALCONST, toks[1].Kind)
	assert.InDelta(t, 3.14, toks[1].Real, 1e-9)
	require.Equal(t, ptoken.REALCONST, toks[2].Kind)
	assert.InDelta(t, 6.02e23, toks[2].Real, 1e15)
	require.Equal(t, ptoken.REALCONST, toks[3].Kind)
	assert.InDelta(t, 1e-3, toks[3].Real, 1e-12)
}

func TestScanSubrangeDotDotNotConfusedWithReal(t *testing.T) {
	toks, errs := scanAll(t, "1..10")
	require.Empty(t, errs.Errors())
	assert.Equal(t, []ptoken.Token{ptoken.INTCONST, ptoken.DOTDOT, ptoken.INTCONST, ptoken.EOF}, kinds(toks))
}

func TestScanStringLiteralWithDoubledQuote(t *testing.T) {
	toks, errs := scanAll(t, "'it''s here'")
	require.Empty(t, errs.Errors())
	require.Equal(t, ptoken.STRINGCONST, toks[0].Kind)
	assert.Equal(t, "it's here", toks[0].Lit)
}

func TestScanOperatorsAndPunctuation(t *testing.T) {
	toks, errs := scanAll(t, ":= <> <= >= .. ^ @")
	require.Empty(t, errs.Errors())
	assert.Equal(t, []ptoken.Token{
		ptoken.ASSIGN, ptoken.NEQ, ptoken.LE, ptoken.GE, ptoken.DOTDOT,
		ptoken.CARET, ptoken.AT, ptoken.EOF,
	}, kinds(toks))
}

func TestScanParenStarComment(t *testing.T) {
	toks, errs := scanAll(t, "begin (* a comment *) end")
	require.Empty(t, errs.Errors())
	assert.Equal(t, []ptoken.Token{ptoken.BEGIN, ptoken.END, ptoken.EOF}, kinds(toks))
}

func TestScanCompilerOptionCommentTogglesOptions(t *testing.T) {
	fset := token.NewFileSet()
	src := "(*$l-,d-*) begin end"
	file := fset.AddFile("test.pas", -1, len(src))
	var errs scanner.ErrorList
	opts := plex.DefaultOptions()
	lx := plex.New(file, []byte(src), &errs, opts)

	for {
		tok := lx.Scan()
		if tok.Kind == ptoken.EOF {
			break
		}
	}
	assert.False(t, opts.ListSource)
	assert.False(t, opts.EmitRuntimeChecks)
	assert.True(t, opts.EmitCode)
}

func TestScanIllegalCharacterIsNonFatal(t *testing.T) {
	toks, errs := scanAll(t, "begin ? end")
	require.NotEmpty(t, errs.Errors())
	assert.Equal(t, []ptoken.Token{ptoken.BEGIN, ptoken.ILLEGAL, ptoken.END, ptoken.EOF}, kinds(toks))
}

func TestScanOverlongStringWarnsButKeepsValue(t *testing.T) {
	toks, errs := scanAll(t, "'this string literal is far too long'")
	require.NotEmpty(t, errs.Errors())
	assert.Equal(t, "this string literal is far too long", toks[0].Lit)
}
