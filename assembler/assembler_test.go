package assembler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jensenwirth/p4/assembler"
	"github.com/jensenwirth/p4/internal/pcode"
)

func TestAssembleLodAndArithmetic(t *testing.T) {
	src := "lodi 0 1\nlodi 0 2\nadi\nq\n"
	_, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Instr{Op: pcode.Lod, P: 0, Q: 1}, code.At(0))
	assert.Equal(t, pcode.Instr{Op: pcode.Lod, P: 0, Q: 2}, code.At(1))
	assert.Equal(t, pcode.Instr{Op: pcode.Adi}, code.At(2))
}

func TestAssembleForwardLabelReference(t *testing.T) {
	src := "ujp l1\nadi\nl1\nstp\nq\n"
	_, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Instr{Op: pcode.Ujp, Q: 2}, code.At(0))
	assert.Equal(t, pcode.Instr{Op: pcode.Stp}, code.At(2))
}

func TestAssembleBackwardLabelReference(t *testing.T) {
	src := "l1\nlodi 0 1\nfjp l1\nstp\nq\n"
	_, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Instr{Op: pcode.Fjp, Q: 0}, code.At(1))
}

func TestAssembleDuplicateLabelErrors(t *testing.T) {
	src := "l1\nl1\nq\n"
	_, _, err := assembler.Assemble(src)
	require.Error(t, err)
	var ae *assembler.AssembleError
	assert.ErrorAs(t, err, &ae)
}

func TestAssembleEntUsesLabelEquate(t *testing.T) {
	src := "ent 1 l10\nl10=4\nretp\nq\n"
	_, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Instr{Op: pcode.Ent, P: 1, Q: 4}, code.At(0))
	assert.Equal(t, pcode.Instr{Op: pcode.Ret, P: 0}, code.At(1))
}

func TestAssembleCompareTypedOperand(t *testing.T) {
	src := "equi\nequr\nequm 3\nq\n"
	_, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Instr{Op: pcode.Equ, P: int8(pcode.TypeInt)}, code.At(0))
	assert.Equal(t, pcode.Instr{Op: pcode.Equ, P: int8(pcode.TypeReal)}, code.At(1))
	assert.Equal(t, pcode.Instr{Op: pcode.Equ, P: int8(pcode.TypeMulti), Q: 3}, code.At(2))
}

func TestAssembleLdcSmallIntIsImmediate(t *testing.T) {
	src := "ldci 42\nq\n"
	store, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 42}, code.At(0))
	assert.Equal(t, 0, store.IntPoolLen())
}

func TestAssembleLdcLargeIntGoesToPool(t *testing.T) {
	src := "ldci 100000\nq\n"
	store, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Lci, code.At(0).Op)
	assert.Equal(t, int8(pcode.TypeInt), code.At(0).P)
	assert.Equal(t, int64(100000), store.Int(int(code.At(0).Q)))
}

func TestAssembleLdcRealIsPooledAndDeduped(t *testing.T) {
	src := "ldcr 3.5\nldcr 3.5\nq\n"
	store, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Lci, code.At(0).Op)
	assert.Equal(t, code.At(0).Q, code.At(1).Q)
	assert.Equal(t, 1, store.RealPoolLen())
	assert.Equal(t, 3.5, store.Real(int(code.At(0).Q)))
}

func TestAssembleLdcBoolAndChar(t *testing.T) {
	src := "ldcb 1\nldcc 'x'\nq\n"
	_, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeBool), Q: 1}, code.At(0))
	assert.Equal(t, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeChar), Q: int32('x')}, code.At(1))
}

func TestAssembleLdcSetLiteralInterned(t *testing.T) {
	src := "ldc ( 1 3 5 )\nq\n"
	store, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Lci, code.At(0).Op)
	assert.Equal(t, int8(pcode.TypeSet), code.At(0).P)
	s := store.SetAt(int(code.At(0).Q))
	assert.Equal(t, []int{1, 3, 5}, s.Elements())
}

func TestAssembleChkInternsBoundPair(t *testing.T) {
	src := "chk 1 10\nq\n"
	store, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Chk, code.At(0).Op)
	assert.Equal(t, store.Bound(int(code.At(0).Q)), store.Bound(int(code.At(0).Q)))
	b := store.Bound(int(code.At(0).Q))
	assert.Equal(t, int32(1), b.Lo)
	assert.Equal(t, int32(10), b.Hi)
}

func TestAssembleChkaKeepsQAsBareAddress(t *testing.T) {
	src := "chka 5 99\nq\n"
	_, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Instr{Op: pcode.Chka, Q: 5}, code.At(0))
}

func TestAssembleLcaInternsStringLiteral(t *testing.T) {
	src := "lca 'hello world'\nq\n"
	store, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Lca, code.At(0).Op)
	assert.Equal(t, "hello world", store.String(int(code.At(0).Q)))
}

func TestAssembleOrdChrAreSkippedEntirely(t *testing.T) {
	src := "lodi 0 1\nord\nchr\nadi\nq\n"
	_, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Instr{Op: pcode.Lod, Q: 1}, code.At(0))
	assert.Equal(t, pcode.Instr{Op: pcode.Adi}, code.At(1))
}

func TestAssembleCspLooksUpStandardProcedure(t *testing.T) {
	src := "csp wln\nq\n"
	_, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Csp, code.At(0).Op)
}

func TestAssembleUnknownMnemonicErrors(t *testing.T) {
	src := "bogus 1 2\nq\n"
	_, _, err := assembler.Assemble(src)
	require.Error(t, err)
}

func TestAssembleNoOperandOpcodeBucket(t *testing.T) {
	src := "adi\nsbr\nnot\nand\nior\nmod\nodd\nq\n"
	_, code, err := assembler.Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, pcode.Adi, code.At(0).Op)
	assert.Equal(t, pcode.Odd, code.At(6).Op)
}
