package parser_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jensenwirth/p4/assembler"
	"github.com/jensenwirth/p4/parser"
	"github.com/jensenwirth/p4/vm"
)

// runProgram compiles src end to end (parse -> assemble -> interpret) and
// returns everything written to the standard output file, mirroring the
// shape of SPEC_FULL.md §8's worked example.
func runProgram(t *testing.T, src string) string {
	t.Helper()
	code, err := parser.Compile("test.pas", []byte(src))
	require.NoError(t, err, "compile: %s", code)

	store, prog, err := assembler.Assemble(code)
	require.NoError(t, err, "assemble:\n%s", code)

	m := vm.New(store, prog)
	var out strings.Builder
	m.Output = &out
	require.NoError(t, m.Run())
	return out.String()
}

func TestCompileEmptyProgramHalts(t *testing.T) {
	code, err := parser.Compile("t.pas", []byte("program p; begin end."))
	require.NoError(t, err)
	assert.Contains(t, code, "stp")
	assert.Contains(t, code, "\nq\n")
}

func TestRunWriteLiteralInteger(t *testing.T) {
	out := runProgram(t, "program p; begin writeln(1+2) end.")
	assert.Equal(t, "         3\n", out)
}

func TestRunVariableAssignmentAndArithmetic(t *testing.T) {
	out := runProgram(t, `
program p;
var x, y: integer;
begin
  x := 10;
  y := x * 2 - 5;
  writeln(y)
end.
`)
	assert.Equal(t, "        15\n", out)
}

func TestRunIfStatement(t *testing.T) {
	out := runProgram(t, `
program p;
var x: integer;
begin
  x := 5;
  if x > 3 then
    writeln(1)
  else
    writeln(0)
end.
`)
	assert.Equal(t, "         1\n", out)
}

func TestRunWhileLoop(t *testing.T) {
	out := runProgram(t, `
program p;
var i, sum: integer;
begin
  i := 1;
  sum := 0;
  while i <= 5 do begin
    sum := sum + i;
    i := i + 1
  end;
  writeln(sum)
end.
`)
	assert.Equal(t, "        15\n", out)
}

func TestRunForLoop(t *testing.T) {
	out := runProgram(t, `
program p;
var i, sum: integer;
begin
  sum := 0;
  for i := 1 to 5 do
    sum := sum + i;
  writeln(sum)
end.
`)
	assert.Equal(t, "        15\n", out)
}

func TestRunUserProcedureCall(t *testing.T) {
	out := runProgram(t, `
program p;
var total: integer;

procedure addOne(var n: integer);
begin
  n := n + 1
end;

begin
  total := 0;
  addOne(total);
  addOne(total);
  writeln(total)
end.
`)
	assert.Equal(t, "         2\n", out)
}

func TestRunUserFunctionCall(t *testing.T) {
	out := runProgram(t, `
program p;

function double(n: integer): integer;
begin
  double := n * 2
end;

begin
  writeln(double(21))
end.
`)
	assert.Equal(t, "        42\n", out)
}

func TestRunRecursiveFunctionCall(t *testing.T) {
	out := runProgram(t, `
program p;

function fact(n: integer): integer;
begin
  if n <= 1 then
    fact := 1
  else
    fact := n * fact(n - 1)
end;

begin
  writeln(fact(5))
end.
`)
	assert.Equal(t, "       120\n", out)
}

func TestRunCaseStatement(t *testing.T) {
	out := runProgram(t, `
program p;
var x: integer;
begin
  x := 2;
  case x of
    1: writeln(10);
    2: writeln(20);
    3: writeln(30)
  end
end.
`)
	assert.Equal(t, "        20\n", out)
}

func TestCompileUndeclaredVariableIsNonFatalDiagnostic(t *testing.T) {
	_, err := parser.Compile("t.pas", []byte("program p; begin y := 1 end."))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared")
}
