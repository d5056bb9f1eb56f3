package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jensenwirth/p4/internal/pcode"
	"github.com/jensenwirth/p4/internal/pstore"
)

func TestLdcSroLdo(t *testing.T) {
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 42})
	code.Set(1, pcode.Instr{Op: pcode.Sro, Q: 10})
	code.Set(2, pcode.Instr{Op: pcode.Ldo, Q: 10})
	code.Set(3, pcode.Instr{Op: pcode.Stp})

	m := New(pstore.New(0), code)
	require.NoError(t, m.Run())
	assert.Equal(t, int32(42), m.at(m.SP).I)
}

func TestLdaStoIndirect(t *testing.T) {
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Lao, Q: 20})
	code.Set(1, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 99})
	code.Set(2, pcode.Instr{Op: pcode.Sto})
	code.Set(3, pcode.Instr{Op: pcode.Ldo, Q: 20})
	code.Set(4, pcode.Instr{Op: pcode.Stp})

	m := New(pstore.New(0), code)
	require.NoError(t, m.Run())
	assert.Equal(t, int32(99), m.at(m.SP).I)
}

func TestArithmetic(t *testing.T) {
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 7})
	code.Set(1, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 5})
	code.Set(2, pcode.Instr{Op: pcode.Adi})
	code.Set(3, pcode.Instr{Op: pcode.Stp})

	m := New(pstore.New(0), code)
	require.NoError(t, m.Run())
	assert.Equal(t, int32(12), m.at(m.SP).I)
}

func TestDivideByZeroTraps(t *testing.T) {
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 10})
	code.Set(1, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 0})
	code.Set(2, pcode.Instr{Op: pcode.Dvi})

	m := New(pstore.New(0), code)
	err := m.Run()
	require.Error(t, err)
	var trap *Trap
	require.ErrorAs(t, err, &trap)
	assert.Equal(t, pcode.Dvi, trap.Op)
}

// TestCallReturnProtocol walks a full mst/cup/ent/ret cycle for a
// zero-argument, zero-local procedure call and checks the activation
// record unwinds back to the caller's exact sp/mp/pc.
func TestCallReturnProtocol(t *testing.T) {
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Mst, P: 0})
	code.Set(1, pcode.Instr{Op: pcode.Cup, P: 0, Q: 4})
	code.Set(2, pcode.Instr{Op: pcode.Stp})
	code.Set(3, pcode.Instr{Op: pcode.Stp}) // unreached padding
	code.Set(4, pcode.Instr{Op: pcode.Ent, P: 1, Q: 4})
	code.Set(5, pcode.Instr{Op: pcode.Ret, P: 0})

	m := New(pstore.New(0), code)
	startSP, startMP := m.SP, m.MP

	require.NoError(t, m.Step()) // mst
	require.NoError(t, m.Step()) // cup
	assert.Equal(t, 4, m.PC)
	require.NoError(t, m.Step()) // ent (in callee)
	require.NoError(t, m.Step()) // ret

	assert.Equal(t, startSP, m.SP)
	assert.Equal(t, startMP, m.MP)
	assert.Equal(t, 2, m.PC)

	require.NoError(t, m.Step()) // stp
	assert.True(t, m.Halted)
}

func TestChkTraps(t *testing.T) {
	store := pstore.New(0)
	bi, _ := store.InternBound(1, 5)
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 10})
	code.Set(1, pcode.Instr{Op: pcode.Chk, Q: int32(bi)})

	m := New(store, code)
	err := m.Run()
	require.Error(t, err)
	var trap *Trap
	require.ErrorAs(t, err, &trap)
	assert.Equal(t, pcode.Chk, trap.Op)
}

func TestChkAcceptsInRangeValue(t *testing.T) {
	store := pstore.New(0)
	bi, _ := store.InternBound(1, 5)
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 3})
	code.Set(1, pcode.Instr{Op: pcode.Chk, Q: int32(bi)})
	code.Set(2, pcode.Instr{Op: pcode.Stp})

	m := New(store, code)
	require.NoError(t, m.Run())
}

func TestChkaTrapsOnWildPointer(t *testing.T) {
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Lao, Q: 999999})
	code.Set(1, pcode.Instr{Op: pcode.Chka, Q: 0})

	m := New(pstore.New(0), code)
	err := m.Run()
	require.Error(t, err)
	var trap *Trap
	require.ErrorAs(t, err, &trap)
	assert.Equal(t, pcode.Chka, trap.Op)
}

func TestSetOps(t *testing.T) {
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 2})
	code.Set(1, pcode.Instr{Op: pcode.Sgs})
	code.Set(2, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 3})
	code.Set(3, pcode.Instr{Op: pcode.Sgs})
	code.Set(4, pcode.Instr{Op: pcode.Uni})
	code.Set(5, pcode.Instr{Op: pcode.Stp})

	m := New(pstore.New(0), code)
	require.NoError(t, m.Run())
	result := m.at(m.SP).Set
	assert.True(t, result.Contains(2))
	assert.True(t, result.Contains(3))
	assert.False(t, result.Contains(4))
}

func TestSetMembership(t *testing.T) {
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 5})
	code.Set(1, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 5})
	code.Set(2, pcode.Instr{Op: pcode.Sgs})
	code.Set(3, pcode.Instr{Op: pcode.Inn})
	code.Set(4, pcode.Instr{Op: pcode.Stp})

	m := New(pstore.New(0), code)
	require.NoError(t, m.Run())
	assert.True(t, m.at(m.SP).B)
}

func TestCompareIntTypes(t *testing.T) {
	for _, tc := range []struct {
		op     pcode.Op
		x, y   int32
		expect bool
	}{
		{pcode.Equ, 3, 3, true},
		{pcode.Neq, 3, 4, true},
		{pcode.Grt, 5, 3, true},
		{pcode.Les, 3, 5, true},
		{pcode.Geq, 3, 3, true},
		{pcode.Leq, 3, 3, true},
	} {
		var code pcode.Code
		code.Set(0, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: tc.x})
		code.Set(1, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: tc.y})
		code.Set(2, pcode.Instr{Op: tc.op, P: int8(pcode.TypeInt)})
		code.Set(3, pcode.Instr{Op: pcode.Stp})

		m := New(pstore.New(0), code)
		require.NoError(t, m.Run())
		assert.Equal(t, tc.expect, m.at(m.SP).B, tc.op.String())
	}
}

func TestCompareMultiLexicographic(t *testing.T) {
	store := pstore.New(0)
	var code pcode.Code
	// lay out two 3-cell records at store addresses 20 and 30.
	code.Set(0, pcode.Instr{Op: pcode.Lao, Q: 20})
	code.Set(1, pcode.Instr{Op: pcode.Lao, Q: 30})
	code.Set(2, pcode.Instr{Op: pcode.Les, P: int8(pcode.TypeMulti), Q: 3})
	code.Set(3, pcode.Instr{Op: pcode.Stp})

	m := New(store, code)
	m.at(20).I, m.at(21).I, m.at(22).I = 1, 2, 3
	m.at(30).I, m.at(31).I, m.at(32).I = 1, 2, 4
	require.NoError(t, m.Run())
	assert.True(t, m.at(m.SP).B)
}

func TestCspWriWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 42})
	code.Set(1, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 4})
	code.Set(2, pcode.Instr{Op: pcode.Lao, Q: pstore.OutputAddr})
	code.Set(3, pcode.Instr{Op: pcode.Csp, Q: spWri})
	code.Set(4, pcode.Instr{Op: pcode.Stp})

	m := New(pstore.New(0), code)
	m.Output = &buf
	require.NoError(t, m.Run())
	assert.Equal(t, "  42", buf.String())
}

func TestCspWrsResolvesStringPoolLiteral(t *testing.T) {
	store := pstore.New(0)
	idx, _ := store.InternString("hi")
	var buf bytes.Buffer
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Lca, Q: int32(idx)})
	code.Set(1, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 2}) // length
	code.Set(2, pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: 5}) // width
	code.Set(3, pcode.Instr{Op: pcode.Lao, Q: pstore.OutputAddr})
	code.Set(4, pcode.Instr{Op: pcode.Csp, Q: spWrs})
	code.Set(5, pcode.Instr{Op: pcode.Stp})

	m := New(store, code)
	m.Output = &buf
	require.NoError(t, m.Run())
	assert.Equal(t, "   hi", buf.String())
}

func TestCspRdiReadsFromInput(t *testing.T) {
	store := pstore.New(0)
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Lao, Q: 20})
	code.Set(1, pcode.Instr{Op: pcode.Lao, Q: pstore.InputAddr})
	code.Set(2, pcode.Instr{Op: pcode.Csp, Q: spRdi})
	code.Set(3, pcode.Instr{Op: pcode.Stp})

	m := New(store, code)
	m.Input = newTextInput(strings.NewReader("123"))
	require.NoError(t, m.Run())
	assert.Equal(t, int32(123), m.at(20).I)
}

func TestCspGetTrapsOnOutputFile(t *testing.T) {
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Lao, Q: pstore.OutputAddr})
	code.Set(1, pcode.Instr{Op: pcode.Csp, Q: spGet})

	m := New(pstore.New(0), code)
	err := m.Run()
	require.Error(t, err)
	var trap *Trap
	require.ErrorAs(t, err, &trap)
}

func TestEofOnInput(t *testing.T) {
	var code pcode.Code
	code.Set(0, pcode.Instr{Op: pcode.Lao, Q: pstore.InputAddr})
	code.Set(1, pcode.Instr{Op: pcode.Eof})
	code.Set(2, pcode.Instr{Op: pcode.Stp})

	m := New(pstore.New(0), code)
	m.Input = newTextInput(strings.NewReader(""))
	require.NoError(t, m.Run())
	assert.True(t, m.at(m.SP).B)
}

func TestTrapError(t *testing.T) {
	m := New(pstore.New(0), pcode.Code{})
	err := m.trap(pcode.Chk, "value out of range")
	assert.Contains(t, err.Error(), "chk")
	assert.Contains(t, err.Error(), "value out of range")
}
