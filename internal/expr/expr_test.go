package expr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	registers map[string]uint64
	symbols   map[string]uint64
}

func (f fakeContext) Lookup(name string, ctx Context) (uint64, bool) {
	switch ctx {
	case ContextRegister:
		v, ok := f.registers[name]
		return v, ok
	case ContextSymbol:
		v, ok := f.symbols[name]
		return v, ok
	}
	return 0, false
}

func eval(t *testing.T, input string, ec ExecutionContext) uint64 {
	t.Helper()
	e, err := Parse(input)
	require.NoError(t, err)
	v, err := e.Evaluate(ec)
	require.NoError(t, err)
	return v
}

func TestArithmeticPrecedence(t *testing.T) {
	require.Equal(t, uint64(14), eval(t, "2 + 3 * 4", Trivial{}))
	require.Equal(t, uint64(20), eval(t, "(2 + 3) * 4", Trivial{}))
}

func TestShiftHasLowestPrecedence(t *testing.T) {
	require.Equal(t, uint64(20), eval(t, "1 + 4 << 2", Trivial{}))
	require.Equal(t, uint64(17), eval(t, "1 + (4 << 2)", Trivial{}))
}

func TestUnaryMinus(t *testing.T) {
	require.Equal(t, ^uint64(0), eval(t, "-1", Trivial{}))
}

func TestHexAndDecimalLiterals(t *testing.T) {
	require.Equal(t, uint64(255), eval(t, "0xff", Trivial{}))
	require.Equal(t, uint64(255), eval(t, "255", Trivial{}))
}

func TestScopedRegisterAndSymbolNames(t *testing.T) {
	ec := fakeContext{
		registers: map[string]uint64{"r0": 0x1000},
		symbols:   map[string]uint64{"main": 0x8000},
	}
	require.Equal(t, uint64(0x1000), eval(t, "reg::r0", ec))
	require.Equal(t, uint64(0x8000), eval(t, "sym::main", ec))
}

func TestBareIdentifierFallsBackFromRegisterToSymbol(t *testing.T) {
	ec := fakeContext{
		registers: map[string]uint64{},
		symbols:   map[string]uint64{"main": 0x8000},
	}
	require.Equal(t, uint64(0x8000), eval(t, "main", ec))
}

func TestUnresolvedNameIsEvaluationError(t *testing.T) {
	e, err := Parse("nosuchreg")
	require.NoError(t, err)
	_, err = e.Evaluate(Trivial{})
	require.Error(t, err)
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
}

func TestShiftByAtLeast64ProducesZero(t *testing.T) {
	require.Equal(t, uint64(0), eval(t, "1 << 64", Trivial{}))
	require.Equal(t, uint64(0), eval(t, "0xff >> 100", Trivial{}))
}

func TestUnexpectedTokensAfterExpressionIsParseError(t *testing.T) {
	_, err := Parse("1 + 2 3")
	require.Error(t, err)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestUnclosedParenIsParseError(t *testing.T) {
	_, err := Parse("(1 + 2")
	require.Error(t, err)
}

func TestIsConstant(t *testing.T) {
	e, err := Parse("1 + 2 * 3")
	require.NoError(t, err)
	require.True(t, e.IsConstant())

	e, err = Parse("reg::r0 + 1")
	require.NoError(t, err)
	require.False(t, e.IsConstant())
}
