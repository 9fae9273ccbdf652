package alu_test

import (
	"testing"

	"github.com/JoaquimCruz/Multicore-simulator/internal/alu"
	"github.com/stretchr/testify/assert"
)

func TestArithmetic(t *testing.T) {
	cases := []struct {
		op       alu.Op
		a, b     int32
		expected int32
	}{
		{alu.ADD, 3, 4, 7},
		{alu.SUB, 10, 4, 6},
		{alu.MUL, 5, 6, 30},
		{alu.DIV, 20, 4, 5},
	}

	for _, c := range cases {
		result, taken := alu.Compute(c.op, c.a, c.b)
		assert.Equal(t, c.expected, result)
		assert.False(t, taken)
	}
}

func TestDivideByZeroYieldsZeroNoFault(t *testing.T) {
	result, taken := alu.Compute(alu.DIV, 10, 0)

	assert.EqualValues(t, 0, result)
	assert.False(t, taken)
}

func TestBranchComparisons(t *testing.T) {
	_, taken := alu.Compute(alu.BEQ, 5, 5)
	assert.True(t, taken)

	_, taken = alu.Compute(alu.BEQ, 5, 6)
	assert.False(t, taken)

	_, taken = alu.Compute(alu.BNE, 5, 6)
	assert.True(t, taken)

	_, taken = alu.Compute(alu.BLT, -1, 0)
	assert.True(t, taken)

	_, taken = alu.Compute(alu.BGT, 1, 0)
	assert.True(t, taken)
}

func TestOverflowWraps(t *testing.T) {
	var max int32 = 2147483647

	result, _ := alu.Compute(alu.ADD, max, 1)

	assert.EqualValues(t, -2147483648, result)
}
