package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDecimal(t *testing.T) {
	for _, s := range []string{"0", "42", "-7", "+3", " 12 ", "12\n", "99999999999999999999"} {
		assert.True(t, IsDecimal(s), "%q", s)
	}
	for _, s := range []string{"", " ", "1.5", "12abc", "abc", "0x10", "1 2"} {
		assert.False(t, IsDecimal(s), "%q", s)
	}
}

func TestIsDouble(t *testing.T) {
	for _, s := range []string{"0", "1.5", "-2.25", "1e3", " 3.0\n", "inf", "NaN", "1e400"} {
		assert.True(t, IsDouble(s), "%q", s)
	}
	for _, s := range []string{"", "1.5.2", "one", "1,5"} {
		assert.False(t, IsDouble(s), "%q", s)
	}
}

func TestToDecimal(t *testing.T) {
	v, err := ToDecimal(" -15\n")
	require.NoError(t, err)
	assert.Equal(t, int64(-15), v)

	_, err = ToDecimal("15x")
	assert.Error(t, err)
}

func TestToDouble(t *testing.T) {
	v, err := ToDouble("2.5")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, v, 1e-9)

	_, err = ToDouble("two")
	assert.Error(t, err)
}

func TestToClientID(t *testing.T) {
	id, err := ToClientID("7")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), id)

	for _, s := range []string{"-1", "4294967296", "x", ""} {
		_, err := ToClientID(s)
		assert.Error(t, err, "%q", s)
	}
}
