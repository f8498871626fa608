package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandSourceDeterministic(t *testing.T) {
	a := NewRandSource(42)
	b := NewRandSource(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
	assert.Equal(t, a.Intn(1000), b.Intn(1000))
	assert.Equal(t, int64(42), a.Seed())
}

func TestRandSourceZeroSeedPicksOne(t *testing.T) {
	r := NewRandSource(0)
	assert.NotZero(t, r.Seed())
}

func TestUniformFloat64Range(t *testing.T) {
	r := NewRandSource(7)
	for i := 0; i < 1000; i++ {
		v := r.UniformFloat64(100, 20000)
		assert.GreaterOrEqual(t, v, 100.0)
		assert.Less(t, v, 20000.0)
	}
}

func TestIntnAndBernoulli(t *testing.T) {
	r := NewRandSource(3)
	for i := 0; i < 100; i++ {
		n := r.Intn(5)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 5)
	}
	assert.False(t, r.BernoulliBool(0))
	assert.True(t, r.BernoulliBool(1))
}
