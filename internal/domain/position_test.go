package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionContains(t *testing.T) {
	p := Position{LowerBin: 100, UpperBin: 110}

	assert.True(t, p.Contains(100), "lower bound is inclusive")
	assert.True(t, p.Contains(110), "upper bound is inclusive")
	assert.True(t, p.Contains(105))
	assert.False(t, p.Contains(99))
	assert.False(t, p.Contains(111))
}

func TestPositionBinDistance(t *testing.T) {
	p := Position{LowerBin: 100, UpperBin: 110}

	assert.Equal(t, int32(0), p.BinDistance(100))
	assert.Equal(t, int32(0), p.BinDistance(110))
	assert.Equal(t, int32(-1), p.BinDistance(99))
	assert.Equal(t, int32(-3), p.BinDistance(97))
	assert.Equal(t, int32(1), p.BinDistance(111))
	assert.Equal(t, int32(5), p.BinDistance(115))
}
