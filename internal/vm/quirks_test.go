package vm

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestQuirksByName(t *testing.T) {
	q, err := QuirksByName("default")
	assert.NoError(t, err)
	assert.Equal(t, DefaultQuirks(), q)

	q, err = QuirksByName("cosmac")
	assert.NoError(t, err)
	assert.Equal(t, CosmacQuirks(), q)

	_, err = QuirksByName("superchip")
	assert.Error(t, err)
}

func TestProfileDifferences(t *testing.T) {
	def := DefaultQuirks()
	cosmac := CosmacQuirks()

	assert.False(t, def.ShiftUsesVY)
	assert.True(t, cosmac.ShiftUsesVY)

	assert.True(t, def.IndexOverflowVF)
	assert.False(t, cosmac.IndexOverflowVF)

	assert.False(t, def.LoadStoreIncrement)
	assert.True(t, cosmac.LoadStoreIncrement)

	assert.False(t, def.SpriteWrap)
	assert.False(t, cosmac.SpriteWrap)
}
