package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSet(t *testing.T) {
	assert.Equal(t, []string{"art", "puzzles"}, NormalizeSet([]string{"  Puzzles ", "art", "puzzles", "", "  "}))
	assert.Equal(t, []string{}, NormalizeSet(nil))
}

func TestSetContains(t *testing.T) {
	set := NormalizeSet([]string{"stories", "Stickers", "games"})
	assert.True(t, SetContains(set, "stickers"))
	assert.True(t, SetContains(set, " Games "))
	assert.False(t, SetContains(set, "music"))
	assert.False(t, SetContains(nil, "stickers"))
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "spending_limit", ToSnakeCase("SpendingLimit"))
	assert.Equal(t, "pack_id", ToSnakeCase("PackID"))
	assert.Equal(t, "amount", ToSnakeCase("Amount"))
}
