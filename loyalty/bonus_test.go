package loyalty_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// QUANTITY BONUS TABLE TESTS
// =============================================================================

func TestQuantityBonus_MiddleBand(t *testing.T) {
	// GIVEN: Milestone 1 approved with quantity 75
	// WHEN: Computing the quantity bonus
	// THEN: Falls in the 51-300 band -> 20 points

	bonus := loyalty.QuantityBonus(1, 75)
	assert.Equal(t, "20", bonus.String())
}

func TestQuantityBonus_TopBand(t *testing.T) {
	// GIVEN: Milestone 4 approved with quantity 301
	// WHEN: Computing the quantity bonus
	// THEN: Falls in the >300 band -> 400 points

	bonus := loyalty.QuantityBonus(4, 301)
	assert.Equal(t, "400", bonus.String())
}

func TestQuantityBonus_BandBoundaries(t *testing.T) {
	// GIVEN: Quantities at the exact band edges
	// WHEN: Computing bonuses for milestone 2
	// THEN: 50 stays in the low band, 51 moves up, 300 stays middle, 301 moves up

	assert.Equal(t, "20", loyalty.QuantityBonus(2, 50).String())
	assert.Equal(t, "50", loyalty.QuantityBonus(2, 51).String())
	assert.Equal(t, "50", loyalty.QuantityBonus(2, 300).String())
	assert.Equal(t, "100", loyalty.QuantityBonus(2, 301).String())
}

func TestQuantityBonus_FullTable(t *testing.T) {
	cases := []struct {
		formType loyalty.FormTypeID
		quantity int
		want     string
	}{
		{1, 1, "10"},
		{1, 500, "40"},
		{2, 10, "20"},
		{3, 50, "50"},
		{3, 100, "100"},
		{3, 400, "200"},
		{4, 25, "100"},
		{4, 200, "200"},
	}

	for _, tc := range cases {
		got := loyalty.QuantityBonus(tc.formType, tc.quantity)
		assert.Equal(t, tc.want, got.String(),
			"form type %d quantity %d", tc.formType, tc.quantity)
	}
}

func TestQuantityBonus_OutsideTable_Zero(t *testing.T) {
	// GIVEN: A milestone without a sales-volume component, or no quantity
	// WHEN: Computing the quantity bonus
	// THEN: Zero, never an error

	assert.True(t, loyalty.QuantityBonus(5, 100).IsZero(), "milestone 5 has no quantity bonus")
	assert.True(t, loyalty.QuantityBonus(6, 1000).IsZero(), "milestone 6 has no quantity bonus")
	assert.True(t, loyalty.QuantityBonus(1, 0).IsZero(), "omitted quantity yields no bonus")
	assert.True(t, loyalty.QuantityBonus(1, -5).IsZero(), "negative quantity yields no bonus")
	assert.True(t, loyalty.QuantityBonus(99, 100).IsZero(), "unknown form type yields no bonus")
}
