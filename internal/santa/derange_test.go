package santa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDerangeNoFixedPoints checks the core guarantee over many sizes and
// repetitions: the result is a bijection over the input and nobody maps to
// themselves.
func TestDerangeNoFixedPoints(t *testing.T) {
	for n := 3; n <= 25; n++ {
		ids := make([]int64, n)
		for i := range ids {
			ids[i] = int64(i + 100)
		}

		for rep := 0; rep < 50; rep++ {
			pairings, err := Derange(ids)
			require.NoError(t, err)
			require.Len(t, pairings, n)

			seen := make(map[int64]bool, n)
			for giver, giftee := range pairings {
				assert.NotEqual(t, giver, giftee, "self-assignment for %d (n=%d)", giver, n)
				assert.False(t, seen[giftee], "giftee %d assigned twice (n=%d)", giftee, n)
				seen[giftee] = true
			}
			for _, id := range ids {
				assert.True(t, seen[id], "id %d never assigned (n=%d)", id, n)
			}
		}
	}
}

// TestDerangeSizeThree repeatedly derangements the minimal real game size.
// There are exactly two derangements of three elements; both rotations are
// acceptable, identity positions never are.
func TestDerangeSizeThree(t *testing.T) {
	ids := []int64{1, 2, 3}
	for rep := 0; rep < 500; rep++ {
		pairings, err := Derange(ids)
		require.NoError(t, err)
		require.Len(t, pairings, 3)
		for giver, giftee := range pairings {
			require.NotEqual(t, giver, giftee)
		}
	}
}

// TestDerangeSizeTwo: the only derangement of two elements is the swap, and
// it must be found deterministically.
func TestDerangeSizeTwo(t *testing.T) {
	for rep := 0; rep < 100; rep++ {
		pairings, err := Derange([]int64{7, 9})
		require.NoError(t, err)
		assert.Equal(t, map[int64]int64{7: 9, 9: 7}, pairings)
	}
}

func TestDerangeTooFewIDs(t *testing.T) {
	_, err := Derange(nil)
	assert.ErrorIs(t, err, ErrTooFewIDs)

	_, err = Derange([]int64{42})
	assert.ErrorIs(t, err, ErrTooFewIDs)
}
