package santa

import (
	"errors"
	"fmt"
	"math/rand"
)

// maxShuffleAttempts bounds the shuffle-and-fixup loop. In practice a valid
// derangement falls out within the first couple of attempts.
const maxShuffleAttempts = 100

// ErrTooFewIDs is a precondition violation: a derangement needs at least two
// elements. Game code never calls Derange below MinParticipants; the guard
// lives at the call site, not here.
var ErrTooFewIDs = errors.New("derangement requires at least 2 ids")

// Derange returns a random permutation of ids with no fixed points, as a
// giver -> receiver map. The ids must be distinct.
//
// Each attempt uniformly shuffles the ids, then walks the result swapping any
// fixed point with its right neighbor (wrapping at the end). If fixed points
// survive the walk, the whole attempt is redone. A residual fixed point past
// the attempt bound is returned as an error rather than shipped: nobody may
// ever be assigned to themselves.
func Derange(ids []int64) (map[int64]int64, error) {
	n := len(ids)
	if n < 2 {
		return nil, ErrTooFewIDs
	}

	shuffled := make([]int64, n)
	copy(shuffled, ids)

	for attempt := 0; attempt < maxShuffleAttempts; attempt++ {
		rand.Shuffle(n, func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		fixup(ids, shuffled)
		if isDerangement(ids, shuffled) {
			return pair(ids, shuffled), nil
		}
	}

	fixup(ids, shuffled)
	if !isDerangement(ids, shuffled) {
		return nil, fmt.Errorf("no derangement found after %d attempts", maxShuffleAttempts)
	}
	return pair(ids, shuffled), nil
}

// fixup breaks fixed points in place by swapping each offender with the next
// position, wrapping to index 0 at the end.
func fixup(ids, shuffled []int64) {
	n := len(ids)
	for i := 0; i < n; i++ {
		if shuffled[i] == ids[i] {
			j := (i + 1) % n
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		}
	}
}

func isDerangement(ids, shuffled []int64) bool {
	for i := range ids {
		if shuffled[i] == ids[i] {
			return false
		}
	}
	return true
}

func pair(ids, shuffled []int64) map[int64]int64 {
	m := make(map[int64]int64, len(ids))
	for i, giver := range ids {
		m[giver] = shuffled[i]
	}
	return m
}
