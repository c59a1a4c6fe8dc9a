package bracket

import (
	"errors"
	"math"
	"math/rand"

	"github.com/projectcritics/criticoni/models"
)

var (
	ErrInvalidImageCount = errors.New("image count must be even and non-zero")
	ErrInvalidVote       = errors.New("vote is not for one of the current pair")
	ErrTournamentOver    = errors.New("tournament already has a final winner")
)

// Initialize shuffles images into the first round with a uniform random
// permutation. The input slice is not modified.
func Initialize(images []models.ImageItem) (models.BracketState, error) {
	n := len(images)
	if n == 0 || n%2 != 0 {
		return models.BracketState{}, ErrInvalidImageCount
	}

	shuffled := make([]models.ImageItem, n)
	copy(shuffled, images)
	rand.Shuffle(n, func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return models.BracketState{
		RoundImages:      shuffled,
		CurrentPairIndex: 0,
		Winners:          []models.ImageItem{},
		FinalWinner:      nil,
		ShowFinal:        false,
		OriginalLength:   n,
		PendingWinner:    nil,
	}, nil
}

// CurrentPair returns the two contestants of the current match. ok is false
// when fewer than two images remain at the pair index; callers should treat
// that as "wait for the next state".
func CurrentPair(st models.BracketState) (a, b models.ImageItem, ok bool) {
	if st.CurrentPairIndex+2 > len(st.RoundImages) {
		return models.ImageItem{}, models.ImageItem{}, false
	}
	return st.RoundImages[st.CurrentPairIndex], st.RoundImages[st.CurrentPairIndex+1], true
}

// SubmitVote applies one pairwise decision and returns the advanced state.
// The input state is not modified. It does not guard against double
// application of the same vote; callers serialize votes through the
// pending-winner gate.
func SubmitVote(st models.BracketState, winner models.ImageItem) (models.BracketState, error) {
	if st.ShowFinal || st.FinalWinner != nil {
		return st, ErrTournamentOver
	}
	a, b, ok := CurrentPair(st)
	if !ok {
		return st, ErrInvalidVote
	}
	if winner.URL != a.URL && winner.URL != b.URL {
		return st, ErrInvalidVote
	}

	isLastPair := st.CurrentPairIndex+2 >= len(st.RoundImages)
	newWinners := append(append([]models.ImageItem{}, st.Winners...), winner)

	next := st
	next.PendingWinner = nil

	switch {
	case isLastPair && len(st.RoundImages) == 2:
		// Final match decided; the state is frozen from here on.
		w := winner
		next.FinalWinner = &w
		next.ShowFinal = true
		next.Winners = newWinners
	case isLastPair:
		// Round complete: winners become the next round.
		next.RoundImages = newWinners
		next.CurrentPairIndex = 0
		next.Winners = []models.ImageItem{}
	default:
		next.CurrentPairIndex = st.CurrentPairIndex + 2
		next.Winners = newWinners
	}
	return next, nil
}

// RoundNumber is 1-based, derived from how far the round size has halved
// relative to the original field.
func RoundNumber(st models.BracketState) int {
	if st.OriginalLength == 0 || len(st.RoundImages) == 0 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(st.OriginalLength)))) -
		int(math.Floor(math.Log2(float64(len(st.RoundImages))))) + 1
}

// MatchNumber is the 1-based match within the current round.
func MatchNumber(st models.BracketState) int {
	return st.CurrentPairIndex/2 + 1
}

// TotalMatches is the number of matches in the current round.
func TotalMatches(st models.BracketState) int {
	return len(st.RoundImages) / 2
}
