package bracket

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/projectcritics/criticoni/models"
)

func imageSet(n int) []models.ImageItem {
	imgs := make([]models.ImageItem, n)
	for i := range imgs {
		imgs[i] = models.ImageItem{
			URL:  fmt.Sprintf("https://img.test/%d.png", i),
			Name: fmt.Sprintf("img-%d", i),
		}
	}
	return imgs
}

func TestInitialize_RejectsBadCounts(t *testing.T) {
	cases := []struct {
		name  string
		count int
	}{
		{"zero", 0},
		{"one", 1},
		{"odd", 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Initialize(imageSet(tc.count))
			require.ErrorIs(t, err, ErrInvalidImageCount)
		})
	}
}

func TestInitialize_IsPermutation(t *testing.T) {
	for _, n := range models.ValidImageCounts {
		t.Run(fmt.Sprintf("size_%d", n), func(t *testing.T) {
			imgs := imageSet(n)
			st, err := Initialize(imgs)
			require.NoError(t, err)
			require.Equal(t, n, st.OriginalLength)
			require.Equal(t, 0, st.CurrentPairIndex)
			require.Empty(t, st.Winners)
			require.Nil(t, st.FinalWinner)
			require.Nil(t, st.PendingWinner)
			require.False(t, st.ShowFinal)

			seen := make(map[string]bool, n)
			for _, img := range st.RoundImages {
				seen[img.URL] = true
			}
			require.Len(t, seen, n)
			for _, img := range imgs {
				require.True(t, seen[img.URL], "missing %s after shuffle", img.URL)
			}
		})
	}
}

func TestInitialize_DoesNotMutateInput(t *testing.T) {
	imgs := imageSet(8)
	first := imgs[0]
	_, err := Initialize(imgs)
	require.NoError(t, err)
	require.Equal(t, first, imgs[0])
}

func TestSubmitVote_SizeTwoFinishesInOneVote(t *testing.T) {
	st, err := Initialize(imageSet(2))
	require.NoError(t, err)

	a, _, ok := CurrentPair(st)
	require.True(t, ok)

	next, err := SubmitVote(st, a)
	require.NoError(t, err)
	require.True(t, next.ShowFinal)
	require.NotNil(t, next.FinalWinner)
	require.Equal(t, a.URL, next.FinalWinner.URL)

	// No further votes accepted once the final winner is set.
	_, err = SubmitVote(next, a)
	require.ErrorIs(t, err, ErrTournamentOver)
}

func TestSubmitVote_FourImagesRollOverAndFinalize(t *testing.T) {
	st, err := Initialize(imageSet(4))
	require.NoError(t, err)

	// Round 1, match 1.
	a, _, ok := CurrentPair(st)
	require.True(t, ok)
	st, err = SubmitVote(st, a)
	require.NoError(t, err)
	require.Equal(t, 2, st.CurrentPairIndex)
	require.Len(t, st.Winners, 1)

	// Round 1, match 2 completes the round: winners become round 2.
	_, b, ok := CurrentPair(st)
	require.True(t, ok)
	st, err = SubmitVote(st, b)
	require.NoError(t, err)
	require.Len(t, st.RoundImages, 2)
	require.Equal(t, 0, st.CurrentPairIndex)
	require.Empty(t, st.Winners)
	require.Equal(t, []models.ImageItem{a, b}, st.RoundImages)

	// Final.
	st, err = SubmitVote(st, a)
	require.NoError(t, err)
	require.True(t, st.ShowFinal)
	require.Equal(t, a.URL, st.FinalWinner.URL)
}

func TestSubmitVote_RejectsNonContestant(t *testing.T) {
	st, err := Initialize(imageSet(4))
	require.NoError(t, err)

	_, err = SubmitVote(st, models.ImageItem{URL: "https://img.test/outsider.png"})
	require.ErrorIs(t, err, ErrInvalidVote)
}

func TestSubmitVote_DoesNotMutateInput(t *testing.T) {
	st, err := Initialize(imageSet(4))
	require.NoError(t, err)

	a, _, _ := CurrentPair(st)
	before := st.CurrentPairIndex
	_, err = SubmitVote(st, a)
	require.NoError(t, err)
	require.Equal(t, before, st.CurrentPairIndex)
	require.Empty(t, st.Winners)
}

func TestFullTournament_HalvesEachRound(t *testing.T) {
	for _, n := range []int{4, 8, 16, 32} {
		t.Run(fmt.Sprintf("size_%d", n), func(t *testing.T) {
			st, err := Initialize(imageSet(n))
			require.NoError(t, err)

			roundSize := n
			for !st.ShowFinal {
				require.Equal(t, roundSize, len(st.RoundImages))
				require.True(t, len(st.RoundImages)%2 == 0)

				for i := 0; i < roundSize/2; i++ {
					a, _, ok := CurrentPair(st)
					require.True(t, ok)
					st, err = SubmitVote(st, a)
					require.NoError(t, err)
				}
				if !st.ShowFinal {
					roundSize /= 2
				}
			}
			require.NotNil(t, st.FinalWinner)
		})
	}
}

func TestRoundAndMatchNumbers(t *testing.T) {
	cases := []struct {
		name        string
		st          models.BracketState
		round       int
		match       int
		totalInRnd  int
	}{
		{
			name:       "first round of 8",
			st:         models.BracketState{RoundImages: imageSet(8), CurrentPairIndex: 0, OriginalLength: 8},
			round:      1,
			match:      1,
			totalInRnd: 4,
		},
		{
			name:       "third match of first round",
			st:         models.BracketState{RoundImages: imageSet(8), CurrentPairIndex: 4, OriginalLength: 8},
			round:      1,
			match:      3,
			totalInRnd: 4,
		},
		{
			name:       "semifinal of 16",
			st:         models.BracketState{RoundImages: imageSet(4), CurrentPairIndex: 0, OriginalLength: 16},
			round:      3,
			match:      1,
			totalInRnd: 2,
		},
		{
			name:       "final of 16",
			st:         models.BracketState{RoundImages: imageSet(2), CurrentPairIndex: 0, OriginalLength: 16},
			round:      4,
			match:      1,
			totalInRnd: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.round, RoundNumber(tc.st))
			require.Equal(t, tc.match, MatchNumber(tc.st))
			require.Equal(t, tc.totalInRnd, TotalMatches(tc.st))
		})
	}
}

func TestCurrentPair_IncompleteWhenExhausted(t *testing.T) {
	st := models.BracketState{RoundImages: imageSet(4), CurrentPairIndex: 4, OriginalLength: 4}
	_, _, ok := CurrentPair(st)
	require.False(t, ok)
}
