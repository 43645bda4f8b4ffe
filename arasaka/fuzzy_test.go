package arasaka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	assert.Equal(t, float64(1), similarity("abcd", "abcd"))
	assert.Equal(t, float64(1), similarity("", ""))
	assert.Zero(t, similarity("abc", "xyz"))
	assert.InDelta(t, 0.75, similarity("abcd", "bcde"), 0.0001)
	assert.InDelta(t, 0.8, similarity("appel", "apple"), 0.0001)
}

func TestCloseMatches(t *testing.T) {
	candidates := []string{"ape", "apple", "peach", "puppy"}

	assert.Equal(
		t,
		[]string{"apple", "ape"},
		closeMatches("appel", candidates, 3, defaultMatchCutoff),
	)
	assert.Equal(
		t,
		[]string{"apple"},
		closeMatches("appel", candidates, 1, defaultMatchCutoff),
	)
	assert.Empty(t, closeMatches("zzzqqq", candidates, 1, defaultMatchCutoff))

	t.Run(
		"cutoff", func(t *testing.T) {
			// 2*2/8 falls under the cutoff, 2*3/10 lands on it
			assert.InDelta(t, 0.5, similarity("abxy", "abcd"), 0.0001)
			assert.Empty(t, closeMatches("abcd", []string{"abxy"}, 1, defaultMatchCutoff))
			assert.InDelta(t, 0.6, similarity("abcxy", "abcde"), 0.0001)
			assert.Equal(t, []string{"abcxy"}, closeMatches("abcde", []string{"abcxy"}, 1, defaultMatchCutoff))
		},
	)

	t.Run(
		"ties prefer the later candidate", func(t *testing.T) {
			assert.Equal(
				t,
				[]string{"bob2", "bob1"},
				closeMatches("bob", []string{"bob1", "bob2"}, 2, defaultMatchCutoff),
			)
			assert.Equal(t, []string{"bob2"}, closeMatches("bob", []string{"bob1", "bob2"}, 1, defaultMatchCutoff))
		},
	)

	t.Run(
		"ignores case", func(t *testing.T) {
			assert.Equal(
				t,
				[]string{"NightCity_V"},
				closeMatches("nightcity_v", []string{"", "Johnny", "NightCity_V"}, 1, defaultMatchCutoff),
			)
		},
	)
}
