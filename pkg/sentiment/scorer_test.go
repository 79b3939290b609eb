package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexiconScore(t *testing.T) {
	lex := NewLexicon()

	t.Run("empty is neutral", func(t *testing.T) {
		s := lex.Score("")
		assert.Zero(t, s.Compound)
		assert.Zero(t, s.Positive)
		assert.Zero(t, s.Negative)
	})

	t.Run("positive word", func(t *testing.T) {
		s := lex.Score("love")
		assert.Greater(t, s.Compound, 0.0)
		assert.Greater(t, s.Positive, s.Negative)
	})

	t.Run("negative word", func(t *testing.T) {
		s := lex.Score("hate")
		assert.Less(t, s.Compound, 0.0)
		assert.Greater(t, s.Negative, s.Positive)
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, lex.Score("love video great"), lex.Score("love video great"))
	})

	t.Run("bounded", func(t *testing.T) {
		s := lex.Score("love love love great best amaz awesom")
		assert.LessOrEqual(t, s.Compound, 1.0)
		assert.GreaterOrEqual(t, s.Compound, -1.0)
		for _, v := range []float64{s.Negative, s.Neutral, s.Positive} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	})
}

func TestScorerFunc(t *testing.T) {
	var got string
	var s Scorer = ScorerFunc(func(text string) PolarityScore {
		got = text
		return PolarityScore{Compound: 0.5}
	})

	assert.Equal(t, PolarityScore{Compound: 0.5}, s.Score("abc"))
	assert.Equal(t, "abc", got)
}
