// Package sentiment adapts a lexicon-based polarity scorer to the rating
// pipeline.
package sentiment

import "github.com/jonreiter/govader"

// PolarityScore is the per-text output of the lexicon scorer.
type PolarityScore struct {
	Negative float64 `json:"neg" db:"neg"`
	Neutral  float64 `json:"neu" db:"neu"`
	Positive float64 `json:"pos" db:"pos"`
	Compound float64 `json:"compound" db:"compound"`
}

// Scorer maps normalized text to polarity scores. Implementations must be
// deterministic and must not perform I/O.
type Scorer interface {
	Score(normalized string) PolarityScore
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(normalized string) PolarityScore

func (f ScorerFunc) Score(normalized string) PolarityScore { return f(normalized) }

// Lexicon scores text with the VADER lexicon. The lexicon is loaded once in
// NewLexicon and only read afterwards, so one Lexicon can serve every request.
type Lexicon struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewLexicon loads the VADER lexicon.
func NewLexicon() *Lexicon {
	return &Lexicon{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score returns the VADER polarity scores of normalized. Empty input scores
// all zero.
func (l *Lexicon) Score(normalized string) PolarityScore {
	if normalized == "" {
		return PolarityScore{}
	}
	s := l.analyzer.PolarityScores(normalized)
	return PolarityScore{
		Negative: s.Negative,
		Neutral:  s.Neutral,
		Positive: s.Positive,
		Compound: s.Compound,
	}
}
