// Package rating turns per-comment sentiment scores into a single bounded
// video rating.
package rating

import (
	"errors"
	"fmt"
	"math"

	"github.com/elonfeng/tuberate/pkg/sentiment"
	"github.com/elonfeng/tuberate/pkg/youtube"
)

const (
	// MaxRating and MinRating bound every rating.
	MaxRating = 5.0
	MinRating = 0.0

	// NegativeWeight scales the negative mean in the rating formula.
	NegativeWeight = 1.5
)

// ErrAggregationUndefined means no comment carried a non-zero compound score,
// so the means the rating is built from do not exist.
var ErrAggregationUndefined = errors.New("no opinionated comments to rate")

// ScoredComment is a comment joined with its polarity score.
type ScoredComment struct {
	youtube.CommentRecord
	Score sentiment.PolarityScore `json:"score"`
}

// AggregateStats summarises the opinionated comments of a video.
type AggregateStats struct {
	CompoundMean float64 `json:"compound_mean"`
	PositiveMean float64 `json:"positive_mean"`
	NegativeMean float64 `json:"negative_mean"`
	// Included counts comments with a non-zero compound, Excluded the rest.
	Included int `json:"included"`
	Excluded int `json:"excluded"`
}

// tier is one step of the positive weight ladder.
type tier struct {
	margin float64
	weight float64
}

// positiveTiers is checked in order and the first match wins. The margins
// nest, so reordering changes the result.
var positiveTiers = []tier{
	{margin: 0.30, weight: 5},
	{margin: 0.20, weight: 3},
	{margin: 0.15, weight: 2},
}

// Join pairs every record with the score stored under its id. It fails if a
// record has no score or a score has no record.
func Join(records []youtube.CommentRecord, scores map[int]sentiment.PolarityScore) ([]ScoredComment, error) {
	if len(records) != len(scores) {
		return nil, fmt.Errorf("join %d comments with %d scores", len(records), len(scores))
	}

	out := make([]ScoredComment, 0, len(records))
	seen := make(map[int]bool, len(records))
	for _, r := range records {
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate comment id %d", r.ID)
		}
		seen[r.ID] = true

		s, ok := scores[r.ID]
		if !ok {
			return nil, fmt.Errorf("no score for comment %d", r.ID)
		}
		out = append(out, ScoredComment{CommentRecord: r, Score: s})
	}
	return out, nil
}

// Aggregate averages compound, positive and negative scores over the
// comments whose compound is not exactly zero.
func Aggregate(scored []ScoredComment) (AggregateStats, error) {
	var stats AggregateStats
	var compound, pos, neg float64

	for _, c := range scored {
		if c.Score.Compound == 0 {
			stats.Excluded++
			continue
		}
		stats.Included++
		compound += c.Score.Compound
		pos += c.Score.Positive
		neg += c.Score.Negative
	}

	if stats.Included == 0 {
		return stats, ErrAggregationUndefined
	}

	n := float64(stats.Included)
	stats.CompoundMean = compound / n
	stats.PositiveMean = pos / n
	stats.NegativeMean = neg / n
	return stats, nil
}

// PositiveWeight picks the multiplier for the positive mean from how far it
// leads the negative mean.
func PositiveWeight(positiveMean, negativeMean float64) float64 {
	for _, t := range positiveTiers {
		if positiveMean > negativeMean+t.margin {
			return t.weight
		}
	}
	return 1
}

// FromStats applies the rating formula, clamps to [0, 5] and rounds to two
// decimals.
func FromStats(stats AggregateStats) float64 {
	weight := PositiveWeight(stats.PositiveMean, stats.NegativeMean)

	r := (stats.CompoundMean+1)/2*3 +
		stats.PositiveMean*weight -
		stats.NegativeMean*NegativeWeight

	r = max(MinRating, min(MaxRating, r))
	return math.Round(r*100) / 100
}

// Compute aggregates scored comments and rates them.
func Compute(scored []ScoredComment) (float64, AggregateStats, error) {
	stats, err := Aggregate(scored)
	if err != nil {
		return 0, stats, err
	}
	return FromStats(stats), stats, nil
}
