package analyzer

import (
	"context"
	"errors"

	"github.com/elonfeng/tuberate/pkg/rating"
	"github.com/elonfeng/tuberate/pkg/youtube"
)

// ErrInvalidIdentifier means the id is well formed but no such video exists.
var ErrInvalidIdentifier = errors.New("invalid video id")

// Kind classifies a pipeline failure.
type Kind string

const (
	KindNone                 Kind = ""
	KindInvalidInputFormat   Kind = "invalid_input_format"
	KindInvalidIdentifier    Kind = "invalid_identifier"
	KindFetch                Kind = "fetch"
	KindAggregationUndefined Kind = "aggregation_undefined"
	KindInternal             Kind = "internal"
)

// Classify maps an error returned by Run to its kind.
func Classify(err error) Kind {
	var fe *youtube.FetchError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, youtube.ErrInvalidInputFormat):
		return KindInvalidInputFormat
	case errors.Is(err, ErrInvalidIdentifier):
		return KindInvalidIdentifier
	case errors.As(err, &fe):
		return KindFetch
	case errors.Is(err, rating.ErrAggregationUndefined):
		return KindAggregationUndefined
	default:
		return KindInternal
	}
}

// UserMessage turns an error from Run into text that is safe to show to the
// person who submitted the video.
func UserMessage(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindInvalidInputFormat:
		return "Invalid YouTube video URL format. Please enter a valid URL."
	case KindInvalidIdentifier:
		return "Invalid Video ID. Please enter a valid YouTube video ID."
	case KindAggregationUndefined:
		return "This video has no opinionated comments to rate yet."
	case KindFetch:
		return fetchMessage(err)
	}
	return "Something went wrong while rating this video. Please try again later."
}

func fetchMessage(err error) string {
	var apiErr *youtube.APIError
	switch {
	case errors.Is(err, youtube.ErrQuotaExhausted):
		return "The YouTube API quota is exhausted. Please try again later."
	case errors.Is(err, youtube.ErrUnavailable):
		return "YouTube is not responding right now. Please try again in a minute."
	case errors.Is(err, context.DeadlineExceeded):
		return "YouTube took too long to respond. Please try again."
	case errors.As(err, &apiErr) && apiErr.Reason == "commentsDisabled":
		return "Comments are disabled for this video."
	}
	return "Could not load this video from YouTube. Please try again later."
}
