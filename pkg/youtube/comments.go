package youtube

import (
	"context"
	"errors"
	"fmt"
)

// CommentRecord is one fetched comment. ID is its 1-based position in fetch
// order across all pages.
type CommentRecord struct {
	ID        int    `json:"id" db:"position"`
	Author    string `json:"author" db:"author"`
	LikeCount int    `json:"like_count" db:"like_count"`
	Text      string `json:"text" db:"text"`
}

// CommentLister serves pages of top-level comments. *Client implements it.
type CommentLister interface {
	ListComments(ctx context.Context, videoID, pageToken string) (*CommentPage, error)
}

// Fetcher walks every page of a comment listing.
type Fetcher struct {
	Lister CommentLister
	// MaxPages stops runaway listings; zero means no limit.
	MaxPages int
}

// FetchComments retrieves all top-level comments of a video with no page
// limit.
func FetchComments(ctx context.Context, l CommentLister, videoID string) ([]CommentRecord, error) {
	f := &Fetcher{Lister: l}
	return f.Fetch(ctx, videoID)
}

// Fetch requests pages one after another, following continuation tokens
// until a page carries none. Records keep the order in which the pages
// returned them. Any failed page fails the whole fetch with a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) ([]CommentRecord, error) {
	var (
		records []CommentRecord
		token   string
		seen    = make(map[string]bool)
	)

	for page := 1; ; page++ {
		if f.MaxPages > 0 && page > f.MaxPages {
			return nil, &FetchError{VideoID: videoID, Op: "commentThreads", Page: page,
				Err: fmt.Errorf("listing exceeds %d pages", f.MaxPages)}
		}

		p, err := f.Lister.ListComments(ctx, videoID, token)
		if err != nil {
			return nil, pageError(videoID, page, err)
		}
		if p == nil {
			return nil, pageError(videoID, page, fmt.Errorf("%w: empty page", ErrMalformedResponse))
		}

		for _, c := range p.Comments {
			records = append(records, CommentRecord{
				ID:        len(records) + 1,
				Author:    c.Author,
				LikeCount: c.LikeCount,
				Text:      c.Text,
			})
		}

		if p.NextPageToken == "" {
			return records, nil
		}
		if seen[p.NextPageToken] {
			return nil, pageError(videoID, page,
				fmt.Errorf("%w: continuation token %q repeated", ErrMalformedResponse, p.NextPageToken))
		}
		seen[p.NextPageToken] = true
		token = p.NextPageToken
	}
}

func pageError(videoID string, page int, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{VideoID: videoID, Op: "commentThreads", Page: page, Err: err}
}
