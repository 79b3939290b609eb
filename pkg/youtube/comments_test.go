package youtube

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	pages  []*CommentPage
	errAt  int // 1-based page that fails, 0 = never
	tokens []string
}

func (f *fakeLister) ListComments(_ context.Context, _ string, pageToken string) (*CommentPage, error) {
	f.tokens = append(f.tokens, pageToken)
	n := len(f.tokens)
	if n == f.errAt {
		return nil, errors.New("boom")
	}
	if n > len(f.pages) {
		return nil, fmt.Errorf("unexpected page %d", n)
	}
	return f.pages[n-1], nil
}

func makePage(startText, count int, next string) *CommentPage {
	p := &CommentPage{NextPageToken: next}
	for i := 0; i < count; i++ {
		p.Comments = append(p.Comments, CommentEntry{
			Author:    fmt.Sprintf("user%d", startText+i),
			LikeCount: i,
			Text:      fmt.Sprintf("comment %d", startText+i),
		})
	}
	return p
}

func TestFetchCommentsPaginates(t *testing.T) {
	lister := &fakeLister{pages: []*CommentPage{
		makePage(0, 100, "tok-2"),
		makePage(100, 100, "tok-3"),
		makePage(200, 37, ""),
	}}

	records, err := FetchComments(context.Background(), lister, "abc123")
	require.NoError(t, err)
	require.Len(t, records, 237)

	for i, r := range records {
		assert.Equal(t, i+1, r.ID)
		assert.Equal(t, fmt.Sprintf("comment %d", i), r.Text)
	}
	assert.Equal(t, []string{"", "tok-2", "tok-3"}, lister.tokens)
}

func TestFetchCommentsEmptyListing(t *testing.T) {
	lister := &fakeLister{pages: []*CommentPage{{}}}

	records, err := FetchComments(context.Background(), lister, "abc123")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchCommentsFailures(t *testing.T) {
	tests := []struct {
		name     string
		errAt    int
		wantPage int
	}{
		{"first page", 1, 1},
		{"later page", 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &fakeLister{
				pages: []*CommentPage{makePage(0, 100, "tok-2"), makePage(100, 5, "")},
				errAt: tt.errAt,
			}

			records, err := FetchComments(context.Background(), lister, "abc123")
			assert.Nil(t, records)

			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantPage, fe.Page)
			assert.Equal(t, "abc123", fe.VideoID)
		})
	}
}

func TestFetcherStopsOnRepeatedToken(t *testing.T) {
	lister := &fakeLister{pages: []*CommentPage{
		makePage(0, 1, "same"),
		makePage(1, 1, "same"),
	}}

	_, err := FetchComments(context.Background(), lister, "abc123")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestFetcherMaxPages(t *testing.T) {
	lister := &fakeLister{pages: []*CommentPage{
		makePage(0, 1, "a"),
		makePage(1, 1, "b"),
		makePage(2, 1, ""),
	}}

	f := &Fetcher{Lister: lister, MaxPages: 2}
	_, err := f.Fetch(context.Background(), "abc123")

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 3, fe.Page)
	assert.Len(t, lister.tokens, 2)
}
