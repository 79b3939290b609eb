package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	endpoint string
	status   int
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (o *recordingObserver) ObserveRequest(endpoint string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, recordedCall{endpoint, status})
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL), WithRateLimit(0, 0)}, opts...)
	return NewClient("test-key", opts...)
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func TestClientVideoDetails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "snippet", r.URL.Query().Get("part"))
		assert.Equal(t, "abc123", r.URL.Query().Get("id"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		writeBody(w, http.StatusOK, `{"items":[{"id":"abc123","snippet":{"title":"A video",
			"thumbnails":{"default":{"url":"https://i.ytimg.com/d.jpg"},"high":{"url":"https://i.ytimg.com/h.jpg"}}}}]}`)
	})

	d, err := c.VideoDetails(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, &VideoDetails{ID: "abc123", Title: "A video", ThumbnailURL: "https://i.ytimg.com/h.jpg"}, d)
}

func TestClientVideoDetailsThumbnailFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"items":[{"id":"x","snippet":{"title":"t",
			"thumbnails":{"default":{"url":"https://i.ytimg.com/d.jpg"}}}}]}`)
	})

	d, err := c.VideoDetails(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "https://i.ytimg.com/d.jpg", d.ThumbnailURL)
}

func TestClientVideoDetailsErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"not found", http.StatusOK, `{"items":[]}`, ErrVideoNotFound},
		{"missing items", http.StatusOK, `{}`, ErrMalformedResponse},
		{"missing snippet", http.StatusOK, `{"items":[{"id":"x"}]}`, ErrMalformedResponse},
		{"invalid json", http.StatusOK, `{"items":`, ErrMalformedResponse},
		{"quota", http.StatusForbidden,
			`{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded"}]}}`, ErrQuotaExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeBody(w, tt.status, tt.body)
			})
			_, err := c.VideoDetails(context.Background(), "x")
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClientAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusForbidden,
			`{"error":{"code":403,"message":"The video has disabled comments.","errors":[{"reason":"commentsDisabled"}]}}`)
	})

	_, err := c.ListComments(context.Background(), "x", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "commentsDisabled", apiErr.Reason)
	assert.Equal(t, "The video has disabled comments.", apiErr.Message)
}

func TestClientListComments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/commentThreads", r.URL.Path)
		assert.Equal(t, "abc123", q.Get("videoId"))
		assert.Equal(t, "100", q.Get("maxResults"))
		assert.Equal(t, "snippet", q.Get("part"))

		switch q.Get("pageToken") {
		case "":
			writeBody(w, http.StatusOK, `{"nextPageToken":"p2","items":[
				{"id":"t1","snippet":{"topLevelComment":{"snippet":{"authorDisplayName":"ann","likeCount":3,"textOriginal":"great video"}}}},
				{"id":"t2","snippet":{"topLevelComment":{"snippet":{"authorDisplayName":"bob","likeCount":0,"textOriginal":"meh"}}}}]}`)
		case "p2":
			writeBody(w, http.StatusOK, `{"items":[
				{"id":"t3","snippet":{"topLevelComment":{"snippet":{"authorDisplayName":"cy","likeCount":1,"textOriginal":"awful"}}}}]}`)
		default:
			t.Errorf("unexpected page token %q", q.Get("pageToken"))
		}
	})

	records, err := FetchComments(context.Background(), c, "abc123")
	require.NoError(t, err)
	assert.Equal(t, []CommentRecord{
		{ID: 1, Author: "ann", LikeCount: 3, Text: "great video"},
		{ID: 2, Author: "bob", LikeCount: 0, Text: "meh"},
		{ID: 3, Author: "cy", LikeCount: 1, Text: "awful"},
	}, records)
}

func TestClientListCommentsMalformed(t *testing.T) {
	bodies := map[string]string{
		"no items":          `{"nextPageToken":"x"}`,
		"no top level":      `{"items":[{"id":"t1","snippet":{}}]}`,
		"no text":           `{"items":[{"id":"t1","snippet":{"topLevelComment":{"snippet":{"authorDisplayName":"a","likeCount":1}}}}]}`,
		"negative likes":    `{"items":[{"id":"t1","snippet":{"topLevelComment":{"snippet":{"likeCount":-1,"textOriginal":"x"}}}}]}`,
		"missing likeCount": `{"items":[{"id":"t1","snippet":{"topLevelComment":{"snippet":{"textOriginal":"x"}}}}]}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeBody(w, http.StatusOK, body)
			})
			_, err := c.ListComments(context.Background(), "x", "")
			require.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestClientRequiresAPIKey(t *testing.T) {
	c := NewClient("")
	_, err := c.VideoDetails(context.Background(), "x")
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClientRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithRequestTimeout(50*time.Millisecond))
	defer close(release)

	_, err := c.ListComments(context.Background(), "x", "")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "test-key")
}

func TestClientObserver(t *testing.T) {
	obs := &recordingObserver{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "videos") {
			writeBody(w, http.StatusNotFound, `{}`)
			return
		}
		writeBody(w, http.StatusOK, `{"items":[]}`)
	}, WithObserver(obs))

	_, _ = c.VideoDetails(context.Background(), "x")
	_, _ = c.ListComments(context.Background(), "x", "")

	assert.Equal(t, []recordedCall{
		{"videos", http.StatusNotFound},
		{"commentThreads", http.StatusOK},
	}, obs.calls)
}

func TestClientCircuitBreakerOpensOnServerErrors(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		writeBody(w, http.StatusServiceUnavailable, `{"error":{"message":"backend error"}}`)
	}, WithCircuitBreaker(2, time.Minute))

	for i := 0; i < 2; i++ {
		_, err := c.VideoDetails(context.Background(), "abc123")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	}

	_, err := c.VideoDetails(context.Background(), "abc123")
	assert.ErrorIs(t, err, ErrUnavailable)
	mu.Lock()
	assert.Equal(t, 2, hits)
	mu.Unlock()
}

func TestClientCircuitBreakerIgnoresClientErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusForbidden, `{"error":{"message":"disabled","errors":[{"reason":"commentsDisabled"}]}}`)
	}, WithCircuitBreaker(1, time.Minute))

	for i := 0; i < 3; i++ {
		_, err := c.ListComments(context.Background(), "abc123", "")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
}
