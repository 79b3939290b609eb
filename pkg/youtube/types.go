package youtube

import "fmt"

// VideoDetails is the metadata shown next to a rating.
type VideoDetails struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// CommentEntry is one top-level comment as returned by a listing page.
type CommentEntry struct {
	Author    string
	LikeCount int
	Text      string
}

// CommentPage is one page of a comment listing. NextPageToken is empty on
// the last page.
type CommentPage struct {
	Comments      []CommentEntry
	NextPageToken string
}

// thumbnailPreference is the order in which thumbnail sizes are picked.
var thumbnailPreference = []string{"high", "medium", "default", "standard", "maxres"}

type videoListResponse struct {
	Items *[]struct {
		ID      string `json:"id"`
		Snippet *struct {
			Title      string `json:"title"`
			Thumbnails map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

func (r *videoListResponse) details(videoID string) (*VideoDetails, error) {
	if r.Items == nil {
		return nil, fmt.Errorf("%w: videos: missing items", ErrMalformedResponse)
	}
	if len(*r.Items) == 0 {
		return nil, ErrVideoNotFound
	}

	item := (*r.Items)[0]
	if item.Snippet == nil {
		return nil, fmt.Errorf("%w: videos: item %s has no snippet", ErrMalformedResponse, item.ID)
	}

	d := &VideoDetails{ID: videoID, Title: item.Snippet.Title}
	for _, size := range thumbnailPreference {
		if th, ok := item.Snippet.Thumbnails[size]; ok && th.URL != "" {
			d.ThumbnailURL = th.URL
			break
		}
	}
	return d, nil
}

type commentThreadListResponse struct {
	NextPageToken string           `json:"nextPageToken"`
	Items         *[]commentThread `json:"items"`
}

type commentThread struct {
	ID      string `json:"id"`
	Snippet *struct {
		TopLevelComment *struct {
			Snippet *commentSnippet `json:"snippet"`
		} `json:"topLevelComment"`
	} `json:"snippet"`
}

type commentSnippet struct {
	AuthorDisplayName string  `json:"authorDisplayName"`
	LikeCount         *int    `json:"likeCount"`
	TextOriginal      *string `json:"textOriginal"`
}

func (r *commentThreadListResponse) page() (*CommentPage, error) {
	if r.Items == nil {
		return nil, fmt.Errorf("%w: commentThreads: missing items", ErrMalformedResponse)
	}

	page := &CommentPage{
		Comments:      make([]CommentEntry, 0, len(*r.Items)),
		NextPageToken: r.NextPageToken,
	}
	for _, th := range *r.Items {
		if th.Snippet == nil || th.Snippet.TopLevelComment == nil || th.Snippet.TopLevelComment.Snippet == nil {
			return nil, fmt.Errorf("%w: comment thread %s has no top-level comment", ErrMalformedResponse, th.ID)
		}
		c := th.Snippet.TopLevelComment.Snippet
		if c.TextOriginal == nil {
			return nil, fmt.Errorf("%w: comment thread %s has no text", ErrMalformedResponse, th.ID)
		}
		if c.LikeCount == nil || *c.LikeCount < 0 {
			return nil, fmt.Errorf("%w: comment thread %s has no valid like count", ErrMalformedResponse, th.ID)
		}
		page.Comments = append(page.Comments, CommentEntry{
			Author:    c.AuthorDisplayName,
			LikeCount: *c.LikeCount,
			Text:      *c.TextOriginal,
		})
	}
	return page, nil
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}
