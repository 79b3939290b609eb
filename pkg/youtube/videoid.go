package youtube

import (
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ExtractVideoID pulls the video id out of a watch URL. The id is the text
// after the first "v=" up to the next '&' or '#'. Input without "v=" is
// rejected with ErrInvalidInputFormat.
func ExtractVideoID(input string) (string, error) {
	_, after, ok := strings.Cut(strings.TrimSpace(input), "v=")
	if !ok {
		return "", ErrInvalidInputFormat
	}

	id, _, _ := strings.Cut(after, "&")
	id, _, _ = strings.Cut(id, "#")
	if !videoIDPattern.MatchString(id) {
		return "", ErrInvalidInputFormat
	}
	return id, nil
}

// WatchURL returns the canonical watch page for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
