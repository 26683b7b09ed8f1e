package words

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	util "github.com/CodeAndHammer/wordly/internal/util"
)

// Dictionary validates guesses against a remote dictionary API
// (GET {baseURL}/{word}). When the API cannot give an answer the local list
// decides instead.
type Dictionary struct {
	baseURL  string
	client   *http.Client
	fallback *List
}

func NewDictionary(baseURL string, timeout time.Duration, fallback *List) *Dictionary {
	if fallback == nil {
		fallback = Default()
	}
	return &Dictionary{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		fallback: fallback,
	}
}

func (d *Dictionary) IsValidWord(ctx context.Context, word string) bool {
	word = strings.ToUpper(strings.TrimSpace(word))
	if d.fallback.Contains(word) {
		return true
	}
	if d.baseURL == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/"+url.PathEscape(strings.ToLower(word)), nil)
	if err != nil {
		util.LogWarn("Dictionary request for %s: %v", word, err)
		return false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		util.LogWarn(util.WithRequestID(ctx, "Dictionary unavailable, using local list for %s: %v"), word, err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode == http.StatusOK:
		return true
	case resp.StatusCode == http.StatusNotFound:
		return false
	default:
		util.LogWarn(util.WithRequestID(ctx, "Dictionary returned %d for %s, using local list"), resp.StatusCode, word)
		return false
	}
}
