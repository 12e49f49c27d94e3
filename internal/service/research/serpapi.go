// Package research fetches web search digests used as optional chat context.
package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// NoResult is returned when a search produced nothing worth quoting.
const NoResult = "No good search result found"

// noAnswerMarkers flag digests that carry no usable answer.
var noAnswerMarkers = []string{"I don't know", "No good search result"}

// Usable reports whether a digest should be injected into a prompt.
func Usable(digest string) bool {
	if strings.TrimSpace(digest) == "" {
		return false
	}
	for _, marker := range noAnswerMarkers {
		if strings.Contains(digest, marker) {
			return false
		}
	}
	return true
}

// Config configures the SerpAPI client.
type Config struct {
	APIKey  string
	Engine  string
	BaseURL string
	Timeout time.Duration
}

// SerpAPI queries serpapi.com and condenses the response into plain text.
type SerpAPI struct {
	apiKey  string
	engine  string
	baseURL string
	client  *http.Client
}

// NewSerpAPI creates a SerpAPI client.
func NewSerpAPI(cfg Config) (*SerpAPI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("serpapi: api key is required")
	}
	if cfg.Engine == "" {
		cfg.Engine = "bing"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://serpapi.com/search.json"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SerpAPI{
		apiKey:  cfg.APIKey,
		engine:  cfg.Engine,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Search runs query and returns a digest, or NoResult when nothing matched.
func (s *SerpAPI) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("engine", s.engine)
	params.Set("q", query)
	params.Set("gl", "us")
	params.Set("hl", "en")
	params.Set("api_key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("serpapi request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("serpapi read: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("serpapi http %d: %s", resp.StatusCode, gjson.GetBytes(body, "error").String())
	}
	if !gjson.ValidBytes(body) {
		return "", errors.New("serpapi: invalid json response")
	}

	return Digest(gjson.ParseBytes(body))
}

// Digest extracts the most direct answer from a SerpAPI response: answer
// box, then knowledge graph, then organic result snippets.
func Digest(res gjson.Result) (string, error) {
	if e := res.Get("error"); e.Exists() {
		return "", fmt.Errorf("serpapi: %s", e.String())
	}

	for _, path := range []string{
		"answer_box.answer",
		"answer_box.snippet",
		"knowledge_graph.description",
	} {
		if v := strings.TrimSpace(res.Get(path).String()); v != "" {
			return v, nil
		}
	}

	var snippets []string
	res.Get("organic_results.#.snippet").ForEach(func(_, v gjson.Result) bool {
		if s := strings.TrimSpace(v.String()); s != "" {
			snippets = append(snippets, s)
		}
		return true
	})
	if len(snippets) > 0 {
		return strings.Join(snippets, "\n"), nil
	}

	return NoResult, nil
}
