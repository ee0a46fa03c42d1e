package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/white-fusion/domain"
	"github.com/satriahrh/white-fusion/utils/log"
)

const defaultBaseURL = "https://api.tavily.com"

// Tavily is a domain.WebSearcher backed by the Tavily search API.
type Tavily struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Tavily)

func WithBaseURL(url string) Option {
	return func(t *Tavily) {
		if url != "" {
			t.baseURL = url
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(t *Tavily) { t.httpClient = c }
}

func NewTavily(apiKey string, timeout time.Duration, opts ...Option) *Tavily {
	t := &Tavily{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []domain.SearchResult `json:"results"`
}

func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	body, err := json.Marshal(searchRequest{APIKey: t.apiKey, Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tavily error: %s - %s", resp.Status, string(data))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	if maxResults > 0 && len(out.Results) > maxResults {
		out.Results = out.Results[:maxResults]
	}

	log.WithCtx(ctx).Debug("Web search done", zap.String("query", query), zap.Int("results", len(out.Results)))
	return out.Results, nil
}
