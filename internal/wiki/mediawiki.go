package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/news-similarity/engine/pkg/circuitbreaker"
	"github.com/news-similarity/engine/pkg/logger"
)

// MediaWiki is a live Provider against the MediaWiki action API. All
// calls go through a pacing limiter (the external source asks for
// spaced requests) and a circuit breaker.
type MediaWiki struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.Breaker
}

// NewMediaWiki builds the provider. fetchDelay is the minimum spacing
// between live requests (0.5 s by default upstream).
func NewMediaWiki(baseURL, userAgent string, timeout, fetchDelay time.Duration) *MediaWiki {
	return &MediaWiki{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Every(fetchDelay), 1),
		breaker: circuitbreaker.New("mediawiki", circuitbreaker.Config{
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
			Logger:           logger.L(),
		}),
	}
}

func (m *MediaWiki) Search(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(limit))
	params.Set("format", "json")

	body, err := m.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	titles := make([]string, 0, len(resp.Query.Search))
	for _, r := range resp.Query.Search {
		titles = append(titles, r.Title)
	}

	logger.Debug("Encyclopedia search completed",
		zap.String("query", query),
		zap.Int("results", len(titles)),
	)
	return titles, nil
}

func (m *MediaWiki) FetchByTitle(ctx context.Context, title string) (*Page, error) {
	params := m.fetchParams()
	params.Set("titles", title)
	return m.fetch(ctx, params)
}

func (m *MediaWiki) FetchByID(ctx context.Context, id int64) (*Page, error) {
	params := m.fetchParams()
	params.Set("pageids", strconv.FormatInt(id, 10))
	return m.fetch(ctx, params)
}

func (m *MediaWiki) fetchParams() url.Values {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts|pageprops")
	params.Set("ppprop", "disambiguation")
	params.Set("redirects", "1")
	params.Set("format", "json")
	return params
}

func (m *MediaWiki) fetch(ctx context.Context, params url.Values) (*Page, error) {
	body, err := m.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Query struct {
			Pages map[string]struct {
				PageID    int64   `json:"pageid"`
				Title     string  `json:"title"`
				Extract   string  `json:"extract"`
				Missing   *string `json:"missing"`
				PageProps *struct {
					Disambiguation *string `json:"disambiguation"`
				} `json:"pageprops"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for key, page := range resp.Query.Pages {
		if key == "-1" || page.Missing != nil || page.PageID == 0 {
			return nil, ErrNotFound
		}
		if page.PageProps != nil && page.PageProps.Disambiguation != nil {
			return nil, fmt.Errorf("%w: %s", ErrDisambiguation, page.Title)
		}

		content := flattenExtract(page.Extract)
		if content == "" {
			return nil, fmt.Errorf("%w: empty extract for %s", ErrMalformed, page.Title)
		}

		return &Page{ID: page.PageID, Title: page.Title, Content: content}, nil
	}

	return nil, ErrNotFound
}

func (m *MediaWiki) get(ctx context.Context, params url.Values) ([]byte, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body []byte
	err := m.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s?%s", m.baseURL, params.Encode()), nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", m.userAgent)

		resp, err := m.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("encyclopedia returned status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// flattenExtract strips the HTML markup the extracts endpoint returns,
// leaving plain text.
func flattenExtract(extract string) string {
	if extract == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(extract))
	if err != nil {
		return strings.TrimSpace(extract)
	}

	doc.Find("style, table").Remove()
	return strings.TrimSpace(doc.Text())
}
