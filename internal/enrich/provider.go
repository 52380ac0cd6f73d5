package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Provider identifies one image-search backend. The set is closed; None is a
// valid member that performs no lookups.
type Provider string

const (
	ProviderWikimedia   Provider = "wikimedia"
	ProviderOpenverse   Provider = "openverse"
	ProviderPexels      Provider = "pexels"
	ProviderUnsplash    Provider = "unsplash"
	ProviderRadiopaedia Provider = "radiopaedia"
	ProviderNone        Provider = "none"
)

// Providers lists the supported image providers in settings order.
func Providers() []Provider {
	return []Provider{
		ProviderWikimedia, ProviderOpenverse, ProviderPexels,
		ProviderUnsplash, ProviderRadiopaedia, ProviderNone,
	}
}

// Image is one search hit: the thumbnail to render and the landing page to
// link to.
type Image struct {
	ThumbURL string `json:"thumb_url"`
	PageURL  string `json:"page_url"`
}

// searcher is one provider's search call, ordered by relevance and capped at
// max results.
type searcher interface {
	search(ctx context.Context, keywords string, max int) ([]Image, error)
}

func newSearcher(cfg Config) (searcher, error) {
	base := httpFetcher{client: cfg.HTTPClient, userAgent: "gift-practice/1.0 (educational app)"}
	switch cfg.Provider {
	case ProviderWikimedia:
		return &wikimediaSearcher{httpFetcher: base, apiURL: orDefault(cfg.BaseURL, "https://commons.wikimedia.org/w/api.php"), thumbWidth: cfg.ThumbWidth}, nil
	case ProviderOpenverse:
		return &openverseSearcher{httpFetcher: base, apiURL: orDefault(cfg.BaseURL, "https://api.openverse.org/v1/images/")}, nil
	case ProviderPexels:
		return &pexelsSearcher{httpFetcher: base, apiURL: orDefault(cfg.BaseURL, "https://api.pexels.com/v1/search"), apiKey: cfg.PexelsAPIKey}, nil
	case ProviderUnsplash:
		return &unsplashSearcher{urlTemplate: orDefault(cfg.BaseURL, "https://source.unsplash.com/300/200/?%s")}, nil
	case ProviderRadiopaedia:
		return &radiopaediaSearcher{httpFetcher: base, siteURL: orDefault(cfg.BaseURL, "https://radiopaedia.org")}, nil
	case ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown image provider: %q", cfg.Provider)
	}
}

type httpFetcher struct {
	client    *http.Client
	userAgent string
}

func (f httpFetcher) get(ctx context.Context, url string, header map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GET %s: %s", url, res.Status)
	}
	return body, nil
}

var keywordCleanRe = regexp.MustCompile(`[^\pL\pN\s,-]`)
var spaceRe = regexp.MustCompile(`\s+`)

// cleanSearchTerm strips punctuation and collapses commas/whitespace into a
// single-space search term.
func cleanSearchTerm(keywords string) string {
	clean := keywordCleanRe.ReplaceAllString(keywords, " ")
	clean = strings.ReplaceAll(clean, ",", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(clean, " "))
}

// splitKeywordParts returns the comma-separated groups of a keyword string,
// used by providers that retry per-group when the full query finds nothing.
func splitKeywordParts(keywords string) []string {
	var out []string
	for _, p := range strings.Split(keywords, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}
