package enrich

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// openverseSearcher queries the Openverse REST catalog. No key required.
type openverseSearcher struct {
	httpFetcher
	apiURL string
}

func (s *openverseSearcher) search(ctx context.Context, keywords string, max int) ([]Image, error) {
	full := normalizeOpenverseTerm(strings.ReplaceAll(keywords, ",", " "))
	out, err := s.query(ctx, full, max)
	if err != nil {
		return nil, err
	}
	if len(out) > 0 {
		return out, nil
	}
	parts := splitKeywordParts(keywords)
	if len(parts) <= 1 {
		return nil, nil
	}
	seen := map[string]bool{}
	var merged []Image
	for _, p := range parts {
		more, err := s.query(ctx, normalizeOpenverseTerm(p), max)
		if err != nil {
			continue
		}
		for _, img := range more {
			key := img.ThumbURL + "|" + img.PageURL
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, img)
			if len(merged) >= max {
				return merged, nil
			}
		}
	}
	return merged, nil
}

func (s *openverseSearcher) query(ctx context.Context, term string, max int) ([]Image, error) {
	if term == "" || max <= 0 {
		return nil, nil
	}
	q := url.Values{
		"q":         {term},
		"page_size": {"20"},
		"mature":    {"false"},
	}
	body, err := s.get(ctx, s.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Results []struct {
			Thumbnail         string `json:"thumbnail"`
			ForeignLandingURL string `json:"foreign_landing_url"`
			DetailURL         string `json:"detail_url"`
			URL               string `json:"url"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	var out []Image
	for _, r := range parsed.Results {
		landing := firstNonEmptyStr(r.ForeignLandingURL, r.DetailURL, r.URL)
		if r.Thumbnail == "" || landing == "" {
			continue
		}
		out = append(out, Image{ThumbURL: r.Thumbnail, PageURL: landing})
		if len(out) >= max {
			break
		}
	}
	return out, nil
}

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeOpenverseTerm cleans punctuation and strips diacritics; the
// Openverse index matches better on unaccented terms.
func normalizeOpenverseTerm(raw string) string {
	term := cleanSearchTerm(raw)
	if term == "" {
		return ""
	}
	if folded, _, err := transform.String(stripMarks, term); err == nil {
		term = folded
	}
	return term
}

func firstNonEmptyStr(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
