package enrich

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// unsplashSearcher builds a templated Unsplash Source URL instead of calling
// a search API; the service redirects to a matching photo. Known to be
// unstable (503s), which surfaces as a broken image, not an error here.
type unsplashSearcher struct {
	urlTemplate string
}

func (s *unsplashSearcher) search(ctx context.Context, keywords string, max int) ([]Image, error) {
	clean := keywordCleanRe.ReplaceAllString(keywords, "")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return nil, nil
	}
	formatted := strings.ReplaceAll(clean, " ", ",")
	for strings.Contains(formatted, ",,") {
		formatted = strings.ReplaceAll(formatted, ",,", ",")
	}
	u := fmt.Sprintf(s.urlTemplate, url.QueryEscape(formatted))
	return []Image{{ThumbURL: u, PageURL: u}}, nil
}
