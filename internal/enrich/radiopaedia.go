package enrich

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

// radiopaediaSearcher scrapes the public case search page: there is no
// anonymous JSON API. Each hit is one case link whose og:image meta tag
// provides a representative image.
type radiopaediaSearcher struct {
	httpFetcher
	siteURL string
}

var (
	caseLinkRe           = regexp.MustCompile(`(?i)href="(/cases/[^"?#]+)`)
	ogImageRe            = regexp.MustCompile(`(?i)<meta\s+property="og:image"\s+content="([^"]+)"`)
	caseImageRe          = regexp.MustCompile(`(?i)https://prod-images-static\.radiopaedia\.org/[^"\s>]+\.(?:jpg|jpeg|png)`)
	radiopaediaImageHost = "prod-images-static.radiopaedia.org/"
)

func (s *radiopaediaSearcher) search(ctx context.Context, keywords string, max int) ([]Image, error) {
	term := cleanSearchTerm(keywords)
	out, err := s.collect(ctx, term, max, nil)
	if err != nil {
		return nil, err
	}
	if len(out) >= max {
		return out, nil
	}
	parts := splitKeywordParts(keywords)
	if len(parts) <= 1 {
		return out, nil
	}
	seen := map[string]bool{}
	for _, img := range out {
		seen[img.ThumbURL+"|"+img.PageURL] = true
	}
	for _, p := range parts {
		if len(out) >= max {
			break
		}
		more, err := s.collect(ctx, cleanSearchTerm(p), max-len(out), seen)
		if err != nil {
			continue
		}
		out = append(out, more...)
	}
	return out, nil
}

func (s *radiopaediaSearcher) collect(ctx context.Context, term string, needed int, seen map[string]bool) ([]Image, error) {
	if term == "" || needed <= 0 {
		return nil, nil
	}
	limit := needed * 6
	if limit < 12 {
		limit = 12
	}
	caseURLs, err := s.searchCaseURLs(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	var out []Image
	for _, caseURL := range caseURLs {
		img := s.caseOGImage(ctx, caseURL)
		if img == "" {
			continue
		}
		key := img + "|" + caseURL
		if seen != nil {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, Image{ThumbURL: img, PageURL: caseURL})
		if len(out) >= needed {
			break
		}
	}
	return out, nil
}

func (s *radiopaediaSearcher) searchCaseURLs(ctx context.Context, term string, limit int) ([]string, error) {
	q := url.Values{
		"lang":  {"gb"},
		"scope": {"cases"},
		"q":     {term},
	}
	body, err := s.get(ctx, s.siteURL+"/search?"+q.Encode(), map[string]string{
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	})
	if err != nil {
		return nil, err
	}
	var out []string
	seen := map[string]bool{}
	for _, m := range caseLinkRe.FindAllStringSubmatch(string(body), -1) {
		href := m[1]
		if strings.HasPrefix(href, "/cases/system/") || href == "/cases/new" {
			continue
		}
		if seen[href] {
			continue
		}
		seen[href] = true
		out = append(out, s.siteURL+href+"?lang=gb")
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// caseOGImage prefers the og:image meta tag, falling back to any embedded
// static-image URL. Site assets (logos) outside the image host are ignored.
func (s *radiopaediaSearcher) caseOGImage(ctx context.Context, caseURL string) string {
	body, err := s.get(ctx, caseURL, map[string]string{
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	})
	if err != nil {
		return ""
	}
	html := string(body)
	if m := ogImageRe.FindStringSubmatch(html); m != nil {
		candidate := strings.TrimSpace(m[1])
		if candidate != "" && strings.Contains(candidate, radiopaediaImageHost) {
			return candidate
		}
	}
	if m := caseImageRe.FindString(html); m != "" {
		return strings.TrimSpace(m)
	}
	return ""
}
