package enrich

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// wikimediaSearcher queries the Commons API twice per lookup: a file-namespace
// text search for titles, then a batched imageinfo call for thumbnail URLs.
type wikimediaSearcher struct {
	httpFetcher
	apiURL     string
	thumbWidth int
}

func (s *wikimediaSearcher) search(ctx context.Context, keywords string, max int) ([]Image, error) {
	term := cleanSearchTerm(keywords)
	if term == "" {
		return nil, nil
	}
	out, err := s.searchTerm(ctx, term, max, nil)
	if err != nil {
		return nil, err
	}
	if len(out) >= max {
		return out, nil
	}
	// Full query exhausted; retry each comma-separated group.
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
		more, err := s.searchTerm(ctx, cleanSearchTerm(p), max-len(out), seen)
		if err != nil {
			continue
		}
		out = append(out, more...)
	}
	return out, nil
}

func (s *wikimediaSearcher) searchTerm(ctx context.Context, term string, max int, seen map[string]bool) ([]Image, error) {
	if term == "" || max <= 0 {
		return nil, nil
	}
	titles, err := s.searchTitles(ctx, term, 10)
	if err != nil {
		return nil, err
	}
	if len(titles) == 0 {
		return nil, nil
	}
	thumbs, err := s.imageInfoThumbs(ctx, titles)
	if err != nil {
		return nil, err
	}
	var out []Image
	for _, title := range titles {
		thumb := thumbs[title]
		if thumb == "" {
			continue
		}
		img := Image{ThumbURL: thumb, PageURL: "https://commons.wikimedia.org/wiki/" + strings.ReplaceAll(title, " ", "_")}
		key := img.ThumbURL + "|" + img.PageURL
		if seen != nil {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, img)
		if len(out) >= max {
			break
		}
	}
	return out, nil
}

var fileExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".svg"}

func (s *wikimediaSearcher) searchTitles(ctx context.Context, term string, limit int) ([]string, error) {
	q := url.Values{
		"action":      {"query"},
		"list":        {"search"},
		"srnamespace": {"6"},
		"srlimit":     {strconv.Itoa(limit)},
		"srsort":      {"relevance"},
		"format":      {"json"},
		"srsearch":    {term},
	}
	body, err := s.get(ctx, s.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	var titles []string
	for _, r := range parsed.Query.Search {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			continue
		}
		lower := strings.ToLower(title)
		for _, ext := range fileExtensions {
			if strings.HasSuffix(lower, ext) {
				titles = append(titles, title)
				break
			}
		}
	}
	return titles, nil
}

func (s *wikimediaSearcher) imageInfoThumbs(ctx context.Context, titles []string) (map[string]string, error) {
	width := s.thumbWidth
	if width <= 0 {
		width = 320
	}
	q := url.Values{
		"action":     {"query"},
		"prop":       {"imageinfo"},
		"iiprop":     {"url"},
		"format":     {"json"},
		"iiurlwidth": {strconv.Itoa(width)},
		"redirects":  {"1"},
		"titles":     {strings.Join(titles, "|")},
	}
	body, err := s.get(ctx, s.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Query struct {
			Pages map[string]struct {
				Title     string `json:"title"`
				ImageInfo []struct {
					ThumbURL string `json:"thumburl"`
					URL      string `json:"url"`
				} `json:"imageinfo"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, page := range parsed.Query.Pages {
		if page.Title == "" || len(page.ImageInfo) == 0 {
			continue
		}
		u := page.ImageInfo[0].ThumbURL
		if u == "" {
			u = page.ImageInfo[0].URL
		}
		if u != "" {
			out[page.Title] = u
		}
	}
	return out, nil
}
