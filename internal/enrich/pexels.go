package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
)

// pexelsSearcher queries the Pexels photo API. A key is required; without
// one the search fails with a tagged reason instead of hitting the network.
type pexelsSearcher struct {
	httpFetcher
	apiURL string
	apiKey string
}

var errPexelsKeyMissing = errors.New("pexels: missing API key")

func (s *pexelsSearcher) search(ctx context.Context, keywords string, max int) ([]Image, error) {
	if s.apiKey == "" {
		return nil, errPexelsKeyMissing
	}
	term := cleanSearchTerm(keywords)
	if term == "" {
		return nil, nil
	}
	perPage := max
	if perPage < 1 {
		perPage = 1
	}
	if perPage > 15 {
		perPage = 15
	}
	q := url.Values{
		"query":    {term},
		"per_page": {strconv.Itoa(perPage)},
	}
	body, err := s.get(ctx, s.apiURL+"?"+q.Encode(), map[string]string{"Authorization": s.apiKey})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Photos []struct {
			URL string `json:"url"`
			Src struct {
				Medium   string `json:"medium"`
				Small    string `json:"small"`
				Tiny     string `json:"tiny"`
				Original string `json:"original"`
			} `json:"src"`
		} `json:"photos"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	var out []Image
	for _, p := range parsed.Photos {
		thumb := firstNonEmptyStr(p.Src.Medium, p.Src.Small, p.Src.Tiny, p.Src.Original)
		if thumb == "" || p.URL == "" {
			continue
		}
		out = append(out, Image{ThumbURL: thumb, PageURL: p.URL})
		if len(out) >= max {
			break
		}
	}
	return out, nil
}
