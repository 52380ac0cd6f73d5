package llm

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// restClient is the shared request path of every HTTP-based provider:
// mirror the request to the side log, execute, mirror the response, and turn
// non-2xx statuses into a provider-tagged *Error carrying status, headers
// and body.
type restClient struct {
	provider Provider
	http     *http.Client
	log      *HTTPLog
}

func (c *restClient) do(ctx context.Context, method, url string, header map[string]string, body []byte) (int, http.Header, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, nil, &Error{Provider: c.provider, Message: err.Error()}
	}
	req.Header.Set("User-Agent", "gift-practice/1.0")
	req.Header.Set("Accept", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	c.log.Request(method, url, req.Header, body)

	res, err := c.http.Do(req)
	if err != nil {
		c.log.Error(err)
		return 0, nil, nil, &Error{Provider: c.provider, Message: err.Error()}
	}
	defer res.Body.Close()
	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		c.log.Error(err)
		return 0, nil, nil, &Error{Provider: c.provider, Message: err.Error()}
	}

	c.log.Response(res.StatusCode, res.Header, respBody)

	if res.StatusCode/100 != 2 {
		return res.StatusCode, res.Header, respBody, &Error{
			Provider:   c.provider,
			StatusCode: res.StatusCode,
			Header:     res.Header,
			Body:       string(respBody),
		}
	}
	return res.StatusCode, res.Header, respBody, nil
}
