package enrich

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var keywordMarkerRe = regexp.MustCompile(`(?i)<!--\s*IMAGE_KEYWORDS:\s*([^-]+?)\s*-->`)
var markerSpaceRe = regexp.MustCompile(`[\n\r\t]+`)

// Block reasons used when a keyword block yields no images.
const (
	ReasonNoResults    = "no_results"
	ReasonProviderNone = "provider_none"
)

// BlockResult is the outcome for one IMAGE_KEYWORDS block. Err is empty on
// success, a reason tag, or the failing error's text; one block's failure
// never affects the others.
type BlockResult struct {
	Keywords string  `json:"keywords"`
	Images   []Image `json:"images"`
	Err      string  `json:"error,omitempty"`
}

// Result is the output of Resolve: the text with markers replaced by
// numbered references, the matching images column, and how long the image
// lookups took.
type Result struct {
	Text       string        `json:"text"`
	ImagesHTML string        `json:"images_html"`
	Blocks     []BlockResult `json:"blocks"`
	Elapsed    time.Duration `json:"-"`
}

// Config parameterizes a Resolver.
type Config struct {
	Provider     Provider
	PexelsAPIKey string

	// BaseURL overrides the provider endpoint; used by tests.
	BaseURL string
	// HTTPClient defaults to a 15s-timeout client.
	HTTPClient *http.Client
	// ThumbWidth is the requested thumbnail width, default 320.
	ThumbWidth int
	// Results memoizes searches per (provider, keywords); nil disables.
	Results *ResultCache
	// Bytes receives prefetched thumbnail data; nil disables prefetch.
	Bytes *ByteCache
}

// Resolver replaces IMAGE_KEYWORDS markers in explanation text with numbered
// references and a separate images column.
type Resolver struct {
	cfg      Config
	searcher searcher
}

func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = defaultHTTPClient()
	}
	s, err := newSearcher(cfg)
	if err != nil {
		return nil, err
	}
	return &Resolver{cfg: cfg, searcher: s}, nil
}

// Provider returns the resolver's backend.
func (r *Resolver) Provider() Provider { return r.cfg.Provider }

// ExtractKeywords returns every IMAGE_KEYWORDS block in order.
func ExtractKeywords(content string) []string {
	var out []string
	for _, m := range keywordMarkerRe.FindAllStringSubmatch(content, -1) {
		kw := strings.TrimSpace(markerSpaceRe.ReplaceAllString(m[1], " "))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// Resolve processes explanation text: each IMAGE_KEYWORDS marker becomes a
// numbered <sup>[i]</sup> reference and the images column carries the
// resolved images under the same numbers. Inline <img> tags are always
// normalized, including under the none provider, which otherwise strips the
// markers without fetching anything.
func (r *Resolver) Resolve(ctx context.Context, content string, maxPerBlock int) Result {
	if maxPerBlock <= 0 {
		maxPerBlock = 3
	}
	if !IsHTMLContent(content) {
		content = TextToHTML(content)
	}
	keywords := ExtractKeywords(content)

	if len(keywords) == 0 || r.cfg.Provider == ProviderNone {
		text := keywordMarkerRe.ReplaceAllString(content, "")
		var blocks []BlockResult
		for _, kw := range keywords {
			blocks = append(blocks, BlockResult{Keywords: kw, Err: ReasonProviderNone})
		}
		return Result{Text: NormalizeInlineImages(text), Blocks: blocks}
	}

	counter := 0
	text := keywordMarkerRe.ReplaceAllStringFunc(content, func(m string) string {
		kw := strings.TrimSpace(markerSpaceRe.ReplaceAllString(keywordMarkerRe.FindStringSubmatch(m)[1], " "))
		if kw == "" {
			return ""
		}
		counter++
		return fmt.Sprintf("<sup>[%d]</sup>", counter)
	})

	start := time.Now()
	blocks := make([]BlockResult, 0, len(keywords))
	for _, kw := range keywords {
		blocks = append(blocks, r.resolveBlock(ctx, kw, maxPerBlock))
	}
	r.prefetch(ctx, blocks)
	elapsed := time.Since(start)

	return Result{
		Text:       NormalizeInlineImages(text),
		ImagesHTML: buildImagesColumn(blocks),
		Blocks:     blocks,
		Elapsed:    elapsed,
	}
}

func (r *Resolver) resolveBlock(ctx context.Context, kw string, maxPerBlock int) BlockResult {
	key := fmt.Sprintf("%s|%s|%d", r.cfg.Provider, kw, maxPerBlock)
	if r.cfg.Results != nil {
		if cached, ok := r.cfg.Results.get(key); ok {
			return BlockResult{Keywords: kw, Images: cached.images, Err: cached.err}
		}
	}
	block := BlockResult{Keywords: kw}
	images, err := r.searcher.search(ctx, kw, maxPerBlock)
	switch {
	case err != nil:
		block.Err = err.Error()
	case len(images) == 0:
		block.Err = ReasonNoResults
	default:
		block.Images = images
	}
	if r.cfg.Results != nil {
		r.cfg.Results.put(key, cachedResult{images: block.Images, err: block.Err})
	}
	return block
}

// prefetch warms the byte cache with a bounded number of thumbnails. It only
// improves perceived latency; failures are ignored.
func (r *Resolver) prefetch(ctx context.Context, blocks []BlockResult) {
	if r.cfg.Bytes == nil {
		return
	}
	fetched := 0
	for _, b := range blocks {
		for _, img := range b.Images {
			if fetched >= 12 {
				return
			}
			if img.ThumbURL == "" || r.cfg.Bytes.Get(img.ThumbURL) != nil {
				continue
			}
			data, err := r.fetchBytes(ctx, img.ThumbURL)
			if err != nil {
				continue
			}
			r.cfg.Bytes.Put(img.ThumbURL, data)
			fetched++
		}
	}
}

func (r *Resolver) fetchBytes(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	res, err := r.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GET %s: %s", url, res.Status)
	}
	return io.ReadAll(res.Body)
}

// buildImagesColumn renders one bordered card per keyword block, labeled
// with the same [i] number the text references.
func buildImagesColumn(blocks []BlockResult) string {
	var b strings.Builder
	for i, block := range blocks {
		fmt.Fprintf(&b, `<div style="display:inline-block; text-align:center; margin: 0 auto 10px auto; padding: 8px; border: 1px solid #eee; border-radius: 6px;">`+"\n")
		fmt.Fprintf(&b, `  <div style="margin: 2px 0 6px 0; font-size: 0.95em; color: #444;">`+"\n")
		fmt.Fprintf(&b, `    <span style="font-weight: bold;">[%d]</span>`+"\n", i+1)
		fmt.Fprintf(&b, `    <span style="color:#666;">%s</span>`+"\n", html.EscapeString(quotedKeywords(block.Keywords)))
		fmt.Fprintf(&b, "  </div>\n")

		if len(block.Images) == 0 {
			reason := block.Err
			if reason == "" {
				reason = ReasonNoResults
			}
			fmt.Fprintf(&b, `  <div title="%s" style="font-size: 0.9em; color: #888; padding: 3px 0 8px 0;">No images</div>`+"\n", html.EscapeString(reason))
			fmt.Fprintf(&b, "  <!-- image_search_error: %s -->\n", safeCommentText(reason))
			b.WriteString("</div>\n")
			continue
		}
		for _, img := range block.Images {
			alt := "Images for keywords: " + quotedKeywords(block.Keywords)
			fmt.Fprintf(&b, `  <a href="%s" style="display:block; text-decoration:none; margin: 0 0 8px 0;">`+"\n", mediaFragmentURL(img.PageURL))
			fmt.Fprintf(&b, `    <div style="border: 1px solid #e5e5e5; border-radius: 4px; padding: 4px;">`+"\n")
			fmt.Fprintf(&b, `      <img src="%s" alt="%s" data-processed="true" style="display:block; width:100%%; height:auto; border: 1px solid #ddd; border-radius: 3px;" />`+"\n",
				img.ThumbURL, html.EscapeString(alt))
			fmt.Fprintf(&b, "    </div>\n  </a>\n")
		}
		b.WriteString("</div>\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func quotedKeywords(keywords string) string {
	parts := splitKeywordParts(keywords)
	if len(parts) == 0 {
		return `"` + keywords + `"`
	}
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		quoted = append(quoted, `"`+p+`"`)
	}
	return strings.Join(quoted, ", ")
}

// safeCommentText keeps emitted HTML comments valid: they must not contain
// a double hyphen.
func safeCommentText(s string) string {
	return strings.ReplaceAll(s, "--", "- -")
}
