package enrich

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	imgTagRe       = regexp.MustCompile(`(?i)<img[^>]+/?>`)
	imgSrcRe       = regexp.MustCompile(`(?i)src=["']([^"']+)["']`)
	imgAltRe       = regexp.MustCompile(`(?i)alt=["']([^"']*)["']`)
	thumbSizeRe    = regexp.MustCompile(`/(\d+)px-`)
	commonsFileRe  = regexp.MustCompile(`(?i)/(?:thumb/)?[a-f0-9]/[a-f0-9]{2}/([^/]+?)(?:/\d+px-[^/]+)?$`)
	htmlContentRe  = regexp.MustCompile(`(?i)<\s*(html|body|div|p|pre|span|img|h[1-6]|ul|ol|li|strong|em|br|hr|table|tr|td|th|a)\b[^>]*>`)
	markerTokenRe  = regexp.MustCompile(`__IMAGE_KEYWORDS_TOKEN_\d+__`)
)

// NormalizeInlineImages repairs <img> tags the LLM emitted itself: Wikimedia
// thumbnails are forced to the 300px rendition (non-standard sizes get 429s)
// and each image is wrapped in a clickable link to its media host page.
// Tags carrying data-processed are left alone.
func NormalizeInlineImages(content string) string {
	return imgTagRe.ReplaceAllStringFunc(content, func(tag string) string {
		if strings.Contains(tag, "data-processed") {
			return tag
		}
		srcMatch := imgSrcRe.FindStringSubmatch(tag)
		if srcMatch == nil {
			return tag
		}
		src := fixWikimediaThumbURL(srcMatch[1])
		alt := ""
		if m := imgAltRe.FindStringSubmatch(tag); m != nil {
			alt = m[1]
		}
		return imageBlock(src, mediaPageURL(src), alt, false)
	})
}

// fixWikimediaThumbURL rewrites thumbnail renditions to the standard 300px
// size.
func fixWikimediaThumbURL(url string) string {
	if strings.Contains(url, "wikimedia.org") && strings.Contains(url, "/thumb/") {
		return thumbSizeRe.ReplaceAllString(url, "/300px-")
	}
	return url
}

// mediaPageURL maps an upload.wikimedia.org image URL to its File: page on
// Commons or Wikipedia; non-Wikimedia URLs pass through.
func mediaPageURL(url string) string {
	if !strings.Contains(url, "wikimedia.org") {
		return url
	}
	m := commonsFileRe.FindStringSubmatch(url)
	if m == nil {
		return url
	}
	filename := m[1]
	switch {
	case strings.Contains(url, "/wikipedia/en/"):
		return "https://en.wikipedia.org/wiki/File:" + filename
	default:
		return "https://commons.wikimedia.org/wiki/File:" + filename
	}
}

// mediaFragmentURL converts a File: page URL to its #/media fragment so the
// viewer opens on the image itself.
func mediaFragmentURL(pageURL string) string {
	if pageURL == "" || strings.Contains(pageURL, "#/media/") {
		return pageURL
	}
	for _, host := range []string{"en.wikipedia.org/wiki/", "commons.wikimedia.org/wiki/"} {
		if i := strings.Index(pageURL, host); i >= 0 {
			title := pageURL[i+len(host):]
			if strings.HasPrefix(title, "File:") {
				return pageURL + "#/media/" + title
			}
		}
	}
	return pageURL
}

// imageBlock renders one linked thumbnail, floated right so it does not
// break text flow.
func imageBlock(imageURL, linkURL, altText string, processed bool) string {
	processedAttr := ""
	if processed {
		processedAttr = ` data-processed="true"`
	}
	return fmt.Sprintf(
		`<span style="float: right; clear: right; width: 4em; height: 3.2em; overflow: hidden; margin: 0 0 0.2em 0.5em; text-align: center;">`+
			`<a href="%s" title="%s" style="text-decoration: none;">`+
			`<img src="%s" alt="%s"%s style="display: block; max-width: 4em; max-height: 3.2em; height: auto; width: auto; margin: 0 auto; border: 1px solid #ccc;"/>`+
			`</a></span>`,
		mediaFragmentURL(linkURL), altText, imageURL, altText, processedAttr)
}

// IsHTMLContent reports whether text already carries HTML markup.
func IsHTMLContent(text string) bool {
	return htmlContentRe.MatchString(text)
}

// TextToHTML wraps plain text in a <pre> block, escaping it while keeping
// IMAGE_KEYWORDS comments intact so they can still drive enrichment. Some
// models answer in plain text but honor the keyword protocol.
func TextToHTML(text string) string {
	tokens := map[string]string{}
	counter := 0
	tokenized := keywordMarkerRe.ReplaceAllStringFunc(text, func(comment string) string {
		token := fmt.Sprintf("__IMAGE_KEYWORDS_TOKEN_%d__", counter)
		counter++
		tokens[token] = comment
		return token
	})
	escaped := html.EscapeString(tokenized)
	escaped = markerTokenRe.ReplaceAllStringFunc(escaped, func(token string) string {
		return tokens[token]
	})
	return `<pre style="white-space: pre-wrap; font-family: Arial, sans-serif; font-size: 14px; line-height: 1.6;">` + escaped + `</pre>`
}
