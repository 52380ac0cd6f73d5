package enrich_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gift-practice/giftpractice/internal/enrich"
)

func newResolver(t *testing.T, cfg enrich.Config) *enrich.Resolver {
	t.Helper()
	r, err := enrich.NewResolver(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestExtractKeywords(t *testing.T) {
	content := `<p>one</p><!-- IMAGE_KEYWORDS: femur, anatomy -->
<p>two</p><!--image_keywords: tibia -->`
	got := enrich.ExtractKeywords(content)
	if len(got) != 2 || got[0] != "femur, anatomy" || got[1] != "tibia" {
		t.Fatalf("keywords = %v", got)
	}
}

func TestResolveNoneStripsMarkersWithoutNetwork(t *testing.T) {
	// No HTTP client override: any network call would hit real hosts and
	// hang the test, so the pass itself is the proof.
	r := newResolver(t, enrich.Config{Provider: enrich.ProviderNone})
	res := r.Resolve(context.Background(), `<p>text<!-- IMAGE_KEYWORDS: femur --></p>`, 3)
	if strings.Contains(res.Text, "IMAGE_KEYWORDS") {
		t.Fatalf("marker survived: %q", res.Text)
	}
	if res.ImagesHTML != "" {
		t.Fatalf("images column = %q", res.ImagesHTML)
	}
	if len(res.Blocks) != 1 || res.Blocks[0].Err != enrich.ReasonProviderNone {
		t.Fatalf("blocks = %+v", res.Blocks)
	}
}

func TestResolveNoneStillNormalizesInlineImages(t *testing.T) {
	r := newResolver(t, enrich.Config{Provider: enrich.ProviderNone})
	src := `<p><img src="https://upload.wikimedia.org/wikipedia/commons/thumb/a/ab/Bone.svg/800px-Bone.svg.png"/></p>`
	res := r.Resolve(context.Background(), src, 3)
	if !strings.Contains(res.Text, "/300px-") {
		t.Fatalf("thumb size not fixed: %q", res.Text)
	}
	if !strings.Contains(res.Text, `href="https://commons.wikimedia.org/wiki/File:Bone.svg`) {
		t.Fatalf("media link missing: %q", res.Text)
	}
}

func TestResolveNumbersBlocksAndColumn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		fmt.Fprintf(w, `{"results":[{"thumbnail":"http://img/%s.jpg","foreign_landing_url":"http://page/%s"}]}`, q, q)
	}))
	defer srv.Close()

	r := newResolver(t, enrich.Config{Provider: enrich.ProviderOpenverse, BaseURL: srv.URL})
	src := `<p>first<!-- IMAGE_KEYWORDS: alpha --> second<!-- IMAGE_KEYWORDS: beta --></p>`
	res := r.Resolve(context.Background(), src, 3)

	if !strings.Contains(res.Text, "<sup>[1]</sup>") || !strings.Contains(res.Text, "<sup>[2]</sup>") {
		t.Fatalf("references missing: %q", res.Text)
	}
	if strings.Contains(res.Text, "IMAGE_KEYWORDS") {
		t.Fatalf("marker survived: %q", res.Text)
	}
	if len(res.Blocks) != 2 || len(res.Blocks[0].Images) != 1 || len(res.Blocks[1].Images) != 1 {
		t.Fatalf("blocks = %+v", res.Blocks)
	}
	for _, want := range []string{"[1]", "[2]", "http://img/alpha.jpg", "http://img/beta.jpg"} {
		if !strings.Contains(res.ImagesHTML, want) {
			t.Fatalf("column missing %q:\n%s", want, res.ImagesHTML)
		}
	}
}

func TestResolveBlockFailureIsIsolated(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("q") == "bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"results":[{"thumbnail":"http://img/ok.jpg","foreign_landing_url":"http://page/ok"}]}`)
	}))
	defer srv.Close()

	r := newResolver(t, enrich.Config{Provider: enrich.ProviderOpenverse, BaseURL: srv.URL})
	src := `a<!-- IMAGE_KEYWORDS: bad -->b<!-- IMAGE_KEYWORDS: good -->`
	res := r.Resolve(context.Background(), src, 3)

	if len(res.Blocks) != 2 {
		t.Fatalf("blocks = %+v", res.Blocks)
	}
	if res.Blocks[0].Err == "" || len(res.Blocks[0].Images) != 0 {
		t.Fatalf("bad block = %+v", res.Blocks[0])
	}
	if res.Blocks[1].Err != "" || len(res.Blocks[1].Images) != 1 {
		t.Fatalf("good block = %+v", res.Blocks[1])
	}
}

func TestResolveEmptyResultsTaggedNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer srv.Close()

	r := newResolver(t, enrich.Config{Provider: enrich.ProviderOpenverse, BaseURL: srv.URL})
	res := r.Resolve(context.Background(), `x<!-- IMAGE_KEYWORDS: nothing -->`, 3)
	if res.Blocks[0].Err != enrich.ReasonNoResults {
		t.Fatalf("block = %+v", res.Blocks[0])
	}
	if !strings.Contains(res.ImagesHTML, enrich.ReasonNoResults) {
		t.Fatalf("column = %q", res.ImagesHTML)
	}
}

func TestResolveUsesResultCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"results":[{"thumbnail":"http://img/a.jpg","foreign_landing_url":"http://page/a"}]}`)
	}))
	defer srv.Close()

	cache := enrich.NewResultCache(10)
	r := newResolver(t, enrich.Config{Provider: enrich.ProviderOpenverse, BaseURL: srv.URL, Results: cache})
	src := `x<!-- IMAGE_KEYWORDS: femur -->`
	r.Resolve(context.Background(), src, 3)
	r.Resolve(context.Background(), src, 3)
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestPexelsWithoutKeyFailsWithoutNetwork(t *testing.T) {
	r := newResolver(t, enrich.Config{Provider: enrich.ProviderPexels, BaseURL: "http://127.0.0.1:1"})
	res := r.Resolve(context.Background(), `x<!-- IMAGE_KEYWORDS: femur -->`, 3)
	if res.Blocks[0].Err == "" || !strings.Contains(res.Blocks[0].Err, "API key") {
		t.Fatalf("block = %+v", res.Blocks[0])
	}
}

func TestUnsplashBuildsTemplatedURL(t *testing.T) {
	r := newResolver(t, enrich.Config{Provider: enrich.ProviderUnsplash})
	res := r.Resolve(context.Background(), `x<!-- IMAGE_KEYWORDS: femur, anatomy -->`, 3)
	if len(res.Blocks[0].Images) != 1 {
		t.Fatalf("blocks = %+v", res.Blocks)
	}
	img := res.Blocks[0].Images[0]
	if !strings.HasPrefix(img.ThumbURL, "https://source.unsplash.com/300/200/?") {
		t.Fatalf("url = %q", img.ThumbURL)
	}
	if !strings.Contains(img.ThumbURL, "femur") {
		t.Fatalf("url = %q", img.ThumbURL)
	}
}

func TestWikimediaSearchTwoPhase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("list") {
		case "search":
			fmt.Fprint(w, `{"query":{"search":[{"title":"File:Femur.jpg"},{"title":"Femur article"},{"title":"File:Leg.png"}]}}`)
		default:
			fmt.Fprint(w, `{"query":{"pages":{"1":{"title":"File:Femur.jpg","imageinfo":[{"thumburl":"http://thumb/femur.jpg"}]},"2":{"title":"File:Leg.png","imageinfo":[{"url":"http://orig/leg.png"}]}}}}`)
		}
	}))
	defer srv.Close()

	r := newResolver(t, enrich.Config{Provider: enrich.ProviderWikimedia, BaseURL: srv.URL})
	res := r.Resolve(context.Background(), `x<!-- IMAGE_KEYWORDS: femur -->`, 3)
	images := res.Blocks[0].Images
	if len(images) != 2 {
		t.Fatalf("images = %+v", images)
	}
	// Non-file titles are dropped; thumburl preferred over url.
	if images[0].ThumbURL != "http://thumb/femur.jpg" {
		t.Fatalf("images[0] = %+v", images[0])
	}
	if images[0].PageURL != "https://commons.wikimedia.org/wiki/File:Femur.jpg" {
		t.Fatalf("images[0] = %+v", images[0])
	}
}

func TestRadiopaediaScrape(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/search"):
			fmt.Fprintf(w, `<a href="/cases/femoral-fracture-1">x</a><a href="/cases/system/stuff">y</a><a href="/cases/new">z</a>`)
		case strings.HasPrefix(r.URL.Path, "/cases/femoral-fracture-1"):
			fmt.Fprint(w, `<meta property="og:image" content="https://prod-images-static.radiopaedia.org/images/1/case.jpg"/>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := newResolver(t, enrich.Config{Provider: enrich.ProviderRadiopaedia, BaseURL: srv.URL})
	res := r.Resolve(context.Background(), `x<!-- IMAGE_KEYWORDS: femoral fracture -->`, 3)
	images := res.Blocks[0].Images
	if len(images) != 1 {
		t.Fatalf("images = %+v", images)
	}
	if images[0].ThumbURL != "https://prod-images-static.radiopaedia.org/images/1/case.jpg" {
		t.Fatalf("images[0] = %+v", images[0])
	}
	if !strings.Contains(images[0].PageURL, "/cases/femoral-fracture-1") {
		t.Fatalf("landing = %q", images[0].PageURL)
	}
}

func TestPlainTextIsWrappedKeepingMarkers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"thumbnail":"http://img/a.jpg","foreign_landing_url":"http://page/a"}]}`)
	}))
	defer srv.Close()

	r := newResolver(t, enrich.Config{Provider: enrich.ProviderOpenverse, BaseURL: srv.URL})
	res := r.Resolve(context.Background(), "plain answer with 2 < 3\n<!-- IMAGE_KEYWORDS: femur -->", 3)
	if !strings.Contains(res.Text, "<pre") {
		t.Fatalf("text not wrapped: %q", res.Text)
	}
	if !strings.Contains(res.Text, "2 &lt; 3") {
		t.Fatalf("text not escaped: %q", res.Text)
	}
	if !strings.Contains(res.Text, "<sup>[1]</sup>") {
		t.Fatalf("reference missing: %q", res.Text)
	}
}

func TestResultCacheEvictsInInsertionOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer srv.Close()

	cache := enrich.NewResultCache(2)
	r := newResolver(t, enrich.Config{Provider: enrich.ProviderOpenverse, BaseURL: srv.URL, Results: cache})
	for _, kw := range []string{"a", "b", "c"} {
		r.Resolve(context.Background(), "x<!-- IMAGE_KEYWORDS: "+kw+" -->", 3)
	}
	if cache.Len() != 2 {
		t.Fatalf("len = %d", cache.Len())
	}
}

func TestByteCacheCapAndOrder(t *testing.T) {
	c := enrich.NewByteCache(2)
	c.Put("u1", []byte("a"))
	c.Put("u2", []byte("b"))
	c.Put("u3", []byte("c"))
	if c.Get("u1") != nil {
		t.Fatal("u1 should have been evicted first")
	}
	if c.Get("u2") == nil || c.Get("u3") == nil {
		t.Fatal("newer entries missing")
	}
	// Re-putting an existing key does not duplicate or reorder.
	c.Put("u2", []byte("x"))
	if string(c.Get("u2")) != "b" {
		t.Fatalf("u2 = %q", c.Get("u2"))
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestPrefetchFillsByteCache(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/thumb.jpg" {
			w.Write([]byte("jpegbytes"))
			return
		}
		fmt.Fprintf(w, `{"results":[{"thumbnail":"%s/thumb.jpg","foreign_landing_url":"http://page/a"}]}`, srv.URL)
	}))
	defer srv.Close()

	bytes := enrich.NewByteCache(10)
	r := newResolver(t, enrich.Config{Provider: enrich.ProviderOpenverse, BaseURL: srv.URL, Bytes: bytes})
	r.Resolve(context.Background(), "x<!-- IMAGE_KEYWORDS: femur -->", 3)
	if got := bytes.Get(srv.URL + "/thumb.jpg"); string(got) != "jpegbytes" {
		t.Fatalf("cached = %q", got)
	}
}
