package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebFetchPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("plain payload"))
	}))
	defer srv.Close()

	got, err := webFetch(context.Background(), args(t, map[string]any{"url": srv.URL}))
	if err != nil {
		t.Fatalf("webFetch failed: %v", err)
	}
	if got != "plain payload" {
		t.Errorf("output = %q", got)
	}
}

func TestWebFetchHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><script>var x=1;</script><style>p{}</style></head>
			<body><h1>Title</h1><p>First para.</p><p>Second para.</p></body></html>`))
	}))
	defer srv.Close()

	got, err := webFetch(context.Background(), args(t, map[string]any{"url": srv.URL}))
	if err != nil {
		t.Fatalf("webFetch failed: %v", err)
	}
	if !strings.Contains(got, "Title") || !strings.Contains(got, "First para.") {
		t.Errorf("output missing text: %q", got)
	}
	if strings.Contains(got, "var x=1") || strings.Contains(got, "p{}") {
		t.Errorf("output leaks script/style: %q", got)
	}
}

func TestWebFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := webFetch(context.Background(), args(t, map[string]any{"url": srv.URL}))
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %v, want 404", err)
	}
}

func TestWebFetchSendsUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	if _, err := webFetch(context.Background(), args(t, map[string]any{"url": srv.URL})); err != nil {
		t.Fatalf("webFetch failed: %v", err)
	}
	if ua != "m8cli" {
		t.Errorf("User-Agent = %q, want m8cli", ua)
	}
}

const searchFixture = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&amp;rut=abc">The Go Programming Language</a>
  <a class="result__snippet" href="#">Build simple, secure, scalable systems.</a>
</div>
<div class="result">
  <a class="result__a" href="https://go.dev/doc/">Documentation</a>
  <a class="result__snippet" href="#">Learn how to use Go.</a>
</div>
<div class="result">
  <a class="result__a" href="https://go.dev/blog/">The Go Blog</a>
</div>
</body></html>`

func TestParseSearchResults(t *testing.T) {
	results, err := parseSearchResults(strings.NewReader(searchFixture), 10)
	if err != nil {
		t.Fatalf("parseSearchResults failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if results[0].Title != "The Go Programming Language" {
		t.Errorf("title = %q", results[0].Title)
	}
	if results[0].URL != "https://go.dev/" {
		t.Errorf("URL = %q, want redirect unwrapped", results[0].URL)
	}
	if results[0].Snippet != "Build simple, secure, scalable systems." {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
	if results[1].URL != "https://go.dev/doc/" {
		t.Errorf("URL = %q", results[1].URL)
	}
	if results[2].Snippet != "" {
		t.Errorf("snippet = %q, want empty", results[2].Snippet)
	}
}

func TestParseSearchResultsMax(t *testing.T) {
	results, err := parseSearchResults(strings.NewReader(searchFixture), 1)
	if err != nil {
		t.Fatalf("parseSearchResults failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestCleanResultURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpage", "https://example.com/page"},
		{"https://direct.example/x", "https://direct.example/x"},
		{"://bad url", "://bad url"},
	}
	for _, c := range cases {
		if got := cleanResultURL(c.in); got != c.want {
			t.Errorf("cleanResultURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestHTMLToText(t *testing.T) {
	src := `<html><body><h1>Head</h1><p>One   two</p><ul><li>item</li></ul></body></html>`
	got := HTMLToText(src)
	want := "Head\nOne two\nitem"
	if got != want {
		t.Errorf("HTMLToText = %q, want %q", got, want)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	got := truncateRunes(strings.Repeat("あ", 20), 5)
	if !strings.HasPrefix(got, strings.Repeat("あ", 5)) || !strings.Contains(got, "[truncated]") {
		t.Errorf("got %q", got)
	}
}
