package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func newTestScraper(t *testing.T, handler http.HandlerFunc) (*Scraper, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{Timeout: 500 * time.Millisecond, MaxChars: DefaultMaxChars}, logger), srv.URL
}

func TestScrape_PrefersArticle(t *testing.T) {
	s, url := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		fmt.Fprint(w, `<html><head><style>.x{}</style></head><body>
			<nav>Home About</nav>
			<header>Site header</header>
			<article><h1>Title</h1>
				<p>First   paragraph.</p>
				<script>alert(1)</script>
				<p>Second
				paragraph.</p>
			</article>
			<footer>Copyright</footer>
		</body></html>`)
	})

	assert.Equal(t, "Title First paragraph. Second paragraph.", s.Scrape(context.Background(), url))
}

func TestScrape_FallsBackToMainThenBody(t *testing.T) {
	s, url := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/main" {
			fmt.Fprint(w, `<body><div>outside</div><main>inside main</main></body>`)
			return
		}
		fmt.Fprint(w, `<body><nav>menu</nav><div>just body <iframe>x</iframe>text</div><form>login</form></body>`)
	})

	assert.Equal(t, "inside main", s.Scrape(context.Background(), url+"/main"))
	assert.Equal(t, "just body text", s.Scrape(context.Background(), url+"/plain"))
}

func TestScrape_TruncatesToBudget(t *testing.T) {
	s, url := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<article>%s</article>", strings.Repeat("a", 8000))
	})

	got := s.Scrape(context.Background(), url)
	assert.Len(t, got, 5000)
}

func TestScrape_TruncatesRunesNotBytes(t *testing.T) {
	s, url := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<article>%s</article>", strings.Repeat("文", 6000))
	})

	got := s.Scrape(context.Background(), url)
	assert.Equal(t, 5000, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}

func TestScrape_FailuresYieldEmpty(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		s, url := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, "<article>blocked</article>")
		})
		assert.Equal(t, "", s.Scrape(context.Background(), url))
	})

	t.Run("timeout", func(t *testing.T) {
		s, url := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		})
		assert.Equal(t, "", s.Scrape(context.Background(), url))
	})

	t.Run("unreachable", func(t *testing.T) {
		s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {})
		assert.Equal(t, "", s.Scrape(context.Background(), "http://127.0.0.1:1/nothing"))
	})

	t.Run("empty url", func(t *testing.T) {
		s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		})
		assert.Equal(t, "", s.Scrape(context.Background(), ""))
	})
}
