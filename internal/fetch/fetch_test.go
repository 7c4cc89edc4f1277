package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/sitewatch/internal/security"
	"github.com/flemzord/sitewatch/internal/security/securitytest"
	"github.com/flemzord/sitewatch/internal/watch"
)

func allowLocal() *security.URLFilter {
	return security.NewURLFilter(security.URLFilterConfig{AllowPrivate: true})
}

func TestClient_Get(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<p>hello</p>")
	}))
	t.Cleanup(srv.Close)

	page, err := NewClient(ClientConfig{Filter: allowLocal()}).Get(context.Background(), srv.URL+"/a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(page.Body) != "<p>hello</p>" || page.ContentType != "text/html" {
		t.Errorf("page = %+v", page)
	}
	if page.URL.Path != "/a" {
		t.Errorf("final URL = %s", page.URL)
	}
}

func TestClient_MaxBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", 100))
	}))
	t.Cleanup(srv.Close)

	page, err := NewClient(ClientConfig{Filter: allowLocal(), MaxBodyBytes: 10}).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(page.Body) != 10 {
		t.Errorf("body has %d bytes, want 10", len(page.Body))
	}
}

func TestClient_StatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusNotFound, true},
		{http.StatusGone, true},
		{http.StatusForbidden, true},
		{http.StatusRequestTimeout, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, false},
		{http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(srv.Close)

			_, err := NewClient(ClientConfig{Filter: allowLocal()}).Get(context.Background(), srv.URL)
			if err == nil {
				t.Fatal("expected error")
			}
			rfe, ok := watch.IsResourceFetchError(err)
			if ok != tt.permanent {
				t.Fatalf("resource fetch error = %v, want %v (err: %v)", ok, tt.permanent, err)
			}
			want := fmt.Sprintf("HTTP %d %s", tt.status, http.StatusText(tt.status))
			if ok && rfe.Message != want {
				t.Errorf("message = %q, want %q", rfe.Message, want)
			}
			if !ok && !strings.Contains(err.Error(), want) {
				t.Errorf("err = %v, want it to mention %q", err, want)
			}
		})
	}
}

func TestClient_TimeoutIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(300 * time.Millisecond):
		}
	}))
	t.Cleanup(srv.Close)

	_, err := NewClient(ClientConfig{Filter: allowLocal(), Timeout: 50 * time.Millisecond}).Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if _, ok := watch.IsResourceFetchError(err); ok {
		t.Errorf("timeout classified as resource fetch error: %v", err)
	}
}

func TestClient_TransportErrorMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(ClientConfig{Filter: allowLocal()}).Get(context.Background(), url)
	rfe, ok := watch.IsResourceFetchError(err)
	if !ok {
		t.Fatalf("err = %v, want resource fetch error", err)
	}
	if strings.Contains(rfe.Message, "Get \"") {
		t.Errorf("message repeats the request: %q", rfe.Message)
	}
}

func TestClient_RedirectFiltered(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://internal.example.com/secret", http.StatusFound)
	}))
	t.Cleanup(srv.Close)

	audit, events := securitytest.NewTestAuditLogger()
	filter := security.NewURLFilter(security.URLFilterConfig{
		AllowPrivate: true,
		DenyDomains:  []string{"internal.example.com"},
	})
	_, err := NewClient(ClientConfig{Filter: filter, Audit: audit}).Get(context.Background(), srv.URL)

	if _, ok := watch.IsResourceFetchError(err); !ok {
		t.Fatalf("err = %v, want resource fetch error", err)
	}
	if !errors.Is(err, security.ErrURLBlocked) {
		t.Errorf("err = %v, want ErrURLBlocked", err)
	}
	if got := events(); len(got) != 1 || got[0].Detail != "http://internal.example.com/secret" {
		t.Errorf("audit events = %+v", got)
	}
}

type stubBackend struct {
	prefix string
	calls  []string
}

func (s *stubBackend) SelectorPrefix() string { return s.prefix }

func (s *stubBackend) FetchItems(_ context.Context, _, selector string) ([]string, error) {
	s.calls = append(s.calls, selector)
	return []string{s.prefix + "|" + selector}, nil
}

func TestMux(t *testing.T) {
	t.Parallel()

	html := &stubBackend{prefix: ""}
	feed := &stubBackend{prefix: "feed:"}
	json := &stubBackend{prefix: "feed:json:"}

	mux := NewMux()
	for _, b := range []Backend{html, feed, json} {
		if err := mux.Handle(b); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	if err := mux.Handle(&stubBackend{prefix: "feed:"}); err == nil {
		t.Error("duplicate prefix accepted")
	}
	if got := mux.Prefixes(); !slices.Equal(got, []string{"feed:json:", "feed:", ""}) {
		t.Errorf("Prefixes() = %q", got)
	}

	tests := []struct {
		selector string
		want     string
	}{
		{"a.item", "|a.item"},
		{"feed:title", "feed:|title"},
		{"feed:json:id", "feed:json:|id"},
	}
	for _, tt := range tests {
		got, err := mux.FetchItems(context.Background(), "https://example.com", tt.selector)
		if err != nil || len(got) != 1 || got[0] != tt.want {
			t.Errorf("FetchItems(%q) = %q, %v, want %q", tt.selector, got, err, tt.want)
		}
	}
}
