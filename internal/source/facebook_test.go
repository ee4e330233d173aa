package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/pagewatch/shrike/internal/domain"
)

func newGraphServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *FacebookClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewFacebookClient(domain.SourceConfig{
		AccessToken: "test-token",
		APIVersion:  "v19.0",
		BaseURL:     srv.URL,
	})
	return srv, client
}

func TestFetchRecent(t *testing.T) {
	ctx := context.Background()

	t.Run("ParsesFeed", func(t *testing.T) {
		var gotPath string
		var gotQuery url.Values
		_, client := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.Query()
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"data": [
					{"id": "post-1", "message": "hello world", "type": "status", "permalink_url": "https://fb.test/1"},
					{"id": "post-2", "caption": "photo caption", "type": "photo"}
				]
			}`))
		})

		posts, err := client.FetchRecent(ctx, "page-001", 5)
		if err != nil {
			t.Fatalf("FetchRecent failed: %v", err)
		}
		if len(posts) != 2 {
			t.Fatalf("expected 2 posts, got %d", len(posts))
		}

		if gotPath != "/v19.0/page-001/posts" {
			t.Errorf("unexpected request path %s", gotPath)
		}
		if gotQuery.Get("access_token") != "test-token" {
			t.Error("expected access token in query")
		}
		if gotQuery.Get("limit") != "5" {
			t.Errorf("expected limit 5, got %s", gotQuery.Get("limit"))
		}
		for _, field := range []string{"message", "story", "description", "caption", "name"} {
			if !strings.Contains(gotQuery.Get("fields"), field) {
				t.Errorf("expected fields to request %s", field)
			}
		}

		if posts[0].ID != "post-1" || posts[0].Message != "hello world" || posts[0].Permalink != "https://fb.test/1" {
			t.Errorf("unexpected first post %+v", posts[0])
		}
		if posts[0].PageID != "page-001" {
			t.Errorf("expected page id stamped onto posts, got %s", posts[0].PageID)
		}
		if posts[1].Caption != "photo caption" || posts[1].Type != "photo" {
			t.Errorf("unexpected second post %+v", posts[1])
		}
	})

	t.Run("GraphError", func(t *testing.T) {
		_, client := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": {"message": "Invalid OAuth access token", "type": "OAuthException", "code": 190}}`))
		})

		_, err := client.FetchRecent(ctx, "page-001", 5)
		if err == nil {
			t.Fatal("expected error from graph error object")
		}
		if !strings.Contains(err.Error(), "OAuthException") || !strings.Contains(err.Error(), "190") {
			t.Errorf("expected graph error detail, got %v", err)
		}
	})

	t.Run("NonOKStatus", func(t *testing.T) {
		_, client := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{}`))
		})

		_, err := client.FetchRecent(ctx, "page-001", 5)
		if err == nil || !strings.Contains(err.Error(), "500") {
			t.Errorf("expected status error, got %v", err)
		}
	})

	t.Run("MalformedBody", func(t *testing.T) {
		_, client := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		})

		if _, err := client.FetchRecent(ctx, "page-001", 5); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("EmptyFeed", func(t *testing.T) {
		_, client := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data": []}`))
		})

		posts, err := client.FetchRecent(ctx, "page-001", 5)
		if err != nil {
			t.Fatalf("FetchRecent failed: %v", err)
		}
		if len(posts) != 0 {
			t.Errorf("expected empty feed, got %d posts", len(posts))
		}
	})

	t.Run("RequiresPageID", func(t *testing.T) {
		_, client := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {})
		if _, err := client.FetchRecent(ctx, "", 5); err == nil {
			t.Error("expected error for empty page id")
		}
	})

	t.Run("DefaultLimit", func(t *testing.T) {
		var gotLimit string
		_, client := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotLimit = r.URL.Query().Get("limit")
			w.Write([]byte(`{"data": []}`))
		})

		if _, err := client.FetchRecent(ctx, "page-001", 0); err != nil {
			t.Fatalf("FetchRecent failed: %v", err)
		}
		if gotLimit != "10" {
			t.Errorf("expected default limit 10, got %s", gotLimit)
		}
	})
}

func TestNewFacebookClientDefaults(t *testing.T) {
	client := NewFacebookClient(domain.SourceConfig{AccessToken: "t"})
	if client.version != "v19.0" {
		t.Errorf("expected default API version, got %s", client.version)
	}
	if client.baseURL != defaultGraphURL {
		t.Errorf("expected default base URL, got %s", client.baseURL)
	}
}
