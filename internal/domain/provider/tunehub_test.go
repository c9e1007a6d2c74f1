package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
)

func TestTuneHubResolveKey(t *testing.T) {
	adapter := NewTuneHub(testLogger(t), "https://tunehub.example.com/api/v1/parse", "th_server_key")

	key, err := adapter.ResolveKey("password", "th_user_key")
	if err != nil {
		t.Fatalf("ResolveKey error: %v", err)
	}
	if key != "th_server_key" {
		t.Fatalf("password login must use the server key, got %q", key)
	}

	key, err = adapter.ResolveKey("oauth", "th_user_key")
	if err != nil {
		t.Fatalf("ResolveKey error: %v", err)
	}
	if key != "th_user_key" {
		t.Fatalf("oauth login must use the caller key, got %q", key)
	}
}

func TestTuneHubResolveKeyRejectsPlaceholders(t *testing.T) {
	cases := []struct {
		name      string
		serverKey string
		authType  string
		headerKey string
		want      string
	}{
		{"empty server key", "", "password", "", "TUNEHUB_API_KEY"},
		{"wrong prefix", "sk-12345", "password", "", "TUNEHUB_API_KEY"},
		{"placeholder", "th_replace_with_your_real_key", "password", "", "TUNEHUB_API_KEY"},
		{"oauth without key", "th_server_key", "oauth", "", "API Key"},
		{"oauth wrong prefix", "th_server_key", "oauth", "abc", "API Key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adapter := NewTuneHub(testLogger(t), "https://tunehub.example.com/api/v1/parse", tc.serverKey)
			_, err := adapter.ResolveKey(tc.authType, tc.headerKey)
			if !platformerrors.IsKind(err, platformerrors.KindBadRequest) {
				t.Fatalf("expected bad_request, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error should mention %q: %v", tc.want, err)
			}
		})
	}
}

func TestTuneHubParseRelaysUpstream(t *testing.T) {
	var gotKey string
	var gotBody ParseRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"code":402,"message":"quota exceeded"}`))
	}))
	t.Cleanup(server.Close)

	adapter := NewTuneHub(testLogger(t), server.URL, "th_server_key")
	result, err := adapter.Parse(context.Background(), "th_server_key", ParseRequest{
		Platform: "netease", IDs: "186016", Quality: "exhigh",
	})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if gotKey != "th_server_key" {
		t.Fatalf("API key not forwarded, got %q", gotKey)
	}
	if gotBody.Platform != "netease" || gotBody.IDs != "186016" || gotBody.Quality != "exhigh" {
		t.Fatalf("unexpected upstream body: %+v", gotBody)
	}
	if result.Status != http.StatusPaymentRequired {
		t.Fatalf("upstream status must pass through, got %d", result.Status)
	}
	if !strings.Contains(string(result.Body), "quota exceeded") {
		t.Fatalf("upstream body must pass through: %s", result.Body)
	}
}

func TestTuneHubParseValidation(t *testing.T) {
	adapter := NewTuneHub(testLogger(t), "https://tunehub.example.com/api/v1/parse", "th_server_key")
	_, err := adapter.Parse(context.Background(), "th_server_key", ParseRequest{Platform: "netease"})
	if !platformerrors.IsKind(err, platformerrors.KindBadRequest) {
		t.Fatalf("expected bad_request, got %v", err)
	}
	if !strings.Contains(err.Error(), "platform / ids / quality") {
		t.Fatalf("error should name the fields: %v", err)
	}
}
