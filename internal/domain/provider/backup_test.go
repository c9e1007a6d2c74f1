package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
)

// memPayloadCache 是测试用的内存缓存。
type memPayloadCache struct {
	mu      sync.Mutex
	entries map[string]cachedPayload
}

type cachedPayload struct {
	contentType string
	body        []byte
}

func newMemPayloadCache() *memPayloadCache {
	return &memPayloadCache{entries: map[string]cachedPayload{}}
}

func (c *memPayloadCache) GetPayload(_ context.Context, key string) (string, []byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return entry.contentType, entry.body, ok
}

func (c *memPayloadCache) SetPayload(_ context.Context, key, contentType string, body []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedPayload{contentType: contentType, body: body}
}

func noSleep(context.Context, time.Duration) {}

func TestBackupSearchMapsPlatformToSource(t *testing.T) {
	var gotSource string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSource = r.URL.Query().Get("source")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 1001, "name": "稻香", "artist": ["周杰伦"], "album": "魔杰座"},
			{"id": "1002", "artist": "单字符串歌手", "album": ""}
		]`))
	}))
	t.Cleanup(server.Close)

	adapter := NewBackup(testLogger(t), nil).WithBaseURL(server.URL).WithSleep(noSleep)

	records, err := adapter.Search(context.Background(), "qq", "稻香", 1, 20)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if gotSource != "tencent" {
		t.Fatalf("qq should map to tencent, got %q", gotSource)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Artist != "周杰伦" || records[0].ID != "1001" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
	if records[1].Artist != "单字符串歌手" {
		t.Fatalf("string artist should pass through: %+v", records[1])
	}
	if records[1].Name != "未知歌曲" {
		t.Fatalf("missing name should fall back, got %q", records[1].Name)
	}
	if records[0].SourcePlatform != "qq" {
		t.Fatalf("records keep the caller platform, got %q", records[0].SourcePlatform)
	}
}

func TestBackupSearchUnsupportedPlatform(t *testing.T) {
	adapter := NewBackup(testLogger(t), nil)
	_, err := adapter.Search(context.Background(), "spotify", "test", 1, 20)
	if !platformerrors.IsKind(err, platformerrors.KindBadRequest) {
		t.Fatalf("expected bad_request, got %v", err)
	}
}

func TestBackupRelayRejectsBadParams(t *testing.T) {
	adapter := NewBackup(testLogger(t), nil)

	cases := []struct {
		name   string
		params url.Values
		want   string
	}{
		{"bad types", url.Values{"types": {"exec"}, "source": {"netease"}}, "types"},
		{"missing types", url.Values{"source": {"netease"}}, "types"},
		{"bad source", url.Values{"types": {"search"}, "source": {"spotify"}}, "source"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := adapter.Relay(context.Background(), tc.params)
			if !platformerrors.IsKind(err, platformerrors.KindBadRequest) {
				t.Fatalf("expected bad_request, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error should name the field %q: %v", tc.want, err)
			}
		})
	}
}

func TestBackupRelayDropsUnknownParams(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"url":"https://cdn.example.com/a.mp3"}`))
	}))
	t.Cleanup(server.Close)

	adapter := NewBackup(testLogger(t), nil).WithBaseURL(server.URL).WithSleep(noSleep)

	result, err := adapter.Relay(context.Background(), url.Values{
		"types":    {"url"},
		"source":   {"netease"},
		"id":       {"186016"},
		"callback": {"evil"},
		"br":       {"320"},
	})
	if err != nil {
		t.Fatalf("Relay error: %v", err)
	}
	if result.Status != http.StatusOK {
		t.Fatalf("unexpected status %d", result.Status)
	}
	if gotQuery.Get("callback") != "" {
		t.Fatal("non-whitelisted param leaked upstream")
	}
	if gotQuery.Get("br") != "320" || gotQuery.Get("id") != "186016" {
		t.Fatalf("whitelisted params missing: %v", gotQuery)
	}
	if result.CacheControl != "no-store" {
		t.Fatalf("non-pic relay must not cache, got %q", result.CacheControl)
	}
}

func TestBackupRelayRetriesSystemicFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"lyric":"[00:00.00] test"}`))
	}))
	t.Cleanup(server.Close)

	adapter := NewBackup(testLogger(t), nil).WithBaseURL(server.URL).WithSleep(noSleep)

	result, err := adapter.Relay(context.Background(), url.Values{"types": {"lyric"}, "source": {"netease"}, "id": {"1"}})
	if err != nil {
		t.Fatalf("Relay error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
	if result.Status != http.StatusOK {
		t.Fatalf("unexpected status %d", result.Status)
	}
}

func TestBackupRelayDoesNotRetryCallerFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad id", http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	adapter := NewBackup(testLogger(t), nil).WithBaseURL(server.URL).WithSleep(noSleep)

	result, err := adapter.Relay(context.Background(), url.Values{"types": {"url"}, "source": {"netease"}, "id": {"x"}})
	if err != nil {
		t.Fatalf("Relay error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("4xx must not retry, got %d calls", calls)
	}
	if result.Status != http.StatusBadRequest {
		t.Fatalf("upstream status should pass through, got %d", result.Status)
	}
}

func TestBackupRelayPicCachesAndServesStale(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpeg-bytes"))
			return
		}
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	cache := newMemPayloadCache()
	adapter := NewBackup(testLogger(t), cache).WithBaseURL(server.URL).WithSleep(noSleep)
	params := url.Values{"types": {"pic"}, "source": {"netease"}, "id": {"109951"}}

	fresh, err := adapter.Relay(context.Background(), params)
	if err != nil {
		t.Fatalf("Relay error: %v", err)
	}
	if fresh.Stale {
		t.Fatal("first fetch must not be stale")
	}
	if fresh.CacheControl != "public, max-age=43200" {
		t.Fatalf("pic relay should be cacheable, got %q", fresh.CacheControl)
	}

	stale, err := adapter.Relay(context.Background(), params)
	if err != nil {
		t.Fatalf("Relay error: %v", err)
	}
	if !stale.Stale {
		t.Fatal("expected stale replay after upstream failure")
	}
	if string(stale.Body) != "jpeg-bytes" || stale.ContentType != "image/jpeg" {
		t.Fatalf("stale payload mismatch: %q %q", stale.ContentType, stale.Body)
	}
	if stale.Status != http.StatusOK {
		t.Fatalf("stale replay must be 200, got %d", stale.Status)
	}
}
