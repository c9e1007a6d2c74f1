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

func backup3Upstream(t *testing.T, handler http.HandlerFunc) *Backup3 {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewBackup3(testLogger(t)).WithBaseURL(server.URL).WithSleep(noSleep)
}

func TestBackup3RelayValidation(t *testing.T) {
	adapter := NewBackup3(testLogger(t))

	cases := []struct {
		name     string
		input    string
		filter   string
		platform string
		want     string
	}{
		{"missing input", "", "name", "netease", "缺少参数"},
		{"missing type", "晴天", "name", "", "缺少参数"},
		{"bad filter", "晴天", "fuzzy", "netease", "filter"},
		{"bad type", "晴天", "name", "spotify", "type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := adapter.Relay(context.Background(), tc.input, tc.filter, tc.platform, 1)
			if !platformerrors.IsKind(err, platformerrors.KindBadRequest) {
				t.Fatalf("expected bad_request, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error should mention %q: %v", tc.want, err)
			}
		})
	}
}

func TestBackup3RelayPostsForm(t *testing.T) {
	var gotForm map[string]string
	var gotXHR string
	adapter := backup3Upstream(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotForm = map[string]string{
			"input":  r.PostFormValue("input"),
			"filter": r.PostFormValue("filter"),
			"type":   r.PostFormValue("type"),
			"page":   r.PostFormValue("page"),
		}
		gotXHR = r.Header.Get("X-Requested-With")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":200,"data":[{"id":"186016","title":"晴天","author":"周杰伦","pic":"//p1.music.126.net/c.jpg"}]}`))
	})

	result, err := adapter.Relay(context.Background(), "晴天", "", "netease", 0)
	if err != nil {
		t.Fatalf("Relay error: %v", err)
	}
	if gotForm["input"] != "晴天" || gotForm["filter"] != "name" || gotForm["type"] != "netease" || gotForm["page"] != "1" {
		t.Fatalf("unexpected form: %v", gotForm)
	}
	if gotXHR != "XMLHttpRequest" {
		t.Fatalf("missing XHR marker, got %q", gotXHR)
	}
	if result.Status != http.StatusOK {
		t.Fatalf("unexpected status %d", result.Status)
	}

	var payload struct {
		Code int               `json:"code"`
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(result.Body, &payload); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if payload.Code != 200 || len(payload.Data) != 1 {
		t.Fatalf("unexpected payload: %s", result.Body)
	}
}

func TestBackup3RelayMapsFailureEnvelope(t *testing.T) {
	adapter := backup3Upstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("<html>blocked</html>"))
	})

	result, err := adapter.Relay(context.Background(), "晴天", "name", "netease", 1)
	if err != nil {
		t.Fatalf("Relay error: %v", err)
	}
	if result.Status != http.StatusForbidden {
		t.Fatalf("unexpected status %d", result.Status)
	}

	var payload struct {
		Code    int               `json:"code"`
		Message string            `json:"message"`
		Data    []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(result.Body, &payload); err != nil {
		t.Fatalf("failure body must be JSON envelope: %v", err)
	}
	if payload.Code != -1 || payload.Message == "" {
		t.Fatalf("unexpected envelope: %s", result.Body)
	}
	if payload.Data == nil {
		t.Fatal("data must be present even on failure")
	}
}

func TestBackup3RelayRetriesServerError(t *testing.T) {
	var calls int
	adapter := backup3Upstream(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":200,"data":[]}`))
	})

	result, err := adapter.Relay(context.Background(), "晴天", "name", "qq", 1)
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

func TestBackup3SearchNormalizesLooseFields(t *testing.T) {
	adapter := backup3Upstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":200,"data":[
			{"id":"186016","title":"晴天","author":"周杰伦","album":"叶惠美","pic":"//p1.music.126.net/c.jpg"},
			{"songid":9527,"song":"七里香","singer":["周杰伦"]},
			{"url":"https://cdn.example.com/x.mp3"}
		]}`))
	})

	records, err := adapter.Search(context.Background(), "netease", "晴天", 1, 20)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].ID != "186016" || records[0].Name != "晴天" || records[0].Artist != "周杰伦" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
	if records[0].Cover != "https://p1.music.126.net/c.jpg" {
		t.Fatalf("cover not normalized: %q", records[0].Cover)
	}
	if records[1].ID != "9527" || records[1].Name != "七里香" || records[1].Artist != "周杰伦" {
		t.Fatalf("alternate field names not picked up: %+v", records[1])
	}
	if records[2].Name != "未知歌曲" {
		t.Fatalf("nameless entry should fall back, got %q", records[2].Name)
	}
}

func TestBackup3SearchUnsupportedPlatform(t *testing.T) {
	adapter := NewBackup3(testLogger(t))
	_, err := adapter.Search(context.Background(), "spotify", "x", 1, 20)
	if !platformerrors.IsKind(err, platformerrors.KindBadRequest) {
		t.Fatalf("expected bad_request, got %v", err)
	}
}
