package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
)

const (
	backupTimeout  = 18 * time.Second
	backupRetryGap = 250 * time.Millisecond
	picCacheTTL    = 12 * time.Hour
)

// 备用源只放行白名单内的参数和取值，其余一律丢弃或拒绝。
var (
	backupAllowedTypes  = map[string]bool{"search": true, "url": true, "lyric": true, "pic": true}
	backupAllowedParams = map[string]bool{"types": true, "source": true, "id": true, "name": true, "count": true, "pages": true, "br": true, "size": true}
	backupAllowedSource = map[string]bool{
		"netease": true, "kuwo": true, "tencent": true,
		"netease_album": true, "kuwo_album": true, "tencent_album": true,
	}
	backupSourceByPlatform = map[string]string{
		"netease": "netease",
		"qq":      "tencent",
		"kuwo":    "kuwo",
	}
)

// Cache 缓存不可变工件（目前只有封面查询）。实现是尽力而为的，
// 失败不影响请求本身。
type Cache interface {
	GetPayload(ctx context.Context, key string) (contentType string, body []byte, ok bool)
	SetPayload(ctx context.Context, key string, contentType string, body []byte, ttl time.Duration)
}

// Backup 是备用源（二级）适配器。
type Backup struct {
	client *http.Client
	logger Logger
	cache  Cache
	base   string
	sleep  func(context.Context, time.Duration)
}

func NewBackup(logger Logger, cache Cache) *Backup {
	return &Backup{
		client: &http.Client{Timeout: backupTimeout},
		logger: logger,
		cache:  cache,
		base:   "https://music-api.gdstudio.xyz/api.php",
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// WithBaseURL 覆盖上游地址，仅测试使用。
func (a *Backup) WithBaseURL(base string) *Backup {
	a.base = base
	return a
}

// WithSleep 覆盖重试间隔等待，仅测试使用。
func (a *Backup) WithSleep(sleep func(context.Context, time.Duration)) *Backup {
	if sleep != nil {
		a.sleep = sleep
	}
	return a
}

func (a *Backup) Name() string { return "backup" }

// backupArtist 兼容 artist 字段既可能是数组也可能是字符串。
type backupArtist string

func (b *backupArtist) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*b = ""
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []any
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if text, ok := item.(string); ok && text != "" {
				parts = append(parts, text)
			}
		}
		*b = backupArtist(strings.Join(parts, ", "))
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*b = backupArtist(text)
	return nil
}

type backupSong struct {
	ID     stringOrNumber `json:"id"`
	Name   string         `json:"name"`
	Artist backupArtist   `json:"artist"`
	Album  string         `json:"album"`
}

// Search 以流水线形态调用备用源搜索并归一化结果。
// 备用源的封面要单独按 pic_id 再查一次，这里不展开，封面留空。
func (a *Backup) Search(ctx context.Context, platform, keyword string, page, limit int) ([]SongRecord, error) {
	source, ok := backupSourceByPlatform[platform]
	if !ok {
		return nil, errUnsupportedPlatform("tier2.search")
	}

	query := url.Values{
		"types":  {"search"},
		"source": {source},
		"name":   {keyword},
		"count":  {strconv.Itoa(limit)},
		"pages":  {strconv.Itoa(page)},
	}

	var songs []backupSong
	if err := fetchJSON(ctx, a.client, "tier2.search", http.MethodGet, a.base,
		map[string]string{"Accept": "application/json, text/plain, */*"}, query, nil, &songs); err != nil {
		return nil, err
	}

	records := make([]SongRecord, 0, len(songs))
	for _, item := range songs {
		name := item.Name
		if name == "" {
			name = unknownSongName
		}
		records = append(records, SongRecord{
			ID:             item.ID.String(),
			Name:           name,
			Artist:         string(item.Artist),
			Album:          item.Album,
			SourcePlatform: platform,
		})
	}
	return records, nil
}

// Playlist 备用源没有歌单接口。
func (a *Backup) Playlist(context.Context, string, string) ([]SongRecord, error) {
	return nil, platformerrors.Wrap(platformerrors.KindBadRequest, "tier2.playlist", "备用源不支持歌单", ErrUnsupportedOperation)
}

// Passthrough 是备用源透传的结果。
type Passthrough struct {
	Status       int
	ContentType  string
	Body         []byte
	CacheControl string
	Stale        bool
}

// Relay 校验参数白名单后透传备用源响应。封面请求缓存 12 小时，
// 上游失败时回放缓存副本并打上 X-Backup-Stale 标记。
func (a *Backup) Relay(ctx context.Context, params url.Values) (Passthrough, error) {
	filtered := url.Values{}
	for key, values := range params {
		if !backupAllowedParams[key] {
			continue
		}
		for _, value := range values {
			if text := strings.TrimSpace(value); text != "" {
				filtered.Set(key, text)
			}
		}
	}

	types := filtered.Get("types")
	if !backupAllowedTypes[types] {
		return Passthrough{}, platformerrors.New(platformerrors.KindBadRequest, "tier2.relay", "备用源参数无效: types")
	}
	if !backupAllowedSource[filtered.Get("source")] {
		return Passthrough{}, platformerrors.New(platformerrors.KindBadRequest, "tier2.relay", "备用源参数无效: source")
	}

	endpoint := a.base + "?" + filtered.Encode()
	isPic := types == "pic"

	maxAttempts := 2
	if isPic {
		maxAttempts = 3
	}

	last := Passthrough{
		Status:       http.StatusBadGateway,
		ContentType:  "application/json; charset=utf-8",
		Body:         []byte(`{"code":-1,"message":"备用源请求失败"}`),
		CacheControl: "no-store",
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, retriable, err := a.relayOnce(ctx, endpoint)
		if err == nil && result.Status >= 200 && result.Status < 300 {
			if isPic {
				result.CacheControl = "public, max-age=43200"
				if a.cache != nil {
					a.cache.SetPayload(ctx, endpoint, result.ContentType, result.Body, picCacheTTL)
				}
			} else {
				result.CacheControl = "no-store"
			}
			return result, nil
		}
		if err == nil {
			last = result
			last.CacheControl = "no-store"
		}
		if retriable && attempt < maxAttempts-1 {
			a.sleep(ctx, backupRetryGap*time.Duration(attempt+1))
			continue
		}
		break
	}

	if isPic && a.cache != nil {
		if contentType, body, ok := a.cache.GetPayload(ctx, endpoint); ok {
			a.logger.Warn("[代理] 备用源封面请求失败，回放缓存副本")
			return Passthrough{
				Status:       http.StatusOK,
				ContentType:  contentType,
				Body:         body,
				CacheControl: "public, max-age=43200",
				Stale:        true,
			}, nil
		}
	}
	return last, nil
}

func (a *Backup) relayOnce(ctx context.Context, endpoint string) (Passthrough, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Passthrough{}, false, err
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := a.client.Do(req)
	if err != nil {
		// 网络层失败视同 5xx，可重试
		return Passthrough{}, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return Passthrough{}, true, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	retriable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
	return Passthrough{Status: resp.StatusCode, ContentType: contentType, Body: body}, retriable, nil
}
