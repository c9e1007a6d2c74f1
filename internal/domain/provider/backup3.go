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

const backup3Timeout = 20 * time.Second

var (
	backup3AllowedTypes   = map[string]bool{"netease": true, "qq": true, "kuwo": true}
	backup3AllowedFilters = map[string]bool{"name": true, "id": true}
)

// Backup3 是备用源3（三级）适配器，上游是表单接口，需要伪装成
// 浏览器的 XHR 请求才会返回 JSON。
type Backup3 struct {
	client *http.Client
	logger Logger
	base   string
	sleep  func(context.Context, time.Duration)
}

func NewBackup3(logger Logger) *Backup3 {
	return &Backup3{
		client: &http.Client{Timeout: backup3Timeout},
		logger: logger,
		base:   "https://musicjx.com/",
		sleep:  sleepContext,
	}
}

// WithBaseURL 覆盖上游地址，仅测试使用。
func (a *Backup3) WithBaseURL(base string) *Backup3 {
	a.base = base
	return a
}

// WithSleep 覆盖重试间隔等待，仅测试使用。
func (a *Backup3) WithSleep(sleep func(context.Context, time.Duration)) *Backup3 {
	if sleep != nil {
		a.sleep = sleep
	}
	return a
}

func (a *Backup3) Name() string { return "backup3" }

type backup3Envelope struct {
	Code    *int              `json:"code"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Data    []json.RawMessage `json:"data"`
}

// backup3Song 上游字段命名不稳定，逐个键名兜底。
type backup3Song struct {
	ID     stringOrNumber `json:"id"`
	SongID stringOrNumber `json:"songid"`
	Name   string         `json:"name"`
	Title  string         `json:"title"`
	Song   string         `json:"song"`
	Artist backupArtist   `json:"artist"`
	Author backupArtist   `json:"author"`
	Singer backupArtist   `json:"singer"`
	Album  string         `json:"album"`
	Cover  string         `json:"cover"`
	Pic    string         `json:"pic"`
	URL    string         `json:"url"`
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// Search 以流水线形态调用备用源3并归一化结果。
func (a *Backup3) Search(ctx context.Context, platform, keyword string, page, _ int) ([]SongRecord, error) {
	if !backup3AllowedTypes[platform] {
		return nil, errUnsupportedPlatform("tier3.search")
	}

	envelope, _, err := a.call(ctx, "tier3.search", url.Values{
		"input":  {keyword},
		"filter": {"name"},
		"type":   {platform},
		"page":   {strconv.Itoa(page)},
	})
	if err != nil {
		return nil, err
	}

	records := make([]SongRecord, 0, len(envelope.Data))
	for _, raw := range envelope.Data {
		var item backup3Song
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		name := firstNonEmpty(item.Name, item.Title, item.Song)
		if name == "" {
			name = unknownSongName
		}
		records = append(records, SongRecord{
			ID:             firstNonEmpty(item.ID.String(), item.SongID.String(), item.URL),
			Name:           name,
			Artist:         firstNonEmpty(string(item.Artist), string(item.Author), string(item.Singer)),
			Album:          item.Album,
			Cover:          normalizeMediaURL(firstNonEmpty(item.Cover, item.Pic)),
			SourcePlatform: platform,
		})
	}
	return records, nil
}

// Playlist 备用源3没有歌单接口。
func (a *Backup3) Playlist(context.Context, string, string) ([]SongRecord, error) {
	return nil, platformerrors.Wrap(platformerrors.KindBadRequest, "tier3.playlist", "备用源3不支持歌单", ErrUnsupportedOperation)
}

// Relay 校验参数后透传备用源3响应。非 JSON 或失败响应统一映射成
// {code,message,data[]} 形态，带一次有限重试。
func (a *Backup3) Relay(ctx context.Context, input, filter, platform string, page int) (Passthrough, error) {
	input = strings.TrimSpace(input)
	filter = strings.TrimSpace(filter)
	if filter == "" {
		filter = "name"
	}
	platform = strings.TrimSpace(platform)

	if input == "" || platform == "" {
		return Passthrough{}, platformerrors.New(platformerrors.KindBadRequest, "tier3.relay", "缺少参数: input / type")
	}
	if !backup3AllowedFilters[filter] {
		return Passthrough{}, platformerrors.New(platformerrors.KindBadRequest, "tier3.relay", "备用源3参数无效: filter")
	}
	if !backup3AllowedTypes[platform] {
		return Passthrough{}, platformerrors.New(platformerrors.KindBadRequest, "tier3.relay", "备用源3参数无效: type")
	}
	if page < 1 {
		page = 1
	}

	form := url.Values{
		"input":  {input},
		"filter": {filter},
		"type":   {platform},
		"page":   {strconv.Itoa(page)},
	}

	lastStatus := http.StatusBadGateway
	lastMessage := "备用源3请求失败"
	lastCode := -1
	var lastData []json.RawMessage

	const maxAttempts = 2
	for attempt := 0; attempt < maxAttempts; attempt++ {
		envelope, status, err := a.call(ctx, "tier3.relay", form)
		if err == nil {
			body, marshalErr := json.Marshal(envelope.raw())
			if marshalErr == nil {
				return Passthrough{
					Status:       http.StatusOK,
					ContentType:  "application/json; charset=utf-8",
					Body:         body,
					CacheControl: "no-store",
				}, nil
			}
			err = marshalErr
		}

		if status > 0 {
			lastStatus = status
		} else {
			lastStatus = http.StatusBadGateway
		}
		if envelope != nil {
			if envelope.Code != nil {
				lastCode = *envelope.Code
			}
			if text := firstNonEmpty(envelope.Error, envelope.Message); text != "" {
				lastMessage = text
			}
			lastData = envelope.Data
		}

		retriable := status == 0 || status >= 500 || status == http.StatusTooManyRequests
		if retriable && attempt < maxAttempts-1 {
			a.sleep(ctx, backupRetryGap*time.Duration(attempt+1))
			continue
		}
		break
	}

	if lastData == nil {
		lastData = []json.RawMessage{}
	}
	body, _ := json.Marshal(map[string]any{
		"code":    lastCode,
		"message": lastMessage,
		"data":    lastData,
	})
	return Passthrough{
		Status:       lastStatus,
		ContentType:  "application/json; charset=utf-8",
		Body:         body,
		CacheControl: "no-store",
	}, nil
}

// raw 把解析后的信封按上游原貌重组，缺省字段不补。
func (e *backup3Envelope) raw() map[string]any {
	out := map[string]any{}
	if e.Code != nil {
		out["code"] = *e.Code
	}
	if e.Error != "" {
		out["error"] = e.Error
	}
	if e.Message != "" {
		out["message"] = e.Message
	}
	if e.Data != nil {
		out["data"] = e.Data
	}
	return out
}

// call 发起一次表单请求。返回的 status 为 0 表示网络层失败。
func (a *Backup3) call(ctx context.Context, op string, form url.Values) (*backup3Envelope, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, platformerrors.Wrap(platformerrors.KindUpstream, op, "构造请求失败", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Origin", "https://musicjx.com")
	req.Header.Set("Referer", "https://musicjx.com/")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, platformerrors.Wrap(platformerrors.KindUpstream, op, "备用源3请求失败", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, resp.StatusCode, platformerrors.Wrap(platformerrors.KindUpstream, op, "读取响应失败", err)
	}

	var envelope backup3Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, resp.StatusCode, errUpstream(op, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &envelope, resp.StatusCode, errUpstream(op, resp.StatusCode, nil)
	}
	return &envelope, resp.StatusCode, nil
}
