package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
)

const metaTimeout = 15 * time.Second

var (
	reduxStatePattern = regexp.MustCompile(`window\.REDUX_STATE\s*=\s*(\{[\s\S]*?\})\s*;`)
	ogImagePattern    = regexp.MustCompile(`(?i)<meta\s+property="og:image"\s+content="([^"]*)"\s*/?>`)
)

// TrackMeta 是单曲元数据补全的结果。
type TrackMeta struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Cover  string `json:"cover,omitempty"`
}

// Meta 从网易云移动端歌曲页抓取元数据。页面内嵌一份
// REDUX_STATE，比公开接口的字段更全，拿不到时退回 og:image。
type Meta struct {
	client *http.Client
	logger Logger
	base   string
}

func NewMeta(logger Logger) *Meta {
	return &Meta{
		client: &http.Client{Timeout: metaTimeout},
		logger: logger,
		base:   "https://y.music.163.com/m/song",
	}
}

// WithBaseURL 覆盖抓取地址，仅测试使用。
func (m *Meta) WithBaseURL(base string) *Meta {
	m.base = base
	return m
}

type reduxState struct {
	Song struct {
		ID   stringOrNumber `json:"id"`
		Name string         `json:"name"`
		Ar   []struct {
			Name string `json:"name"`
		} `json:"ar"`
		Al struct {
			Name   string `json:"name"`
			PicURL string `json:"picUrl"`
		} `json:"al"`
		Album struct {
			Name   string `json:"name"`
			PicURL string `json:"picUrl"`
		} `json:"album"`
	} `json:"Song"`
}

// Lookup 补全单曲元数据。只有网易云支持，其他平台返回空结果。
func (m *Meta) Lookup(ctx context.Context, platform, id string) (TrackMeta, error) {
	platform = strings.TrimSpace(platform)
	id = strings.TrimSpace(id)
	if platform == "" || id == "" {
		return TrackMeta{}, platformerrors.New(platformerrors.KindBadRequest, "meta.lookup", "缺少参数: platform / id")
	}
	if platform != "netease" {
		return TrackMeta{}, nil
	}

	target := fmt.Sprintf("%s?id=%s", m.base, url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return TrackMeta{}, platformerrors.Wrap(platformerrors.KindUpstream, "meta.lookup", "构造请求失败", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 13) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0 Mobile Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Referer", "https://music.163.com/")

	resp, err := m.client.Do(req)
	if err != nil {
		return TrackMeta{}, errUpstream("meta.lookup", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return TrackMeta{}, errUpstream("meta.lookup", resp.StatusCode, nil)
	}

	html, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return TrackMeta{}, errUpstream("meta.lookup", 0, err)
	}

	meta := TrackMeta{ID: id}
	if match := reduxStatePattern.FindSubmatch(html); match != nil {
		var state reduxState
		if err := json.Unmarshal(match[1], &state); err == nil {
			song := state.Song
			if text := song.ID.String(); text != "" {
				meta.ID = text
			}
			meta.Name = song.Name
			names := make([]string, 0, len(song.Ar))
			for _, artist := range song.Ar {
				if artist.Name != "" {
					names = append(names, artist.Name)
				}
			}
			meta.Artist = strings.Join(names, ", ")
			meta.Album = firstNonEmpty(song.Al.Name, song.Album.Name)
			meta.Cover = normalizeMediaURL(firstNonEmpty(song.Al.PicURL, song.Album.PicURL))
		}
	}
	if meta.Cover == "" {
		if match := ogImagePattern.FindSubmatch(html); match != nil {
			meta.Cover = normalizeMediaURL(string(match[1]))
		}
	}
	return meta, nil
}
