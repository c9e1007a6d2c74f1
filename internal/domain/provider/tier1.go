package provider

import (
	"context"
	"net/http"
	"time"
)

// MethodsMap 是平台到支持操作的映射，由 /methods 直接返回。
var MethodsMap = map[string][]string{
	"netease": {"search", "playlist"},
	"qq":      {"search", "playlist"},
	"kuwo":    {"search", "playlist"},
}

const tier1Timeout = 15 * time.Second

// Tier1 聚合三个平台原生接口的适配器。平台间响应结构差异
// （artist 数组还是字符串、字段命名漂移）全部吸收在这一层内。
type Tier1 struct {
	client *http.Client
	logger Logger

	neteaseBase      string
	qqSearchBase     string
	qqPlaylistBase   string
	kuwoSearchBase   string
	kuwoPlaylistBase string
}

func NewTier1(logger Logger) *Tier1 {
	return &Tier1{
		client:           &http.Client{Timeout: tier1Timeout},
		logger:           logger,
		neteaseBase:      "https://music.163.com",
		qqSearchBase:     "https://u.y.qq.com",
		qqPlaylistBase:   "https://c.y.qq.com",
		kuwoSearchBase:   "http://search.kuwo.cn",
		kuwoPlaylistBase: "http://nplserver.kuwo.cn",
	}
}

// WithBaseURLs 覆盖上游地址，仅测试使用。
func (a *Tier1) WithBaseURLs(base string) *Tier1 {
	a.neteaseBase = base
	a.qqSearchBase = base
	a.qqPlaylistBase = base
	a.kuwoSearchBase = base
	a.kuwoPlaylistBase = base
	return a
}

// WithHTTPClient 覆盖 HTTP 客户端，仅测试使用。
func (a *Tier1) WithHTTPClient(client *http.Client) *Tier1 {
	if client != nil {
		a.client = client
	}
	return a
}

func (a *Tier1) Name() string { return "primary" }

func (a *Tier1) Search(ctx context.Context, platform, keyword string, page, limit int) ([]SongRecord, error) {
	switch platform {
	case "netease":
		return a.neteaseSearch(ctx, keyword, page, limit)
	case "qq":
		return a.qqSearch(ctx, keyword, page, limit)
	case "kuwo":
		return a.kuwoSearch(ctx, keyword, page, limit)
	default:
		return nil, errUnsupportedPlatform("tier1.search")
	}
}

func (a *Tier1) Playlist(ctx context.Context, platform, id string) ([]SongRecord, error) {
	switch platform {
	case "netease":
		return a.neteasePlaylist(ctx, id)
	case "qq":
		return a.qqPlaylist(ctx, id)
	case "kuwo":
		return a.kuwoPlaylist(ctx, id)
	default:
		return nil, errUnsupportedPlatform("tier1.playlist")
	}
}
