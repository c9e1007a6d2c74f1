package media

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
)

// 只等响应头 30 秒，正文是流式转发的，不能让整体超时掐断长下载。
const headerTimeout = 30 * time.Second

// Logger provides the minimal logging contract required by the proxy.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// passthroughHeaders 允许透传给客户端的上游响应头。
var passthroughHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Cache-Control",
	"Last-Modified",
	"ETag",
}

// FetchOptions 携带需要转发给上游的请求头。
type FetchOptions struct {
	Range     string
	UserAgent string
}

// Stream 是一次媒体抓取的结果，Body 必须由调用方关闭。
type Stream struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// Proxy 把远端音频和封面字节流式转发给客户端，转发前做目标校验，
// 防止被当作内网探测的跳板。
type Proxy struct {
	client       *http.Client
	logger       Logger
	allowedHosts []string
}

func NewProxy(logger Logger, allowedHosts []string) *Proxy {
	normalized := make([]string, 0, len(allowedHosts))
	for _, host := range allowedHosts {
		if trimmed := strings.ToLower(strings.TrimSpace(host)); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return &Proxy{
		client: &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: headerTimeout},
		},
		logger:       logger,
		allowedHosts: normalized,
	}
}

// WithHTTPClient 覆盖 HTTP 客户端，仅测试使用。
func (p *Proxy) WithHTTPClient(client *http.Client) *Proxy {
	if client != nil {
		p.client = client
	}
	return p
}

// ValidateTarget 校验并归一化媒体地址。协议相对地址按 https 处理。
func (p *Proxy) ValidateTarget(raw string) (*url.URL, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, platformerrors.New(platformerrors.KindBadRequest, "media.target", "缺少参数: url")
	}
	if strings.HasPrefix(value, "//") {
		value = "https:" + value
	}

	target, err := url.Parse(value)
	if err != nil || target.Hostname() == "" {
		return nil, platformerrors.New(platformerrors.KindBadRequest, "media.target", "url 参数无效")
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, platformerrors.New(platformerrors.KindBadRequest, "media.target", "仅支持 http/https 媒体链接")
	}
	if isBlockedHost(target.Hostname()) {
		return nil, platformerrors.New(platformerrors.KindForbidden, "media.target", "不允许访问该媒体地址")
	}
	if !hostAllowed(target.Hostname(), p.allowedHosts) {
		return nil, platformerrors.New(platformerrors.KindForbidden, "media.target", "该域名未在媒体代理白名单中")
	}
	return target, nil
}

// Fetch 校验目标后向上游发起请求。https 上游连不通时退一次 http，
// 部分老音源只有 http 直链。
func (p *Proxy) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*Stream, error) {
	target, err := p.ValidateTarget(rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := p.fetchOnce(ctx, target.String(), opts)
	if err != nil && target.Scheme == "https" && ctx.Err() == nil {
		fallback := *target
		fallback.Scheme = "http"
		p.logger.Warn("[媒体] https 拉取失败，降级 http 重试: %v", err)
		resp, err = p.fetchOnce(ctx, fallback.String(), opts)
	}
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindUpstream, "media.fetch", "媒体请求失败", err)
	}

	header := http.Header{}
	for _, name := range passthroughHeaders {
		if value := resp.Header.Get(name); value != "" {
			header.Set(name, value)
		}
	}
	return &Stream{
		Status: resp.StatusCode,
		Header: header,
		Body:   resp.Body,
	}, nil
}

func (p *Proxy) fetchOnce(ctx context.Context, target string, opts FetchOptions) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if opts.Range != "" {
		req.Header.Set("Range", opts.Range)
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	return p.client.Do(req)
}

var filenameUnsafe = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f\x7f]`)

var filenameSpaces = regexp.MustCompile(`\s+`)

// SanitizeFilename 清洗下载文件名，去掉路径分隔和控制字符并截断。
func SanitizeFilename(value string) string {
	cleaned := filenameUnsafe.ReplaceAllString(strings.TrimSpace(value), "_")
	cleaned = strings.TrimSpace(filenameSpaces.ReplaceAllString(cleaned, " "))
	if runes := []rune(cleaned); len(runes) > 120 {
		cleaned = string(runes[:120])
	}
	if cleaned == "" {
		return "music"
	}
	return cleaned
}
