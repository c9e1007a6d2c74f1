package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
)

const parseTimeout = 20 * time.Second

// ParseRequest 是直链解析的入参，三个字段都必填。
type ParseRequest struct {
	Platform string `json:"platform"`
	IDs      string `json:"ids"`
	Quality  string `json:"quality"`
}

// TuneHub 把解析请求转发到 TuneHub，密码登录用服务端密钥，
// OAuth 登录用用户自带的密钥。
type TuneHub struct {
	client    *http.Client
	logger    Logger
	endpoint  string
	serverKey string
}

func NewTuneHub(logger Logger, endpoint, serverKey string) *TuneHub {
	return &TuneHub{
		client:    &http.Client{Timeout: parseTimeout},
		logger:    logger,
		endpoint:  endpoint,
		serverKey: strings.TrimSpace(serverKey),
	}
}

// WithHTTPClient 覆盖 HTTP 客户端，仅测试使用。
func (t *TuneHub) WithHTTPClient(client *http.Client) *TuneHub {
	if client != nil {
		t.client = client
	}
	return t
}

// keyLooksInvalid 识别空密钥和文档里的占位符。
func keyLooksInvalid(key string) bool {
	value := strings.TrimSpace(key)
	if value == "" {
		return true
	}
	if !strings.HasPrefix(value, "th_") {
		return true
	}
	if strings.Contains(value, "replace_with_your_real_key") {
		return true
	}
	return false
}

// ResolveKey 按登录方式选择密钥。密码登录只信服务端配置，
// OAuth 登录只信请求头里用户自己填的。
func (t *TuneHub) ResolveKey(authType, headerKey string) (string, error) {
	if authType == "password" {
		if keyLooksInvalid(t.serverKey) {
			return "", platformerrors.New(platformerrors.KindBadRequest, "tunehub.key",
				"请先在服务端配置 TUNEHUB_API_KEY")
		}
		return t.serverKey, nil
	}
	key := strings.TrimSpace(headerKey)
	if keyLooksInvalid(key) {
		return "", platformerrors.New(platformerrors.KindBadRequest, "tunehub.key",
			"请先在页面填写你自己的 TuneHub API Key")
	}
	return key, nil
}

// Parse 转发解析请求并原样回传上游的状态码和响应体。
func (t *TuneHub) Parse(ctx context.Context, key string, req ParseRequest) (Passthrough, error) {
	req.Platform = strings.TrimSpace(req.Platform)
	req.IDs = strings.TrimSpace(req.IDs)
	req.Quality = strings.TrimSpace(req.Quality)
	if req.Platform == "" || req.IDs == "" || req.Quality == "" {
		return Passthrough{}, platformerrors.New(platformerrors.KindBadRequest, "tunehub.parse",
			"缺少参数: platform / ids / quality")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return Passthrough{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Passthrough{}, platformerrors.Wrap(platformerrors.KindUpstream, "tunehub.parse", "构造请求失败", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", key)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Passthrough{}, platformerrors.Wrap(platformerrors.KindUpstream, "tunehub.parse", "解析服务请求失败", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return Passthrough{}, platformerrors.Wrap(platformerrors.KindUpstream, "tunehub.parse", "读取响应失败", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	return Passthrough{
		Status:       resp.StatusCode,
		ContentType:  contentType,
		Body:         body,
		CacheControl: "no-store",
	}, nil
}
