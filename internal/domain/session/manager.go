package session

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/xiangmingya/DownloadMusic/internal/platform/config"
	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
)

const (
	stateTTL       = 10 * time.Minute
	oauthTimeout   = 15 * time.Second
	statusTimeout  = 6 * time.Second
	defaultCookie  = "dm_session"
	defaultTTL     = 30 * 24 * time.Hour
	adminUserName  = "管理员"
	loginFailedMsg = "密码错误，请重试。"
)

// OAuth 回跳失败时用于构造 ?login=failed_* 标记的哨兵错误。
var (
	ErrOAuthNotConfigured = errors.New("oauth not configured")
	ErrBadState           = errors.New("oauth state invalid")
	ErrTokenExchange      = errors.New("oauth token exchange failed")
	ErrUserFetch          = errors.New("oauth user fetch failed")
	ErrNoUserID           = errors.New("oauth user id missing")
)

// Manager 基于令牌编解码器构建登录、登出和身份查询。
// 运行时无状态：登出只是让客户端丢弃 Cookie。
type Manager struct {
	cfg    config.SessionConfig
	oauth  config.OAuthConfig
	codec  *Codec
	logger Logger
	client *http.Client
	now    func() time.Time
}

func NewManager(cfg config.SessionConfig, oauth config.OAuthConfig, logger Logger) (*Manager, error) {
	codec, err := NewCodec(cfg.Secret)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "session.new", "会话密钥未配置", err)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookie
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	return &Manager{
		cfg:    cfg,
		oauth:  oauth,
		codec:  codec,
		logger: logger,
		client: &http.Client{Timeout: oauthTimeout},
		now:    time.Now,
	}, nil
}

// WithClock 注入时钟，仅测试使用。
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

// WithHTTPClient 覆盖与 OAuth 提供方通信的客户端，仅测试使用。
func (m *Manager) WithHTTPClient(client *http.Client) *Manager {
	if client != nil {
		m.client = client
	}
	return m
}

func (m *Manager) issueToken(method AuthMethod, user User) (string, error) {
	now := m.now()
	return m.codec.Encode(Claims{
		Type:     method,
		User:     user,
		IssuedAt: now.Unix(),
		Expires:  now.Add(m.cfg.TTL).Unix(),
	})
}

// PasswordLogin 以常量时间比较校验共享口令。密码模式下不存在
// 按用户的存储，所有调用方共享同一个管理员身份。
func (m *Manager) PasswordLogin(candidate string) (string, error) {
	configured := strings.TrimSpace(m.cfg.AdminPassword)
	if configured == "" {
		return "", platformerrors.New(platformerrors.KindNotConfigured, "session.password", "ADMIN_PASSWORD 未配置")
	}
	if candidate == "" ||
		subtle.ConstantTimeCompare([]byte(candidate), []byte(configured)) != 1 {
		return "", platformerrors.New(platformerrors.KindUnauthorized, "session.password", loginFailedMsg)
	}

	return m.issueToken(AuthPassword, User{ID: "admin", Name: adminUserName})
}

// Identity 校验令牌并返回其载荷。签名和过期校验都失败闭合。
func (m *Manager) Identity(token string) (Claims, error) {
	var claims Claims
	if token == "" || !m.codec.Decode(token, &claims) {
		return Claims{}, platformerrors.New(platformerrors.KindUnauthorized, "session.identity", "Unauthorized")
	}
	if claims.Expires <= 0 || claims.Expires < m.now().Unix() {
		return Claims{}, platformerrors.New(platformerrors.KindUnauthorized, "session.identity", "Unauthorized")
	}
	return claims, nil
}

func (m *Manager) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.oauth.ClientID,
		ClientSecret: m.oauth.ClientSecret,
		RedirectURL:  m.oauth.RedirectURI,
		Scopes:       strings.Fields(m.oauth.Scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:   m.oauth.AuthorizationEndpoint,
			TokenURL:  m.oauth.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// StartOAuth 签发 state 令牌并返回提供方的授权地址。
// redirect 会先经过白名单收敛，防止借 state 往返做开放重定向。
func (m *Manager) StartOAuth(redirect, requestOrigin string) (string, error) {
	if !m.oauth.Configured() {
		return "", platformerrors.New(platformerrors.KindNotConfigured, "session.oauth", "OAuth 登录未配置")
	}

	now := m.now()
	state, err := m.codec.Encode(StateClaims{
		Nonce:    uuid.NewString(),
		Redirect: m.SafeRedirect(redirect, requestOrigin),
		IssuedAt: now.Unix(),
		Expires:  now.Add(stateTTL).Unix(),
	})
	if err != nil {
		return "", err
	}

	return m.oauthConfig().AuthCodeURL(state), nil
}

// CompleteOAuth 消费回跳：验 state、换 access token、取用户信息、签发会话。
// 任何一步失败都会返回收敛后的跳转地址，调用方以 login=failed_* 标记回跳。
func (m *Manager) CompleteOAuth(ctx context.Context, code, state, requestOrigin string) (token string, redirectTo string, err error) {
	fallback := m.SafeRedirect("", requestOrigin)
	if !m.oauth.Configured() || code == "" || state == "" {
		return "", fallback, ErrOAuthNotConfigured
	}

	var stateClaims StateClaims
	if !m.codec.Decode(state, &stateClaims) ||
		stateClaims.Expires <= 0 || stateClaims.Expires < m.now().Unix() {
		return "", fallback, ErrBadState
	}
	redirectTo = m.SafeRedirect(stateClaims.Redirect, requestOrigin)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.client)
	accessToken, err := m.oauthConfig().Exchange(ctx, code)
	if err != nil || accessToken.AccessToken == "" {
		m.logger.Warn("[认证] OAuth 换取 access token 失败: %v", err)
		return "", redirectTo, ErrTokenExchange
	}

	payload, err := m.fetchUser(ctx, accessToken.AccessToken)
	if err != nil {
		m.logger.Warn("[认证] OAuth 获取用户信息失败: %v", err)
		return "", redirectTo, ErrUserFetch
	}

	externalID := pickString(payload, "id", "sub", "user_id")
	if externalID == "" {
		return "", redirectTo, ErrNoUserID
	}

	name := pickString(payload, "username", "name", "login", "nickname")
	if name == "" {
		name = "oauth_" + externalID
	}

	user := User{
		ID:         externalID,
		Name:       name,
		ExternalID: externalID,
		Avatar:     normalizeAvatar(pickString(payload, "avatar", "avatar_url", "picture")),
	}
	token, err = m.issueToken(AuthOAuth, user)
	if err != nil {
		return "", redirectTo, err
	}
	m.logger.Info("[认证] OAuth 登录成功: %s", user.Name)
	return token, redirectTo, nil
}

func (m *Manager) fetchUser(ctx context.Context, accessToken string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.oauth.UserEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("用户信息接口返回 %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	// 部分提供方把用户信息包一层 data
	if inner, ok := payload["data"].(map[string]any); ok {
		return inner, nil
	}
	return payload, nil
}

// SafeRedirect 把登录后的跳转地址收敛到前端白名单。
// 未命中或没有配置白名单时回落到首个配置地址，再退到请求来源。
func (m *Manager) SafeRedirect(raw, requestOrigin string) string {
	fallback := requestOrigin
	if len(m.cfg.FrontendURLs) > 0 {
		fallback = m.cfg.FrontendURLs[0]
	}

	if raw == "" {
		return fallback
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fallback
	}
	target := parsed.Scheme + "://" + parsed.Host
	for _, candidate := range m.cfg.FrontendURLs {
		allowed, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		if allowed.Scheme+"://"+allowed.Host == target {
			return parsed.String()
		}
	}
	return fallback
}

// StatusReport describes whether OAuth login can be offered.
type StatusReport struct {
	Configured bool   `json:"configured"`
	Reachable  bool   `json:"reachable"`
	Reason     string `json:"reason"`
}

// Status 探测授权端点可达性，供前端决定是否展示 OAuth 入口。
func (m *Manager) Status(ctx context.Context) StatusReport {
	if !m.oauth.Configured() {
		return StatusReport{Reason: "not_configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.oauth.AuthorizationEndpoint, nil)
	if err != nil {
		return StatusReport{Configured: true, Reason: err.Error()}
	}

	probe := &http.Client{
		Timeout: statusTimeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := probe.Do(req)
	if err != nil {
		return StatusReport{Configured: true, Reason: "network_error"}
	}
	defer resp.Body.Close()
	return StatusReport{Configured: true, Reachable: true, Reason: "ok"}
}

// Cookie 构造会话 Cookie。SameSite=None + Secure 是跨站前端的默认形态。
func (m *Manager) Cookie(token string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteNoneMode
	switch strings.ToLower(m.cfg.CookieSameSite) {
	case "lax":
		sameSite = http.SameSiteLaxMode
	case "strict":
		sameSite = http.SameSiteStrictMode
	}
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   m.cfg.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: sameSite,
	}
}

// ClearCookie 让客户端丢弃会话。
func (m *Manager) ClearCookie() *http.Cookie {
	cookie := m.Cookie("", 0)
	cookie.MaxAge = -1
	return cookie
}

func (m *Manager) CookieName() string {
	return m.cfg.CookieName
}

func (m *Manager) TTLSeconds() int {
	return int(m.cfg.TTL / time.Second)
}

func pickString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		switch value := payload[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		case float64:
			return strings.TrimSpace(fmt.Sprintf("%.0f", value))
		}
	}
	return ""
}

func normalizeAvatar(raw string) string {
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}
