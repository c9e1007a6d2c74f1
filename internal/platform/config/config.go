package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Web     WebConfig     `yaml:"web"`
	Session SessionConfig `yaml:"session"`
	OAuth   OAuthConfig   `yaml:"oauth"`
	Resolve ResolveConfig `yaml:"resolve"`
	Parse   ParseConfig   `yaml:"parse"`
	Media   MediaConfig   `yaml:"media"`
}

type ServerConfig struct {
	IP             string   `yaml:"ip"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
}

// WebConfig 控制可选的前端静态资源托管。
type WebConfig struct {
	Enabled   bool   `yaml:"enabled"`
	StaticDir string `yaml:"static_dir"`
}

type SessionConfig struct {
	Secret         string        `yaml:"secret"`
	TTL            time.Duration `yaml:"ttl"`
	CookieName     string        `yaml:"cookie_name"`
	CookieSameSite string        `yaml:"cookie_samesite"`
	CookieDomain   string        `yaml:"cookie_domain"`
	AdminPassword  string        `yaml:"admin_password"`
	// FrontendURLs 既是 OAuth 登录后的跳转白名单，也提供默认跳转地址
	FrontendURLs []string `yaml:"frontend_urls"`
}

type OAuthConfig struct {
	ClientID              string `yaml:"client_id"`
	ClientSecret          string `yaml:"client_secret"`
	AuthorizationEndpoint string `yaml:"authorization_endpoint"`
	TokenEndpoint         string `yaml:"token_endpoint"`
	UserEndpoint          string `yaml:"user_endpoint"`
	RedirectURI           string `yaml:"redirect_uri"`
	Scope                 string `yaml:"scope"`
}

// Configured 判断 OAuth 登录是否具备全部必需配置。
func (c OAuthConfig) Configured() bool {
	return c.ClientID != "" &&
		c.ClientSecret != "" &&
		c.AuthorizationEndpoint != "" &&
		c.TokenEndpoint != "" &&
		c.UserEndpoint != "" &&
		c.RedirectURI != ""
}

type ResolveConfig struct {
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
	Store           StoreConfig   `yaml:"store"`
}

type StoreConfig struct {
	Driver string           `yaml:"driver"`
	Redis  RedisStoreConfig `yaml:"redis,omitempty"`
}

type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type ParseConfig struct {
	// APIKey 服务端持有的 TuneHub Key，仅密码登录会话使用
	APIKey   string        `yaml:"api_key"`
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

type MediaConfig struct {
	// AllowedHosts 非空时目标域名必须命中其中一条（精确或后缀匹配）
	AllowedHosts []string      `yaml:"allowed_hosts"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Validate 校验启动必需项，缺失即拒绝启动而不是带病运行。
func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return fmt.Errorf("session.secret (或 SESSION_SECRET) 未配置")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port 无效: %d", c.Server.Port)
	}
	switch c.Resolve.Store.Driver {
	case "", "memory":
	case "redis":
		if c.Resolve.Store.Redis.Addr == "" {
			return fmt.Errorf("resolve.store.redis.addr 未配置")
		}
	default:
		return fmt.Errorf("不支持的状态存储驱动: %s", c.Resolve.Store.Driver)
	}
	return nil
}
