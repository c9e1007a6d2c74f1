package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = ".downloadmusic.yaml"

// Loader 负责组合默认值、yaml 文件和环境变量三层配置。
type Loader struct {
	useDotEnv bool
	path      string
}

func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the yaml configuration path (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load 按 默认值 -> yaml -> 环境变量 的顺序装配配置。
// yaml 文件缺失不算错误，机密项通常只通过环境变量下发。
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("未找到 .env 文件，使用系统环境变量")
		}
	}

	path := l.path
	if path == "" {
		path = os.Getenv("DM_CONFIG")
	}
	if path == "" {
		path = defaultConfigPath
	}

	cfg := DefaultConfig()
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Session.Secret, "SESSION_SECRET")
	setString(&cfg.Session.AdminPassword, "ADMIN_PASSWORD")
	setString(&cfg.Session.CookieName, "SESSION_COOKIE_NAME")
	setString(&cfg.Session.CookieSameSite, "SESSION_COOKIE_SAMESITE")
	setString(&cfg.Session.CookieDomain, "SESSION_COOKIE_DOMAIN")
	setCSV(&cfg.Session.FrontendURLs, "FRONTEND_URLS")
	setCSV(&cfg.Server.AllowedOrigins, "ALLOWED_ORIGINS")

	setString(&cfg.OAuth.ClientID, "OAUTH_CLIENT_ID")
	setString(&cfg.OAuth.ClientSecret, "OAUTH_CLIENT_SECRET")
	setString(&cfg.OAuth.AuthorizationEndpoint, "OAUTH_AUTHORIZATION_ENDPOINT")
	setString(&cfg.OAuth.TokenEndpoint, "OAUTH_TOKEN_ENDPOINT")
	setString(&cfg.OAuth.UserEndpoint, "OAUTH_USER_ENDPOINT")
	setString(&cfg.OAuth.RedirectURI, "OAUTH_REDIRECT_URI")
	setString(&cfg.OAuth.Scope, "OAUTH_SCOPE")

	setString(&cfg.Parse.APIKey, "TUNEHUB_API_KEY")
	setString(&cfg.Resolve.Store.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Resolve.Store.Redis.Password, "REDIS_PASSWORD")
	setCSV(&cfg.Media.AllowedHosts, "MEDIA_PROXY_ALLOWED_HOSTS")
}

func setString(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

func setCSV(target *[]string, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) > 0 {
		*target = items
	}
}
