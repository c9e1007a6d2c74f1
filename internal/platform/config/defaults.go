package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8090,
		},
		Log: LogConfig{
			Level: "info",
		},
		Web: WebConfig{
			Enabled:   false,
			StaticDir: "./web",
		},
		Session: SessionConfig{
			TTL:            30 * 24 * time.Hour,
			CookieName:     "dm_session",
			CookieSameSite: "None",
		},
		OAuth: OAuthConfig{
			AuthorizationEndpoint: "https://connect.linux.do/oauth2/authorize",
			TokenEndpoint:         "https://connect.linux.do/oauth2/token",
			UserEndpoint:          "https://connect.linux.do/api/user",
			Scope:                 "openid profile",
		},
		Resolve: ResolveConfig{
			BreakerCooldown: 45 * time.Second,
			Store: StoreConfig{
				Driver: "memory",
			},
		},
		Parse: ParseConfig{
			Endpoint: "https://tunehub.sayqz.com/api/v1/parse",
			Timeout:  20 * time.Second,
		},
		Media: MediaConfig{
			Timeout: 30 * time.Second,
		},
	}
}
