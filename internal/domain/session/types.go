package session

// AuthMethod 标识会话的登录方式。
type AuthMethod string

const (
	AuthPassword AuthMethod = "password"
	AuthOAuth    AuthMethod = "oauth"
)

// User 是写入会话令牌的用户快照，签发后不可变。
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
	Avatar     string `json:"avatar"`
}

// Claims 是会话令牌的载荷。服务端不持久化任何会话状态，
// 校验只依赖签名和 exp。
type Claims struct {
	Type     AuthMethod `json:"type"`
	User     User       `json:"user"`
	IssuedAt int64      `json:"iat"`
	Expires  int64      `json:"exp"`
}

// StateClaims 是 OAuth 回跳 state 的载荷。只靠 10 分钟过期兜底，
// 窗口内重放是已记录的已知限制（无状态运行时下没有消费台账）。
type StateClaims struct {
	Nonce    string `json:"nonce"`
	Redirect string `json:"redirect"`
	IssuedAt int64  `json:"iat"`
	Expires  int64  `json:"exp"`
}

// Logger provides the minimal logging contract required by the session domain.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}
