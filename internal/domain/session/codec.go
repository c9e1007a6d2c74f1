package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// Codec 负责签发和校验紧凑令牌：base64url(json(载荷)) + "." + base64url(HMAC-SHA256)。
// 签名覆盖的是编码后的正文文本，密钥永远不进入令牌本身；
// 换密钥即作废全部存量令牌，这是接受的运维取舍。
type Codec struct {
	secret []byte
}

func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("签名密钥不能为空")
	}
	return &Codec{secret: []byte(secret)}, nil
}

func (c *Codec) sign(body string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return mac.Sum(nil)
}

// Encode 序列化载荷并附加签名。
func (c *Codec) Encode(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(raw)
	sig := base64.RawURLEncoding.EncodeToString(c.sign(body))
	return body + "." + sig, nil
}

// Decode 校验签名并反序列化到 out。任何结构性问题（段数不对、
// base64 坏、JSON 坏）或签名不符都返回 false，调用方一律当作未认证处理。
func (c *Codec) Decode(token string, out any) bool {
	body, sigText, ok := strings.Cut(token, ".")
	if !ok || body == "" || sigText == "" || strings.Contains(sigText, ".") {
		return false
	}

	got, err := base64.RawURLEncoding.DecodeString(sigText)
	if err != nil {
		return false
	}
	// hmac.Equal 为常量时间比较
	if !hmac.Equal(got, c.sign(body)) {
		return false
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}
