package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
)

// ErrUnsupportedOperation 标记某层音源不支持请求的操作。
// 解析流水线据此跳到下一层，不把它算作该层的失败。
var ErrUnsupportedOperation = errors.New("该层音源不支持此操作")

// SongRecord 是所有适配器统一产出的歌曲记录。
// (SourcePlatform, ID) 是自然键，跨层级的结果从不合并。
type SongRecord struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Artist         string `json:"artist"`
	Album          string `json:"album"`
	Cover          string `json:"cover"`
	SourcePlatform string `json:"source_platform"`
	OriginTier     string `json:"origin_tier"`
}

// ParsedTrack 是解析接口返回的播放/下载信息。
type ParsedTrack struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Lyric   string `json:"lyric"`
	Quality string `json:"quality"`
}

const unknownSongName = "未知歌曲"

// Logger provides the minimal logging contract required by adapters.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// errUpstream 标记系统性故障：超时、网络错误、5xx、429。
// 只有这类错误会触发熔断。
func errUpstream(op string, status int, cause error) error {
	if cause != nil {
		return platformerrors.Wrap(platformerrors.KindUpstream, op, "上游请求失败", cause)
	}
	return platformerrors.New(platformerrors.KindUpstream, op, fmt.Sprintf("上游请求失败 (%d)", status))
}

func errUnsupportedPlatform(op string) error {
	return platformerrors.New(platformerrors.KindBadRequest, op, "不支持的平台")
}

// normalizeMediaURL 把协议相对地址补全为 https。
func normalizeMediaURL(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "//") {
		return "https:" + value
	}
	return value
}

// fetchJSON 发起请求并解析 JSON 响应。非 2xx、网络错误和非 JSON
// 正文统一折算成上游错误，原始错误文本不会离开适配器。
func fetchJSON(ctx context.Context, client *http.Client, op, method, endpoint string, headers map[string]string, query url.Values, body any, out any) error {
	if len(query) > 0 {
		separator := "?"
		if strings.Contains(endpoint, "?") {
			separator = "&"
		}
		endpoint += separator + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errUpstream(op, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return errUpstream(op, resp.StatusCode, nil)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return errUpstream(op, 0, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errUpstream(op, resp.StatusCode, nil)
	}
	return nil
}

// stringOrNumber 兼容上游把 id 写成数字或字符串两种习惯。
type stringOrNumber string

func (s *stringOrNumber) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = ""
		return nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*s = stringOrNumber(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return err
	}
	*s = stringOrNumber(number.String())
	return nil
}

func (s stringOrNumber) String() string { return string(s) }
