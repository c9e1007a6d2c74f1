package authapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xiangmingya/DownloadMusic/internal/domain/session"
	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
	"github.com/xiangmingya/DownloadMusic/internal/platform/logging"
	httptransport "github.com/xiangmingya/DownloadMusic/internal/transport/http"
)

// Service 认证接口的HTTP传输层实现
type Service struct {
	manager *session.Manager
	logger  *logging.Logger
}

// NewService 创建新的认证服务实例
func NewService(manager *session.Manager, logger *logging.Logger) (*Service, error) {
	if manager == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "authapi.new", "session manager is required")
	}
	if logger == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "authapi.new", "logger is required")
	}
	return &Service{manager: manager, logger: logger}, nil
}

// Register 注册认证相关的HTTP路由
func (s *Service) Register(router *gin.RouterGroup, secured *gin.RouterGroup) {
	router.POST("/auth/login/password", s.handlePasswordLogin)
	router.GET("/auth/login/oauth", s.handleOAuthStart)
	router.GET("/auth/callback/oauth", s.handleOAuthCallback)
	router.GET("/auth/oauth-status", s.handleOAuthStatus)

	secured.POST("/auth/logout", s.handleLogout)
	secured.GET("/auth/me", s.handleMe)

	s.logger.InfoTag("HTTP", "认证服务路由注册完成")
}

type passwordLoginRequest struct {
	Password string `json:"password"`
}

func (s *Service) handlePasswordLogin(c *gin.Context) {
	var req passwordLoginRequest
	_ = c.ShouldBindJSON(&req)

	token, err := s.manager.PasswordLogin(req.Password)
	if err != nil {
		httptransport.RespondAppError(c, err)
		return
	}

	http.SetCookie(c.Writer, s.manager.Cookie(token, s.manager.TTLSeconds()))
	httptransport.RespondSuccess(c, nil)
}

func (s *Service) handleOAuthStart(c *gin.Context) {
	authURL, err := s.manager.StartOAuth(c.Query("redirect"), requestOrigin(c))
	if err != nil {
		httptransport.RespondAppError(c, err)
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

func (s *Service) handleOAuthCallback(c *gin.Context) {
	token, redirectTo, err := s.manager.CompleteOAuth(
		c.Request.Context(),
		c.Query("code"),
		c.Query("state"),
		requestOrigin(c),
	)
	if err != nil {
		c.Redirect(http.StatusFound, withLoginMarker(redirectTo, failureMarker(err)))
		return
	}

	http.SetCookie(c.Writer, s.manager.Cookie(token, s.manager.TTLSeconds()))
	c.Redirect(http.StatusFound, redirectTo)
}

func (s *Service) handleLogout(c *gin.Context) {
	http.SetCookie(c.Writer, s.manager.ClearCookie())
	httptransport.RespondSuccess(c, nil)
}

func (s *Service) handleMe(c *gin.Context) {
	claims, ok := httptransport.ClaimsFrom(c)
	if !ok {
		httptransport.RespondUnauthorized(c)
		return
	}
	httptransport.RespondSuccess(c, gin.H{
		"auth_type":        string(claims.Type),
		"user":             claims.User,
		"using_server_key": claims.Type == session.AuthPassword,
	})
}

func (s *Service) handleOAuthStatus(c *gin.Context) {
	httptransport.RespondSuccess(c, s.manager.Status(c.Request.Context()))
}

// failureMarker 把回跳失败原因折算成前端可识别的 login 标记。
func failureMarker(err error) string {
	switch {
	case errors.Is(err, session.ErrBadState):
		return "failed_state"
	case errors.Is(err, session.ErrTokenExchange):
		return "failed_token"
	case errors.Is(err, session.ErrUserFetch):
		return "failed_user"
	case errors.Is(err, session.ErrNoUserID):
		return "failed_userid"
	default:
		return "failed"
	}
}

func withLoginMarker(redirectTo, marker string) string {
	separator := "?"
	if strings.Contains(redirectTo, "?") {
		separator = "&"
	}
	return redirectTo + separator + "login=" + marker
}

// requestOrigin 计算请求来源，优先 Origin 头，缺省按请求地址推导。
func requestOrigin(c *gin.Context) string {
	if origin := c.GetHeader("Origin"); origin != "" {
		return origin
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
