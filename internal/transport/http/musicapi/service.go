package musicapi

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xiangmingya/DownloadMusic/internal/domain/media"
	"github.com/xiangmingya/DownloadMusic/internal/domain/provider"
	"github.com/xiangmingya/DownloadMusic/internal/domain/resolve"
	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
	"github.com/xiangmingya/DownloadMusic/internal/platform/logging"
	httptransport "github.com/xiangmingya/DownloadMusic/internal/transport/http"
)

// Service 音乐网关接口的HTTP传输层实现
type Service struct {
	pipeline *resolve.Pipeline
	backup   *provider.Backup
	backup3  *provider.Backup3
	tunehub  *provider.TuneHub
	meta     *provider.Meta
	proxy    *media.Proxy
	logger   *logging.Logger
}

// Dependencies 汇总音乐服务需要的领域组件。
type Dependencies struct {
	Pipeline *resolve.Pipeline
	Backup   *provider.Backup
	Backup3  *provider.Backup3
	TuneHub  *provider.TuneHub
	Meta     *provider.Meta
	Proxy    *media.Proxy
}

// NewService 创建新的音乐服务实例
func NewService(deps Dependencies, logger *logging.Logger) (*Service, error) {
	if deps.Pipeline == nil || deps.Backup == nil || deps.Backup3 == nil ||
		deps.TuneHub == nil || deps.Meta == nil || deps.Proxy == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "musicapi.new", "missing domain dependencies")
	}
	if logger == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "musicapi.new", "logger is required")
	}
	return &Service{
		pipeline: deps.Pipeline,
		backup:   deps.Backup,
		backup3:  deps.Backup3,
		tunehub:  deps.TuneHub,
		meta:     deps.Meta,
		proxy:    deps.Proxy,
		logger:   logger,
	}, nil
}

// Register 注册音乐相关的HTTP路由，全部要求会话。
func (s *Service) Register(secured *gin.RouterGroup) {
	secured.GET("/methods", s.handleMethods)
	secured.GET("/method", s.handleMethod)
	secured.GET("/resolve-status", s.handleResolveStatus)
	secured.POST("/parse", s.handleParse)
	secured.GET("/meta", s.handleMeta)
	secured.GET("/media", s.handleMedia)
	secured.GET("/backup", s.handleBackup)
	secured.GET("/backup3", s.handleBackup3)

	s.logger.InfoTag("HTTP", "音乐服务路由注册完成")
}

func (s *Service) handleMethods(c *gin.Context) {
	httptransport.RespondSuccess(c, provider.MethodsMap)
}

func (s *Service) handleResolveStatus(c *gin.Context) {
	httptransport.RespondSuccess(c, gin.H{"tiers": s.pipeline.Status(c.Request.Context())})
}

func (s *Service) handleMethod(c *gin.Context) {
	platform := c.Query("platform")
	functionName := c.Query("functionName")
	if platform == "" || functionName == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "缺少参数: platform / functionName")
		return
	}

	switch functionName {
	case "search":
		keyword := c.Query("keyword")
		if keyword == "" {
			httptransport.RespondError(c, http.StatusBadRequest, "缺少参数: keyword")
			return
		}
		page := toPositiveInt(c.Query("page"), 1)
		limit := toPositiveInt(c.Query("limit"), 20)

		records, err := s.pipeline.Search(c.Request.Context(), platform, keyword, page, limit)
		if err != nil {
			httptransport.RespondAppError(c, err)
			return
		}
		httptransport.RespondSuccess(c, records)

	case "playlist":
		id := c.Query("id")
		if id == "" {
			httptransport.RespondError(c, http.StatusBadRequest, "缺少参数: id")
			return
		}
		records, err := s.pipeline.Playlist(c.Request.Context(), platform, id)
		if err != nil {
			httptransport.RespondAppError(c, err)
			return
		}
		httptransport.RespondSuccess(c, records)

	default:
		httptransport.RespondError(c, http.StatusBadRequest, "不支持的方法，只支持 search / playlist")
	}
}

func (s *Service) handleParse(c *gin.Context) {
	claims, ok := httptransport.ClaimsFrom(c)
	if !ok {
		httptransport.RespondUnauthorized(c)
		return
	}

	var req provider.ParseRequest
	_ = c.ShouldBindJSON(&req)

	key, err := s.tunehub.ResolveKey(string(claims.Type), c.GetHeader("X-Tunehub-Key"))
	if err != nil {
		httptransport.RespondAppError(c, err)
		return
	}

	result, err := s.tunehub.Parse(c.Request.Context(), key, req)
	if err != nil {
		httptransport.RespondAppError(c, err)
		return
	}
	c.Data(result.Status, result.ContentType, result.Body)
}

func (s *Service) handleMeta(c *gin.Context) {
	meta, err := s.meta.Lookup(c.Request.Context(), c.Query("platform"), c.Query("id"))
	if err != nil {
		httptransport.RespondAppError(c, err)
		return
	}
	httptransport.RespondSuccess(c, meta)
}

func (s *Service) handleMedia(c *gin.Context) {
	stream, err := s.proxy.Fetch(c.Request.Context(), c.Query("url"), media.FetchOptions{
		Range:     c.GetHeader("Range"),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		httptransport.RespondAppError(c, err)
		return
	}
	defer stream.Body.Close()

	for name, values := range stream.Header {
		if len(values) > 0 {
			c.Header(name, values[0])
		}
	}
	if c.Query("download") == "1" {
		filename := media.SanitizeFilename(c.Query("filename"))
		c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	}

	c.Status(stream.Status)
	if _, err := io.Copy(c.Writer, stream.Body); err != nil {
		// 客户端中断下载属于正常情况
		s.logger.DebugTag("媒体", "流转发中断: %v", err)
	}
}

func (s *Service) handleBackup(c *gin.Context) {
	result, err := s.backup.Relay(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		httptransport.RespondAppError(c, err)
		return
	}

	if result.CacheControl != "" {
		c.Header("Cache-Control", result.CacheControl)
	}
	if result.Stale {
		c.Header("X-Backup-Stale", "1")
	}
	c.Data(result.Status, result.ContentType, result.Body)
}

func (s *Service) handleBackup3(c *gin.Context) {
	result, err := s.backup3.Relay(
		c.Request.Context(),
		c.Query("input"),
		c.Query("filter"),
		c.Query("type"),
		toPositiveInt(c.Query("page"), 1),
	)
	if err != nil {
		httptransport.RespondAppError(c, err)
		return
	}

	if result.CacheControl != "" {
		c.Header("Cache-Control", result.CacheControl)
	}
	c.Data(result.Status, result.ContentType, result.Body)
}

func toPositiveInt(value string, fallback int) int {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
