package httptransport

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"github.com/xiangmingya/DownloadMusic/internal/platform/config"
	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
	"github.com/xiangmingya/DownloadMusic/internal/platform/logging"
)

// Options configures the HTTP router builder.
type Options struct {
	Config *config.Config
	Logger *logging.Logger
}

// Router bundles together the gin engine and common route groups.
type Router struct {
	Engine *gin.Engine
	API    *gin.RouterGroup
}

// Build constructs a gin engine pre-configured with logging, recovery and CORS.
func Build(opts Options) (*Router, error) {
	if opts.Config == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "http.build", "http router requires config")
	}
	if opts.Logger == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "http.build", "http router requires logger")
	}
	cfg := opts.Config
	logger := opts.Logger

	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(logger))

	engine.SetTrustedProxies(nil)

	engine.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	if cfg.Web.Enabled {
		root := cfg.Web.StaticDir
		if root == "" {
			root = "./web"
		}
		engine.Use(static.Serve("/", static.LocalFile(root, true)))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, APIResponse{
			Code:    http.StatusNotFound,
			Message: "Not Found",
		})
	})

	api := engine.Group("/api")

	return &Router{
		Engine: engine,
		API:    api,
	}, nil
}

// corsConfig 按配置的来源白名单回显 Origin。白名单为空时对所有来源
// 放行（自部署默认同源）。凭据始终允许，跨站 Cookie 能带回来。
func corsConfig(allowedOrigins []string) cors.Config {
	allowed := map[string]bool{}
	for _, origin := range allowedOrigins {
		if origin != "" {
			allowed[origin] = true
		}
	}

	return cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if len(allowed) == 0 {
				return true
			}
			return allowed[origin]
		},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Tunehub-Key"},
		ExposeHeaders:    []string{"Content-Length", "Content-Range", "Accept-Ranges"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		logger.InfoTag("HTTP", "%s %s -> %d (%s)",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			duration,
		)
	}
}
