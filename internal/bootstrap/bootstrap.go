package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/xiangmingya/DownloadMusic/internal/domain/media"
	"github.com/xiangmingya/DownloadMusic/internal/domain/provider"
	"github.com/xiangmingya/DownloadMusic/internal/domain/resolve"
	resolvestore "github.com/xiangmingya/DownloadMusic/internal/domain/resolve/store"
	"github.com/xiangmingya/DownloadMusic/internal/domain/session"
	platformconfig "github.com/xiangmingya/DownloadMusic/internal/platform/config"
	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
	platformlogging "github.com/xiangmingya/DownloadMusic/internal/platform/logging"
	httptransport "github.com/xiangmingya/DownloadMusic/internal/transport/http"
	"github.com/xiangmingya/DownloadMusic/internal/transport/http/authapi"
	"github.com/xiangmingya/DownloadMusic/internal/transport/http/musicapi"

	"golang.org/x/sync/errgroup"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config     *platformconfig.Config
	configPath string
	logger     *platformlogging.Logger
	store      resolvestore.Store
	manager    *session.Manager
	pipeline   *resolve.Pipeline
	backup     *provider.Backup
	backup3    *provider.Backup3
	tunehub    *provider.TuneHub
	meta       *provider.Meta
	proxy      *media.Proxy
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}

	logBootstrapGraph(steps, logger)

	defer func() {
		if state.store != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := state.store.Close(closeCtx); err != nil {
				logger.WarnTag("引导", "状态存储未正常关闭: %v", err)
			}
		}
	}()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return fmt.Errorf("启动 Http 服务失败: %w", err)
	}

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		return err
	}

	logger.InfoTag("引导", "所有服务已成功关闭")
	return nil
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("引导", "初始化依赖关系概览")

	stepNames := map[string]string{
		"config:load":           "加载配置",
		"logging:init-provider": "初始化日志提供者",
		"store:init-resolve":    "初始化解析状态存储",
		"session:init-manager":  "初始化会话管理器",
		"resolve:init-pipeline": "初始化解析流水线",
		"media:init-proxy":      "初始化媒体代理",
	}

	for _, step := range steps {
		if name, ok := stepNames[step.ID]; ok {
			logger.InfoTag("引导", name)
		}
	}
	logger.InfoTag("引导", "启动服务")
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "store:init-resolve",
			Title:     "Initialise resolve state store",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initStoreStep,
		},
		{
			ID:        "session:init-manager",
			Title:     "Initialise session manager",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initSessionStep,
		},
		{
			ID:        "resolve:init-pipeline",
			Title:     "Initialise resolve pipeline",
			DependsOn: []string{"store:init-resolve"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initPipelineStep,
		},
		{
			ID:        "media:init-proxy",
			Title:     "Initialise media proxy",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initMediaStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load config", err)
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level: state.config.Log.Level,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}
	state.logger = logger

	logger.InfoTag(
		"引导",
		"日志模块就绪 [%s] %s",
		state.config.Log.Level,
		state.configPath,
	)
	return nil
}

func initStoreStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"store:init-resolve",
			"missing config/logger",
		)
	}

	st, err := buildResolveStore(state.config)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "store:init-resolve", "failed to create resolve store", err)
	}
	state.store = st
	state.logger.InfoTag("引导", "解析状态存储就绪 [%s]", storeDriver(state.config))
	return nil
}

func buildResolveStore(cfg *platformconfig.Config) (resolvestore.Store, error) {
	storeCfg := resolvestore.Config{
		Driver: storeDriver(cfg),
	}
	if storeCfg.Driver == resolvestore.DriverRedis {
		storeCfg.Redis = &resolvestore.RedisConfig{
			Addr:     cfg.Resolve.Store.Redis.Addr,
			Username: cfg.Resolve.Store.Redis.Username,
			Password: cfg.Resolve.Store.Redis.Password,
			DB:       cfg.Resolve.Store.Redis.DB,
			Prefix:   cfg.Resolve.Store.Redis.Prefix,
		}
	}
	return resolvestore.New(storeCfg)
}

func storeDriver(cfg *platformconfig.Config) string {
	if cfg.Resolve.Store.Driver == "" {
		return resolvestore.DriverMemory
	}
	return cfg.Resolve.Store.Driver
}

func initSessionStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"session:init-manager",
			"missing config/logger",
		)
	}

	manager, err := session.NewManager(state.config.Session, state.config.OAuth, state.logger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "session:init-manager", "failed to create session manager", err)
	}
	state.manager = manager

	if state.config.Session.AdminPassword == "" {
		state.logger.WarnTag("会话", "未配置 ADMIN_PASSWORD，密码登录已禁用")
	}
	if !state.config.OAuth.Configured() {
		state.logger.WarnTag("会话", "OAuth 配置不完整，第三方登录已禁用")
	}
	return nil
}

func initPipelineStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logger == nil || state.store == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"resolve:init-pipeline",
			"missing config/logger/store",
		)
	}

	cooldown := state.config.Resolve.BreakerCooldown
	if cooldown <= 0 {
		cooldown = resolve.DefaultCooldown
	}
	breaker := resolve.NewBreaker(state.store, cooldown, state.logger)

	state.backup = provider.NewBackup(state.logger, state.store)
	state.backup3 = provider.NewBackup3(state.logger)
	state.tunehub = provider.NewTuneHub(state.logger, state.config.Parse.Endpoint, state.config.Parse.APIKey)
	state.meta = provider.NewMeta(state.logger)

	state.pipeline = resolve.NewPipeline(
		breaker,
		state.logger,
		provider.NewTier1(state.logger),
		state.backup,
		state.backup3,
	)
	return nil
}

func initMediaStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"media:init-proxy",
			"missing config/logger",
		)
	}
	state.proxy = media.NewProxy(state.logger, state.config.Media.AllowedHosts)
	return nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	config := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	apiGroup := httpRouter.API
	secured := apiGroup.Group("")
	secured.Use(httptransport.SessionMiddleware(state.manager))

	authService, err := authapi.NewService(state.manager, logger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "authapi:new-service", "failed to create auth service", err)
	}
	authService.Register(apiGroup, secured)

	musicService, err := musicapi.NewService(musicapi.Dependencies{
		Pipeline: state.pipeline,
		Backup:   state.backup,
		Backup3:  state.backup3,
		TuneHub:  state.tunehub,
		Meta:     state.meta,
		Proxy:    state.proxy,
	}, logger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "musicapi:new-service", "failed to create music service", err)
	}
	musicService.Register(secured)

	httpServer := &http.Server{
		Addr:    config.Server.IP + ":" + strconv.Itoa(config.Server.Port),
		Handler: httpRouter.Engine,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "Gin 服务已启动，访问地址 http://localhost:%d", config.Server.Port)
		logger.InfoTag("HTTP", "API 入口: http://localhost:%d/api/", config.Server.Port)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP 服务关闭失败: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP 服务已优雅关闭")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP 服务启动失败: %v", err)
			return err
		}
		return nil
	})

	return nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("引导", "收到系统信号 %v，正在进行资源清理", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("引导", "服务关闭过程中出现错误: %v", err)
			return err
		}
	case <-time.After(15 * time.Second):
		timeoutErr := errors.New("服务关闭超时")
		logger.ErrorTag("引导", "服务关闭超时，已强制退出")
		return timeoutErr
	}
	return nil
}
