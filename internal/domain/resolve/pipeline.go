package resolve

import (
	"context"
	"errors"
	"time"

	"github.com/xiangmingya/DownloadMusic/internal/domain/provider"
	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
)

// 三层音源的标识，按优先级排序。
const (
	TierPrimary = "primary"
	TierBackup  = "backup"
	TierBackup3 = "backup3"
)

const retryDelay = 250 * time.Millisecond

// Adapter 是单层音源的统一入口，实现方负责把各家接口的响应
// 吸收成统一的歌曲记录。
type Adapter interface {
	Name() string
	Search(ctx context.Context, platform, keyword string, page, limit int) ([]provider.SongRecord, error)
	Playlist(ctx context.Context, platform, id string) ([]provider.SongRecord, error)
}

// Pipeline 按层级顺序解析搜索和歌单请求：先问主源，失败或没结果再
// 逐层降级。层与层之间串行，前一层命中就不再花后一层的网络开销。
type Pipeline struct {
	adapters []Adapter
	breaker  *Breaker
	logger   Logger
	sleep    func(context.Context, time.Duration)
}

func NewPipeline(breaker *Breaker, logger Logger, adapters ...Adapter) *Pipeline {
	return &Pipeline{
		adapters: adapters,
		breaker:  breaker,
		logger:   logger,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// WithSleep 覆盖重试间隔等待，仅测试使用。
func (p *Pipeline) WithSleep(sleep func(context.Context, time.Duration)) *Pipeline {
	if sleep != nil {
		p.sleep = sleep
	}
	return p
}

// Search 逐层搜索，返回第一层非空结果。
func (p *Pipeline) Search(ctx context.Context, platform, keyword string, page, limit int) ([]provider.SongRecord, error) {
	return p.run(ctx, func(ctx context.Context, adapter Adapter) ([]provider.SongRecord, error) {
		return adapter.Search(ctx, platform, keyword, page, limit)
	})
}

// Playlist 逐层拉取歌单，返回第一层非空结果。
func (p *Pipeline) Playlist(ctx context.Context, platform, id string) ([]provider.SongRecord, error) {
	return p.run(ctx, func(ctx context.Context, adapter Adapter) ([]provider.SongRecord, error) {
		return adapter.Playlist(ctx, platform, id)
	})
}

// Status 汇总各层的熔断状态。
func (p *Pipeline) Status(ctx context.Context) map[string]any {
	tiers := map[string]any{}
	for _, adapter := range p.adapters {
		name := adapter.Name()
		if state, open := p.breaker.State(ctx, name); open {
			tiers[name] = map[string]any{
				"open":          true,
				"blocked_until": state.BlockedUntil,
				"last_error":    state.LastError,
			}
		} else {
			tiers[name] = map[string]any{"open": false}
		}
	}
	return tiers
}

func (p *Pipeline) run(ctx context.Context, call func(context.Context, Adapter) ([]provider.SongRecord, error)) ([]provider.SongRecord, error) {
	var firstErr, lastErr error

	for _, adapter := range p.adapters {
		tier := adapter.Name()
		if !p.breaker.Allow(ctx, tier) {
			p.logger.Debug("[熔断] %s 处于冷却期，跳过", tier)
			continue
		}

		records, err := p.callWithRetry(ctx, tier, adapter, call)
		if errors.Is(err, provider.ErrUnsupportedOperation) {
			p.logger.Debug("[熔断] %s 不支持该操作，跳过", tier)
			continue
		}
		p.breaker.Report(ctx, tier, err)

		if err != nil {
			// 主源的错误通常带着对调用方更有用的校验信息，优先保留
			if firstErr == nil && tier == TierPrimary {
				firstErr = err
			}
			lastErr = err
			continue
		}
		if len(records) == 0 {
			p.logger.Debug("[熔断] %s 无结果，降级到下一层", tier)
			continue
		}

		for i := range records {
			records[i].OriginTier = tier
		}
		return records, nil
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return []provider.SongRecord{}, nil
}

// callWithRetry 对单层调用做至多一次的定延迟重试，只有系统性故障
// 才重试，调用方错误重试也不会变好。
func (p *Pipeline) callWithRetry(ctx context.Context, tier string, adapter Adapter, call func(context.Context, Adapter) ([]provider.SongRecord, error)) ([]provider.SongRecord, error) {
	records, err := call(ctx, adapter)
	if err == nil || !platformerrors.IsKind(err, platformerrors.KindUpstream) {
		return records, err
	}
	if ctx.Err() != nil {
		return nil, err
	}

	p.logger.Warn("[熔断] %s 调用失败，%s 后重试一次: %v", tier, retryDelay, err)
	p.sleep(ctx, retryDelay)
	return call(ctx, adapter)
}
