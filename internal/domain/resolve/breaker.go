package resolve

import (
	"context"
	"time"

	"github.com/xiangmingya/DownloadMusic/internal/domain/resolve/store"
	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
)

// DefaultCooldown 熔断打开后的冷却时长。
const DefaultCooldown = 45 * time.Second

// Logger provides the minimal logging contract required by the pipeline.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Breaker 为每一层音源维护一份熔断状态。状态存放在注入的 Store 里，
// 多实例部署时只是尽力而为的参考，不做跨实例协调。Store 读写失败
// 一律当作熔断关闭处理，宁可多打一次上游也不误伤请求。
type Breaker struct {
	store    store.Store
	cooldown time.Duration
	logger   Logger
	now      func() time.Time
}

func NewBreaker(st store.Store, cooldown time.Duration, logger Logger) *Breaker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{
		store:    st,
		cooldown: cooldown,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock 覆盖时钟，仅测试使用。
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	if now != nil {
		b.now = now
	}
	return b
}

// Allow 判断某一层当前是否可以发起调用。
func (b *Breaker) Allow(ctx context.Context, tier string) bool {
	state, ok, err := b.store.GetBreaker(ctx, tier)
	if err != nil {
		b.logger.Warn("[熔断] 读取 %s 状态失败: %v", tier, err)
		return true
	}
	if !ok {
		return true
	}
	return !b.now().Before(state.BlockedUntil)
}

// Report 登记一次调用结果。只有系统性故障（超时、网络错误、5xx、429）
// 会打开熔断；调用方错误和空结果不动状态。成功则清掉残留状态，
// 让状态查询立刻恢复健康。
func (b *Breaker) Report(ctx context.Context, tier string, err error) {
	if err == nil {
		if clearErr := b.store.ClearBreaker(ctx, tier); clearErr != nil {
			b.logger.Warn("[熔断] 清理 %s 状态失败: %v", tier, clearErr)
		}
		return
	}
	if !platformerrors.IsKind(err, platformerrors.KindUpstream) {
		return
	}

	blockedUntil := b.now().Add(b.cooldown)
	state := store.BreakerState{
		BlockedUntil: blockedUntil,
		LastError:    platformerrors.ClientMessage(err),
	}
	if setErr := b.store.SetBreaker(ctx, tier, state); setErr != nil {
		b.logger.Warn("[熔断] 写入 %s 状态失败: %v", tier, setErr)
		return
	}
	b.logger.Warn("[熔断] %s 已打开，%s 前不再调用: %v", tier, blockedUntil.Format(time.TimeOnly), err)
}

// State 返回某一层的熔断状态快照，供状态接口展示。
func (b *Breaker) State(ctx context.Context, tier string) (store.BreakerState, bool) {
	state, ok, err := b.store.GetBreaker(ctx, tier)
	if err != nil || !ok {
		return store.BreakerState{}, false
	}
	if b.now().Before(state.BlockedUntil) {
		return state, true
	}
	return store.BreakerState{}, false
}
