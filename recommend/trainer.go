package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/model"
	"github.com/rushteam/venuerec/pkg/metrics"
	"github.com/rushteam/venuerec/recall"
)

// ErrTrainingInProgress 已有训练在进行时拒绝新的训练请求。
var ErrTrainingInProgress = errors.New("recommend: training already in progress")

// TrainerConfig 训练调度参数。
type TrainerConfig struct {
	// TrainOnStartup 服务启动时立即训练一次
	TrainOnStartup bool

	// Interval 周期重训间隔，<=0 时只在启动时（以及手动触发时）训练
	Interval time.Duration

	// Timeout 单次训练的超时
	Timeout time.Duration

	// Aggregate 事件聚合参数
	Aggregate model.AggregateOptions
}

// TrainStatus 训练状态快照。
type TrainStatus struct {
	Trained      bool          `json:"trained"`
	Generation   int64         `json:"generation"`
	TrainedAt    time.Time     `json:"trained_at"`
	Users        int           `json:"users"`
	Items        int           `json:"items"`
	Interactions int           `json:"interactions"`
	Dropped      int           `json:"dropped_events"`
	Running      bool          `json:"running"`
	LastDuration time.Duration `json:"last_duration_ns"`
	LastError    string        `json:"last_error,omitempty"`

	// LastOutcome 最近一次训练的结果：success / empty / error
	LastOutcome string `json:"last_outcome,omitempty"`
}

// Trainer 读取交互日志、聚合并训练 ALS，成功后发布新一代模型。
// 作为 suture.Service 运行：启动时训练一次，之后按间隔重训。
type Trainer struct {
	events   core.EventLogSource
	resolver core.BrandResolver
	model    *recall.ALSRecall
	config   TrainerConfig
	logger   zerolog.Logger

	running atomic.Bool

	mu     sync.RWMutex
	status TrainStatus
}

func NewTrainer(events core.EventLogSource, resolver core.BrandResolver, m *recall.ALSRecall, cfg TrainerConfig, logger zerolog.Logger) *Trainer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &Trainer{
		events:   events,
		resolver: resolver,
		model:    m,
		config:   cfg,
		logger:   logger.With().Str("service", "trainer").Logger(),
	}
}

// Train 执行一次完整训练。失败时保留上一代模型继续服务。
// 没有任何可用交互时不是错误：不发布新模型，返回当前模型代（可能为 nil）。
func (t *Trainer) Train(ctx context.Context) (*recall.Generation, error) {
	if !t.running.CompareAndSwap(false, true) {
		return nil, ErrTrainingInProgress
	}
	defer t.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	start := time.Now()
	t.logger.Info().Msg("starting model training")

	gen, agg, err := t.train(ctx)
	elapsed := time.Since(start)

	empty := errors.Is(err, model.ErrEmptyMatrix)
	t.mu.Lock()
	t.status.LastDuration = elapsed
	switch {
	case empty:
		t.status.LastError = ""
		t.status.LastOutcome = "empty"
		if agg != nil {
			t.status.Dropped = agg.Dropped
		}
	case err != nil:
		t.status.LastError = err.Error()
		t.status.LastOutcome = "error"
	default:
		t.status.LastError = ""
		t.status.LastOutcome = "success"
		t.status.Dropped = agg.Dropped
	}
	t.mu.Unlock()

	if empty {
		metrics.RecordTrainEmpty(elapsed)
		t.logger.Info().Dur("duration", elapsed).Msg("no interactions to train on, keeping current generation")
		return t.model.Generation(), nil
	}
	if err != nil {
		metrics.RecordTrain(elapsed, 0, 0, 0, err)
		t.logger.Error().Err(err).Dur("duration", elapsed).Msg("model training failed, keeping previous generation")
		return nil, err
	}

	metrics.RecordTrain(elapsed, gen.Number, gen.Users.Len(), gen.Items.Len(), nil)
	t.logger.Info().
		Int64("generation", gen.Number).
		Int("users", gen.Users.Len()).
		Int("items", gen.Items.Len()).
		Int("interactions", gen.Interactions).
		Int("dropped_events", agg.Dropped).
		Dur("duration", elapsed).
		Msg("model training complete")
	return gen, nil
}

func (t *Trainer) train(ctx context.Context) (*recall.Generation, *model.Aggregation, error) {
	events, err := t.events.Events(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load events: %w", err)
	}
	agg, err := model.Aggregate(ctx, events, t.resolver, t.config.Aggregate)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate events: %w", err)
	}
	gen, err := t.model.Train(ctx, agg)
	if err != nil {
		return nil, agg, err
	}
	return gen, agg, nil
}

// Status 返回当前模型代与最近一次训练的结果。
func (t *Trainer) Status() TrainStatus {
	t.mu.RLock()
	s := t.status
	t.mu.RUnlock()

	s.Running = t.running.Load()
	if gen, err := t.model.Current(); err == nil {
		s.Trained = true
		s.Generation = gen.Number
		s.TrainedAt = gen.TrainedAt
		s.Users = gen.Users.Len()
		s.Items = gen.Items.Len()
		s.Interactions = gen.Interactions
	}
	return s
}

// Serve 实现 suture.Service，ctx 取消时返回 ctx.Err()。
// 训练失败只记录日志，不让服务退出。
func (t *Trainer) Serve(ctx context.Context) error {
	t.logger.Info().
		Bool("train_on_startup", t.config.TrainOnStartup).
		Dur("train_interval", t.config.Interval).
		Msg("trainer starting")

	if t.config.TrainOnStartup {
		_, _ = t.Train(ctx)
	}

	if t.config.Interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("trainer shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := t.Train(ctx); errors.Is(err, ErrTrainingInProgress) {
				t.logger.Debug().Msg("scheduled training skipped, previous run still active")
			}
		}
	}
}

func (t *Trainer) String() string {
	return "trainer"
}
