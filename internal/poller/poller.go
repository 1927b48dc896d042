// Package poller 周期采集测量值并交给遥测发布
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	cfgpkg "github.com/taoyao-code/rim384/internal/config"
	"github.com/taoyao-code/rim384/internal/metrics"
	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

// Device 采集所需的设备能力
type Device interface {
	Address() rim384.Address
	ReadMeasuredValues(ctx context.Context) (*rim384.MeasuredValues, error)
	ReadElectricalIndicators(ctx context.Context, param rim384.ElectricalParam) (rim384.ElectricalIndicators, error)
	ReadRFSignalLevel(ctx context.Context) (float32, error)
	ReadServiceParameters(ctx context.Context) (rim384.ServiceParameters, error)
}

// Sink 采集结果的去向
type Sink interface {
	Publish(ctx context.Context, s Snapshot) error
}

// Snapshot 一次采集的结果；Measured 为 nil 表示平均周期未结束
type Snapshot struct {
	Address     uint32                               `json:"address"`
	Time        time.Time                            `json:"time"`
	Measured    *rim384.MeasuredValues               `json:"measured"`
	Electrical  map[int]rim384.ElectricalIndicators `json:"electrical,omitempty"`
	SignalLevel *float32                             `json:"signal_level,omitempty"`
	Service     *rim384.ServiceParameters            `json:"service,omitempty"`
	Errors      []string                             `json:"errors,omitempty"`
}

// Poller 周期采集器
type Poller struct {
	dev      Device
	sink     Sink
	interval time.Duration
	params   []rim384.ElectricalParam
	limiter  *rate.Limiter
	logger   *zap.Logger
	metrics  *metrics.DriverMetrics
	now      func() time.Time

	mu   sync.RWMutex
	last *Snapshot
}

// New 按配置创建采集器；sink 可为 nil
func New(dev Device, sink Sink, cfg cfgpkg.PollConfig, logger *zap.Logger, m *metrics.DriverMetrics) (*Poller, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	params := make([]rim384.ElectricalParam, 0, len(cfg.ElectricalParams))
	for _, v := range cfg.ElectricalParams {
		p := rim384.ElectricalParam(v)
		if v < 0 || v > 255 || !p.Valid() {
			return nil, fmt.Errorf("poller: unsupported electrical parameter %d", v)
		}
		params = append(params, p)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Poller{
		dev:      dev,
		sink:     sink,
		interval: interval,
		params:   params,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// Run 立即采集一次，之后按间隔采集，直到 ctx 结束
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		p.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	snap, err := p.PollOnce(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	if err != nil || len(snap.Errors) > 0 {
		p.metrics.ObservePoll("error")
		p.logger.Warn("poll completed with errors", zap.Strings("errors", snap.Errors), zap.Error(err))
	} else {
		p.metrics.ObservePoll("ok")
	}
	if p.sink == nil {
		return
	}
	if err := p.sink.Publish(ctx, snap); err != nil {
		p.logger.Warn("publish snapshot failed", zap.Error(err))
	}
}

// PollOnce 依次读取各项；单项失败记入 Errors 不中断采集
// 仅当 ctx 结束时返回错误
func (p *Poller) PollOnce(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Address:    uint32(p.dev.Address()),
		Time:       p.now(),
		Electrical: map[int]rim384.ElectricalIndicators{},
	}
	fail := func(what string, err error) {
		snap.Errors = append(snap.Errors, what+": "+err.Error())
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return snap, err
	}
	if mv, err := p.dev.ReadMeasuredValues(ctx); err != nil {
		fail("measured", err)
	} else {
		snap.Measured = mv
	}

	for _, param := range p.params {
		if err := p.limiter.Wait(ctx); err != nil {
			return snap, err
		}
		ei, err := p.dev.ReadElectricalIndicators(ctx, param)
		if err != nil {
			fail(fmt.Sprintf("electrical %d", param), err)
			continue
		}
		snap.Electrical[int(param)] = ei
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return snap, err
	}
	if lvl, err := p.dev.ReadRFSignalLevel(ctx); err != nil {
		fail("rf signal", err)
	} else {
		snap.SignalLevel = &lvl
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return snap, err
	}
	if sp, err := p.dev.ReadServiceParameters(ctx); err != nil {
		fail("service", err)
	} else {
		snap.Service = &sp
	}

	p.mu.Lock()
	p.last = &snap
	p.mu.Unlock()
	return snap, nil
}

// Latest 最近一次完整采集
func (p *Poller) Latest() (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return Snapshot{}, false
	}
	return *p.last, true
}
