// Package health 链路与采集状态检查，供 /health 与 /readyz 使用
package health

import (
	"context"
	"time"

	"github.com/taoyao-code/rim384/internal/poller"
)

// Status 健康状态
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded" // 可服务但最近采集有错误
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult 单项检查结果
type CheckResult struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency"`
}

// Checker 检查项
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Link 可报告是否已打开的链路（driver.Driver）
type Link interface {
	Started() bool
}

// LinkChecker 链路未打开即不健康；不与设备通信
type LinkChecker struct {
	link Link
}

func NewLinkChecker(link Link) *LinkChecker { return &LinkChecker{link: link} }

func (c *LinkChecker) Name() string { return "link" }

func (c *LinkChecker) Check(context.Context) CheckResult {
	start := time.Now()
	if !c.link.Started() {
		return CheckResult{Status: StatusUnhealthy, Message: "link not started", Latency: time.Since(start)}
	}
	return CheckResult{Status: StatusHealthy, Message: "ok", Latency: time.Since(start)}
}

// PollChecker 依据最近一次采集判断
type PollChecker struct {
	latest func() (poller.Snapshot, bool)
	maxAge time.Duration
	now    func() time.Time
}

// NewPollChecker maxAge 内没有新采集视为降级
func NewPollChecker(latest func() (poller.Snapshot, bool), maxAge time.Duration) *PollChecker {
	return &PollChecker{latest: latest, maxAge: maxAge, now: time.Now}
}

func (c *PollChecker) Name() string { return "poll" }

func (c *PollChecker) Check(context.Context) CheckResult {
	start := time.Now()
	snap, ok := c.latest()
	if !ok {
		return CheckResult{Status: StatusDegraded, Message: "no poll completed yet", Latency: time.Since(start)}
	}
	age := c.now().Sub(snap.Time)
	res := CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: map[string]any{
			"last_poll": snap.Time,
			"age":       age.String(),
			"errors":    len(snap.Errors),
		},
	}
	switch {
	case c.maxAge > 0 && age > c.maxAge:
		res.Status = StatusDegraded
		res.Message = "poll result is stale"
	case len(snap.Errors) > 0:
		res.Status = StatusDegraded
		res.Message = snap.Errors[0]
	}
	res.Latency = time.Since(start)
	return res
}
