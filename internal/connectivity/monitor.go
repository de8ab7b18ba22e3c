// Package connectivity 维护后端可达状态，供上传流程在开始批次前查询。
package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"fileshelf/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var storeReachable = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "fileshelf_store_reachable",
	Help: "1 when the metadata and object stores answered the last probe",
})

// Probe 检查一个后端依赖，返回 nil 表示可达。
type Probe func(ctx context.Context) error

// ObjectStoreProbe 把对象存储的探测转换为可达性探测。
// bucket 缺失说明服务端已应答，属于引导状态而非网络故障，
// 由上传流程以 ErrStoreNotReady 单独报告。
func ObjectStoreProbe(p storage.Prober) Probe {
	return func(ctx context.Context) error {
		if err := p.Probe(ctx); err != nil && !errors.Is(err, storage.ErrBucketMissing) {
			return err
		}
		return nil
	}
}

// Monitor 以原子标志记录可达状态，由后台探测循环异步更新。
type Monitor struct {
	reachable atomic.Bool
	probes    map[string]Probe
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// NewMonitor 创建初始为可达的 Monitor。
func NewMonitor(interval time.Duration, logger *slog.Logger, probes map[string]Probe) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		probes:   probes,
		interval: interval,
		timeout:  interval / 2,
		logger:   logger.With("component", "connectivity"),
	}
	m.reachable.Store(true)
	storeReachable.Set(1)
	return m
}

// IsReachable 返回最近一次的可达状态。
func (m *Monitor) IsReachable() bool {
	return m.reachable.Load()
}

// Set 记录一次状态变化，仅在状态翻转时打日志。
func (m *Monitor) Set(reachable bool) {
	prev := m.reachable.Swap(reachable)
	if reachable {
		storeReachable.Set(1)
	} else {
		storeReachable.Set(0)
	}
	if prev == reachable {
		return
	}
	if reachable {
		m.logger.Info("backend reachable again")
	} else {
		m.logger.Warn("backend unreachable")
	}
}

// Check 执行所有探测并更新状态。
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ok := true
	for name, probe := range m.probes {
		if err := probe(ctx); err != nil {
			m.logger.Debug("probe failed", "probe", name, "error", err)
			ok = false
		}
	}
	m.Set(ok)
	return ok
}

// Run 立即探测一次，之后按间隔探测直到 ctx 结束。
func (m *Monitor) Run(ctx context.Context) error {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
