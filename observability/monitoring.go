// Package observability collects the bot's own technical metrics for the
// status page.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"

	"kitbot/bus"
	"kitbot/domain/event"
)

// Monitor tracks process-level health plus a few bot counters. All
// methods are safe for concurrent use.
type Monitor struct {
	log       *slog.Logger
	startedAt time.Time
	proc      *process.Process

	messagesLogged atomic.Uint64
	joinsSeen      atomic.Uint64
}

func NewMonitor(log *slog.Logger) (*Monitor, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Monitor{log: log, startedAt: time.Now(), proc: p}, nil
}

func (m *Monitor) MessageLogged() { m.messagesLogged.Add(1) }
func (m *Monitor) JoinSeen()      { m.joinsSeen.Add(1) }

// Attach counts room traffic as it flows through the bus.
func (m *Monitor) Attach(b *bus.Bus) {
	b.Subscribe(event.GroupChatReceived, func(context.Context, event.Event) error {
		m.MessageLogged()
		return nil
	})
	b.Subscribe(event.UserJoinedRoom, func(context.Context, event.Event) error {
		m.JoinSeen()
		return nil
	})
}

// Stats snapshots everything the status page shows. Metrics that cannot
// be collected are reported as "unavailable" instead of failing the page.
func (m *Monitor) Stats() map[string]any {
	stats := map[string]any{
		"pid":             os.Getpid(),
		"uptime":          time.Since(m.startedAt).Round(time.Second).String(),
		"goroutines":      runtime.NumGoroutine(),
		"messages logged": m.messagesLogged.Load(),
		"joins seen":      m.joinsSeen.Load(),
	}

	rss, cpu, status, err := selfStats(m.proc)
	if err != nil {
		m.log.Warn("Failed to collect self stats", "err", err)
		stats["process"] = "unavailable"
		return stats
	}
	stats["rss"] = fmt.Sprintf("%d MiB", rss/(1<<20))
	stats["cpu"] = fmt.Sprintf("%.1f%%", cpu)
	stats["status"] = status
	return stats
}

// selfStats retrieves technical metrics (Memory, CPU, and OS Status) for the
// given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
