package workers

import (
	"chat-sessions/contract"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

const telemetryInterval = 30 * time.Second

// TelemetryWorker periodically logs process health (CPU, RSS, OS status)
// together with the live connection and (user, chat) pair counts from the
// registry. It is the cheap operational pulse of the daemon.
type TelemetryWorker struct {
	log      *slog.Logger
	registry contract.IRegistry
}

func NewTelemetryWorker(log *slog.Logger, registry contract.IRegistry) *TelemetryWorker {
	return &TelemetryWorker{log: log, registry: registry}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	w.log.Info("Starting telemetry worker")
	ticker := time.NewTicker(telemetryInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, status, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			connections, pairs := w.registry.Counts()
			w.log.Info("telemetry",
				"connections", connections,
				"pairs", pairs,
				"cpu_percent", cpu,
				"ram_bytes", rss,
				"pid_status", status,
			)
		}
	}
}

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
