package api

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

const mb = 1024 * 1024

// ProcessStats снимок ресурсов процесса для /api/stats
type ProcessStats struct {
	StartedAt   time.Time `json:"started_at"`
	Uptime      string    `json:"uptime"`
	CPUPercent  float64   `json:"cpu_percent"`
	RSSMB       float64   `json:"rss_mb"`
	HeapAllocMB float64   `json:"heap_alloc_mb"`
	SysMB       float64   `json:"sys_mb"`
	NumGC       uint32    `json:"num_gc"`
	Goroutines  int       `json:"goroutines"`
	ServerTime  int64     `json:"server_time"`
}

// ServerMetrics собирает сведения о процессе сервера через gopsutil.
type ServerMetrics struct {
	startedAt time.Time

	once sync.Once
	proc *process.Process
}

func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{startedAt: time.Now()}
}

func (sm *ServerMetrics) process() *process.Process {
	sm.once.Do(func() {
		// ошибка означает, что сведения о процессе недоступны; остаёмся на runtime
		sm.proc, _ = process.NewProcess(int32(os.Getpid()))
	})
	return sm.proc
}

// Snapshot снимает текущие показатели. Ошибки gopsutil не фатальны:
// соответствующие поля остаются нулевыми.
func (sm *ServerMetrics) Snapshot() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	st := ProcessStats{
		StartedAt:   sm.startedAt,
		Uptime:      time.Since(sm.startedAt).Round(time.Second).String(),
		HeapAllocMB: float64(m.HeapAlloc) / mb,
		SysMB:       float64(m.Sys) / mb,
		NumGC:       m.NumGC,
		Goroutines:  runtime.NumGoroutine(),
		ServerTime:  time.Now().Unix(),
	}

	if p := sm.process(); p != nil {
		if pct, err := p.CPUPercent(); err == nil {
			st.CPUPercent = pct
		}
		if mem, err := p.MemoryInfo(); err == nil {
			st.RSSMB = float64(mem.RSS) / mb
		}
	}
	if st.CPUPercent == 0 {
		// системная загрузка без ожидания, если по процессу данных нет
		if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
			st.CPUPercent = pcts[0]
		}
	}
	return st
}
