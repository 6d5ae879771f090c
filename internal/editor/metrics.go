package editor

import "github.com/prometheus/client_golang/prometheus"

// Metrics Prometheus-метрики редактора. nil *Metrics допустим и ничего не пишет.
type Metrics struct {
	frames    prometheus.Counter
	placed    prometheus.Counter
	removed   prometheus.Counter
	recolored prometheus.Counter
	rejected  *prometheus.CounterVec
	loads     *prometheus.CounterVec
	sessions  prometheus.Gauge
	voxels    prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg (nil — глобальный регистр)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "editor",
			Name:      "frames_total",
			Help:      "Обработанные кадры всех сессий.",
		}),
		placed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "editor",
			Name:      "voxels_placed_total",
			Help:      "Размещённые воксели.",
		}),
		removed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "editor",
			Name:      "voxels_removed_total",
			Help:      "Удалённые воксели.",
		}),
		recolored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "editor",
			Name:      "voxels_recolored_total",
			Help:      "Перекрашенные выделением воксели.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "editor",
			Name:      "placements_rejected_total",
			Help:      "Отклонённые размещения по причине.",
		}, []string{"reason"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "editor",
			Name:      "layout_loads_total",
			Help:      "Загрузки раскладок по результату.",
		}, []string{"result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "editor",
			Name:      "sessions_active",
			Help:      "Активные сессии редактора.",
		}),
		voxels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "editor",
			Name:      "voxels",
			Help:      "Воксели во всех сессиях.",
		}),
	}
	reg.MustRegister(m.frames, m.placed, m.removed, m.recolored, m.rejected, m.loads, m.sessions, m.voxels)
	return m
}

func (m *Metrics) frame() {
	if m != nil {
		m.frames.Inc()
	}
}

func (m *Metrics) place() {
	if m != nil {
		m.placed.Inc()
		m.voxels.Inc()
	}
}

func (m *Metrics) remove(n int) {
	if m != nil && n > 0 {
		m.removed.Add(float64(n))
		m.voxels.Sub(float64(n))
	}
}

func (m *Metrics) recolor(n int) {
	if m != nil && n > 0 {
		m.recolored.Add(float64(n))
	}
}

func (m *Metrics) reject(reason string) {
	if m != nil {
		m.rejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) load(ok bool, before, after int) {
	if m == nil {
		return
	}
	if !ok {
		m.loads.WithLabelValues("rejected").Inc()
		return
	}
	m.loads.WithLabelValues("ok").Inc()
	m.voxels.Add(float64(after - before))
}

func (m *Metrics) sessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) sessionClosed(voxels int) {
	if m != nil {
		m.sessions.Dec()
		m.voxels.Sub(float64(voxels))
	}
}
