package network

import "github.com/prometheus/client_golang/prometheus"

// Metrics метрики потоков отрисовки. nil *Metrics допустим.
type Metrics struct {
	clients  prometheus.Gauge
	messages *prometheus.CounterVec
	dropped  prometheus.Counter
	inputs   *prometheus.CounterVec
}

// NewMetrics создаёт метрики и регистрирует их в reg (nil — глобальный регистр)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stream",
			Name:      "clients_active",
			Help:      "Подключённые клиенты потоков отрисовки.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stream",
			Name:      "messages_sent_total",
			Help:      "Отправленные сообщения по типу.",
		}, []string{"type"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stream",
			Name:      "clients_dropped_total",
			Help:      "Клиенты, отключённые из-за переполнения очереди.",
		}),
		inputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stream",
			Name:      "inputs_total",
			Help:      "Входные события клиентов по типу и результату.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(m.clients, m.messages, m.dropped, m.inputs)
	return m
}

func (m *Metrics) clientJoined() {
	if m != nil {
		m.clients.Inc()
	}
}

func (m *Metrics) clientLeft() {
	if m != nil {
		m.clients.Dec()
	}
}

func (m *Metrics) sent(msgType string) {
	if m != nil {
		m.messages.WithLabelValues(msgType).Inc()
	}
}

func (m *Metrics) drop() {
	if m != nil {
		m.dropped.Inc()
	}
}

func (m *Metrics) input(inputType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.inputs.WithLabelValues(inputType, result).Inc()
}
