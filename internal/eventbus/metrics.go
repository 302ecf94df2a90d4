package eventbus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsExporter переносит Stats шины в Prometheus-метрики.
// Счётчики обновляются приращениями между вызовами Sync.
type MetricsExporter struct {
	bus EventBus

	mu   sync.Mutex
	prev Stats

	quit chan struct{}
	done chan struct{}

	published prometheus.Counter
	consumed  prometheus.Counter
	dropped   prometheus.Counter
	inflight  prometheus.Gauge
}

// NewMetricsExporter создаёт экспортер и регистрирует метрики в reg.
// namespace пустой означает "eventbus".
func NewMetricsExporter(bus EventBus, reg prometheus.Registerer, namespace string) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "eventbus"
	}
	me := &MetricsExporter{
		bus: bus,
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventbus",
			Name:      "messages_published_total",
			Help:      "Общее число опубликованных сообщений.",
		}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventbus",
			Name:      "messages_consumed_total",
			Help:      "Общее число доставленных сообщений подписчикам.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventbus",
			Name:      "messages_dropped_total",
			Help:      "Доставки, прерванные паникой обработчика или отменой контекста.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "eventbus",
			Name:      "messages_inflight",
			Help:      "Количество доставок, выполняющихся в данный момент.",
		}),
	}

	for _, c := range []prometheus.Collector{me.published, me.consumed, me.dropped, me.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return me, nil
}

// Sync переносит текущие Stats шины в метрики
func (m *MetricsExporter) Sync() {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.bus.Metrics()
	if d := stats.Published - m.prev.Published; d > 0 {
		m.published.Add(float64(d))
	}
	if d := stats.Consumed - m.prev.Consumed; d > 0 {
		m.consumed.Add(float64(d))
	}
	if d := stats.Dropped - m.prev.Dropped; d > 0 {
		m.dropped.Add(float64(d))
	}
	m.inflight.Set(float64(stats.InFlight))
	m.prev = stats
}

// Start запускает периодическое обновление метрик
func (m *MetricsExporter) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	m.quit = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(interval)
}

// Stop останавливает обновление метрик и делает последнюю синхронизацию
func (m *MetricsExporter) Stop() {
	if m.quit == nil {
		return
	}
	close(m.quit)
	<-m.done
	m.quit = nil
	m.Sync()
}

func (m *MetricsExporter) loop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(m.done)

	for {
		select {
		case <-ticker.C:
			m.Sync()
		case <-m.quit:
			return
		}
	}
}
