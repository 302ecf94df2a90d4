package editor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики редактора
type Metrics struct {
	commands       *prometheus.CounterVec
	refused        *prometheus.CounterVec
	blocks         prometheus.Gauge
	historyFrames  prometheus.Gauge
	renderedFrames prometheus.Counter
	assetsCached   prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg. При reg == nil метрики не регистрируются.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = "pixel_canvas"
	}
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "commands_total",
			Help:      "Выполненные команды по имени и результату.",
		}, []string{"command", "result"}),
		refused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "refused_total",
			Help:      "Правки, отклонённые проверкой занятости или валидацией.",
		}, []string{"reason"}),
		blocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "blocks",
			Help:      "Количество блоков в текущем мире.",
		}),
		historyFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "history_frames",
			Help:      "Длина временной шкалы истории.",
		}),
		renderedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "rendered_frames_total",
			Help:      "Кадры, действительно перерисованные RenderFrame.",
		}),
		assetsCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "assets_cached",
			Help:      "Текстуры в кеше.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.commands, m.refused, m.blocks, m.historyFrames, m.renderedFrames, m.assetsCached} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
