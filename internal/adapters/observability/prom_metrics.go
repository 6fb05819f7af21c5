package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

type PromObs struct {
	log      logrus.FieldLogger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the relay metrics on reg (the default registerer when
// nil) and logs through log (the logrus standard logger when nil).
func NewPromObs(reg prometheus.Registerer, log logrus.FieldLogger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	accepted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricSamplesAccepted,
		Help: "Heart-rate samples accepted and emitted over OSC.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricPayloadsDropped,
		Help: "Raw payloads rejected by the normalizer.",
	})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricSessionReconnects,
		Help: "Transport sessions reopened after a disconnect.",
	})
	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricStaleWindows,
		Help: "Idle windows longer than the stale timeout.",
	})
	statusDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricStatusDropped,
		Help: "Status events lost due to queue backpressure policies.",
	})
	bpm := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricHeartRate,
		Help: "Most recent accepted heart rate.",
	})
	state := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricConnectionState,
		Help: "Current supervisor state (0 idle .. 6 stopped).",
	})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricStatusQueueLen,
		Help: "Status events buffered for sinks.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricEmitLatency,
		Help:    "Time from payload receipt to the last OSC message of its triple.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	reg.MustRegister(accepted, dropped, reconnects, stale, statusDrops, bpm, state, queueGauge, latency)

	return &PromObs{
		log: log,
		counters: map[string]prometheus.Counter{
			ports.MetricSamplesAccepted:   accepted,
			ports.MetricPayloadsDropped:   dropped,
			ports.MetricSessionReconnects: reconnects,
			ports.MetricStaleWindows:      stale,
			ports.MetricStatusDropped:     statusDrops,
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricHeartRate:       bpm,
			ports.MetricConnectionState: state,
			ports.MetricStatusQueueLen:  queueGauge,
		},
		histos: map[string]prometheus.Observer{
			ports.MetricEmitLatency: latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.WithFields(toLogrus(fields)).Info(msg)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.WithFields(toLogrus(fields)).WithError(err).Error(msg)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.WithFields(toLogrus(fields)).WithError(err).WithField("critical", true).Error(msg)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func toLogrus(fields []ports.Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
