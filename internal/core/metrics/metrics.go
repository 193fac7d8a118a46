package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/dep2p/go-zeroconf/pkg/types"
)

const namespace = "zeroconf"

// Metrics prometheus 指标集合
type Metrics struct {
	packetsReceived *prometheus.CounterVec
	packetsSent     prometheus.Counter
	bytesReceived   prometheus.Counter
	bytesSent       prometheus.Counter
	decodeErrors    prometheus.Counter
	events          *prometheus.CounterVec
	probesSent      prometheus.Counter
	conflicts       prometheus.Counter
	cacheEntries    prometheus.Gauge
}

// New 创建指标并注册到 reg，reg 为 nil 时使用新建的 Registry
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		packetsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "mDNS packets received, by address family.",
		}, []string{"family"}),
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "mDNS packets sent.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "mDNS payload bytes received.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "mDNS payload bytes sent.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Received packets dropped because they could not be decoded.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events dispatched to subscribers, by kind.",
		}, []string{"kind"}),
		probesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_sent_total",
			Help:      "Probe queries sent while claiming a service name.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Service name conflicts detected.",
		}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Records currently held in the mDNS cache.",
		}),
	}

	var err error
	for _, c := range m.collectors() {
		err = multierr.Append(err, reg.Register(c))
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.packetsReceived,
		m.packetsSent,
		m.bytesReceived,
		m.bytesSent,
		m.decodeErrors,
		m.events,
		m.probesSent,
		m.conflicts,
		m.cacheEntries,
	}
}

// LogRecvPacket 记录收到的数据包
func (m *Metrics) LogRecvPacket(family types.Protocol, size int) {
	m.packetsReceived.WithLabelValues(family.String()).Inc()
	m.bytesReceived.Add(float64(size))
}

// LogSentPacket 记录发出的数据包
func (m *Metrics) LogSentPacket(size int) {
	m.packetsSent.Inc()
	m.bytesSent.Add(float64(size))
}

// LogDecodeError 记录解码失败
func (m *Metrics) LogDecodeError() {
	m.decodeErrors.Inc()
}

// LogEvent 记录派发的事件，错误事件按错误类型计数
func (m *Metrics) LogEvent(ev types.Event) {
	kind := ev.Kind.String()
	if ev.Kind == types.EventError {
		kind = ev.Error.String()
	}
	m.events.WithLabelValues(kind).Inc()
}

// LogProbe 记录发出的探测报文
func (m *Metrics) LogProbe() {
	m.probesSent.Inc()
}

// LogConflict 记录名称冲突
func (m *Metrics) LogConflict() {
	m.conflicts.Inc()
}

// SetCacheEntries 更新缓存记录数
func (m *Metrics) SetCacheEntries(n int) {
	m.cacheEntries.Set(float64(n))
}
