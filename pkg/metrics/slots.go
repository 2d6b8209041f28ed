package metrics

import "github.com/prometheus/client_golang/prometheus"

// SlotMetrics tracks scheduler occupancy and queue movement.
type SlotMetrics struct {
	activeSlots prometheus.Gauge
	queueDepth  prometheus.Gauge
	promotions  prometheus.Counter
	expirations prometheus.Counter
}

// NewSlotMetrics registers the slot scheduler metrics on the provided registerer.
func NewSlotMetrics(reg prometheus.Registerer) *SlotMetrics {
	if reg == nil {
		return &SlotMetrics{}
	}
	activeSlots := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ad_slots_active",
		Help: "Number of currently occupied ad slots.",
	})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ad_slots_queue_depth",
		Help: "Number of ad requests waiting for a slot.",
	})
	promotions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ad_slots_promotions_total",
		Help: "Queued ad requests promoted into a slot.",
	})
	expirations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ad_slots_expirations_total",
		Help: "Active ad requests expired by the sweeper.",
	})
	reg.MustRegister(activeSlots, queueDepth, promotions, expirations)
	return &SlotMetrics{
		activeSlots: activeSlots,
		queueDepth:  queueDepth,
		promotions:  promotions,
		expirations: expirations,
	}
}

// SetOccupancy records the current active/queued counts.
func (s *SlotMetrics) SetOccupancy(active, queued int) {
	if s == nil || s.activeSlots == nil {
		return
	}
	s.activeSlots.Set(float64(active))
	s.queueDepth.Set(float64(queued))
}

// IncPromotions adds promoted requests to the running total.
func (s *SlotMetrics) IncPromotions(n int) {
	if s == nil || s.promotions == nil || n <= 0 {
		return
	}
	s.promotions.Add(float64(n))
}

// IncExpirations adds expired requests to the running total.
func (s *SlotMetrics) IncExpirations(n int) {
	if s == nil || s.expirations == nil || n <= 0 {
		return
	}
	s.expirations.Add(float64(n))
}
