// Package metrics exposes acceptance telemetry as prometheus collectors.
// Nothing here is consensus-critical; the collectors observe decisions the
// validator already made.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/animica/poies/consensus"
	"github.com/animica/poies/core/types"
	"github.com/animica/poies/fixedpoint"
)

const namespace = "poies"

// Metrics holds the acceptance-engine collectors.
type Metrics struct {
	BlocksAccepted prometheus.Counter
	BlocksRejected *prometheus.CounterVec
	PsiDiscarded   prometheus.Counter
	Theta          prometheus.Gauge
	Alpha          *prometheus.GaugeVec
	HDraw          prometheus.Histogram
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		BlocksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_accepted_total",
			Help:      "Blocks that passed the acceptance predicate.",
		}),
		BlocksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_rejected_total",
			Help:      "Blocks rejected, by consensus error kind.",
		}, []string{"kind"}),
		PsiDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "psi_discarded_micronats_total",
			Help:      "Raw score overflow discarded by the cap hierarchy.",
		}),
		Theta: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "theta_micronats",
			Help:      "Current acceptance threshold.",
		}),
		Alpha: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alpha_multiplier_micro",
			Help:      "Fairness tuner multiplier per proof type.",
		}, []string{"type"}),
		HDraw: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "h_draw_micronats",
			Help:      "Observed H(u) of validated blocks.",
			Buckets:   prometheus.ExponentialBuckets(float64(fixedpoint.Ln2Micro), 2, 10),
		}),
	}
	for _, c := range []prometheus.Collector{
		m.BlocksAccepted, m.BlocksRejected, m.PsiDiscarded, m.Theta, m.Alpha, m.HDraw,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveAccepted records an accepted block.
func (m *Metrics) ObserveAccepted(blk *consensus.AcceptedBlock) {
	m.BlocksAccepted.Inc()
	m.PsiDiscarded.Add(float64(blk.Acceptance.Score.DiscardedMicro))
	m.HDraw.Observe(float64(blk.Acceptance.HMicro))
}

// ObserveRejected records a rejection by kind.
func (m *Metrics) ObserveRejected(err error) {
	m.BlocksRejected.WithLabelValues(consensus.KindOf(err).String()).Inc()
}

// ObserveRetarget records the post-epoch Θ and α values.
func (m *Metrics) ObserveRetarget(theta consensus.ThetaState, alpha consensus.AlphaState) {
	m.Theta.Set(float64(theta.ThetaMicro))
	for t := 0; t < types.NumProofTypes; t++ {
		m.Alpha.WithLabelValues(types.ProofType(t).String()).Set(float64(alpha.AlphaMicro[t]))
	}
}
