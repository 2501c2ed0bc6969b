package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onflow/hotshot/module"
)

// HotshotCollector implements module.HotshotMetrics, module.VoteAggregationMetrics
// and module.MembershipMetrics on prometheus.
type HotshotCollector struct {
	votedView       prometheus.Gauge
	proposedView    prometheus.Gauge
	highQCView      prometheus.Gauge
	decidedView     prometheus.Gauge
	tasksCancelled  *prometheus.CounterVec
	votesSkipped    *prometheus.CounterVec
	votesReceived   *prometheus.CounterVec
	votesRejected   *prometheus.CounterVec
	certsFormed     *prometheus.CounterVec
	voteProcessing  prometheus.Histogram
	catchupAttempts prometheus.Counter
	catchupFailures prometheus.Counter
	catchupDuration prometheus.Histogram
}

var _ module.HotshotMetrics = (*HotshotCollector)(nil)
var _ module.VoteAggregationMetrics = (*HotshotCollector)(nil)
var _ module.MembershipMetrics = (*HotshotCollector)(nil)

func NewHotshotCollector(registerer prometheus.Registerer) *HotshotCollector {
	consensus := newSubsystem(registerer, subsystemConsensus)
	aggregation := newSubsystem(registerer, subsystemAggregation)
	membership := newSubsystem(registerer, subsystemMembership)
	return &HotshotCollector{
		votedView:      consensus.gauge("voted_view", "the latest view this replica voted in"),
		proposedView:   consensus.gauge("proposed_view", "the latest view this replica proposed in"),
		highQCView:     consensus.gauge("high_qc_view", "the view of the newest QC installed as high QC"),
		decidedView:    consensus.gauge("decided_view", "the view of the newest decided leaf"),
		tasksCancelled: consensus.counterVec("dependency_tasks_cancelled_total", "the number of dependency tasks cancelled before completion", LabelKind),
		votesSkipped:   consensus.counterVec("votes_skipped_total", "the number of views this replica declined to vote in", LabelReason),

		votesReceived: aggregation.counterVec("votes_received_total", "the number of votes accepted into an accumulator", LabelKind),
		votesRejected: aggregation.counterVec("votes_rejected_total", "the number of invalid votes dropped", LabelKind),
		certsFormed:   aggregation.counterVec("certificates_formed_total", "the number of certificates aggregated", LabelKind),
		voteProcessing: aggregation.histogram("vote_processing_seconds", "duration of verifying and accumulating one vote",
			[]float64{.0005, .001, .005, .01, .05, .1}),

		catchupAttempts: membership.counter("catchup_attempts_total", "the number of attempts to fetch an unknown epoch"),
		catchupFailures: membership.counter("catchup_failures_total", "the number of epoch catch-ups that exhausted their retries"),
		catchupDuration: membership.histogram("catchup_duration_seconds", "duration of an epoch catch-up",
			[]float64{.01, .1, .5, 1, 5, 15, 60}),
	}
}

func (c *HotshotCollector) SetVotedView(view uint64) {
	c.votedView.Set(float64(view))
}

func (c *HotshotCollector) SetProposedView(view uint64) {
	c.proposedView.Set(float64(view))
}

func (c *HotshotCollector) SetHighQCView(view uint64) {
	c.highQCView.Set(float64(view))
}

func (c *HotshotCollector) SetDecidedView(view uint64) {
	c.decidedView.Set(float64(view))
}

func (c *HotshotCollector) CountDependencyTaskCancelled(kind string) {
	c.tasksCancelled.WithLabelValues(kind).Inc()
}

func (c *HotshotCollector) CountVoteSkipped(reason string) {
	c.votesSkipped.WithLabelValues(reason).Inc()
}

func (c *HotshotCollector) VoteReceived(kind string) {
	c.votesReceived.WithLabelValues(kind).Inc()
}

func (c *HotshotCollector) VoteRejected(kind string) {
	c.votesRejected.WithLabelValues(kind).Inc()
}

func (c *HotshotCollector) CertificateFormed(kind string) {
	c.certsFormed.WithLabelValues(kind).Inc()
}

func (c *HotshotCollector) VoteProcessingDuration(duration time.Duration) {
	c.voteProcessing.Observe(duration.Seconds())
}

func (c *HotshotCollector) CatchupAttempt() {
	c.catchupAttempts.Inc()
}

func (c *HotshotCollector) CatchupDuration(duration time.Duration) {
	c.catchupDuration.Observe(duration.Seconds())
}

func (c *HotshotCollector) CatchupFailed() {
	c.catchupFailures.Inc()
}
