package metrics

import (
	"time"

	"github.com/onflow/hotshot/module"
)

type NoopCollector struct{}

var _ module.HotshotMetrics = (*NoopCollector)(nil)
var _ module.VoteAggregationMetrics = (*NoopCollector)(nil)
var _ module.MembershipMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) SetVotedView(view uint64)                      {}
func (nc *NoopCollector) SetProposedView(view uint64)                   {}
func (nc *NoopCollector) SetHighQCView(view uint64)                     {}
func (nc *NoopCollector) SetDecidedView(view uint64)                    {}
func (nc *NoopCollector) CountDependencyTaskCancelled(kind string)      {}
func (nc *NoopCollector) CountVoteSkipped(reason string)                {}
func (nc *NoopCollector) VoteReceived(kind string)                      {}
func (nc *NoopCollector) VoteRejected(kind string)                      {}
func (nc *NoopCollector) CertificateFormed(kind string)                 {}
func (nc *NoopCollector) VoteProcessingDuration(duration time.Duration) {}
func (nc *NoopCollector) CatchupAttempt()                               {}
func (nc *NoopCollector) CatchupDuration(duration time.Duration)        {}
func (nc *NoopCollector) CatchupFailed()                                {}
