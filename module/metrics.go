package module

import (
	"time"
)

// HotshotMetrics reports the progress of the consensus tasks.
type HotshotMetrics interface {
	// SetVotedView reports the latest view this replica voted in.
	SetVotedView(view uint64)

	// SetProposedView reports the latest view this replica proposed in.
	SetProposedView(view uint64)

	// SetHighQCView reports the view of the newest QC installed as high QC.
	SetHighQCView(view uint64)

	// SetDecidedView reports the view of the newest decided leaf.
	SetDecidedView(view uint64)

	// CountDependencyTaskCancelled counts dependency tasks that were cancelled
	// before all their dependencies completed, per task kind.
	CountDependencyTaskCancelled(kind string)

	// CountVoteSkipped counts views in which this replica declined to vote,
	// labeled by reason.
	CountVoteSkipped(reason string)
}

// VoteAggregationMetrics reports vote and certificate counts per vote kind.
type VoteAggregationMetrics interface {
	// VoteReceived counts a vote accepted into an accumulator.
	VoteReceived(kind string)

	// VoteRejected counts a vote dropped as invalid.
	VoteRejected(kind string)

	// CertificateFormed counts an aggregated certificate.
	CertificateFormed(kind string)

	// VoteProcessingDuration measures the time spent verifying and
	// accumulating one vote.
	VoteProcessingDuration(duration time.Duration)
}

// MembershipMetrics reports epoch catch-up.
type MembershipMetrics interface {
	// CatchupAttempt counts one attempt to fetch an unknown epoch.
	CatchupAttempt()

	// CatchupDuration measures the time from starting a catch-up until the
	// epoch was ready.
	CatchupDuration(duration time.Duration)

	// CatchupFailed counts catch-ups that exhausted their retries.
	CatchupFailed()
}
