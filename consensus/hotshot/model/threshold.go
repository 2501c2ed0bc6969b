package model

// Thresholds exposes the stake needed for each kind of certificate in one
// epoch's committee.
type Thresholds interface {
	// SuccessThreshold is the stake of a quorum: more than 2/3 of the total.
	SuccessThreshold() uint64
	// FailureThreshold is the stake guaranteeing one honest signer: more than 1/3.
	FailureThreshold() uint64
	// UpgradeThreshold is the stake of a super-majority: at least 9/10.
	UpgradeThreshold() uint64
}

// Threshold is a stateless policy selecting which of the committee's
// thresholds a certificate type needs. It parameterizes certificate types,
// so one implementation of aggregation and validation serves all of them.
type Threshold interface {
	Of(t Thresholds) uint64
	String() string
}

// SuccessThreshold requires a quorum (2f+1).
type SuccessThreshold struct{}

func (SuccessThreshold) Of(t Thresholds) uint64 { return t.SuccessThreshold() }
func (SuccessThreshold) String() string { return "success" }

// OneHonestThreshold requires f+1, so that at least one honest node signed.
type OneHonestThreshold struct{}

func (OneHonestThreshold) Of(t Thresholds) uint64 { return t.FailureThreshold() }
func (OneHonestThreshold) String() string { return "one-honest" }

// UpgradeThreshold requires 90% of the stake.
type UpgradeThreshold struct{}

func (UpgradeThreshold) Of(t Thresholds) uint64 { return t.UpgradeThreshold() }
func (UpgradeThreshold) String() string { return "upgrade" }
