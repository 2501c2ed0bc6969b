package hotshot

import (
	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// DecideConsumer consumes the decide stream of a replica.
// Implementations must be concurrency safe and non-blocking.
type DecideConsumer interface {
	// OnLeavesDecided is called with newly decided leaves, newest first, and
	// the QC that decided them.
	OnLeavesDecided(leaves []*model.Leaf, qc *model.QuorumCertificate2)
}

// Consumer consumes the outbound consensus notifications of a replica.
// Implementations must be concurrency safe and non-blocking.
type Consumer interface {
	DecideConsumer

	// OnViewChange is called when the replica moves to view in epoch.
	OnViewChange(view model.View, epoch model.Epoch)

	// OnTimeout is called when view timed out.
	OnTimeout(view model.View, epoch model.Epoch)

	// OnProposalSent is called when this replica proposed as leader.
	OnProposalSent(proposal *model.SignedQuorumProposal)

	// OnQuorumCertificateFormed is called for every QC this replica aggregated.
	OnQuorumCertificateFormed(qc *model.QuorumCertificate2)

	// OnTimeoutCertificateFormed is called for every TC this replica aggregated.
	OnTimeoutCertificateFormed(tc *model.TimeoutCertificate2)

	// OnUpgradeCertificateFormed is called when an upgrade certificate formed.
	OnUpgradeCertificateFormed(cert *model.UpgradeCertificate)

	// OnFirstEpoch is called when a decided upgrade enables epochs.
	OnFirstEpoch(view model.View, epoch model.Epoch)
}
