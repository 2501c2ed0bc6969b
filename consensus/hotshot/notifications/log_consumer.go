package notifications

import (
	"github.com/rs/zerolog"

	"github.com/onflow/hotshot/consensus/hotshot"
	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// LogConsumer is an implementation of the notifications consumer that logs a
// message for each event.
type LogConsumer struct {
	log zerolog.Logger
}

var _ hotshot.Consumer = (*LogConsumer)(nil)

func NewLogConsumer(log zerolog.Logger) *LogConsumer {
	lc := &LogConsumer{
		log: log,
	}
	return lc
}

func (lc *LogConsumer) OnLeavesDecided(leaves []*model.Leaf, qc *model.QuorumCertificate2) {
	for _, leaf := range leaves {
		commit := leaf.Commit()
		payload := leaf.PayloadCommitment()
		lc.log.Info().
			Uint64("leaf_view", uint64(leaf.View())).
			Uint64("height", leaf.Height()).
			Hex("leaf_commit", commit[:]).
			Hex("payload_commit", payload[:]).
			Uint64("qc_view", uint64(qc.View())).
			Msg("leaf decided")
	}
}

func (lc *LogConsumer) OnViewChange(view model.View, epoch model.Epoch) {
	lc.log.Debug().
		Uint64("view", uint64(view)).
		Uint64("epoch", uint64(epoch)).
		Msg("view entered")
}

func (lc *LogConsumer) OnTimeout(view model.View, epoch model.Epoch) {
	lc.log.Debug().
		Uint64("view", uint64(view)).
		Uint64("epoch", uint64(epoch)).
		Msg("view timed out")
}

func (lc *LogConsumer) OnProposalSent(proposal *model.SignedQuorumProposal) {
	p := proposal.Data
	entry := lc.log.Debug().
		Uint64("view", uint64(p.ViewNumber)).
		Uint64("epoch", uint64(p.Epoch)).
		Uint64("height", p.BlockHeader.BlockNumber).
		Uint64("justify_qc_view", uint64(p.JustifyQC.View()))
	if p.ViewChangeEvidence != nil {
		entry.Uint64("evidence_view", uint64(p.ViewChangeEvidence.View()))
	}
	entry.Msg("proposal sent")
}

func (lc *LogConsumer) OnQuorumCertificateFormed(qc *model.QuorumCertificate2) {
	lc.log.Debug().
		Uint64("qc_view", uint64(qc.View())).
		Uint64("epoch", uint64(qc.Data.Epoch)).
		Hex("leaf_commit", qc.Data.LeafCommit[:]).
		Msg("quorum certificate formed")
}

func (lc *LogConsumer) OnTimeoutCertificateFormed(tc *model.TimeoutCertificate2) {
	lc.log.Debug().
		Uint64("tc_view", uint64(tc.View())).
		Uint64("epoch", uint64(tc.Data.Epoch)).
		Msg("timeout certificate formed")
}

func (lc *LogConsumer) OnUpgradeCertificateFormed(cert *model.UpgradeCertificate) {
	lc.log.Info().
		Uint64("view", uint64(cert.View())).
		Str("old_version", cert.Data.OldVersion.String()).
		Str("new_version", cert.Data.NewVersion.String()).
		Uint64("decide_by", uint64(cert.Data.DecideBy)).
		Uint64("new_version_first_view", uint64(cert.Data.NewVersionFirstView)).
		Msg("upgrade certificate formed")
}

func (lc *LogConsumer) OnFirstEpoch(view model.View, epoch model.Epoch) {
	lc.log.Info().
		Uint64("view", uint64(view)).
		Uint64("epoch", uint64(epoch)).
		Msg("epochs enabled")
}
