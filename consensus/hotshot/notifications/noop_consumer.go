package notifications

import (
	"github.com/onflow/hotshot/consensus/hotshot"
	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// NoopConsumer is an implementation of the notifications consumer that
// doesn't do anything.
type NoopConsumer struct{}

var _ hotshot.Consumer = (*NoopConsumer)(nil)

func NewNoopConsumer() *NoopConsumer {
	nc := &NoopConsumer{}
	return nc
}

func (*NoopConsumer) OnLeavesDecided([]*model.Leaf, *model.QuorumCertificate2) {}

func (*NoopConsumer) OnViewChange(model.View, model.Epoch) {}

func (*NoopConsumer) OnTimeout(model.View, model.Epoch) {}

func (*NoopConsumer) OnProposalSent(*model.SignedQuorumProposal) {}

func (*NoopConsumer) OnQuorumCertificateFormed(*model.QuorumCertificate2) {}

func (*NoopConsumer) OnTimeoutCertificateFormed(*model.TimeoutCertificate2) {}

func (*NoopConsumer) OnUpgradeCertificateFormed(*model.UpgradeCertificate) {}

func (*NoopConsumer) OnFirstEpoch(model.View, model.Epoch) {}
