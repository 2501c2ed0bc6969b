package notifications

import (
	"github.com/onflow/hotshot/consensus/hotshot"
	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/module/component"
	"github.com/onflow/hotshot/module/irrecoverable"
)

// Relay forwards the outbound events of the event bus to a consumer.
type Relay struct {
	*component.ComponentManager
	sub      *events.Subscription
	consumer hotshot.Consumer
}

// NewRelay creates a relay reading from sub. The subscription must be taken
// before any event to be relayed is published.
func NewRelay(sub *events.Subscription, consumer hotshot.Consumer) *Relay {
	r := &Relay{
		sub:      sub,
		consumer: consumer,
	}
	r.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(r.relay).
		Build()
	return r
}

func (r *Relay) relay(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	defer r.sub.Close()
	ready()
	for {
		ev, err := r.sub.Next(ctx)
		if err != nil {
			return
		}
		r.dispatch(ev)
	}
}

func (r *Relay) dispatch(ev events.Event) {
	switch e := ev.(type) {
	case events.LeavesDecided:
		r.consumer.OnLeavesDecided(e.Leaves, e.QC)
	case events.ViewChange:
		r.consumer.OnViewChange(e.View, e.Epoch)
	case events.Timeout:
		r.consumer.OnTimeout(e.View, e.Epoch)
	case events.QuorumProposalSend:
		r.consumer.OnProposalSent(e.Proposal)
	case events.Qc2Formed:
		if e.QC != nil {
			r.consumer.OnQuorumCertificateFormed(e.QC)
		} else {
			r.consumer.OnTimeoutCertificateFormed(e.TC)
		}
	case events.UpgradeCertificateFormed:
		r.consumer.OnUpgradeCertificateFormed(e.Cert)
	case events.SetFirstEpoch:
		r.consumer.OnFirstEpoch(e.View, e.Epoch)
	}
}
