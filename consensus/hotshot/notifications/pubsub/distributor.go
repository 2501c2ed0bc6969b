package pubsub

import (
	"sync"

	"github.com/onflow/hotshot/consensus/hotshot"
	"github.com/onflow/hotshot/consensus/hotshot/model"
)

type OnLeavesDecidedConsumer = func(leaves []*model.Leaf, qc *model.QuorumCertificate2)

// Distributor distributes the notifications of a replica to its subscribers.
type Distributor struct {
	leavesDecidedConsumers []OnLeavesDecidedConsumer
	decideConsumers        []hotshot.DecideConsumer
	consumers              []hotshot.Consumer
	lock                   sync.RWMutex
}

var _ hotshot.Consumer = (*Distributor)(nil)

func NewDistributor() *Distributor {
	return &Distributor{}
}

// AddConsumer subscribes consumer to all notifications.
func (d *Distributor) AddConsumer(consumer hotshot.Consumer) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.consumers = append(d.consumers, consumer)
}

// AddDecideConsumer subscribes consumer to the decide stream only.
func (d *Distributor) AddDecideConsumer(consumer hotshot.DecideConsumer) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.decideConsumers = append(d.decideConsumers, consumer)
}

func (d *Distributor) AddOnLeavesDecidedConsumer(consumer OnLeavesDecidedConsumer) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.leavesDecidedConsumers = append(d.leavesDecidedConsumers, consumer)
}

func (d *Distributor) OnLeavesDecided(leaves []*model.Leaf, qc *model.QuorumCertificate2) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.leavesDecidedConsumers {
		consumer(leaves, qc)
	}
	for _, consumer := range d.decideConsumers {
		consumer.OnLeavesDecided(leaves, qc)
	}
	for _, consumer := range d.consumers {
		consumer.OnLeavesDecided(leaves, qc)
	}
}

func (d *Distributor) OnViewChange(view model.View, epoch model.Epoch) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.OnViewChange(view, epoch)
	}
}

func (d *Distributor) OnTimeout(view model.View, epoch model.Epoch) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.OnTimeout(view, epoch)
	}
}

func (d *Distributor) OnProposalSent(proposal *model.SignedQuorumProposal) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.OnProposalSent(proposal)
	}
}

func (d *Distributor) OnQuorumCertificateFormed(qc *model.QuorumCertificate2) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.OnQuorumCertificateFormed(qc)
	}
}

func (d *Distributor) OnTimeoutCertificateFormed(tc *model.TimeoutCertificate2) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.OnTimeoutCertificateFormed(tc)
	}
}

func (d *Distributor) OnUpgradeCertificateFormed(cert *model.UpgradeCertificate) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.OnUpgradeCertificateFormed(cert)
	}
}

func (d *Distributor) OnFirstEpoch(view model.View, epoch model.Epoch) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.OnFirstEpoch(view, epoch)
	}
}
