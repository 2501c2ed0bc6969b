package state

import (
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

type leaderRecord struct {
	led      uint64
	proposed uint64
}

func (r leaderRecord) ratio() float64 {
	if r.led == 0 {
		return 0
	}
	return float64(r.proposed) / float64(r.led)
}

// participation counts, per leader, the views it led and the views in which
// its proposal arrived, for the current and the previous epoch.
type participation struct {
	epoch    model.Epoch
	current  map[signature.PublicKey]leaderRecord
	previous map[signature.PublicKey]leaderRecord
}

func newParticipation() *participation {
	return &participation{
		current:  make(map[signature.PublicKey]leaderRecord),
		previous: make(map[signature.PublicKey]leaderRecord),
	}
}

func (p *participation) update(key signature.PublicKey, epoch model.Epoch, proposed bool) {
	if epoch != p.epoch {
		return
	}
	r := p.current[key]
	r.led++
	if proposed {
		r.proposed++
	}
	p.current[key] = r
}

func (p *participation) advance(epoch model.Epoch) {
	if epoch <= p.epoch {
		return
	}
	p.epoch = epoch
	p.previous = p.current
	p.current = make(map[signature.PublicKey]leaderRecord)
}

func ratios(records map[signature.PublicKey]leaderRecord) map[signature.PublicKey]float64 {
	out := make(map[signature.PublicKey]float64, len(records))
	for k, r := range records {
		out[k] = r.ratio()
	}
	return out
}
