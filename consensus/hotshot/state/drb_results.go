package state

import (
	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// drbResultsKept is how many epochs before the current one keep their DRB
// result.
const drbResultsKept = 8

// DrbResults holds the DRB results this replica computed or decided, per
// epoch. Not safe for concurrent use; it is guarded by the Consensus lock.
type DrbResults struct {
	results map[model.Epoch]model.DrbResult
}

func NewDrbResults() *DrbResults {
	return &DrbResults{results: make(map[model.Epoch]model.DrbResult)}
}

func (d *DrbResults) Store(epoch model.Epoch, result model.DrbResult) {
	d.results[epoch] = result
}

func (d *DrbResults) Get(epoch model.Epoch) (model.DrbResult, bool) {
	r, ok := d.results[epoch]
	return r, ok
}

func (d *DrbResults) Len() int { return len(d.results) }

// GarbageCollect drops the results of epochs older than epoch minus the
// retention window.
func (d *DrbResults) GarbageCollect(epoch model.Epoch) {
	if epoch < drbResultsKept {
		return
	}
	keep := epoch - drbResultsKept
	for e := range d.results {
		if e < keep {
			delete(d.results, e)
		}
	}
}
