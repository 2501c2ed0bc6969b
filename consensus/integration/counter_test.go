package integration_test

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/notifications"
)

// DecideRecorder keeps the leaf decided at every height and logs the decide
// rate.
type DecideRecorder struct {
	notifications.NoopConsumer
	log       zerolog.Logger
	interval  time.Duration
	mu        sync.Mutex
	next      time.Time
	counter   uint
	decided   map[uint64]model.Commitment
	highest   uint64
	conflicts []uint64
}

func NewDecideRecorder(log zerolog.Logger) *DecideRecorder {
	return &DecideRecorder{
		log:      log,
		interval: time.Second,
		next:     time.Now().UTC().Add(time.Second),
		decided:  make(map[uint64]model.Commitment),
	}
}

func (r *DecideRecorder) OnLeavesDecided(leaves []*model.Leaf, _ *model.QuorumCertificate2) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, leaf := range leaves {
		height := leaf.Height()
		commit := leaf.Commit()
		if known, ok := r.decided[height]; ok && known != commit {
			r.conflicts = append(r.conflicts, height)
			continue
		}
		r.decided[height] = commit
		if height > r.highest {
			r.highest = height
		}
		r.counter++
	}

	now := time.Now().UTC()
	if now.Before(r.next) {
		return
	}
	r.log.Info().Dur("interval", r.interval).Uint("counter", r.counter).Uint64("highest", r.highest).Msg("decided leaves counter")
	r.next = now.Add(r.interval)
	r.counter = 0
}

// Highest is the greatest decided height.
func (r *DecideRecorder) Highest() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.highest
}

// Decided returns the leaf decided at height.
func (r *DecideRecorder) Decided(height uint64) (model.Commitment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	commit, ok := r.decided[height]
	return commit, ok
}

// Conflicts lists the heights at which two different leaves were decided.
func (r *DecideRecorder) Conflicts() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.conflicts...)
}
