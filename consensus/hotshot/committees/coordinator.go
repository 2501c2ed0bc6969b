package committees

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/onflow/hotshot/consensus/hotshot"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/module"
)

// CatchupStatus is the state of an epoch from the coordinator's point of view.
type CatchupStatus int

const (
	// CatchupUnknown: the epoch's membership is not known and nobody is fetching it.
	CatchupUnknown CatchupStatus = iota
	// CatchupFetching: a catch-up for the epoch is in flight.
	CatchupFetching
	// CatchupReady: stake table and leader schedule of the epoch are known.
	CatchupReady
)

func (s CatchupStatus) String() string {
	switch s {
	case CatchupUnknown:
		return "unknown"
	case CatchupFetching:
		return "fetching"
	case CatchupReady:
		return "ready"
	}
	return fmt.Sprintf("CatchupStatus(%d)", int(s))
}

// CoordinatorConfig parametrizes the epoch membership coordinator.
type CoordinatorConfig struct {
	EpochHeight          uint64
	DrbDifficulty        uint64
	DrbUpgradeDifficulty uint64
	// RetryInitial is the first backoff of a catch-up, doubling up to RetryMax.
	RetryInitial time.Duration
	RetryMax     time.Duration
	// RetryAttempts bounds the retries of one catch-up.
	RetryAttempts uint64
	// CacheSize bounds the number of resolved memberships kept.
	CacheSize int
}

func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		EpochHeight:          0,
		DrbDifficulty:        1 << 16,
		DrbUpgradeDifficulty: 1 << 18,
		RetryInitial:         100 * time.Millisecond,
		RetryMax:             5 * time.Second,
		RetryAttempts:        10,
		CacheSize:            32,
	}
}

type catchupKey struct {
	epoch model.Epoch
	// full catch-ups also install the leader schedule
	full bool
}

type inflightCatchup struct {
	done chan struct{}
	err  error
}

// EpochMembershipCoordinator is the single authority mapping an epoch to its
// committee. When asked for an epoch the local Membership doesn't know, it
// catches up: it fetches the stake table and the epoch root through
// EpochCatchup, computes the DRB and installs both. Concurrent requests for
// the same epoch share one catch-up.
type EpochMembershipCoordinator struct {
	log        zerolog.Logger
	membership hotshot.Membership
	catchup    hotshot.EpochCatchup
	lock       *model.UpgradeLock
	metrics    module.MembershipMetrics
	config     CoordinatorConfig

	mu       sync.Mutex
	inflight map[catchupKey]*inflightCatchup

	handles *lru.Cache[catchupKey, *EpochMembership]
}

func NewEpochMembershipCoordinator(
	log zerolog.Logger,
	membership hotshot.Membership,
	catchup hotshot.EpochCatchup,
	lock *model.UpgradeLock,
	metrics module.MembershipMetrics,
	config CoordinatorConfig,
) (*EpochMembershipCoordinator, error) {
	if config.RetryInitial <= 0 || config.RetryMax < config.RetryInitial {
		return nil, model.NewConfigurationErrorf("invalid catch-up backoff [%v, %v]", config.RetryInitial, config.RetryMax)
	}
	handles, err := lru.New[catchupKey, *EpochMembership](config.CacheSize)
	if err != nil {
		return nil, model.NewConfigurationErrorf("invalid membership cache size %d: %w", config.CacheSize, err)
	}
	return &EpochMembershipCoordinator{
		log:        log.With().Str("component", "epoch_membership_coordinator").Logger(),
		membership: membership,
		catchup:    catchup,
		lock:       lock,
		metrics:    metrics,
		config:     config,
		inflight:   make(map[catchupKey]*inflightCatchup),
		handles:    handles,
	}, nil
}

func (c *EpochMembershipCoordinator) Membership() hotshot.Membership { return c.membership }

func (c *EpochMembershipCoordinator) EpochHeight() uint64 { return c.config.EpochHeight }

// MembershipForEpoch returns the full membership of the epoch, waiting for a
// catch-up of its stake table and leader schedule if needed.
//
// Expected error returns during normal operations:
//   - the last catch-up failure, wrapped, if the catch-up exhausted its retries
//   - context errors if ctx ends first
func (c *EpochMembershipCoordinator) MembershipForEpoch(ctx context.Context, epoch model.Epoch) (*EpochMembership, error) {
	return c.resolve(ctx, catchupKey{epoch: epoch, full: true})
}

// StakeTableForEpoch returns the membership of the epoch, only waiting for
// its stake tables. Leader queries on the result may fail until the leader
// schedule is known.
func (c *EpochMembershipCoordinator) StakeTableForEpoch(ctx context.Context, epoch model.Epoch) (*EpochMembership, error) {
	return c.resolve(ctx, catchupKey{epoch: epoch, full: false})
}

// Status reports how far the coordinator got with the epoch.
func (c *EpochMembershipCoordinator) Status(epoch model.Epoch) CatchupStatus {
	if c.membership.HasRandomizedStakeTable(epoch) {
		return CatchupReady
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.inflight {
		if key.epoch == epoch {
			return CatchupFetching
		}
	}
	return CatchupUnknown
}

// ComputeDrbFromRoot computes the DRB result of epoch from the decided epoch
// root leaf that seeds it.
func (c *EpochMembershipCoordinator) ComputeDrbFromRoot(ctx context.Context, epoch model.Epoch, root *model.Leaf) (model.DrbResult, error) {
	input := model.DrbInput{
		Epoch:           epoch,
		Iteration:       0,
		Value:           model.DrbSeedFromSignatures(root.Justify),
		DifficultyLevel: DrbDifficulty(c.lock, root.View(), c.config.DrbDifficulty, c.config.DrbUpgradeDifficulty),
	}
	return ComputeDrbResult(ctx, input)
}

func (c *EpochMembershipCoordinator) resolve(ctx context.Context, key catchupKey) (*EpochMembership, error) {
	if h, ok := c.handles.Get(key); ok {
		return h, nil
	}
	if err := c.ensure(ctx, key); err != nil {
		return nil, fmt.Errorf("could not resolve membership of epoch %s: %w", key.epoch, err)
	}
	quorum, err := c.membership.StakeTable(key.epoch)
	if err != nil {
		return nil, fmt.Errorf("stake table of epoch %s vanished after catch-up: %w", key.epoch, err)
	}
	da, err := c.membership.DaStakeTable(key.epoch)
	if err != nil {
		return nil, fmt.Errorf("DA stake table of epoch %s vanished after catch-up: %w", key.epoch, err)
	}
	h := &EpochMembership{
		coordinator: c,
		epoch:       key.epoch,
		quorum:      quorum,
		da:          da,
		thresholds:  NewThresholds(quorum),
		daThreshold: NewThresholds(da),
	}
	c.handles.Add(key, h)
	return h, nil
}

func (c *EpochMembershipCoordinator) ready(key catchupKey) bool {
	if key.full {
		return c.membership.HasRandomizedStakeTable(key.epoch)
	}
	return c.membership.HasStakeTable(key.epoch)
}

// ensure makes the epoch ready, either by catching up itself or by waiting
// for the catch-up already in flight. A waiter whose catch-up was cancelled
// by its owner takes over.
func (c *EpochMembershipCoordinator) ensure(ctx context.Context, key catchupKey) error {
	for {
		if c.ready(key) {
			return nil
		}

		c.mu.Lock()
		f, ok := c.inflight[key]
		if !ok {
			f = &inflightCatchup{done: make(chan struct{})}
			c.inflight[key] = f
			c.mu.Unlock()

			f.err = c.runCatchup(ctx, key)

			c.mu.Lock()
			delete(c.inflight, key)
			c.mu.Unlock()
			close(f.done)
			return f.err
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
		}
		if f.err == nil {
			return nil
		}
		if !errors.Is(f.err, context.Canceled) && !errors.Is(f.err, context.DeadlineExceeded) {
			return f.err
		}
	}
}

func (c *EpochMembershipCoordinator) runCatchup(ctx context.Context, key catchupKey) error {
	log := c.log.With().Uint64("epoch", uint64(key.epoch)).Bool("full", key.full).Logger()
	log.Info().Msg("catching up with unknown epoch")
	start := time.Now()

	backoff := retry.NewExponential(c.config.RetryInitial)
	backoff = retry.WithCappedDuration(c.config.RetryMax, backoff)
	backoff = retry.WithJitterPercent(10, backoff)
	backoff = retry.WithMaxRetries(c.config.RetryAttempts, backoff)

	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		c.metrics.CatchupAttempt()
		err := c.fetch(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Debug().Err(err).Int("attempt", attempts).Msg("epoch catch-up failed, retrying")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		c.metrics.CatchupFailed()
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Debug().Err(err).Int("attempts", attempts).Msg("epoch catch-up abandoned")
			return fmt.Errorf("epoch catch-up abandoned: %w", ctxErr)
		}
		log.Warn().Err(err).Int("attempts", attempts).Msg("giving up epoch catch-up")
		return err
	}
	c.metrics.CatchupDuration(time.Since(start))
	log.Info().Dur("duration", time.Since(start)).Msg("epoch catch-up completed")
	return nil
}

// fetch fetches what is missing of the epoch: the stake tables and, for full
// catch-ups, the DRB result, concurrently.
func (c *EpochMembershipCoordinator) fetch(ctx context.Context, key catchupKey) error {
	if key.epoch == model.NoEpoch {
		return fmt.Errorf("genesis membership can't be fetched")
	}
	g, gctx := errgroup.WithContext(ctx)
	if !c.membership.HasStakeTable(key.epoch) {
		g.Go(func() error {
			quorum, da, err := c.catchup.FetchStakeTable(gctx, key.epoch)
			if err != nil {
				return fmt.Errorf("could not fetch stake table: %w", err)
			}
			return c.membership.AddEpochStakeTable(key.epoch, quorum, da)
		})
	}
	if _, err := c.membership.EpochDrbResult(key.epoch); key.full && err != nil {
		g.Go(func() error {
			root, err := c.catchup.FetchEpochRoot(gctx, key.epoch)
			if err != nil {
				return fmt.Errorf("could not fetch epoch root: %w", err)
			}
			result, err := c.ComputeDrbFromRoot(gctx, key.epoch, root)
			if err != nil {
				return fmt.Errorf("could not compute drb result: %w", err)
			}
			c.membership.AddDrbResult(key.epoch, result)
			return nil
		})
	}
	return g.Wait()
}
