package persister

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/onflow/hotshot/consensus/hotshot"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/storage"
	"github.com/onflow/hotshot/storage/badger/operation"
)

// DBVersion is the layout version written into new databases.
const DBVersion uint32 = 1

// Persister keeps the durable record of a replica in badger.
type Persister struct {
	log zerolog.Logger
	db  *badger.DB
}

var _ hotshot.Storage = (*Persister)(nil)

// New creates a persister on an open database. A database without a layout
// version is initialized; one with a different version is rejected.
func New(log zerolog.Logger, db *badger.DB) (*Persister, error) {
	p := &Persister{
		log: log.With().Str("component", "hotshot_persister").Logger(),
		db:  db,
	}

	var exists bool
	err := db.View(operation.HasDBVersion(&exists))
	if err != nil {
		return nil, fmt.Errorf("could not check database version: %w", err)
	}
	if !exists {
		err = db.Update(operation.InsertDBVersion(DBVersion))
		if err != nil {
			return nil, fmt.Errorf("could not initialize database version: %w", err)
		}
		return p, nil
	}
	var version uint32
	err = db.View(operation.RetrieveDBVersion(&version))
	if err != nil {
		return nil, fmt.Errorf("could not read database version: %w", err)
	}
	if version != DBVersion {
		return nil, fmt.Errorf("database has layout version %d, expected %d", version, DBVersion)
	}
	return p, nil
}

// Open opens the badger database in dir and creates a persister on it.
func Open(log zerolog.Logger, dir string) (*Persister, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open database in %s: %w", dir, err)
	}
	p, err := New(log, db)
	if err != nil {
		return nil, multierror.Append(err, db.Close()).ErrorOrNil()
	}
	return p, nil
}

// Close flushes and closes the database.
func (p *Persister) Close() error {
	var result *multierror.Error
	if err := p.db.Sync(); err != nil {
		result = multierror.Append(result, fmt.Errorf("could not sync database: %w", err))
	}
	if err := p.db.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("could not close database: %w", err))
	}
	return result.ErrorOrNil()
}

func (p *Persister) update(ctx context.Context, op func(*badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return operation.TerminateOnFullDisk(operation.RetryOnConflict(p.db.Update, op))
}

func (p *Persister) view(ctx context.Context, op func(*badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.db.View(op)
}

// AppendProposal stores the proposal under its view, replacing an earlier one.
func (p *Persister) AppendProposal(ctx context.Context, proposal *model.SignedQuorumProposal) error {
	err := p.update(ctx, operation.UpsertProposal(proposal))
	if err != nil {
		return fmt.Errorf("could not store proposal for view %d: %w", proposal.Data.ViewNumber, err)
	}
	return nil
}

func (p *Persister) AppendVid(ctx context.Context, share *model.SignedVidShare) error {
	err := p.update(ctx, operation.UpsertVidShare(share))
	if err != nil {
		return fmt.Errorf("could not store vid share for view %d: %w", share.Data.ViewNumber, err)
	}
	return nil
}

func (p *Persister) AppendDa(ctx context.Context, cert *model.DaCertificate2) error {
	err := p.update(ctx, operation.UpsertDaCertificate(cert))
	if err != nil {
		return fmt.Errorf("could not store DA certificate for view %d: %w", cert.ViewNumber, err)
	}
	return nil
}

// UpdateHighQC stores qc unless a QC of the same or a higher view is stored.
func (p *Persister) UpdateHighQC(ctx context.Context, qc *model.QuorumCertificate2) error {
	err := p.update(ctx, func(tx *badger.Txn) error {
		var stored model.QuorumCertificate2
		err := operation.RetrieveHighQC(&stored)(tx)
		if err == nil && stored.View() >= qc.View() {
			p.log.Debug().
				Uint64("view", uint64(qc.View())).
				Uint64("stored_view", uint64(stored.View())).
				Msg("not storing high QC, stored one is not older")
			return nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return operation.UpsertHighQC(qc)(tx)
	})
	if err != nil {
		return fmt.Errorf("could not store high QC of view %d: %w", qc.View(), err)
	}
	return nil
}

// UpdateNextEpochHighQC stores qc unless a next epoch QC of the same or a
// higher view is stored.
func (p *Persister) UpdateNextEpochHighQC(ctx context.Context, qc *model.NextEpochQuorumCertificate2) error {
	err := p.update(ctx, func(tx *badger.Txn) error {
		var stored model.NextEpochQuorumCertificate2
		err := operation.RetrieveNextEpochHighQC(&stored)(tx)
		if err == nil && stored.View() >= qc.View() {
			return nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return operation.UpsertNextEpochHighQC(qc)(tx)
	})
	if err != nil {
		return fmt.Errorf("could not store next epoch high QC of view %d: %w", qc.View(), err)
	}
	return nil
}

func (p *Persister) UpdateDecidedUpgradeCertificate(ctx context.Context, cert *model.UpgradeCertificate) error {
	err := p.update(ctx, operation.UpsertDecidedUpgradeCertificate(cert))
	if err != nil {
		return fmt.Errorf("could not store decided upgrade certificate: %w", err)
	}
	return nil
}

// UpdateStateCert stores cert unless one for the same or a later epoch is stored.
func (p *Persister) UpdateStateCert(ctx context.Context, cert *model.LightClientStateUpdateCertificate) error {
	err := p.update(ctx, func(tx *badger.Txn) error {
		var stored model.LightClientStateUpdateCertificate
		err := operation.RetrieveStateCert(&stored)(tx)
		if err == nil && stored.Epoch >= cert.Epoch {
			return nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return operation.UpsertStateCert(cert)(tx)
	})
	if err != nil {
		return fmt.Errorf("could not store state certificate of epoch %d: %w", cert.Epoch, err)
	}
	return nil
}

// UpdateAnchorLeaf records leaf as the newest decided leaf and drops the
// proposals, VID shares and DA certificates of the views before it. An
// anchor older than the stored one is ignored.
func (p *Persister) UpdateAnchorLeaf(ctx context.Context, leaf *model.Leaf, qc *model.QuorumCertificate2) error {
	err := p.update(ctx, func(tx *badger.Txn) error {
		var stored operation.AnchorLeaf
		err := operation.RetrieveAnchorLeaf(&stored)(tx)
		if err == nil && stored.Leaf.View() > leaf.View() {
			p.log.Debug().
				Uint64("view", uint64(leaf.View())).
				Uint64("stored_view", uint64(stored.Leaf.View())).
				Msg("not storing anchor leaf, stored one is newer")
			return nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		err = operation.UpsertAnchorLeaf(&operation.AnchorLeaf{Leaf: leaf, QC: qc})(tx)
		if err != nil {
			return err
		}
		return operation.PruneBelowView(leaf.View())(tx)
	})
	if err != nil {
		return fmt.Errorf("could not store anchor leaf of view %d: %w", leaf.View(), err)
	}
	return nil
}

// StoreDrbResult stores the DRB result of an epoch. Storing the same result
// again is a no-op; a different one fails with storage.ErrDataMismatch.
func (p *Persister) StoreDrbResult(ctx context.Context, epoch model.Epoch, result model.DrbResult) error {
	err := p.update(ctx, func(tx *badger.Txn) error {
		var stored model.DrbResult
		err := operation.RetrieveDrbResult(epoch, &stored)(tx)
		if err == nil {
			if stored != result {
				return storage.ErrDataMismatch
			}
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return operation.InsertDrbResult(epoch, result)(tx)
	})
	if err != nil {
		return fmt.Errorf("could not store DRB result of epoch %d: %w", epoch, err)
	}
	return nil
}

func (p *Persister) StoreEpochRoot(ctx context.Context, epoch model.Epoch, header model.BlockHeader) error {
	err := p.update(ctx, operation.UpsertEpochRoot(epoch, header))
	if err != nil {
		return fmt.Errorf("could not store root of epoch %d: %w", epoch, err)
	}
	return nil
}
