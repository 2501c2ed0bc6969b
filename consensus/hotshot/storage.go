package hotshot

import (
	"context"

	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// Storage is the durable record of a replica. A replica must not vote for a
// proposal until AppendProposal for it returned, and restores its consensus
// state from the loaders after a restart.
//
// Loaders return nil values without error when nothing has been stored yet.
type Storage interface {
	AppendProposal(ctx context.Context, proposal *model.SignedQuorumProposal) error
	AppendVid(ctx context.Context, share *model.SignedVidShare) error
	AppendDa(ctx context.Context, cert *model.DaCertificate2) error

	UpdateHighQC(ctx context.Context, qc *model.QuorumCertificate2) error
	UpdateNextEpochHighQC(ctx context.Context, qc *model.NextEpochQuorumCertificate2) error
	UpdateDecidedUpgradeCertificate(ctx context.Context, cert *model.UpgradeCertificate) error
	UpdateStateCert(ctx context.Context, cert *model.LightClientStateUpdateCertificate) error
	// UpdateAnchorLeaf records the newest decided leaf and the QC deciding it.
	UpdateAnchorLeaf(ctx context.Context, leaf *model.Leaf, qc *model.QuorumCertificate2) error

	StoreDrbResult(ctx context.Context, epoch model.Epoch, result model.DrbResult) error
	StoreEpochRoot(ctx context.Context, epoch model.Epoch, header model.BlockHeader) error

	LoadAnchorLeaf(ctx context.Context) (*model.Leaf, *model.QuorumCertificate2, error)
	LoadQuorumProposals(ctx context.Context) (map[model.View]*model.SignedQuorumProposal, error)
	LoadUpgradeCertificate(ctx context.Context) (*model.UpgradeCertificate, error)
	LoadStateCert(ctx context.Context) (*model.LightClientStateUpdateCertificate, error)
	LoadHighQC(ctx context.Context) (*model.QuorumCertificate2, error)
	LoadNextEpochHighQC(ctx context.Context) (*model.NextEpochQuorumCertificate2, error)
	LoadDrbResults(ctx context.Context) (map[model.Epoch]model.DrbResult, error)
}
