package persister

import (
	"context"
	"errors"
	"fmt"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/storage"
	"github.com/onflow/hotshot/storage/badger/operation"
)

// LoadAnchorLeaf returns nil values if nothing was decided yet.
func (p *Persister) LoadAnchorLeaf(ctx context.Context) (*model.Leaf, *model.QuorumCertificate2, error) {
	var anchor operation.AnchorLeaf
	err := p.view(ctx, operation.RetrieveAnchorLeaf(&anchor))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not load anchor leaf: %w", err)
	}
	return anchor.Leaf, anchor.QC, nil
}

func (p *Persister) LoadQuorumProposals(ctx context.Context) (map[model.View]*model.SignedQuorumProposal, error) {
	proposals := make(map[model.View]*model.SignedQuorumProposal)
	err := p.view(ctx, operation.TraverseProposals(func(proposal *model.SignedQuorumProposal) error {
		proposals[proposal.Data.ViewNumber] = proposal
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("could not load proposals: %w", err)
	}
	return proposals, nil
}

// LoadProposalRange returns the stored proposals of views in [from, to],
// ordered by view.
func (p *Persister) LoadProposalRange(ctx context.Context, from, to model.View) ([]*model.SignedQuorumProposal, error) {
	var proposals []*model.SignedQuorumProposal
	err := p.view(ctx, operation.TraverseProposalRange(from, to, func(proposal *model.SignedQuorumProposal) error {
		proposals = append(proposals, proposal)
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("could not load proposals of views [%d, %d]: %w", from, to, err)
	}
	return proposals, nil
}

// LoadProposal returns storage.ErrNotFound if no proposal is stored for view.
func (p *Persister) LoadProposal(ctx context.Context, view model.View) (*model.SignedQuorumProposal, error) {
	var proposal model.SignedQuorumProposal
	err := p.view(ctx, operation.RetrieveProposal(view, &proposal))
	if err != nil {
		return nil, fmt.Errorf("could not load proposal for view %d: %w", view, err)
	}
	return &proposal, nil
}

// LoadVidShare returns storage.ErrNotFound if no share dispersed for
// targetEpoch is stored for view.
func (p *Persister) LoadVidShare(ctx context.Context, view model.View, targetEpoch model.Epoch) (*model.SignedVidShare, error) {
	var share model.SignedVidShare
	err := p.view(ctx, operation.RetrieveVidShare(view, targetEpoch, &share))
	if err != nil {
		return nil, fmt.Errorf("could not load vid share for view %d: %w", view, err)
	}
	return &share, nil
}

// LoadDaCertificate returns storage.ErrNotFound if no certificate is stored for view.
func (p *Persister) LoadDaCertificate(ctx context.Context, view model.View) (*model.DaCertificate2, error) {
	var cert model.DaCertificate2
	err := p.view(ctx, operation.RetrieveDaCertificate(view, &cert))
	if err != nil {
		return nil, fmt.Errorf("could not load DA certificate for view %d: %w", view, err)
	}
	return &cert, nil
}

func (p *Persister) LoadUpgradeCertificate(ctx context.Context) (*model.UpgradeCertificate, error) {
	var cert model.UpgradeCertificate
	err := p.view(ctx, operation.RetrieveDecidedUpgradeCertificate(&cert))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load decided upgrade certificate: %w", err)
	}
	return &cert, nil
}

func (p *Persister) LoadStateCert(ctx context.Context) (*model.LightClientStateUpdateCertificate, error) {
	var cert model.LightClientStateUpdateCertificate
	err := p.view(ctx, operation.RetrieveStateCert(&cert))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load state certificate: %w", err)
	}
	return &cert, nil
}

func (p *Persister) LoadHighQC(ctx context.Context) (*model.QuorumCertificate2, error) {
	var qc model.QuorumCertificate2
	err := p.view(ctx, operation.RetrieveHighQC(&qc))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load high QC: %w", err)
	}
	return &qc, nil
}

func (p *Persister) LoadNextEpochHighQC(ctx context.Context) (*model.NextEpochQuorumCertificate2, error) {
	var qc model.NextEpochQuorumCertificate2
	err := p.view(ctx, operation.RetrieveNextEpochHighQC(&qc))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load next epoch high QC: %w", err)
	}
	return &qc, nil
}

func (p *Persister) LoadDrbResults(ctx context.Context) (map[model.Epoch]model.DrbResult, error) {
	results := make(map[model.Epoch]model.DrbResult)
	err := p.view(ctx, operation.TraverseDrbResults(func(epoch model.Epoch, result model.DrbResult) error {
		results[epoch] = result
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("could not load DRB results: %w", err)
	}
	return results, nil
}

// LoadEpochRoot returns storage.ErrNotFound if no root is stored for epoch.
func (p *Persister) LoadEpochRoot(ctx context.Context, epoch model.Epoch) (*model.BlockHeader, error) {
	var header model.BlockHeader
	err := p.view(ctx, operation.RetrieveEpochRoot(epoch, &header))
	if err != nil {
		return nil, fmt.Errorf("could not load root of epoch %d: %w", epoch, err)
	}
	return &header, nil
}
