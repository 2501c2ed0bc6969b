package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/onflow/hotshot/cmd/util/cmd/common"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/persister"
)

var Cmd = &cobra.Command{
	Use:   "read-consensus-state",
	Short: "Print the persisted consensus state of a replica as JSON",
	RunE:  runE,
}

type Upgrade struct {
	OldVersion          string     `json:"old_version"`
	NewVersion          string     `json:"new_version"`
	DecideBy            model.View `json:"decide_by"`
	OldVersionLastView  model.View `json:"old_version_last_view"`
	NewVersionFirstView model.View `json:"new_version_first_view"`
}

type StateCert struct {
	Epoch      model.Epoch `json:"epoch"`
	Signatures int         `json:"signatures"`
}

type DrbResult struct {
	Epoch  model.Epoch `json:"epoch"`
	Result string      `json:"result"`
}

type State struct {
	HighQC          *common.Certificate `json:"high_qc"`
	NextEpochHighQC *common.Certificate `json:"next_epoch_high_qc"`
	AnchorLeaf      *common.Leaf        `json:"anchor_leaf"`
	AnchorQC        *common.Certificate `json:"anchor_qc"`
	Upgrade         *Upgrade            `json:"decided_upgrade_certificate"`
	StateCert       *StateCert          `json:"state_cert"`
	DrbResults      []DrbResult         `json:"drb_results"`
}

// ReadState collects the persisted state. Missing records are left nil.
func ReadState(ctx context.Context, p *persister.Persister) (*State, error) {
	var s State

	highQC, err := p.LoadHighQC(ctx)
	if err != nil {
		return nil, err
	}
	if highQC != nil {
		s.HighQC = common.NewCertificate(highQC.ViewNumber, highQC.VoteCommitment, highQC.Signatures)
	}

	nextEpochQC, err := p.LoadNextEpochHighQC(ctx)
	if err != nil {
		return nil, err
	}
	if nextEpochQC != nil {
		s.NextEpochHighQC = common.NewCertificate(nextEpochQC.ViewNumber, nextEpochQC.VoteCommitment, nextEpochQC.Signatures)
	}

	leaf, qc, err := p.LoadAnchorLeaf(ctx)
	if err != nil {
		return nil, err
	}
	s.AnchorLeaf = common.NewLeaf(leaf)
	if qc != nil {
		s.AnchorQC = common.NewCertificate(qc.ViewNumber, qc.VoteCommitment, qc.Signatures)
	}

	upgrade, err := p.LoadUpgradeCertificate(ctx)
	if err != nil {
		return nil, err
	}
	if upgrade != nil {
		s.Upgrade = &Upgrade{
			OldVersion:          upgrade.Data.OldVersion.String(),
			NewVersion:          upgrade.Data.NewVersion.String(),
			DecideBy:            upgrade.Data.DecideBy,
			OldVersionLastView:  upgrade.Data.OldVersionLastView,
			NewVersionFirstView: upgrade.Data.NewVersionFirstView,
		}
	}

	cert, err := p.LoadStateCert(ctx)
	if err != nil {
		return nil, err
	}
	if cert != nil {
		s.StateCert = &StateCert{Epoch: cert.Epoch, Signatures: len(cert.Signatures)}
	}

	drbs, err := p.LoadDrbResults(ctx)
	if err != nil {
		return nil, err
	}
	for epoch, result := range drbs {
		s.DrbResults = append(s.DrbResults, DrbResult{Epoch: epoch, Result: fmt.Sprintf("%x", result[:])})
	}
	sort.Slice(s.DrbResults, func(i, j int) bool { return s.DrbResults[i].Epoch < s.DrbResults[j].Epoch })

	return &s, nil
}

func runE(cmd *cobra.Command, _ []string) error {
	c, err := common.LoadConfig(cmd)
	if err != nil {
		return err
	}
	log := common.Logger(c)
	log.Info().Str("datadir", c.Storage.Dir).Msg("reading consensus state")

	return common.WithPersister(log, c.Storage.Dir, func(p *persister.Persister) error {
		s, err := ReadState(cmd.Context(), p)
		if err != nil {
			return fmt.Errorf("could not read consensus state: %w", err)
		}
		return common.PrettyPrint(cmd.OutOrStdout(), s)
	})
}
