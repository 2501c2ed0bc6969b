package cmd

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/onflow/hotshot/cmd/util/cmd/common"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/persister"
)

var (
	flagFromView uint64
	flagToView   uint64
)

var Cmd = &cobra.Command{
	Use:   "list-proposals",
	Short: "Print the persisted, undecided proposals of a view range as JSON",
	RunE:  runE,
}

func init() {
	Cmd.Flags().Uint64Var(&flagFromView, "from-view", 0,
		"first view to list")
	Cmd.Flags().Uint64Var(&flagToView, "to-view", math.MaxUint64,
		"last view to list")
}

func runE(cmd *cobra.Command, _ []string) error {
	if flagFromView > flagToView {
		return fmt.Errorf("--from-view %d is above --to-view %d", flagFromView, flagToView)
	}
	c, err := common.LoadConfig(cmd)
	if err != nil {
		return err
	}
	log := common.Logger(c)
	log.Info().
		Uint64("from_view", flagFromView).
		Uint64("to_view", flagToView).
		Str("datadir", c.Storage.Dir).
		Msg("listing proposals")

	return common.WithPersister(log, c.Storage.Dir, func(p *persister.Persister) error {
		proposals, err := p.LoadProposalRange(cmd.Context(), model.View(flagFromView), model.View(flagToView))
		if err != nil {
			return err
		}
		out := make([]*common.Proposal, 0, len(proposals))
		for _, proposal := range proposals {
			out = append(out, common.NewProposal(proposal))
		}
		return common.PrettyPrint(cmd.OutOrStdout(), out)
	})
}
