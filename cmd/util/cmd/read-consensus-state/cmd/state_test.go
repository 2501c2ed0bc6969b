package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/hotshot/cmd/util/cmd/common"
	"github.com/onflow/hotshot/config"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/persister"
	"github.com/onflow/hotshot/utils/unittest"
)

func TestReadConsensusState(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		committee := unittest.Committee(t, 4)
		chain := unittest.NewChainFixture(t, committee, model.StaticUpgradeLock(model.EpochVersion), 10, true)
		leaves := chain.Build(1, 2, 3)

		ctx := context.Background()
		p, err := persister.Open(unittest.Logger(), dir)
		require.NoError(t, err)
		require.NoError(t, p.UpdateHighQC(ctx, chain.QC(leaves[2])))
		require.NoError(t, p.UpdateAnchorLeaf(ctx, leaves[1], chain.QC(leaves[2])))
		require.NoError(t, p.StoreDrbResult(ctx, 3, model.DrbResult{3}))
		require.NoError(t, p.StoreDrbResult(ctx, 2, model.DrbResult{2}))
		require.NoError(t, p.Close())

		root := &cobra.Command{Use: "util"}
		root.PersistentFlags().String(common.ConfigFileFlag, "", "")
		config.InitializeFlags(root.PersistentFlags(), config.Default())
		root.AddCommand(Cmd)

		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs([]string{"read-consensus-state", "--datadir", dir, "--loglevel", "error"})
		require.NoError(t, root.Execute())

		var s State
		require.NoError(t, json.Unmarshal(out.Bytes(), &s))
		require.NotNil(t, s.HighQC)
		assert.Equal(t, model.View(3), s.HighQC.View)
		assert.Equal(t, len(committee.Keys), s.HighQC.Signers)
		require.NotNil(t, s.AnchorLeaf)
		assert.Equal(t, leaves[1].Commit().String(), s.AnchorLeaf.Commitment)
		assert.Nil(t, s.NextEpochHighQC)
		assert.Nil(t, s.Upgrade)
		assert.Nil(t, s.StateCert)
		require.Len(t, s.DrbResults, 2)
		assert.Equal(t, model.Epoch(2), s.DrbResults[0].Epoch)
	})
}

func TestMissingDataDir(t *testing.T) {
	err := common.WithPersister(unittest.Logger(), "/nonexistent/hotshot", func(*persister.Persister) error {
		t.Fatal("must not open a database")
		return nil
	})
	assert.Error(t, err)
}
