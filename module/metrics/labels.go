package metrics

const (
	namespaceHotshot = "hotshot"

	subsystemConsensus   = "consensus"
	subsystemAggregation = "vote_aggregation"
	subsystemMembership  = "membership"
)

const (
	LabelKind   = "kind"
	LabelReason = "reason"
)

// Vote kinds, used as the value of LabelKind.
const (
	KindQuorum            = "quorum"
	KindNextEpochQuorum   = "next_epoch_quorum"
	KindDa                = "da"
	KindTimeout           = "timeout"
	KindViewSyncPreCommit = "view_sync_pre_commit"
	KindViewSyncCommit    = "view_sync_commit"
	KindViewSyncFinalize  = "view_sync_finalize"
	KindUpgrade           = "upgrade"
	KindLightClientState  = "light_client_state"
)

// Dependency task kinds.
const (
	TaskQuorumVote     = "quorum_vote"
	TaskQuorumProposal = "quorum_proposal"
)
