// Package events defines the messages the consensus tasks exchange over the
// event bus, and the bus itself.
package events

import (
	"fmt"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// Kind discriminates events without a type switch, for logging and metrics.
type Kind int

const (
	KindQuorumProposalRecv Kind = iota
	KindQuorumProposalPreliminarilyValidated
	KindQuorumProposalValidated
	KindQuorumProposalSend
	KindDaProposalRecv
	KindDaProposalSend
	KindDaCertificateRecv
	KindDaCertificateValidated
	KindVidShareRecv
	KindVidShareValidated
	KindVidDisperseSend
	KindSendPayloadCommitmentAndMetadata
	KindQuorumVoteRecv
	KindQuorumVoteSend
	KindExtendedQuorumVoteSend
	KindEpochRootQuorumVoteRecv
	KindEpochRootQuorumVoteSend
	KindDaVoteRecv
	KindDaVoteSend
	KindDacSend
	KindTimeoutVoteRecv
	KindViewSyncPreCommitVoteRecv
	KindViewSyncCommitVoteRecv
	KindViewSyncFinalizeVoteRecv
	KindViewSyncPreCommitCertificateSend
	KindViewSyncCommitCertificateSend
	KindViewSyncFinalizeCertificateSend
	KindViewSyncFinalizeCertificateRecv
	KindUpgradeVoteRecv
	KindUpgradeCertificateFormed
	KindQc2Formed
	KindNextEpochQc2Formed
	KindExtendedQc2Formed
	KindEpochRootQcFormed
	KindLightClientStateCertFormed
	KindHighQcRecv
	KindHighQcUpdated
	KindValidatedStateUpdated
	KindViewChange
	KindTimeout
	KindSetFirstEpoch
	KindLeavesDecided
)

var kindNames = [...]string{
	KindQuorumProposalRecv:                   "QuorumProposalRecv",
	KindQuorumProposalPreliminarilyValidated: "QuorumProposalPreliminarilyValidated",
	KindQuorumProposalValidated:              "QuorumProposalValidated",
	KindQuorumProposalSend:                   "QuorumProposalSend",
	KindDaProposalRecv:                       "DaProposalRecv",
	KindDaProposalSend:                       "DaProposalSend",
	KindDaCertificateRecv:                    "DaCertificateRecv",
	KindDaCertificateValidated:               "DaCertificateValidated",
	KindVidShareRecv:                         "VidShareRecv",
	KindVidShareValidated:                    "VidShareValidated",
	KindVidDisperseSend:                      "VidDisperseSend",
	KindSendPayloadCommitmentAndMetadata:     "SendPayloadCommitmentAndMetadata",
	KindQuorumVoteRecv:                       "QuorumVoteRecv",
	KindQuorumVoteSend:                       "QuorumVoteSend",
	KindExtendedQuorumVoteSend:               "ExtendedQuorumVoteSend",
	KindEpochRootQuorumVoteRecv:              "EpochRootQuorumVoteRecv",
	KindEpochRootQuorumVoteSend:              "EpochRootQuorumVoteSend",
	KindDaVoteRecv:                           "DaVoteRecv",
	KindDaVoteSend:                           "DaVoteSend",
	KindDacSend:                              "DacSend",
	KindTimeoutVoteRecv:                      "TimeoutVoteRecv",
	KindViewSyncPreCommitVoteRecv:            "ViewSyncPreCommitVoteRecv",
	KindViewSyncCommitVoteRecv:               "ViewSyncCommitVoteRecv",
	KindViewSyncFinalizeVoteRecv:             "ViewSyncFinalizeVoteRecv",
	KindViewSyncPreCommitCertificateSend:     "ViewSyncPreCommitCertificateSend",
	KindViewSyncCommitCertificateSend:        "ViewSyncCommitCertificateSend",
	KindViewSyncFinalizeCertificateSend:      "ViewSyncFinalizeCertificateSend",
	KindViewSyncFinalizeCertificateRecv:      "ViewSyncFinalizeCertificateRecv",
	KindUpgradeVoteRecv:                      "UpgradeVoteRecv",
	KindUpgradeCertificateFormed:             "UpgradeCertificateFormed",
	KindQc2Formed:                            "Qc2Formed",
	KindNextEpochQc2Formed:                   "NextEpochQc2Formed",
	KindExtendedQc2Formed:                    "ExtendedQc2Formed",
	KindEpochRootQcFormed:                    "EpochRootQcFormed",
	KindLightClientStateCertFormed:           "LightClientStateCertFormed",
	KindHighQcRecv:                           "HighQcRecv",
	KindHighQcUpdated:                        "HighQcUpdated",
	KindValidatedStateUpdated:                "ValidatedStateUpdated",
	KindViewChange:                           "ViewChange",
	KindTimeout:                              "Timeout",
	KindSetFirstEpoch:                        "SetFirstEpoch",
	KindLeavesDecided:                        "LeavesDecided",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is a message on the bus.
type Event interface {
	Kind() Kind
}

// QuorumProposalRecv carries a proposal as received from the network.
type QuorumProposalRecv struct {
	Proposal *model.SignedQuorumProposal
	Sender   signature.PublicKey
}

// QuorumProposalPreliminarilyValidated is published once the proposal's
// signature and justify QC passed validation, before its parent is known.
type QuorumProposalPreliminarilyValidated struct {
	Proposal *model.SignedQuorumProposal
}

// QuorumProposalValidated is published once the proposal and its parent leaf
// were fully validated. It is one of the three dependencies of a vote.
type QuorumProposalValidated struct {
	Proposal   *model.SignedQuorumProposal
	ParentLeaf *model.Leaf
}

type QuorumProposalSend struct {
	Proposal *model.SignedQuorumProposal
	Sender   signature.PublicKey
}

// DaProposalRecv carries a DA proposal as received from the network.
type DaProposalRecv struct {
	Proposal *model.SignedDaProposal
	Sender   signature.PublicKey
}

// DaProposalSend is published by the leader of a view to send its payload
// to the DA committee.
type DaProposalSend struct {
	Proposal *model.SignedDaProposal
	Sender   signature.PublicKey
}

type DaCertificateRecv struct {
	Cert *model.DaCertificate2
}

// DaCertificateValidated is published for a DA certificate that passed
// validation against the DA committee of its epoch.
type DaCertificateValidated struct {
	Cert *model.DaCertificate2
}

type VidShareRecv struct {
	Sender signature.PublicKey
	Share  *model.SignedVidShare
}

// VidShareValidated is published for a VID share addressed to this node that
// passed validation.
type VidShareValidated struct {
	Share *model.SignedVidShare
}

// VidDisperseSend is published by the leader once the payload of its view
// is dispersed.
type VidDisperseSend struct {
	ViewNumber model.View
	Commitment model.VidCommitment
	Shares     []*model.SignedVidShare
	Sender     signature.PublicKey
}

// SendPayloadCommitmentAndMetadata hands the leader the payload it should
// propose for a view.
type SendPayloadCommitmentAndMetadata struct {
	ViewNumber        model.View
	Epoch             model.Epoch
	Commitment        model.VidCommitment
	BuilderCommitment model.Commitment
	Metadata          []byte
}

type QuorumVoteRecv struct {
	Vote *model.QuorumVote2
}

type QuorumVoteSend struct {
	Vote *model.QuorumVote2
}

// ExtendedQuorumVoteSend is a vote on the last block of an epoch, sent to
// the next epoch's leader as well.
type ExtendedQuorumVoteSend struct {
	Vote *model.QuorumVote2
}

type EpochRootQuorumVoteRecv struct {
	Vote *model.EpochRootQuorumVote
}

type EpochRootQuorumVoteSend struct {
	Vote *model.EpochRootQuorumVote
}

type DaVoteRecv struct {
	Vote *model.DaVote2
}

type DaVoteSend struct {
	Vote *model.DaVote2
}

// DacSend is published by the DA leader once it formed the DA certificate.
type DacSend struct {
	Cert   *model.DaCertificate2
	Sender signature.PublicKey
}

type TimeoutVoteRecv struct {
	Vote *model.TimeoutVote2
}

type ViewSyncPreCommitVoteRecv struct {
	Vote *model.ViewSyncPreCommitVote2
}

type ViewSyncCommitVoteRecv struct {
	Vote *model.ViewSyncCommitVote2
}

type ViewSyncFinalizeVoteRecv struct {
	Vote *model.ViewSyncFinalizeVote2
}

type ViewSyncPreCommitCertificateSend struct {
	Cert   *model.ViewSyncPreCommitCertificate2
	Sender signature.PublicKey
}

type ViewSyncCommitCertificateSend struct {
	Cert   *model.ViewSyncCommitCertificate2
	Sender signature.PublicKey
}

type ViewSyncFinalizeCertificateSend struct {
	Cert   *model.ViewSyncFinalizeCertificate2
	Sender signature.PublicKey
}

type ViewSyncFinalizeCertificateRecv struct {
	Cert *model.ViewSyncFinalizeCertificate2
}

type UpgradeVoteRecv struct {
	Vote *model.UpgradeVote
}

type UpgradeCertificateFormed struct {
	Cert *model.UpgradeCertificate
}

// Qc2Formed carries either a new QC or a new timeout certificate; exactly
// one of QC and TC is set.
type Qc2Formed struct {
	QC *model.QuorumCertificate2
	TC *model.TimeoutCertificate2
}

// View returns the view of the certificate carried.
func (e Qc2Formed) View() model.View {
	if e.QC != nil {
		return e.QC.ViewNumber
	}
	return e.TC.ViewNumber
}

type NextEpochQc2Formed struct {
	QC *model.NextEpochQuorumCertificate2
}

// ExtendedQc2Formed is published when both certificates of an extended QC
// for the last block of an epoch are known.
type ExtendedQc2Formed struct {
	QC *model.QuorumCertificate2
}

type EpochRootQcFormed struct {
	Cert *model.EpochRootQuorumCertificate
}

type LightClientStateCertFormed struct {
	Cert *model.LightClientStateUpdateCertificate
}

// HighQcRecv carries the high QC a replica sent to the next leader.
type HighQcRecv struct {
	QC          *model.QuorumCertificate2
	NextEpochQC *model.NextEpochQuorumCertificate2
	Sender      signature.PublicKey
}

// HighQcUpdated announces a new high QC or next epoch high QC; the other
// field is nil.
type HighQcUpdated struct {
	QC          *model.QuorumCertificate2
	NextEpochQC *model.NextEpochQuorumCertificate2
}

// ValidatedStateUpdated announces that the leaf of View was recorded in the
// consensus state.
type ValidatedStateUpdated struct {
	View model.View
	Leaf *model.Leaf
}

// ViewChange announces that the node moved to View in Epoch.
type ViewChange struct {
	View  model.View
	Epoch model.Epoch
}

// Timeout announces that View timed out.
type Timeout struct {
	View  model.View
	Epoch model.Epoch
}

// SetFirstEpoch announces the first epoch, starting at View.
type SetFirstEpoch struct {
	View  model.View
	Epoch model.Epoch
}

// LeavesDecided carries newly decided leaves, newest first, and the QC that
// decided them.
type LeavesDecided struct {
	Leaves []*model.Leaf
	QC     *model.QuorumCertificate2
}

func (QuorumProposalRecv) Kind() Kind { return KindQuorumProposalRecv }
func (QuorumProposalPreliminarilyValidated) Kind() Kind {
	return KindQuorumProposalPreliminarilyValidated
}
func (QuorumProposalValidated) Kind() Kind          { return KindQuorumProposalValidated }
func (QuorumProposalSend) Kind() Kind               { return KindQuorumProposalSend }
func (DaProposalRecv) Kind() Kind                   { return KindDaProposalRecv }
func (DaProposalSend) Kind() Kind                   { return KindDaProposalSend }
func (DaCertificateRecv) Kind() Kind                { return KindDaCertificateRecv }
func (DaCertificateValidated) Kind() Kind           { return KindDaCertificateValidated }
func (VidShareRecv) Kind() Kind                     { return KindVidShareRecv }
func (VidShareValidated) Kind() Kind                { return KindVidShareValidated }
func (VidDisperseSend) Kind() Kind                  { return KindVidDisperseSend }
func (SendPayloadCommitmentAndMetadata) Kind() Kind { return KindSendPayloadCommitmentAndMetadata }
func (QuorumVoteRecv) Kind() Kind                   { return KindQuorumVoteRecv }
func (QuorumVoteSend) Kind() Kind                   { return KindQuorumVoteSend }
func (ExtendedQuorumVoteSend) Kind() Kind           { return KindExtendedQuorumVoteSend }
func (EpochRootQuorumVoteRecv) Kind() Kind          { return KindEpochRootQuorumVoteRecv }
func (EpochRootQuorumVoteSend) Kind() Kind          { return KindEpochRootQuorumVoteSend }
func (DaVoteRecv) Kind() Kind                       { return KindDaVoteRecv }
func (DaVoteSend) Kind() Kind                       { return KindDaVoteSend }
func (DacSend) Kind() Kind                          { return KindDacSend }
func (TimeoutVoteRecv) Kind() Kind                  { return KindTimeoutVoteRecv }
func (ViewSyncPreCommitVoteRecv) Kind() Kind        { return KindViewSyncPreCommitVoteRecv }
func (ViewSyncCommitVoteRecv) Kind() Kind           { return KindViewSyncCommitVoteRecv }
func (ViewSyncFinalizeVoteRecv) Kind() Kind         { return KindViewSyncFinalizeVoteRecv }
func (ViewSyncPreCommitCertificateSend) Kind() Kind { return KindViewSyncPreCommitCertificateSend }
func (ViewSyncCommitCertificateSend) Kind() Kind    { return KindViewSyncCommitCertificateSend }
func (ViewSyncFinalizeCertificateSend) Kind() Kind  { return KindViewSyncFinalizeCertificateSend }
func (ViewSyncFinalizeCertificateRecv) Kind() Kind  { return KindViewSyncFinalizeCertificateRecv }
func (UpgradeVoteRecv) Kind() Kind                  { return KindUpgradeVoteRecv }
func (UpgradeCertificateFormed) Kind() Kind         { return KindUpgradeCertificateFormed }
func (Qc2Formed) Kind() Kind                        { return KindQc2Formed }
func (NextEpochQc2Formed) Kind() Kind               { return KindNextEpochQc2Formed }
func (ExtendedQc2Formed) Kind() Kind                { return KindExtendedQc2Formed }
func (EpochRootQcFormed) Kind() Kind                { return KindEpochRootQcFormed }
func (LightClientStateCertFormed) Kind() Kind       { return KindLightClientStateCertFormed }
func (HighQcRecv) Kind() Kind                       { return KindHighQcRecv }
func (HighQcUpdated) Kind() Kind                    { return KindHighQcUpdated }
func (ValidatedStateUpdated) Kind() Kind            { return KindValidatedStateUpdated }
func (ViewChange) Kind() Kind                       { return KindViewChange }
func (Timeout) Kind() Kind                          { return KindTimeout }
func (SetFirstEpoch) Kind() Kind                    { return KindSetFirstEpoch }
func (LeavesDecided) Kind() Kind                    { return KindLeavesDecided }
