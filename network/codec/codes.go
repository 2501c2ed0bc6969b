package codec

import (
	"github.com/onflow/hotshot/consensus/hotshot/model"
)

const (
	CodeMin uint8 = iota + 1

	// proposals
	CodeQuorumProposal
	CodeDaProposal

	// votes
	CodeQuorumVote
	CodeEpochRootQuorumVote
	CodeDaVote
	CodeTimeoutVote
	CodeViewSyncPreCommitVote
	CodeViewSyncCommitVote
	CodeViewSyncFinalizeVote
	CodeUpgradeVote

	// certificates
	CodeDaCertificate
	CodeViewSyncPreCommitCertificate
	CodeViewSyncCommitCertificate
	CodeViewSyncFinalizeCertificate

	// data availability
	CodeVidShare

	// leader hand-over
	CodeHighQC

	CodeMax
)

// HighQCMessage is what a replica sends the next leader after a timeout: its
// high QC and, during an epoch transition, the next epoch QC for the same leaf.
type HighQCMessage struct {
	QC          *model.QuorumCertificate2
	NextEpochQC *model.NextEpochQuorumCertificate2
}

// MessageCodeFromInterface returns the correct Code based on the underlying type of message v.
func MessageCodeFromInterface(v interface{}) (uint8, string, error) {
	switch v.(type) {
	// proposals
	case *model.SignedQuorumProposal:
		return CodeQuorumProposal, "CodeQuorumProposal", nil
	case *model.SignedDaProposal:
		return CodeDaProposal, "CodeDaProposal", nil

	// votes
	case *model.QuorumVote2:
		return CodeQuorumVote, "CodeQuorumVote", nil
	case *model.EpochRootQuorumVote:
		return CodeEpochRootQuorumVote, "CodeEpochRootQuorumVote", nil
	case *model.DaVote2:
		return CodeDaVote, "CodeDaVote", nil
	case *model.TimeoutVote2:
		return CodeTimeoutVote, "CodeTimeoutVote", nil
	case *model.ViewSyncPreCommitVote2:
		return CodeViewSyncPreCommitVote, "CodeViewSyncPreCommitVote", nil
	case *model.ViewSyncCommitVote2:
		return CodeViewSyncCommitVote, "CodeViewSyncCommitVote", nil
	case *model.ViewSyncFinalizeVote2:
		return CodeViewSyncFinalizeVote, "CodeViewSyncFinalizeVote", nil
	case *model.UpgradeVote:
		return CodeUpgradeVote, "CodeUpgradeVote", nil

	// certificates
	case *model.DaCertificate2:
		return CodeDaCertificate, "CodeDaCertificate", nil
	case *model.ViewSyncPreCommitCertificate2:
		return CodeViewSyncPreCommitCertificate, "CodeViewSyncPreCommitCertificate", nil
	case *model.ViewSyncCommitCertificate2:
		return CodeViewSyncCommitCertificate, "CodeViewSyncCommitCertificate", nil
	case *model.ViewSyncFinalizeCertificate2:
		return CodeViewSyncFinalizeCertificate, "CodeViewSyncFinalizeCertificate", nil

	// data availability
	case *model.SignedVidShare:
		return CodeVidShare, "CodeVidShare", nil

	// leader hand-over
	case *HighQCMessage:
		return CodeHighQC, "CodeHighQC", nil

	default:
		return 0, "", NewUnsupportedTypeError(v)
	}
}

// InterfaceFromMessageCode returns an empty value of the message type of code
// to decode into, and the code's name.
func InterfaceFromMessageCode(code uint8) (interface{}, string, error) {
	switch code {
	// proposals
	case CodeQuorumProposal:
		return &model.SignedQuorumProposal{}, "CodeQuorumProposal", nil
	case CodeDaProposal:
		return &model.SignedDaProposal{}, "CodeDaProposal", nil

	// votes
	case CodeQuorumVote:
		return &model.QuorumVote2{}, "CodeQuorumVote", nil
	case CodeEpochRootQuorumVote:
		return &model.EpochRootQuorumVote{}, "CodeEpochRootQuorumVote", nil
	case CodeDaVote:
		return &model.DaVote2{}, "CodeDaVote", nil
	case CodeTimeoutVote:
		return &model.TimeoutVote2{}, "CodeTimeoutVote", nil
	case CodeViewSyncPreCommitVote:
		return &model.ViewSyncPreCommitVote2{}, "CodeViewSyncPreCommitVote", nil
	case CodeViewSyncCommitVote:
		return &model.ViewSyncCommitVote2{}, "CodeViewSyncCommitVote", nil
	case CodeViewSyncFinalizeVote:
		return &model.ViewSyncFinalizeVote2{}, "CodeViewSyncFinalizeVote", nil
	case CodeUpgradeVote:
		return &model.UpgradeVote{}, "CodeUpgradeVote", nil

	// certificates
	case CodeDaCertificate:
		return &model.DaCertificate2{}, "CodeDaCertificate", nil
	case CodeViewSyncPreCommitCertificate:
		return &model.ViewSyncPreCommitCertificate2{}, "CodeViewSyncPreCommitCertificate", nil
	case CodeViewSyncCommitCertificate:
		return &model.ViewSyncCommitCertificate2{}, "CodeViewSyncCommitCertificate", nil
	case CodeViewSyncFinalizeCertificate:
		return &model.ViewSyncFinalizeCertificate2{}, "CodeViewSyncFinalizeCertificate", nil

	// data availability
	case CodeVidShare:
		return &model.SignedVidShare{}, "CodeVidShare", nil

	// leader hand-over
	case CodeHighQC:
		return &HighQCMessage{}, "CodeHighQC", nil

	default:
		return nil, "", NewUnknownCodeError(code)
	}
}
