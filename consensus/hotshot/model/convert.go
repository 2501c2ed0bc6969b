package model

// Certificates and votes convert losslessly from the pre-epoch types to the
// epoch types. Downgrading drops the epoch fields; pre-epoch consumers never
// read them, and since absent fields don't enter commitments, signatures
// over pre-epoch data stay valid across the conversion.

func ToQC2(qc *QuorumCertificate) *QuorumCertificate2 {
	return &QuorumCertificate2{
		Data:           QuorumData2{LeafCommit: qc.Data.LeafCommit},
		VoteCommitment: qc.VoteCommitment,
		ViewNumber:     qc.ViewNumber,
		Signatures:     qc.Signatures,
	}
}

func ToQC(qc *QuorumCertificate2) *QuorumCertificate {
	return &QuorumCertificate{
		Data:           QuorumData{LeafCommit: qc.Data.LeafCommit},
		VoteCommitment: qc.VoteCommitment,
		ViewNumber:     qc.ViewNumber,
		Signatures:     qc.Signatures,
	}
}

// ToNextEpochQC reinterprets a QC2 for validation against the next epoch.
func ToNextEpochQC(qc *QuorumCertificate2) *NextEpochQuorumCertificate2 {
	return &NextEpochQuorumCertificate2{
		Data:           NextEpochQuorumData2{QuorumData2: qc.Data},
		VoteCommitment: qc.VoteCommitment,
		ViewNumber:     qc.ViewNumber,
		Signatures:     qc.Signatures,
	}
}

func ToDAC2(dac *DaCertificate) *DaCertificate2 {
	return &DaCertificate2{
		Data:           DaData2{PayloadCommit: dac.Data.PayloadCommit},
		VoteCommitment: dac.VoteCommitment,
		ViewNumber:     dac.ViewNumber,
		Signatures:     dac.Signatures,
	}
}

func ToDAC(dac *DaCertificate2) *DaCertificate {
	return &DaCertificate{
		Data:           DaData{PayloadCommit: dac.Data.PayloadCommit},
		VoteCommitment: dac.VoteCommitment,
		ViewNumber:     dac.ViewNumber,
		Signatures:     dac.Signatures,
	}
}

func ToTC2(tc *TimeoutCertificate) *TimeoutCertificate2 {
	return &TimeoutCertificate2{
		Data:           TimeoutData2{View: tc.Data.View},
		VoteCommitment: tc.VoteCommitment,
		ViewNumber:     tc.ViewNumber,
		Signatures:     tc.Signatures,
	}
}

func ToTC(tc *TimeoutCertificate2) *TimeoutCertificate {
	return &TimeoutCertificate{
		Data:           TimeoutData{View: tc.Data.View},
		VoteCommitment: tc.VoteCommitment,
		ViewNumber:     tc.ViewNumber,
		Signatures:     tc.Signatures,
	}
}

func ToViewSyncPreCommit2(c *ViewSyncPreCommitCertificate) *ViewSyncPreCommitCertificate2 {
	return &ViewSyncPreCommitCertificate2{
		Data:           ViewSyncPreCommitData2{Relay: c.Data.Relay, Round: c.Data.Round},
		VoteCommitment: c.VoteCommitment,
		ViewNumber:     c.ViewNumber,
		Signatures:     c.Signatures,
	}
}

func ToViewSyncPreCommit(c *ViewSyncPreCommitCertificate2) *ViewSyncPreCommitCertificate {
	return &ViewSyncPreCommitCertificate{
		Data:           ViewSyncPreCommitData{Relay: c.Data.Relay, Round: c.Data.Round},
		VoteCommitment: c.VoteCommitment,
		ViewNumber:     c.ViewNumber,
		Signatures:     c.Signatures,
	}
}

func ToViewSyncCommit2(c *ViewSyncCommitCertificate) *ViewSyncCommitCertificate2 {
	return &ViewSyncCommitCertificate2{
		Data:           ViewSyncCommitData2{Relay: c.Data.Relay, Round: c.Data.Round},
		VoteCommitment: c.VoteCommitment,
		ViewNumber:     c.ViewNumber,
		Signatures:     c.Signatures,
	}
}

func ToViewSyncCommit(c *ViewSyncCommitCertificate2) *ViewSyncCommitCertificate {
	return &ViewSyncCommitCertificate{
		Data:           ViewSyncCommitData{Relay: c.Data.Relay, Round: c.Data.Round},
		VoteCommitment: c.VoteCommitment,
		ViewNumber:     c.ViewNumber,
		Signatures:     c.Signatures,
	}
}

func ToViewSyncFinalize2(c *ViewSyncFinalizeCertificate) *ViewSyncFinalizeCertificate2 {
	return &ViewSyncFinalizeCertificate2{
		Data:           ViewSyncFinalizeData2{Relay: c.Data.Relay, Round: c.Data.Round},
		VoteCommitment: c.VoteCommitment,
		ViewNumber:     c.ViewNumber,
		Signatures:     c.Signatures,
	}
}

func ToViewSyncFinalize(c *ViewSyncFinalizeCertificate2) *ViewSyncFinalizeCertificate {
	return &ViewSyncFinalizeCertificate{
		Data:           ViewSyncFinalizeData{Relay: c.Data.Relay, Round: c.Data.Round},
		VoteCommitment: c.VoteCommitment,
		ViewNumber:     c.ViewNumber,
		Signatures:     c.Signatures,
	}
}

func ToQuorumVote2(v *QuorumVote) *QuorumVote2 {
	return &QuorumVote2{
		Signer:     v.Signer,
		Signature:  v.Signature,
		Data:       QuorumData2{LeafCommit: v.Data.LeafCommit},
		ViewNumber: v.ViewNumber,
	}
}

func ToQuorumVote(v *QuorumVote2) *QuorumVote {
	return &QuorumVote{
		Signer:     v.Signer,
		Signature:  v.Signature,
		Data:       QuorumData{LeafCommit: v.Data.LeafCommit},
		ViewNumber: v.ViewNumber,
	}
}

// ToNextEpochVote reinterprets an extended quorum vote for the next epoch's
// accumulator; the signature carries over unchanged.
func ToNextEpochVote(v *QuorumVote2) *NextEpochQuorumVote2 {
	return &NextEpochQuorumVote2{
		Signer:     v.Signer,
		Signature:  v.Signature,
		Data:       NextEpochQuorumData2{QuorumData2: v.Data},
		ViewNumber: v.ViewNumber,
	}
}

func ToDaVote2(v *DaVote) *DaVote2 {
	return &DaVote2{
		Signer:     v.Signer,
		Signature:  v.Signature,
		Data:       DaData2{PayloadCommit: v.Data.PayloadCommit},
		ViewNumber: v.ViewNumber,
	}
}

func ToDaVote(v *DaVote2) *DaVote {
	return &DaVote{
		Signer:     v.Signer,
		Signature:  v.Signature,
		Data:       DaData{PayloadCommit: v.Data.PayloadCommit},
		ViewNumber: v.ViewNumber,
	}
}

func ToTimeoutVote2(v *TimeoutVote) *TimeoutVote2 {
	return &TimeoutVote2{
		Signer:     v.Signer,
		Signature:  v.Signature,
		Data:       TimeoutData2{View: v.Data.View},
		ViewNumber: v.ViewNumber,
	}
}

func ToTimeoutVote(v *TimeoutVote2) *TimeoutVote {
	return &TimeoutVote{
		Signer:     v.Signer,
		Signature:  v.Signature,
		Data:       TimeoutData{View: v.Data.View},
		ViewNumber: v.ViewNumber,
	}
}
