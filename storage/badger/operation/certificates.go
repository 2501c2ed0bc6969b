package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// AnchorLeaf is the newest decided leaf together with the QC that decided it.
type AnchorLeaf struct {
	Leaf *model.Leaf
	QC   *model.QuorumCertificate2
}

// UpsertHighQC stores the QC of the highest view this replica has seen.
func UpsertHighQC(qc *model.QuorumCertificate2) func(*badger.Txn) error {
	return upsert(makePrefix(codeHighQC), qc)
}

// RetrieveHighQC returns storage.ErrNotFound if no high QC was stored yet.
func RetrieveHighQC(qc *model.QuorumCertificate2) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHighQC), qc)
}

func UpsertNextEpochHighQC(qc *model.NextEpochQuorumCertificate2) func(*badger.Txn) error {
	return upsert(makePrefix(codeNextEpochHighQC), qc)
}

func RetrieveNextEpochHighQC(qc *model.NextEpochQuorumCertificate2) func(*badger.Txn) error {
	return retrieve(makePrefix(codeNextEpochHighQC), qc)
}

// UpsertAnchorLeaf replaces the decided anchor of the chain.
func UpsertAnchorLeaf(anchor *AnchorLeaf) func(*badger.Txn) error {
	return upsert(makePrefix(codeAnchorLeaf), anchor)
}

func RetrieveAnchorLeaf(anchor *AnchorLeaf) func(*badger.Txn) error {
	return retrieve(makePrefix(codeAnchorLeaf), anchor)
}

func UpsertDecidedUpgradeCertificate(cert *model.UpgradeCertificate) func(*badger.Txn) error {
	return upsert(makePrefix(codeDecidedUpgradeCertificate), cert)
}

func RetrieveDecidedUpgradeCertificate(cert *model.UpgradeCertificate) func(*badger.Txn) error {
	return retrieve(makePrefix(codeDecidedUpgradeCertificate), cert)
}

// UpsertStateCert stores the newest light client state certificate.
func UpsertStateCert(cert *model.LightClientStateUpdateCertificate) func(*badger.Txn) error {
	return upsert(makePrefix(codeStateCert), cert)
}

func RetrieveStateCert(cert *model.LightClientStateUpdateCertificate) func(*badger.Txn) error {
	return retrieve(makePrefix(codeStateCert), cert)
}
