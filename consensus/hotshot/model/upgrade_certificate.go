package model

import (
	"errors"
)

var (
	ErrUpgradeNotRelevant = errors.New("upgrade certificate is no longer relevant")
)

// UpgradeCertificateIsRelevant reports whether the certificate can still be
// attached to a proposal for the view: its new version must not have started
// yet, and no other upgrade may have been decided.
func UpgradeCertificateIsRelevant(cert *UpgradeCertificate, view View, decided *UpgradeCertificate) error {
	if cert.Data.NewVersionFirstView < view {
		return ErrUpgradeNotRelevant
	}
	if decided != nil && decided.Commit() != cert.Commit() {
		return ErrUpgradeNotRelevant
	}
	return nil
}

// ValidateUpgradeCertificate validates an optional upgrade certificate against
// the upgrade threshold of the committee. A missing certificate is valid.
func ValidateUpgradeCertificate(cert *UpgradeCertificate, stakeTable StakeTable, thresholds Thresholds, lock *UpgradeLock) error {
	if cert == nil {
		return nil
	}
	return cert.IsValidCert(stakeTable, cert.ThresholdOf(thresholds), lock)
}
