// Package checksum fingerprints uploaded files so stored copies can be
// verified before they are reused.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrMismatch is returned by Verify when content no longer hashes to its recorded checksum.
var ErrMismatch = errors.New("checksum mismatch")

// Sum returns the hex SHA-256 of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ChecksumMatcher compares content against one recorded checksum.
type ChecksumMatcher struct {
	expectedChecksum string
}

func NewChecksumMatcher(expectedChecksum string) *ChecksumMatcher {
	return &ChecksumMatcher{expectedChecksum: expectedChecksum}
}

// Match reports whether data hashes to the expected checksum.
func (cm *ChecksumMatcher) Match(data []byte) (bool, error) {
	if cm.expectedChecksum == "" {
		return false, errors.New("expected checksum is not set")
	}
	return Sum(data) == cm.expectedChecksum, nil
}

// Verify is Match as a single error.
func (cm *ChecksumMatcher) Verify(data []byte) error {
	ok, err := cm.Match(data)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMismatch
	}
	return nil
}
