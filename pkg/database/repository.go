// Package database persists enrolled voice signatures and verification
// audit records. The analysis core only sees the SignatureRepository
// interface; concrete stores are injected at construction.
package database

import (
	"time"

	"voiceprint-server/pkg/biometric"
)

// VerificationRecord is the audit entry written after each verification
type VerificationRecord struct {
	ID          string    `json:"id"`
	SignatureID string    `json:"signature_id,omitempty"`
	Match       bool      `json:"match"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}

// SignatureRepository is the signature store contract the pipeline
// consumes. Implementations provide atomic create/update/delete semantics;
// the core does no locking of its own.
type SignatureRepository interface {
	// ListActive returns all signatures eligible for 1:N verification
	ListActive() ([]*biometric.VoiceSignature, error)

	// Get returns the signature with the given ID, or ErrSignatureNotFound
	Get(id string) (*biometric.VoiceSignature, error)

	// Save creates or replaces a signature and returns its ID
	Save(signature *biometric.VoiceSignature) (string, error)

	// Delete removes a signature; deleting an unknown ID returns
	// ErrSignatureNotFound
	Delete(id string) error

	// RecordVerification appends a verification audit record
	RecordVerification(record *VerificationRecord) error

	// Close releases the underlying store
	Close() error
}
