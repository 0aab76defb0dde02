package database

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"voiceprint-server/pkg/biometric"
	"voiceprint-server/pkg/errors"
)

// MemoryRepository is an in-memory SignatureRepository for tests and demo
// deployments with no database configured
type MemoryRepository struct {
	mu            sync.RWMutex
	signatures    map[string]*biometric.VoiceSignature
	verifications []*VerificationRecord
}

// NewMemoryRepository creates an empty in-memory store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		signatures: make(map[string]*biometric.VoiceSignature),
	}
}

// ListActive implements SignatureRepository
func (r *MemoryRepository) ListActive() ([]*biometric.VoiceSignature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	signatures := make([]*biometric.VoiceSignature, 0, len(r.signatures))
	for _, s := range r.signatures {
		if s.Active() {
			signatures = append(signatures, cloneSignature(s))
		}
	}
	return signatures, nil
}

// Get implements SignatureRepository
func (r *MemoryRepository) Get(id string) (*biometric.VoiceSignature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	signature, ok := r.signatures[id]
	if !ok {
		return nil, errors.NewSignatureNotFound(id)
	}
	return cloneSignature(signature), nil
}

// Save implements SignatureRepository
func (r *MemoryRepository) Save(signature *biometric.VoiceSignature) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if signature.ID == "" {
		signature.ID = uuid.New().String()
	}
	r.signatures[signature.ID] = cloneSignature(signature)
	return signature.ID, nil
}

// Delete implements SignatureRepository
func (r *MemoryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.signatures[id]; !ok {
		return errors.NewSignatureNotFound(id)
	}
	delete(r.signatures, id)
	return nil
}

// RecordVerification implements SignatureRepository
func (r *MemoryRepository) RecordVerification(record *VerificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *record
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.verifications = append(r.verifications, &stored)
	return nil
}

// Verifications returns a copy of the recorded verification log
func (r *MemoryRepository) Verifications() []*VerificationRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*VerificationRecord, len(r.verifications))
	for i, v := range r.verifications {
		record := *v
		out[i] = &record
	}
	return out
}

// Close implements SignatureRepository
func (r *MemoryRepository) Close() error {
	return nil
}

func cloneSignature(s *biometric.VoiceSignature) *biometric.VoiceSignature {
	clone := *s
	clone.Centroid = make(biometric.Embedding, len(s.Centroid))
	copy(clone.Centroid, s.Centroid)
	return &clone
}
