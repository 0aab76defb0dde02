package database

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceprint-server/pkg/biometric"
	"voiceprint-server/pkg/errors"
)

func testSignature(name string) *biometric.VoiceSignature {
	return &biometric.VoiceSignature{
		Name:               name,
		Centroid:           biometric.Embedding{0.6, 0.8, 0, 0},
		SampleCount:        3,
		AverageQuality:     85,
		HasSpokenCentroid:  true,
		HasSingingCentroid: false,
		Status:             "active",
	}
}

// repositories returns every SignatureRepository implementation under test
func repositories(t *testing.T) map[string]SignatureRepository {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	sqliteRepo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "voiceprint.db"), logger)
	require.NoError(t, err)

	return map[string]SignatureRepository{
		"memory": NewMemoryRepository(),
		"sqlite": sqliteRepo,
	}
}

func TestSaveAndGet(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			defer repo.Close()

			id, err := repo.Save(testSignature("alice"))
			require.NoError(t, err)
			require.NotEmpty(t, id)

			got, err := repo.Get(id)
			require.NoError(t, err)
			assert.Equal(t, "alice", got.Name)
			assert.Equal(t, 3, got.SampleCount)
			assert.InDelta(t, 85.0, got.AverageQuality, 1e-9)
			require.Len(t, got.Centroid, 4)
			assert.InDelta(t, 0.6, got.Centroid[0], 1e-9)
		})
	}
}

func TestGetUnknownID(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			defer repo.Close()

			_, err := repo.Get("no-such-id")
			require.Error(t, err)
			assert.True(t, errors.IsErrorType(err, errors.ErrSignatureNotFound))
		})
	}
}

func TestListActiveExcludesRevoked(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			defer repo.Close()

			_, err := repo.Save(testSignature("alice"))
			require.NoError(t, err)

			revoked := testSignature("bob")
			revoked.Status = "revoked"
			_, err = repo.Save(revoked)
			require.NoError(t, err)

			active, err := repo.ListActive()
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, "alice", active[0].Name)
		})
	}
}

func TestDelete(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			defer repo.Close()

			id, err := repo.Save(testSignature("alice"))
			require.NoError(t, err)

			require.NoError(t, repo.Delete(id))

			_, err = repo.Get(id)
			assert.True(t, errors.IsErrorType(err, errors.ErrSignatureNotFound))

			err = repo.Delete(id)
			assert.True(t, errors.IsErrorType(err, errors.ErrSignatureNotFound))
		})
	}
}

func TestSaveReplacesExisting(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			defer repo.Close()

			id, err := repo.Save(testSignature("alice"))
			require.NoError(t, err)

			updated := testSignature("alice")
			updated.ID = id
			updated.SampleCount = 5

			again, err := repo.Save(updated)
			require.NoError(t, err)
			assert.Equal(t, id, again)

			got, err := repo.Get(id)
			require.NoError(t, err)
			assert.Equal(t, 5, got.SampleCount)

			active, err := repo.ListActive()
			require.NoError(t, err)
			assert.Len(t, active, 1)
		})
	}
}

func TestRecordVerification(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			defer repo.Close()

			err := repo.RecordVerification(&VerificationRecord{
				SignatureID: "sig-1",
				Match:       true,
				Confidence:  92.5,
			})
			require.NoError(t, err)
		})
	}
}

func TestMemoryRepositoryIsolation(t *testing.T) {
	repo := NewMemoryRepository()

	signature := testSignature("alice")
	id, err := repo.Save(signature)
	require.NoError(t, err)

	// Mutating the saved struct must not leak into the store
	signature.Centroid[0] = 99

	got, err := repo.Get(id)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, got.Centroid[0], 1e-9)
}

func TestMemoryRepositoryVerificationLog(t *testing.T) {
	repo := NewMemoryRepository()

	require.NoError(t, repo.RecordVerification(&VerificationRecord{Match: false, Confidence: 40}))
	require.NoError(t, repo.RecordVerification(&VerificationRecord{Match: true, Confidence: 90}))

	log := repo.Verifications()
	require.Len(t, log, 2)
	assert.NotEmpty(t, log[0].ID)
	assert.False(t, log[0].CreatedAt.IsZero())
	assert.True(t, log[1].Match)
}
