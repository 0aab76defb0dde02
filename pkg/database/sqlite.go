package database

import (
	"encoding/json"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"voiceprint-server/pkg/biometric"
	"voiceprint-server/pkg/errors"
)

// signatureRow is the gorm model for voice signatures. The centroid is
// stored as a JSON array so the schema stays independent of the embedding
// dimension.
type signatureRow struct {
	ID                 string `gorm:"primaryKey"`
	Name               string `gorm:"index"`
	Centroid           string
	SampleCount        int
	AverageQuality     float64
	HasSpokenCentroid  bool
	HasSingingCentroid bool
	Status             string `gorm:"index"`
	EnrolledAt         time.Time
	UpdatedAt          time.Time
}

func (signatureRow) TableName() string { return "voice_signatures" }

// verificationRow is the gorm model for verification audit records
type verificationRow struct {
	ID          string `gorm:"primaryKey"`
	SignatureID string `gorm:"index"`
	Match       bool
	Confidence  float64
	CreatedAt   time.Time
}

func (verificationRow) TableName() string { return "verifications" }

// SQLiteRepository is the sqlite-backed SignatureRepository
type SQLiteRepository struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// NewSQLiteRepository opens (and migrates) the sqlite store at the given
// path
func NewSQLiteRepository(path string, logger *logrus.Logger) (*SQLiteRepository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open signature store", map[string]interface{}{
			"path": path,
		})
	}

	if err := db.AutoMigrate(&signatureRow{}, &verificationRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate signature store")
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithField("component", "signature_store"),
	}, nil
}

// ListActive implements SignatureRepository
func (r *SQLiteRepository) ListActive() ([]*biometric.VoiceSignature, error) {
	var rows []signatureRow
	if err := r.db.Where("status = ?", "active").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list active signatures")
	}

	signatures := make([]*biometric.VoiceSignature, 0, len(rows))
	for i := range rows {
		signature, err := rows[i].toSignature()
		if err != nil {
			r.logger.WithError(err).WithField("signature_id", rows[i].ID).Warn("Skipping undecodable signature row")
			continue
		}
		signatures = append(signatures, signature)
	}
	return signatures, nil
}

// Get implements SignatureRepository
func (r *SQLiteRepository) Get(id string) (*biometric.VoiceSignature, error) {
	var row signatureRow
	err := r.db.First(&row, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.NewSignatureNotFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get signature", map[string]interface{}{
			"signature_id": id,
		})
	}
	return row.toSignature()
}

// Save implements SignatureRepository
func (r *SQLiteRepository) Save(signature *biometric.VoiceSignature) (string, error) {
	if signature.ID == "" {
		signature.ID = uuid.New().String()
	}

	centroid, err := json.Marshal(signature.Centroid)
	if err != nil {
		return "", errors.Wrap(err, "encode centroid")
	}

	row := signatureRow{
		ID:                 signature.ID,
		Name:               signature.Name,
		Centroid:           string(centroid),
		SampleCount:        signature.SampleCount,
		AverageQuality:     signature.AverageQuality,
		HasSpokenCentroid:  signature.HasSpokenCentroid,
		HasSingingCentroid: signature.HasSingingCentroid,
		Status:             signature.Status,
		EnrolledAt:         signature.EnrolledAt,
		UpdatedAt:          time.Now().UTC(),
	}

	if err := r.db.Save(&row).Error; err != nil {
		return "", errors.Wrap(err, "save signature", map[string]interface{}{
			"signature_id": signature.ID,
		})
	}

	r.logger.WithFields(logrus.Fields{
		"signature_id": signature.ID,
		"name":         signature.Name,
		"samples":      signature.SampleCount,
	}).Info("Voice signature saved")

	return signature.ID, nil
}

// Delete implements SignatureRepository
func (r *SQLiteRepository) Delete(id string) error {
	result := r.db.Delete(&signatureRow{}, "id = ?", id)
	if result.Error != nil {
		return errors.Wrap(result.Error, "delete signature", map[string]interface{}{
			"signature_id": id,
		})
	}
	if result.RowsAffected == 0 {
		return errors.NewSignatureNotFound(id)
	}

	r.logger.WithField("signature_id", id).Info("Voice signature deleted")
	return nil
}

// RecordVerification implements SignatureRepository
func (r *SQLiteRepository) RecordVerification(record *VerificationRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	row := verificationRow{
		ID:          record.ID,
		SignatureID: record.SignatureID,
		Match:       record.Match,
		Confidence:  record.Confidence,
		CreatedAt:   record.CreatedAt,
	}
	if err := r.db.Create(&row).Error; err != nil {
		return errors.Wrap(err, "record verification")
	}
	return nil
}

// Close implements SignatureRepository
func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (row *signatureRow) toSignature() (*biometric.VoiceSignature, error) {
	var centroid biometric.Embedding
	if err := json.Unmarshal([]byte(row.Centroid), &centroid); err != nil {
		return nil, errors.Wrap(err, "decode centroid", map[string]interface{}{
			"signature_id": row.ID,
		})
	}

	return &biometric.VoiceSignature{
		ID:                 row.ID,
		Name:               row.Name,
		Centroid:           centroid,
		SampleCount:        row.SampleCount,
		AverageQuality:     row.AverageQuality,
		HasSpokenCentroid:  row.HasSpokenCentroid,
		HasSingingCentroid: row.HasSingingCentroid,
		Status:             row.Status,
		EnrolledAt:         row.EnrolledAt,
	}, nil
}
