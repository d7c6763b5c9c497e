package storage

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"leaf-diagnosis-server/internal/platform/errors"
)

const maxHistoryLimit = 200

// DiagnosisRecord is one terminal pipeline result. Uploaded image bytes are never stored.
type DiagnosisRecord struct {
	ID          uint           `gorm:"primaryKey" json:"-"`
	DiagnosisID string         `gorm:"column:diagnosis_id;uniqueIndex;not null" json:"id"`
	Outcome     string         `gorm:"not null;index" json:"outcome"`
	LeafType    string         `gorm:"not null" json:"leafType"`
	IsHealthy   *bool          `json:"isHealthy,omitempty"`
	Method      string         `json:"method,omitempty"`
	Disease     string         `json:"disease,omitempty"`
	Accuracy    float64        `json:"accuracy,omitempty"`
	Severity    string         `json:"severity,omitempty"`
	Filename    string         `json:"filename,omitempty"`
	DurationMS  int64          `gorm:"column:duration_ms;not null;default:0" json:"durationMs"`
	Result      datatypes.JSON `gorm:"type:json;not null" json:"result"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"createdAt"`
}

func (DiagnosisRecord) TableName() string {
	return "diagnosis_records"
}

type DiagnosisRepository struct {
	db *gorm.DB
}

func NewDiagnosisRepository(db *gorm.DB) *DiagnosisRepository {
	return &DiagnosisRepository{db: db}
}

func (r *DiagnosisRepository) Save(ctx context.Context, record *DiagnosisRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "diagnosis.save", "failed to save diagnosis record", err)
	}
	return nil
}

// ListRecent returns up to limit records, newest first. limit is clamped to [1,200].
func (r *DiagnosisRepository) ListRecent(ctx context.Context, limit int) ([]DiagnosisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var records []DiagnosisRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "diagnosis.list", "failed to list diagnosis records", err)
	}
	return records, nil
}

func (r *DiagnosisRepository) FindByID(ctx context.Context, diagnosisID string) (*DiagnosisRecord, error) {
	var record DiagnosisRecord
	if err := r.db.WithContext(ctx).Where("diagnosis_id = ?", diagnosisID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindStorage, "diagnosis.find", "failed to find diagnosis record", err)
	}
	return &record, nil
}

// CountByOutcome reports how many records each terminal state has.
func (r *DiagnosisRepository) CountByOutcome(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Outcome string
		Total   int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&DiagnosisRecord{}).
		Select("outcome, COUNT(*) AS total").
		Group("outcome").
		Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "diagnosis.count", "failed to count diagnosis records", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Outcome] = rw.Total
	}
	return counts, nil
}
