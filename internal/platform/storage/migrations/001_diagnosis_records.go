package migrations

import (
	"gorm.io/gorm"
)

// Migration001DiagnosisRecords creates the diagnosis history table.
type Migration001DiagnosisRecords struct{}

func (m *Migration001DiagnosisRecords) Version() string {
	return "001_diagnosis_records"
}

func (m *Migration001DiagnosisRecords) Description() string {
	return "Create diagnosis history table"
}

func (m *Migration001DiagnosisRecords) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS diagnosis_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			diagnosis_id VARCHAR(64) NOT NULL UNIQUE,
			outcome VARCHAR(32) NOT NULL,
			leaf_type VARCHAR(32) NOT NULL,
			is_healthy BOOLEAN,
			method VARCHAR(32),
			disease VARCHAR(64),
			accuracy REAL,
			severity VARCHAR(16),
			filename VARCHAR(255),
			duration_ms INTEGER NOT NULL DEFAULT 0,
			result JSON NOT NULL,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_diagnosis_records_outcome ON diagnosis_records(outcome)`).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_diagnosis_records_created_at ON diagnosis_records(created_at)`).Error
}

func (m *Migration001DiagnosisRecords) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS diagnosis_records`).Error
}
