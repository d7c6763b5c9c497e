// Package history persists finished diagnoses from the event bus.
package history

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"leaf-diagnosis-server/internal/domain/eventbus"
	"leaf-diagnosis-server/internal/platform/logging"
	"leaf-diagnosis-server/internal/platform/storage"
)

const saveTimeout = 5 * time.Second

// Saver is the subset of storage.DiagnosisRepository the recorder needs.
type Saver interface {
	Save(ctx context.Context, record *storage.DiagnosisRecord) error
}

type Recorder struct {
	repo   Saver
	logger *logging.Logger
}

func NewRecorder(repo Saver, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Recorder{repo: repo, logger: logger}
}

// Attach subscribes the recorder to completed and failed diagnoses.
func (r *Recorder) Attach(bus *eventbus.Bus) error {
	if err := bus.Subscribe(eventbus.TopicDiagnosisCompleted, r.Handle); err != nil {
		return err
	}
	return bus.Subscribe(eventbus.TopicDiagnosisFailed, r.Handle)
}

// Handle stores one event. Failures are logged; a broken history store never affects diagnosis.
func (r *Recorder) Handle(ev eventbus.DiagnosisEvent) {
	record, err := ToRecord(ev)
	if err != nil {
		r.logger.WarnTag("STORAGE", "cannot encode diagnosis %s: %v", ev.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := r.repo.Save(ctx, record); err != nil {
		r.logger.WarnTag("STORAGE", "failed to record diagnosis %s: %v", record.DiagnosisID, err)
		return
	}
	r.logger.DebugTag("STORAGE", "recorded diagnosis %s (%s)", record.DiagnosisID, record.Outcome)
}

func ToRecord(ev eventbus.DiagnosisEvent) (*storage.DiagnosisRecord, error) {
	id := ev.ID
	if id == "" {
		id = uuid.NewString()
	}

	payload := ev.Result
	if payload == nil {
		payload = map[string]string{"error": ev.Error, "kind": ev.ErrorKind}
	}
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return nil, err
	}

	created := ev.OccurredAt
	if created.IsZero() {
		created = time.Now()
	}

	return &storage.DiagnosisRecord{
		DiagnosisID: id,
		Outcome:     ev.Outcome,
		LeafType:    ev.LeafType,
		IsHealthy:   ev.IsHealthy,
		Method:      ev.Method,
		Disease:     ev.Disease,
		Accuracy:    ev.Accuracy,
		Severity:    ev.Severity,
		Filename:    ev.Filename,
		DurationMS:  ev.Duration.Milliseconds(),
		Result:      datatypes.JSON(raw),
		CreatedAt:   created,
	}, nil
}
