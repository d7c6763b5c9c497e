package eventbus

import "time"

const (
	TopicDiagnosisCompleted = "diagnosis:completed"
	TopicDiagnosisFailed    = "diagnosis:failed"
)

// DiagnosisEvent describes one finished pipeline run, successful or not.
type DiagnosisEvent struct {
	ID         string        `json:"id"`
	Outcome    string        `json:"outcome"`
	LeafType   string        `json:"leaf_type,omitempty"`
	IsHealthy  *bool         `json:"is_healthy,omitempty"`
	Disease    string        `json:"disease,omitempty"`
	Method     string        `json:"method,omitempty"`
	Accuracy   float64       `json:"accuracy,omitempty"`
	Severity   string        `json:"severity,omitempty"`
	Filename   string        `json:"filename,omitempty"`
	Duration   time.Duration `json:"duration"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	Result     interface{}   `json:"result,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}
