package suggestion

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type classifies a suggestion card.
type Type string

const (
	TypeDiagnosis    Type = "diagnosis"
	TypeICD          Type = "icd"
	TypePrescription Type = "prescription"
	TypeTreatment    Type = "treatment"
	TypeFollowUp     Type = "followup"
	TypeWarning      Type = "warning"
)

// Status is the review state of a suggestion.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusModified Status = "modified"
)

// Suggestion maps to the suggestion table. The normalizer fills ID, Type,
// Title, Content, Confidence and Status; the service fills the rest.
type Suggestion struct {
	ID              string    `db:"id" json:"id"`
	SessionID       string    `db:"session_id" json:"session_id,omitempty"`
	AnalysisID      uuid.UUID `db:"analysis_id" json:"analysis_id,omitempty"`
	Position        int       `db:"position" json:"position"`
	Type            Type      `db:"type" json:"type"`
	Title           string    `db:"title" json:"title"`
	Content         string    `db:"content" json:"content"`
	OriginalContent string    `db:"original_content" json:"original_content,omitempty"`
	Confidence      int       `db:"confidence" json:"confidence"`
	Status          Status    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// SuggestionAction maps to the suggestion_action table.
type SuggestionAction struct {
	ID              uuid.UUID `db:"id" json:"id"`
	SuggestionID    string    `db:"suggestion_id" json:"suggestion_id"`
	Action          string    `db:"action" json:"action"`
	ClinicianID     *string   `db:"clinician_id" json:"clinician_id,omitempty"`
	PreviousContent *string   `db:"previous_content" json:"previous_content,omitempty"`
	Comment         *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Analysis maps to the analysis table. One row per analysis run.
type Analysis struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	SessionID       string          `db:"session_id" json:"session_id"`
	Transcript      string          `db:"transcript" json:"transcript"`
	Patient         *PatientContext `db:"patient" json:"patient,omitempty"`
	RawPayload      json.RawMessage `db:"raw_payload" json:"raw_payload,omitempty"`
	SuggestionCount int             `db:"suggestion_count" json:"suggestion_count"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// PatientContext is optional patient metadata sent alongside a transcript.
type PatientContext struct {
	Name    *string  `json:"name,omitempty"`
	Age     *int     `json:"age,omitempty"`
	Gender  *string  `json:"gender,omitempty"`
	History []string `json:"history,omitempty"`
}

// Turn is one role-tagged utterance of a recorded consultation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleClinician = "CLINICIAN"
	RolePatient   = "PATIENT"
)

// AnalyzeRequest is the body of POST /analyses.
type AnalyzeRequest struct {
	SessionID   string          `json:"session_id"`
	Notes       string          `json:"notes"`
	Turns       []Turn          `json:"turns"`
	Patient     *PatientContext `json:"patient"`
	AgentResult json.RawMessage `json:"agent_result"`
}

// AnalysisResult is returned by Service.Analyze.
type AnalysisResult struct {
	Analysis    *Analysis     `json:"analysis"`
	Suggestions []*Suggestion `json:"suggestions"`
	Notice      string        `json:"notice,omitempty"`
}

// ActionRequest is the body of the approve/reject/modify endpoints.
type ActionRequest struct {
	Content     string  `json:"content"`
	ClinicianID *string `json:"clinician_id"`
	Comment     *string `json:"comment"`
}
