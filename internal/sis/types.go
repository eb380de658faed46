package sis

import "time"

// Priority values as they appear on the wire.
const (
	PriorityNormal    = "normal"
	PriorityHigh      = "high"
	PriorityImmediate = "immediate"
)

// ImportJob is one queued bulk import as reported by GET /imports.
// Diagnostic payloads are independently nullable; PostStatus is nil until
// the CSV set has been posted upstream.
type ImportJob struct {
	QueueID               int       `json:"queue_id"`
	Type                  string    `json:"type"`
	TypeName              string    `json:"type_name"`
	CSVPath               *string   `json:"csv_path"`
	AddedDate             time.Time `json:"added_date"`
	Priority              string    `json:"priority"`
	OverrideSISStickiness *bool     `json:"override_sis_stickiness"`
	CSVErrors             *string   `json:"csv_errors"`
	PostStatus            *int      `json:"post_status"`
	CanvasState           *string   `json:"canvas_state"`
	CanvasProgress        int       `json:"canvas_progress"`
	CanvasWarnings        *string   `json:"canvas_warnings"`
	CanvasErrors          *string   `json:"canvas_errors"`
}

type importList struct {
	Imports []ImportJob `json:"imports"`
}

// groupImportRequest is the typed body for POST /import/.
type groupImportRequest struct {
	Mode string `json:"mode"`
}

// Course is a provisioned course row; only the fields the monitor reads.
type Course struct {
	CourseID          string  `json:"course_id"`
	Priority          string  `json:"priority"`
	ProvisionedError  bool    `json:"provisioned_error"`
	ProvisionedStatus *string `json:"provisioned_status"`
}

type courseList struct {
	Courses []Course `json:"courses"`
}

// EventPoints is one category's slice of per-minute counts. Points[0]
// corresponds to the minute at Start; one point per minute through End.
type EventPoints struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Points []int     `json:"points"`
}

// EventCounts maps event category to its minute-bucketed counts.
type EventCounts map[string]EventPoints

// RegistrationPeriod is one enrollment-window start date within a term.
type RegistrationPeriod struct {
	Start time.Time `json:"start"`
}

// Term describes one academic term's boundary dates.
type Term struct {
	Label                   string               `json:"label"`
	FirstDay                time.Time            `json:"first_day_quarter"`
	GradeSubmissionDeadline time.Time            `json:"grade_submission_deadline"`
	RegistrationPeriods     []RegistrationPeriod `json:"registration_periods"`
}

// TermContext holds the current term and the one after it.
type TermContext struct {
	Current Term `json:"current"`
	Next    Term `json:"next"`
}

type termsEnvelope struct {
	Terms TermContext `json:"terms"`
}

// StatusComponent is one row of the upstream system status feed; the
// first element of the response is the overall status.
type StatusComponent struct {
	URL       string `json:"url"`
	Component string `json:"component"`
	Status    string `json:"status"`
	State     string `json:"state"`
}
