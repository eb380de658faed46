package imports

import (
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/sis"
)

// JobView is one classified import job as the dashboard renders it.
type JobView struct {
	QueueID   int       `json:"queue_id"`
	Type      string    `json:"type"`
	TypeName  string    `json:"type_name"`
	Priority  string    `json:"priority"`
	AddedDate time.Time `json:"added_date"`
	HoursAgo  int       `json:"hours_ago"`
	Progress  int       `json:"canvas_progress"`

	Pending    bool `json:"pending"`
	InProgress bool `json:"in_progress"`
	Finished   bool `json:"finished"`

	ImportFailure    bool `json:"import_failure"`
	ExceptionFailure bool `json:"exception_failure"`
	CSVFailure       bool `json:"csv_failure"`
	PostFailure      bool `json:"post_failure"`
	CanvasFailure    bool `json:"canvas_failure"`
	WithMessages     bool `json:"with_messages"`

	CanvasState    string `json:"canvas_state,omitempty"`
	CSVErrors      string `json:"csv_errors,omitempty"`
	CanvasErrors   string `json:"canvas_errors,omitempty"`
	CanvasWarnings string `json:"canvas_warnings,omitempty"`
}

// classify derives the rendered flags for one wire job.
func classify(j sis.ImportJob, now time.Time) JobView {
	v := JobView{
		QueueID:          j.QueueID,
		Type:             j.Type,
		TypeName:         j.TypeName,
		Priority:         j.Priority,
		AddedDate:        j.AddedDate,
		HoursAgo:         int(now.Sub(j.AddedDate).Hours()),
		Progress:         j.CanvasProgress,
		ExceptionFailure: isExceptionFailure(j),
		CSVFailure:       isCSVFailure(j),
		PostFailure:      isPostFailure(j),
		CanvasFailure:    isCanvasFailure(j),
		Finished:         isFinished(j),
		WithMessages:     hasMessages(j),
		CanvasState:      deref(j.CanvasState),
		CSVErrors:        deref(j.CSVErrors),
		CanvasErrors:     deref(j.CanvasErrors),
		CanvasWarnings:   deref(j.CanvasWarnings),
	}
	v.ImportFailure = v.CSVFailure || v.PostFailure || v.CanvasFailure
	v.Pending = j.PostStatus == nil && !v.CSVFailure && !v.PostFailure
	v.InProgress = j.CanvasProgress > 0 && j.CanvasProgress < 100
	return v
}

// A negative post status means the posting step itself threw.
func isExceptionFailure(j sis.ImportJob) bool {
	return j.PostStatus != nil && *j.PostStatus < 0
}

func isCSVFailure(j sis.ImportJob) bool {
	return j.CSVErrors != nil && *j.CSVErrors != ""
}

func isPostFailure(j sis.ImportJob) bool {
	return j.PostStatus != nil && *j.PostStatus != 200 &&
		j.CanvasErrors != nil && *j.CanvasErrors != ""
}

func isCanvasFailure(j sis.ImportJob) bool {
	return strings.HasPrefix(deref(j.CanvasState), "failed")
}

// isFinished reports whether the upstream state token marks the job
// done, successfully or not.
func isFinished(j sis.ImportJob) bool {
	state := deref(j.CanvasState)
	return strings.HasPrefix(state, "imported") || strings.HasPrefix(state, "failed")
}

func hasMessages(j sis.ImportJob) bool {
	state := deref(j.CanvasState)
	return strings.HasPrefix(state, "imported_with_messages") ||
		strings.HasPrefix(state, "failed_with_messages")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
