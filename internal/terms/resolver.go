// Package terms derives "where are we in the academic cycle" from term
// and registration-period boundaries.
package terms

import (
	"fmt"
	"time"
)

// Resolution describes the current position in the term/registration
// cycle at a point in time.
type Resolution struct {
	TermLabel string `json:"term_label"`
	// BoundaryDescription is "starts <relative>" before the term's first
	// day, "ends <relative>" after it.
	BoundaryDescription string `json:"boundary_description"`
	// NextPeriodLabel is "next" while the upcoming registration period
	// belongs to the current term, else the next term's label.
	NextPeriodLabel string    `json:"next_period_label"`
	NextPeriodStart time.Time `json:"next_period_start"`
	Summary         string    `json:"summary"`
}

// Term mirrors the wire shape the resolver needs.
type Term struct {
	Label                   string
	FirstDay                time.Time
	GradeSubmissionDeadline time.Time
	RegistrationPeriods     []time.Time
}

// Context holds the current term and the one after it.
type Context struct {
	Current Term
	Next    Term
}

// Resolve walks the ordered registration-period boundaries of the
// current term, then the next term's when the labels differ, and reports
// the first start still in the future. When every boundary has passed it
// reports the last one examined rather than failing.
func Resolve(tc Context, now time.Time) Resolution {
	res := Resolution{TermLabel: tc.Current.Label}

	if now.Before(tc.Current.FirstDay) {
		res.BoundaryDescription = "starts " + relative(now, tc.Current.FirstDay)
	} else {
		res.BoundaryDescription = "ends " + relative(now, tc.Current.GradeSubmissionDeadline)
	}

	type boundary struct {
		label string
		start time.Time
	}
	walk := make([]boundary, 0, 6)
	for _, start := range tc.Current.RegistrationPeriods {
		walk = append(walk, boundary{label: "next", start: start})
	}
	if tc.Current.Label != tc.Next.Label {
		for _, start := range tc.Next.RegistrationPeriods {
			walk = append(walk, boundary{label: tc.Next.Label, start: start})
		}
	}

	for _, b := range walk {
		res.NextPeriodLabel = b.label
		res.NextPeriodStart = b.start
		if b.start.After(now) {
			break
		}
		// otherwise keep walking; the last examined entry stands
	}

	if !res.NextPeriodStart.IsZero() {
		res.Summary = fmt.Sprintf("%s %s, %s registration period starts %s",
			res.TermLabel, res.BoundaryDescription,
			res.NextPeriodLabel, relative(now, res.NextPeriodStart))
	} else {
		res.Summary = fmt.Sprintf("%s %s", res.TermLabel, res.BoundaryDescription)
	}
	return res
}

// relative renders t against now in the "in 3 days" / "3 days ago"
// style the dashboard shows.
func relative(now, t time.Time) string {
	d := t.Sub(now)
	past := d < 0
	if past {
		d = -d
	}

	var phrase string
	switch {
	case d < time.Minute:
		phrase = "moments"
	case d < 2*time.Minute:
		phrase = "a minute"
	case d < time.Hour:
		phrase = fmt.Sprintf("%d minutes", int(d.Minutes()))
	case d < 2*time.Hour:
		phrase = "an hour"
	case d < 24*time.Hour:
		phrase = fmt.Sprintf("%d hours", int(d.Hours()))
	case d < 48*time.Hour:
		phrase = "a day"
	case d < 26*24*time.Hour:
		phrase = fmt.Sprintf("%d days", int(d.Hours()/24))
	case d < 45*24*time.Hour:
		phrase = "a month"
	default:
		phrase = fmt.Sprintf("%d months", int(d.Hours()/(24*30)))
	}

	if past {
		return phrase + " ago"
	}
	return "in " + phrase
}
