package output

import (
	"fmt"
	"time"
)

// Diagnostic is one catalog error or warning.
type Diagnostic struct {
	Severity string `json:"severity"`
	Kind     string `json:"kind"`
	Scope    string `json:"scope"`
	Message  string `json:"message"`
}

// BuildSummary describes one validation pass.
type BuildSummary struct {
	BuildID          string    `json:"build_id,omitempty"`
	Catalog          string    `json:"catalog"`
	StartedAt        time.Time `json:"started_at"`
	ElapsedMS        int64     `json:"elapsed_ms"`
	Collections      int       `json:"collections"`
	Materializations int       `json:"materializations"`
	Errors           int       `json:"errors"`
	Warnings         int       `json:"warnings"`
}

// ValidateOutput is the JSON output of a validation pass.
type ValidateOutput struct {
	Summary     BuildSummary `json:"summary"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Diagnostics writes diagnostics as a table, with severities styled.
func (r *Renderer) Diagnostics(ds []Diagnostic) {
	if len(ds) == 0 {
		r.Success("No problems found")
		return
	}
	rows := make([][]string, len(ds))
	for i, d := range ds {
		rows[i] = []string{d.Severity, d.Kind, d.Scope, d.Message}
	}
	r.Table([]string{"Severity", "Kind", "Scope", "Message"}, rows, func(col int, cell string) string {
		if col != 0 {
			return cell
		}
		switch cell {
		case "error":
			return r.styles.Error.Render(cell)
		case "warning":
			return r.styles.Warning.Render(cell)
		}
		return cell
	})
}

// Summary writes a one-line summary of a validation pass.
func (r *Renderer) Summary(s BuildSummary) {
	line := fmt.Sprintf("%d collections, %d materializations: %d errors, %d warnings (%s)",
		s.Collections, s.Materializations, s.Errors, s.Warnings,
		time.Duration(s.ElapsedMS)*time.Millisecond)
	switch {
	case s.Errors > 0:
		r.Error(line)
	case s.Warnings > 0:
		r.Warning(line)
	default:
		r.Success(line)
	}
	if s.BuildID != "" {
		r.Muted("build " + s.BuildID)
	}
}
