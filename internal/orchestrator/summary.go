package orchestrator

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/gov"
	"github.com/JakeFAU/course-ingest/internal/sanitize"
)

// SiteResult is the outcome of one site.
type SiteResult struct {
	Site      string
	Variant   course.Variant
	Outcome   string
	Stage     string
	Pages     int
	Extracted int
	Stored    int
	Elapsed   time.Duration
	Err       error
}

// GovResult is the outcome of the government source.
type GovResult struct {
	Stats   gov.Stats
	Elapsed time.Duration
	Err     error
}

// AlertResult is the outcome of the new-course alert.
type AlertResult struct {
	Count     int
	MessageID string
	Err       error
}

// Summary collects a run's results.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Sites    []SiteResult
	Gov      *GovResult
	Alert    *AlertResult
}

// Stored is the total rows written by sites and the government source.
func (s Summary) Stored() int {
	n := 0
	for _, r := range s.Sites {
		n += r.Stored
	}
	if s.Gov != nil {
		n += s.Gov.Stats.Upserted
	}
	return n
}

// Failed counts sites that errored, panicked or could not be stored.
func (s Summary) Failed() int {
	n := 0
	for _, r := range s.Sites {
		switch r.Outcome {
		case OutcomeError, OutcomePanic, OutcomeStoreError:
			n++
		}
	}
	return n
}

// Render writes the summary as a table.
func (s Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("run " + s.RunID)
	t.AppendHeader(table.Row{"#", "Site", "Outcome", "Stage", "Pages", "Extracted", "Stored", "Elapsed", "Error"})
	for i, r := range s.Sites {
		t.AppendRow(table.Row{i, r.Site, r.Outcome, r.Stage, r.Pages, r.Extracted, r.Stored, r.Elapsed.Round(time.Millisecond), errText(r.Err)})
	}
	if s.Gov != nil {
		outcome := OutcomeOK
		if s.Gov.Err != nil {
			outcome = OutcomeError
		}
		t.AppendRow(table.Row{"", gov.SourceName, outcome, "", "", s.Gov.Stats.Mapped, s.Gov.Stats.Upserted,
			s.Gov.Elapsed.Round(time.Millisecond), errText(s.Gov.Err)})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", s.Stored(), s.Finished.Sub(s.Started).Round(time.Millisecond), fmt.Sprintf("%d failed", s.Failed())})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if s.Alert != nil {
		if s.Alert.Err != nil {
			fmt.Fprintf(w, "alert: failed: %s\n", errText(s.Alert.Err))
		} else {
			fmt.Fprintf(w, "alert: %d new course(s) %s\n", s.Alert.Count, s.Alert.MessageID)
		}
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return sanitize.TextField(sanitize.ErrorForLogging(err), 80)
}

// RenderSites lists sites with their index, as used by --start and --end.
func RenderSites(w io.Writer, sites []course.Site, indexOf func(course.Site) int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Name", "Region", "Variant", "Replace", "URL"})
	for i, s := range sites {
		idx := i
		if indexOf != nil {
			idx = indexOf(s)
		}
		t.AppendRow(table.Row{idx, s.Name, s.Region, s.Variant, s.Replace, s.URL})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
