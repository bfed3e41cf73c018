package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"exifai/internal/domain"
	appErrors "exifai/internal/errors"
)

type Printer struct {
	Writer  io.Writer
	Verbose bool
}

// PrintResult writes one line per image, plus the generated fields when
// verbose.
func (p Printer) PrintResult(r domain.ProcessResult) {
	name := filepath.Base(r.Path)
	if r.Err != nil {
		fmt.Fprintf(p.Writer, "FAIL %s  %s\n", name, appErrors.UserMessage(r.Err))
		return
	}

	fields := r.Outcome.Fields()
	written := "nothing to write"
	if len(fields) > 0 {
		written = strings.Join(fields, ", ")
	}
	verb := "Wrote"
	if r.DryRun {
		verb = "Would write"
	}
	fmt.Fprintf(p.Writer, "OK   %s  [%s]  %s %s\n", name, r.Backend, verb, written)

	if !p.Verbose {
		return
	}
	if r.Generated != nil {
		for _, line := range generatedLines(*r.Generated) {
			fmt.Fprintln(p.Writer, "     "+line)
		}
	}
	for _, s := range r.Outcome.Skipped {
		fmt.Fprintln(p.Writer, "     skipped "+s)
	}
	if r.Outcome.SidecarPath != "" {
		fmt.Fprintln(p.Writer, "     sidecar "+r.Outcome.SidecarPath)
	}
	if r.BackupPath != "" {
		fmt.Fprintln(p.Writer, "     backup  "+r.BackupPath)
	}
	fmt.Fprintln(p.Writer, "     took    "+FormatDuration(r.Duration))
}

func (p Printer) PrintSummary(s domain.BatchSummary, dryRun bool) {
	fmt.Fprintln(p.Writer)
	total := len(s.Results)
	if dryRun {
		fmt.Fprintf(p.Writer, "Dry run: %d of %d images would be updated.\n", s.Written, total)
	} else {
		fmt.Fprintf(p.Writer, "Updated %d of %d images.\n", s.Written, total)
	}
	fmt.Fprintf(p.Writer, "%d succeeded, %d failed.\n", s.Succeeded, s.Failed)

	if s.Failed == 0 {
		return
	}
	fmt.Fprintln(p.Writer)
	fmt.Fprintln(p.Writer, "Failed:")
	var failed []string
	for _, r := range s.Results {
		if r.Err != nil {
			failed = append(failed, fmt.Sprintf("- %s: %s", filepath.Base(r.Path), appErrors.KindOf(r.Err)))
		}
	}
	if !p.Verbose {
		failed = truncateLines(failed)
	}
	for _, line := range failed {
		fmt.Fprintln(p.Writer, line)
	}

	if p.Verbose && len(s.Warnings) > 0 {
		fmt.Fprintln(p.Writer)
		fmt.Fprintln(p.Writer, "Warnings:")
		for _, warning := range s.Warnings {
			fmt.Fprintln(p.Writer, "- "+warning)
		}
	}
}

func (p Printer) PrintInspection(i domain.Inspection) {
	m := i.Metadata
	printField(p.Writer, "File:", i.Path)
	printField(p.Writer, "Format:", i.Kind.String())
	printField(p.Writer, "Camera:", strings.TrimSpace(m.Make+" "+m.Model))
	if i.TakenAt != nil {
		printField(p.Writer, "Taken:", i.TakenAt.Format("2006-01-02 15:04:05"))
	}
	switch {
	case m.GPS != nil:
		printField(p.Writer, "GPS:", formatCoordinate(*m.GPS))
	case m.GPSPresent:
		printField(p.Writer, "GPS:", "present (unreadable)")
	}
	printField(p.Writer, "Title:", m.Title)
	printField(p.Writer, "Description:", m.Description)
	printField(p.Writer, "Tags:", strings.Join(m.Tags, ", "))
	printField(p.Writer, "Subject:", m.Subject)
	printField(p.Writer, "Sidecar:", i.Sidecar)

	if p.Verbose && len(m.Locations) > 0 {
		fmt.Fprintln(p.Writer)
		fmt.Fprintln(p.Writer, "Locations:")
		for _, loc := range m.Locations {
			fmt.Fprintf(p.Writer, "  %-8s %-24s offset %d, %d bytes\n", loc.Section, loc.Key, loc.Offset, loc.Length)
		}
	}

	if len(i.Tags) > 0 {
		fmt.Fprintln(p.Writer)
		fmt.Fprintln(p.Writer, "EXIF tags:")
		for _, t := range i.Tags {
			fmt.Fprintf(p.Writer, "  %-8s 0x%04X %-28s %s\n", t.IFD, t.ID, t.Name, t.Value)
		}
	}
}

func (p Printer) PrintClear(path string, out domain.ClearOutcome, dryRun bool) {
	name := filepath.Base(path)
	if len(out.Removed) == 0 {
		fmt.Fprintf(p.Writer, "%s: no metadata to remove.\n", name)
		return
	}
	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	fmt.Fprintf(p.Writer, "%s: %s %s.\n", name, verb, strings.Join(out.Removed, ", "))
	if out.BackupPath != "" {
		fmt.Fprintf(p.Writer, "Backup: %s\n", out.BackupPath)
	}
}

// resultJSON is the machine-readable form of a ProcessResult.
type resultJSON struct {
	Path       string                    `json:"path"`
	Kind       domain.ContainerKind      `json:"kind"`
	Success    bool                      `json:"success"`
	Backend    string                    `json:"backend,omitempty"`
	Generated  *domain.GeneratedMetadata `json:"generated,omitempty"`
	Outcome    *domain.WriteOutcome      `json:"outcome,omitempty"`
	DryRun     bool                      `json:"dry_run"`
	DurationMS int64                     `json:"duration_ms"`
	ErrorKind  string                    `json:"error_kind,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

func toJSON(r domain.ProcessResult) resultJSON {
	out := resultJSON{
		Path:       r.Path,
		Kind:       r.Kind,
		Success:    r.Err == nil,
		Backend:    r.Backend,
		Generated:  r.Generated,
		DryRun:     r.DryRun,
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		out.ErrorKind = string(appErrors.KindOf(r.Err))
		out.Error = r.Err.Error()
		return out
	}
	outcome := r.Outcome
	out.Outcome = &outcome
	return out
}

// PrintJSON writes v as indented JSON. ProcessResult values and slices of
// them are converted to their JSON form first.
func (p Printer) PrintJSON(v any) error {
	switch t := v.(type) {
	case domain.ProcessResult:
		v = toJSON(t)
	case []domain.ProcessResult:
		out := make([]resultJSON, 0, len(t))
		for _, r := range t {
			out = append(out, toJSON(r))
		}
		v = out
	}
	enc := json.NewEncoder(p.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func generatedLines(g domain.GeneratedMetadata) []string {
	var lines []string
	if g.Title != "" {
		lines = append(lines, "title:       "+g.Title)
	}
	if g.Description != "" {
		lines = append(lines, "description: "+g.Description)
	}
	if len(g.Tags) > 0 {
		lines = append(lines, "tags:        "+strings.Join(g.Tags, ", "))
	}
	if g.GPS != nil {
		lines = append(lines, "gps:         "+formatCoordinate(*g.GPS))
	}
	if s := g.SubjectLabel(); s != "" {
		lines = append(lines, "subject:     "+s)
	}
	return lines
}

func printField(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "%-12s %s\n", label, value)
}

func formatCoordinate(c domain.Coordinate) string {
	return fmt.Sprintf("%.6f, %.6f", c.Latitude, c.Longitude)
}

func truncateLines(lines []string) []string {
	if len(lines) <= 4 {
		return lines
	}
	head := lines[:2]
	tail := lines[len(lines)-2:]
	return append(append(head[:2:2], "..."), tail...)
}

// FormatDuration rounds for display.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
