package domain

import "strings"

// FieldSelection is the caller's choice of fields and overwrite policy.
type FieldSelection struct {
	WriteTitle        bool
	WriteDescription  bool
	WriteTags         bool
	WriteGPS          bool
	WriteSubject      bool
	OverwriteExisting bool
}

// AllFields selects every field without overwriting existing values.
func AllFields() FieldSelection {
	return FieldSelection{
		WriteTitle:       true,
		WriteDescription: true,
		WriteTags:        true,
		WriteGPS:         true,
		WriteSubject:     true,
	}
}

// FieldPlan lists the fields eligible to be written for one image.
type FieldPlan struct {
	Title       bool
	Description bool
	Tags        bool
	Subject     bool
	GPS         bool
	Skipped     []string
}

func (p FieldPlan) Any() bool {
	return p.Title || p.Description || p.Tags || p.Subject || p.GPS
}

// PlanFields applies the eligibility rule: requested, non-empty, and either
// overwrite is allowed or nothing is present yet. GPS eligibility comes only
// from DecideGPS.
func PlanFields(existing ExistingMetadata, generated GeneratedMetadata, sel FieldSelection) FieldPlan {
	var plan FieldPlan

	eligible := func(requested bool, value string, present bool, name string) bool {
		if !requested || strings.TrimSpace(value) == "" {
			return false
		}
		if present && !sel.OverwriteExisting {
			plan.Skipped = append(plan.Skipped, name+" (existing)")
			return false
		}
		return true
	}

	plan.Title = eligible(sel.WriteTitle, generated.Title, existing.Title != "", "title")
	plan.Description = eligible(sel.WriteDescription, generated.Description, existing.Description != "", "description")
	plan.Tags = eligible(sel.WriteTags, strings.Join(CleanList(generated.Tags), ""), len(existing.Tags) > 0, "tags")
	plan.Subject = eligible(sel.WriteSubject, generated.SubjectLabel(), existing.Subject != "", "subject")

	if sel.WriteGPS && generated.GPS != nil {
		switch {
		case existing.HasGPS():
			plan.Skipped = append(plan.Skipped, "gps (existing coordinates)")
		case DecideGPS(false, generated.GPS) == nil:
			plan.Skipped = append(plan.Skipped, "gps (invalid coordinates)")
		default:
			plan.GPS = true
		}
	}
	return plan
}

// WriteRequest is the input every container write strategy receives.
type WriteRequest struct {
	Path      string
	Kind      ContainerKind
	Existing  ExistingMetadata
	Generated GeneratedMetadata
	Plan      FieldPlan
	Overwrite bool
	DryRun    bool
	// Backup snapshots the original before the first byte is replaced.
	Backup bool
}

// WriteOutcome reports what was emitted. A field is true only when its bytes
// were (or, in a dry run, would have been) written.
type WriteOutcome struct {
	Title       bool     `json:"title"`
	Description bool     `json:"description"`
	Tags        bool     `json:"tags"`
	Subject     bool     `json:"subject"`
	GPS         bool     `json:"gps"`
	SidecarPath string   `json:"sidecar_path,omitempty"`
	BackupPath  string   `json:"backup_path,omitempty"`
	Skipped     []string `json:"skipped,omitempty"`
}

func (o WriteOutcome) Any() bool {
	return o.Title || o.Description || o.Tags || o.Subject || o.GPS
}

// Fields lists the written field names in a stable order.
func (o WriteOutcome) Fields() []string {
	var out []string
	if o.Title {
		out = append(out, "title")
	}
	if o.Description {
		out = append(out, "description")
	}
	if o.Tags {
		out = append(out, "tags")
	}
	if o.Subject {
		out = append(out, "subject")
	}
	if o.GPS {
		out = append(out, "gps")
	}
	return out
}

// ClearRequest asks a strategy to drop every tracked metadata segment.
type ClearRequest struct {
	Path   string
	Kind   ContainerKind
	DryRun bool
	Backup bool
}

// ClearOutcome lists the removed segments, chunks or files.
type ClearOutcome struct {
	Removed    []string `json:"removed"`
	BackupPath string   `json:"backup_path,omitempty"`
}
