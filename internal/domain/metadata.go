package domain

import (
	"strings"
	"time"
)

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location records where a metadata item lives inside its container.
// Section is e.g. "IFD0", "ExifIFD", "GPSIFD", "APP1", "iTXt", "RIFF".
type Location struct {
	Section string `json:"section"`
	Key     string `json:"key"`
	Offset  int64  `json:"offset"`
	Length  int64  `json:"length"`
}

// ExistingMetadata is a read-only projection of what a container already holds.
// GPSPresent is set when GPS data exists even if it could not be decoded into
// GPS.
type ExistingMetadata struct {
	Make        string      `json:"make,omitempty"`
	Model       string      `json:"model,omitempty"`
	GPS         *Coordinate `json:"gps,omitempty"`
	GPSPresent  bool        `json:"gps_present,omitempty"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Subject     string      `json:"subject,omitempty"`
	Locations   []Location  `json:"locations,omitempty"`
}

// HasGPS reports any existing GPS data, decoded or not.
func (m ExistingMetadata) HasGPS() bool {
	return m.GPS != nil || m.GPSPresent
}

func (m ExistingMetadata) IsEmpty() bool {
	return m.Make == "" && m.Model == "" && !m.HasGPS() && m.Title == "" &&
		m.Description == "" && len(m.Tags) == 0 && m.Subject == "" && len(m.Locations) == 0
}

// Merge fills fields that are empty in m from other. Locations are appended.
func (m ExistingMetadata) Merge(other ExistingMetadata) ExistingMetadata {
	if m.Make == "" {
		m.Make = other.Make
	}
	if m.Model == "" {
		m.Model = other.Model
	}
	if m.GPS == nil {
		m.GPS = other.GPS
	}
	m.GPSPresent = m.GPSPresent || other.GPSPresent
	if m.Title == "" {
		m.Title = other.Title
	}
	if m.Description == "" {
		m.Description = other.Description
	}
	if len(m.Tags) == 0 {
		m.Tags = other.Tags
	}
	if m.Subject == "" {
		m.Subject = other.Subject
	}
	m.Locations = append(m.Locations, other.Locations...)
	return m
}

// RawTag is one EXIF tag as decoded for display, known to the codec or not.
type RawTag struct {
	IFD   string `json:"ifd"`
	ID    uint16 `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Inspection is the read-only report behind `show`.
type Inspection struct {
	Path     string           `json:"path"`
	Kind     ContainerKind    `json:"kind"`
	Metadata ExistingMetadata `json:"metadata"`
	TakenAt  *time.Time       `json:"taken_at,omitempty"`
	Sidecar  string           `json:"sidecar,omitempty"`
	Tags     []RawTag         `json:"tags,omitempty"`
}

// GeneratedMetadata is what a backend produced for an image.
type GeneratedMetadata struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	GPS         *Coordinate `json:"gps,omitempty"`
	Subject     []string    `json:"subject,omitempty"`
}

// IsEmpty reports an effectively empty result: no title and no tags.
func (g GeneratedMetadata) IsEmpty() bool {
	return strings.TrimSpace(g.Title) == "" && len(CleanList(g.Tags)) == 0
}

// SubjectLabel joins subject entries the way XPSubject stores them.
func (g GeneratedMetadata) SubjectLabel() string {
	return strings.Join(CleanList(g.Subject), "; ")
}

// CleanList trims entries, drops empties and duplicates, and keeps order.
func CleanList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// SplitList parses a "; " or "," separated keyword string.
func SplitList(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	sep := ";"
	if !strings.Contains(value, ";") {
		sep = ","
	}
	return CleanList(strings.Split(value, sep))
}
