// Package models defines the domain types for the shadow-twin engine.
package models

import (
	"fmt"
	"strings"
	"time"
)

// ArtifactKind identifies what a derived artifact is.
type ArtifactKind string

const (
	// KindTranscript is the plain transcript of a source document.
	KindTranscript ArtifactKind = "transcript"
	// KindTransformation is a template-driven rewrite of a transcript.
	KindTransformation ArtifactKind = "transformation"
	// KindRaw is a passthrough capture. It is recognized by the naming codec
	// but excluded from resolution and migration.
	KindRaw ArtifactKind = "raw"
)

// ArtifactKey addresses one artifact within a shadow-twin document.
// TemplateName is required iff Kind is KindTransformation.
type ArtifactKey struct {
	SourceID     string
	Kind         ArtifactKind
	Language     string
	TemplateName string
}

// Validate checks the kind/template pairing and required fields.
func (k ArtifactKey) Validate() error {
	if k.SourceID == "" {
		return fmt.Errorf("artifact key: source id is required")
	}
	if strings.TrimSpace(k.Language) == "" {
		return fmt.Errorf("artifact key: language is required")
	}
	switch k.Kind {
	case KindTranscript:
		if k.TemplateName != "" {
			return fmt.Errorf("artifact key: transcript must not carry a template (got %q)", k.TemplateName)
		}
	case KindTransformation:
		if k.TemplateName == "" {
			return fmt.Errorf("artifact key: transformation requires a template name")
		}
	default:
		return fmt.Errorf("artifact key: unsupported kind %q", k.Kind)
	}
	return nil
}

// String renders the key for error messages and logs.
func (k ArtifactKey) String() string {
	if k.Kind == KindTransformation {
		return fmt.Sprintf("%s/%s[%s]/%s", k.SourceID, k.Kind, k.TemplateName, k.Language)
	}
	return fmt.Sprintf("%s/%s/%s", k.SourceID, k.Kind, k.Language)
}

// ArtifactRecord is the stored content of a single artifact.
type ArtifactRecord struct {
	Markdown    string      `bson:"markdown" json:"markdown"`
	Frontmatter Frontmatter `bson:"frontmatter,omitempty" json:"frontmatter,omitempty"`
	CreatedAt   time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time   `bson:"updatedAt" json:"updatedAt"`
}

// Frontmatter is the typed header of an artifact's markdown. Known fields are
// promoted; everything else lands in Extra so no key is lost on round-trip.
type Frontmatter struct {
	Title          string         `bson:"title,omitempty" json:"title,omitempty"`
	DetailViewType string         `bson:"detailViewType,omitempty" json:"detailViewType,omitempty"`
	Author         string         `bson:"author,omitempty" json:"author,omitempty"`
	Tags           []string       `bson:"tags,omitempty" json:"tags,omitempty"`
	Extra          map[string]any `bson:"extra,omitempty" json:"extra,omitempty"`
}

// IsZero reports whether no frontmatter key was present at all.
func (f Frontmatter) IsZero() bool {
	return f.Title == "" && f.DetailViewType == "" && f.Author == "" &&
		len(f.Tags) == 0 && len(f.Extra) == 0
}
