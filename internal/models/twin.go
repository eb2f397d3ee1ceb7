package models

import "time"

// FragmentKind classifies a binary fragment by its media type.
type FragmentKind string

const (
	FragmentImage    FragmentKind = "image"
	FragmentAudio    FragmentKind = "audio"
	FragmentVideo    FragmentKind = "video"
	FragmentMarkdown FragmentKind = "markdown"
	FragmentBinary   FragmentKind = "binary"
)

// BinaryFragment references binary content attached to a twin. It points at
// object storage by URL (preferred, content-addressed) or at the file store by
// id when no object-storage service is configured. Names are unique within one
// twin document; a re-write replaces the fragment with the same name.
type BinaryFragment struct {
	Name        string       `bson:"name" json:"name"`
	Kind        FragmentKind `bson:"kind" json:"kind"`
	URL         string       `bson:"url,omitempty" json:"url,omitempty"`
	LocalFileID string       `bson:"localFileId,omitempty" json:"localFileId,omitempty"`
	ContentHash string       `bson:"contentHash,omitempty" json:"contentHash,omitempty"`
	MimeType    string       `bson:"mimeType,omitempty" json:"mimeType,omitempty"`
	SizeBytes   int64        `bson:"sizeBytes,omitempty" json:"sizeBytes,omitempty"`
	CreatedAt   time.Time    `bson:"createdAt" json:"createdAt"`
}

// Owner identifies the user a twin document belongs to.
type Owner struct {
	UserID string `bson:"userId,omitempty" json:"userId,omitempty"`
	Email  string `bson:"email,omitempty" json:"email,omitempty"`
}

// FilesystemSync records the mirroring state of a twin document.
type FilesystemSync struct {
	Enabled        bool       `bson:"enabled" json:"enabled"`
	MirrorFolderID string     `bson:"mirrorFolderId,omitempty" json:"mirrorFolderId,omitempty"`
	LastSyncedAt   *time.Time `bson:"lastSyncedAt,omitempty" json:"lastSyncedAt,omitempty"`
}

// Artifacts holds every derived artifact of one source, keyed by language for
// transcripts and by template name then language for transformations.
type Artifacts struct {
	Transcript     map[string]ArtifactRecord            `bson:"transcript,omitempty" json:"transcript,omitempty"`
	Transformation map[string]map[string]ArtifactRecord `bson:"transformation,omitempty" json:"transformation,omitempty"`
}

// Lookup returns the record addressed by key, if present.
func (a Artifacts) Lookup(key ArtifactKey) (ArtifactRecord, bool) {
	switch key.Kind {
	case KindTranscript:
		rec, ok := a.Transcript[key.Language]
		return rec, ok
	case KindTransformation:
		rec, ok := a.Transformation[key.TemplateName][key.Language]
		return rec, ok
	}
	return ArtifactRecord{}, false
}

// Keys returns the key of every stored artifact for the given source id.
// Order is unspecified.
func (a Artifacts) Keys(sourceID string) []ArtifactKey {
	var out []ArtifactKey
	for lang := range a.Transcript {
		out = append(out, ArtifactKey{SourceID: sourceID, Kind: KindTranscript, Language: lang})
	}
	for tmpl, langs := range a.Transformation {
		for lang := range langs {
			out = append(out, ArtifactKey{SourceID: sourceID, Kind: KindTransformation, Language: lang, TemplateName: tmpl})
		}
	}
	return out
}

// ShadowTwinDocument is the database aggregate, one per (libraryId, sourceId).
type ShadowTwinDocument struct {
	LibraryID       string           `bson:"libraryId" json:"libraryId"`
	SourceID        string           `bson:"sourceId" json:"sourceId"`
	SourceName      string           `bson:"sourceName" json:"sourceName"`
	ParentID        string           `bson:"parentId,omitempty" json:"parentId,omitempty"`
	Owner           Owner            `bson:"owner,omitempty" json:"owner,omitempty"`
	Artifacts       Artifacts        `bson:"artifacts" json:"artifacts"`
	BinaryFragments []BinaryFragment `bson:"binaryFragments" json:"binaryFragments"`
	FilesystemSync  FilesystemSync   `bson:"filesystemSync" json:"filesystemSync"`
	CreatedAt       time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time        `bson:"updatedAt" json:"updatedAt"`
}

// MergeFragments replaces fragments sharing a name with the incoming ones and
// appends the rest, preserving the order of first appearance.
func MergeFragments(existing, incoming []BinaryFragment) []BinaryFragment {
	if len(incoming) == 0 {
		return existing
	}
	byName := make(map[string]int, len(incoming))
	for i, f := range incoming {
		byName[f.Name] = i
	}
	out := make([]BinaryFragment, 0, len(existing)+len(incoming))
	used := make(map[string]bool, len(incoming))
	for _, f := range existing {
		if i, ok := byName[f.Name]; ok {
			out = append(out, incoming[i])
			used[f.Name] = true
			continue
		}
		out = append(out, f)
	}
	for _, f := range incoming {
		if !used[f.Name] {
			out = append(out, f)
		}
	}
	return out
}
