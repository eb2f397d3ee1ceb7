// Package naming encodes and decodes artifact identities to and from the
// file-store naming convention:
//
//	<sourceBaseName>[.<templateName>].<targetLanguage>.md
//
// located either in a companion folder named after the full source file name
// or directly as a sibling of the source file. All functions are pure.
package naming

import (
	"path"
	"strings"

	"github.com/mweide/shadowtwin/internal/models"
)

const mdExt = ".md"

// Decoded is the identity carried by an artifact file name.
type Decoded struct {
	Kind         models.ArtifactKind
	Language     string
	TemplateName string
}

// BaseName returns the source file name without its extension.
// "lecture.pdf" → "lecture".
func BaseName(sourceName string) string {
	ext := path.Ext(sourceName)
	return strings.TrimSuffix(sourceName, ext)
}

// CompanionFolderName returns the hidden-folder name holding a source's
// mirrored artifacts. The transform keeps the full source file name so two
// sources differing only by extension get distinct folders.
func CompanionFolderName(sourceName string) string {
	return "." + sourceName
}

// ArtifactFileName encodes key into a file name per the naming convention.
// The key is assumed valid (see models.ArtifactKey.Validate).
func ArtifactFileName(sourceName string, key models.ArtifactKey) string {
	base := BaseName(sourceName)
	if key.Kind == models.KindTransformation {
		return base + "." + key.TemplateName + "." + key.Language + mdExt
	}
	return base + "." + key.Language + mdExt
}

// Decode is the inverse of ArtifactFileName: given a candidate file name and
// the known source file name it recovers the artifact identity. The second
// return value is false when fileName does not follow the convention for this
// source.
//
// Decoding is permissive about the raw kind: "<base>.raw[.<lang>].md" decodes
// to KindRaw so callers can recognize and skip it, but raw artifacts are
// outside resolution and migration scope.
func Decode(fileName, sourceName string) (Decoded, bool) {
	if !strings.HasSuffix(fileName, mdExt) {
		return Decoded{}, false
	}
	base := BaseName(sourceName)
	if base == "" {
		return Decoded{}, false
	}
	// Strip the extension before the prefix so a file like "lecture.de.md"
	// checked against source "lecture.de.md" does not self-decode.
	stem := strings.TrimSuffix(fileName, mdExt)
	prefix := base + "."
	if !strings.HasPrefix(stem, prefix) {
		return Decoded{}, false
	}

	middle := strings.TrimPrefix(stem, prefix)
	segs := strings.Split(middle, ".")
	for _, s := range segs {
		if s == "" || strings.ContainsAny(s, " \t") {
			return Decoded{}, false
		}
	}

	switch len(segs) {
	case 1:
		if segs[0] == string(models.KindRaw) {
			return Decoded{Kind: models.KindRaw}, true
		}
		return Decoded{Kind: models.KindTranscript, Language: segs[0]}, true
	case 2:
		if segs[0] == string(models.KindRaw) {
			return Decoded{Kind: models.KindRaw, Language: segs[1]}, true
		}
		return Decoded{
			Kind:         models.KindTransformation,
			TemplateName: segs[0],
			Language:     segs[1],
		}, true
	default:
		return Decoded{}, false
	}
}

// Key builds the full ArtifactKey for a decoded entry of the given source.
func (d Decoded) Key(sourceID string) models.ArtifactKey {
	return models.ArtifactKey{
		SourceID:     sourceID,
		Kind:         d.Kind,
		Language:     d.Language,
		TemplateName: d.TemplateName,
	}
}

// Matches reports whether the decoded identity satisfies the requested kind,
// language, and template. Kind never falls back: a transformation request is
// not satisfied by a transcript.
func (d Decoded) Matches(kind models.ArtifactKind, language, templateName string) bool {
	if d.Kind != kind {
		return false
	}
	if d.Language != language {
		return false
	}
	if kind == models.KindTransformation && d.TemplateName != templateName {
		return false
	}
	return true
}
