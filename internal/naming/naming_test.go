package naming

import (
	"testing"

	"github.com/mweide/shadowtwin/internal/models"
)

func TestArtifactFileNameTranscript(t *testing.T) {
	got := ArtifactFileName("lecture.pdf", models.ArtifactKey{Kind: models.KindTranscript, Language: "de"})
	if got != "lecture.de.md" {
		t.Errorf("name = %q, want %q", got, "lecture.de.md")
	}
}

func TestArtifactFileNameTransformation(t *testing.T) {
	got := ArtifactFileName("lecture.pdf", models.ArtifactKey{
		Kind: models.KindTransformation, Language: "en", TemplateName: "summary",
	})
	if got != "lecture.summary.en.md" {
		t.Errorf("name = %q, want %q", got, "lecture.summary.en.md")
	}
}

func TestCompanionFolderName(t *testing.T) {
	if got := CompanionFolderName("lecture.pdf"); got != ".lecture.pdf" {
		t.Errorf("folder = %q, want %q", got, ".lecture.pdf")
	}
}

func TestDecodeTranscript(t *testing.T) {
	d, ok := Decode("lecture.de.md", "lecture.pdf")
	if !ok {
		t.Fatal("expected decode to succeed")
	}
	if d.Kind != models.KindTranscript || d.Language != "de" {
		t.Errorf("decoded = %+v", d)
	}
}

func TestDecodeTransformation(t *testing.T) {
	d, ok := Decode("lecture.summary.en.md", "lecture.pdf")
	if !ok {
		t.Fatal("expected decode to succeed")
	}
	if d.Kind != models.KindTransformation || d.TemplateName != "summary" || d.Language != "en" {
		t.Errorf("decoded = %+v", d)
	}
}

func TestDecodeRaw(t *testing.T) {
	d, ok := Decode("lecture.raw.md", "lecture.pdf")
	if !ok {
		t.Fatal("expected decode to succeed")
	}
	if d.Kind != models.KindRaw {
		t.Errorf("kind = %q, want raw", d.Kind)
	}
}

func TestDecodeRejectsSelf(t *testing.T) {
	// A markdown source must never decode against itself.
	if _, ok := Decode("lecture.de.md", "lecture.de.md"); ok {
		t.Error("source file decoded as its own artifact")
	}
}

func TestDecodeRejectsForeignBase(t *testing.T) {
	if _, ok := Decode("other.de.md", "lecture.pdf"); ok {
		t.Error("foreign base decoded")
	}
}

func TestDecodeRejectsTooManySegments(t *testing.T) {
	if _, ok := Decode("lecture.a.b.c.md", "lecture.pdf"); ok {
		t.Error("three-segment name decoded")
	}
}

func TestDecodeRejectsEmptySegments(t *testing.T) {
	if _, ok := Decode("lecture..md", "lecture.pdf"); ok {
		t.Error("empty segment decoded")
	}
	if _, ok := Decode("lecture. de.md", "lecture.pdf"); ok {
		t.Error("whitespace segment decoded")
	}
}

func TestDecodeRequiresMarkdownExtension(t *testing.T) {
	if _, ok := Decode("lecture.de.txt", "lecture.pdf"); ok {
		t.Error("non-markdown file decoded")
	}
}

func TestMatchesNeverCrossesKind(t *testing.T) {
	d := Decoded{Kind: models.KindTranscript, Language: "de"}
	if d.Matches(models.KindTransformation, "de", "summary") {
		t.Error("transcript satisfied a transformation request")
	}

	d = Decoded{Kind: models.KindTransformation, Language: "de", TemplateName: "summary"}
	if d.Matches(models.KindTranscript, "de", "") {
		t.Error("transformation satisfied a transcript request")
	}
	if d.Matches(models.KindTransformation, "de", "quiz") {
		t.Error("template mismatch accepted")
	}
	if !d.Matches(models.KindTransformation, "de", "summary") {
		t.Error("exact match rejected")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	keys := []models.ArtifactKey{
		{Kind: models.KindTranscript, Language: "de"},
		{Kind: models.KindTranscript, Language: "en"},
		{Kind: models.KindTransformation, Language: "fr", TemplateName: "flashcards"},
	}
	for _, key := range keys {
		name := ArtifactFileName("talk.mp4", key)
		d, ok := Decode(name, "talk.mp4")
		if !ok {
			t.Fatalf("decode %q failed", name)
		}
		if d.Kind != key.Kind || d.Language != key.Language || d.TemplateName != key.TemplateName {
			t.Errorf("round trip %q: got %+v, want %+v", name, d, key)
		}
	}
}
