package twin_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mweide/shadowtwin/internal/apperr"
	"github.com/mweide/shadowtwin/internal/models"
	"github.com/mweide/shadowtwin/internal/testutil"
	"github.com/mweide/shadowtwin/internal/twin"
)

func mongoOnlyService(store twin.Store) *twin.Service {
	return twin.NewService(twin.LibraryConfig{
		LibraryID:    "lib1",
		PrimaryStore: twin.PrimaryMongo,
	}, store, nil, nil)
}

func transcriptKey(lang string) models.ArtifactKey {
	return models.ArtifactKey{Kind: models.KindTranscript, Language: lang}
}

func TestUpsertRoundTripPreservesContent(t *testing.T) {
	store := testutil.NewMemStore("lib1")
	svc := mongoOnlyService(store)
	ctx := context.Background()

	markdown := "---\ntitle: Weird  Spacing\n---\n# Body\n\n\ttabs\n  trailing  \n"
	_, err := svc.UpsertArtifact(ctx, twin.UpsertInput{
		SourceID:   "lecture.pdf",
		SourceName: "lecture.pdf",
		Key:        transcriptKey("de"),
		Markdown:   markdown,
	})
	if err != nil {
		t.Fatalf("UpsertArtifact: %v", err)
	}

	rec, err := svc.GetArtifact(ctx, "lecture.pdf", models.ArtifactKey{
		SourceID: "lecture.pdf", Kind: models.KindTranscript, Language: "de",
	})
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if rec.Markdown != markdown {
		t.Errorf("markdown altered:\ngot  %q\nwant %q", rec.Markdown, markdown)
	}
	if rec.Frontmatter.Title != "Weird  Spacing" {
		t.Errorf("frontmatter title = %q", rec.Frontmatter.Title)
	}
}

func TestUpsertRejectsEmptyContentWithoutMutation(t *testing.T) {
	store := testutil.NewMemStore("lib1")
	svc := mongoOnlyService(store)
	ctx := context.Background()

	for _, markdown := range []string{"", "   \n\t  "} {
		_, err := svc.UpsertArtifact(ctx, twin.UpsertInput{
			SourceID:   "src",
			SourceName: "src.pdf",
			Key:        transcriptKey("de"),
			Markdown:   markdown,
		})
		var empty *twin.EmptyContentError
		if !errors.As(err, &empty) {
			t.Fatalf("err = %v, want EmptyContentError", err)
		}
	}
	if len(store.Docs) != 0 {
		t.Errorf("store mutated by rejected write: %d docs", len(store.Docs))
	}
}

func TestEmptyTransformationErrorNamesArtifact(t *testing.T) {
	svc := mongoOnlyService(testutil.NewMemStore("lib1"))

	_, err := svc.UpsertArtifact(context.Background(), twin.UpsertInput{
		SourceID:   "src",
		SourceName: "src.pdf",
		Key: models.ArtifactKey{
			Kind: models.KindTransformation, Language: "en", TemplateName: "summary",
		},
		Markdown: "  ",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, part := range []string{"transformation", "en", "summary", "src"} {
		if !strings.Contains(msg, part) {
			t.Errorf("error %q missing %q", msg, part)
		}
	}
}

func TestUpsertValidatesKey(t *testing.T) {
	svc := mongoOnlyService(testutil.NewMemStore("lib1"))

	// Transcript with a template name is malformed.
	_, err := svc.UpsertArtifact(context.Background(), twin.UpsertInput{
		SourceID:   "src",
		SourceName: "src.pdf",
		Key: models.ArtifactKey{
			Kind: models.KindTranscript, Language: "de", TemplateName: "summary",
		},
		Markdown: "content",
	})
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestUpsertPreservesRecordCreatedAt(t *testing.T) {
	store := testutil.NewMemStore("lib1")
	svc := mongoOnlyService(store)
	ctx := context.Background()

	first, err := svc.UpsertArtifact(ctx, twin.UpsertInput{
		SourceID: "src", SourceName: "src.pdf", Key: transcriptKey("de"), Markdown: "v1",
	})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := svc.UpsertArtifact(ctx, twin.UpsertInput{
		SourceID: "src", SourceName: "src.pdf", Key: transcriptKey("de"), Markdown: "v2",
	}); err != nil {
		t.Fatal(err)
	}

	rec, err := svc.GetArtifact(ctx, "src", models.ArtifactKey{
		SourceID: "src", Kind: models.KindTranscript, Language: "de",
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Markdown != "v2" {
		t.Errorf("markdown = %q", rec.Markdown)
	}
	if !rec.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("createdAt changed: %v vs %v", rec.CreatedAt, first.CreatedAt)
	}
	if !rec.UpdatedAt.After(rec.CreatedAt) {
		t.Errorf("updatedAt not advanced: %v", rec.UpdatedAt)
	}
}

func TestUpsertMirrorsToCompanionFolder(t *testing.T) {
	store := testutil.NewMemStore("lib1")
	_, files := testutil.TestVault(t)
	svc := twin.NewService(twin.LibraryConfig{
		LibraryID:          "lib1",
		PrimaryStore:       twin.PrimaryMongo,
		MirrorToFilesystem: true,
	}, store, files, nil)
	ctx := context.Background()

	src := testutil.WriteFile(t, files, "course", "lecture.pdf", []byte("%PDF"))
	if _, err := svc.UpsertArtifact(ctx, twin.UpsertInput{
		SourceID:   src.ID,
		SourceName: "lecture.pdf",
		ParentID:   "course",
		Key:        transcriptKey("de"),
		Markdown:   "Hallo",
	}); err != nil {
		t.Fatal(err)
	}

	data, err := files.Read(ctx, "course/.lecture.pdf/lecture.de.md")
	if err != nil {
		t.Fatalf("mirrored file missing: %v", err)
	}
	if string(data) != "Hallo" {
		t.Errorf("mirrored content = %q", data)
	}

	doc, err := svc.GetDocument(ctx, src.ID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.FilesystemSync.MirrorFolderID != "course/.lecture.pdf" {
		t.Errorf("mirror folder = %q", doc.FilesystemSync.MirrorFolderID)
	}
	if !doc.FilesystemSync.Enabled {
		t.Error("filesystemSync not enabled")
	}
}

func TestMirrorFailureDoesNotFailWrite(t *testing.T) {
	store := testutil.NewMemStore("lib1")
	// Mirroring requested but no file store available.
	svc := twin.NewService(twin.LibraryConfig{
		LibraryID:          "lib1",
		PrimaryStore:       twin.PrimaryMongo,
		MirrorToFilesystem: true,
	}, store, nil, nil)

	if _, err := svc.UpsertArtifact(context.Background(), twin.UpsertInput{
		SourceID: "src", SourceName: "src.pdf", Key: transcriptKey("de"), Markdown: "x",
	}); err != nil {
		t.Fatalf("write failed on mirror degradation: %v", err)
	}
	if _, ok := store.Docs["src"]; !ok {
		t.Error("database record missing")
	}
}

func TestUpdateArtifactMarkdownRequiresExistingPath(t *testing.T) {
	svc := mongoOnlyService(testutil.NewMemStore("lib1"))

	err := svc.UpdateArtifactMarkdown(context.Background(), "ghost", models.ArtifactKey{
		Kind: models.KindTranscript, Language: "de",
	}, "new content")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestGetArtifactNotFound(t *testing.T) {
	store := testutil.NewMemStore("lib1")
	svc := mongoOnlyService(store)
	ctx := context.Background()

	if _, err := svc.GetArtifact(ctx, "ghost", models.ArtifactKey{
		SourceID: "ghost", Kind: models.KindTranscript, Language: "de",
	}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}

	if _, err := svc.UpsertArtifact(ctx, twin.UpsertInput{
		SourceID: "src", SourceName: "src.pdf", Key: transcriptKey("de"), Markdown: "x",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetArtifact(ctx, "src", models.ArtifactKey{
		SourceID: "src", Kind: models.KindTranscript, Language: "en",
	}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want not found for absent language", err)
	}
}
