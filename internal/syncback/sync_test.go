package syncback

import (
	"context"
	"testing"
	"time"

	"github.com/mweide/shadowtwin/internal/models"
	"github.com/mweide/shadowtwin/internal/resolver"
	"github.com/mweide/shadowtwin/internal/testutil"
	"github.com/mweide/shadowtwin/internal/twin"
)

func seed(t *testing.T, store *testutil.MemStore, sourceID, sourceName string, key models.ArtifactKey, markdown string, updatedAt time.Time) {
	t.Helper()
	err := store.UpsertArtifact(context.Background(), twin.Meta{
		SourceID:   sourceID,
		SourceName: sourceName,
	}, key, models.ArtifactRecord{
		Markdown:  markdown,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}, nil, models.FilesystemSync{Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSyncPullsNewerMirroredEdit(t *testing.T) {
	store := testutil.NewMemStore("lib1")
	_, files := testutil.TestVault(t)
	ctx := context.Background()

	testutil.WriteFile(t, files, "", "lecture.pdf", []byte("%PDF"))
	testutil.WriteFile(t, files, ".lecture.pdf", "lecture.de.md", []byte("edited in vault"))

	key := models.ArtifactKey{SourceID: "lecture.pdf", Kind: models.KindTranscript, Language: "de"}
	seed(t, store, "lecture.pdf", "lecture.pdf", key, "stale", time.Now().UTC().Add(-time.Minute))

	svc := twin.NewService(twin.LibraryConfig{
		LibraryID: "lib1", PrimaryStore: twin.PrimaryMongo, MirrorToFilesystem: true,
	}, store, files, nil)
	s := New(svc, files, resolver.New(files), nil)

	rep, err := s.SyncSource(ctx, "lecture.pdf", "")
	if err != nil {
		t.Fatalf("SyncSource: %v", err)
	}
	if rep.Synced != 1 || rep.Skipped != 0 || rep.Failed != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Items[0].Outcome != OutcomeSynced {
		t.Errorf("outcome = %q", rep.Items[0].Outcome)
	}

	rec, err := svc.GetArtifact(ctx, "lecture.pdf", key)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Markdown != "edited in vault" {
		t.Errorf("markdown = %q", rec.Markdown)
	}

	doc, _ := svc.GetDocument(ctx, "lecture.pdf")
	if doc.FilesystemSync.LastSyncedAt == nil {
		t.Error("lastSyncedAt not stamped")
	}
}

func TestSyncSkipsWithinTolerance(t *testing.T) {
	store := testutil.NewMemStore("lib1")
	_, files := testutil.TestVault(t)

	testutil.WriteFile(t, files, "", "lecture.pdf", []byte("%PDF"))
	testutil.WriteFile(t, files, ".lecture.pdf", "lecture.de.md", []byte("same era"))

	key := models.ArtifactKey{SourceID: "lecture.pdf", Kind: models.KindTranscript, Language: "de"}
	// Record written right around the mirror file's timestamp.
	seed(t, store, "lecture.pdf", "lecture.pdf", key, "db copy", time.Now().UTC())

	svc := twin.NewService(twin.LibraryConfig{
		LibraryID: "lib1", PrimaryStore: twin.PrimaryMongo, MirrorToFilesystem: true,
	}, store, files, nil)
	s := New(svc, files, resolver.New(files), nil)

	rep, err := s.SyncSource(context.Background(), "lecture.pdf", "")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Synced != 0 || rep.Skipped != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Items[0].Outcome != OutcomeAlreadySynced {
		t.Errorf("outcome = %q", rep.Items[0].Outcome)
	}

	rec, _ := svc.GetArtifact(context.Background(), "lecture.pdf", key)
	if rec.Markdown != "db copy" {
		t.Errorf("markdown overwritten: %q", rec.Markdown)
	}
}

func TestSyncMissingMirrorIsSkipped(t *testing.T) {
	store := testutil.NewMemStore("lib1")
	_, files := testutil.TestVault(t)

	testutil.WriteFile(t, files, "", "lecture.pdf", []byte("%PDF"))
	key := models.ArtifactKey{SourceID: "lecture.pdf", Kind: models.KindTranscript, Language: "de"}
	seed(t, store, "lecture.pdf", "lecture.pdf", key, "db only", time.Now().UTC().Add(-time.Minute))

	svc := twin.NewService(twin.LibraryConfig{
		LibraryID: "lib1", PrimaryStore: twin.PrimaryMongo, MirrorToFilesystem: true,
	}, store, files, nil)
	s := New(svc, files, resolver.New(files), nil)

	rep, err := s.SyncSource(context.Background(), "lecture.pdf", "")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Skipped != 1 || rep.Items[0].Outcome != OutcomeNotFound {
		t.Fatalf("report = %+v", rep)
	}
}

func TestSyncNoopWhenMirrorNotExpected(t *testing.T) {
	store := testutil.NewMemStore("lib1")
	_, files := testutil.TestVault(t)

	key := models.ArtifactKey{SourceID: "src", Kind: models.KindTranscript, Language: "de"}
	seed(t, store, "src", "src.pdf", key, "db", time.Now().UTC())

	svc := twin.NewService(twin.LibraryConfig{
		LibraryID: "lib1", PrimaryStore: twin.PrimaryMongo,
	}, store, files, nil)
	s := New(svc, files, resolver.New(files), nil)

	rep, err := s.SyncSource(context.Background(), "src", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Items) != 0 || rep.Synced != 0 {
		t.Fatalf("report = %+v, want empty", rep)
	}
}
