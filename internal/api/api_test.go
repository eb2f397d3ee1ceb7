package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mweide/shadowtwin/internal/fragments"
	"github.com/mweide/shadowtwin/internal/freshness"
	"github.com/mweide/shadowtwin/internal/migrate"
	"github.com/mweide/shadowtwin/internal/models"
	"github.com/mweide/shadowtwin/internal/resolver"
	"github.com/mweide/shadowtwin/internal/storage"
	"github.com/mweide/shadowtwin/internal/syncback"
	"github.com/mweide/shadowtwin/internal/testutil"
	"github.com/mweide/shadowtwin/internal/twin"
)

// testEnv wires the full handler stack over in-memory fakes and a temp vault.
func testEnv(t *testing.T, authToken string) (http.Handler, *testutil.MemStore, storage.Provider) {
	t.Helper()

	store := testutil.NewMemStore("lib1")
	runs := testutil.NewMemRunStore()
	_, files := testutil.TestVault(t)

	cfg := twin.LibraryConfig{
		LibraryID:          "lib1",
		PrimaryStore:       twin.PrimaryMongo,
		MirrorToFilesystem: true,
	}
	svc := twin.NewService(cfg, store, files, nil)
	res := resolver.New(files)
	checker := freshness.NewChecker(cfg, store, files, res)
	syncer := syncback.New(svc, files, res, nil)
	uploader := fragments.New(nil, nil)
	engine := migrate.New(cfg, files, svc, uploader, runs, nil, 1, nil)

	h := NewHandler(svc, checker, syncer, engine, runs, uploader, files, nil)
	return NewRouter(h, authToken != "", authToken, nil), store, files
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUpsertAndGetTwin(t *testing.T) {
	router, _, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/twins/lecture.pdf/artifacts", UpsertArtifactRequest{
		SourceName: "lecture.pdf",
		Language:   "de",
		Markdown:   "# Hallo",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ArtifactResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Kind != models.KindTranscript || resp.Record.Markdown != "# Hallo" {
		t.Errorf("resp = %+v", resp)
	}

	w = doJSON(t, router, http.MethodGet, "/twins/lecture.pdf", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var doc TwinDocument
	_ = json.Unmarshal(w.Body.Bytes(), &doc)
	if doc.SourceID != "lecture.pdf" || doc.LibraryID != "lib1" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestUpsertTemplateImpliesTransformation(t *testing.T) {
	router, _, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/twins/src/artifacts", UpsertArtifactRequest{
		SourceName:   "src.pdf",
		Language:     "en",
		TemplateName: "summary",
		Markdown:     "content",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ArtifactResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Kind != models.KindTransformation || resp.TemplateName != "summary" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestUpsertRejectsEmptyMarkdown(t *testing.T) {
	router, store, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/twins/src/artifacts", UpsertArtifactRequest{
		SourceName: "src.pdf",
		Language:   "de",
		Markdown:   "   ",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if len(store.Docs) != 0 {
		t.Error("rejected write mutated store")
	}
}

func TestGetTwinNotFound(t *testing.T) {
	router, _, _ := testEnv(t, "")
	w := doJSON(t, router, http.MethodGet, "/twins/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestDeleteTwin(t *testing.T) {
	router, _, _ := testEnv(t, "")

	doJSON(t, router, http.MethodPost, "/twins/src/artifacts", UpsertArtifactRequest{
		SourceName: "src.pdf", Language: "de", Markdown: "x",
	})

	w := doJSON(t, router, http.MethodDelete, "/twins/src", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/twins/src", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", w.Code)
	}
}

func TestFreshnessEndpoint(t *testing.T) {
	router, _, files := testEnv(t, "")

	testutil.WriteFile(t, files, "", "lecture.pdf", []byte("%PDF"))
	doJSON(t, router, http.MethodPost, "/twins/lecture.pdf/artifacts", UpsertArtifactRequest{
		SourceName: "lecture.pdf", Language: "de", Markdown: "Hallo",
	})

	w := doJSON(t, router, http.MethodGet, "/twins/lecture.pdf/freshness", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var rep FreshnessReport
	_ = json.Unmarshal(w.Body.Bytes(), &rep)
	if rep.SourceID != "lecture.pdf" || len(rep.Artifacts) != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestSyncEndpoint(t *testing.T) {
	router, _, files := testEnv(t, "")

	testutil.WriteFile(t, files, "", "lecture.pdf", []byte("%PDF"))
	doJSON(t, router, http.MethodPost, "/twins/lecture.pdf/artifacts", UpsertArtifactRequest{
		SourceName: "lecture.pdf", Language: "de", Markdown: "Hallo",
	})

	w := doJSON(t, router, http.MethodPost, "/twins/lecture.pdf/sync", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var rep SyncReport
	_ = json.Unmarshal(w.Body.Bytes(), &rep)
	// The mirror was just written by the upsert; nothing should re-sync.
	if rep.Synced != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestMigrationEndpoints(t *testing.T) {
	router, _, files := testEnv(t, "")

	testutil.WriteFile(t, files, "", "talk.mp4", []byte("vid"))
	testutil.WriteFile(t, files, "", "talk.en.md", []byte("transcript"))

	w := doJSON(t, router, http.MethodPost, "/admin/migration", MigrationStartRequest{})
	if w.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, body = %s", w.Code, w.Body.String())
	}
	var start MigrationStartResponse
	_ = json.Unmarshal(w.Body.Bytes(), &start)
	if start.RunID == "" {
		t.Fatal("empty run id")
	}

	// The run executes in the background; poll the audit record.
	var run MigrationRun
	for i := 0; i < 100; i++ {
		w = doJSON(t, router, http.MethodGet, "/admin/migration/"+start.RunID, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("get run status = %d", w.Code)
		}
		_ = json.Unmarshal(w.Body.Bytes(), &run)
		if run.Status != models.MigrationRunning {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if run.Status != models.MigrationCompleted {
		t.Fatalf("run = %+v", run)
	}
	if run.Report.ArtifactsUpserted != 1 {
		t.Errorf("report = %+v", run.Report)
	}
}

func TestBearerAuth(t *testing.T) {
	router, _, _ := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/twins/ghost", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/twins/ghost", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for bad token", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/twins/ghost", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 with valid token", w.Code)
	}
}
