package mirrorwatch

import (
	"context"
	"testing"

	"github.com/mweide/shadowtwin/internal/testutil"
)

func TestOwningSourceCompanionFolder(t *testing.T) {
	_, files := testutil.TestVault(t)
	testutil.WriteFile(t, files, "course", "lecture.pdf", []byte("%PDF"))
	testutil.WriteFile(t, files, "course/.lecture.pdf", "lecture.de.md", []byte("x"))

	sourceID, parentID, found := owningSource(context.Background(), files, "course/.lecture.pdf/lecture.de.md")
	if !found {
		t.Fatal("owner not found")
	}
	if sourceID != "course/lecture.pdf" || parentID != "course" {
		t.Errorf("source = %q parent = %q", sourceID, parentID)
	}
}

func TestOwningSourceSibling(t *testing.T) {
	_, files := testutil.TestVault(t)
	testutil.WriteFile(t, files, "", "talk.mp4", []byte("vid"))
	testutil.WriteFile(t, files, "", "talk.en.md", []byte("x"))

	sourceID, parentID, found := owningSource(context.Background(), files, "talk.en.md")
	if !found {
		t.Fatal("owner not found")
	}
	if sourceID != "talk.mp4" || parentID != "" {
		t.Errorf("source = %q parent = %q", sourceID, parentID)
	}
}

func TestOwningSourceUnrelatedFile(t *testing.T) {
	_, files := testutil.TestVault(t)
	testutil.WriteFile(t, files, "", "readme.md", []byte("x"))

	if _, _, found := owningSource(context.Background(), files, "readme.md"); found {
		t.Error("unrelated file mapped to a source")
	}
}

func TestOwningSourceDanglingCompanion(t *testing.T) {
	_, files := testutil.TestVault(t)
	// Companion folder whose source file is gone.
	testutil.WriteFile(t, files, ".lecture.pdf", "lecture.de.md", []byte("x"))

	if _, _, found := owningSource(context.Background(), files, ".lecture.pdf/lecture.de.md"); found {
		t.Error("dangling companion mapped to a source")
	}
}
