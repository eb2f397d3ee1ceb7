package fragments

import (
	"strings"
	"testing"
)

func TestScanImageRefs(t *testing.T) {
	markdown := `# Doc

![alt](photo1.png)
<img src="photo2.jpg" alt="x">
![[photo3.png|caption]]
![remote](https://example.com/r.png)
![data](data:image/png;base64,xyz)
![dup](photo1.png)
`
	refs := scanImageRefs(markdown)
	want := []string{"photo1.png", "photo2.jpg", "photo3.png"}
	if len(refs) != len(want) {
		t.Fatalf("refs = %v, want %v", refs, want)
	}
	got := make(map[string]bool)
	for _, r := range refs {
		got[r] = true
	}
	for _, w := range want {
		if !got[w] {
			t.Errorf("missing ref %q in %v", w, refs)
		}
	}
}

func TestScanSkipsRemoteAndData(t *testing.T) {
	refs := scanImageRefs(`![a](https://x/a.png) ![b](//cdn/b.png) ![c](data:foo)`)
	if len(refs) != 0 {
		t.Errorf("refs = %v, want none", refs)
	}
}

func TestRewriteMarkdownImage(t *testing.T) {
	in := `before ![alt](photo1.png "title") after`
	out := rewriteImageRefs(in, "photo1.png", "https://objects.test/x/photo1")
	if out != `before ![alt](https://objects.test/x/photo1 "title") after` {
		t.Errorf("out = %q", out)
	}
}

func TestRewriteHTMLImage(t *testing.T) {
	in := `<img class="big" src="photo2.jpg" alt="x">`
	out := rewriteImageRefs(in, "photo2.jpg", "URL")
	if !strings.Contains(out, `src="URL"`) {
		t.Errorf("out = %q", out)
	}
}

func TestRewriteEmbedNormalizes(t *testing.T) {
	out := rewriteImageRefs(`![[photo3.png|caption]]`, "photo3.png", "URL")
	if out != `![photo3.png](URL)` {
		t.Errorf("out = %q", out)
	}
}

func TestRewriteLeavesOtherRefs(t *testing.T) {
	in := `![a](photo1.png) ![b](photo2.png)`
	out := rewriteImageRefs(in, "photo1.png", "URL")
	if out != `![a](URL) ![b](photo2.png)` {
		t.Errorf("out = %q", out)
	}
}
