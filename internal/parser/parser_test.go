package parser

import "testing"

func TestParseFrontmatter(t *testing.T) {
	src := "---\ntitle: My Talk\ndetailViewType: session\nauthor: Jo\ntags:\n  - go\n  - storage\n---\n# Body\n"
	res := Parse([]byte(src))

	if res.Frontmatter.Title != "My Talk" {
		t.Errorf("title = %q", res.Frontmatter.Title)
	}
	if res.Frontmatter.DetailViewType != "session" {
		t.Errorf("detailViewType = %q", res.Frontmatter.DetailViewType)
	}
	if res.Frontmatter.Author != "Jo" {
		t.Errorf("author = %q", res.Frontmatter.Author)
	}
	if len(res.Frontmatter.Tags) != 2 || res.Frontmatter.Tags[0] != "go" {
		t.Errorf("tags = %v", res.Frontmatter.Tags)
	}
	if res.Body != "# Body\n" {
		t.Errorf("body = %q", res.Body)
	}
}

func TestParseNoFrontmatter(t *testing.T) {
	res := Parse([]byte("# Just content\n"))
	if !res.Frontmatter.IsZero() {
		t.Errorf("frontmatter = %+v, want zero", res.Frontmatter)
	}
	if res.Body != "# Just content\n" {
		t.Errorf("body = %q", res.Body)
	}
}

func TestParseUnclosedFrontmatter(t *testing.T) {
	src := "---\ntitle: broken\n# no closing delimiter\n"
	res := Parse([]byte(src))
	if !res.Frontmatter.IsZero() {
		t.Errorf("frontmatter = %+v, want zero", res.Frontmatter)
	}
	if res.Body != src {
		t.Errorf("body = %q, want full input", res.Body)
	}
}

func TestParseInvalidYAMLFallsBackToBody(t *testing.T) {
	src := "---\ntitle: [unbalanced\n---\ncontent\n"
	res := Parse([]byte(src))
	if !res.Frontmatter.IsZero() {
		t.Errorf("frontmatter = %+v, want zero", res.Frontmatter)
	}
	if res.Body != src {
		t.Errorf("body = %q, want full input", res.Body)
	}
}

func TestParsePreservesUnknownKeys(t *testing.T) {
	src := "---\ntitle: T\ncustomField: 42\n---\nbody\n"
	res := Parse([]byte(src))
	if res.Frontmatter.Title != "T" {
		t.Errorf("title = %q", res.Frontmatter.Title)
	}
	if v, ok := res.Frontmatter.Extra["customField"]; !ok || v != 42 {
		t.Errorf("extra = %v", res.Frontmatter.Extra)
	}
}
