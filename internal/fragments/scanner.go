package fragments

import (
	"path"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

var (
	htmlImgRe = regexp.MustCompile(`<img[^>]*\bsrc=["']([^"']+)["'][^>]*/?>`)
	embedRe   = regexp.MustCompile(`!\[\[([^\]|]+)(?:\|[^\]]*)?\]\]`)
)

var md = goldmark.New()

// scanImageRefs returns every embedded-image reference in the markdown that
// points at a local file, deduplicated by destination. The three recognized
// shapes are standard markdown images, inline HTML <img> tags, and the
// ![[name]] embed shorthand.
func scanImageRefs(markdown string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(dest string) {
		dest = strings.TrimSpace(dest)
		if dest == "" || isRemote(dest) {
			return
		}
		if _, ok := seen[dest]; ok {
			return
		}
		seen[dest] = struct{}{}
		out = append(out, dest)
	}

	// Markdown image syntax, discovered via the goldmark AST so bracket
	// nesting and titles are handled by a real parser.
	src := []byte(markdown)
	doc := md.Parser().Parse(gmtext.NewReader(src))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if img, ok := n.(*ast.Image); ok && entering {
			add(string(img.Destination))
		}
		return ast.WalkContinue, nil
	})

	for _, m := range htmlImgRe.FindAllStringSubmatch(markdown, -1) {
		add(m[1])
	}
	for _, m := range embedRe.FindAllStringSubmatch(markdown, -1) {
		add(m[1])
	}
	return out
}

// rewriteImageRefs replaces every reference to dest with url across all three
// shapes. The embed shorthand is normalized to a standard markdown image.
func rewriteImageRefs(markdown, dest, url string) string {
	quoted := regexp.QuoteMeta(dest)

	mdRe := regexp.MustCompile(`(!\[[^\]]*\]\()` + quoted + `((?:\s+"[^"]*")?\))`)
	markdown = mdRe.ReplaceAllString(markdown, "${1}"+url+"${2}")

	srcRe := regexp.MustCompile(`(<img[^>]*\bsrc=["'])` + quoted + `(["'])`)
	markdown = srcRe.ReplaceAllString(markdown, "${1}"+url+"${2}")

	name := path.Base(dest)
	embRe := regexp.MustCompile(`!\[\[` + quoted + `(?:\|[^\]]*)?\]\]`)
	markdown = embRe.ReplaceAllString(markdown, "!["+name+"]("+url+")")

	return markdown
}

func isRemote(dest string) bool {
	return strings.Contains(dest, "://") ||
		strings.HasPrefix(dest, "data:") ||
		strings.HasPrefix(dest, "//")
}
