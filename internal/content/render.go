// Package content derives plain text, sanitized markup and markdown from
// the delta form of a document.
package content

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"quillvault/internal/domain/models"
)

// Renderer turns a delta into sanitized HTML and plain text.
// Thread-safe for concurrent use.
type Renderer struct {
	policy *bluemonday.Policy
}

// NewRenderer creates a renderer with a UGC sanitization policy: common
// formatting survives, scripts, event handlers and javascript: URLs do not.
func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()
	return &Renderer{policy: policy}
}

// stripPolicy removes every tag, leaving only text content.
var stripPolicy = bluemonday.StrictPolicy()

// TextFromHTML strips all markup from rendered HTML, for callers that
// only have markup to recover text from.
func TextFromHTML(markup string) string {
	return html.UnescapeString(stripPolicy.Sanitize(markup))
}

// PlainText concatenates the string inserts of a delta. Embeds contribute
// nothing; the trailing newline every delta line carries is preserved so
// that character counts line up with the editor's.
func PlainText(d models.Delta) string {
	var b strings.Builder
	for _, op := range d.Ops {
		if s, ok := op.Insert.(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

// CountWords counts whitespace-separated tokens in plain text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// CountChars counts runes, not bytes, so multi-byte scripts are counted
// the way an editor displays them.
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// line is one rendered line: accumulated inline HTML plus the block
// attributes carried by the newline that terminated it.
type line struct {
	html  strings.Builder
	attrs map[string]interface{}
}

// HTML renders a delta to sanitized HTML.
//
// Inline attributes (bold, italic, underline, strike, link, code) wrap the
// inserted text; block attributes (header, blockquote, list, code-block)
// ride on the newline that ends the line, which is how the delta format
// encodes them. Adjacent list lines are merged into one list element.
func (r *Renderer) HTML(d models.Delta) string {
	var lines []line
	current := &line{}

	for _, op := range d.Ops {
		switch ins := op.Insert.(type) {
		case string:
			segments := strings.Split(ins, "\n")
			for i, seg := range segments {
				if seg != "" {
					current.html.WriteString(renderInline(seg, op.Attributes))
				}
				if i < len(segments)-1 {
					// The newline carries this line's block attributes.
					current.attrs = op.Attributes
					lines = append(lines, *current)
					current = &line{}
				}
			}
		case map[string]interface{}:
			current.html.WriteString(renderEmbed(ins))
		}
	}
	if current.html.Len() > 0 {
		lines = append(lines, *current)
	}

	var out strings.Builder
	var openList string // "ol", "ul" or ""
	closeList := func() {
		if openList != "" {
			fmt.Fprintf(&out, "</%s>", openList)
			openList = ""
		}
	}

	for _, ln := range lines {
		inner := ln.html.String()
		if inner == "" {
			inner = "<br/>"
		}

		if listKind := listTag(ln.attrs); listKind != "" {
			if openList != listKind {
				closeList()
				fmt.Fprintf(&out, "<%s>", listKind)
				openList = listKind
			}
			fmt.Fprintf(&out, "<li>%s</li>", inner)
			continue
		}
		closeList()

		switch {
		case headerLevel(ln.attrs) > 0:
			lvl := headerLevel(ln.attrs)
			fmt.Fprintf(&out, "<h%d>%s</h%d>", lvl, inner, lvl)
		case boolAttr(ln.attrs, "blockquote"):
			fmt.Fprintf(&out, "<blockquote>%s</blockquote>", inner)
		case boolAttr(ln.attrs, "code-block"):
			fmt.Fprintf(&out, "<pre><code>%s</code></pre>", inner)
		default:
			fmt.Fprintf(&out, "<p>%s</p>", inner)
		}
	}
	closeList()

	return r.policy.Sanitize(out.String())
}

func renderInline(text string, attrs map[string]interface{}) string {
	s := html.EscapeString(text)
	if attrs == nil {
		return s
	}
	if boolAttr(attrs, "code") {
		s = "<code>" + s + "</code>"
	}
	if boolAttr(attrs, "bold") {
		s = "<strong>" + s + "</strong>"
	}
	if boolAttr(attrs, "italic") {
		s = "<em>" + s + "</em>"
	}
	if boolAttr(attrs, "underline") {
		s = "<u>" + s + "</u>"
	}
	if boolAttr(attrs, "strike") {
		s = "<s>" + s + "</s>"
	}
	if href, ok := attrs["link"].(string); ok && href != "" {
		s = fmt.Sprintf("<a href=%q>%s</a>", href, s)
	}
	return s
}

func renderEmbed(embed map[string]interface{}) string {
	if src, ok := embed["image"].(string); ok {
		return fmt.Sprintf("<img src=%q/>", src)
	}
	if _, ok := embed["divider"]; ok {
		return "<hr/>"
	}
	// Unknown embeds render as nothing rather than leaking raw JSON.
	return ""
}

func boolAttr(attrs map[string]interface{}, name string) bool {
	v, ok := attrs[name].(bool)
	return ok && v
}

func headerLevel(attrs map[string]interface{}) int {
	if attrs == nil {
		return 0
	}
	switch v := attrs["header"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func listTag(attrs map[string]interface{}) string {
	if attrs == nil {
		return ""
	}
	switch attrs["list"] {
	case "ordered":
		return "ol"
	case "bullet":
		return "ul"
	}
	return ""
}
