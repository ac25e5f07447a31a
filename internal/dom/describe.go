package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxTextDescription = 40

// Describe produces a short human phrase for an element, used in
// notifications and reports: aria-label, else visible text truncated,
// else placeholder, else the bare tag name.
func Describe(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return "element"
	}
	if label, ok := sel.Attr("aria-label"); ok && strings.TrimSpace(label) != "" {
		return strings.TrimSpace(label)
	}
	if text := strings.TrimSpace(sel.Text()); text != "" {
		if runes := []rune(text); len(runes) > maxTextDescription {
			return string(runes[:maxTextDescription]) + "..."
		}
		return text
	}
	if ph, ok := sel.Attr("placeholder"); ok && strings.TrimSpace(ph) != "" {
		return strings.TrimSpace(ph)
	}
	if tag := goquery.NodeName(sel); tag != "" {
		return tag
	}
	return "element"
}

// ReportSelector describes what was acted on back to the caller. It
// is not used to re-locate elements: #id when present, else the tag
// with up to two class tokens, else the bare tag.
func ReportSelector(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	if id, ok := sel.Attr("id"); ok && id != "" {
		return "#" + id
	}
	tag := goquery.NodeName(sel)
	if class, ok := sel.Attr("class"); ok {
		tokens := strings.Fields(class)
		if len(tokens) > 2 {
			tokens = tokens[:2]
		}
		if len(tokens) > 0 {
			return tag + "." + strings.Join(tokens, ".")
		}
	}
	return tag
}
