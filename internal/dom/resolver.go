package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Match is a resolved element together with a selector precise enough
// to drive the live page to the same node.
type Match struct {
	Selection *goquery.Selection
	Selector  string
}

// Strategy locates candidate elements for a symbolic target. Each
// strategy is pure: same target, same document, same answer.
type Strategy func(target string, doc *goquery.Document) *goquery.Selection

// Resolve finds the best-match actionable element for target, trying
// each strategy in order and taking the first hit. Returns nil when
// every strategy fails; callers treat that as a reportable, non-fatal
// miss.
func Resolve(target string, doc *goquery.Document) *Match {
	return firstMatch(target, doc, clickStrategies)
}

// ResolveInput finds the best-match text input for target: a direct
// selector match first, then a placeholder substring match.
func ResolveInput(target string, doc *goquery.Document) *Match {
	return firstMatch(target, doc, inputStrategies)
}

var clickStrategies = []Strategy{
	directSelector,
	interactiveByText,
	byAriaLabel,
}

var inputStrategies = []Strategy{
	directSelector,
	inputByPlaceholder,
}

func firstMatch(target string, doc *goquery.Document, strategies []Strategy) *Match {
	target = strings.TrimSpace(target)
	if target == "" || doc == nil {
		return nil
	}
	for _, strat := range strategies {
		if sel := strat(target, doc); sel != nil && sel.Length() > 0 {
			first := sel.First()
			return &Match{Selection: first, Selector: UniquePath(first)}
		}
	}
	return nil
}

// directSelector treats the target as a structural CSS selector. An
// unparseable target simply falls through to the next strategy.
func directSelector(target string, doc *goquery.Document) *goquery.Selection {
	matcher, err := cascadia.Compile(target)
	if err != nil {
		return nil
	}
	return doc.FindMatcher(matcher)
}

// interactiveByText scans interactive elements for a case-insensitive
// substring match of their visible text against the target.
func interactiveByText(target string, doc *goquery.Document) *goquery.Selection {
	needle := strings.ToLower(target)
	return doc.Find("button, a, [role=button], input[type=submit]").FilterFunction(
		func(_ int, s *goquery.Selection) bool {
			text := s.Text()
			if goquery.NodeName(s) == "input" {
				text, _ = s.Attr("value")
			}
			return strings.Contains(strings.ToLower(strings.TrimSpace(text)), needle)
		})
}

// byAriaLabel matches elements whose accessible label contains the
// target.
func byAriaLabel(target string, doc *goquery.Document) *goquery.Selection {
	needle := strings.ToLower(target)
	return doc.Find("[aria-label]").FilterFunction(
		func(_ int, s *goquery.Selection) bool {
			label, _ := s.Attr("aria-label")
			return strings.Contains(strings.ToLower(label), needle)
		})
}

// inputByPlaceholder matches text inputs whose placeholder contains
// the target.
func inputByPlaceholder(target string, doc *goquery.Document) *goquery.Selection {
	needle := strings.ToLower(target)
	return doc.Find("input[placeholder], textarea[placeholder]").FilterFunction(
		func(_ int, s *goquery.Selection) bool {
			ph, _ := s.Attr("placeholder")
			return strings.Contains(strings.ToLower(ph), needle)
		})
}

// UniquePath builds a CSS path that re-locates the element on the
// live page: the nearest #id anchor when one exists, otherwise a
// chain of tag:nth-of-type segments from the root.
func UniquePath(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	var segments []string
	for cur := sel.First(); cur.Length() > 0; cur = cur.Parent() {
		tag := goquery.NodeName(cur)
		if tag == "" || strings.HasPrefix(tag, "#") {
			break
		}
		if id, exists := cur.Attr("id"); exists && id != "" {
			segments = append([]string{"#" + id}, segments...)
			return strings.Join(segments, " > ")
		}
		if tag == "html" || tag == "body" {
			segments = append([]string{tag}, segments...)
			break
		}
		nth := cur.PrevAllFiltered(tag).Length() + 1
		segments = append([]string{fmt.Sprintf("%s:nth-of-type(%d)", tag, nth)}, segments...)
	}
	return strings.Join(segments, " > ")
}
