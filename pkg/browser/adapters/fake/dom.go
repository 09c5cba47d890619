package fake

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ashparshp/hairone/pkg/browser"
)

// queryDocument returns every element under body matching loc, in document
// order. Element handles are indexes into doc.Find("body *").
func queryDocument(doc *goquery.Document, loc browser.Locator) []browser.Element {
	var out []browser.Element
	doc.Find("body *").Each(func(i int, sel *goquery.Selection) {
		if !matches(sel, loc) {
			return
		}
		out = append(out, toElement(i, sel))
	})
	return out
}

func toElement(idx int, sel *goquery.Selection) browser.Element {
	attrs := make(map[string]string)
	for _, a := range sel.Nodes[0].Attr {
		attrs[a.Key] = a.Val
	}
	return browser.Element{
		Handle:  strconv.Itoa(idx),
		Tag:     goquery.NodeName(sel),
		Text:    normalizeSpace(sel.Text()),
		Visible: isVisible(sel),
		Attrs:   attrs,
	}
}

func matches(sel *goquery.Selection, loc browser.Locator) bool {
	switch goquery.NodeName(sel) {
	case "script", "style", "head", "title":
		return false
	}
	switch loc.Kind {
	case browser.LocatorText:
		return deepest(sel, func(s *goquery.Selection) bool {
			return containsFold(normalizeSpace(s.Text()), loc.Value)
		})
	case browser.LocatorTextExact:
		return deepest(sel, func(s *goquery.Selection) bool {
			return normalizeSpace(s.Text()) == normalizeSpace(loc.Value)
		})
	case browser.LocatorPlaceholder:
		ph, ok := sel.Attr("placeholder")
		return ok && containsFold(ph, loc.Value)
	case browser.LocatorRole:
		if roleOf(sel) != loc.Value {
			return false
		}
		return loc.Name == "" || containsFold(accessibleName(sel), loc.Name)
	case browser.LocatorCSS:
		return sel.Is(loc.Value)
	}
	return false
}

// deepest reports whether sel satisfies pred while none of its children do,
// so text locators resolve to the innermost element holding the text.
func deepest(sel *goquery.Selection, pred func(*goquery.Selection) bool) bool {
	if !pred(sel) {
		return false
	}
	return sel.Children().FilterFunction(func(_ int, child *goquery.Selection) bool {
		return pred(child)
	}).Length() == 0
}

// isVisible treats hidden attributes and inline display:none or
// visibility:hidden on the element or any ancestor as invisible.
func isVisible(sel *goquery.Selection) bool {
	visible := true
	sel.Parents().AddSelection(sel).Each(func(_ int, s *goquery.Selection) {
		if _, hidden := s.Attr("hidden"); hidden {
			visible = false
			return
		}
		if t, _ := s.Attr("type"); goquery.NodeName(s) == "input" && t == "hidden" {
			visible = false
			return
		}
		style, _ := s.Attr("style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			visible = false
		}
	})
	return visible
}

func roleOf(sel *goquery.Selection) string {
	if role, ok := sel.Attr("role"); ok {
		return strings.TrimSpace(role)
	}
	switch name := goquery.NodeName(sel); name {
	case "button":
		return "button"
	case "a":
		if _, ok := sel.Attr("href"); ok {
			return "link"
		}
	case "input":
		switch t, _ := sel.Attr("type"); t {
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "submit", "button", "reset":
			return "button"
		default:
			return "textbox"
		}
	case "textarea":
		return "textbox"
	case "img":
		return "img"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "nav":
		return "navigation"
	case "ul", "ol":
		return "list"
	case "li":
		return "listitem"
	}
	return ""
}

func accessibleName(sel *goquery.Selection) string {
	if label, ok := sel.Attr("aria-label"); ok {
		return label
	}
	if goquery.NodeName(sel) == "img" {
		alt, _ := sel.Attr("alt")
		return alt
	}
	if text := normalizeSpace(sel.Text()); text != "" {
		return text
	}
	ph, _ := sel.Attr("placeholder")
	return ph
}

// contentHeight estimates the laid-out page height for full-page captures.
func contentHeight(doc *goquery.Document) int {
	blocks := doc.Find("body div, body p, body h1, body h2, body h3, body li, body img, body input, body button").Length()
	return 48 + blocks*32
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(normalizeSpace(haystack)), strings.ToLower(normalizeSpace(needle)))
}
