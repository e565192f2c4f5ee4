package source

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	appLog "festcal/internal/log"
)

// defaultDetailPath is the path of the single-event view; a detail URL is
// synthesized as detailPath + "?eventId=" + id.
const defaultDetailPath = "/2025-all-events"

// singleEventID extracts the event identifier from an inline
// showSingleEvent('…') click handler.
var singleEventID = regexp.MustCompile(`showSingleEvent\('([^']+)'\)`)

// DOMAdapter extracts candidate events from one rendered listing page.
type DOMAdapter struct {
	PageURL    string
	BaseURL    string
	DetailPath string // defaults to defaultDetailPath

	Renderer     Renderer
	WaitSelector string
}

func (a *DOMAdapter) Name() string { return "dom:" + a.PageURL }

// Observations renders the page and extracts one payload per event card.
func (a *DOMAdapter) Observations(ctx context.Context) ([]RawObservation, error) {
	body, err := a.Renderer.RenderHTML(ctx, RenderOptions{
		URL:          a.PageURL,
		WaitSelector: a.WaitSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("dom: render %s: %w", a.PageURL, err)
	}

	detailPath := a.DetailPath
	if detailPath == "" {
		detailPath = defaultDetailPath
	}

	obs, err := Extract(body, a.BaseURL, a.PageURL, detailPath)
	if err != nil {
		return nil, err
	}
	appLog.Info("dom extraction completed", "page", a.PageURL, "payload_count", len(obs))
	return obs, nil
}

// Extract parses rendered listing-page HTML and returns one raw observation
// per event card. Cards missing a recognizable title are skipped; all other
// fields are best-effort.
func Extract(body, baseURL, pageURL, detailPath string) ([]RawObservation, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("dom: parse %s: %w", pageURL, err)
	}

	cards := findCards(doc)
	out := make([]RawObservation, 0, len(cards))

	for _, card := range cards {
		obs, ok := extractCard(card, baseURL, pageURL, detailPath)
		if !ok {
			continue
		}
		out = append(out, obs)
	}

	return out, nil
}

// findCards locates event-card containers. The class ladder is ordered from
// the current site markup down to older layouts; the first class that
// produces any hits wins so that one page never mixes card generations.
func findCards(doc *html.Node) []*html.Node {
	ladder := []func(*html.Node) bool{
		func(n *html.Node) bool { return hasClass(n, "event-box") && hasClass(n, "list-view") },
		func(n *html.Node) bool { return hasClass(n, "event-box") },
		func(n *html.Node) bool { return hasClass(n, "event-banner") },
		func(n *html.Node) bool { return hasClass(n, "event-card") },
		func(n *html.Node) bool { return hasClass(n, "summary-item") },
	}

	for _, pred := range ladder {
		if cards := findAll(doc, pred); len(cards) > 0 {
			return cards
		}
	}
	return nil
}

func extractCard(card *html.Node, baseURL, pageURL, detailPath string) (RawObservation, bool) {
	title := cardTitle(card)
	if title == "" {
		return RawObservation{}, false
	}

	obs := RawObservation{
		Title:       title,
		DateText:    cardDateText(card),
		Venue:       cardVenue(card),
		Description: cardDescription(card),
		SourceURL:   pageURL,
	}

	if detail := cardDetailURL(card, baseURL, detailPath); detail != "" {
		obs.URL = detail
	} else {
		obs.URL = pageURL
	}

	return obs, true
}

func cardTitle(card *html.Node) string {
	ladder := []func(*html.Node) bool{
		func(n *html.Node) bool { return isElem(n, "h3") && hasClass(n, "event-title") },
		func(n *html.Node) bool { return hasClass(n, "event-title") },
		func(n *html.Node) bool { return hasClass(n, "truncate-title") },
		func(n *html.Node) bool { return hasClass(n, "summary-title") },
		func(n *html.Node) bool {
			return isElem(n, "a") && n.Parent != nil &&
				(isElem(n.Parent, "h1") || isElem(n.Parent, "h2") || isElem(n.Parent, "h3"))
		},
	}
	for _, pred := range ladder {
		if n := findFirst(card, pred); n != nil {
			if t := nodeText(n); t != "" {
				return t
			}
		}
	}
	return ""
}

func cardDateText(card *html.Node) string {
	ladder := []func(*html.Node) bool{
		func(n *html.Node) bool { return isElem(n, "span") && hasClass(n, "event-date") },
		func(n *html.Node) bool { return hasClass(n, "event-date") },
		func(n *html.Node) bool { return classContains(n, "date") },
		func(n *html.Node) bool { return hasClass(n, "event-time") },
	}
	for _, pred := range ladder {
		if n := findFirst(card, pred); n != nil {
			if t := nodeText(n); t != "" {
				return t
			}
		}
	}
	return ""
}

// cardVenue looks for a "<p><strong>Venue:</strong> Name</p>" paragraph.
func cardVenue(card *html.Node) string {
	for _, p := range findAll(card, func(n *html.Node) bool { return isElem(n, "p") }) {
		text := nodeText(p)
		if idx := strings.Index(text, "Venue:"); idx >= 0 {
			if v := strings.TrimSpace(text[idx+len("Venue:"):]); v != "" {
				return v
			}
		}
	}
	return ""
}

// cardDescription collects description paragraphs. The site emits an empty
// <p class="event-description"> marker followed by the actual paragraphs,
// terminated by the venue paragraph; older layouts keep everything inside an
// .event-details container.
func cardDescription(card *html.Node) string {
	var parts []string

	if marker := findFirst(card, func(n *html.Node) bool {
		return isElem(n, "p") && hasClass(n, "event-description")
	}); marker != nil {
		for sib := marker.NextSibling; sib != nil; sib = sib.NextSibling {
			if sib.Type != html.ElementNode || sib.Data != "p" {
				continue
			}
			text := nodeText(sib)
			if text == "" || strings.HasPrefix(text, "Venue:") {
				break
			}
			// Very short paragraphs are layout artifacts, not prose.
			if strings.Contains(text, "Venue:") || len(text) <= 20 {
				continue
			}
			parts = append(parts, text)
		}
		return strings.Join(parts, "\n\n")
	}

	if details := findFirst(card, func(n *html.Node) bool { return hasClass(n, "event-details") }); details != nil {
		for _, p := range findAll(details, func(n *html.Node) bool { return isElem(n, "p") }) {
			text := nodeText(p)
			if text == "" || strings.Contains(text, "Venue:") || hasClass(p, "event-description") {
				continue
			}
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n\n")
}

// cardDetailURL finds a per-event detail locator, preferring the eventId
// embedded in showSingleEvent onclick handlers, then any anchor whose href
// already carries an eventId parameter.
func cardDetailURL(card *html.Node, baseURL, detailPath string) string {
	for _, n := range findAll(card, func(n *html.Node) bool { return attrVal(n, "onclick") != "" }) {
		if m := singleEventID.FindStringSubmatch(attrVal(n, "onclick")); m != nil {
			return baseURL + detailPath + "?eventId=" + m[1]
		}
	}

	for _, a := range findAll(card, func(n *html.Node) bool { return isElem(n, "a") }) {
		href := strings.TrimSpace(attrVal(a, "href"))
		if href == "" || !strings.Contains(href, "eventId=") {
			continue
		}
		return resolveURL(baseURL, href)
	}

	return ""
}

// ExtractDetail parses an event detail page and returns a fuller description
// plus the venue, both best-effort. Detail pages carry the same paragraph
// structure as cards but without truncation.
func ExtractDetail(body string) (description, venue string) {
	doc, err := parseHTML(body)
	if err != nil {
		return "", ""
	}

	containers := []func(*html.Node) bool{
		func(n *html.Node) bool { return hasClass(n, "event-description") },
		func(n *html.Node) bool { return hasClass(n, "event-details") },
		func(n *html.Node) bool { return classContains(n, "description") },
	}

	for _, pred := range containers {
		root := findFirst(doc, pred)
		if root == nil {
			continue
		}
		var parts []string
		for _, p := range findAll(root, func(n *html.Node) bool { return isElem(n, "p") }) {
			text := nodeText(p)
			if text == "" || strings.Contains(text, "Venue:") || len(text) <= 10 {
				continue
			}
			parts = append(parts, text)
		}
		if len(parts) > 0 {
			description = strings.Join(parts, "\n\n")
			break
		}
	}

	if v := cardVenue(doc); v != "" && len(v) < 200 {
		venue = v
	}

	return description, venue
}

func resolveURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// --- small html.Node helpers ---

func isElem(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func attrVal(n *html.Node, name string) string {
	if n.Type != html.ElementNode {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrVal(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func classContains(n *html.Node, fragment string) bool {
	return strings.Contains(attrVal(n, "class"), fragment)
}

func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && pred(n) {
			out = append(out, n)
			// Do not descend into a matched node; cards never nest.
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	if root.Type == html.ElementNode && pred(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := findFirst(c, pred); n != nil {
			return n
		}
	}
	return nil
}

func parseHTML(body string) (*html.Node, error) {
	return html.Parse(strings.NewReader(body))
}

// collectText appends the text content of n, skipping script/style subtrees.
func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// nodeText returns the concatenated text content with whitespace collapsed.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
