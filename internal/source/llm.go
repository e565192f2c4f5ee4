package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	appLog "festcal/internal/log"
)

const extractPrompt = `You are given the visible text of a film festival page.
Extract every distinct event listing you can find.
Respond with a JSON array only, no prose. Each element:
{"title": "...", "date_text": "...", "venue": "...", "description": "...", "url": "..."}
Use the date/time text exactly as written on the page. Use "" for unknown fields.

PAGE TEXT:
`

// modelEvent mirrors the JSON shape the extraction prompt asks for.
type modelEvent struct {
	Title       string `json:"title"`
	DateText    string `json:"date_text"`
	Venue       string `json:"venue"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// ModelAdapter extracts candidate events from a rendered page's visible text
// with a generative model. It exists for pages whose markup defeats the DOM
// adapter (prose schedules, press releases); downstream stages treat its
// payloads exactly like scraped ones.
type ModelAdapter struct {
	PageURL string
	Model   string // e.g. "gemini-2.0-flash"
	APIKey  string

	Renderer     Renderer
	WaitSelector string
}

func (a *ModelAdapter) Name() string { return "model:" + a.PageURL }

func (a *ModelAdapter) Observations(ctx context.Context) ([]RawObservation, error) {
	if a.APIKey == "" {
		return nil, errors.New("model: API key is empty")
	}

	body, err := a.Renderer.RenderHTML(ctx, RenderOptions{
		URL:          a.PageURL,
		WaitSelector: a.WaitSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("model: render %s: %w", a.PageURL, err)
	}

	text := visibleText(body)
	if text == "" {
		return nil, fmt.Errorf("model: page %s rendered no visible text", a.PageURL)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  a.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("model: client init: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, a.Model,
		genai.Text(extractPrompt+text),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		})
	if err != nil {
		return nil, fmt.Errorf("model: generate: %w", err)
	}

	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		return nil, fmt.Errorf("model: empty response for %s", a.PageURL)
	}

	var events []modelEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, fmt.Errorf("model: decode response for %s: %w", a.PageURL, err)
	}

	out := make([]RawObservation, 0, len(events))
	for _, ev := range events {
		out = append(out, RawObservation{
			Title:       ev.Title,
			DateText:    ev.DateText,
			Venue:       ev.Venue,
			Description: ev.Description,
			URL:         ev.URL,
			SourceURL:   a.PageURL,
		})
	}

	appLog.Info("model extraction completed", "page", a.PageURL, "payload_count", len(out))
	return out, nil
}

// visibleText flattens rendered HTML to whitespace-normalized text, skipping
// script and style subtrees.
func visibleText(body string) string {
	doc, err := parseHTML(body)
	if err != nil {
		return ""
	}
	var b strings.Builder
	collectText(doc, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}
