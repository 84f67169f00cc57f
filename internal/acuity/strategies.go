package acuity

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wolfman30/spa-availability/internal/datetime"
	"github.com/wolfman30/spa-availability/internal/engine"
)

// Candidate is a possible time entry read from the page.
type Candidate struct {
	Tag   string
	Text  string
	Value string
}

// Strategy reads time-entry candidates for the selected day. The markup
// differs between service types, so several strategies are tried in order
// and the first non-empty result wins.
type Strategy interface {
	Name() string
	Candidates(ctx context.Context, eng engine.Engine) ([]Candidate, error)
}

// DefaultStrategies returns live controls, then clock-like paragraphs, then
// a static snapshot of the document.
func DefaultStrategies() []Strategy {
	return []Strategy{
		XPathStrategy{Label: "time-controls", XPath: XPathTimeEntries},
		XPathStrategy{Label: "paragraph-times", XPath: XPathParagraphs, Keep: datetime.HasClock},
		SnapshotStrategy{},
	}
}

// XPathStrategy queries live elements. Keep, when set, filters on text.
type XPathStrategy struct {
	Label string
	XPath string
	Keep  func(text string) bool
}

func (x XPathStrategy) Name() string { return x.Label }

func (x XPathStrategy) Candidates(ctx context.Context, eng engine.Engine) ([]Candidate, error) {
	els, err := eng.QueryAll(ctx, x.XPath)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(els))
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, fmt.Errorf("acuity: read %s text: %w", x.Label, err)
		}
		text = strings.TrimSpace(text)
		if x.Keep != nil && !x.Keep(text) {
			continue
		}
		c := Candidate{Tag: strings.ToLower(el.TagName()), Text: text}
		if c.Tag == "input" {
			c.Value, _, err = el.Attribute(ctx, "value")
			if err != nil {
				return nil, fmt.Errorf("acuity: read %s value: %w", x.Label, err)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// SnapshotStrategy parses the serialized document with goquery. It covers
// renders where the live query races the widget but the markup is present.
type SnapshotStrategy struct{}

func (SnapshotStrategy) Name() string { return "html-snapshot" }

func (SnapshotStrategy) Candidates(ctx context.Context, eng engine.Engine) ([]Candidate, error) {
	markup, err := eng.HTML(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(markup) == "" {
		return nil, nil
	}
	return CandidatesFromHTML(markup)
}

// CandidatesFromHTML extracts time entries from static markup.
func CandidatesFromHTML(markup string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("acuity: parse snapshot: %w", err)
	}

	var out []Candidate
	doc.Find(CSSTimeEntries).Each(func(_ int, sel *goquery.Selection) {
		c := Candidate{Tag: goquery.NodeName(sel), Text: strings.TrimSpace(sel.Text())}
		if c.Tag == "input" {
			c.Value, _ = sel.Attr("value")
		}
		out = append(out, c)
	})
	if len(out) > 0 {
		return out, nil
	}

	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if datetime.HasClock(text) {
			out = append(out, Candidate{Tag: "p", Text: text})
		}
	})
	return out, nil
}
