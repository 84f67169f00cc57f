package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
)

// MaxLines caps the slot lines in one message.
const MaxLines = 20

// Digest is one announcement of newly opened slots.
type Digest struct {
	Subject string
	Slots   []NewSlot
}

// NewDigest titles a digest after the number of slots it carries.
func NewDigest(slots []NewSlot) Digest {
	return Digest{
		Subject: fmt.Sprintf("%d new spa appointment(s) available", len(slots)),
		Slots:   slots,
	}
}

// Text is the plain-text body.
func (d Digest) Text() string {
	return FormatSlots(d.Slots)
}

// FormatSlots renders one line per slot in input order, capped at MaxLines.
func FormatSlots(slots []NewSlot) string {
	var b strings.Builder
	for i, slot := range slots {
		if i == MaxLines {
			fmt.Fprintf(&b, "... and %d more\n", len(slots)-MaxLines)
			break
		}
		fmt.Fprintf(&b, "%s: %s %s", slot.Provider, slot.Date, slot.Time)
		if slot.Spots != nil {
			fmt.Fprintf(&b, " (%d spots left)", *slot.Spots)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

var digestTemplate = template.Must(template.New("digest").Parse(`<h2>{{.Subject}}</h2>
<table cellpadding="4">
<tr><th align="left">Provider</th><th align="left">Date</th><th align="left">Time</th><th align="left">Spots</th></tr>
{{- range .Rows}}
<tr><td>{{if .URL}}<a href="{{.URL}}">{{.Provider}}</a>{{else}}{{.Provider}}{{end}}</td><td>{{.Date}}</td><td>{{.Time}}</td><td>{{.Spots}}</td></tr>
{{- end}}
</table>
{{- if .Hidden}}
<p>... and {{.Hidden}} more</p>
{{- end}}
`))

type digestRow struct {
	Provider, Date, Time, Spots string
	URL                         string
}

// HTML renders the digest as an email body. Provider names link to their
// booking page when one is known.
func (d Digest) HTML() (string, error) {
	view := struct {
		Subject string
		Rows    []digestRow
		Hidden  int
	}{Subject: d.Subject}

	for i, slot := range d.Slots {
		if i == MaxLines {
			view.Hidden = len(d.Slots) - MaxLines
			break
		}
		row := digestRow{Provider: slot.Provider, Date: slot.Date, Time: slot.Time, URL: slot.BookingURL}
		if slot.Spots != nil {
			row.Spots = strconv.Itoa(*slot.Spots)
		}
		view.Rows = append(view.Rows, row)
	}

	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("notify: render digest: %w", err)
	}
	return buf.String(), nil
}
