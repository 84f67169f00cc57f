package acuity

import (
	"fmt"
	"strings"
)

// XPath expressions for the react-calendar widget used on *.as.me pages.
const (
	XPathMonthHeader = "//button[contains(@class, 'react-calendar__navigation__label')]"
	XPathNextMonth   = "//button[contains(@class, 'react-calendar__navigation__next-button')]"
	XPathEnabledDays = "//button[contains(@class, 'react-calendar__tile') and not(@disabled)]"
	XPathTimeEntries = "//input[@name='time'] | //label[contains(@class, 'time-selection')] | //div[contains(@class, 'time-selection')] | //button[contains(@class, 'time-selection')]"
	XPathParagraphs  = "//p"

	// CSSTimeEntries matches the same controls as XPathTimeEntries in a static snapshot.
	CSSTimeEntries = `input[name="time"], label[class*="time-selection"], div[class*="time-selection"], button[class*="time-selection"]`

	ExprBusiness      = "window.BUSINESS"
	ExprBusinessReady = "Boolean(window.BUSINESS)"
	exprScrollBottom  = "window.scrollTo(0, document.body.scrollHeight)"
)

// XPathPassSelect finds the Select button of the named product on a
// category listing.
func XPathPassSelect(name string) string {
	return fmt.Sprintf("//li[contains(@class, 'select-item') and .//div[contains(@class, 'appointment-type-name') and normalize-space(text())=%s]]//button[contains(., 'Select')]", xpathLiteral(name))
}

// xpathLiteral quotes s for use in an XPath 1.0 expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
