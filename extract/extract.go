// Package extract holds the pattern-based text helpers shared by the intent
// classifier, the retrieval layer and the policy fetcher.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MinOrderDigits is the shortest digit run accepted as an order number.
const MinOrderDigits = 6

var (
	orderRunRe      = regexp.MustCompile(`[0-9]{6,}`)
	embeddedOrderRe = regexp.MustCompile(`(?i)order\s*(?:number|no\.?|#)\s*[:#]?\s*([0-9]+)`)
	deliveryLabelRe = regexp.MustCompile(`(?i)deliver(?:y|ed)(?:\s+date)?(?:\s+on)?[ \t]*[:\-]?[ \t]*`)
	windowDaysRe    = regexp.MustCompile(`(?i)\breturn(?:s|ed|able)?\b[^.\n]{0,40}?\bwithin\s+([0-9]{1,3})[\s-]*(?:calendar[\s-]+)?days?\b|\b([0-9]{1,3})[\s-]*(?:calendar[\s-]+)?days?[\s-]+return`)
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006",
}

// Order returns the first run of at least six digits in text, or "".
func Order(text string) string {
	return orderRunRe.FindString(text)
}

// EmbeddedOrderNumber returns the number following an "Order number:" label.
func EmbeddedOrderNumber(text string) string {
	m := embeddedOrderRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// DeliveryDate finds a labelled delivery date and returns it as a UTC calendar date.
func DeliveryDate(text string) (time.Time, bool) {
	for _, loc := range deliveryLabelRe.FindAllStringIndex(text, -1) {
		rest := text[loc[1]:]
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			rest = rest[:i]
		}
		if d, ok := ParseDate(rest); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

// ParseDate parses the leading date of s using the known layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_` ")
	for _, layout := range dateLayouts {
		candidate := s
		if len(candidate) > len(layout)+4 {
			candidate = candidate[:len(layout)+4]
		}
		for n := len(candidate); n >= len(layout)-4 && n > 0; n-- {
			if d, err := time.Parse(layout, strings.TrimRight(candidate[:n], " .,;")); err == nil {
				return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), true
			}
		}
	}
	return time.Time{}, false
}

// WindowDays returns the return window of a policy text, or def. Only a figure
// tied to return wording counts ("returned within 30 days", "a 90-day return
// window"), so refund or shipping timings are ignored.
func WindowDays(text string, def int) int {
	m := windowDaysRe.FindStringSubmatch(text)
	if m == nil {
		return def
	}
	figure := m[1]
	if figure == "" {
		figure = m[2]
	}
	n, err := strconv.Atoi(figure)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
