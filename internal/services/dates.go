package services

import (
	"strings"
	"time"
)

// Accepted day-first layouts, tried in order.
var dateLayouts = []string{"02/01/2006", "02-01-2006", "02.01.2006"}

const compactDateLayout = "20060102"

// NormalizeDate converts a dd/mm/yyyy, dd-mm-yyyy or dd.mm.yyyy date into
// yyyymmdd. It reports false when no layout parses the input.
func NormalizeDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(compactDateLayout), true
		}
	}
	return "", false
}
