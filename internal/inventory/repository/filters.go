package repository

import (
	"fmt"
	"strings"
	"time"
)

// AlertType identifies one of the four stock alert categories
type AlertType string

const (
	AlertExpired      AlertType = "EXPIRED"
	AlertExpiringSoon AlertType = "EXPIRING_SOON"
	AlertLowStock     AlertType = "LOW_STOCK"
	AlertOutOfStock   AlertType = "OUT_OF_STOCK"
)

// ParseAlertType validates an alert type string. Hyphenated and lowercase
// forms are accepted, so URL path segments parse directly.
func ParseAlertType(s string) (AlertType, bool) {
	switch AlertType(strings.ToUpper(strings.ReplaceAll(s, "-", "_"))) {
	case AlertExpired:
		return AlertExpired, true
	case AlertExpiringSoon:
		return AlertExpiringSoon, true
	case AlertLowStock:
		return AlertLowStock, true
	case AlertOutOfStock:
		return AlertOutOfStock, true
	}
	return "", false
}

// FilterContext carries the resolved thresholds and day boundaries every
// classification in one request is evaluated against. Resolving it once per
// request keeps listings, alerts and dashboard counts mutually consistent.
type FilterContext struct {
	LowStockLimitBoxes int
	ExpiryAlertDays    int
	Now                time.Time
	TodayStart         time.Time
	TodayEnd           time.Time
	ExpiryAlertEnd     time.Time
}

// NewFilterContext derives day boundaries from now in now's location
func NewFilterContext(now time.Time, lowStockLimitBoxes, expiryAlertDays int) FilterContext {
	start := StartOfDay(now)
	end := EndOfDay(now)
	return FilterContext{
		LowStockLimitBoxes: lowStockLimitBoxes,
		ExpiryAlertDays:    expiryAlertDays,
		Now:                now,
		TodayStart:         start,
		TodayEnd:           end,
		ExpiryAlertEnd:     end.AddDate(0, 0, expiryAlertDays),
	}
}

// StartOfDay returns midnight of t's calendar day in t's location
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last instant of t's calendar day in t's location
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// BatchFlags is the derived classification of a single ledger row
type BatchFlags struct {
	DaysLeft     int  `json:"days_left"`
	IsExpired    bool `json:"is_expired"`
	ExpiringSoon bool `json:"expiring_soon"`
	OutOfStock   bool `json:"out_of_stock"`
	LowStock     bool `json:"low_stock"`
}

// ComputeFlags classifies one ledger row against the context thresholds.
// The expiry flags compare against the same day boundaries the SQL alert
// predicates use, so a row's flags always agree with the alert listing it
// appears in. DaysLeft is a ceiling day count from the start of today: a
// batch expiring tomorrow reports 1, one that expired yesterday reports -1.
func ComputeFlags(expiryDate time.Time, availableBoxes int, fctx FilterContext) BatchFlags {
	diff := expiryDate.Sub(fctx.TodayStart)
	daysLeft := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) > 0 {
		daysLeft++
	}

	flags := BatchFlags{DaysLeft: daysLeft}
	flags.IsExpired = !expiryDate.After(fctx.TodayEnd)
	flags.ExpiringSoon = !flags.IsExpired && !expiryDate.After(fctx.ExpiryAlertEnd)
	flags.OutOfStock = availableBoxes == 0
	flags.LowStock = availableBoxes > 0 && availableBoxes <= fctx.LowStockLimitBoxes
	return flags
}

// applyAlertCondition appends the SQL predicate matching an alert category.
// The predicates mirror ComputeFlags so counts and listings agree with the
// per-row flags.
func applyAlertCondition(b *condBuilder, alertType AlertType, fctx FilterContext) {
	switch alertType {
	case AlertExpired:
		b.add("b.expiry_date <= %s", fctx.TodayEnd)
	case AlertExpiringSoon:
		b.add("b.expiry_date > %s AND b.expiry_date <= %s", fctx.TodayEnd, fctx.ExpiryAlertEnd)
	case AlertLowStock:
		b.add("b.available_boxes > 0 AND b.available_boxes <= %s", fctx.LowStockLimitBoxes)
	case AlertOutOfStock:
		b.add("b.available_boxes = 0")
	}
}

// condBuilder accumulates WHERE conditions with ordinal placeholders
type condBuilder struct {
	conds []string
	args  []interface{}
}

func newCondBuilder() *condBuilder {
	return &condBuilder{}
}

// add appends a condition; each %s in format becomes the next $n placeholder
func (b *condBuilder) add(format string, values ...interface{}) {
	placeholders := make([]interface{}, len(values))
	for i, v := range values {
		b.args = append(b.args, v)
		placeholders[i] = fmt.Sprintf("$%d", len(b.args))
	}
	b.conds = append(b.conds, fmt.Sprintf(format, placeholders...))
}

// whereClause renders the accumulated conditions, or "" when there are none
func (b *condBuilder) whereClause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return "\n\t\tWHERE " + strings.Join(b.conds, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likeContains builds a substring ILIKE pattern with metacharacters escaped
func likeContains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
