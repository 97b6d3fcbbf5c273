package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fctxAt(now time.Time, lowStock, alertDays int) FilterContext {
	return NewFilterContext(now, lowStock, alertDays)
}

func TestNewFilterContext(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	fctx := fctxAt(now, 2, 30)

	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), fctx.TodayStart)
	assert.Equal(t, time.Date(2026, 3, 15, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC), fctx.TodayEnd)
	assert.Equal(t, fctx.TodayEnd.AddDate(0, 0, 30), fctx.ExpiryAlertEnd)
}

func TestComputeFlags_DaysLeft(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	fctx := fctxAt(now, 2, 30)

	tests := []struct {
		name     string
		expiry   time.Time
		daysLeft int
	}{
		{"expires at midnight today", fctx.TodayStart, 0},
		{"expires midnight tomorrow", time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), 1},
		{"expires in a week", time.Date(2026, 3, 22, 0, 0, 0, 0, time.UTC), 7},
		{"expired yesterday", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := ComputeFlags(tt.expiry, 10, fctx)
			assert.Equal(t, tt.daysLeft, flags.DaysLeft)
		})
	}
}

func TestComputeFlags_ExpiryClassification(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	fctx := fctxAt(now, 2, 30)

	expired := ComputeFlags(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), 10, fctx)
	assert.True(t, expired.IsExpired)
	assert.False(t, expired.ExpiringSoon)

	// Day 30 is inside the window, day 31 is outside
	soonBoundary := ComputeFlags(fctx.TodayStart.AddDate(0, 0, 30), 10, fctx)
	assert.False(t, soonBoundary.IsExpired)
	assert.True(t, soonBoundary.ExpiringSoon)

	justOutside := ComputeFlags(fctx.TodayStart.AddDate(0, 0, 31), 10, fctx)
	assert.False(t, justOutside.ExpiringSoon)

	// An expired batch is never also expiring soon
	atMidnight := ComputeFlags(fctx.TodayStart, 10, fctx)
	assert.True(t, atMidnight.IsExpired)
	assert.False(t, atMidnight.ExpiringSoon)

	// Expiring within today's boundary counts as expired, matching the
	// alert predicate
	laterToday := ComputeFlags(time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC), 10, fctx)
	assert.True(t, laterToday.IsExpired)
}

func TestComputeFlags_StockClassification(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	fctx := fctxAt(now, 2, 30)
	expiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	zero := ComputeFlags(expiry, 0, fctx)
	assert.True(t, zero.OutOfStock)
	assert.False(t, zero.LowStock)

	one := ComputeFlags(expiry, 1, fctx)
	assert.False(t, one.OutOfStock)
	assert.True(t, one.LowStock)

	atLimit := ComputeFlags(expiry, 2, fctx)
	assert.True(t, atLimit.LowStock)

	aboveLimit := ComputeFlags(expiry, 3, fctx)
	assert.False(t, aboveLimit.LowStock)
	assert.False(t, aboveLimit.OutOfStock)
}

func TestComputeFlags_ZeroLowStockLimit(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	fctx := fctxAt(now, 0, 30)
	expiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	// With a zero limit nothing with stock is low, only empty batches flag
	one := ComputeFlags(expiry, 1, fctx)
	assert.False(t, one.LowStock)

	zero := ComputeFlags(expiry, 0, fctx)
	assert.True(t, zero.OutOfStock)
	assert.False(t, zero.LowStock)
}

func TestParseAlertType(t *testing.T) {
	tests := []struct {
		in   string
		want AlertType
		ok   bool
	}{
		{"EXPIRED", AlertExpired, true},
		{"expired", AlertExpired, true},
		{"expiring-soon", AlertExpiringSoon, true},
		{"EXPIRING_SOON", AlertExpiringSoon, true},
		{"low-stock", AlertLowStock, true},
		{"out-of-stock", AlertOutOfStock, true},
		{"unknown", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseAlertType(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if ok {
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestCondBuilder(t *testing.T) {
	b := newCondBuilder()
	b.add("b.medicine_id = %s", "med-1")
	b.add("b.expiry_date > %s AND b.expiry_date <= %s", "t1", "t2")

	require.Len(t, b.args, 3)
	assert.Contains(t, b.whereClause(), "b.medicine_id = $1")
	assert.Contains(t, b.whereClause(), "b.expiry_date > $2 AND b.expiry_date <= $3")
	assert.Equal(t, []interface{}{"med-1", "t1", "t2"}, b.args)
}

func TestCondBuilderEmpty(t *testing.T) {
	b := newCondBuilder()
	assert.Equal(t, "", b.whereClause())
}

func TestLikeContains(t *testing.T) {
	assert.Equal(t, "%abc%", likeContains("abc"))
	assert.Equal(t, `%50\%%`, likeContains("50%"))
	assert.Equal(t, `%a\_b%`, likeContains("a_b"))
	assert.Equal(t, `%a\\b%`, likeContains(`a\b`))
}
