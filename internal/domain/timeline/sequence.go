// Package timeline orders the photo library and backfills missing capture
// dates along that order.
package timeline

import (
	"cmp"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/rpggio/facelapse/internal/domain/photo"
)

// NameKey is the numeric sort key of a display name. Class 0 names carry a
// number, class 1 names have no digits and sort after every numbered name.
type NameKey struct {
	Class  int
	Digits string // decimal digits without leading zeros
	Sub    string
}

// ParseNameKey derives the sort key of a display name. An all-digit stem is
// its own number. Otherwise the first digit run is the number and the raw
// stem breaks ties.
func ParseNameKey(displayName string) NameKey {
	stem := strings.TrimSuffix(displayName, path.Ext(displayName))
	start := strings.IndexFunc(stem, isDigit)
	if start < 0 {
		return NameKey{Class: 1, Sub: stem}
	}
	end := start + 1
	for end < len(stem) && isDigit(rune(stem[end])) {
		end++
	}
	digits := trimZeros(stem[start:end])
	if start == 0 && end == len(stem) {
		return NameKey{Digits: digits}
	}
	return NameKey{Digits: digits, Sub: stem}
}

// CompareNameKeys orders keys by class, then number magnitude, then sub-key.
func CompareNameKeys(a, b NameKey) int {
	if c := cmp.Compare(a.Class, b.Class); c != 0 {
		return c
	}
	if c := cmp.Compare(len(a.Digits), len(b.Digits)); c != 0 {
		return c
	}
	if c := strings.Compare(a.Digits, b.Digits); c != 0 {
		return c
	}
	return strings.Compare(a.Sub, b.Sub)
}

// Compare is the timeline order: manual order, display-name number, capture
// time, creation time, then ID. Missing values sort last.
func Compare(a, b photo.Photo) int {
	if c := compareOptionalInt(a.ManualOrder, b.ManualOrder); c != 0 {
		return c
	}
	if c := CompareNameKeys(ParseNameKey(a.DisplayName), ParseNameKey(b.DisplayName)); c != 0 {
		return c
	}
	if c := compareOptionalTime(a.CapturedAt, b.CapturedAt); c != 0 {
		return c
	}
	if c := compareTimeZeroLast(a.CreatedAt, b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Sort orders photos in place.
func Sort(photos []photo.Photo) {
	slices.SortStableFunc(photos, Compare)
}

func compareOptionalInt(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return cmp.Compare(*a, *b)
}

func compareOptionalTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}

func compareTimeZeroLast(a, b time.Time) int {
	switch {
	case a.IsZero() && b.IsZero():
		return 0
	case a.IsZero():
		return 1
	case b.IsZero():
		return -1
	}
	return a.Compare(b)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func trimZeros(digits string) string {
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
