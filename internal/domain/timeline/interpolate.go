package timeline

import (
	"sort"
	"time"

	"github.com/rpggio/facelapse/internal/domain/photo"
)

const day = 24 * time.Hour

// Interpolate returns a capture date for every position of an ordered photo
// list. Known dates are kept. Gaps between two known dates are filled
// linearly, and positions outside the known range are extrapolated with the
// average per-position interval. When nothing is dated, creation times are
// used, or one-day steps ending at now.
func Interpolate(ordered []photo.Photo, now time.Time) []time.Time {
	dates := make([]time.Time, len(ordered))
	var known []int
	for i, p := range ordered {
		if p.CapturedAt != nil {
			dates[i] = *p.CapturedAt
			known = append(known, i)
		}
	}

	if len(known) == 0 {
		start := now.Add(-time.Duration(len(ordered)) * day)
		for i, p := range ordered {
			if !p.CreatedAt.IsZero() {
				dates[i] = p.CreatedAt
			} else {
				dates[i] = start.Add(time.Duration(i) * day)
			}
		}
		return dates
	}
	if len(known) == len(ordered) {
		return dates
	}

	interval := averageInterval(ordered, dates, known)
	for i, p := range ordered {
		if p.CapturedAt != nil {
			continue
		}

		// known is ascending and never contains i here
		n := sort.SearchInts(known, i)
		before, after := -1, -1
		if n > 0 {
			before = known[n-1]
		}
		if n < len(known) {
			after = known[n]
		}

		switch {
		case before >= 0 && after >= 0:
			dates[i] = between(dates[before], dates[after], i-before, after-before)
		case before >= 0:
			dates[i] = dates[before].Add(time.Duration(i-before) * interval)
		case after >= 0:
			dates[i] = dates[after].Add(time.Duration(i-after) * interval)
		default:
			dates[i] = now
		}
	}
	return dates
}

// between returns from + (to-from)*k/gap without overflowing the product.
func between(from, to time.Time, k, gap int) time.Time {
	total := to.Sub(from)
	g := time.Duration(gap)
	q, r := total/g, total%g
	return from.Add(q*time.Duration(k) + r*time.Duration(k)/g)
}

func averageInterval(ordered []photo.Photo, dates []time.Time, known []int) time.Duration {
	if len(known) == 1 {
		k := known[0]
		created := ordered[k].CreatedAt
		if k == 0 || created.IsZero() {
			return day
		}
		diff := created.Sub(dates[k])
		if diff < 0 {
			diff = -diff
		}
		return diff / time.Duration(k)
	}

	var sum time.Duration
	for j := 1; j < len(known); j++ {
		prev, cur := known[j-1], known[j]
		sum += dates[cur].Sub(dates[prev]) / time.Duration(cur-prev)
	}
	return sum / time.Duration(len(known)-1)
}
