package calendar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type interval struct {
	start time.Time
	end   time.Time
}

// mergeIntervals collapses overlapping intervals into a sorted, disjoint set.
func mergeIntervals(intervals []interval) []interval {
	ordered := append([]interval(nil), intervals...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].start.Equal(ordered[j].start) {
			return ordered[i].end.Before(ordered[j].end)
		}
		return ordered[i].start.Before(ordered[j].start)
	})
	if len(ordered) == 0 {
		return nil
	}
	merged := []interval{ordered[0]}
	for _, cur := range ordered[1:] {
		last := &merged[len(merged)-1]
		if !cur.start.After(last.end) {
			if cur.end.After(last.end) {
				last.end = cur.end
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// DetectConflicts finds pairwise overlaps between events. A conflict is hard
// when both events are confirmed, soft otherwise.
func DetectConflicts(events []Event) []Conflict {
	ordered := append([]Event(nil), events...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Start.Equal(ordered[j].Start) {
			return ordered[i].End.Before(ordered[j].End)
		}
		return ordered[i].Start.Before(ordered[j].Start)
	})

	var conflicts []Conflict
	for i, left := range ordered {
		for _, right := range ordered[i+1:] {
			if !right.Start.Before(left.End) {
				break
			}
			overlapStart := maxTime(left.Start, right.Start)
			overlapEnd := minTime(left.End, right.End)
			if !overlapStart.Before(overlapEnd) {
				continue
			}
			ctype := "soft"
			if left.Status == "confirmed" && right.Status == "confirmed" {
				ctype = "hard"
			}
			conflicts = append(conflicts, Conflict{
				Type:     ctype,
				EventIDs: []string{left.ID, right.ID},
				Start:    overlapStart,
				End:      overlapEnd,
				Explanation: fmt.Sprintf("%s conflict between '%s' (%s) and '%s' (%s)",
					strings.ToUpper(ctype[:1])+ctype[1:], left.Title, left.Provider, right.Title, right.Provider),
			})
		}
	}
	return conflicts
}

// AvailabilityOptions control free-slot computation.
type AvailabilityOptions struct {
	DurationMinutes   int
	BufferMinutes     int
	WorkingHoursStart string // HH:MM
	WorkingHoursEnd   string
}

// DefaultAvailabilityOptions mirrors a standard 9-to-5 working day with a
// 30-minute meeting and 10-minute buffers.
func DefaultAvailabilityOptions() AvailabilityOptions {
	return AvailabilityOptions{
		DurationMinutes:   30,
		BufferMinutes:     10,
		WorkingHoursStart: "09:00",
		WorkingHoursEnd:   "17:00",
	}
}

func parseClock(clock string) (hour, minute int, err error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock value %q", clock)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock value %q", clock)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock value %q", clock)
	}
	return hour, minute, nil
}

func workingWindow(day time.Time, opts AvailabilityOptions) (interval, error) {
	sh, sm, err := parseClock(opts.WorkingHoursStart)
	if err != nil {
		return interval{}, err
	}
	eh, em, err := parseClock(opts.WorkingHoursEnd)
	if err != nil {
		return interval{}, err
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), sh, sm, 0, 0, day.Location())
	end := time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, day.Location())
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return interval{start: start, end: end}, nil
}

// AvailableSlots computes scored free slots within the working window,
// treating each event as busy with a buffer on both sides. Slot scores grow
// with the size of the surrounding gap.
func AvailableSlots(events []Event, day time.Time, opts AvailabilityOptions) ([]TimeSlot, error) {
	window, err := workingWindow(day, opts)
	if err != nil {
		return nil, err
	}
	buffer := time.Duration(opts.BufferMinutes) * time.Minute

	var busy []interval
	for _, ev := range events {
		iv := interval{start: ev.Start.Add(-buffer), end: ev.End.Add(buffer)}
		if !iv.end.After(window.start) || !iv.start.Before(window.end) {
			continue
		}
		busy = append(busy, interval{
			start: maxTime(iv.start, window.start),
			end:   minTime(iv.end, window.end),
		})
	}

	var free []interval
	cursor := window.start
	for _, iv := range mergeIntervals(busy) {
		if cursor.Before(iv.start) {
			free = append(free, interval{start: cursor, end: iv.start})
		}
		cursor = maxTime(cursor, iv.end)
	}
	if cursor.Before(window.end) {
		free = append(free, interval{start: cursor, end: window.end})
	}

	minSpan := time.Duration(opts.DurationMinutes) * time.Minute
	var slots []TimeSlot
	for _, iv := range free {
		span := iv.end.Sub(iv.start)
		if span < minSpan {
			continue
		}
		gapMinutes := span.Minutes()
		score := gapMinutes / float64(max(opts.DurationMinutes*3, 1))
		if score > 1.0 {
			score = 1.0
		}
		reason := "Available slot"
		if score >= 0.75 {
			reason = "Well-spaced slot"
		}
		slots = append(slots, TimeSlot{
			Start:  iv.start,
			End:    iv.start.Add(minSpan),
			Score:  round3(score),
			Reason: reason,
		})
	}
	return slots, nil
}

// RankSuggestions orders slots preferring those inside the preferred window,
// then by score, then by earliest start, and returns at most minCount.
func RankSuggestions(slots []TimeSlot, minCount int, preferredStart, preferredEnd string) []TimeSlot {
	inPreferred := func(slot TimeSlot) bool {
		if preferredStart == "" || preferredEnd == "" {
			return true
		}
		sh, sm, err1 := parseClock(preferredStart)
		eh, em, err2 := parseClock(preferredEnd)
		if err1 != nil || err2 != nil {
			return true
		}
		minutes := slot.Start.Hour()*60 + slot.Start.Minute()
		return sh*60+sm <= minutes && minutes <= eh*60+em
	}

	ranked := append([]TimeSlot(nil), slots...)
	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := inPreferred(ranked[i]), inPreferred(ranked[j])
		if pi != pj {
			return pi
		}
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Start.Before(ranked[j].Start)
	})
	if minCount > 0 && len(ranked) > minCount {
		ranked = ranked[:minCount]
	}
	return ranked
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
