package postures

import "time"

// DayBucket is one calendar day of a posture gallery.
type DayBucket struct {
	// Label is the relative day label: "today", "yesterday",
	// "day before yesterday", or a full weekday date for older days.
	Label string `json:"label"`

	// Date is the calendar day the bucket covers, at midnight local time.
	Date time.Time `json:"date"`

	// Images holds the day's images in the order they appeared in the input.
	Images []PostureImage `json:"images"`
}

// GroupByDate buckets a flat image list by calendar day relative to now.
// Every input image lands in exactly one bucket; within a bucket the input
// order is preserved (callers pre-sort newest first). Buckets appear in
// first-occurrence order of their day.
//
// Pure function: no clock access, no mutation of the input.
func GroupByDate(images []PostureImage, now time.Time) []DayBucket {
	var buckets []DayBucket
	index := make(map[time.Time]int)

	for _, img := range images {
		day := truncateToDay(img.TakenAt.In(now.Location()))

		i, ok := index[day]
		if !ok {
			i = len(buckets)
			index[day] = i
			buckets = append(buckets, DayBucket{
				Label: dayLabel(day, truncateToDay(now)),
				Date:  day,
			})
		}
		buckets[i].Images = append(buckets[i].Images, img)
	}
	return buckets
}

// dayLabel derives the relative label for a calendar day against today.
func dayLabel(day, today time.Time) string {
	switch daysBetween(day, today, 3) {
	case 0:
		return "today"
	case 1:
		return "yesterday"
	case 2:
		return "day before yesterday"
	default:
		return day.Format("Monday, January 2, 2006")
	}
}

// daysBetween counts whole calendar days from day up to today, capped at
// limit. Counted in calendar days, not elapsed hours: a DST transition day
// is 23 or 25 hours long and must still count as one day. Future days
// (clock skew between client and server) count as 0 so they label as today.
func daysBetween(day, today time.Time, limit int) int {
	d := 0
	for t := day; t.Before(today) && d < limit; t = t.AddDate(0, 0, 1) {
		d++
	}
	return d
}

// truncateToDay resets a timestamp to midnight in its own location.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
