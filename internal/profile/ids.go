package profile

import (
	"fmt"
	"time"
)

// Goal and quest identifiers are time-derived so two integration runs never
// collide and ids sort by creation time.
func NewGoalID(now time.Time) string {
	return fmt.Sprintf("goal_%d", now.UnixMilli())
}

func NewQuestID(now time.Time, n int) string {
	return fmt.Sprintf("quest_%d_%d", now.UnixMilli(), n)
}

// NextRevision returns a revision strictly greater than prev. Wall-clock
// milliseconds are used when they are ahead, so revisions roughly track
// time; prev+1 covers clock skew and same-millisecond writes.
func NextRevision(prev int64, now time.Time) int64 {
	r := now.UnixMilli()
	if r <= prev {
		r = prev + 1
	}
	return r
}

// LocalDate renders now as a YYYY-MM-DD calendar date in the user's
// timezone, falling back to UTC when the zone is unset or unknown.
func LocalDate(timezone string, now time.Time) string {
	loc := time.UTC
	if timezone != "" {
		if parsed, err := time.LoadLocation(timezone); err == nil {
			loc = parsed
		}
	}
	return now.In(loc).Format("2006-01-02")
}
