package logic

import "time"

// Window is a range of hours (inclusive both ends) on a set of weekdays
// during which fumigation pulses run.
type Window struct {
	Days     []time.Weekday
	FromHour int
	ToHour   int
}

func (w Window) covers(day time.Weekday, hour int) bool {
	if hour < w.FromHour || hour > w.ToHour {
		return false
	}
	for _, d := range w.Days {
		if d == day {
			return true
		}
	}
	return false
}

// Schedule decides when the fan runs regardless of sensors. A pulse starts
// on each of Minutes and lasts while the second-of-minute is <= HoldSeconds.
// The zero Schedule never fires.
type Schedule struct {
	Windows     []Window
	Minutes     []int
	HoldSeconds int
}

var (
	weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	weekends = []time.Weekday{time.Saturday, time.Sunday}
)

// DefaultSchedule runs a 30 second pulse on the hour and half hour: weekdays
// 07-09 and 15-22, weekends 07-22.
func DefaultSchedule() Schedule {
	return Schedule{
		Windows: []Window{
			{Days: weekdays, FromHour: 7, ToHour: 9},
			{Days: weekdays, FromHour: 15, ToHour: 22},
			{Days: weekends, FromHour: 7, ToHour: 22},
		},
		Minutes:     []int{0, 30},
		HoldSeconds: 30,
	}
}

// Active reports whether a fumigation pulse covers now.
func (s Schedule) Active(now time.Time) bool {
	if now.Second() > s.HoldSeconds {
		return false
	}
	onMinute := false
	for _, m := range s.Minutes {
		if now.Minute() == m {
			onMinute = true
			break
		}
	}
	if !onMinute {
		return false
	}
	for _, w := range s.Windows {
		if w.covers(now.Weekday(), now.Hour()) {
			return true
		}
	}
	return false
}
