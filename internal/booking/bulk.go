package booking

import "time"

// ExpandRange returns every date between start and end (inclusive) whose
// weekday is in weekdays, in chronological order. start and end are
// YYYY-MM-DD; a bad bound or an empty weekday set yields nil.
func ExpandRange(start, end string, weekdays []time.Weekday) []string {
	from, err := time.Parse(DateLayout, start)
	if err != nil {
		return nil
	}
	to, err := time.Parse(DateLayout, end)
	if err != nil || to.Before(from) {
		return nil
	}

	want := make(map[time.Weekday]bool, len(weekdays))
	for _, d := range weekdays {
		want[d] = true
	}
	if len(want) == 0 {
		return nil
	}

	var out []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if want[d.Weekday()] {
			out = append(out, d.Format(DateLayout))
		}
	}
	return out
}

// ExpandBulk builds one pending booking per date, all sharing a fresh bulk id.
func ExpandBulk(f Facility, hhmm string, dates []string, description string) []Booking {
	if len(dates) == 0 {
		return nil
	}
	bulkID := NewBulkID()
	out := make([]Booking, 0, len(dates))
	for _, d := range dates {
		out = append(out, Booking{
			ID:          NewID(),
			Facility:    f,
			Date:        d,
			Time:        hhmm,
			Status:      StatusPending,
			BulkID:      bulkID,
			Description: description,
		})
	}
	return out
}
