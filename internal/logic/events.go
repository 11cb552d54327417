package logic

import "time"

// Changes compares attributes taken before and after an input event and
// returns the events to announce, source change first.
func Changes(before, after Attributes, now time.Time) []Event {
	var events []Event

	if after.ActiveSource != before.ActiveSource {
		events = append(events, Event{
			Timestamp:      now,
			Type:           EventSourceChanged,
			Source:         after.ActiveSource,
			PreviousSource: before.ActiveSource,
			Reason:         after.SourceReason,
			Level:          after.PelletLevel,
			PreviousLevel:  before.PelletLevel,
		})
	}

	if after.PelletLevel != before.PelletLevel {
		events = append(events, Event{
			Timestamp:      now,
			Type:           EventLevelChanged,
			Source:         after.ActiveSource,
			PreviousSource: before.ActiveSource,
			Reason:         after.SourceReason,
			Level:          after.PelletLevel,
			PreviousLevel:  before.PelletLevel,
		})
	}

	return events
}
