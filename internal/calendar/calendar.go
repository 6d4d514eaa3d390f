// Package calendar provides the calendar collaborator: day summaries, event
// listings, conflict detection, and approved event creation against a local
// system of record.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MajordomoAI/majordomo/internal/tools"
)

// Event is a unified calendar event.
type Event struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Status   string    `json:"status"` // confirmed or tentative
	Provider string    `json:"provider"`
}

// Conflict is an overlap between two events.
type Conflict struct {
	Type        string    `json:"type"` // hard when both events are confirmed, else soft
	EventIDs    []string  `json:"event_ids"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Explanation string    `json:"explanation"`
}

// TimeSlot is a scored free interval.
type TimeSlot struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Score  float64   `json:"score"`
	Reason string    `json:"reason,omitempty"`
}

// DaySummary describes one day's schedule.
type DaySummary struct {
	Date      string     `json:"date"`
	Events    []Event    `json:"events"`
	Conflicts []Conflict `json:"conflicts"`
	Text      string     `json:"text"`
}

// Service is the collaborator contract consumed by the orchestration core.
type Service interface {
	Summary(ctx context.Context, mode, anchorDate string) (*DaySummary, error)
	ListEvents(ctx context.Context, mode, anchorDate string) ([]Event, error)
	Conflicts(ctx context.Context, mode, anchorDate string) ([]Conflict, error)
	Availability(ctx context.Context, anchorDate string, opts AvailabilityOptions) ([]TimeSlot, error)
	CreateEventFromApprovedAction(ctx context.Context, args tools.EventCreateArgs) (*Event, error)
}

// LocalService keeps events in memory, guarded by a mutex. It is the
// local-first system of record; provider sync adapters are out of scope.
type LocalService struct {
	mu     sync.RWMutex
	events map[string]Event
	loc    *time.Location
	now    func() time.Time
}

// NewLocalService creates an empty local calendar in the given location.
// A nil location defaults to UTC.
func NewLocalService(loc *time.Location) *LocalService {
	if loc == nil {
		loc = time.UTC
	}
	return &LocalService{
		events: make(map[string]Event),
		loc:    loc,
		now:    time.Now,
	}
}

// Seed adds events directly, for bootstrap and tests.
func (s *LocalService) Seed(events ...Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = "evt_" + uuid.NewString()[:8]
		}
		if ev.Status == "" {
			ev.Status = "confirmed"
		}
		if ev.Provider == "" {
			ev.Provider = "local"
		}
		s.events[ev.ID] = ev
	}
}

func (s *LocalService) resolveDay(anchorDate string) (time.Time, error) {
	if anchorDate == "" {
		n := s.now().In(s.loc)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc), nil
	}
	day, err := time.ParseInLocation("2006-01-02", anchorDate, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid anchor date %q: %w", anchorDate, err)
	}
	return day, nil
}

func (s *LocalService) eventsOn(day time.Time) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	next := day.AddDate(0, 0, 1)
	var out []Event
	for _, ev := range s.events {
		if ev.End.After(day) && ev.Start.Before(next) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// ListEvents returns the day's events sorted by start time.
func (s *LocalService) ListEvents(ctx context.Context, mode, anchorDate string) ([]Event, error) {
	day, err := s.resolveDay(anchorDate)
	if err != nil {
		return nil, err
	}
	return s.eventsOn(day), nil
}

// Conflicts returns overlaps between the day's events.
func (s *LocalService) Conflicts(ctx context.Context, mode, anchorDate string) ([]Conflict, error) {
	events, err := s.ListEvents(ctx, mode, anchorDate)
	if err != nil {
		return nil, err
	}
	return DetectConflicts(events), nil
}

// Availability returns the day's free slots, ranked and capped at five
// suggestions.
func (s *LocalService) Availability(ctx context.Context, anchorDate string, opts AvailabilityOptions) ([]TimeSlot, error) {
	day, err := s.resolveDay(anchorDate)
	if err != nil {
		return nil, err
	}
	slots, err := AvailableSlots(s.eventsOn(day), day, opts)
	if err != nil {
		return nil, err
	}
	return RankSuggestions(slots, 5, opts.WorkingHoursStart, opts.WorkingHoursEnd), nil
}

// Summary renders a day summary. Deep mode includes conflict detail; quick
// mode keeps the text to a single line.
func (s *LocalService) Summary(ctx context.Context, mode, anchorDate string) (*DaySummary, error) {
	day, err := s.resolveDay(anchorDate)
	if err != nil {
		return nil, err
	}
	events := s.eventsOn(day)
	conflicts := DetectConflicts(events)

	var sb strings.Builder
	if len(events) == 0 {
		sb.WriteString(fmt.Sprintf("No events on %s.", day.Format("2006-01-02")))
	} else {
		sb.WriteString(fmt.Sprintf("%d event(s) on %s:", len(events), day.Format("2006-01-02")))
		for _, ev := range events {
			sb.WriteString(fmt.Sprintf("\n- %s–%s %s", ev.Start.In(s.loc).Format("15:04"), ev.End.In(s.loc).Format("15:04"), ev.Title))
		}
	}
	if mode == "deep" && len(conflicts) > 0 {
		sb.WriteString(fmt.Sprintf("\n%d conflict(s):", len(conflicts)))
		for _, c := range conflicts {
			sb.WriteString("\n- " + c.Explanation)
		}
	}

	return &DaySummary{
		Date:      day.Format("2006-01-02"),
		Events:    events,
		Conflicts: conflicts,
		Text:      sb.String(),
	}, nil
}

// CreateEventFromApprovedAction materializes an approved calendar.event.create
// payload into a stored event. Arguments come from the action payload, never
// from the original user text.
func (s *LocalService) CreateEventFromApprovedAction(ctx context.Context, args tools.EventCreateArgs) (*Event, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04", args.Date+" "+padClock(args.StartTime), s.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid event start: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", args.Date+" "+padClock(args.EndTime), s.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid event end: %w", err)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("event end %s is not after start %s", args.EndTime, args.StartTime)
	}

	ev := Event{
		ID:       "evt_" + uuid.NewString()[:8],
		Title:    args.Title,
		Start:    start,
		End:      end,
		Status:   "confirmed",
		Provider: "local",
	}
	s.mu.Lock()
	s.events[ev.ID] = ev
	s.mu.Unlock()
	return &ev, nil
}

// padClock turns H:MM into HH:MM so a single layout parses both forms.
func padClock(clock string) string {
	if len(clock) == 4 && clock[1] == ':' {
		return "0" + clock
	}
	return clock
}
