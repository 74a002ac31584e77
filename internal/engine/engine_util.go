package engine

import (
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const maxDisplayNameRunes = 24

// FindEvent returns the first event of the given type.
func FindEvent(events []Event, eventType EventType) (Event, bool) {
	for _, event := range events {
		if event.Type == eventType {
			return event, true
		}
	}
	return Event{}, false
}

func ContainsEvent(events []Event, eventType EventType) bool {
	_, ok := FindEvent(events, eventType)
	return ok
}

func (s *Session) Over() bool  { return s.State == StateOver }
func (s *Session) Empty() bool { return len(s.Participants) == 0 }

// Views lists participants in join order without their secrets.
func (s *Session) Views() []ParticipantView {
	views := make([]ParticipantView, 0, len(s.Order))
	for _, id := range s.Order {
		p := s.Participants[id]
		views = append(views, ParticipantView{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Side:        p.Side,
			HasChosen:   p.ChosenCharacterID != "",
		})
	}
	return views
}

func (s *Session) seat(id, name string, side Side) *Participant {
	p := &Participant{ID: id, DisplayName: name, Side: side, Marks: map[string]struct{}{}}
	s.Participants[id] = p
	s.Order = append(s.Order, id)
	return p
}

func (s *Session) unseat(id string) {
	delete(s.Participants, id)
	s.Order = slices.DeleteFunc(s.Order, func(pid string) bool { return pid == id })
}

func (s *Session) everyone() []string {
	return slices.Clone(s.Order)
}

func (s *Session) allChosen() bool {
	for _, p := range s.Participants {
		if p.ChosenCharacterID == "" {
			return false
		}
	}
	return true
}

func (s *Session) updateEvent() Event {
	return Event{Type: EvtSessionUpdate, To: s.everyone(), Participants: s.Views()}
}

// sortedMarks returns p's marks in roster order.
func (e *Engine) sortedMarks(p *Participant) []string {
	marks := make([]string, 0, len(p.Marks))
	for id := range p.Marks {
		marks = append(marks, id)
	}
	slices.SortFunc(marks, func(a, b string) int {
		return e.roster.Position(a) - e.roster.Position(b)
	})
	return marks
}

func normalizeName(name, fallback string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return fallback
	}
	if utf8.RuneCountInString(name) > maxDisplayNameRunes {
		name = strings.TrimSpace(string([]rune(name)[:maxDisplayNameRunes]))
	}
	return name
}
