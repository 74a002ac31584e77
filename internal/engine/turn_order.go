package engine

// handOff passes the turn to the other participant and resets the per-turn
// question state. Used by end turn and by a wrong guess.
func (s *Session) handOff() []Event {
	next, ok := s.opponent(s.TurnHolder)
	if !ok {
		return nil
	}

	s.TurnHolder = next.ID
	s.Pending = nil
	s.HasAskedThisTurn = false

	return []Event{{Type: EvtTurnChanged, To: s.everyone(), TurnHolder: next.ID}}
}

func (s *Session) opponent(id string) (*Participant, bool) {
	for _, pid := range s.Order {
		if pid != id {
			return s.Participants[pid], true
		}
	}
	return nil, false
}
