package engine

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/DoyleJ11/guesswho-backend/internal/roster"
)

type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

type State string

const (
	StateLobby   State = "lobby"
	StatePicking State = "picking"
	StatePlaying State = "playing"
	StateOver    State = "over"
)

type Answer string

const (
	AnswerYes Answer = "Yes"
	AnswerNo  Answer = "No"
)

func ParseAnswer(s string) (Answer, error) {
	switch Answer(s) {
	case AnswerYes, AnswerNo:
		return Answer(s), nil
	default:
		return "", fmt.Errorf("%w: answer must be Yes or No, got %q", ErrBadRequest, s)
	}
}

type Participant struct {
	ID                string
	DisplayName       string
	Side              Side
	ChosenCharacterID string
	Marks             map[string]struct{}
}

type PendingQuestion struct {
	AskerID string
	Text    string
}

type Session struct {
	Code             string
	Participants     map[string]*Participant
	Order            []string // participant ids in join order
	State            State
	TurnHolder       string
	Pending          *PendingQuestion
	HasAskedThisTurn bool
	WinnerID         string
}

type CommandType string

const (
	CmdJoin            CommandType = "Join"
	CmdChooseCharacter CommandType = "ChooseCharacter"
	CmdAskQuestion     CommandType = "AskQuestion"
	CmdAnswerQuestion  CommandType = "AnswerQuestion"
	CmdMarkCharacter   CommandType = "MarkCharacter"
	CmdGuessCharacter  CommandType = "GuessCharacter"
	CmdEndTurn         CommandType = "EndTurn"
	CmdLeave           CommandType = "Leave"
)

/*
	CmdJoin            -> EvtSessionUpdate -> EvtNeedChooseCharacter
	CmdChooseCharacter -> EvtSessionUpdate (-> EvtGameStart once both have chosen)
	CmdAskQuestion     -> EvtQuestionBroadcast + EvtQuestionDelivered
	CmdAnswerQuestion  -> EvtQuestionAnswered -> EvtActionWindowOpen
	CmdMarkCharacter   -> EvtMarksUpdated
	CmdGuessCharacter  -> EvtGameOver, or EvtWrongGuess -> EvtTurnChanged
	CmdEndTurn         -> EvtTurnChanged
	CmdLeave           -> EvtParticipantLeft -> EvtSessionUpdate
*/

type Command struct {
	Type          CommandType
	ParticipantID string
	DisplayName   string
	CharacterID   string
	Text          string
	Answer        Answer
}

type EventType string

const (
	EvtSessionCreated      EventType = "session_created"
	EvtSessionUpdate       EventType = "session_update"
	EvtNeedChooseCharacter EventType = "need_choose_character"
	EvtGameStart           EventType = "game_start"
	EvtQuestionBroadcast   EventType = "question_broadcast"
	EvtQuestionDelivered   EventType = "question_delivered"
	EvtQuestionAnswered    EventType = "question_answered"
	EvtActionWindowOpen    EventType = "action_window_open"
	EvtMarksUpdated        EventType = "marks_updated"
	EvtWrongGuess          EventType = "wrong_guess"
	EvtTurnChanged         EventType = "turn_changed"
	EvtGameOver            EventType = "game_over"
	EvtParticipantLeft     EventType = "participant_left"
	EvtError               EventType = "error"
)

// ParticipantView is what a participant may know about anyone in the
// session. The chosen character id is deliberately absent.
type ParticipantView struct {
	ID          string `json:"participantId"`
	DisplayName string `json:"displayName"`
	Side        Side   `json:"side"`
	HasChosen   bool   `json:"hasChosen"`
}

// Event is an outbound notification addressed to the participant ids in To.
type Event struct {
	Type EventType
	To   []string

	Code                string
	ParticipantID       string
	DisplayName         string
	Side                Side
	Participants        []ParticipantView
	TurnHolder          string
	Text                string
	AskerDisplayName    string
	Answer              Answer
	Marks               []string
	CharacterID         string
	WinnerID            string
	WinnerDisplayName   string
	RevealedCharacterID string
	Err                 error
}

// Rand is the randomness used to pick who takes the first turn.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

type Engine struct {
	roster *roster.Roster
	rng    Rand
}

// New builds an engine over r. A nil rng falls back to the process-wide
// math/rand source, which is safe for concurrent sessions.
func New(r *roster.Roster, rng Rand) *Engine {
	if rng == nil {
		rng = globalRand{}
	}
	return &Engine{roster: r, rng: rng}
}

// NewSession opens a session in the lobby state with its creator seated on
// side A.
func (e *Engine) NewSession(code, creatorID, displayName string) (*Session, []Event) {
	s := &Session{
		Code:         code,
		Participants: map[string]*Participant{},
		State:        StateLobby,
	}
	p := s.seat(creatorID, normalizeName(displayName, "Player 1"), SideA)

	events := []Event{
		{Type: EvtSessionCreated, To: []string{p.ID}, Code: code, ParticipantID: p.ID, Side: SideA},
		s.updateEvent(),
	}
	return s, events
}

// Apply validates cmd against s and, only when valid, mutates s. A rejected
// command leaves s exactly as it was.
func (e *Engine) Apply(s *Session, cmd Command) ([]Event, error) {
	if s.State == StateOver {
		return nil, ErrNotFound
	}

	if cmd.Type == CmdJoin {
		return e.join(s, cmd)
	}

	p, ok := s.Participants[cmd.ParticipantID]
	if !ok {
		return nil, fmt.Errorf("%w: participant %q is not in session %s", ErrNotFound, cmd.ParticipantID, s.Code)
	}

	switch cmd.Type {
	case CmdChooseCharacter:
		return e.chooseCharacter(s, p, cmd.CharacterID)
	case CmdAskQuestion:
		return e.askQuestion(s, p, cmd.Text)
	case CmdAnswerQuestion:
		return e.answerQuestion(s, p, cmd.Answer)
	case CmdMarkCharacter:
		return e.markCharacter(s, p, cmd.CharacterID)
	case CmdGuessCharacter:
		return e.guessCharacter(s, p, cmd.CharacterID)
	case CmdEndTurn:
		return e.endTurn(s, p)
	case CmdLeave:
		return e.leave(s, p), nil
	default:
		return nil, fmt.Errorf("%w: unsupported command %q", ErrBadRequest, cmd.Type)
	}
}

func (e *Engine) join(s *Session, cmd Command) ([]Event, error) {
	// Seats never reopen once the session has left the lobby.
	if s.State != StateLobby || len(s.Participants) >= 2 {
		return nil, ErrFull
	}
	if _, seated := s.Participants[cmd.ParticipantID]; seated {
		return nil, fmt.Errorf("%w: participant %q already seated", ErrFull, cmd.ParticipantID)
	}

	s.seat(cmd.ParticipantID, normalizeName(cmd.DisplayName, "Player 2"), SideB)
	s.State = StatePicking

	events := []Event{
		s.updateEvent(),
		{Type: EvtNeedChooseCharacter, To: s.everyone()},
	}
	return events, nil
}

func (e *Engine) chooseCharacter(s *Session, p *Participant, characterID string) ([]Event, error) {
	if !e.roster.Contains(characterID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCharacter, characterID)
	}
	if p.ChosenCharacterID != "" {
		return nil, ErrAlreadyChosen
	}

	p.ChosenCharacterID = characterID
	events := []Event{s.updateEvent()}

	if s.State == StatePicking && len(s.Participants) == 2 && s.allChosen() {
		s.TurnHolder = s.Order[e.rng.IntN(len(s.Order))]
		s.State = StatePlaying
		s.Pending = nil
		s.HasAskedThisTurn = false
		events = append(events, Event{Type: EvtGameStart, To: s.everyone(), TurnHolder: s.TurnHolder})
	}
	return events, nil
}

func (e *Engine) askQuestion(s *Session, p *Participant, text string) ([]Event, error) {
	if p.ID != s.TurnHolder {
		return nil, ErrNotYourTurn
	}
	if s.HasAskedThisTurn || s.Pending != nil {
		return nil, ErrQuestionAlreadyAsked
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty question", ErrBadRequest)
	}

	opponent, ok := s.opponent(p.ID)
	if !ok {
		return nil, fmt.Errorf("%w: turn holder %q has no opponent", ErrInternal, p.ID)
	}

	s.Pending = &PendingQuestion{AskerID: p.ID, Text: text}

	events := []Event{
		{Type: EvtQuestionBroadcast, To: s.everyone(), Text: text, AskerDisplayName: p.DisplayName},
		{Type: EvtQuestionDelivered, To: []string{opponent.ID}, Text: text, AskerDisplayName: p.DisplayName},
	}
	return events, nil
}

func (e *Engine) answerQuestion(s *Session, p *Participant, answer Answer) ([]Event, error) {
	if s.Pending == nil {
		return nil, ErrNoPendingQuestion
	}
	if p.ID == s.Pending.AskerID {
		return nil, ErrNotYourTurnToAnswer
	}
	if _, err := ParseAnswer(string(answer)); err != nil {
		return nil, err
	}

	q := *s.Pending
	s.Pending = nil
	s.HasAskedThisTurn = true

	events := []Event{
		{Type: EvtQuestionAnswered, To: []string{q.AskerID}, Text: q.Text, Answer: answer},
		{Type: EvtActionWindowOpen, To: []string{q.AskerID}},
	}
	return events, nil
}

func (e *Engine) markCharacter(s *Session, p *Participant, characterID string) ([]Event, error) {
	if s.State != StatePlaying || s.TurnHolder != p.ID {
		return nil, ErrNotYourTurn
	}
	if !e.roster.Contains(characterID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCharacter, characterID)
	}

	p.Marks[characterID] = struct{}{}

	// Marks are private: only the marker hears about them.
	return []Event{{Type: EvtMarksUpdated, To: []string{p.ID}, Marks: e.sortedMarks(p)}}, nil
}

func (e *Engine) guessCharacter(s *Session, p *Participant, characterID string) ([]Event, error) {
	if p.ID != s.TurnHolder {
		return nil, ErrNotYourTurn
	}
	if !e.roster.Contains(characterID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCharacter, characterID)
	}

	opponent, ok := s.opponent(p.ID)
	if !ok {
		return nil, fmt.Errorf("%w: turn holder %q has no opponent", ErrInternal, p.ID)
	}
	secret, ok := e.roster.Lookup(opponent.ChosenCharacterID)
	if !ok {
		return nil, fmt.Errorf("%w: chosen character %q of %q is not in the roster", ErrInternal, opponent.ChosenCharacterID, opponent.ID)
	}

	if characterID == secret.ID {
		s.State = StateOver
		s.WinnerID = p.ID
		s.Pending = nil

		return []Event{{
			Type:                EvtGameOver,
			To:                  s.everyone(),
			WinnerID:            p.ID,
			WinnerDisplayName:   p.DisplayName,
			RevealedCharacterID: secret.ID,
		}}, nil
	}

	events := []Event{{Type: EvtWrongGuess, To: []string{p.ID}, CharacterID: characterID}}
	return append(events, s.handOff()...), nil
}

func (e *Engine) endTurn(s *Session, p *Participant) ([]Event, error) {
	if p.ID != s.TurnHolder {
		return nil, ErrNotYourTurn
	}
	return s.handOff(), nil
}

func (e *Engine) leave(s *Session, p *Participant) []Event {
	s.unseat(p.ID)
	if len(s.Participants) == 0 {
		return nil
	}

	// The game can't go on with one player; freeze the turn loop.
	if s.State == StatePicking || s.State == StatePlaying {
		s.TurnHolder = ""
		s.Pending = nil
		s.HasAskedThisTurn = false
	}

	return []Event{
		{Type: EvtParticipantLeft, To: s.everyone(), ParticipantID: p.ID, DisplayName: p.DisplayName},
		s.updateEvent(),
	}
}
