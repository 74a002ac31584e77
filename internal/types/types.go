// Package types is the JSON wire format spoken over the websocket.
//
// Client -> Server, every message is {"type": ..., ...}:
//
//	create_session   {displayName}
//	join_session     {code, displayName}
//	choose_character {code, characterId}
//	ask_question     {code, text}
//	answer_question  {code, answer: "Yes" | "No"}
//	mark_character   {code, characterId}
//	guess_character  {code, characterId}
//	end_turn         {code}
//	leave_session    {}
//
// Server -> Client: join_result plus one message per engine event type
// (session_created, session_update, game_start, turn_changed, error, ...).
package types

import (
	"errors"

	"github.com/DoyleJ11/guesswho-backend/internal/engine"
)

const (
	ActCreateSession   = "create_session"
	ActJoinSession     = "join_session"
	ActChooseCharacter = "choose_character"
	ActAskQuestion     = "ask_question"
	ActAnswerQuestion  = "answer_question"
	ActMarkCharacter   = "mark_character"
	ActGuessCharacter  = "guess_character"
	ActEndTurn         = "end_turn"
	ActLeaveSession    = "leave_session"
)

const MsgJoinResult = "join_result"

type ClientMessage struct {
	Type        string `json:"type"`
	Code        string `json:"code,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	CharacterID string `json:"characterId,omitempty"`
	Text        string `json:"text,omitempty"`
	Answer      string `json:"answer,omitempty"`
}

type ServerMessage struct {
	Type string `json:"type"`

	// Session code on session_created/join_result, error code on error.
	Code string `json:"code,omitempty"`

	OK                  *bool                    `json:"ok,omitempty"`
	Error               string                   `json:"error,omitempty"`
	ParticipantID       string                   `json:"participantId,omitempty"`
	DisplayName         string                   `json:"displayName,omitempty"`
	Side                engine.Side              `json:"side,omitempty"`
	Participants        []engine.ParticipantView `json:"participants,omitempty"`
	TurnHolder          string                   `json:"turnHolder,omitempty"`
	Text                string                   `json:"text,omitempty"`
	AskerDisplayName    string                   `json:"askerDisplayName,omitempty"`
	Answer              engine.Answer            `json:"answer,omitempty"`
	Marks               []string                 `json:"marks,omitempty"`
	CharacterID         string                   `json:"characterId,omitempty"`
	WinnerID            string                   `json:"winnerId,omitempty"`
	WinnerDisplayName   string                   `json:"winnerDisplayName,omitempty"`
	RevealedCharacterID string                   `json:"revealedCharacterId,omitempty"`
}

func FromEvent(ev engine.Event) ServerMessage {
	msg := ServerMessage{
		Type:                string(ev.Type),
		Code:                ev.Code,
		ParticipantID:       ev.ParticipantID,
		DisplayName:         ev.DisplayName,
		Side:                ev.Side,
		Participants:        ev.Participants,
		TurnHolder:          ev.TurnHolder,
		Text:                ev.Text,
		AskerDisplayName:    ev.AskerDisplayName,
		Answer:              ev.Answer,
		Marks:               ev.Marks,
		CharacterID:         ev.CharacterID,
		WinnerID:            ev.WinnerID,
		WinnerDisplayName:   ev.WinnerDisplayName,
		RevealedCharacterID: ev.RevealedCharacterID,
	}
	if ev.Type == engine.EvtError {
		msg.Code = string(engine.CodeOf(ev.Err))
	}
	return msg
}

// Error never carries err's text: internal errors can name secrets.
func Error(err error) ServerMessage {
	return ServerMessage{Type: string(engine.EvtError), Code: string(engine.CodeOf(err))}
}

func JoinResult(code, participantID string, side engine.Side, err error) ServerMessage {
	ok := err == nil
	msg := ServerMessage{Type: MsgJoinResult, OK: &ok}
	if err != nil {
		msg.Error = string(engine.CodeOf(err))
		return msg
	}
	msg.Code = code
	msg.ParticipantID = participantID
	msg.Side = side
	return msg
}

var ErrUnknownAction = errors.New("unknown action")

// ToCommand maps a turn action onto an engine command for participantID.
// create/join/leave are handled by the transport and are not commands.
func ToCommand(participantID string, m ClientMessage) (engine.Command, error) {
	cmd := engine.Command{ParticipantID: participantID}

	switch m.Type {
	case ActChooseCharacter:
		cmd.Type, cmd.CharacterID = engine.CmdChooseCharacter, m.CharacterID
	case ActAskQuestion:
		cmd.Type, cmd.Text = engine.CmdAskQuestion, m.Text
	case ActAnswerQuestion:
		answer, err := engine.ParseAnswer(m.Answer)
		if err != nil {
			return engine.Command{}, err
		}
		cmd.Type, cmd.Answer = engine.CmdAnswerQuestion, answer
	case ActMarkCharacter:
		cmd.Type, cmd.CharacterID = engine.CmdMarkCharacter, m.CharacterID
	case ActGuessCharacter:
		cmd.Type, cmd.CharacterID = engine.CmdGuessCharacter, m.CharacterID
	case ActEndTurn:
		cmd.Type = engine.CmdEndTurn
	default:
		return engine.Command{}, errors.Join(engine.ErrBadRequest, ErrUnknownAction)
	}
	return cmd, nil
}
