package engine

import "errors"

var ErrNotFound = errors.New("session not found")
var ErrFull = errors.New("session is full")
var ErrNotYourTurn = errors.New("not your turn")
var ErrQuestionAlreadyAsked = errors.New("question already asked this turn")
var ErrNoPendingQuestion = errors.New("no pending question")
var ErrNotYourTurnToAnswer = errors.New("asker cannot answer own question")
var ErrInvalidCharacter = errors.New("invalid character")
var ErrAlreadyChosen = errors.New("character already chosen")
var ErrBadRequest = errors.New("malformed action")
var ErrInternal = errors.New("internal error")

// Code is the stable, client-facing name of an error.
type Code string

const (
	CodeNotFound             Code = "NotFound"
	CodeFull                 Code = "Full"
	CodeNotYourTurn          Code = "NotYourTurn"
	CodeQuestionAlreadyAsked Code = "QuestionAlreadyAsked"
	CodeNoPendingQuestion    Code = "NoPendingQuestion"
	CodeNotYourTurnToAnswer  Code = "NotYourTurnToAnswer"
	CodeInvalidCharacter     Code = "InvalidCharacter"
	CodeAlreadyChosen        Code = "AlreadyChosen"
	CodeBadRequest           Code = "BadRequest"
	CodeInternal             Code = "Internal"
)

var errorCodes = []struct {
	err  error
	code Code
}{
	{ErrNotFound, CodeNotFound},
	{ErrFull, CodeFull},
	{ErrNotYourTurn, CodeNotYourTurn},
	{ErrQuestionAlreadyAsked, CodeQuestionAlreadyAsked},
	{ErrNoPendingQuestion, CodeNoPendingQuestion},
	{ErrNotYourTurnToAnswer, CodeNotYourTurnToAnswer},
	{ErrInvalidCharacter, CodeInvalidCharacter},
	{ErrAlreadyChosen, CodeAlreadyChosen},
	{ErrBadRequest, CodeBadRequest},
	{ErrInternal, CodeInternal},
}

// CodeOf maps err (possibly wrapped) to its Code. Anything unrecognised is
// reported as Internal.
func CodeOf(err error) Code {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}
