package game

import "errors"

var (
	ErrInvalidRound     = errors.New("invalid round number")
	ErrUnknownLanguage  = errors.New("unknown language")
	ErrMalformedOutput  = errors.New("malformed strategy output")
	ErrNotParticipant   = errors.New("strategy did not play in match")
	ErrDuplicateID      = errors.New("duplicate strategy id")
	ErrSubmissionFrozen = errors.New("submission set is frozen")
)
