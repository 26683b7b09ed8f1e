package room

import (
	"errors"

	constants "github.com/CodeAndHammer/wordly/internal/constants"
	store "github.com/CodeAndHammer/wordly/internal/store"
)

var (
	ErrRoomNotFound      = store.ErrNotFound
	ErrRoomNotJoinable   = errors.New(constants.ErrorCodeRoomNotJoinable)
	ErrRoomCodeConflict  = errors.New(constants.ErrorCodeRoomCodeConflict)
	ErrInvalidRoomCode   = errors.New(constants.ErrorCodeInvalidRoomCode)
	ErrUnauthorized      = errors.New(constants.ErrorCodeUnauthorized)
	ErrPlayerNotFound    = errors.New(constants.ErrorCodePlayerNotFound)
	ErrPlayersNotReady   = errors.New(constants.ErrorCodePlayersNotReady)
	ErrInvalidTransition = errors.New(constants.ErrorCodeInvalidTransition)
	ErrInvalidProgress   = errors.New(constants.ErrorCodeInvalidProgress)
)
