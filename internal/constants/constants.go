package constants

import "time"

const (
	MaxGuesses = 6
	WordLength = 5
)

const (
	PointsCorrect = 10
	PointsPresent = 2
	// WinBonusPerRow is paid for the winning row and every row left unused.
	WinBonusPerRow = 50
)

const (
	TileFlipStagger  = 200 * time.Millisecond
	TileFlipDuration = 400 * time.Millisecond
)

const (
	RoomCodeLength   = 6
	MaxPlayerNameLen = 24
	MaxRoomNameLen   = 40
)

const (
	PlayerCookieName = "player_id"
	CSRFCookieName   = "csrf_token"
	CSRFHeaderName   = "X-CSRF-Token"
)

const (
	RouteHealthz   = "/healthz"
	RouteGame      = "/api/game"
	RouteStats     = "/api/stats"
	RouteRooms     = "/api/rooms"
	RoomFeedSuffix = "/ws"
)

const (
	ErrorCodeGameOver           = "game_over"
	ErrorCodeIncompleteGuess    = "incomplete_guess"
	ErrorCodeInvalidWord        = "invalid_word"
	ErrorCodeInvalidInput       = "invalid_input"
	ErrorCodeSubmissionPending  = "submission_pending"
	ErrorCodeNoActiveGame       = "no_active_game"
	ErrorCodeRoomNotFound       = "room_not_found"
	ErrorCodeRoomNotJoinable    = "room_not_joinable"
	ErrorCodeRoomCodeConflict   = "room_code_conflict"
	ErrorCodeInvalidRoomCode    = "invalid_room_code"
	ErrorCodeUnauthorized       = "unauthorized"
	ErrorCodePlayerNotFound     = "player_not_found"
	ErrorCodePlayersNotReady    = "players_not_ready"
	ErrorCodeInvalidTransition  = "invalid_transition"
	ErrorCodeInvalidProgress    = "invalid_progress"
	ErrorCodeStoreUnavailable   = "store_unavailable"
	ErrorCodeWordUnavailable    = "word_unavailable"
	ErrorCodeTooManyRequests    = "too_many_requests"
	ErrorCodeInvalidCSRFToken   = "invalid_csrf_token"
	ErrorCodeInvalidRequestBody = "invalid_request"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
)
