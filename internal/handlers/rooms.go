package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	constants "github.com/CodeAndHammer/wordly/internal/constants"
	models "github.com/CodeAndHammer/wordly/internal/models"
	room "github.com/CodeAndHammer/wordly/internal/room"
)

type createRoomRequest struct {
	Name       string `json:"name"`
	Code       string `json:"code"`
	Difficulty string `json:"difficulty"`
	PlayerName string `json:"playerName"`
}

type joinRoomRequest struct {
	PlayerName string `json:"playerName"`
}

func (app *App) listRooms(c *gin.Context) {
	rooms, err := app.Rooms.AvailableRooms(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": lo.Map(rooms, func(r *models.Room, _ int) *models.Room { return r.Redacted() })})
}

func (app *App) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, constants.ErrorCodeInvalidRequestBody)
		return
	}
	host := room.Identity{ID: app.playerID(c), Name: req.PlayerName}
	r, err := app.Rooms.CreateRoom(c.Request.Context(), host, room.CreateOptions{
		Name:       req.Name,
		Code:       req.Code,
		Difficulty: models.ParseDifficulty(req.Difficulty),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": r.Redacted()})
}

func (app *App) getRoom(c *gin.Context) {
	r, err := app.Rooms.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": r.Redacted()})
}

func (app *App) joinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, constants.ErrorCodeInvalidRequestBody)
		return
	}
	who := room.Identity{ID: app.playerID(c), Name: req.PlayerName}
	r, err := app.Rooms.JoinRoom(c.Request.Context(), c.Param("id"), who)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": r.Redacted()})
}

func (app *App) toggleReady(c *gin.Context) {
	r, err := app.Rooms.ToggleReady(c.Request.Context(), c.Param("id"), app.playerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": r.Redacted()})
}

// startGame draws a word for the room's difficulty and starts the round.
func (app *App) startGame(c *gin.Context) {
	ctx := c.Request.Context()
	roomID, playerID := c.Param("id"), app.playerID(c)

	current, err := app.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	if current.CreatedBy != playerID {
		respondError(c, room.ErrUnauthorized)
		return
	}
	word, err := app.Words.Word(ctx, current.Difficulty)
	if err != nil {
		respondError(c, err)
		return
	}
	r, err := app.Rooms.StartGame(ctx, roomID, playerID, word)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": r.Redacted()})
}

func (app *App) roomLetter(c *gin.Context) {
	letter, ok := parseLetter(c)
	if !ok {
		badRequest(c, constants.ErrorCodeInvalidInput)
		return
	}
	snap, err := app.Driver.AddLetter(c.Request.Context(), c.Param("id"), app.playerID(c), letter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"board": snap})
}

func (app *App) roomDelete(c *gin.Context) {
	snap, err := app.Driver.DeleteLetter(c.Request.Context(), c.Param("id"), app.playerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"board": snap})
}

func (app *App) roomSubmit(c *gin.Context) {
	ctx := c.Request.Context()
	roomID, playerID := c.Param("id"), app.playerID(c)
	res, r, err := app.Driver.Submit(ctx, roomID, playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	board, err := app.Driver.Board(ctx, roomID, playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "board": board, "room": r.Redacted()})
}

func (app *App) roomBoard(c *gin.Context) {
	snap, err := app.Driver.Board(c.Request.Context(), c.Param("id"), app.playerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"board": snap})
}

func (app *App) leaveRoom(c *gin.Context) {
	r, err := app.Driver.Leave(c.Request.Context(), c.Param("id"), app.playerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if r == nil {
		c.JSON(http.StatusOK, gin.H{"closed": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": false, "room": r.Redacted()})
}
