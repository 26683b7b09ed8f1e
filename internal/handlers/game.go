package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	constants "github.com/CodeAndHammer/wordly/internal/constants"
	models "github.com/CodeAndHammer/wordly/internal/models"
)

type newGameRequest struct {
	Difficulty string `json:"difficulty"`
}

func (app *App) newSolo(c *gin.Context) {
	var req newGameRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, constants.ErrorCodeInvalidRequestBody)
		return
	}
	s, err := app.Sessions.NewSolo(c.Request.Context(), app.playerID(c), models.ParseDifficulty(req.Difficulty))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"game": s.Snapshot()})
}

func (app *App) soloState(c *gin.Context) {
	s, err := app.Sessions.Solo(app.playerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game": s.Snapshot()})
}

func (app *App) soloLetter(c *gin.Context) {
	letter, ok := parseLetter(c)
	if !ok {
		badRequest(c, constants.ErrorCodeInvalidInput)
		return
	}
	s, err := app.Sessions.Solo(app.playerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	changed := s.AddLetter(letter)
	c.JSON(http.StatusOK, gin.H{"game": s.Snapshot(), "changed": changed})
}

func (app *App) soloDelete(c *gin.Context) {
	s, err := app.Sessions.Solo(app.playerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	changed := s.DeleteLetter()
	c.JSON(http.StatusOK, gin.H{"game": s.Snapshot(), "changed": changed})
}

func (app *App) soloSubmit(c *gin.Context) {
	playerID := app.playerID(c)
	res, err := app.Sessions.SubmitSolo(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	s, err := app.Sessions.Solo(playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"result": res, "game": s.Snapshot()}
	if res.Outcome.Terminal() {
		resp["stats"] = app.Sessions.Stats(playerID)
		resp["finalScore"] = s.FinalScore()
	}
	c.JSON(http.StatusOK, resp)
}

func (app *App) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stats": app.Sessions.Stats(app.playerID(c))})
}
