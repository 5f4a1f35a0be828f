package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/game/engine"
	"github.com/kasuganosora/novelsim/game/save"
	"github.com/kasuganosora/novelsim/game/session"
	mw "github.com/kasuganosora/novelsim/middleware"
	"github.com/kasuganosora/novelsim/plugin/hook"
)

// statusOf maps a domain error to its HTTP status. 0 means unexpected.
func statusOf(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound),
		errors.Is(err, save.ErrNotFound),
		errors.Is(err, session.ErrUnknownSession):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrConditionNotMet),
		errors.Is(err, engine.ErrInvalidItem):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrNotLoaded),
		errors.Is(err, engine.ErrNoNextNode),
		errors.Is(err, engine.ErrNoBattle),
		errors.Is(err, engine.ErrBattleActive):
		return http.StatusConflict
	case errors.Is(err, save.ErrInvalidSlot):
		return http.StatusBadRequest
	case errors.Is(err, hook.ErrInterrupt):
		return http.StatusForbidden
	}
	return 0
}

func writeError(c *gin.Context, logger *zap.Logger, err error) {
	if status := statusOf(err); status != 0 {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	logger.Error("request failed",
		zap.String("trace_id", mw.GetTraceID(c)),
		zap.String("session_id", c.Param("id")),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
