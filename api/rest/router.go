package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Register mounts the REST surface on api. auth guards every route that
// acts on an existing session.
func Register(api *gin.RouterGroup, stories *StoryHandler, game *GameHandler, auth gin.HandlerFunc) {
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": game.sessions.Count()})
	})
	api.GET("/stories", stories.List)
	api.POST("/sessions", game.Create)
	api.POST("/sessions/from-save/:saveId", game.FromSave)

	s := api.Group("/sessions/:id", auth)
	s.GET("", game.Get)
	s.POST("/choices", game.Choose)
	s.POST("/continue", game.Continue)
	s.GET("/world", game.World)
	s.POST("/items/use", game.UseItem)
	s.POST("/items/equip", game.EquipItem)
	s.POST("/items/unequip", game.UnequipItem)
	s.POST("/battle", game.StartBattle)
	s.POST("/battle/actions", game.BattleAction)
	s.GET("/saves", game.ListSaves)
	s.POST("/saves", game.Save)
	s.DELETE("/saves/:slot", game.DeleteSave)
}
