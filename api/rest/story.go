package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/resource"
)

// Catalogue lists the stories that can be started.
type Catalogue interface {
	Catalogue(ctx context.Context) ([]resource.StorySummary, error)
}

// StoryHandler handles story catalogue endpoints.
type StoryHandler struct {
	stories Catalogue
	logger  *zap.Logger
}

func NewStoryHandler(stories Catalogue, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{stories: stories, logger: logger}
}

// List handles GET /api/stories.
func (h *StoryHandler) List(c *gin.Context) {
	list, err := h.stories.Catalogue(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []resource.StorySummary{}
	}
	c.JSON(http.StatusOK, gin.H{"stories": list})
}
