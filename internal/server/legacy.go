package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	legacydomain "github.com/smallbiznis/entitlement/internal/legacy/domain"
)

func (s *Server) MigrateLegacy(c *gin.Context) {
	applicationID := applicationIDFrom(c)
	if applicationID == "" {
		AbortWithError(c, legacydomain.ErrInvalidApplication)
		return
	}

	report, err := s.legacySvc.Migrate(c.Request.Context(), applicationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) CleanupLegacy(c *gin.Context) {
	applicationID := applicationIDFrom(c)
	if applicationID == "" {
		AbortWithError(c, legacydomain.ErrInvalidApplication)
		return
	}

	count, err := s.legacySvc.Cleanup(c.Request.Context(), applicationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deactivated": count}})
}
