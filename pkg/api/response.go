package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pluginsync/pkg/store"
)

// respondError sends a structured JSON error response
func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"error": gin.H{
			"message": message,
			"status":  code,
		},
	})
	c.Abort()
}

// respondMachineNotFound sends a 404 naming the machine that has no report
func respondMachineNotFound(c *gin.Context, machine string) {
	respondError(c, http.StatusNotFound, store.ErrMachineNotFound.Error()+": "+machine)
}
