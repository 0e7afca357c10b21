package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhishekmaher6699/tech-assessment-sde/internal/models"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/repository"
)

type videosResponse struct {
	Videos []models.Video `json:"videos"`
	Error  string         `json:"error,omitempty"`
}

// abortWithDetail writes the {"detail": ...} error body the dashboard expects.
func abortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// attachmentWriter commits the download headers on the first write, so an
// export that fails before producing output can still answer with an error.
type attachmentWriter struct {
	c       *gin.Context
	format  repository.ExportFormat
	started bool
}

func (w *attachmentWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.started = true
		w.c.Header("Content-Type", w.format.ContentType())
		w.c.Header("Content-Disposition", "attachment; filename="+w.format.Filename())
		w.c.Status(http.StatusOK)
	}
	return w.c.Writer.Write(p)
}
