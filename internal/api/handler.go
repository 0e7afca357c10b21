package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhishekmaher6699/tech-assessment-sde/internal/models"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/observability"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/repository"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/weatherapi"
)

type WeatherSource interface {
	Current(ctx context.Context, location string) (models.Observation, error)
}

type VideoSearcher interface {
	Search(ctx context.Context, query string) ([]models.Video, error)
}

// EventQueue receives newly stored observations. Enqueue must not block.
type EventQueue interface {
	Enqueue(obs models.Observation)
}

type Handler struct {
	repo    repository.ObservationRepository
	weather WeatherSource
	videos  VideoSearcher
	events  EventQueue
	metrics *observability.Metrics
}

func NewHandler(
	repo repository.ObservationRepository,
	weather WeatherSource,
	videos VideoSearcher,
	events EventQueue,
	metrics *observability.Metrics,
) *Handler {
	return &Handler{
		repo:    repo,
		weather: weather,
		videos:  videos,
		events:  events,
		metrics: metrics,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.welcome)
	r.GET("/get_weather/", h.getWeather)
	r.GET("/read_records/", h.readRecords)
	r.GET("/delete_record/", h.deleteRecord)
	r.PUT("/update_condition/:record_id", h.updateCondition)
	r.GET("/download_data/", h.downloadData)
	r.GET("/search_videos/", h.searchVideos)
	r.GET("/health", h.health)
	r.GET("/metrics", observability.Handler())
}

func (h *Handler) welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Weather API"})
}

func (h *Handler) getWeather(c *gin.Context) {
	location := strings.TrimSpace(c.Query("location"))
	if location == "" {
		abortWithDetail(c, http.StatusBadRequest, "location is required")
		return
	}

	obs, err := h.weather.Current(c.Request.Context(), location)
	switch {
	case errors.Is(err, weatherapi.ErrLocationNotFound):
		abortWithDetail(c, http.StatusNotFound,
			fmt.Sprintf("Location '%s' not found. Please provide a valid location.", location))
		return
	case errors.Is(err, weatherapi.ErrTransport):
		_ = c.Error(err)
		abortWithDetail(c, http.StatusNotImplemented,
			"An error occurred while fetching weather data. Please try again later.")
		return
	case err != nil:
		_ = c.Error(err)
		abortWithDetail(c, http.StatusInternalServerError, "An unexpected error occurred: "+err.Error())
		return
	}

	// the response never carries the stored id
	stored := obs
	outcome, err := h.repo.InsertIfNew(c.Request.Context(), &stored)
	if err != nil {
		h.metrics.StoreOutcomes.WithLabelValues("error").Inc()
		_ = c.Error(err)
		abortWithDetail(c, http.StatusInternalServerError, "An unexpected error occurred: "+err.Error())
		return
	}
	h.metrics.StoreOutcomes.WithLabelValues(outcome.String()).Inc()

	if outcome == repository.OutcomeInserted {
		h.events.Enqueue(stored)
	}

	c.JSON(http.StatusOK, obs)
}

func (h *Handler) readRecords(c *gin.Context) {
	records, err := h.repo.ListAll(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		abortWithDetail(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *Handler) deleteRecord(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("record_id"), 10, 64)
	if err != nil {
		abortWithDetail(c, http.StatusBadRequest, "record_id must be an integer")
		return
	}

	if err := h.repo.DeleteByID(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		abortWithDetail(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully"})
}

func (h *Handler) updateCondition(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("record_id"), 10, 64)
	if err != nil {
		abortWithDetail(c, http.StatusBadRequest, "record_id must be an integer")
		return
	}
	condition := strings.TrimSpace(c.Query("condition"))
	if condition == "" {
		abortWithDetail(c, http.StatusBadRequest, "condition is required")
		return
	}

	err = h.repo.UpdateCondition(c.Request.Context(), id, condition)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		abortWithDetail(c, http.StatusNotFound, "Record not found")
		return
	case err != nil:
		_ = c.Error(err)
		abortWithDetail(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Condition updated successfully"})
}

func (h *Handler) downloadData(c *gin.Context) {
	format, err := repository.ParseExportFormat(c.Query("format"))
	if err != nil {
		abortWithDetail(c, http.StatusBadRequest, "Invalid format. Use 'csv' or 'json'.")
		return
	}

	w := &attachmentWriter{c: c, format: format}
	if err := h.repo.Export(c.Request.Context(), w, format); err != nil {
		_ = c.Error(err)
		if !w.started {
			abortWithDetail(c, http.StatusBadRequest, "Error during data download: "+err.Error())
			return
		}
		// headers are gone; cut the body short
		c.Abort()
		return
	}
	h.metrics.Exports.WithLabelValues(string(format)).Inc()
}

func (h *Handler) searchVideos(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		abortWithDetail(c, http.StatusBadRequest, "query is required")
		return
	}

	videos, err := h.videos.Search(c.Request.Context(), query)
	resp := videosResponse{Videos: videos}
	if resp.Videos == nil {
		resp.Videos = []models.Video{}
	}
	if err != nil {
		_ = c.Error(err)
		resp.Error = err.Error()
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
