package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"StoryStream/internal/domain"
)

type scrapeResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	NewCount int    `json:"newCount"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func (h *handlers) listStories(c *gin.Context) {
	records, err := h.stories.ListRecent(c.Request.Context())
	if err != nil {
		h.logger.Error("list stories failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Message: "Error fetching stories", Error: err.Error()})
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *handlers) scrape(c *gin.Context) {
	result, err := h.scraper.Trigger(c.Request.Context())
	switch {
	case errors.Is(err, domain.ErrRunInProgress), errors.Is(err, domain.ErrCoolingDown):
		c.JSON(http.StatusConflict, errorResponse{Message: "Scrape already running", Error: err.Error()})
	case err != nil:
		h.logger.Error("on-demand scrape failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Message: "Error scraping data", Error: err.Error()})
	default:
		c.JSON(http.StatusOK, scrapeResponse{
			Success:  true,
			Message:  "Scraped and saved successfully!",
			NewCount: result.Inserted,
		})
	}
}
