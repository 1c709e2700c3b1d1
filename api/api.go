// Package api serves the latest scrape results and the run history over
// HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pevans/defrumours/history"
	"github.com/pevans/defrumours/render"
	"github.com/pevans/defrumours/rumours"
)

// ResultReader returns the most recent result set, or nil if there is none.
type ResultReader interface {
	ReadResult() (*rumours.ResultSet, error)
}

// RunLister lists recorded runs, newest first.
type RunLister interface {
	List(ctx context.Context, limit int) ([]history.Run, error)
}

// APIServer is a read-only HTTP view of the scraper's output.
type APIServer struct {
	results ResultReader
	runs    RunLister
}

// NewAPIServer creates a server. runs may be nil when no history is kept.
func NewAPIServer(results ResultReader, runs RunLister) *APIServer {
	return &APIServer{
		results: results,
		runs:    runs,
	}
}

// SetupRouter configures the Gin router with all API routes.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	api := router.Group("/api/v1")
	api.GET("/rumours", s.HandleListRumours)
	api.GET("/rumours.html", s.HandleRumoursHTML)
	api.GET("/runs", s.HandleListRuns)

	return router
}

// ListRumoursResponse is the response for GET /api/v1/rumours.
type ListRumoursResponse struct {
	GeneratedUTC rumours.Timestamp `json:"generated_utc"`
	Source       string            `json:"source"`
	Competition  string            `json:"competition,omitempty"`
	Season       string            `json:"season,omitempty"`
	Total        int               `json:"total"`
	Count        int               `json:"count"`
	Items        []rumours.Record  `json:"items"`
}

// ListRunsResponse is the response for GET /api/v1/runs.
type ListRunsResponse struct {
	Runs []history.Run `json:"runs"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// HandleListRumours handles GET /api/v1/rumours. Optional filters:
// min_probability (records with unknown probability are dropped) and club
// (case-insensitive match on either club).
func (s *APIServer) HandleListRumours(c *gin.Context) {
	rs, ok := s.latest(c)
	if !ok {
		return
	}

	items := rs.Items
	if param := c.Query("min_probability"); param != "" {
		minProb, err := strconv.Atoi(param)
		if err != nil || minProb < 0 || minProb > 100 {
			writeError(c, http.StatusBadRequest, "invalid_parameter",
				"Invalid min_probability parameter: must be an integer between 0 and 100")
			return
		}
		items = filterByProbability(items, minProb)
	}
	if club := strings.TrimSpace(c.Query("club")); club != "" {
		items = filterByClub(items, club)
	}

	c.JSON(http.StatusOK, ListRumoursResponse{
		GeneratedUTC: rs.GeneratedUTC,
		Source:       rs.Source,
		Competition:  rs.Competition,
		Season:       rs.Season,
		Total:        rs.Count,
		Count:        len(items),
		Items:        items,
	})
}

// HandleRumoursHTML handles GET /api/v1/rumours.html with the same rendering
// that is mailed.
func (s *APIServer) HandleRumoursHTML(c *gin.Context) {
	rs, ok := s.latest(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(render.Document("", rs.Items)))
}

// HandleListRuns handles GET /api/v1/runs. limit defaults to 20.
func (s *APIServer) HandleListRuns(c *gin.Context) {
	limit := 20
	if param := c.Query("limit"); param != "" {
		parsed, err := strconv.Atoi(param)
		if err != nil || parsed < 1 {
			writeError(c, http.StatusBadRequest, "invalid_parameter", "Invalid limit parameter")
			return
		}
		limit = min(parsed, 1000)
	}

	if s.runs == nil {
		c.JSON(http.StatusOK, ListRunsResponse{Runs: []history.Run{}})
		return
	}

	runs, err := s.runs.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal_error", "Failed to list runs: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, ListRunsResponse{Runs: runs})
}

// latest loads the current result set, writing an error response when there
// is none.
func (s *APIServer) latest(c *gin.Context) (*rumours.ResultSet, bool) {
	rs, err := s.results.ReadResult()
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal_error", "Failed to read results: "+err.Error())
		return nil, false
	}
	if rs == nil {
		writeError(c, http.StatusNotFound, "not_found", "No results yet")
		return nil, false
	}
	if rs.Items == nil {
		rs.Items = []rumours.Record{}
	}
	return rs, true
}

// filterByProbability keeps records with a known probability of at least
// minProb.
func filterByProbability(items []rumours.Record, minProb int) []rumours.Record {
	filtered := []rumours.Record{}
	for _, item := range items {
		if item.Probability != nil && *item.Probability >= minProb {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// filterByClub keeps records whose current or interested club contains club.
func filterByClub(items []rumours.Record, club string) []rumours.Record {
	club = strings.ToLower(club)
	filtered := []rumours.Record{}
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.CurrentClub), club) ||
			strings.Contains(strings.ToLower(item.InterestedClub), club) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
