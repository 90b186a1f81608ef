package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mantonx/upnpcds/internal/api"
	"github.com/mantonx/upnpcds/internal/catalog"
)

// ItemSummary is the JSON form of a catalog node in API responses.
type ItemSummary struct {
	ID        string `json:"id"`
	ParentID  string `json:"parent_id"`
	Path      string `json:"path"`
	Title     string `json:"title"`
	Class     string `json:"class"`
	Container bool   `json:"container"`
}

func summarize(item *catalog.Item) ItemSummary {
	return ItemSummary{
		ID:        item.ID().String(),
		ParentID:  item.ParentID(),
		Path:      item.Path(),
		Title:     item.Title(),
		Class:     item.Class().String(),
		Container: item.IsContainer(),
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"items":            s.svc.Store().Len(),
		"system_update_id": s.svc.SystemUpdateID(),
		"repositories":     len(s.svc.Repositories()),
		"uptime":           time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleRefresh rescans the repositories covering ?path= and returns the
// items the rescan created.
func (s *Server) handleRefresh(c *gin.Context) {
	item, ok := s.lookupQueryPath(c)
	if !ok {
		return
	}

	created, err := s.svc.RouteBrowse(c.Request.Context(), item)
	if err != nil {
		api.RespondWithError(c, "Refresh failed", err)
		return
	}

	summaries := make([]ItemSummary, 0, len(created))
	for _, it := range created {
		summaries = append(summaries, summarize(it))
	}
	c.JSON(http.StatusOK, gin.H{
		"path":             item.Path(),
		"items":            summaries,
		"count":            len(summaries),
		"system_update_id": s.svc.SystemUpdateID(),
	})
}

// handleUpdate refreshes the node at ?path= in every covering repository.
func (s *Server) handleUpdate(c *gin.Context) {
	item, ok := s.lookupQueryPath(c)
	if !ok {
		return
	}

	if err := s.svc.RouteUpdate(c.Request.Context(), item); err != nil {
		api.RespondWithError(c, "Update failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"item":             summarize(item),
		"system_update_id": s.svc.SystemUpdateID(),
	})
}

// lookupQueryPath finds the node named by ?path= without creating anything.
func (s *Server) lookupQueryPath(c *gin.Context) (*catalog.Item, bool) {
	path := c.Query("path")
	if path == "" {
		api.RespondWithValidationError(c, "path query parameter is required")
		return nil, false
	}

	item, err := s.svc.Store().Lookup(path)
	if err != nil {
		api.RespondWithError(c, "Unknown path", err)
		return nil, false
	}
	return item, true
}
