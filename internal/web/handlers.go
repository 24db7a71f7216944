package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"thermolog/internal/alerts"
	"thermolog/internal/memguard"
	"thermolog/internal/models"
	"thermolog/internal/retention"
)

// Persister is the slice of the storage manager the API needs.
type Persister interface {
	Flush(entries []models.Reading) (int, error)
	Healthy() bool
}

// Server carries the handlers' shared state. All methods are read-only
// against the retention store; the mutation endpoints go through the
// alert engine's and persister's own locking.
type Server struct {
	store    *retention.Store
	alerts   *alerts.Engine
	guardian *memguard.Guardian
	persist  Persister
	logger   *logrus.Logger
}

func (s *Server) handleCurrent(c *gin.Context) {
	latest, ok := s.store.Latest()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no data"})
		return
	}

	c.JSON(http.StatusOK, CurrentResponse{
		T:                  latest.T,
		H:                  latest.H,
		Timestamp:          latest.TS,
		Datetime:           latest.Datetime(),
		MemoryUsagePercent: s.guardian.Usage(),
		EmergencyMode:      s.guardian.Emergency(),
		PersistentStorage:  s.persist.Healthy(),
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	rng := retention.Range(c.DefaultQuery("range", string(retention.RangeAll)))

	data, err := s.store.History(rng)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("invalid range %q", rng),
		})
		return
	}

	detailed, aggregated := s.store.Lens()
	c.JSON(http.StatusOK, HistoryResponse{
		Data: data,
		SampleInfo: SampleInfo{
			Range:             string(rng),
			DetailedCount:     detailed,
			AggregatedCount:   aggregated,
			DetailedCapacity:  s.store.DetailedCapacity(),
			AggregateCapacity: s.store.AggregateCapacity(),
		},
	})
}

// historyCacheKey keys cached history bodies on the requested range and
// the store generation, so every buffer mutation invalidates the cache.
func (s *Server) historyCacheKey(c *gin.Context) string {
	return fmt.Sprintf("history:%s:%d",
		c.DefaultQuery("range", string(retention.RangeAll)),
		s.store.Generation())
}

func (s *Server) handleAlertGet(a *alerts.Alert) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := a.Status()
		c.JSON(http.StatusOK, AlertStatusResponse{
			Threshold:      st.Threshold,
			Active:         st.Active,
			Acknowledged:   st.Acknowledged,
			NeedsAttention: st.NeedsAttention,
		})
	}
}

func (s *Server) handleAlertSet(a *alerts.Alert) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.PostForm("threshold")
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: fmt.Sprintf("invalid threshold %q", raw),
			})
			return
		}

		if err := a.SetThreshold(value); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: fmt.Sprintf("threshold %.1f out of range", value),
			})
			return
		}

		c.JSON(http.StatusOK, AlertSetResponse{Status: "ok", Threshold: value})
	}
}

func (s *Server) handleAlertAcknowledge(a *alerts.Alert) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.Acknowledge() {
			c.JSON(http.StatusOK, AcknowledgeResponse{Status: "acknowledged"})
			return
		}
		c.JSON(http.StatusOK, AcknowledgeResponse{Status: "no_active_alert"})
	}
}

func (s *Server) handleSave(c *gin.Context) {
	written, err := s.persist.Flush(s.store.SnapshotAggregated())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "save failed"})
		return
	}

	c.JSON(http.StatusOK, SaveResponse{
		Status:       "saved",
		RecordsSaved: written,
		MemoryUsage:  s.guardian.Usage(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
