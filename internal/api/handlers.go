package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aleph70/reconcile-backend/internal/application/reconcile"
	"github.com/aleph70/reconcile-backend/internal/domain/model"
	"github.com/aleph70/reconcile-backend/internal/infrastructure/storage"
)

// recordResponse is the JSON shape of a reconciliation record.
type recordResponse struct {
	ID             string   `json:"id"`
	State          string   `json:"state"`
	Rule           string   `json:"rule"`
	Note           string   `json:"note,omitempty"`
	Residual       float64  `json:"residual"`
	MovementIDs    []string `json:"movement_ids"`
	InvoiceNumbers []string `json:"invoice_numbers"`
	CreatedAt      string   `json:"created_at"`
	ResolvedAt     string   `json:"resolved_at,omitempty"`
}

type recordListResponse struct {
	Records    []recordResponse `json:"records"`
	TotalCount int              `json:"total_count"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

type toleranceResponse struct {
	ToleranceEuros float64 `json:"tolerance_euros"`
}

type toleranceRequest struct {
	ToleranceEuros float64 `json:"tolerance_euros"`
}

type discardRequest struct {
	Note string `json:"note"`
}

type reconcileRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	DryRun bool   `json:"dry_run"`
}

func toRecordResponse(rec model.ReconciliationRecord) recordResponse {
	resp := recordResponse{
		ID:             rec.ID,
		State:          string(rec.State),
		Rule:           string(rec.Rule),
		Note:           rec.Note,
		Residual:       rec.Residual,
		MovementIDs:    rec.MovementIDs,
		InvoiceNumbers: rec.InvoiceNumbers,
		CreatedAt:      rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.ResolvedAt != nil {
		resp.ResolvedAt = rec.ResolvedAt.Format(time.RFC3339)
	}
	return resp
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.repo.GetStats(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to fetch stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) listRecords(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	state := c.Query("state")
	switch state {
	case "", string(model.ReconStatePending), string(model.ReconStateReconciled), string(model.ReconStateDiscarded):
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown state: " + state})
		return
	}

	result, err := s.repo.ListRecords(c.Request.Context(), storage.RecordFilters{
		State:  state,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list records", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list records"})
		return
	}

	resp := recordListResponse{
		Records:    make([]recordResponse, 0, len(result.Records)),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	}
	for _, rec := range result.Records {
		resp.Records = append(resp.Records, toRecordResponse(rec))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getRecord(c *gin.Context) {
	rec, err := s.repo.GetRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		s.logger.Error("failed to fetch record", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch record"})
		return
	}
	c.JSON(http.StatusOK, toRecordResponse(*rec))
}

func (s *Server) discardRecord(c *gin.Context) {
	var req discardRequest
	// An empty body means discarding without a note
	_ = c.ShouldBindJSON(&req)

	id := c.Param("id")
	if err := s.repo.DiscardRecord(c.Request.Context(), id, req.Note); err != nil {
		s.writeTransitionError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "state": string(model.ReconStateDiscarded)})
}

func (s *Server) reopenRecord(c *gin.Context) {
	id := c.Param("id")
	if err := s.repo.ReopenRecord(c.Request.Context(), id); err != nil {
		s.writeTransitionError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "state": string(model.ReconStatePending)})
}

func (s *Server) writeTransitionError(c *gin.Context, id string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case errors.Is(err, model.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error("record transition failed", "record", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update record"})
	}
}

func (s *Server) getTolerance(c *gin.Context) {
	c.JSON(http.StatusOK, toleranceResponse{ToleranceEuros: s.tolerances.Get()})
}

func (s *Server) putTolerance(c *gin.Context) {
	var req toleranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := s.tolerances.Set(req.ToleranceEuros); err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("failed to persist tolerance", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist tolerance"})
		return
	}
	c.JSON(http.StatusOK, toleranceResponse{ToleranceEuros: req.ToleranceEuros})
}

func (s *Server) runReconcile(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date: " + req.From})
		return
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date: " + req.To})
		return
	}

	result, err := s.orchestrator.Run(c.Request.Context(), reconcile.Options{
		From:   from,
		To:     to,
		DryRun: req.DryRun,
	})
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("reconciliation run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reconciliation failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}
