package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"

	"transaction-audit-engine/database"
	"transaction-audit-engine/mockdata"
	"transaction-audit-engine/models"
	"transaction-audit-engine/quota"
	"transaction-audit-engine/ruleset"

	"github.com/gin-gonic/gin"
)

// Handlers represents the HTTP handlers
type Handlers struct {
	db       *database.Database
	registry *ruleset.Registry
	usage    *quota.Tracker
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *database.Database, registry *ruleset.Registry, usage *quota.Tracker) *Handlers {
	return &Handlers{db: db, registry: registry, usage: usage}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "transaction-audit-engine",
	})
}

type auditRequest struct {
	OrganizationID string   `json:"organization_id" binding:"required"`
	TransactionIDs []string `json:"transaction_ids" binding:"required"`
}

// RunAudit audits a batch of transactions under the organization's active
// rule set.
func (h *Handlers) RunAudit(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	var req auditRequest
	if err := json.Unmarshal(body, &req); err != nil || req.OrganizationID == "" || len(req.TransactionIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organization_id and transaction_ids are required"})
		return
	}

	before := h.usage.Snapshot(req.OrganizationID)
	result := h.registry.Execute(c.Request.Context(), req.OrganizationID, req.TransactionIDs, body)
	after := h.usage.Snapshot(req.OrganizationID)

	// Units consumed by this invocation, reported so the quota gateway can
	// decrement allowances. Concurrent invocations for the same organization
	// may shift attribution between them; the totals are conserved.
	result.ProcessUnits = after.ProcessUnits - before.ProcessUnits

	c.JSON(http.StatusOK, result)
}

// GetAuditNote returns the stored audit note for a transaction.
func (h *Handlers) GetAuditNote(c *gin.Context) {
	transactionID := c.Param("transaction_id")

	note, err := h.db.GetAuditNote(c.Request.Context(), transactionID)
	if err == database.ErrAuditNoteNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audit note not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit note"})
		return
	}

	wire, err := note.MarshalWire()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to serialize audit note"})
		return
	}

	c.Data(http.StatusOK, "application/json", wire)
}

// GetAuditStats returns statistics about audited transactions.
func (h *Handlers) GetAuditStats(c *gin.Context) {
	total, err := h.db.CountAuditedTransactions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get audit stats"})
		return
	}

	stats := gin.H{
		"service":       "transaction-audit-engine",
		"total_audited": total,
	}
	if org := c.Query("organization_id"); org != "" {
		stats["usage"] = h.usage.Snapshot(org)
	}

	c.JSON(http.StatusOK, stats)
}

type mockRequest struct {
	OrganizationID string   `json:"organization_id" binding:"required"`
	Scenarios      []string `json:"scenarios"`
	Count          int      `json:"count"`
	Workers        int      `json:"workers"`
}

// GenerateMockData seeds synthetic transactions for the requested scenarios.
// Intended for staging and acceptance environments.
func (h *Handlers) GenerateMockData(c *gin.Context) {
	var req mockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organization_id is required"})
		return
	}
	if req.Count < 1 {
		req.Count = 1
	}
	if req.Workers < 1 {
		req.Workers = 10
	}

	scenarios := mockdata.AllScenarios
	if len(req.Scenarios) > 0 {
		scenarios = scenarios[:0:0]
		for _, s := range req.Scenarios {
			scenarios = append(scenarios, mockdata.Scenario(s))
		}
	}

	var generated int64
	err := mockdata.Bulk(c.Request.Context(), req.OrganizationID, scenarios, req.Count, req.Workers,
		func(t *models.Transaction) error {
			if err := h.db.InsertTransaction(c.Request.Context(), t); err != nil {
				return err
			}
			atomic.AddInt64(&generated, 1)
			return nil
		})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate mock data: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"organization_id": req.OrganizationID,
		"scenarios":       scenarios,
		"per_scenario":    req.Count,
		"generated":       generated,
	})
}
