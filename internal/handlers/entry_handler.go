package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tally/internal/dates"
	apperrors "tally/internal/errors"
	"tally/internal/ledger"
	"tally/internal/models"
	"tally/internal/money"
	"tally/internal/pagination"
	"tally/internal/services"
)

// EntryHandler handles the ledger write path and entry lookups.
type EntryHandler struct {
	entryService ledger.EntryServicer
	auditService services.AuditServicer
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(entryService ledger.EntryServicer, auditService services.AuditServicer) *EntryHandler {
	return &EntryHandler{entryService: entryService, auditService: auditService}
}

// CreateEntryRequest represents the request payload for creating an entry.
// Amount may be sent as a JSON number or string with at most two decimals.
type CreateEntryRequest struct {
	Amount      decimal.Decimal  `json:"amount" swaggertype:"string" example:"12.50"`
	Type        models.EntryType `json:"type" binding:"required"`
	Category    string           `json:"category" binding:"required,max=100"`
	Date        string           `json:"date" binding:"required" example:"2024-03-05"`
	Description string           `json:"description" binding:"max=500"`
}

// EntryQuery holds the history filters and pagination of GET /entries.
type EntryQuery struct {
	pagination.PageRequest
	Type     string `form:"type" binding:"omitempty,entry_type"`
	Category string `form:"category"`
}

// EntryResponse represents an entry in the response
type EntryResponse struct {
	ID           string           `json:"id"`
	Amount       string           `json:"amount" example:"12.50"`
	Type         models.EntryType `json:"type"`
	Category     string           `json:"category"`
	CategoryIcon string           `json:"category_icon"`
	Description  string           `json:"description"`
	Date         string           `json:"date" example:"2024-03-05"`
	CreatedAt    time.Time        `json:"created_at"`
}

func newEntryResponse(e *models.Entry) EntryResponse {
	return EntryResponse{
		ID:           e.ID,
		Amount:       money.Format(e.Amount),
		Type:         e.Type,
		Category:     e.Category,
		CategoryIcon: e.CategoryIcon,
		Description:  e.Description,
		Date:         e.Date.UTC().Format(dates.Layout),
		CreatedAt:    e.CreatedAt,
	}
}

// CreateEntry records a new income or expense entry
// @Summary     Create an entry
// @Description Record an entry and add it to its day and month totals
// @Tags        entries
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateEntryRequest true "Entry details"
// @Success     201 {object} EntryResponse "Entry created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Concurrent update, retry"
// @Failure     422 {object} ErrorResponse "Unknown category"
// @Router      /entries [post]
func (h *EntryHandler) CreateEntry(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	date, err := dates.Parse(req.Date)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid date: "+err.Error()))
		return
	}

	entry, err := h.entryService.CreateEntry(c.Request.Context(), userID, ledger.CreateEntryInput{
		Amount:      req.Amount,
		Type:        req.Type,
		Category:    req.Category,
		Date:        date,
		Description: req.Description,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditCreateEntry, "entry", entry.ID, c.ClientIP(),
		map[string]interface{}{"type": entry.Type, "amount": entry.Amount, "category": entry.Category})

	c.JSON(http.StatusCreated, gin.H{"entry": newEntryResponse(entry)})
}

// GetEntries lists the user's entries newest first
// @Summary     Entry history
// @Tags        entries
// @Produce     json
// @Security    BearerAuth
// @Param       from      query string false "Start date (YYYY-MM-DD or RFC3339)"
// @Param       to        query string false "End date (YYYY-MM-DD or RFC3339)"
// @Param       type      query string false "income or expense"
// @Param       category  query string false "Category name"
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Page size (max 100)"
// @Success     200 {object} pagination.PageResponse[EntryResponse] "Entries"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /entries [get]
func (h *EntryHandler) GetEntries(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q EntryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	from, to, err := parseRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter := ledger.EntryFilter{Category: q.Category}
	if !from.IsZero() {
		filter.From = &from
	}
	if !to.IsZero() {
		filter.To = &to
	}
	if q.Type != "" {
		t := models.EntryType(q.Type)
		filter.Type = &t
	}

	result, err := h.entryService.GetEntryHistory(c.Request.Context(), userID, filter, q.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	items := make([]EntryResponse, 0, len(result.Data))
	for i := range result.Data {
		items = append(items, newEntryResponse(&result.Data[i]))
	}
	c.JSON(http.StatusOK, pagination.NewPageResponse(items, result.Page, result.PageSize, result.TotalItems))
}

// GetEntry returns a single entry
// @Summary     Get entry by ID
// @Tags        entries
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Entry ID"
// @Success     200 {object} EntryResponse "Entry"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Entry belongs to another user"
// @Failure     404 {object} ErrorResponse "Entry not found"
// @Router      /entries/{id} [get]
func (h *EntryHandler) GetEntry(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	entryID, err := parsePathID(c, "id", apperrors.ErrEntryNotFound)
	if err != nil {
		respondWithError(c, err)
		return
	}

	entry, err := h.entryService.GetEntryByID(c.Request.Context(), userID, entryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry": newEntryResponse(entry)})
}

// DeleteEntry removes an entry and its contribution to the totals
// @Summary     Delete an entry
// @Tags        entries
// @Security    BearerAuth
// @Param       id path string true "Entry ID"
// @Success     204 "Entry deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Entry belongs to another user"
// @Failure     404 {object} ErrorResponse "Entry not found"
// @Failure     409 {object} ErrorResponse "Concurrent update, retry"
// @Router      /entries/{id} [delete]
func (h *EntryHandler) DeleteEntry(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	entryID, err := parsePathID(c, "id", apperrors.ErrEntryNotFound)
	if err != nil {
		respondWithError(c, err)
		return
	}

	entry, err := h.entryService.DeleteEntry(c.Request.Context(), userID, entryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditDeleteEntry, "entry", entry.ID, c.ClientIP(),
		map[string]interface{}{"type": entry.Type, "amount": entry.Amount, "category": entry.Category})

	c.Status(http.StatusNoContent)
}
