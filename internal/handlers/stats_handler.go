package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tally/internal/dates"
	apperrors "tally/internal/errors"
	"tally/internal/ledger"
	"tally/internal/models"
	"tally/internal/money"
)

// StatsHandler serves aggregate queries over the ledger.
type StatsHandler struct {
	statsService ledger.StatsServicer
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(statsService ledger.StatsServicer) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// BalanceResponse is the income and expense total of a date range.
type BalanceResponse struct {
	From    string `json:"from" example:"2024-03-01"`
	To      string `json:"to" example:"2024-03-31"`
	Income  string `json:"income" example:"100.00"`
	Expense string `json:"expense" example:"40.00"`
	Net     string `json:"net" example:"60.00"`
}

// CategoryTotalResponse is one row of a category breakdown.
type CategoryTotalResponse struct {
	Category     string           `json:"category"`
	CategoryIcon string           `json:"category_icon"`
	Type         models.EntryType `json:"type"`
	Total        string           `json:"total" example:"40.00"`
}

// PeriodResponse is one row of a time series.
type PeriodResponse struct {
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Day     int    `json:"day,omitempty"`
	Income  string `json:"income" example:"100.00"`
	Expense string `json:"expense" example:"0.00"`
}

// TimeSeriesQuery selects the periods of GET /history/data.
type TimeSeriesQuery struct {
	Timeframe string `form:"timeframe" binding:"required,timeframe"`
	Year      int    `form:"year" binding:"required,min=1,max=9999"`
	Month     int    `form:"month" binding:"omitempty,min=1,max=12"`
}

// GetBalance sums income and expense over a date range
// @Summary     Balance over a date range
// @Tags        stats
// @Produce     json
// @Security    BearerAuth
// @Param       from query string true "Start date (YYYY-MM-DD or RFC3339)"
// @Param       to   query string true "End date, inclusive"
// @Success     200 {object} BalanceResponse "Balance"
// @Failure     400 {object} ErrorResponse "Invalid or too large range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /stats/balance [get]
func (h *StatsHandler) GetBalance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	from, to, err := parseRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	balance, err := h.statsService.GetBalance(c.Request.Context(), userID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{
		From:    from.Format(dates.Layout),
		To:      to.Format(dates.Layout),
		Income:  money.Format(balance.Income),
		Expense: money.Format(balance.Expense),
		Net:     money.Format(balance.Income - balance.Expense),
	})
}

// GetCategoryBreakdown totals entries per category over a date range
// @Summary     Totals per category
// @Tags        stats
// @Produce     json
// @Security    BearerAuth
// @Param       from query string true "Start date (YYYY-MM-DD or RFC3339)"
// @Param       to   query string true "End date, inclusive"
// @Success     200 {array}  CategoryTotalResponse "Totals, largest first"
// @Failure     400 {object} ErrorResponse "Invalid or too large range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /stats/categories [get]
func (h *StatsHandler) GetCategoryBreakdown(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	from, to, err := parseRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	totals, err := h.statsService.GetCategoryBreakdown(c.Request.Context(), userID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	out := make([]CategoryTotalResponse, 0, len(totals))
	for _, t := range totals {
		out = append(out, CategoryTotalResponse{
			Category:     t.Category,
			CategoryIcon: t.CategoryIcon,
			Type:         t.Type,
			Total:        money.Format(t.Total),
		})
	}
	c.JSON(http.StatusOK, gin.H{"categories": out})
}

// GetAvailableYears lists the years that have ledger activity
// @Summary     Years with data
// @Tags        history
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string][]int "Years, ascending"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /history/periods [get]
func (h *StatsHandler) GetAvailableYears(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	years, err := h.statsService.GetAvailableYears(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"years": years})
}

// GetTimeSeries returns daily totals of a month or monthly totals of a year
// @Summary     Time series
// @Description timeframe=month returns one row per day of the month, timeframe=year one row per month. Periods without entries are zero rows.
// @Tags        history
// @Produce     json
// @Security    BearerAuth
// @Param       timeframe query string true  "month or year"
// @Param       year      query int    true  "Year"
// @Param       month     query int    false "Month (1-12), required for timeframe=month"
// @Success     200 {array}  PeriodResponse "Periods in calendar order"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /history/data [get]
func (h *StatsHandler) GetTimeSeries(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q TimeSeriesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	query := ledger.TimeSeriesQuery{Granularity: ledger.GranularityMonth, Year: q.Year}
	if q.Timeframe == "month" {
		if q.Month == 0 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "month is required for timeframe=month"))
			return
		}
		query.Granularity = ledger.GranularityDay
		query.Month = q.Month
	}

	periods, err := h.statsService.GetTimeSeries(c.Request.Context(), userID, query)
	if err != nil {
		respondWithError(c, err)
		return
	}

	out := make([]PeriodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, PeriodResponse{
			Year:    p.Year,
			Month:   p.Month,
			Day:     p.Day,
			Income:  money.Format(p.Income),
			Expense: money.Format(p.Expense),
		})
	}
	c.JSON(http.StatusOK, gin.H{"timeframe": q.Timeframe, "data": out})
}
