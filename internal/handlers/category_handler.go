package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/services"
)

// CategoryHandler handles category-related requests
type CategoryHandler struct {
	categoryService services.CategoryServicer
	auditService    services.AuditServicer
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService services.CategoryServicer, auditService services.AuditServicer) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, auditService: auditService}
}

// CreateCategoryRequest represents the request payload for creating a category
type CreateCategoryRequest struct {
	Name string              `json:"name" binding:"required,max=100"`
	Type models.CategoryType `json:"type" binding:"required,category_type"`
	Icon string              `json:"icon" binding:"max=50"`
}

// CategoryQuery holds the list filters and pagination of GET /categories.
type CategoryQuery struct {
	pagination.PageRequest
	Type string `form:"type" binding:"omitempty,category_type"`
}

// DeleteCategoryQuery identifies the category to delete.
type DeleteCategoryQuery struct {
	Name string `form:"name" binding:"required"`
	Type string `form:"type" binding:"required,category_type"`
}

// CreateCategory handles the creation of a new category
// @Summary     Create a category
// @Description Create a category entries of the same type can be filed under
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateCategoryRequest true "Category details"
// @Success     201 {object} models.Category "Category created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Duplicate category"
// @Router      /categories [post]
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	category, err := h.categoryService.CreateCategory(c.Request.Context(), userID, req.Name, req.Type, req.Icon)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditCreateCategory, "category", category.ID, c.ClientIP(),
		map[string]interface{}{"name": category.Name, "type": category.Type})

	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// GetUserCategories lists the user's categories
// @Summary     Get all categories
// @Description Get the authenticated user's categories, optionally of one type
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       type      query string false "Filter by category type (income/expense)"
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Page size (max 100)"
// @Success     200 {object} pagination.PageResponse[models.Category] "Categories"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /categories [get]
func (h *CategoryHandler) GetUserCategories(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q CategoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	var categoryType *models.CategoryType
	if q.Type != "" {
		t := models.CategoryType(q.Type)
		categoryType = &t
	}

	result, err := h.categoryService.GetUserCategories(c.Request.Context(), userID, categoryType, q.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// DeleteCategory removes a category. Entries filed under it are kept.
// @Summary     Delete a category
// @Tags        categories
// @Security    BearerAuth
// @Param       name query string true "Category name"
// @Param       type query string true "Category type (income/expense)"
// @Success     204 "Category deleted"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories [delete]
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q DeleteCategoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	if err := h.categoryService.DeleteCategory(c.Request.Context(), userID, q.Name, models.CategoryType(q.Type)); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditDeleteCategory, "category", "", c.ClientIP(),
		map[string]interface{}{"name": q.Name, "type": q.Type})

	c.Status(http.StatusNoContent)
}
