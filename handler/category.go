package handler

import (
	"errors"
	"net/http"

	"github.com/AnTengye/invoicedesk/middleware"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/AnTengye/invoicedesk/pkg/logger"
	"github.com/AnTengye/invoicedesk/service"
	"github.com/gin-gonic/gin"
)

type CategoryHandler struct {
	categories *service.CategoryStore
}

func NewCategoryHandler(categories *service.CategoryStore) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

func (h *CategoryHandler) List(c *gin.Context) {
	respondOK(c, h.categories.List())
}

func (h *CategoryHandler) Create(c *gin.Context) {
	var in model.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	cat, err := h.categories.Create(in)
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	logger.Info(c.Request.Context(), "category created", "category_id", cat.ID, "code", cat.Code)
	respondCreated(c, cat)
}

func (h *CategoryHandler) Update(c *gin.Context) {
	var in model.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	cat, err := h.categories.Update(c.Param("id"), in)
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	logger.Info(c.Request.Context(), "category updated", "category_id", cat.ID)
	respondOK(c, cat)
}

func (h *CategoryHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.categories.Delete(id); err != nil {
		h.respondStoreError(c, err)
		return
	}
	logger.Info(c.Request.Context(), "category deleted", "category_id", id, "user_id", middleware.GetUserID(c))
	respondMessage(c, "Category deleted")
}

func (h *CategoryHandler) respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCategoryInvalid):
		respondError(c, http.StatusBadRequest, "Code and name are required")
	case errors.Is(err, service.ErrCategoryDuplicate):
		respondError(c, http.StatusConflict, "Category code already exists")
	case errors.Is(err, service.ErrCategoryNotFound):
		respondError(c, http.StatusNotFound, "Category not found")
	default:
		respondError(c, http.StatusInternalServerError, "Failed to save category")
	}
}
