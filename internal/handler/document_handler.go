package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/docuveda/lab-service/internal/model"
	"github.com/docuveda/lab-service/pkg/database"
	"github.com/docuveda/lab-service/pkg/logger"
	"github.com/docuveda/lab-service/prometheus"
)

// ListDocuments returns the authenticated user's documents
func ListDocuments(c echo.Context) error {
	user, ok := c.Get("user").(*model.User)
	if !ok {
		return apiError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var documents []model.Document
	if err := database.GetDB().Where("owner_id = ?", user.ID).Order("updated_at desc").Find(&documents).Error; err != nil {
		logger.FromEcho(c).Error("Failed to list documents", zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to retrieve documents")
	}

	return apiSuccess(c, http.StatusOK, "Documents fetched successfully", echo.Map{"documents": documents})
}

// CreateDocument creates a document owned by the authenticated user
func CreateDocument(c echo.Context) error {
	log := logger.FromEcho(c)

	user, ok := c.Get("user").(*model.User)
	if !ok {
		return apiError(c, http.StatusUnauthorized, "Authentication required")
	}

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil || req.Title == "" {
		return apiError(c, http.StatusBadRequest, "title is required")
	}

	document := &model.Document{
		Title:   req.Title,
		Content: req.Content,
		OwnerID: user.ID,
	}
	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(document).Error; err != nil {
		log.Error("Failed to create document", zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to create document")
	}

	log.Info("Document created", zap.Uint("document_id", document.ID), zap.Uint("owner_id", user.ID))
	return apiSuccess(c, http.StatusCreated, "Document created successfully", echo.Map{"document": document})
}

// GetDocument returns one of the authenticated user's documents
func GetDocument(c echo.Context) error {
	_, document, resp := findOwnedDocument(c)
	if resp != nil {
		return resp
	}

	return apiSuccess(c, http.StatusOK, "Document fetched successfully", echo.Map{"document": document})
}

// UpdateDocument updates a document's title and content
func UpdateDocument(c echo.Context) error {
	log := logger.FromEcho(c)

	_, document, resp := findOwnedDocument(c)
	if resp != nil {
		return resp
	}

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid request")
	}

	if req.Title != "" {
		document.Title = req.Title
	}
	document.Content = req.Content

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Save(document).Error; err != nil {
		log.Error("Failed to update document", zap.Uint("document_id", document.ID), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to update document")
	}

	return apiSuccess(c, http.StatusOK, "Document updated successfully", echo.Map{"document": document})
}

// DeleteDocument soft-deletes one of the authenticated user's documents
func DeleteDocument(c echo.Context) error {
	log := logger.FromEcho(c)

	_, document, resp := findOwnedDocument(c)
	if resp != nil {
		return resp
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := database.GetDB().Delete(document).Error; err != nil {
		log.Error("Failed to delete document", zap.Uint("document_id", document.ID), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to delete document")
	}

	log.Info("Document deleted", zap.Uint("document_id", document.ID))
	return apiSuccess(c, http.StatusOK, "Document deleted successfully", nil)
}

func findOwnedDocument(c echo.Context) (*model.User, *model.Document, error) {
	user, ok := c.Get("user").(*model.User)
	if !ok {
		return nil, nil, apiError(c, http.StatusUnauthorized, "Authentication required")
	}

	documentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, nil, apiError(c, http.StatusBadRequest, "Invalid document ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var document model.Document
	if err := database.GetDB().Where("id = ? AND owner_id = ?", documentID, user.ID).First(&document).Error; err != nil {
		return nil, nil, apiError(c, http.StatusNotFound, "Document not found")
	}
	return user, &document, nil
}
