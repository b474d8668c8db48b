package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/docuveda/lab-service/internal/model"
	"github.com/docuveda/lab-service/internal/tenant"
	"github.com/docuveda/lab-service/pkg/database"
	"github.com/docuveda/lab-service/pkg/logger"
	"github.com/docuveda/lab-service/prometheus"
)

var contentStore *tenant.Store

// InitContentStore sets the document content store used by the doc-content
// and lab onboarding handlers.
func InitContentStore(store *tenant.Store) {
	contentStore = store
}

// requireLab verifies the lab prefix is registered before the content store
// is touched. When it reports false the failure response has already been
// written and the handler must return the accompanying error immediately.
func requireLab(c echo.Context, prefix string) (bool, error) {
	if prefix == "" {
		return false, apiError(c, http.StatusBadRequest, "lab_prefix is required")
	}
	if err := tenant.ValidatePrefix(prefix); err != nil {
		prometheus.RecordContentError("invalid_prefix")
		return false, apiError(c, http.StatusBadRequest, "lab_prefix may only contain letters, digits and underscores (max 50)")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	exists, err := model.LabExists(database.GetDB(), prefix)
	if err != nil {
		logger.FromEcho(c).Error("Failed to check lab registry",
			zap.String("lab_prefix", prefix), zap.Error(err))
		return false, apiError(c, http.StatusInternalServerError, "Failed to verify lab")
	}
	if !exists {
		prometheus.RecordContentError("unknown_lab")
		return false, apiError(c, http.StatusBadRequest, fmt.Sprintf("Lab with prefix %q does not exist", prefix))
	}
	return true, nil
}

func contentErrorResponse(c echo.Context, prefix string, err error) error {
	log := logger.FromEcho(c)

	var provisioningErr *tenant.ProvisioningError
	if errors.As(err, &provisioningErr) {
		prometheus.RecordContentError("provisioning")
		log.Error("Schema provisioning failed", zap.String("lab_prefix", prefix), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to provision lab schema")
	}
	if errors.Is(err, tenant.ErrInvalidPrefix) {
		prometheus.RecordContentError("invalid_prefix")
		return apiError(c, http.StatusBadRequest, "lab_prefix may only contain letters, digits and underscores (max 50)")
	}

	prometheus.RecordContentError("storage")
	log.Error("Document content operation failed", zap.String("lab_prefix", prefix), zap.Error(err))
	return apiError(c, http.StatusInternalServerError, "Failed to process document content")
}

// GetDocContent returns content for one document when document_id is given,
// or every record in the lab's schema otherwise.
func GetDocContent(c echo.Context) error {
	prometheus.RecordContentOperation("find")

	prefix := c.QueryParam("lab_prefix")
	if ok, err := requireLab(c, prefix); !ok {
		return err
	}

	ctx := c.Request().Context()
	var (
		records []tenant.Record
		err     error
	)
	if documentID := c.QueryParam("document_id"); documentID != "" {
		records, err = contentStore.FindByDocument(ctx, prefix, documentID)
	} else {
		records, err = contentStore.FindAll(ctx, prefix)
	}
	if err != nil {
		return contentErrorResponse(c, prefix, err)
	}

	return apiSuccess(c, http.StatusOK, "Document content fetched successfully", echo.Map{"records": records})
}

// GetDocContentByDocument returns the content stored for one document ID
func GetDocContentByDocument(c echo.Context) error {
	prometheus.RecordContentOperation("find")

	prefix := c.Param("labPrefix")
	if ok, err := requireLab(c, prefix); !ok {
		return err
	}

	records, err := contentStore.FindByDocument(c.Request().Context(), prefix, c.Param("documentId"))
	if err != nil {
		return contentErrorResponse(c, prefix, err)
	}

	return apiSuccess(c, http.StatusOK, "Document content fetched successfully", echo.Map{"records": records})
}

// SaveDocContent upserts one document's content
func SaveDocContent(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordContentOperation("save")

	var req struct {
		LabPrefix  string         `json:"lab_prefix"`
		DocumentID string         `json:"document_id"`
		Content    tenant.Content `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid request")
	}
	if req.DocumentID == "" {
		return apiError(c, http.StatusBadRequest, "document_id is required")
	}
	if req.Content == nil {
		return apiError(c, http.StatusBadRequest, "content is required")
	}
	if ok, err := requireLab(c, req.LabPrefix); !ok {
		return err
	}

	if err := contentStore.Save(c.Request().Context(), req.LabPrefix, req.DocumentID, req.Content); err != nil {
		return contentErrorResponse(c, req.LabPrefix, err)
	}

	log.Info("Document content saved",
		zap.String("lab_prefix", req.LabPrefix),
		zap.String("document_id", req.DocumentID))
	return apiSuccess(c, http.StatusCreated, "Document content saved successfully", echo.Map{
		"lab_prefix":  req.LabPrefix,
		"document_id": req.DocumentID,
	})
}

// BulkSaveDocContent upserts a batch of documents. Entries are written one
// by one; a mid-batch failure reports the count persisted before it, and
// already-written entries stay written.
func BulkSaveDocContent(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordContentOperation("bulk_save")

	var req struct {
		LabPrefix string                    `json:"lab_prefix"`
		Documents map[string]tenant.Content `json:"documents"`
	}
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid request")
	}
	if len(req.Documents) == 0 {
		return apiError(c, http.StatusBadRequest, "documents is required")
	}
	if ok, err := requireLab(c, req.LabPrefix); !ok {
		return err
	}

	count, err := contentStore.BulkSave(c.Request().Context(), req.LabPrefix, req.Documents)
	if err != nil {
		log.Error("Bulk save stopped",
			zap.String("lab_prefix", req.LabPrefix),
			zap.Int("saved", count),
			zap.Int("requested", len(req.Documents)),
			zap.Error(err))
		prometheus.RecordContentError("storage")
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"message": "Bulk save failed partway through",
			"data":    echo.Map{"count": count},
		})
	}

	log.Info("Bulk content saved",
		zap.String("lab_prefix", req.LabPrefix), zap.Int("count", count))
	return apiSuccess(c, http.StatusCreated, "Document content saved successfully", echo.Map{"count": count})
}

// DeleteDocContent removes one document's content
func DeleteDocContent(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordContentOperation("delete")

	prefix := c.Param("labPrefix")
	if ok, err := requireLab(c, prefix); !ok {
		return err
	}

	documentID := c.Param("documentId")
	deleted, err := contentStore.Delete(c.Request().Context(), prefix, documentID)
	if err != nil {
		return contentErrorResponse(c, prefix, err)
	}
	if !deleted {
		return apiError(c, http.StatusNotFound, "Document content not found")
	}

	log.Info("Document content deleted",
		zap.String("lab_prefix", prefix), zap.String("document_id", documentID))
	return apiSuccess(c, http.StatusOK, "Document content deleted successfully", nil)
}
