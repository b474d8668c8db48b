package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/docuveda/lab-service/internal/model"
	"github.com/docuveda/lab-service/internal/storage"
	"github.com/docuveda/lab-service/internal/tenant"
	"github.com/docuveda/lab-service/pkg/database"
	"github.com/docuveda/lab-service/pkg/logger"
	"github.com/docuveda/lab-service/prometheus"
)

// labFileFields maps multipart form field names to the lab URL column they
// populate after upload.
var labFileFields = map[string]func(*model.Lab, string){
	"lab_logo":                  func(l *model.Lab, u string) { l.LabLogoURL = u },
	"director_signature":        func(l *model.Lab, u string) { l.DirectorSignatureURL = u },
	"consultant_signature":      func(l *model.Lab, u string) { l.ConsultantSignatureURL = u },
	"quality_manager_signature": func(l *model.Lab, u string) { l.QualityManagerSignatureURL = u },
	"doctor_signature":          func(l *model.Lab, u string) { l.DoctorSignatureURL = u },
	"nabl_certificate":          func(l *model.Lab, u string) { l.NablCertificateURL = u },
	"company_registration":      func(l *model.Lab, u string) { l.CompanyRegistrationURL = u },
	"pollution_certificate":     func(l *model.Lab, u string) { l.PollutionCertificateURL = u },
	"cmo_certificate":           func(l *model.Lab, u string) { l.CmoCertificateURL = u },
	"staff_list":                func(l *model.Lab, u string) { l.StaffListURL = u },
	"equipment_list":            func(l *model.Lab, u string) { l.EquipmentListURL = u },
	"calibrator_details":        func(l *model.Lab, u string) { l.CalibratorDetailsURL = u },
	"scope_list":                func(l *model.Lab, u string) { l.ScopeListURL = u },
}

// OnboardLab registers a new lab, uploads its documents and provisions the
// lab's content schema.
func OnboardLab(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordLabOperation("onboard")

	prefix := strings.TrimSpace(c.FormValue("document_id_prefix"))
	name := strings.TrimSpace(c.FormValue("name"))
	if prefix == "" || name == "" {
		return apiError(c, http.StatusBadRequest, "document_id_prefix and name are required")
	}
	if err := tenant.ValidatePrefix(prefix); err != nil {
		return apiError(c, http.StatusBadRequest, "document_id_prefix may only contain letters, digits and underscores (max 50)")
	}

	db := database.GetDB()
	trackQuery := prometheus.TrackDBOperation("query")
	exists, err := model.LabExists(db, prefix)
	trackQuery(time.Now())
	if err != nil {
		log.Error("Failed to check lab prefix", zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to onboard lab")
	}
	if exists {
		return apiError(c, http.StatusBadRequest, "A lab with this document ID prefix already exists")
	}

	lab := &model.Lab{
		DocumentIDPrefix: prefix,
		Name:             name,
		LabStatus:        model.LabStatusActive,
	}
	applyLabFormValues(c, lab)

	if _, err := uploadLabFiles(c, lab); err != nil {
		log.Error("Failed to upload lab documents", zap.String("prefix", prefix), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to upload lab documents")
	}

	trackInsert := prometheus.TrackDBOperation("insert")
	err = db.Create(lab).Error
	trackInsert(time.Now())
	if err != nil {
		log.Error("Failed to create lab", zap.String("prefix", prefix), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to onboard lab")
	}

	if err := contentStore.Provision(c.Request().Context(), prefix); err != nil {
		log.Error("Lab saved but schema provisioning failed",
			zap.String("prefix", prefix), zap.Error(err))
		prometheus.RecordContentError("provisioning")
		return apiError(c, http.StatusInternalServerError, "Lab saved, but failed to create schema")
	}

	log.Info("Lab onboarded", zap.String("prefix", prefix), zap.Uint("lab_id", lab.ID))
	return apiSuccess(c, http.StatusCreated, "Lab onboarded successfully", echo.Map{"lab": lab})
}

// ListLabs returns all registered labs, newest first
func ListLabs(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordLabOperation("list")

	defer prometheus.TrackDBOperation("query")(time.Now())
	labs, err := model.FindAllLabs(database.GetDB())
	if err != nil {
		log.Error("Failed to list labs", zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to retrieve labs")
	}

	active := 0
	for _, lab := range labs {
		if lab.LabStatus == model.LabStatusActive {
			active++
		}
	}
	prometheus.UpdateActiveLabs(active)

	return apiSuccess(c, http.StatusOK, "Labs fetched successfully", echo.Map{"labs": labs})
}

// GetLab returns one lab's full record by prefix
func GetLab(c echo.Context) error {
	prometheus.RecordLabOperation("get")

	defer prometheus.TrackDBOperation("query")(time.Now())
	lab, err := model.FindLabByPrefix(database.GetDB(), c.Param("labId"))
	if err != nil {
		return apiError(c, http.StatusNotFound, "Lab not found")
	}
	return apiSuccess(c, http.StatusOK, "Lab fetched successfully", echo.Map{"lab": lab})
}

// UpdateLab applies a partial update to a lab, including replacement file
// uploads and removal of previously uploaded documents.
func UpdateLab(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordLabOperation("update")

	db := database.GetDB()
	trackQuery := prometheus.TrackDBOperation("query")
	lab, err := model.FindLabByPrefix(db, c.Param("labId"))
	trackQuery(time.Now())
	if err != nil {
		return apiError(c, http.StatusNotFound, "Lab not found")
	}

	applyLabFormValues(c, lab)

	if removed := c.FormValue("removed_images"); removed != "" {
		var fields []string
		if err := json.Unmarshal([]byte(removed), &fields); err == nil {
			for _, field := range fields {
				if set, ok := labFileFields[field]; ok {
					set(lab, "")
				}
			}
		}
	}

	if _, err := uploadLabFiles(c, lab); err != nil {
		log.Error("Failed to upload lab documents",
			zap.String("prefix", lab.DocumentIDPrefix), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to upload lab documents")
	}

	trackUpdate := prometheus.TrackDBOperation("update")
	err = db.Save(lab).Error
	trackUpdate(time.Now())
	if err != nil {
		log.Error("Failed to update lab", zap.String("prefix", lab.DocumentIDPrefix), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to update lab")
	}

	log.Info("Lab updated", zap.String("prefix", lab.DocumentIDPrefix))
	return apiSuccess(c, http.StatusOK, "Lab updated successfully", echo.Map{"lab": lab})
}

// UpdateLabFiles replaces only the lab's uploaded documents. Fields may
// arrive either as multipart files or as already-uploaded http URLs in form
// values.
func UpdateLabFiles(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordLabOperation("update_files")

	db := database.GetDB()
	trackQuery := prometheus.TrackDBOperation("query")
	lab, err := model.FindLabByPrefix(db, c.Param("labId"))
	trackQuery(time.Now())
	if err != nil {
		return apiError(c, http.StatusNotFound, "Lab not found")
	}

	updated, err := uploadLabFiles(c, lab)
	if err != nil {
		log.Error("Failed to upload lab documents",
			zap.String("prefix", lab.DocumentIDPrefix), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to upload lab documents")
	}

	// Pre-uploaded URLs arrive as plain form values for the same field names.
	for field, set := range labFileFields {
		if value := c.FormValue(field); strings.HasPrefix(value, "http") {
			set(lab, value)
			updated[field] = echo.Map{"url": value, "fileName": value[strings.LastIndex(value, "/")+1:]}
		}
	}

	if len(updated) == 0 {
		return apiError(c, http.StatusBadRequest, "No files provided")
	}

	trackUpdate := prometheus.TrackDBOperation("update")
	err = db.Save(lab).Error
	trackUpdate(time.Now())
	if err != nil {
		log.Error("Failed to update lab files", zap.String("prefix", lab.DocumentIDPrefix), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to update lab files")
	}

	log.Info("Lab files updated",
		zap.String("prefix", lab.DocumentIDPrefix), zap.Int("files", len(updated)))
	return apiSuccess(c, http.StatusOK, "Lab files updated successfully", echo.Map{"updated": updated})
}

// UpdateLabStatus switches a lab between active and inactive
func UpdateLabStatus(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordLabOperation("update_status")

	var req struct {
		LabStatus string `json:"lab_status"`
	}
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid request")
	}
	if req.LabStatus != model.LabStatusActive && req.LabStatus != model.LabStatusInactive {
		return apiError(c, http.StatusBadRequest, "lab_status must be active or inactive")
	}

	db := database.GetDB()
	trackQuery := prometheus.TrackDBOperation("query")
	lab, err := model.FindLabByPrefix(db, c.Param("labId"))
	trackQuery(time.Now())
	if err != nil {
		return apiError(c, http.StatusNotFound, "Lab not found")
	}

	trackUpdate := prometheus.TrackDBOperation("update")
	err = db.Model(lab).Update("lab_status", req.LabStatus).Error
	trackUpdate(time.Now())
	if err != nil {
		log.Error("Failed to update lab status", zap.String("prefix", lab.DocumentIDPrefix), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to update lab status")
	}
	lab.LabStatus = req.LabStatus

	log.Info("Lab status updated",
		zap.String("prefix", lab.DocumentIDPrefix), zap.String("lab_status", lab.LabStatus))
	return apiSuccess(c, http.StatusOK, "Lab status updated to "+lab.LabStatus, echo.Map{"lab": lab})
}

// GetDocumentSettings returns the lab's report issue settings
func GetDocumentSettings(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())
	lab, err := model.FindLabByPrefix(database.GetDB(), c.Param("labId"))
	if err != nil {
		return apiError(c, http.StatusNotFound, "Lab not found")
	}
	return apiSuccess(c, http.StatusOK, "Document settings fetched successfully", echo.Map{
		"issue_no":   lab.IssueNo,
		"issue_date": lab.IssueDate,
	})
}

// UpdateDocumentSettings updates the lab's report issue settings
func UpdateDocumentSettings(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		IssueNo   string `json:"issue_no"`
		IssueDate string `json:"issue_date"`
	}
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid request")
	}

	db := database.GetDB()
	trackQuery := prometheus.TrackDBOperation("query")
	lab, err := model.FindLabByPrefix(db, c.Param("labId"))
	trackQuery(time.Now())
	if err != nil {
		return apiError(c, http.StatusNotFound, "Lab not found")
	}

	updates := map[string]interface{}{}
	if req.IssueNo != "" {
		updates["issue_no"] = req.IssueNo
		lab.IssueNo = req.IssueNo
	}
	if req.IssueDate != "" {
		updates["issue_date"] = req.IssueDate
		lab.IssueDate = req.IssueDate
	}
	if len(updates) > 0 {
		trackUpdate := prometheus.TrackDBOperation("update")
		err = db.Model(lab).Updates(updates).Error
		trackUpdate(time.Now())
		if err != nil {
			log.Error("Failed to update document settings",
				zap.String("prefix", lab.DocumentIDPrefix), zap.Error(err))
			return apiError(c, http.StatusInternalServerError, "Failed to update document settings")
		}
	}

	return apiSuccess(c, http.StatusOK, "Document settings updated successfully", echo.Map{
		"issue_no":   lab.IssueNo,
		"issue_date": lab.IssueDate,
	})
}

// GetLabAssets returns the subset of lab fields report rendering needs
func GetLabAssets(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())
	lab, err := model.FindLabByPrefix(database.GetDB(), c.Param("labId"))
	if err != nil {
		return apiError(c, http.StatusNotFound, "Lab not found")
	}
	return apiSuccess(c, http.StatusOK, "Lab assets fetched successfully", echo.Map{
		"document_id_prefix":     lab.DocumentIDPrefix,
		"name":                   lab.Name,
		"address":                lab.Address,
		"lab_logo_url":           lab.LabLogoURL,
		"director_signature_url": lab.DirectorSignatureURL,
		"doctor_signature_url":   lab.DoctorSignatureURL,
	})
}

// DeleteLab removes the lab registry row. Document content stored under the
// lab's schema is left in place.
func DeleteLab(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordLabOperation("delete")

	var req struct {
		Prefix string `json:"prefix"`
	}
	if err := c.Bind(&req); err != nil || req.Prefix == "" {
		return apiError(c, http.StatusBadRequest, "prefix is required")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	deleted, err := model.DeleteLabByPrefix(database.GetDB(), req.Prefix)
	if err != nil {
		log.Error("Failed to delete lab", zap.String("prefix", req.Prefix), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to delete lab")
	}
	if !deleted {
		return apiError(c, http.StatusNotFound, "Lab not found")
	}

	log.Info("Lab deleted", zap.String("prefix", req.Prefix))
	return apiSuccess(c, http.StatusOK, "Lab deleted successfully", nil)
}

// CheckPrefix reports whether a document ID prefix is already registered
func CheckPrefix(c echo.Context) error {
	var req struct {
		Prefix      string `json:"prefix"`
		CheckPrefix string `json:"checkprefix"`
	}
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid request")
	}
	prefix := req.Prefix
	if prefix == "" {
		prefix = req.CheckPrefix
	}
	if prefix == "" {
		return apiError(c, http.StatusBadRequest, "prefix is required")
	}
	if err := tenant.ValidatePrefix(prefix); err != nil {
		return apiError(c, http.StatusBadRequest, "prefix may only contain letters, digits and underscores (max 50)")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	exists, err := model.LabExists(database.GetDB(), prefix)
	if err != nil {
		return apiError(c, http.StatusInternalServerError, "Failed to check prefix")
	}
	return apiSuccess(c, http.StatusOK, "Prefix checked", echo.Map{"exists": exists})
}

// TestStorage probes object storage connectivity
func TestStorage(c echo.Context) error {
	uploader := storage.GetUploader()
	if uploader == nil {
		return apiError(c, http.StatusServiceUnavailable, "Object storage is not configured")
	}
	if err := uploader.Ping(c.Request().Context()); err != nil {
		logger.FromEcho(c).Error("Object storage unreachable", zap.Error(err))
		return apiError(c, http.StatusServiceUnavailable, "Object storage is unreachable")
	}
	return apiSuccess(c, http.StatusOK, "Object storage is reachable", nil)
}

// applyLabFormValues copies non-empty form values onto the lab record. JSON
// array fields are decoded from their form-encoded string representation.
func applyLabFormValues(c echo.Context, lab *model.Lab) {
	setString := func(field string, dst *string) {
		if value := c.FormValue(field); value != "" {
			*dst = value
		}
	}

	setString("name", &lab.Name)
	setString("address", &lab.Address)
	setString("city", &lab.City)
	setString("state", &lab.State)
	setString("country", &lab.Country)
	setString("postal_code", &lab.PostalCode)
	setString("type", &lab.Type)
	setString("operating_hours", &lab.OperatingHours)
	setString("website_url", &lab.WebsiteURL)
	setString("quality_manager_name", &lab.QualityManagerName)
	setString("referral_lab_details", &lab.ReferralLabDetails)
	setString("lab_category", &lab.LabCategory)
	setString("director_name", &lab.DirectorName)
	setString("consultant_name", &lab.ConsultantName)
	setString("doctor_name", &lab.DoctorName)
	setString("doctor_qualification", &lab.DoctorQualification)
	setString("doctor_department", &lab.DoctorDepartment)

	if value := c.FormValue("has_referral_lab_mou"); value != "" {
		lab.HasReferralLabMou = value == "true" || value == "1"
	}
	if value := c.FormValue("sample_source"); value != "" {
		var items []string
		if err := json.Unmarshal([]byte(value), &items); err == nil {
			lab.SampleSource = items
		}
	}
	if value := c.FormValue("selected_departments"); value != "" {
		var items []string
		if err := json.Unmarshal([]byte(value), &items); err == nil {
			lab.SelectedDepartments = items
		}
	}
}

// uploadLabFiles uploads every recognized multipart file field to object
// storage and stores the resulting URL on the lab. Returns the updated
// fields keyed by form field name.
func uploadLabFiles(c echo.Context, lab *model.Lab) (echo.Map, error) {
	updated := echo.Map{}

	form, err := c.MultipartForm()
	if err != nil || form == nil {
		// Not a multipart request, nothing to upload.
		return updated, nil
	}

	uploader := storage.GetUploader()
	ctx := c.Request().Context()

	for field, set := range labFileFields {
		files := form.File[field]
		if len(files) == 0 {
			continue
		}
		fileHeader := files[0]
		if fileHeader.Size > storage.MaxUploadSize {
			return updated, echo.NewHTTPError(http.StatusRequestEntityTooLarge, fileHeader.Filename+" exceeds the upload size limit")
		}
		if uploader == nil {
			return updated, echo.NewHTTPError(http.StatusServiceUnavailable, "object storage is not configured")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return updated, err
		}
		url, err := uploader.Upload(ctx, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
		file.Close()
		if err != nil {
			return updated, err
		}
		prometheus.UploadCounter.Inc()

		set(lab, url)
		updated[field] = echo.Map{"url": url, "fileName": fileHeader.Filename}
	}

	return updated, nil
}
