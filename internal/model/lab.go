package model

import (
	"time"

	"gorm.io/gorm"
)

// Lab statuses.
const (
	LabStatusActive   = "active"
	LabStatusInactive = "inactive"
)

// Lab represents an onboarded laboratory. The document ID prefix is the
// tenant key: it is unique case-insensitively and derives the lab's storage
// schema name.
type Lab struct {
	ID               uint   `json:"id" gorm:"primaryKey"`
	DocumentIDPrefix string `json:"document_id_prefix" gorm:"type:varchar(50);uniqueIndex;not null"`
	Name             string `json:"name" gorm:"type:varchar(200);not null"`
	Address          string `json:"address" gorm:"type:text"`
	City             string `json:"city" gorm:"type:varchar(100)"`
	State            string `json:"state" gorm:"type:varchar(100)"`
	Country          string `json:"country" gorm:"type:varchar(100)"`
	PostalCode       string `json:"postal_code" gorm:"type:varchar(20)"`
	Type             string `json:"type" gorm:"type:varchar(50)"` // accredited / non-accredited
	OperatingHours   string `json:"operating_hours" gorm:"type:varchar(200)"`
	WebsiteURL       string `json:"website_url" gorm:"type:varchar(255)"`

	QualityManagerName string   `json:"quality_manager_name" gorm:"type:varchar(100)"`
	HasReferralLabMou  bool     `json:"has_referral_lab_mou" gorm:"default:false"`
	ReferralLabDetails string   `json:"referral_lab_details" gorm:"type:text"`
	SampleSource       []string `json:"sample_source" gorm:"serializer:json;type:jsonb"`
	LabCategory        string   `json:"lab_category" gorm:"type:varchar(100)"`
	LabStatus          string   `json:"lab_status" gorm:"type:varchar(20);default:'active'"`

	SelectedDepartments []string `json:"selected_departments" gorm:"serializer:json;type:jsonb"`

	DirectorName        string `json:"director_name" gorm:"type:varchar(100)"`
	ConsultantName      string `json:"consultant_name" gorm:"type:varchar(100)"`
	DoctorName          string `json:"doctor_name" gorm:"type:varchar(100)"`
	DoctorQualification string `json:"doctor_qualification" gorm:"type:varchar(100)"`
	DoctorDepartment    string `json:"doctor_department" gorm:"type:varchar(100)"`

	LabLogoURL                 string `json:"lab_logo_url" gorm:"type:varchar(500)"`
	DirectorSignatureURL       string `json:"director_signature_url" gorm:"type:varchar(500)"`
	ConsultantSignatureURL     string `json:"consultant_signature_url" gorm:"type:varchar(500)"`
	QualityManagerSignatureURL string `json:"quality_manager_signature_url" gorm:"type:varchar(500)"`
	DoctorSignatureURL         string `json:"doctor_signature_url" gorm:"type:varchar(500)"`
	NablCertificateURL         string `json:"nabl_certificate_url" gorm:"type:varchar(500)"`
	CompanyRegistrationURL     string `json:"company_registration_url" gorm:"type:varchar(500)"`
	PollutionCertificateURL    string `json:"pollution_certificate_url" gorm:"type:varchar(500)"`
	CmoCertificateURL          string `json:"cmo_certificate_url" gorm:"type:varchar(500)"`
	StaffListURL               string `json:"staff_list_url" gorm:"type:varchar(500)"`
	EquipmentListURL           string `json:"equipment_list_url" gorm:"type:varchar(500)"`
	CalibratorDetailsURL       string `json:"calibrator_details_url" gorm:"type:varchar(500)"`
	ScopeListURL               string `json:"scope_list_url" gorm:"type:varchar(500)"`

	IssueNo   string `json:"issue_no" gorm:"type:varchar(20);default:'01'"`
	IssueDate string `json:"issue_date" gorm:"type:varchar(50)"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// FindLabByPrefix returns the lab whose prefix matches case-insensitively.
func FindLabByPrefix(db *gorm.DB, prefix string) (*Lab, error) {
	var lab Lab
	if err := db.Where("LOWER(document_id_prefix) = LOWER(?)", prefix).First(&lab).Error; err != nil {
		return nil, err
	}
	return &lab, nil
}

// LabExists reports whether a lab with the given prefix is registered,
// compared case-insensitively.
func LabExists(db *gorm.DB, prefix string) (bool, error) {
	var count int64
	err := db.Model(&Lab{}).Where("LOWER(document_id_prefix) = LOWER(?)", prefix).Count(&count).Error
	return count > 0, err
}

// FindAllLabs returns every registered lab, newest first.
func FindAllLabs(db *gorm.DB) ([]Lab, error) {
	var labs []Lab
	if err := db.Order("created_at desc").Find(&labs).Error; err != nil {
		return nil, err
	}
	return labs, nil
}

// DeleteLabByPrefix removes the lab registry row. The lab's document content
// schema is deliberately left behind; it is orphaned, not cascade-deleted.
func DeleteLabByPrefix(db *gorm.DB, prefix string) (bool, error) {
	result := db.Where("LOWER(document_id_prefix) = LOWER(?)", prefix).Delete(&Lab{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
