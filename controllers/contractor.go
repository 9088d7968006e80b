// controllers/contractor.go
package controllers

import (
	"errors"
	"net/http"

	"billflow-backend/config"
	"billflow-backend/models"
	"billflow-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateContractorInput struct {
	Name       string           `json:"name" binding:"required"`
	Email      string           `json:"email" binding:"omitempty,email"`
	Phone      string           `json:"phone"`
	Skills     []string         `json:"skills" binding:"required,min=1"`
	HourlyRate *decimal.Decimal `json:"hourlyRate"`
	FlatRate   *decimal.Decimal `json:"flatRate"`
	Rate       decimal.Decimal  `json:"rate"`
	Notes      string           `json:"notes"`
}

type UpdateContractorInput struct {
	Name       *string          `json:"name"`
	Email      *string          `json:"email" binding:"omitempty,email"`
	Phone      *string          `json:"phone"`
	Skills     *[]string        `json:"skills"`
	HourlyRate *decimal.Decimal `json:"hourlyRate"`
	FlatRate   *decimal.Decimal `json:"flatRate"`
	Rate       *decimal.Decimal `json:"rate"`
	Notes      *string          `json:"notes"`
	IsActive   *bool            `json:"isActive"`
}

// CreateContractor registers a new contractor for the company
func CreateContractor(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	var input CreateContractorInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	if input.Rate.IsNegative() ||
		(input.HourlyRate != nil && input.HourlyRate.IsNegative()) ||
		(input.FlatRate != nil && input.FlatRate.IsNegative()) {
		utils.RespondWithError(c, http.StatusBadRequest, "Rates must not be negative")
		return
	}

	contractor := models.Contractor{
		ID:         uuid.New(),
		CompanyID:  companyUUID,
		Name:       input.Name,
		Email:      input.Email,
		Phone:      input.Phone,
		Skills:     input.Skills,
		HourlyRate: input.HourlyRate,
		FlatRate:   input.FlatRate,
		Rate:       input.Rate,
		Notes:      input.Notes,
		IsActive:   true,
	}

	if err := config.DB.Create(&contractor).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create contractor")
		return
	}

	c.JSON(http.StatusCreated, contractor)
}

// GetContractors retrieves all contractors for the company
func GetContractors(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	var contractors []models.Contractor
	if err := config.DB.Where("company_id = ?", companyUUID).
		Order("name asc").Find(&contractors).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve contractors")
		return
	}

	c.JSON(http.StatusOK, contractors)
}

// GetContractor retrieves a specific contractor by ID
func GetContractor(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	contractorUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid contractor ID format")
		return
	}

	var contractor models.Contractor
	if err := config.DB.Where("company_id = ? AND id = ?", companyUUID, contractorUUID).
		First(&contractor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Contractor not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	c.JSON(http.StatusOK, contractor)
}

// UpdateContractor updates an existing contractor
func UpdateContractor(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	contractorUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid contractor ID format")
		return
	}

	var input UpdateContractorInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var contractor models.Contractor
	if err := config.DB.Where("company_id = ? AND id = ?", companyUUID, contractorUUID).
		First(&contractor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Contractor not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	if input.Name != nil {
		contractor.Name = *input.Name
	}
	if input.Email != nil {
		contractor.Email = *input.Email
	}
	if input.Phone != nil {
		contractor.Phone = *input.Phone
	}
	if input.Skills != nil {
		if len(*input.Skills) == 0 {
			utils.RespondWithError(c, http.StatusBadRequest, "Skills must not be empty")
			return
		}
		contractor.Skills = *input.Skills
	}
	if input.HourlyRate != nil {
		contractor.HourlyRate = input.HourlyRate
	}
	if input.FlatRate != nil {
		contractor.FlatRate = input.FlatRate
	}
	if input.Rate != nil {
		contractor.Rate = *input.Rate
	}
	if input.Notes != nil {
		contractor.Notes = *input.Notes
	}
	if input.IsActive != nil {
		contractor.IsActive = *input.IsActive
	}

	if err := config.DB.Save(&contractor).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update contractor")
		return
	}

	c.JSON(http.StatusOK, contractor)
}

// DeleteContractor soft deletes a contractor
func DeleteContractor(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	contractorUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid contractor ID format")
		return
	}

	var contractor models.Contractor
	if err := config.DB.Where("company_id = ? AND id = ?", companyUUID, contractorUUID).
		First(&contractor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Contractor not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	if err := config.DB.Delete(&contractor).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete contractor")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Contractor deleted successfully"})
}
