// controllers/profile.go
package controllers

import (
	"errors"
	"net/http"

	"billflow-backend/config"
	"billflow-backend/models"
	"billflow-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type UpdateCompanyInput struct {
	Name              *string          `json:"name"`
	Address           *string          `json:"address"`
	Email             *string          `json:"email" binding:"omitempty,email"`
	Phone             *string          `json:"phone"`
	DefaultTaxRate    *decimal.Decimal `json:"defaultTaxRate"`
	QuoteValidityDays *int             `json:"quoteValidityDays"`
}

type UpdateSettingsInput struct {
	Settings models.JSONB `json:"settings" binding:"required"`
}

type UpdateNotificationsInput struct {
	EmailNotifications *bool `json:"emailNotifications"`
	SMSNotifications   *bool `json:"smsNotifications"`
}

// GetProfile returns the company profile and settings
func GetProfile(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	var company models.Company
	if err := config.DB.First(&company, "id = ?", companyUUID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Company not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	c.JSON(http.StatusOK, company)
}

// UpdateCompanyProfile updates the company's billing defaults and contact info
func UpdateCompanyProfile(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	var input UpdateCompanyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var company models.Company
	if err := config.DB.First(&company, "id = ?", companyUUID).Error; err != nil {
		utils.RespondWithError(c, http.StatusNotFound, "Company not found")
		return
	}

	if input.Name != nil {
		company.Name = *input.Name
	}
	if input.Address != nil {
		company.Address = *input.Address
	}
	if input.Email != nil {
		company.Email = *input.Email
	}
	if input.Phone != nil {
		company.Phone = *input.Phone
	}
	if input.DefaultTaxRate != nil {
		if input.DefaultTaxRate.IsNegative() {
			utils.RespondWithError(c, http.StatusBadRequest, "Tax rate must not be negative")
			return
		}
		company.DefaultTaxRate = *input.DefaultTaxRate
	}
	if input.QuoteValidityDays != nil {
		company.QuoteValidityDays = *input.QuoteValidityDays
	}

	if err := config.DB.Save(&company).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update company")
		return
	}

	c.JSON(http.StatusOK, company)
}

// UpdateSettings replaces the company's skills list and email templates
func UpdateSettings(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	var input UpdateSettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	// Unknown keys are dropped so the settings object stays enumerable.
	defaults := models.DefaultSettings()
	merged := models.JSONB{}
	for key, def := range defaults {
		if v, ok := input.Settings[key]; ok {
			merged[key] = v
		} else {
			merged[key] = def
		}
	}

	if err := config.DB.Model(&models.Company{}).Where("id = ?", companyUUID).
		Update("settings", merged).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": merged})
}

// UpdateNotifications toggles outbound email and SMS notifications
func UpdateNotifications(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	var input UpdateNotificationsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	updates := map[string]interface{}{}
	if input.EmailNotifications != nil {
		updates["email_notifications"] = *input.EmailNotifications
	}
	if input.SMSNotifications != nil {
		updates["sms_notifications"] = *input.SMSNotifications
	}
	if len(updates) == 0 {
		utils.RespondWithError(c, http.StatusBadRequest, "Nothing to update")
		return
	}

	if err := config.DB.Model(&models.Company{}).Where("id = ?", companyUUID).
		Updates(updates).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notifications updated"})
}
