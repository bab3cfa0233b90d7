package handler

import (
	"fmt"
	"net/http"

	"github.com/atmosguard/atmosguard/internal/api/models"
	"github.com/atmosguard/atmosguard/internal/api/response"
	"github.com/atmosguard/atmosguard/internal/dashboard"
	"github.com/atmosguard/atmosguard/internal/environment"
)

// InsightsHandler serves the derived metrics. Every value is a fixed formula
// of its inputs, so no upstream is involved.
type InsightsHandler struct{}

// NewInsightsHandler creates a new InsightsHandler.
func NewInsightsHandler() *InsightsHandler {
	return &InsightsHandler{}
}

// Forecast handles GET /v1/insights/forecast?aqi=N.
func (h *InsightsHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	aqi, errField := aqiQuery(r)
	if errField != nil {
		response.BadRequest(w, r, "invalid aqi", []models.FieldError{*errField})
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewForecastResponse(aqi))
}

// Dynamic handles GET /v1/insights/dynamic?aqi=N&offset=H.
func (h *InsightsHandler) Dynamic(w http.ResponseWriter, r *http.Request) {
	var errs []models.FieldError
	aqi, errField := aqiQuery(r)
	if errField != nil {
		errs = append(errs, *errField)
	}
	offset, errField := intQuery(r, "offset", 0, false)
	if errField != nil {
		errs = append(errs, *errField)
	} else if offset < dashboard.MinForecastOffset || offset > dashboard.MaxForecastOffset {
		errs = append(errs, models.FieldError{Field: "offset", Message: "must be between -24 and 24", Code: "OUT_OF_RANGE"})
	}
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid insight parameters", errs)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewDynamicAQIResponse(aqi, offset))
}

// aqiQuery reads the required aqi parameter, bounded to 0..MaxInputAQI.
func aqiQuery(r *http.Request) (int, *models.FieldError) {
	aqi, errField := intQuery(r, "aqi", 0, true)
	if errField != nil {
		return 0, errField
	}
	if aqi < 0 || aqi > environment.MaxInputAQI {
		return 0, &models.FieldError{
			Field:   "aqi",
			Message: fmt.Sprintf("must be between 0 and %d", environment.MaxInputAQI),
			Code:    "OUT_OF_RANGE",
		}
	}
	return aqi, nil
}
