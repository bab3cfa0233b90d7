package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/atmosguard/atmosguard/internal/api/models"
	"github.com/atmosguard/atmosguard/internal/geo"
)

// maxBodyBytes caps request bodies; every body this API accepts is tiny.
const maxBodyBytes = 16 << 10

var errEmptyBody = errors.New("request body is empty")

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// coordinateQuery reads the required lat and lon query parameters.
func coordinateQuery(r *http.Request) (geo.Coordinate, []models.FieldError) {
	lat, latErr := floatQuery(r, "lat")
	lon, lonErr := floatQuery(r, "lon")

	var errs []models.FieldError
	if latErr != nil {
		errs = append(errs, *latErr)
	}
	if lonErr != nil {
		errs = append(errs, *lonErr)
	}
	return geo.Coordinate{Lat: lat, Lon: lon}, errs
}

// coordinateBody validates a SelectPointRequest.
func coordinateBody(req models.SelectPointRequest) (geo.Coordinate, []models.FieldError) {
	var errs []models.FieldError
	check := func(field string, v *float64) float64 {
		switch {
		case v == nil:
			errs = append(errs, models.FieldError{Field: field, Message: "required", Code: "REQUIRED"})
		case math.IsNaN(*v) || math.IsInf(*v, 0):
			errs = append(errs, models.FieldError{Field: field, Message: "must be a finite number", Code: "INVALID"})
		default:
			return *v
		}
		return 0
	}
	lat := check("lat", req.Lat)
	lon := check("lon", req.Lon)
	return geo.Coordinate{Lat: lat, Lon: lon}, errs
}

func floatQuery(r *http.Request, name string) (float64, *models.FieldError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, &models.FieldError{Field: name, Message: "required", Code: "REQUIRED"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &models.FieldError{Field: name, Message: "must be a finite number", Code: "INVALID"}
	}
	return v, nil
}

// intQuery reads an integer query parameter, returning def when it is absent.
func intQuery(r *http.Request, name string, def int, required bool) (int, *models.FieldError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if required {
			return 0, &models.FieldError{Field: name, Message: "required", Code: "REQUIRED"}
		}
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &models.FieldError{Field: name, Message: fmt.Sprintf("must be an integer, got %q", raw), Code: "INVALID"}
	}
	return v, nil
}
