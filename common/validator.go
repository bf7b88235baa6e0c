package common

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// maxBodyBytes bounds every JSON request body the API accepts.
const maxBodyBytes = 1 << 20

// ValidateAndDecode decodes the JSON body into payload and runs the struct's
// validate tags. The returned AppError is ready to be sent as a 400.
func ValidateAndDecode(r *http.Request, payload interface{}) *AppError {
	if r.Body == nil {
		return NewAppError(http.StatusBadRequest, "Request body is required", nil)
	}
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(payload); err != nil {
		return NewAppError(http.StatusBadRequest, "Invalid request body", err)
	}

	if err := validate.Struct(payload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewAppError(http.StatusBadRequest, validationErrors.Error(), nil)
		}
		return NewAppError(http.StatusBadRequest, "Invalid request body", err)
	}

	return nil
}
