package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ChrisHK/label-printer/pkg/apierror"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// decodeJSON reads a JSON body into dst, keeping numbers as json.Number.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierror.BadRequest(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return apierror.BadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// validateStruct runs the validate tags of v and reports failures per field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierror.BadRequest(err.Error())
	}
	details := make([]apierror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, apierror.FieldError{Field: fe.Field(), Message: fe.Tag()})
	}
	return apierror.ValidationError("invalid request", details...)
}
