package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps JSON and urlencoded request bodies
const maxBodyBytes = 1 << 20

// Validator instance
var validate *validator.Validate

var formDecoder = newFormDecoder()

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}

// ErrMalformedBody is returned when a request body cannot be decoded
var ErrMalformedBody = errors.New("malformed request body")

// ValidateRequest validates the request body against a struct with validation tags
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// DecodeAndValidate decodes JSON request body and validates it
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return ValidateRequest(v)
}

// DecodeRequest decodes a JSON or form-encoded body into v, a pointer to a struct with json and
// form tags, and validates it.
func DecodeRequest(r *http.Request, v interface{}) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		if err := decodeForm(r, v); err != nil {
			return err
		}
		return ValidateRequest(v)
	default:
		return DecodeAndValidate(r, v)
	}
}

func newFormDecoder() *form.Decoder {
	decoder := form.NewDecoder()
	decoder.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		return time.Parse(time.RFC3339, vals[0])
	}, time.Time{})
	decoder.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		b, err := strconv.ParseBool(vals[0])
		if err != nil {
			// checkboxes post "on"
			return vals[0] == "on", nil
		}
		return b, nil
	}, false)
	return decoder
}

// decodeForm fills v from the request form by form tag. Values are trimmed and blank values are
// left unset so optional fields stay nil.
func decodeForm(r *http.Request, v interface{}) error {
	values := make(url.Values, len(r.Form))
	for name, raw := range r.Form {
		if len(raw) == 0 {
			continue
		}
		if value := strings.TrimSpace(raw[0]); value != "" {
			values.Set(name, value)
		}
	}

	if err := formDecoder.Decode(v, values); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return nil
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator errors to a readable format
func FormatValidationErrors(err error) []ValidationError {
	var errors []ValidationError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			errors = append(errors, ValidationError{
				Field:   e.Field(),
				Message: getErrorMessage(e),
			})
		}
	}

	return errors
}

// RespondWithDecodeError reports a DecodeRequest failure: validation failures list the fields,
// anything else is a malformed body.
func RespondWithDecodeError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		RespondWithValidationErrors(w, FormatValidationErrors(validationErrors))
		return
	}
	RespondWithError(w, http.StatusBadRequest, "invalid request body")
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "lte":
		return "Value must be less than or equal to " + e.Param()
	case "gt":
		return "Value must be greater than " + e.Param()
	case "lt":
		return "Value must be less than " + e.Param()
	case "eqfield":
		return "Value must match " + e.Param()
	default:
		return "Invalid value"
	}
}
