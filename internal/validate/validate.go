// Package validate decodes JSON request bodies and checks them against
// struct tags before any side effect happens.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MsgTooLarge is reported when the body exceeds the reader's byte limit.
const MsgTooLarge = "Request body too large"

// Error is a structured rejection naming the first violated field.
type Error struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`

	cause error
}

// Unwrap returns the decode error behind e, if any.
func (e *Error) Unwrap() error { return e.cause }

// TooLarge reports whether decoding stopped at an http.MaxBytesReader limit.
func (e *Error) TooLarge() bool {
	var mbe *http.MaxBytesError
	return errors.As(e.cause, &mbe)
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Decode reads a JSON object from r into v and validates it. The returned
// *Error is nil when v is valid.
func Decode(r io.Reader, v any) *Error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return decodeError(err)
	}
	return Struct(v)
}

// Struct validates an already populated struct.
func Struct(v any) *Error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fieldError(verrs[0])
	}
	return &Error{Message: err.Error()}
}

func decodeError(err error) *Error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return &Error{Message: MsgTooLarge, cause: err}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &Error{
			Message: fmt.Sprintf("Expected %s, received %s", jsonKind(typeErr.Type), typeErr.Value),
			Field:   typeErr.Field,
		}
	}
	if errors.Is(err, io.EOF) {
		return &Error{Message: "Request body is required"}
	}
	return &Error{Message: "Invalid JSON body"}
}

func fieldError(fe validator.FieldError) *Error {
	field := fieldPath(fe.Namespace())
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "Required"
	case "oneof":
		msg = fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		msg = fmt.Sprintf("Must be at least %s", fe.Param())
	case "max":
		msg = fmt.Sprintf("Must be at most %s", fe.Param())
	default:
		msg = fmt.Sprintf("Failed %q validation", fe.Tag())
	}
	return &Error{Message: msg, Field: field}
}

// fieldPath drops the top-level struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}
