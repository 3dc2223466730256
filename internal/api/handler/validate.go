package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/cuongbtq/review-queue/internal/api/dto"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var bookIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// report fields by their wire names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form", "uri"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	if err := v.RegisterValidation("bookid", func(fl validator.FieldLevel) bool {
		return bookIDPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}

	return v
}

// bindError marks a request that could not be decoded at all
type bindError struct {
	err error
}

func (e *bindError) Error() string { return e.err.Error() }

// bindURI binds path parameters into req and validates it
func bindURI(c *gin.Context, req any) error {
	if err := c.ShouldBindUri(req); err != nil {
		return &bindError{err: err}
	}
	return validate.StructCtx(c.Request.Context(), req)
}

// bindQuery binds the query string into req, applies default tags and validates it
func bindQuery(c *gin.Context, req any) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return &bindError{err: err}
	}
	if err := defaults.Set(req); err != nil {
		return &bindError{err: err}
	}
	return validate.StructCtx(c.Request.Context(), req)
}

// fieldErrors converts a binding or validation error into API field errors
func fieldErrors(err error) []dto.FieldError {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errs := make([]dto.FieldError, 0, len(validationErrors))
		for _, e := range validationErrors {
			errs = append(errs, dto.FieldError{
				Code:    "ERR_" + strings.ToUpper(e.Tag()),
				Field:   e.Field(),
				Message: errorMessage(e),
			})
		}
		return errs
	}

	return []dto.FieldError{{
		Code:    "ERR_MALFORMED",
		Message: err.Error(),
	}}
}

// joinMessages renders field errors as a single sentence
func joinMessages(errs []dto.FieldError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, ", ")
}

func errorMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "bookid":
		return fmt.Sprintf("%s contains invalid characters", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// abortWithValidation writes a 400 response for a failed bind or validation
func abortWithValidation(c *gin.Context, err error) {
	errs := fieldErrors(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:  "Validation failed: " + joinMessages(errs),
		Errors: errs,
	})
}
