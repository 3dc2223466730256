package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/cuongbtq/review-queue/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Processor executes the payload of one job type
type Processor interface {
	Process(ctx context.Context, job domain.Job) error
}

// ProcessorFunc adapts a plain function to the Processor interface
type ProcessorFunc func(ctx context.Context, job domain.Job) error

// Process calls f(ctx, job)
func (f ProcessorFunc) Process(ctx context.Context, job domain.Job) error {
	return f(ctx, job)
}

// TypedHandler processes a job whose payload has already been decoded and validated
type TypedHandler[T any] func(ctx context.Context, job domain.Job, payload T) error

// Registry maps job types to processors. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]Processor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		processors: make(map[string]Processor),
	}
}

// Register stores p under jobType, replacing any previous registration
func (r *Registry) Register(jobType string, p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.processors[jobType] = p
}

// Lookup returns the processor registered for jobType
func (r *Registry) Lookup(jobType string) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.processors[jobType]
	return p, ok
}

// Types returns the registered job types in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.processors))
	for t := range r.processors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// RegisterTyped registers handler under jobType behind a Processor that decodes
// and validates the JSON payload into T first.
//
// This is a package-level function because Go does not allow generic methods.
func RegisterTyped[T any](r *Registry, jobType string, handler TypedHandler[T]) {
	r.Register(jobType, Typed(jobType, handler))
}

// Typed wraps handler in a Processor that decodes the payload into T
func Typed[T any](jobType string, handler TypedHandler[T]) Processor {
	return ProcessorFunc(func(ctx context.Context, job domain.Job) error {
		payload, err := DecodePayload[T](job)
		if err != nil {
			return err
		}
		return handler(ctx, job, payload)
	})
}

var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})
	return v
}

// DecodePayload unmarshals job.Payload into T and checks its validate tags.
// A missing required field is reported as *domain.MissingFieldError.
func DecodePayload[T any](job domain.Job) (T, error) {
	var payload T

	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return payload, fmt.Errorf("%w for job type %s: %v", domain.ErrInvalidPayload, job.Type, err)
		}
	}

	if err := payloadValidator.Struct(payload); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// T is not a struct; there are no tags to check
			return payload, nil
		}
		return payload, validationError(err)
	}

	return payload, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	fe := fieldErrs[0]
	if fe.Tag() == "required" {
		return domain.NewMissingFieldError(fe.Field())
	}
	return fmt.Errorf("%w: field %s failed %q validation", domain.ErrInvalidPayload, fe.Field(), fe.Tag())
}
