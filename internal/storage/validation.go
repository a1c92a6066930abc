package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/catalog-mapper/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrInvalidSubmission = errors.New("invalid submission")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateSubmission(sub model.Submission) error {
	if sub.TaskID <= 0 {
		return fmt.Errorf("%w: task id must be positive, got %d", ErrInvalidSubmission, sub.TaskID)
	}
	if sub.SessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidSubmission)
	}
	if sub.SubmittedAt.IsZero() {
		return fmt.Errorf("%w: submission time is required", ErrInvalidSubmission)
	}
	for i, item := range sub.Items {
		if item.OfferID == "" {
			return fmt.Errorf("%w: item %d has no offer id", ErrInvalidSubmission, i)
		}
	}
	return nil
}
