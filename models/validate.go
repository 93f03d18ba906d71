package models

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateRecord checks a finalized record against its schema tags. A record
// that fails here is reported as NO_RECORD_FOUND: the page produced something,
// but not a record worth returning.
func ValidateRecord(r Record) error {
	if err := Validator().Struct(r); err != nil {
		return &ScrapeError{
			Code:    ErrCodeNoRecord,
			Message: "record failed validation",
			Err:     err,
		}
	}
	return nil
}
