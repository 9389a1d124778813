package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation indicates a locally rejected selection. No network call is
// made for selections that fail validation.
var ErrValidation = errors.New("validation error")

// AllowedExtension is the single accepted compressed-volume format.
const AllowedExtension = ".nii.gz"

// ValidateFileName accepts only names with the allow-listed extension.
// The backend remains the final authority and may still reject the name.
func ValidateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty file name", ErrValidation)
	}
	if !strings.HasSuffix(strings.ToLower(name), AllowedExtension) {
		return fmt.Errorf("%w: only %s files are accepted, got %q", ErrValidation, AllowedExtension, name)
	}
	return nil
}

// ValidateSelection checks the file name and rejects empty contents.
func ValidateSelection(name string, data []byte) error {
	if err := ValidateFileName(name); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty file", ErrValidation)
	}
	return nil
}
