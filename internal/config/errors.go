package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError lists every constraint a loaded config violates.
type ValidationError struct {
	File   string // empty when only defaults and env were used
	Issues []string
}

func (e *ValidationError) Error() string {
	source := e.File
	if source == "" {
		source = "defaults and environment"
	}
	return fmt.Sprintf("invalid config (%s): %s", source, strings.Join(e.Issues, "; "))
}

// AsValidationError extracts a ValidationError from the chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
