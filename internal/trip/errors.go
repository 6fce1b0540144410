package trip

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports input that can never be processed as given.
type ValidationError struct {
	Msg     string
	Missing []string
	Found   []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: [%s]", e.Msg, strings.Join(e.Missing, ", "))
	}
	return e.Msg
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func missingColumns(missing, found []string) error {
	return &ValidationError{Msg: "missing required columns", Missing: missing, Found: found}
}
