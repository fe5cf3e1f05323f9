package aggregate

import "fmt"

// StrictError reports every file that failed to parse in strict mode.
type StrictError struct {
	Skipped []Skipped
	Total   int
}

func (e *StrictError) Error() string {
	return fmt.Sprintf("%d/%d files failed to parse, see logs for details", len(e.Skipped), e.Total)
}

// Unwrap exposes the individual parse errors to errors.Is and errors.As.
func (e *StrictError) Unwrap() []error {
	errs := make([]error, 0, len(e.Skipped))
	for _, s := range e.Skipped {
		errs = append(errs, s.Err)
	}
	return errs
}
