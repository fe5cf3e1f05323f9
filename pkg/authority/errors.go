package authority

import (
	"errors"
	"fmt"
)

// ErrBadArtifact is returned for artifact ids that are not name-version-build.
var ErrBadArtifact = errors.New("malformed artifact id")

// FetchError describes a failed request for one of the remote tables.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
