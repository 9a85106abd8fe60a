package hydrate

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds reported by the hydrator. Use errors.Is to tell them apart.
var (
	ErrManifestFetch = errors.New("manifest fetch error")
	ErrManifestParse = errors.New("manifest parse error")
	ErrContentFetch  = errors.New("content fetch error")
)

// FetchError describes a failed request made during hydration.
type FetchError struct {
	Kind       error  // one of ErrManifestFetch, ErrManifestParse or ErrContentFetch
	URL        string // requested URL
	StatusCode int    // HTTP status, zero if no response was received
	Err        error  // underlying error, if any
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%v: GET %s: %v", e.Kind, e.URL, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%v: GET %s: unexpected status %d", e.Kind, e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("%v: GET %s", e.Kind, e.URL)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == e.Kind
}
