package hydrate_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"

	"github.com/webcontainer-demo/livedemo/hydrate"
	"gotest.tools/assert"
)

func extractFetchError(err error) *hydrate.FetchError {
	var fetchErr *hydrate.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}
	return nil
}

func TestFetchErrorAs(t *testing.T) {
	err := fmt.Errorf("123")
	assert.Equal(t, extractFetchError(err) == nil, true)

	fetchErr := &hydrate.FetchError{
		Kind:       hydrate.ErrContentFetch,
		URL:        "http://127.0.0.1:8080/container/a.txt",
		StatusCode: http.StatusNotFound,
	}
	assert.Equal(t, extractFetchError(errors.WithMessage(fetchErr, "failed to hydrate")), fetchErr)
	assert.Equal(t, extractFetchError(errors.WithMessage(errors.WithMessage(fetchErr, "failed to fetch"), "Failed to run")), fetchErr)
}

func TestFetchErrorIs(t *testing.T) {
	cause := errors.New("connection refused")
	err := errors.WithMessage(&hydrate.FetchError{
		Kind: hydrate.ErrManifestFetch,
		URL:  "http://127.0.0.1:8080/dir.json",
		Err:  cause,
	}, "failed to hydrate")

	assert.Assert(t, errors.Is(err, hydrate.ErrManifestFetch))
	assert.Assert(t, !errors.Is(err, hydrate.ErrContentFetch))
	assert.Assert(t, !errors.Is(err, hydrate.ErrManifestParse))
	assert.Assert(t, errors.Is(err, cause))
}

func TestFetchErrorMessage(t *testing.T) {
	tests := []struct {
		err      *hydrate.FetchError
		expected string
	}{
		{
			&hydrate.FetchError{Kind: hydrate.ErrContentFetch, URL: "http://h/a.txt", StatusCode: 404},
			"content fetch error: GET http://h/a.txt: unexpected status 404",
		},
		{
			&hydrate.FetchError{Kind: hydrate.ErrManifestParse, URL: "http://h/dir.json", Err: errors.New("bad json")},
			"manifest parse error: GET http://h/dir.json: bad json",
		},
		{
			&hydrate.FetchError{Kind: hydrate.ErrManifestFetch, URL: "http://h/dir.json"},
			"manifest fetch error: GET http://h/dir.json",
		},
	}

	for _, tt := range tests {
		assert.Error(t, tt.err, tt.expected)
	}
}
