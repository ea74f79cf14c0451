package ferrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[*Error]int{
		Invalidf("invalid", "bad"):           http.StatusBadRequest,
		NotFoundf("missing"):                 http.StatusNotFound,
		Forbiddenf("nope"):                   http.StatusForbidden,
		Conflictf("dup"):                     http.StatusConflict,
		Securityf("weak password"):           http.StatusUnauthorized,
		NotSupportedf("no such op"):           http.StatusInternalServerError,
		Wrap(errors.New("boom"), "internal"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, err.HTTPStatus())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("driver failure")
	err := Wrap(cause, "querying resource_versions")
	require.ErrorIs(t, err, cause)
}

func TestToOperationOutcome(t *testing.T) {
	err := NotFoundf("Patient/%s not found", "abc")
	oo := err.ToOperationOutcome()
	require.Equal(t, "OperationOutcome", oo.ResourceType)
	require.Len(t, oo.Issue, 1)
	assert.Equal(t, "not-found", oo.Issue[0].Code)
	assert.Equal(t, "Patient/abc not found", oo.Issue[0].Diagnostics)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	plain := errors.New("plain")
	e := FromError(plain)
	require.NotNil(t, e)
	assert.Equal(t, Exception, e.Kind)
}
