package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestMapErrorNilStaysNil(t *testing.T) {
	t.Parallel()
	// Must be an untyped nil so success paths that return
	// MapError(repoErr) do not trip callers' err != nil checks.
	err := MapError(nil)
	require.True(t, err == nil, "MapError(nil) = %#v, want untyped nil", err)
}

func TestMapErrorWrapsGenericErrors(t *testing.T) {
	t.Parallel()
	err := MapError(errors.New("connection reset"))
	require.Error(t, err)
	domainErr := ToDomainError(err)
	require.Equal(t, "INTERNAL_ERROR", domainErr.Code)
	require.Equal(t, http.StatusInternalServerError, domainErr.HTTPStatus)
}

func TestMapErrorTranslatesNoRows(t *testing.T) {
	t.Parallel()
	err := MapError(fmt.Errorf("load ticket: %w", pgx.ErrNoRows))
	domainErr := ToDomainError(err)
	require.Equal(t, "NOT_FOUND", domainErr.Code)
	require.Equal(t, http.StatusNotFound, domainErr.HTTPStatus)
}

func TestMapErrorKeepsDomainErrors(t *testing.T) {
	t.Parallel()
	original := NewForbidden("ticket is archived")
	err := MapError(original)
	domainErr := ToDomainError(err)
	require.Equal(t, "FORBIDDEN", domainErr.Code)
	require.Equal(t, "ticket is archived", domainErr.Message)
}
