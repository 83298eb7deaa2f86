package apierror_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tokengate/tokengate/client/apierror"
)

func TestCategoryForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   apierror.Category
	}{
		{0, apierror.NetworkUnreachable},
		{400, apierror.BadRequest},
		{401, apierror.Unauthenticated},
		{403, apierror.Forbidden},
		{404, apierror.NotFound},
		{409, apierror.Conflict},
		{422, apierror.ValidationFailed},
		{429, apierror.RateLimited},
		{500, apierror.ServerError},
		{503, apierror.ServerError},
		{418, apierror.Unknown},
	}

	for _, tc := range tests {
		require.Equal(t, tc.want, apierror.CategoryForStatus(tc.status))
	}
}

func newResponse(status int, body string) *http.Response {
	rec := httptest.NewRecorder()
	rec.WriteHeader(status)
	resp := rec.Result()
	resp.Body = io.NopCloser(strings.NewReader(body))
	return resp
}

func TestFromResponsePrefersServerMessage(t *testing.T) {
	e := apierror.FromResponse(newResponse(401, `{"error":"Invalid email or password"}`))
	require.Equal(t, 401, e.StatusCode)
	require.Equal(t, apierror.Unauthenticated, e.Category)
	require.Equal(t, "Invalid email or password", e.Message)
}

func TestFromResponseFallsBackToDefaultMessage(t *testing.T) {
	e := apierror.FromResponse(newResponse(503, "<html>bad gateway</html>"))
	require.Equal(t, apierror.ServerError, e.Category)
	require.Equal(t, "Server error - please try again later", e.Message)
}

func TestFromTransport(t *testing.T) {
	e := apierror.FromTransport(errors.New("dial tcp: connection refused"))
	require.Equal(t, 0, e.StatusCode)
	require.Equal(t, apierror.NetworkUnreachable, e.Category)
}

func TestNormalizeForbiddenRedirectsOnce(t *testing.T) {
	var routes []string
	n := apierror.NewNormalizer(func(route string) { routes = append(routes, route) }, "/unauthorized")

	err := apierror.FromResponse(newResponse(403, `{"error":"Insufficient permissions"}`))

	// The same failure passed through multiple layers redirects exactly once.
	n.Normalize(err)
	n.Normalize(err)
	n.Normalize(err)

	require.Equal(t, []string{"/unauthorized"}, routes)
}

func TestNormalizeUnauthenticatedHasNoSideEffect(t *testing.T) {
	var routes []string
	n := apierror.NewNormalizer(func(route string) { routes = append(routes, route) }, "/unauthorized")

	e := n.Normalize(apierror.FromResponse(newResponse(401, `{}`)))
	require.Equal(t, apierror.Unauthenticated, e.Category)
	require.Empty(t, routes)
}

func TestNormalizeWrapsPlainErrors(t *testing.T) {
	n := apierror.NewNormalizer(nil, "/unauthorized")

	e := n.Normalize(errors.New("dial tcp: connection refused"))
	require.Equal(t, apierror.NetworkUnreachable, e.Category)

	require.Nil(t, n.Normalize(nil))
}
