package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-catalog/internal/auth"
	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/service"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", oops.Code(service.CodeValidation).Errorf("invalid email: not an email"), http.StatusBadRequest, "invalid email: not an email"},
		{"authentication", oops.Code(service.CodeAuthentication).Errorf("password is invalid"), http.StatusUnauthorized, "password is invalid"},
		{"conflict", oops.Code(service.CodeConflict).Errorf("email already registered"), http.StatusConflict, "email already registered"},
		{"not found", oops.Code(service.CodeNotFound).Errorf("movie not found"), http.StatusNotFound, "movie not found"},
		{"not owner", oops.Code(service.CodeAuthorization).Wrap(&service.DeniedError{Decision: auth.Decision{Kind: auth.DenyNotOwner}}), http.StatusUnauthorized, "only the owner can modify this movie"},
		{"not owner with message", oops.Code(service.CodeAuthorization).Wrap(&service.DeniedError{Decision: auth.Decision{Kind: auth.DenyNotOwner}, Message: "only the owner can access this account"}), http.StatusUnauthorized, "only the owner can access this account"},
		{"unknown token", oops.Code(service.CodeAuthorization).Wrap(&service.DeniedError{Decision: auth.Decision{Kind: auth.DenyUserNotFound}}), http.StatusNotFound, "user not found"},
		{"uncoded", errors.New("dial tcp: connection refused"), http.StatusInternalServerError, "internal error"},
		{"wrapped uncoded", oops.Wrapf(errors.New("boom"), "search movies"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestParseQuery(t *testing.T) {
	e := echo.New()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/movies?page=2&page_size=5&title=+Dune+&year=2021&genre=scifi", nil), httptest.NewRecorder())
	q, err := parseQuery(c)
	require.NoError(t, err)
	assert.Equal(t, model.MovieQuery{Title: "Dune", Genre: "scifi", Year: 2021, Page: 2, PageSize: 5}, q)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/movies", nil), httptest.NewRecorder())
	q, err = parseQuery(c)
	require.NoError(t, err)
	assert.Equal(t, model.MovieQuery{}, q)

	for _, raw := range []string{"page=x", "page_size=-1", "year=nineteen"} {
		c = e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/movies?"+raw, nil), httptest.NewRecorder())
		_, err = parseQuery(c)
		assert.Error(t, err, raw)
	}
}

func TestPathID(t *testing.T) {
	e := echo.New()
	for raw, want := range map[string]bool{"7": true, "0": false, "-1": false, "abc": false} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(raw)
		_, ok := pathID(c)
		assert.Equal(t, want, ok, raw)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
	require.NoError(t, Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
