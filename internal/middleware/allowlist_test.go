package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cryptorecs/internal/errors"
	"cryptorecs/internal/shared/testutil"
)

func TestIPAllowList_Allows(t *testing.T) {
	tests := []struct {
		name       string
		entries    []string
		remoteAddr string
		want       bool
	}{
		{name: "empty list allows all", remoteAddr: "203.0.113.7:4000", want: true},
		{name: "inside cidr", entries: []string{"10.0.0.0/8"}, remoteAddr: "10.1.2.3:4000", want: true},
		{name: "outside cidr", entries: []string{"10.0.0.0/8"}, remoteAddr: "192.168.1.1:4000"},
		{name: "unmasked cidr", entries: []string{"192.168.1.77/24"}, remoteAddr: "192.168.1.5:80", want: true},
		{name: "single address", entries: []string{"127.0.0.1"}, remoteAddr: "127.0.0.1:51234", want: true},
		{name: "single address mismatch", entries: []string{"127.0.0.1"}, remoteAddr: "127.0.0.2:51234"},
		{name: "ipv6 loopback", entries: []string{"::1"}, remoteAddr: "[::1]:8080", want: true},
		{name: "ipv4 mapped ipv6", entries: []string{"10.0.0.0/8"}, remoteAddr: "[::ffff:10.0.0.1]:8080", want: true},
		{name: "bare host", entries: []string{"10.0.0.0/8"}, remoteAddr: "10.9.9.9", want: true},
		{name: "unparseable peer", entries: []string{"10.0.0.0/8"}, remoteAddr: "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			al, err := NewIPAllowList(tt.entries, apperrors.NewErrorHandler(logger, false), logger)
			require.NoError(t, err)
			assert.Equal(t, tt.want, al.Allows(tt.remoteAddr))
		})
	}
}

func TestIPAllowList_InvalidEntry(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	_, err := NewIPAllowList([]string{"10.0.0.0/33"}, apperrors.NewErrorHandler(logger, false), logger)

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestIPAllowList_Handler(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	al, err := NewIPAllowList([]string{"127.0.0.0/8"}, apperrors.NewErrorHandler(logger, false), logger)
	require.NoError(t, err)
	handler := al.Handler(http.HandlerFunc(okHandler))

	allowed := httptest.NewRequest(http.MethodGet, "/api/crypto/list", nil)
	allowed.RemoteAddr = "127.0.0.1:9999"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, allowed)
	assert.Equal(t, http.StatusOK, rec.Code)

	rejected := httptest.NewRequest(http.MethodGet, "/api/crypto/list", nil)
	rejected.RemoteAddr = "198.51.100.4:9999"
	rejected.Header.Set("X-Forwarded-For", "127.0.0.1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, rejected)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperrors.TypeForbidden, decodeProblem(t, rec)["type"])
	assert.True(t, logs.ContainsMessage("address_rejected"))
}
