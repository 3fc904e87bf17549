package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, http.StatusOK},
		{"cancelled", ErrOperationCancelled, StatusClientClosedRequest},
		{"wrapped cancelled", Wrap(ErrOperationCancelled, "aggregation aborted"), StatusClientClosedRequest},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"wrapped timeout", Wrapf(ErrTimeout, "github pagination"), http.StatusGatewayTimeout},
		{"invalid request", ErrInvalidRequest, http.StatusBadRequest},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"unknown error", New("disk on fire"), http.StatusInternalServerError},
		{"source fetch is internal", ErrSourceFetch, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestIsApplicationError(t *testing.T) {
	assert.True(t, IsApplicationError(ErrSourceFetch))
	assert.True(t, IsApplicationError(Wrap(ErrTimeout, "sheets fetch")))
	assert.False(t, IsApplicationError(New("nil map write")))
	assert.False(t, IsApplicationError(nil))
}

func TestSentinelWrappingPreservesIdentity(t *testing.T) {
	err := Wrapf(ErrSourceFetch, "GitHub: owner=%s repo=%s", "tempohq", "teamtempo")
	assert.True(t, Is(err, ErrSourceFetch))
	assert.Contains(t, err.Error(), "tempohq")
}
