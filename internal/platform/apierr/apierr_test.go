package apierr

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	cdgerrors "github.com/yungbote/neurobridge-cdg/internal/pkg/errors"
)

func TestFromError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("bad patch: %w", cdgerrors.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{fmt.Errorf("graph g: %w", cdgerrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("v3: %w", cdgerrors.ErrConflict), http.StatusConflict, "conflict"},
		{fmt.Errorf("single_root: %w", cdgerrors.ErrInvariant), http.StatusInternalServerError, "invariant_violated"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError, "internal"},
		{fmt.Errorf("wrapped: %w", New(http.StatusTeapot, "teapot", nil)), http.StatusTeapot, "teapot"},
	}
	for _, tc := range cases {
		got := FromError(tc.err)
		assert.Equal(t, tc.status, got.Status, tc.err.Error())
		assert.Equal(t, tc.code, got.Code, tc.err.Error())
	}
	assert.Nil(t, FromError(nil))
}
