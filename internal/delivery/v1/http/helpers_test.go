package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/stretchr/testify/assert"
)

func TestToHTTPResponse(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{e.ErrProductNotFound, http.StatusNotFound},
		{e.Wrap("usecase", e.ErrProductNotFound), http.StatusNotFound},
		{e.ErrInvalidProductID, http.StatusBadRequest},
		{e.ErrInvalidTopK, http.StatusBadRequest},
		{e.ErrInvalidPage, http.StatusBadRequest},
		{e.ErrIngestionInProgress, http.StatusConflict},
		{e.ErrFeedUnavailable, http.StatusBadGateway},
		{fmt.Errorf("something internal"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		code, msg := ToHTTPResponse(tc.err)
		assert.Equal(t, tc.code, code, "err: %v", tc.err)
		assert.NotEmpty(t, msg)
	}
}
