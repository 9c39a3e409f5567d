package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

func TestRespondErrorMapsToProblems(t *testing.T) {
	cases := []struct {
		err    error
		status int
		title  string
	}{
		{fmt.Errorf("%w: journal 4", ErrNotFound), http.StatusNotFound, "Not Found"},
		{&accounting.EntryNotFoundError{ID: 4}, http.StatusNotFound, "Not Found"},
		{fmt.Errorf("%w: missing header", ErrUnauthorized), http.StatusUnauthorized, "Unauthorized"},
		{&accounting.PeriodClosedError{Period: "2024-03"}, http.StatusConflict, "Conflict"},
		{&accounting.UnbalancedEntryError{}, http.StatusUnprocessableEntity, "Unprocessable Entity"},
		{errors.New("connection reset"), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())
		require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
		require.Equal(t, tc.title, problem.Title)
		require.Equal(t, tc.status, problem.Status)
	}
}
