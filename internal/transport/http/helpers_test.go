package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	apierrors "github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/errors"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/shared/testutil"
)

func newErrHandler(t *testing.T) *apierrors.ErrorHandler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return apierrors.NewErrorHandler(logger, false)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}
