package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/schoolgate/schoolgate/pkg/errors"
)

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	return c, rec
}

func TestSuccessEnvelope(t *testing.T) {
	c, rec := testContext(t)
	Success(c, http.StatusCreated, map[string]string{"id": "n-1"})

	require.Equal(t, http.StatusCreated, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Nil(t, body.Error)
}

func TestErrorEnvelopeUsesAppErrorStatus(t *testing.T) {
	c, rec := testContext(t)
	Error(c, appErrors.NewConflict("Notification has already been responded to"))

	require.Equal(t, http.StatusConflict, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, "CONFLICT", body.Error.Code)
	require.Equal(t, "Notification has already been responded to", body.Error.Message)
}

func TestErrorEnvelopeHidesInternals(t *testing.T) {
	c, rec := testContext(t)
	Error(c, appErrors.Wrap(errString("pq: connection reset"), "list notifications"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection reset")
}

func TestNewMetaComputesPages(t *testing.T) {
	meta := NewMeta(10, 2, 10, 31)
	require.Equal(t, 4, meta.TotalPages)
	require.Equal(t, int64(31), meta.Total)

	require.Equal(t, 0, NewMeta(0, 1, 0, 5).TotalPages)
}

type errString string

func (e errString) Error() string { return string(e) }
