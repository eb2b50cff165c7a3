package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"xray-data/internal/repository"
	"xray-data/internal/service"
	"xray-data/internal/store"
)

func newTestRouter(t *testing.T) (*Router, *service.SignalService) {
	t.Helper()
	repo := repository.NewMemorySignalsRepo()
	svc := service.NewSignalService(repo, store.NewMemoryDeviceActivity(), zap.NewNop())

	router := NewRouter(zap.NewNop())
	router.RegisterSignalRoutes(NewSignalHandler(svc, nil, zap.NewNop()))
	return router, svc
}

func doRequest(router *Router, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func saveTestSignal(t *testing.T, svc *service.SignalService, deviceID string, timeMs int64) string {
	t.Helper()
	body := fmt.Sprintf(`{"deviceId":%q,"time":%d,"data":[[0,[1,2,3]]]}`, deviceID, timeMs)
	payload, err := service.DecodeSavePayload([]byte(body))
	require.NoError(t, err)
	rec, err := svc.SaveSignal(context.Background(), payload)
	require.NoError(t, err)
	return rec.ID
}

func TestCreateSignal(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/xray-signal", `{"deviceId":"dev-1","time":1000,"data":[[0,[1,2,3]]]}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Signal saved successfully", resp.Message)
}

func TestCreateSignalValidationFailure(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/xray-signal", `{"deviceId":"","time":1000,"data":[]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "deviceId")
	assert.Contains(t, resp.Message, "data")
}

func TestCreateSignalUndecodableBody(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/xray-signal", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFindAllEmptyIsNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/xray-signal", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "error", decodeResponse(t, w).Status)
}

func TestFindAllReturnsPage(t *testing.T) {
	router, svc := newTestRouter(t)
	saveTestSignal(t, svc, "dev-1", 1000)
	saveTestSignal(t, svc, "dev-2", 2000)

	w := doRequest(router, http.MethodGet, "/xray-signal?sortBy=time&sortOrder=desc", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	assert.Equal(t, "success", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var page service.SignalPage
	require.NoError(t, json.Unmarshal(data, &page))

	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Records, 2)
	assert.Equal(t, int64(2000), page.Records[0].Time)
}

func TestFindAllVolumeFilterNoMatchIsNotFound(t *testing.T) {
	router, svc := newTestRouter(t)
	saveTestSignal(t, svc, "dev-1", 1000)

	w := doRequest(router, http.MethodGet, "/xray-signal?dataVolumeMin=99999999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFindAllRejectsBadQueryParams(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, target := range []string{
		"/xray-signal?timeStart=abc",
		"/xray-signal?dataVolumeMin=x",
		"/xray-signal?sortBy=createdAt",
		"/xray-signal?page=0",
		"/xray-signal?limit=101",
	} {
		w := doRequest(router, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestDeleteAll(t *testing.T) {
	router, svc := newTestRouter(t)
	saveTestSignal(t, svc, "dev-1", 1000)
	saveTestSignal(t, svc, "dev-1", 2000)
	saveTestSignal(t, svc, "dev-2", 3000)

	w := doRequest(router, http.MethodDelete, "/xray-signal?deviceId=dev-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2 signals deleted successfully", decodeResponse(t, w).Message)

	// nothing left for dev-1
	w = doRequest(router, http.MethodDelete, "/xray-signal?deviceId=dev-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFindOne(t *testing.T) {
	router, svc := newTestRouter(t)
	id := saveTestSignal(t, svc, "dev-1", 1000)

	w := doRequest(router, http.MethodGet, "/xray-signal/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", decodeResponse(t, w).Status)

	w = doRequest(router, http.MethodGet, "/xray-signal/no-such-id", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteOne(t *testing.T) {
	router, svc := newTestRouter(t)
	id := saveTestSignal(t, svc, "dev-1", 1000)

	w := doRequest(router, http.MethodDelete, "/xray-signal/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)

	// second delete finds nothing
	w = doRequest(router, http.MethodDelete, "/xray-signal/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeviceActivity(t *testing.T) {
	router, svc := newTestRouter(t)
	saveTestSignal(t, svc, "dev-1", 1000)

	w := doRequest(router, http.MethodGet, "/xray-signal/devices/activity", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var seen map[string]string
	require.NoError(t, json.Unmarshal(data, &seen))
	assert.Contains(t, seen, "dev-1")
}

func TestExportStreamsWorkbook(t *testing.T) {
	router, svc := newTestRouter(t)
	saveTestSignal(t, svc, "dev-1", 1000)

	w := doRequest(router, http.MethodGet, "/xray-signal/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "xray-signals.xlsx")
	assert.NotEmpty(t, w.Body.Bytes())

	// export honors the same filters as the collection endpoints
	w = doRequest(router, http.MethodGet, "/xray-signal/export?deviceId=ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPut, "/xray-signal", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
