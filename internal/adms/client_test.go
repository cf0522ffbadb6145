package adms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pqmap-analyzer/internal/config"
)

func newTestClient(baseURL string) *Client {
	cfg := &config.ADMSConfig{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		RetryCount: 0,
	}
	return NewClient(cfg, zap.NewNop())
}

func TestGetSystemStatus_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/system/status", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"maintenance"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	status, err := client.GetSystemStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "maintenance", status)
}

func TestGetSystemStatus_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	status, err := client.GetSystemStatus(context.Background())

	assert.Error(t, err)
	assert.Empty(t, status)
	assert.Contains(t, err.Error(), "returned 500")
}

func TestGetMaintenanceWindows_Success(t *testing.T) {
	from := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/maintenance-windows", r.URL.Path)
		assert.Equal(t, "2025-03-10T13:00:00Z", r.URL.Query().Get("from"))
		assert.Equal(t, "2025-03-10T15:00:00Z", r.URL.Query().Get("to"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"windows": [
				{
					"substation_id": "SUB-A",
					"start_time": "2025-03-10T13:30:00Z",
					"end_time": "2025-03-10T14:30:00Z",
					"description": "transformer inspection"
				}
			]
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	windows, err := client.GetMaintenanceWindows(context.Background(), from, to)

	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, "SUB-A", windows[0].SubstationID)
	assert.Equal(t, "transformer inspection", windows[0].Description)
	assert.True(t, windows[0].StartTime.Before(windows[0].EndTime))
}

func TestGetMaintenanceWindows_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"windows":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	windows, err := client.GetMaintenanceWindows(context.Background(), time.Now().Add(-time.Hour), time.Now())

	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestGetMaintenanceWindows_Unreachable(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")

	windows, err := client.GetMaintenanceWindows(context.Background(), time.Now().Add(-time.Hour), time.Now())

	assert.Error(t, err)
	assert.Nil(t, windows)
}
