package gameservers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakePanel(t *testing.T, loginOK bool, targets []target) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/API/Core/Login", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "admin", payload["username"])

		if loginOK {
			w.Header().Set("Authorization", "Bearer panel-token")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": loginOK})
	})
	mux.HandleFunc("/API/ADSModule/GetInstances", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer panel-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(targets)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClientLogin(t *testing.T) {
	t.Parallel()

	panel := fakePanel(t, true, nil)
	client := NewClient(panel.URL, "admin", "hunter2")

	token, err := client.Login(context.Background())
	require.NoError(t, err)
	require.Equal(t, "panel-token", token)
}

func TestClientLoginRejected(t *testing.T) {
	t.Parallel()

	panel := fakePanel(t, false, nil)
	client := NewClient(panel.URL, "admin", "wrong")

	_, err := client.Login(context.Background())
	require.ErrorContains(t, err, "rejected")
}

func TestClientInstances(t *testing.T) {
	t.Parallel()

	panel := fakePanel(t, true, []target{
		{AvailableInstances: []Instance{
			{
				InstanceID:   "inst-1",
				FriendlyName: "Minecraft SMP",
				Module:       "Minecraft",
				Running:      true,
				Metrics: map[string]Metric{
					"CPU Usage":    {RawValue: 42.5},
					"Memory Usage": {RawValue: 2048},
					"Active Users": {RawValue: 7},
				},
			},
			{InstanceID: "inst-2", Module: "ADS"},
		}},
		{AvailableInstances: []Instance{
			{InstanceID: "inst-3", FriendlyName: "Valheim", Module: "GenericModule"},
		}},
	})
	client := NewClient(panel.URL, "admin", "hunter2")

	ctx := context.Background()
	token, err := client.Login(ctx)
	require.NoError(t, err)

	instances, err := client.Instances(ctx, token)
	require.NoError(t, err)
	require.Len(t, instances, 3)
	require.Equal(t, "inst-1", instances[0].InstanceID)
	require.Equal(t, 42.5, instances[0].CPUUsage())
	require.Equal(t, float64(2048), instances[0].MemoryUsageMB())
	require.Equal(t, 7, instances[0].ActiveUsers())
	require.Equal(t, "inst-3", instances[2].InstanceID)
}
