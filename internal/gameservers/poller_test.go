package gameservers

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"guildstats/internal/database/databasefake"
)

func TestPollerSync(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	panel := fakePanel(t, true, []target{
		{AvailableInstances: []Instance{
			{
				InstanceID:   "inst-1",
				FriendlyName: "Minecraft SMP",
				Module:       "Minecraft",
				Running:      true,
				Metrics: map[string]Metric{
					"CPU Usage":    {RawValue: 12},
					"Memory Usage": {RawValue: 1024},
					"Active Users": {RawValue: 3},
				},
			},
			{InstanceID: "ads", InstanceName: "ADS01", Module: "ADS"},
		}},
	})

	store := databasefake.New()
	client := NewClient(panel.URL, "admin", "hunter2")
	poller := NewPoller(store, client, nil, zaptest.NewLogger(t), quartz.NewMock(t), time.Minute)

	require.NoError(t, poller.Sync(ctx))

	servers, err := store.GetGameServers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	require.Equal(t, "inst-1", servers[0].InstanceID)
	require.Equal(t, float64(12), servers[0].CPUUsagePercent)
	require.Equal(t, 3, servers[0].ActiveUsers)

	// Syncing again updates in place rather than duplicating.
	require.NoError(t, poller.Sync(ctx))
	servers, err = store.GetGameServers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 2)
}

func TestPollerSyncPrunesRemovedInstances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := databasefake.New()
	clock := quartz.NewMock(t)

	first := fakePanel(t, true, []target{
		{AvailableInstances: []Instance{
			{InstanceID: "inst-1", FriendlyName: "Minecraft", Module: "Minecraft"},
			{InstanceID: "inst-2", FriendlyName: "Valheim", Module: "GenericModule"},
		}},
	})
	poller := NewPoller(store, NewClient(first.URL, "admin", "hunter2"), nil, zaptest.NewLogger(t), clock, time.Minute)
	require.NoError(t, poller.Sync(ctx))

	second := fakePanel(t, true, []target{
		{AvailableInstances: []Instance{
			{InstanceID: "inst-1", FriendlyName: "Minecraft", Module: "Minecraft"},
		}},
	})
	poller = NewPoller(store, NewClient(second.URL, "admin", "hunter2"), nil, zaptest.NewLogger(t), clock, time.Minute)
	require.NoError(t, poller.Sync(ctx))

	servers, err := store.GetGameServers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	require.Equal(t, "inst-1", servers[0].InstanceID)
}

func TestPollerSyncFetchesCovers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	panel := fakePanel(t, true, []target{
		{AvailableInstances: []Instance{
			{InstanceID: "inst-1", FriendlyName: "Factorio", Module: "GenericModule"},
			{InstanceID: "ads", Module: "ADS"},
		}},
	})
	igdb := fakeIGDB(t, true)

	store := databasefake.New()
	poller := NewPoller(store, NewClient(panel.URL, "admin", "hunter2"),
		newTestFetcher(t, igdb), zaptest.NewLogger(t), quartz.NewMock(t), time.Minute)

	require.NoError(t, poller.Sync(ctx))

	servers, err := store.GetGameServers(ctx)
	require.NoError(t, err)
	for _, server := range servers {
		if server.InstanceID == "inst-1" {
			require.Equal(t, "/static/images/factorio_co1abc2d.jpg", server.CoverImage)
		} else {
			// The controller instance is not a game and gets no cover.
			require.Empty(t, server.CoverImage)
		}
	}

	pending, err := store.GetGameServersWithoutCovers(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestPollerSyncLoginFailure(t *testing.T) {
	t.Parallel()

	panel := fakePanel(t, false, nil)
	store := databasefake.New()
	poller := NewPoller(store, NewClient(panel.URL, "admin", "wrong"), nil,
		zaptest.NewLogger(t), quartz.NewMock(t), time.Minute)

	require.Error(t, poller.Sync(context.Background()))

	servers, err := store.GetGameServers(context.Background())
	require.NoError(t, err)
	require.Empty(t, servers)
}
