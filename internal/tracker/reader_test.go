package tracker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"guildstats/internal/database"
	"guildstats/internal/database/databasefake"
	"guildstats/internal/tracker"
)

func TestUserTotalsMergeLiveSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := databasefake.New()
	clock := quartz.NewMock(t)
	recorder := tracker.NewRecorder(store, zaptest.NewLogger(t), clock)
	aggregator := tracker.NewAggregator(store, zaptest.NewLogger(t), clock, time.Minute)
	reader := tracker.NewReader(store, zaptest.NewLogger(t), clock)

	// One drained hour plus one open session twenty minutes in.
	err := recorder.RecordPresence(ctx, "100", "alice", []tracker.Activity{
		{Kind: "game", Name: "Factorio"},
	})
	require.NoError(t, err)
	clock.Advance(time.Hour)
	require.NoError(t, recorder.RecordPresence(ctx, "100", "alice", nil))
	require.NoError(t, aggregator.RunCycle(ctx))

	err = recorder.RecordPresence(ctx, "100", "alice", []tracker.Activity{
		{Kind: "game", Name: "Factorio"},
	})
	require.NoError(t, err)
	clock.Advance(20 * time.Minute)

	totals, err := reader.UserTotalsByDiscordID(ctx, "100")
	require.NoError(t, err)
	require.Equal(t, "alice", totals.Username)
	require.EqualValues(t, 4800, totals.GamingSeconds)
}

func TestUserTotalsUnknownUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reader := tracker.NewReader(databasefake.New(), zaptest.NewLogger(t), quartz.NewMock(t))

	_, err := reader.UserTotalsByDiscordID(ctx, "999")
	require.ErrorIs(t, err, tracker.ErrNotFound)
}

func TestOverviewStableAcrossDrain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := databasefake.New()
	clock := quartz.NewMock(t)
	recorder := tracker.NewRecorder(store, zaptest.NewLogger(t), clock)
	aggregator := tracker.NewAggregator(store, zaptest.NewLogger(t), clock, time.Minute)
	reader := tracker.NewReader(store, zaptest.NewLogger(t), clock)

	err := recorder.RecordPresence(ctx, "100", "alice", []tracker.Activity{
		{Kind: "game", Name: "Factorio"},
	})
	require.NoError(t, err)
	clock.Advance(time.Hour)
	require.NoError(t, recorder.RecordPresence(ctx, "100", "alice", nil))
	require.NoError(t, recorder.RecordVoiceJoin(ctx, "200", "bob", "General"))
	clock.Advance(10 * time.Minute)
	require.NoError(t, recorder.RecordVoiceLeave(ctx, "200", "bob", "General"))
	require.NoError(t, recorder.RecordMessage(ctx, "100", "alice", "general", 5))

	before, err := reader.Overview(ctx, 5)
	require.NoError(t, err)
	require.False(t, before.Degraded)

	// Draining moves the rows into counters; totals must not change.
	require.NoError(t, aggregator.RunCycle(ctx))
	after, err := reader.Overview(ctx, 5)
	require.NoError(t, err)

	require.Equal(t, before.TotalUsers, after.TotalUsers)
	require.Equal(t, before.TotalGamingSeconds, after.TotalGamingSeconds)
	require.Equal(t, before.TotalVoiceSeconds, after.TotalVoiceSeconds)
	require.Equal(t, before.TotalMessages, after.TotalMessages)
	require.EqualValues(t, 2, after.TotalUsers)
	require.EqualValues(t, 4200, after.TotalGamingSeconds+after.TotalVoiceSeconds)
	require.EqualValues(t, 1, after.TotalMessages)
}

func TestOverviewLeaderboardOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := databasefake.New()
	clock := quartz.NewMock(t)
	recorder := tracker.NewRecorder(store, zaptest.NewLogger(t), clock)
	reader := tracker.NewReader(store, zaptest.NewLogger(t), clock)

	play := func(discordID, username, game string, d time.Duration) {
		err := recorder.RecordPresence(ctx, discordID, username, []tracker.Activity{
			{Kind: "game", Name: game},
		})
		require.NoError(t, err)
		clock.Advance(d)
		require.NoError(t, recorder.RecordPresence(ctx, discordID, username, nil))
	}
	play("100", "alice", "Factorio", 3*time.Hour)
	play("200", "bob", "Rimworld", 2*time.Hour)
	play("300", "carol", "Factorio", time.Hour)

	overview, err := reader.Overview(ctx, 2)
	require.NoError(t, err)

	require.Len(t, overview.TopGamers, 2)
	require.Equal(t, "alice", overview.TopGamers[0].Username)
	require.Equal(t, "bob", overview.TopGamers[1].Username)

	require.Len(t, overview.TopGames, 2)
	require.Equal(t, "Factorio", overview.TopGames[0].GameName)
	require.EqualValues(t, 4*3600, overview.TopGames[0].Seconds)
	require.Equal(t, "Rimworld", overview.TopGames[1].GameName)
}

// degradedStore fails every live merge query.
type degradedStore struct {
	database.Store
}

func (s *degradedStore) LiveGameSecondsByUser(context.Context, time.Time) (map[int64]int64, error) {
	return nil, errors.New("connection refused")
}

func (s *degradedStore) LiveVoiceSecondsByUser(context.Context, time.Time) (map[int64]int64, error) {
	return nil, errors.New("connection refused")
}

func (s *degradedStore) LiveMessageCountsByUser(context.Context) (map[int64]int64, error) {
	return nil, errors.New("connection refused")
}

func (s *degradedStore) LiveGameSecondsByGame(context.Context, time.Time) (map[string]int64, error) {
	return nil, errors.New("connection refused")
}

func (s *degradedStore) LiveGameSecondsForUser(context.Context, int64, time.Time) (int64, error) {
	return 0, errors.New("connection refused")
}

func (s *degradedStore) LiveVoiceSecondsForUser(context.Context, int64, time.Time) (int64, error) {
	return 0, errors.New("connection refused")
}

func (s *degradedStore) LiveMessageCountForUser(context.Context, int64) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestOverviewDegradesToDurableCounters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := databasefake.New()
	clock := quartz.NewMock(t)
	recorder := tracker.NewRecorder(fake, zaptest.NewLogger(t), clock)
	aggregator := tracker.NewAggregator(fake, zaptest.NewLogger(t), clock, time.Minute)

	err := recorder.RecordPresence(ctx, "100", "alice", []tracker.Activity{
		{Kind: "game", Name: "Factorio"},
	})
	require.NoError(t, err)
	clock.Advance(time.Hour)
	require.NoError(t, recorder.RecordPresence(ctx, "100", "alice", nil))
	require.NoError(t, aggregator.RunCycle(ctx))

	// A second session is still undrained; with live queries down the
	// reader serves the durable hour and flags the response.
	err = recorder.RecordPresence(ctx, "100", "alice", []tracker.Activity{
		{Kind: "game", Name: "Factorio"},
	})
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)

	reader := tracker.NewReader(&degradedStore{Store: fake}, zaptest.NewLogger(t), clock)
	overview, err := reader.Overview(ctx, 5)
	require.NoError(t, err)
	require.True(t, overview.Degraded)
	require.EqualValues(t, 3600, overview.TotalGamingSeconds)

	totals, err := reader.UserTotalsByDiscordID(ctx, "100")
	require.NoError(t, err)
	require.EqualValues(t, 3600, totals.GamingSeconds)
}

func TestVoiceTotalsBoundedAfterMissedLeave(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := databasefake.New()
	clock := quartz.NewMock(t)
	recorder := tracker.NewRecorder(store, zaptest.NewLogger(t), clock)
	aggregator := tracker.NewAggregator(store, zaptest.NewLogger(t), clock, time.Minute)
	reader := tracker.NewReader(store, zaptest.NewLogger(t), clock)

	// A missed leave event leaves a duplicate open row behind.
	require.NoError(t, recorder.RecordVoiceJoin(ctx, "100", "alice", "Lobby"))
	clock.Advance(time.Minute)
	require.NoError(t, recorder.RecordVoiceJoin(ctx, "100", "alice", "Lobby"))
	clock.Advance(time.Minute)

	// Before the leave arrives only the newest open row counts.
	totals, err := reader.UserTotalsByDiscordID(ctx, "100")
	require.NoError(t, err)
	require.EqualValues(t, 60, totals.VoiceSeconds)

	// The leave settles both rows, so nothing stays open to accrue time.
	require.NoError(t, recorder.RecordVoiceLeave(ctx, "100", "alice", "Lobby"))
	require.NoError(t, aggregator.RunCycle(ctx))

	totals, err = reader.UserTotalsByDiscordID(ctx, "100")
	require.NoError(t, err)
	require.EqualValues(t, 180, totals.VoiceSeconds)

	clock.Advance(10 * time.Hour)
	totals, err = reader.UserTotalsByDiscordID(ctx, "100")
	require.NoError(t, err)
	require.EqualValues(t, 180, totals.VoiceSeconds)

	overview, err := reader.Overview(ctx, 5)
	require.NoError(t, err)
	require.EqualValues(t, 180, overview.TotalVoiceSeconds)
}

func TestGameTotalsByName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := databasefake.New()
	clock := quartz.NewMock(t)
	recorder := tracker.NewRecorder(store, zaptest.NewLogger(t), clock)
	aggregator := tracker.NewAggregator(store, zaptest.NewLogger(t), clock, time.Minute)
	reader := tracker.NewReader(store, zaptest.NewLogger(t), clock)

	err := recorder.RecordPresence(ctx, "100", "alice", []tracker.Activity{
		{Kind: "game", Name: "Factorio"},
	})
	require.NoError(t, err)
	clock.Advance(time.Hour)
	require.NoError(t, recorder.RecordPresence(ctx, "100", "alice", nil))
	require.NoError(t, aggregator.RunCycle(ctx))

	err = recorder.RecordPresence(ctx, "200", "bob", []tracker.Activity{
		{Kind: "game", Name: "Factorio"},
	})
	require.NoError(t, err)
	clock.Advance(15 * time.Minute)

	totals, err := reader.GameTotalsByName(ctx, "Factorio")
	require.NoError(t, err)
	require.EqualValues(t, 4500, totals.TotalSeconds)
	require.EqualValues(t, 1, totals.TotalSessions)

	// Unknown games read as zero rather than an error.
	totals, err = reader.GameTotalsByName(ctx, "Quake")
	require.NoError(t, err)
	require.EqualValues(t, 0, totals.TotalSeconds)
}
