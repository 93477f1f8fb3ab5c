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

func TestRunCycleDrainsClosedSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := databasefake.New()
	clock := quartz.NewMock(t)
	recorder := tracker.NewRecorder(store, zaptest.NewLogger(t), clock)
	aggregator := tracker.NewAggregator(store, zaptest.NewLogger(t), clock, time.Minute)

	err := recorder.RecordPresence(ctx, "100", "alice", []tracker.Activity{
		{Kind: "game", Name: "Factorio"},
	})
	require.NoError(t, err)
	clock.Advance(time.Hour)
	require.NoError(t, recorder.RecordPresence(ctx, "100", "alice", nil))

	err = recorder.RecordPresence(ctx, "200", "bob", []tracker.Activity{
		{Kind: "game", Name: "Factorio"},
	})
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	require.NoError(t, recorder.RecordPresence(ctx, "200", "bob", nil))

	require.NoError(t, aggregator.RunCycle(ctx))

	stat, err := store.GetGameStatistic(ctx, "Factorio")
	require.NoError(t, err)
	require.EqualValues(t, 5400, stat.TotalSeconds)
	require.EqualValues(t, 2, stat.TotalSessions)
	require.EqualValues(t, 5400, stat.SecondsThisWeek)
	require.EqualValues(t, 5400, stat.SecondsThisMonth)

	alice, err := store.GetUserByDiscordID(ctx, "100")
	require.NoError(t, err)
	aliceStat, err := store.GetUserStatistic(ctx, alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3600, aliceStat.TotalGamingSeconds)

	// The folded rows are gone; a second cycle finds nothing and the
	// counters do not move.
	closed, err := store.GetClosedGameSessions(ctx)
	require.NoError(t, err)
	require.Empty(t, closed)

	require.NoError(t, aggregator.RunCycle(ctx))
	stat, err = store.GetGameStatistic(ctx, "Factorio")
	require.NoError(t, err)
	require.EqualValues(t, 5400, stat.TotalSeconds)
	require.EqualValues(t, 2, stat.TotalSessions)
}

func TestRunCycleLeavesOpenSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := databasefake.New()
	clock := quartz.NewMock(t)
	recorder := tracker.NewRecorder(store, zaptest.NewLogger(t), clock)
	aggregator := tracker.NewAggregator(store, zaptest.NewLogger(t), clock, time.Minute)

	err := recorder.RecordPresence(ctx, "100", "alice", []tracker.Activity{
		{Kind: "game", Name: "Rimworld"},
	})
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	require.NoError(t, aggregator.RunCycle(ctx))

	// The in-flight session is untouched and no counter exists yet.
	players, err := store.CountOpenGamePlayers(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, players)

	_, err = store.GetGameStatistic(ctx, "Rimworld")
	require.True(t, database.IsNotFound(err))

	// Once it closes, the next cycle folds the full duration.
	clock.Advance(10 * time.Minute)
	require.NoError(t, recorder.RecordPresence(ctx, "100", "alice", nil))
	require.NoError(t, aggregator.RunCycle(ctx))

	stat, err := store.GetGameStatistic(ctx, "Rimworld")
	require.NoError(t, err)
	require.EqualValues(t, 1800, stat.TotalSeconds)
	require.EqualValues(t, 1, stat.TotalSessions)
}

func TestRunCycleLeavesOpenVoiceSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := databasefake.New()
	clock := quartz.NewMock(t)
	recorder := tracker.NewRecorder(store, zaptest.NewLogger(t), clock)
	aggregator := tracker.NewAggregator(store, zaptest.NewLogger(t), clock, time.Minute)

	require.NoError(t, recorder.RecordVoiceJoin(ctx, "100", "alice", "Lobby"))

	// A drain two minutes in must not touch the open row; the session
	// keeps accruing and closes with its full duration.
	clock.Advance(2 * time.Minute)
	require.NoError(t, aggregator.RunCycle(ctx))

	clock.Advance(3 * time.Minute)
	require.NoError(t, recorder.RecordVoiceLeave(ctx, "100", "alice", "Lobby"))

	closed, err := store.GetClosedVoiceSessions(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	require.EqualValues(t, 300, closed[0].DurationSeconds)

	require.NoError(t, aggregator.RunCycle(ctx))
	alice, err := store.GetUserByDiscordID(ctx, "100")
	require.NoError(t, err)
	stat, err := store.GetUserStatistic(ctx, alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 300, stat.TotalVoiceSeconds)
}

func TestRunCycleDrainsVoiceAndMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := databasefake.New()
	clock := quartz.NewMock(t)
	recorder := tracker.NewRecorder(store, zaptest.NewLogger(t), clock)
	aggregator := tracker.NewAggregator(store, zaptest.NewLogger(t), clock, time.Minute)

	require.NoError(t, recorder.RecordVoiceJoin(ctx, "100", "alice", "General"))
	clock.Advance(15 * time.Minute)
	require.NoError(t, recorder.RecordVoiceLeave(ctx, "100", "alice", "General"))
	require.NoError(t, recorder.RecordMessage(ctx, "100", "alice", "general", 42))
	require.NoError(t, recorder.RecordMessage(ctx, "100", "alice", "general", 7))

	require.NoError(t, aggregator.RunCycle(ctx))

	alice, err := store.GetUserByDiscordID(ctx, "100")
	require.NoError(t, err)
	stat, err := store.GetUserStatistic(ctx, alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 900, stat.TotalVoiceSeconds)
	require.EqualValues(t, 2, stat.TotalMessages)
	require.EqualValues(t, 2, stat.MessagesThisWeek)

	messages, err := store.GetAllMessages(ctx)
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestRunCycleWindowSubtotals(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := databasefake.New()
	clock := quartz.NewMock(t)
	recorder := tracker.NewRecorder(store, zaptest.NewLogger(t), clock)
	aggregator := tracker.NewAggregator(store, zaptest.NewLogger(t), clock, time.Minute)

	// One session closed well outside both windows, one closed inside.
	err := recorder.RecordPresence(ctx, "100", "alice", []tracker.Activity{
		{Kind: "game", Name: "Factorio"},
	})
	require.NoError(t, err)
	clock.Advance(time.Hour)
	require.NoError(t, recorder.RecordPresence(ctx, "100", "alice", nil))

	clock.Advance(40 * 24 * time.Hour)
	err = recorder.RecordPresence(ctx, "100", "alice", []tracker.Activity{
		{Kind: "game", Name: "Factorio"},
	})
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	require.NoError(t, recorder.RecordPresence(ctx, "100", "alice", nil))

	require.NoError(t, aggregator.RunCycle(ctx))

	stat, err := store.GetGameStatistic(ctx, "Factorio")
	require.NoError(t, err)
	require.EqualValues(t, 5400, stat.TotalSeconds)
	require.EqualValues(t, 1800, stat.SecondsThisWeek)
	require.EqualValues(t, 1800, stat.SecondsThisMonth)
}

// failingStore passes through to the fake but fails AddUserStatistic on
// demand, including inside transactions.
type failingStore struct {
	database.Store
	failAddUser bool
}

func (s *failingStore) InTx(ctx context.Context, fn func(database.Store) error) error {
	return s.Store.InTx(ctx, func(tx database.Store) error {
		return fn(&failingStore{Store: tx, failAddUser: s.failAddUser})
	})
}

func (s *failingStore) AddUserStatistic(ctx context.Context, arg database.AddUserStatisticParams) error {
	if s.failAddUser {
		return errors.New("add user statistic failed")
	}
	return s.Store.AddUserStatistic(ctx, arg)
}

func TestRunCycleRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := databasefake.New()
	store := &failingStore{Store: fake, failAddUser: true}
	clock := quartz.NewMock(t)
	recorder := tracker.NewRecorder(fake, zaptest.NewLogger(t), clock)
	aggregator := tracker.NewAggregator(store, zaptest.NewLogger(t), clock, time.Minute)

	err := recorder.RecordPresence(ctx, "100", "alice", []tracker.Activity{
		{Kind: "game", Name: "Factorio"},
	})
	require.NoError(t, err)
	clock.Advance(time.Hour)
	require.NoError(t, recorder.RecordPresence(ctx, "100", "alice", nil))

	require.Error(t, aggregator.RunCycle(ctx))

	// Nothing was applied: the closed rows are still there and no counter
	// was written, so the next cycle starts from scratch.
	closed, err := fake.GetClosedGameSessions(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	_, err = fake.GetGameStatistic(ctx, "Factorio")
	require.True(t, database.IsNotFound(err))

	store.failAddUser = false
	require.NoError(t, aggregator.RunCycle(ctx))

	stat, err := fake.GetGameStatistic(ctx, "Factorio")
	require.NoError(t, err)
	require.EqualValues(t, 3600, stat.TotalSeconds)
	require.EqualValues(t, 1, stat.TotalSessions)
}

func TestRunDrainsOnTick(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := databasefake.New()
	clock := quartz.NewMock(t)
	recorder := tracker.NewRecorder(store, zaptest.NewLogger(t), clock)
	aggregator := tracker.NewAggregator(store, zaptest.NewLogger(t), clock, time.Minute)

	err := recorder.RecordPresence(ctx, "100", "alice", []tracker.Activity{
		{Kind: "game", Name: "Factorio"},
	})
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	require.NoError(t, recorder.RecordPresence(ctx, "100", "alice", nil))

	trap := clock.Trap().TickerFunc("aggregator")
	defer trap.Close()

	done := make(chan error, 1)
	go func() {
		done <- aggregator.Run(ctx)
	}()
	trap.MustWait(ctx).MustRelease(ctx)

	clock.Advance(time.Minute).MustWait(ctx)

	stat, err := store.GetGameStatistic(ctx, "Factorio")
	require.NoError(t, err)
	require.EqualValues(t, 30, stat.TotalSeconds)

	cancel()
	require.NoError(t, <-done)
}
