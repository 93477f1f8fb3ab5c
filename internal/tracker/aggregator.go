package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"guildstats/internal/database"
)

// Window spans used for the recomputed subtotals. Because drained rows are
// deleted, these fields cover "since the previous drain" capped at the
// window span, not a true trailing calendar window.
const (
	weekWindow  = 7 * 24 * time.Hour
	monthWindow = 30 * 24 * time.Hour
)

// Aggregator periodically folds the closed portion of the session store
// into the durable counters and reclaims the folded rows.
type Aggregator struct {
	store    database.Store
	log      *zap.Logger
	clock    quartz.Clock
	interval time.Duration
}

// NewAggregator creates an aggregator that drains every interval.
func NewAggregator(store database.Store, log *zap.Logger, clock quartz.Clock, interval time.Duration) *Aggregator {
	return &Aggregator{store: store, log: log, clock: clock, interval: interval}
}

// Run drains on a fixed interval until ctx is canceled. A failed cycle is
// logged and retried on the next tick; nothing is partially applied.
func (a *Aggregator) Run(ctx context.Context) error {
	waiter := a.clock.TickerFunc(ctx, a.interval, func() error {
		if err := a.RunCycle(ctx); err != nil {
			a.log.Error("aggregation cycle failed", zap.Error(err))
		}
		return nil
	}, "aggregator")

	err := waiter.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type gameFold struct {
	seconds  int64
	sessions int64
	week     int64
	month    int64
}

type userFold struct {
	gaming      int64
	gamingWeek  int64
	gamingMonth int64
	voice       int64
	voiceWeek   int64
	voiceMonth  int64
	messages    int64
	msgWeek     int64
	msgMonth    int64
}

// RunCycle performs one drain inside a single transaction: snapshot the
// closed rows, fold them into per-game and per-user counters, then delete
// exactly the snapshotted ids. Rows opened or closed after the snapshot,
// and rows still open, are untouched and drain on a later cycle. Folding
// and deletion commit together, so a session is never counted twice and
// never lost.
func (a *Aggregator) RunCycle(ctx context.Context) error {
	now := a.clock.Now().UTC()
	weekAgo := now.Add(-weekWindow)
	monthAgo := now.Add(-monthWindow)

	var drainedGames, drainedVoice, drainedMessages, drainedEvents int

	err := a.store.InTx(ctx, func(tx database.Store) error {
		gameSessions, err := tx.GetClosedGameSessions(ctx)
		if err != nil {
			return err
		}
		voiceSessions, err := tx.GetClosedVoiceSessions(ctx)
		if err != nil {
			return err
		}
		messages, err := tx.GetAllMessages(ctx)
		if err != nil {
			return err
		}
		eventIDs, err := tx.GetClosedActivityEventIDs(ctx)
		if err != nil {
			return err
		}

		games := make(map[string]*gameFold)
		users := make(map[int64]*userFold)
		gameIDs := make([]int64, 0, len(gameSessions))
		voiceIDs := make([]int64, 0, len(voiceSessions))
		messageIDs := make([]int64, 0, len(messages))

		for _, session := range gameSessions {
			gameIDs = append(gameIDs, session.ID)

			game := games[session.GameName]
			if game == nil {
				game = &gameFold{}
				games[session.GameName] = game
			}
			game.seconds += session.DurationSeconds
			game.sessions++

			user := users[session.UserID]
			if user == nil {
				user = &userFold{}
				users[session.UserID] = user
			}
			user.gaming += session.DurationSeconds

			if session.EndedAt.After(weekAgo) {
				game.week += session.DurationSeconds
				user.gamingWeek += session.DurationSeconds
			}
			if session.EndedAt.After(monthAgo) {
				game.month += session.DurationSeconds
				user.gamingMonth += session.DurationSeconds
			}
		}

		for _, session := range voiceSessions {
			voiceIDs = append(voiceIDs, session.ID)

			user := users[session.UserID]
			if user == nil {
				user = &userFold{}
				users[session.UserID] = user
			}
			user.voice += session.DurationSeconds
			if session.EndedAt.After(weekAgo) {
				user.voiceWeek += session.DurationSeconds
			}
			if session.EndedAt.After(monthAgo) {
				user.voiceMonth += session.DurationSeconds
			}
		}

		for _, message := range messages {
			messageIDs = append(messageIDs, message.ID)

			user := users[message.UserID]
			if user == nil {
				user = &userFold{}
				users[message.UserID] = user
			}
			user.messages++
			if message.CreatedAt.After(weekAgo) {
				user.msgWeek++
			}
			if message.CreatedAt.After(monthAgo) {
				user.msgMonth++
			}
		}

		for _, name := range sortedGameNames(games) {
			fold := games[name]
			err := tx.AddGameStatistic(ctx, database.AddGameStatisticParams{
				GameName:         name,
				AddSeconds:       fold.seconds,
				AddSessions:      fold.sessions,
				SecondsThisWeek:  fold.week,
				SecondsThisMonth: fold.month,
				Now:              now,
			})
			if err != nil {
				return err
			}
		}

		for _, id := range sortedUserIDs(users) {
			fold := users[id]
			err := tx.AddUserStatistic(ctx, database.AddUserStatisticParams{
				UserID:                 id,
				AddGamingSeconds:       fold.gaming,
				AddVoiceSeconds:        fold.voice,
				AddMessages:            fold.messages,
				GamingSecondsThisWeek:  fold.gamingWeek,
				GamingSecondsThisMonth: fold.gamingMonth,
				VoiceSecondsThisWeek:   fold.voiceWeek,
				VoiceSecondsThisMonth:  fold.voiceMonth,
				MessagesThisWeek:       fold.msgWeek,
				MessagesThisMonth:      fold.msgMonth,
				Now:                    now,
			})
			if err != nil {
				return err
			}
		}

		if err := tx.DeleteGameSessions(ctx, gameIDs); err != nil {
			return err
		}
		if err := tx.DeleteVoiceSessions(ctx, voiceIDs); err != nil {
			return err
		}
		if err := tx.DeleteMessages(ctx, messageIDs); err != nil {
			return err
		}
		if err := tx.DeleteActivityEvents(ctx, eventIDs); err != nil {
			return err
		}

		drainedGames = len(gameIDs)
		drainedVoice = len(voiceIDs)
		drainedMessages = len(messageIDs)
		drainedEvents = len(eventIDs)
		return nil
	})
	if err != nil {
		aggregationFailures.Inc()
		return fmt.Errorf("aggregation cycle rolled back: %w", err)
	}

	aggregationRuns.Inc()
	rowsDrained.WithLabelValues("game_sessions").Add(float64(drainedGames))
	rowsDrained.WithLabelValues("voice_sessions").Add(float64(drainedVoice))
	rowsDrained.WithLabelValues("messages").Add(float64(drainedMessages))
	rowsDrained.WithLabelValues("activity_events").Add(float64(drainedEvents))

	a.log.Info("aggregation cycle complete",
		zap.Int("game_sessions", drainedGames),
		zap.Int("voice_sessions", drainedVoice),
		zap.Int("messages", drainedMessages),
		zap.Int("activity_events", drainedEvents))
	return nil
}

func sortedGameNames(games map[string]*gameFold) []string {
	names := make([]string, 0, len(games))
	for name := range games {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedUserIDs(users map[int64]*userFold) []int64 {
	ids := make([]int64, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
