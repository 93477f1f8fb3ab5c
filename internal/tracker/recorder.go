package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"guildstats/internal/database"
	"guildstats/internal/models"
)

// Activity is one entry from a presence notification.
type Activity struct {
	Kind string
	Name string
}

// Recorder translates gateway notifications into session store mutations.
// It is the only writer of open sessions; invariants around open/close
// state are enforced here and in the store, never in the gateway adapter.
type Recorder struct {
	store database.Store
	log   *zap.Logger
	clock quartz.Clock
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store database.Store, log *zap.Logger, clock quartz.Clock) *Recorder {
	return &Recorder{store: store, log: log, clock: clock}
}

// resolve upserts the user row. Presence payloads sometimes omit the
// username; the external id stands in so the row still exists. The caller's
// clock reading stamps the row so user and session timestamps agree.
func (r *Recorder) resolve(ctx context.Context, discordID, username string, now time.Time) (models.User, error) {
	if username == "" {
		username = discordID
	}
	user, err := r.store.UpsertUser(ctx, discordID, username, now)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to resolve user %s: %w", discordID, err)
	}
	return user, nil
}

// RecordPresence applies a presence update as a full replace: every open
// activity event and game session for the user closes, then one activity
// event opens per reported activity, with a game session alongside for
// game activities. Two consecutive updates that both list the same game
// therefore produce two sessions, not one continuous one.
func (r *Recorder) RecordPresence(ctx context.Context, discordID, username string, activities []Activity) error {
	now := r.clock.Now().UTC()
	user, err := r.resolve(ctx, discordID, username, now)
	if err != nil {
		eventErrors.WithLabelValues("presence").Inc()
		return err
	}

	err = r.store.InTx(ctx, func(tx database.Store) error {
		if _, err := tx.CloseOpenActivityEvents(ctx, user.ID, now); err != nil {
			return err
		}
		if _, err := tx.CloseOpenGameSessions(ctx, user.ID, now); err != nil {
			return err
		}
		for _, activity := range activities {
			if activity.Name == "" {
				continue
			}
			if _, err := tx.InsertActivityEvent(ctx, user.ID, activity.Kind, activity.Name, now); err != nil {
				return err
			}
			if activity.Kind == models.ActivityGame {
				if _, err := tx.InsertGameSession(ctx, user.ID, activity.Name, now); err != nil {
					return err
				}
				r.log.Debug("game session started",
					zap.String("user", user.Username),
					zap.String("game", activity.Name))
			}
		}
		return nil
	})
	if err != nil {
		eventErrors.WithLabelValues("presence").Inc()
		return fmt.Errorf("failed to record presence for %s: %w", discordID, err)
	}

	eventsProcessed.WithLabelValues("presence").Inc()
	return nil
}

// RecordVoiceJoin opens a voice session. A session already open for the
// same channel means a leave event was missed; the join is recorded anyway.
// Live reads count only the newest open row per channel, and the next leave
// closes every open row for the channel, so the duplicate cannot inflate
// totals without bound.
func (r *Recorder) RecordVoiceJoin(ctx context.Context, discordID, username, channelName string) error {
	now := r.clock.Now().UTC()
	user, err := r.resolve(ctx, discordID, username, now)
	if err != nil {
		eventErrors.WithLabelValues("voice_join").Inc()
		return err
	}

	open, err := r.store.CountOpenVoiceSessions(ctx, user.ID, channelName)
	if err != nil {
		eventErrors.WithLabelValues("voice_join").Inc()
		return fmt.Errorf("failed to check open voice sessions: %w", err)
	}
	if open > 0 {
		r.log.Warn("voice session already open, missed leave event",
			zap.String("user", user.Username),
			zap.String("channel", channelName),
			zap.Int64("open_sessions", open))
	}

	if _, err := r.store.InsertVoiceSession(ctx, user.ID, channelName, now); err != nil {
		eventErrors.WithLabelValues("voice_join").Inc()
		return fmt.Errorf("failed to record voice join for %s: %w", discordID, err)
	}

	r.log.Debug("voice session started",
		zap.String("user", user.Username),
		zap.String("channel", channelName))
	eventsProcessed.WithLabelValues("voice_join").Inc()
	return nil
}

// RecordVoiceLeave closes every open session for the channel, including any
// duplicate left behind by a missed leave event. Duplicate or late leave
// events are expected and close nothing.
func (r *Recorder) RecordVoiceLeave(ctx context.Context, discordID, username, channelName string) error {
	now := r.clock.Now().UTC()
	user, err := r.resolve(ctx, discordID, username, now)
	if err != nil {
		eventErrors.WithLabelValues("voice_leave").Inc()
		return err
	}

	closed, err := r.store.CloseOpenVoiceSessions(ctx, user.ID, channelName, now)
	if err != nil {
		eventErrors.WithLabelValues("voice_leave").Inc()
		return fmt.Errorf("failed to record voice leave for %s: %w", discordID, err)
	}
	if closed == 0 {
		r.log.Debug("voice leave with no open session",
			zap.String("user", user.Username),
			zap.String("channel", channelName))
	}

	eventsProcessed.WithLabelValues("voice_leave").Inc()
	return nil
}

// RecordVoiceSwitch models a channel switch as a leave followed by a join.
// The two are independent operations because the channel identity changes.
func (r *Recorder) RecordVoiceSwitch(ctx context.Context, discordID, username, fromChannel, toChannel string) error {
	leaveErr := r.RecordVoiceLeave(ctx, discordID, username, fromChannel)
	joinErr := r.RecordVoiceJoin(ctx, discordID, username, toChannel)
	return errors.Join(leaveErr, joinErr)
}

// RecordMessage appends one immutable message row.
func (r *Recorder) RecordMessage(ctx context.Context, discordID, username, channelName string, length int) error {
	now := r.clock.Now().UTC()
	user, err := r.resolve(ctx, discordID, username, now)
	if err != nil {
		eventErrors.WithLabelValues("message").Inc()
		return err
	}

	if _, err := r.store.InsertMessage(ctx, user.ID, channelName, length, now); err != nil {
		eventErrors.WithLabelValues("message").Inc()
		return fmt.Errorf("failed to record message for %s: %w", discordID, err)
	}

	eventsProcessed.WithLabelValues("message").Inc()
	return nil
}
