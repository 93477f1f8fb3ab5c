package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"guildstats/internal/database"
)

// DefaultLeaderboardSize is the number of entries per leaderboard.
const DefaultLeaderboardSize = 5

// ErrNotFound is returned when a user has never been recorded.
var ErrNotFound = errors.New("no recorded activity")

// Reader merges durable counters with the live contribution of rows still
// present in the session store. The aggregator only ever removes rows it
// has already folded, so every row still present is not yet reflected in
// the counters and summing both never double counts.
type Reader struct {
	store database.Store
	log   *zap.Logger
	clock quartz.Clock
}

// NewReader creates a stat reader over the given store.
func NewReader(store database.Store, log *zap.Logger, clock quartz.Clock) *Reader {
	return &Reader{store: store, log: log, clock: clock}
}

// UserTotals is the live total per user.
type UserTotals struct {
	UserID        int64  `json:"user_id"`
	DiscordID     string `json:"discord_id"`
	Username      string `json:"username"`
	GamingSeconds int64  `json:"gaming_seconds"`
	VoiceSeconds  int64  `json:"voice_seconds"`
	Messages      int64  `json:"messages"`
}

// GameTotals is the live total per game. Session counts come from the
// durable counter only; in-flight sessions have not finished yet.
type GameTotals struct {
	GameName      string `json:"game_name"`
	TotalSeconds  int64  `json:"total_seconds"`
	TotalSessions int64  `json:"total_sessions"`
}

// UserSeconds is one leaderboard entry measured in seconds.
type UserSeconds struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Seconds  int64  `json:"seconds"`
}

// UserMessages is one chatter leaderboard entry.
type UserMessages struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Messages int64  `json:"messages"`
}

// GameSeconds is one game leaderboard entry.
type GameSeconds struct {
	GameName string `json:"game_name"`
	Seconds  int64  `json:"seconds"`
}

// Overview is the dashboard payload: community totals plus the top-N
// leaderboards. Degraded is set when a live-merge query failed and the
// affected numbers fall back to durable counters only.
type Overview struct {
	TotalUsers         int64          `json:"total_users"`
	TotalGamingSeconds int64          `json:"total_gaming_seconds"`
	TotalVoiceSeconds  int64          `json:"total_voice_seconds"`
	TotalMessages      int64          `json:"total_messages"`
	TopGamers          []UserSeconds  `json:"top_gamers"`
	TopGames           []GameSeconds  `json:"top_games"`
	TopVoice           []UserSeconds  `json:"top_voice"`
	TopChatters        []UserMessages `json:"top_chatters"`
	Degraded           bool           `json:"degraded,omitempty"`
}

// UserTotalsByDiscordID returns the live totals for one user. When a live
// query fails the durable counters are returned alone, logged, not fatal.
func (r *Reader) UserTotalsByDiscordID(ctx context.Context, discordID string) (UserTotals, error) {
	user, err := r.store.GetUserByDiscordID(ctx, discordID)
	if err != nil {
		if database.IsNotFound(err) {
			return UserTotals{}, fmt.Errorf("user %s: %w", discordID, ErrNotFound)
		}
		return UserTotals{}, fmt.Errorf("failed to look up user %s: %w", discordID, err)
	}

	totals := UserTotals{UserID: user.ID, DiscordID: user.DiscordID, Username: user.Username}

	stat, err := r.store.GetUserStatistic(ctx, user.ID)
	if err != nil && !database.IsNotFound(err) {
		return UserTotals{}, fmt.Errorf("failed to read user statistic: %w", err)
	}
	totals.GamingSeconds = stat.TotalGamingSeconds
	totals.VoiceSeconds = stat.TotalVoiceSeconds
	totals.Messages = stat.TotalMessages

	now := r.clock.Now().UTC()
	if gaming, err := r.store.LiveGameSecondsForUser(ctx, user.ID, now); err != nil {
		r.log.Warn("live gaming merge failed, serving durable totals", zap.Error(err))
	} else {
		totals.GamingSeconds += gaming
	}
	if voice, err := r.store.LiveVoiceSecondsForUser(ctx, user.ID, now); err != nil {
		r.log.Warn("live voice merge failed, serving durable totals", zap.Error(err))
	} else {
		totals.VoiceSeconds += voice
	}
	if messages, err := r.store.LiveMessageCountForUser(ctx, user.ID); err != nil {
		r.log.Warn("live message merge failed, serving durable totals", zap.Error(err))
	} else {
		totals.Messages += messages
	}

	return totals, nil
}

// GameTotalsByName returns the live total for one game.
func (r *Reader) GameTotalsByName(ctx context.Context, gameName string) (GameTotals, error) {
	totals := GameTotals{GameName: gameName}

	stat, err := r.store.GetGameStatistic(ctx, gameName)
	if err != nil && !database.IsNotFound(err) {
		return GameTotals{}, fmt.Errorf("failed to read game statistic: %w", err)
	}
	totals.TotalSeconds = stat.TotalSeconds
	totals.TotalSessions = stat.TotalSessions

	live, err := r.store.LiveGameSecondsByGame(ctx, r.clock.Now().UTC())
	if err != nil {
		r.log.Warn("live game merge failed, serving durable totals", zap.Error(err))
		return totals, nil
	}
	totals.TotalSeconds += live[gameName]
	return totals, nil
}

// GameLeaderboard returns every game's live total, descending.
func (r *Reader) GameLeaderboard(ctx context.Context) ([]GameSeconds, error) {
	stats, err := r.store.GetGameStatistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read game statistics: %w", err)
	}

	seconds := make(map[string]int64, len(stats))
	for _, stat := range stats {
		seconds[stat.GameName] = stat.TotalSeconds
	}
	if live, err := r.store.LiveGameSecondsByGame(ctx, r.clock.Now().UTC()); err != nil {
		r.log.Warn("live game merge failed, serving durable totals", zap.Error(err))
	} else {
		for name, s := range live {
			seconds[name] += s
		}
	}
	return sortedGameSeconds(seconds, len(seconds)), nil
}

// Overview assembles the dashboard totals and leaderboards.
func (r *Reader) Overview(ctx context.Context, limit int) (Overview, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}

	userStats, err := r.store.GetUserStatistics(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("failed to read user statistics: %w", err)
	}
	gameStats, err := r.store.GetGameStatistics(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("failed to read game statistics: %w", err)
	}

	var overview Overview
	now := r.clock.Now().UTC()

	gaming := make(map[int64]int64, len(userStats))
	voice := make(map[int64]int64, len(userStats))
	messages := make(map[int64]int64, len(userStats))
	games := make(map[string]int64, len(gameStats))
	for _, stat := range userStats {
		gaming[stat.UserID] = stat.TotalGamingSeconds
		voice[stat.UserID] = stat.TotalVoiceSeconds
		messages[stat.UserID] = stat.TotalMessages
	}
	for _, stat := range gameStats {
		games[stat.GameName] = stat.TotalSeconds
	}

	if live, err := r.store.LiveGameSecondsByUser(ctx, now); err != nil {
		r.log.Warn("live gaming merge failed, serving durable totals", zap.Error(err))
		overview.Degraded = true
	} else {
		for id, s := range live {
			gaming[id] += s
		}
	}
	if live, err := r.store.LiveVoiceSecondsByUser(ctx, now); err != nil {
		r.log.Warn("live voice merge failed, serving durable totals", zap.Error(err))
		overview.Degraded = true
	} else {
		for id, s := range live {
			voice[id] += s
		}
	}
	if live, err := r.store.LiveMessageCountsByUser(ctx); err != nil {
		r.log.Warn("live message merge failed, serving durable totals", zap.Error(err))
		overview.Degraded = true
	} else {
		for id, c := range live {
			messages[id] += c
		}
	}
	if live, err := r.store.LiveGameSecondsByGame(ctx, now); err != nil {
		r.log.Warn("live game merge failed, serving durable totals", zap.Error(err))
		overview.Degraded = true
	} else {
		for name, s := range live {
			games[name] += s
		}
	}

	seen := make(map[int64]struct{})
	for _, m := range []map[int64]int64{gaming, voice, messages} {
		for id, value := range m {
			if value > 0 {
				seen[id] = struct{}{}
			}
		}
	}
	overview.TotalUsers = int64(len(seen))
	for _, s := range gaming {
		overview.TotalGamingSeconds += s
	}
	for _, s := range voice {
		overview.TotalVoiceSeconds += s
	}
	for _, c := range messages {
		overview.TotalMessages += c
	}

	usernames, err := r.usernames(ctx, seen)
	if err != nil {
		r.log.Warn("failed to resolve usernames for leaderboards", zap.Error(err))
	}

	overview.TopGamers = sortedUserSeconds(gaming, usernames, limit)
	overview.TopVoice = sortedUserSeconds(voice, usernames, limit)
	overview.TopChatters = sortedUserMessages(messages, usernames, limit)
	overview.TopGames = sortedGameSeconds(games, limit)
	return overview, nil
}

func (r *Reader) usernames(ctx context.Context, ids map[int64]struct{}) (map[int64]string, error) {
	list := make([]int64, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	users, err := r.store.GetUsersByIDs(ctx, list)
	if err != nil {
		return map[int64]string{}, err
	}
	names := make(map[int64]string, len(users))
	for _, user := range users {
		names[user.ID] = user.Username
	}
	return names, nil
}

func sortedUserSeconds(seconds map[int64]int64, usernames map[int64]string, limit int) []UserSeconds {
	entries := make([]UserSeconds, 0, len(seconds))
	for id, s := range seconds {
		if s <= 0 {
			continue
		}
		entries = append(entries, UserSeconds{UserID: id, Username: usernames[id], Seconds: s})
	}
	// Ties break on user id: stable, not significant.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Seconds != entries[j].Seconds {
			return entries[i].Seconds > entries[j].Seconds
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func sortedUserMessages(counts map[int64]int64, usernames map[int64]string, limit int) []UserMessages {
	entries := make([]UserMessages, 0, len(counts))
	for id, c := range counts {
		if c <= 0 {
			continue
		}
		entries = append(entries, UserMessages{UserID: id, Username: usernames[id], Messages: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Messages != entries[j].Messages {
			return entries[i].Messages > entries[j].Messages
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func sortedGameSeconds(seconds map[string]int64, limit int) []GameSeconds {
	entries := make([]GameSeconds, 0, len(seconds))
	for name, s := range seconds {
		if s <= 0 {
			continue
		}
		entries = append(entries, GameSeconds{GameName: name, Seconds: s})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Seconds != entries[j].Seconds {
			return entries[i].Seconds > entries[j].Seconds
		}
		return entries[i].GameName < entries[j].GameName
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
