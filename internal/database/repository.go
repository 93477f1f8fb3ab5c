package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"guildstats/internal/models"
)

// Repository is the Postgres implementation of Store. The same query code
// runs against the shared pool or a transaction, depending on how it was
// constructed.
type Repository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

// NewRepository creates a repository bound to the shared connection pool.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db.conn, ext: db.conn}
}

// InTx runs fn inside a single database transaction. A returned error rolls
// everything back. Calling InTx on a repository already inside a transaction
// reuses that transaction.
func (r *Repository) InTx(ctx context.Context, fn func(Store) error) error {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&Repository{ext: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpsertUser inserts a user on first sight and refreshes the username
// otherwise. Last write wins; identity is owned by the gateway.
func (r *Repository) UpsertUser(ctx context.Context, discordID, username string, now time.Time) (models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.ext, &user, `
		INSERT INTO users (discord_id, username, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (discord_id) DO UPDATE SET
			username = EXCLUDED.username,
			updated_at = EXCLUDED.updated_at
		RETURNING *`,
		discordID, username, now)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

func (r *Repository) GetUserByDiscordID(ctx context.Context, discordID string) (models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.ext, &user,
		`SELECT * FROM users WHERE discord_id = $1`, discordID)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *Repository) GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	err := sqlx.SelectContext(ctx, r.ext, &users,
		`SELECT * FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

func (r *Repository) InsertGameSession(ctx context.Context, userID int64, gameName string, startedAt time.Time) (models.GameSession, error) {
	var session models.GameSession
	err := sqlx.GetContext(ctx, r.ext, &session, `
		INSERT INTO game_sessions (user_id, game_name, started_at, duration_seconds)
		VALUES ($1, $2, $3, 0)
		RETURNING *`,
		userID, gameName, startedAt)
	if err != nil {
		return models.GameSession{}, fmt.Errorf("failed to insert game session: %w", err)
	}
	return session, nil
}

func (r *Repository) InsertVoiceSession(ctx context.Context, userID int64, channelName string, startedAt time.Time) (models.VoiceSession, error) {
	var session models.VoiceSession
	err := sqlx.GetContext(ctx, r.ext, &session, `
		INSERT INTO voice_sessions (user_id, channel_name, started_at, duration_seconds)
		VALUES ($1, $2, $3, 0)
		RETURNING *`,
		userID, channelName, startedAt)
	if err != nil {
		return models.VoiceSession{}, fmt.Errorf("failed to insert voice session: %w", err)
	}
	return session, nil
}

func (r *Repository) InsertActivityEvent(ctx context.Context, userID int64, activityType, activityName string, startedAt time.Time) (models.ActivityEvent, error) {
	var event models.ActivityEvent
	err := sqlx.GetContext(ctx, r.ext, &event, `
		INSERT INTO activity_events (user_id, activity_type, activity_name, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *`,
		userID, activityType, activityName, startedAt)
	if err != nil {
		return models.ActivityEvent{}, fmt.Errorf("failed to insert activity event: %w", err)
	}
	return event, nil
}

func (r *Repository) InsertMessage(ctx context.Context, userID int64, channelName string, length int, createdAt time.Time) (models.Message, error) {
	var message models.Message
	err := sqlx.GetContext(ctx, r.ext, &message, `
		INSERT INTO messages (user_id, channel_name, message_length, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *`,
		userID, channelName, length, createdAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return message, nil
}

// CloseOpenGameSessions ends every open game session the user has. The
// presence handler calls this on every update: full replace, not a diff.
func (r *Repository) CloseOpenGameSessions(ctx context.Context, userID int64, endedAt time.Time) (int64, error) {
	res, err := r.ext.ExecContext(ctx, `
		UPDATE game_sessions
		SET ended_at = $2,
			duration_seconds = EXTRACT(EPOCH FROM ($2 - started_at))::bigint
		WHERE user_id = $1 AND ended_at IS NULL`,
		userID, endedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to close game sessions: %w", err)
	}
	return res.RowsAffected()
}

func (r *Repository) CloseOpenActivityEvents(ctx context.Context, userID int64, endedAt time.Time) (int64, error) {
	res, err := r.ext.ExecContext(ctx, `
		UPDATE activity_events
		SET ended_at = $2
		WHERE user_id = $1 AND ended_at IS NULL`,
		userID, endedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to close activity events: %w", err)
	}
	return res.RowsAffected()
}

// CloseOpenVoiceSessions ends every open row for the channel, each with its
// own elapsed duration. A duplicate open left behind by a missed leave event
// settles here instead of staying open forever.
func (r *Repository) CloseOpenVoiceSessions(ctx context.Context, userID int64, channelName string, endedAt time.Time) (int64, error) {
	res, err := r.ext.ExecContext(ctx, `
		UPDATE voice_sessions
		SET ended_at = $3,
			duration_seconds = EXTRACT(EPOCH FROM ($3 - started_at))::bigint
		WHERE user_id = $1 AND channel_name = $2 AND ended_at IS NULL`,
		userID, channelName, endedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to close voice sessions: %w", err)
	}
	return res.RowsAffected()
}

func (r *Repository) CountOpenVoiceSessions(ctx context.Context, userID int64, channelName string) (int64, error) {
	var count int64
	err := sqlx.GetContext(ctx, r.ext, &count, `
		SELECT COUNT(*) FROM voice_sessions
		WHERE user_id = $1 AND channel_name = $2 AND ended_at IS NULL`,
		userID, channelName)
	if err != nil {
		return 0, fmt.Errorf("failed to count open voice sessions: %w", err)
	}
	return count, nil
}

func (r *Repository) GetClosedGameSessions(ctx context.Context) ([]models.GameSession, error) {
	var sessions []models.GameSession
	err := sqlx.SelectContext(ctx, r.ext, &sessions,
		`SELECT * FROM game_sessions WHERE ended_at IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get closed game sessions: %w", err)
	}
	return sessions, nil
}

func (r *Repository) GetClosedVoiceSessions(ctx context.Context) ([]models.VoiceSession, error) {
	var sessions []models.VoiceSession
	err := sqlx.SelectContext(ctx, r.ext, &sessions,
		`SELECT * FROM voice_sessions WHERE ended_at IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get closed voice sessions: %w", err)
	}
	return sessions, nil
}

func (r *Repository) GetClosedActivityEventIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, r.ext, &ids,
		`SELECT id FROM activity_events WHERE ended_at IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get closed activity events: %w", err)
	}
	return ids, nil
}

func (r *Repository) GetAllMessages(ctx context.Context) ([]models.Message, error) {
	var messages []models.Message
	err := sqlx.SelectContext(ctx, r.ext, &messages,
		`SELECT * FROM messages ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}

func (r *Repository) DeleteGameSessions(ctx context.Context, ids []int64) error {
	return r.deleteByIDs(ctx, "game_sessions", ids)
}

func (r *Repository) DeleteVoiceSessions(ctx context.Context, ids []int64) error {
	return r.deleteByIDs(ctx, "voice_sessions", ids)
}

func (r *Repository) DeleteActivityEvents(ctx context.Context, ids []int64) error {
	return r.deleteByIDs(ctx, "activity_events", ids)
}

func (r *Repository) DeleteMessages(ctx context.Context, ids []int64) error {
	return r.deleteByIDs(ctx, "messages", ids)
}

func (r *Repository) deleteByIDs(ctx context.Context, table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.ext.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, table), pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

func (r *Repository) AddGameStatistic(ctx context.Context, arg AddGameStatisticParams) error {
	_, err := r.ext.ExecContext(ctx, `
		INSERT INTO game_statistics (game_name, total_seconds, total_sessions, seconds_this_week, seconds_this_month, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_name) DO UPDATE SET
			total_seconds = game_statistics.total_seconds + EXCLUDED.total_seconds,
			total_sessions = game_statistics.total_sessions + EXCLUDED.total_sessions,
			seconds_this_week = EXCLUDED.seconds_this_week,
			seconds_this_month = EXCLUDED.seconds_this_month,
			last_updated = EXCLUDED.last_updated`,
		arg.GameName, arg.AddSeconds, arg.AddSessions, arg.SecondsThisWeek, arg.SecondsThisMonth, arg.Now)
	if err != nil {
		return fmt.Errorf("failed to add game statistic: %w", err)
	}
	return nil
}

func (r *Repository) AddUserStatistic(ctx context.Context, arg AddUserStatisticParams) error {
	_, err := r.ext.ExecContext(ctx, `
		INSERT INTO user_statistics (
			user_id, total_gaming_seconds, total_voice_seconds, total_messages,
			gaming_seconds_this_week, gaming_seconds_this_month,
			voice_seconds_this_week, voice_seconds_this_month,
			messages_this_week, messages_this_month, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			total_gaming_seconds = user_statistics.total_gaming_seconds + EXCLUDED.total_gaming_seconds,
			total_voice_seconds = user_statistics.total_voice_seconds + EXCLUDED.total_voice_seconds,
			total_messages = user_statistics.total_messages + EXCLUDED.total_messages,
			gaming_seconds_this_week = EXCLUDED.gaming_seconds_this_week,
			gaming_seconds_this_month = EXCLUDED.gaming_seconds_this_month,
			voice_seconds_this_week = EXCLUDED.voice_seconds_this_week,
			voice_seconds_this_month = EXCLUDED.voice_seconds_this_month,
			messages_this_week = EXCLUDED.messages_this_week,
			messages_this_month = EXCLUDED.messages_this_month,
			last_updated = EXCLUDED.last_updated`,
		arg.UserID, arg.AddGamingSeconds, arg.AddVoiceSeconds, arg.AddMessages,
		arg.GamingSecondsThisWeek, arg.GamingSecondsThisMonth,
		arg.VoiceSecondsThisWeek, arg.VoiceSecondsThisMonth,
		arg.MessagesThisWeek, arg.MessagesThisMonth, arg.Now)
	if err != nil {
		return fmt.Errorf("failed to add user statistic: %w", err)
	}
	return nil
}

func (r *Repository) GetGameStatistic(ctx context.Context, gameName string) (models.GameStatistic, error) {
	var stat models.GameStatistic
	err := sqlx.GetContext(ctx, r.ext, &stat,
		`SELECT * FROM game_statistics WHERE game_name = $1`, gameName)
	if err != nil {
		return models.GameStatistic{}, err
	}
	return stat, nil
}

func (r *Repository) GetUserStatistic(ctx context.Context, userID int64) (models.UserStatistic, error) {
	var stat models.UserStatistic
	err := sqlx.GetContext(ctx, r.ext, &stat,
		`SELECT * FROM user_statistics WHERE user_id = $1`, userID)
	if err != nil {
		return models.UserStatistic{}, err
	}
	return stat, nil
}

func (r *Repository) GetGameStatistics(ctx context.Context) ([]models.GameStatistic, error) {
	var stats []models.GameStatistic
	err := sqlx.SelectContext(ctx, r.ext, &stats,
		`SELECT * FROM game_statistics ORDER BY total_seconds DESC, game_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get game statistics: %w", err)
	}
	return stats, nil
}

func (r *Repository) GetUserStatistics(ctx context.Context) ([]models.UserStatistic, error) {
	var stats []models.UserStatistic
	err := sqlx.SelectContext(ctx, r.ext, &stats,
		`SELECT * FROM user_statistics ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get user statistics: %w", err)
	}
	return stats, nil
}

type gameSum struct {
	GameName string `db:"game_name"`
	Seconds  int64  `db:"seconds"`
}

type userSum struct {
	UserID  int64 `db:"user_id"`
	Seconds int64 `db:"seconds"`
}

type userCount struct {
	UserID int64 `db:"user_id"`
	Count  int64 `db:"count"`
}

func (r *Repository) LiveGameSecondsByGame(ctx context.Context, now time.Time) (map[string]int64, error) {
	var sums []gameSum
	err := sqlx.SelectContext(ctx, r.ext, &sums, `
		SELECT game_name,
			COALESCE(SUM(CASE
				WHEN ended_at IS NULL THEN GREATEST(EXTRACT(EPOCH FROM ($1 - started_at))::bigint, 0)
				ELSE duration_seconds
			END), 0) AS seconds
		FROM game_sessions
		GROUP BY game_name`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to sum live game seconds: %w", err)
	}
	out := make(map[string]int64, len(sums))
	for _, s := range sums {
		out[s.GameName] = s.Seconds
	}
	return out, nil
}

func (r *Repository) LiveGameSecondsByUser(ctx context.Context, now time.Time) (map[int64]int64, error) {
	var sums []userSum
	err := sqlx.SelectContext(ctx, r.ext, &sums, `
		SELECT user_id,
			COALESCE(SUM(CASE
				WHEN ended_at IS NULL THEN GREATEST(EXTRACT(EPOCH FROM ($1 - started_at))::bigint, 0)
				ELSE duration_seconds
			END), 0) AS seconds
		FROM game_sessions
		GROUP BY user_id`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to sum live gaming seconds: %w", err)
	}
	out := make(map[int64]int64, len(sums))
	for _, s := range sums {
		out[s.UserID] = s.Seconds
	}
	return out, nil
}

// LiveVoiceSecondsByUser counts each open row at most once per channel: when
// a missed leave event left a duplicate open, only the newest open row per
// (user, channel) contributes elapsed time.
func (r *Repository) LiveVoiceSecondsByUser(ctx context.Context, now time.Time) (map[int64]int64, error) {
	var sums []userSum
	err := sqlx.SelectContext(ctx, r.ext, &sums, `
		SELECT user_id, SUM(seconds) AS seconds
		FROM (
			(SELECT user_id, duration_seconds AS seconds
			FROM voice_sessions
			WHERE ended_at IS NOT NULL)
			UNION ALL
			(SELECT DISTINCT ON (user_id, channel_name) user_id,
				GREATEST(EXTRACT(EPOCH FROM ($1 - started_at))::bigint, 0) AS seconds
			FROM voice_sessions
			WHERE ended_at IS NULL
			ORDER BY user_id, channel_name, started_at DESC, id DESC)
		) live
		GROUP BY user_id`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to sum live voice seconds: %w", err)
	}
	out := make(map[int64]int64, len(sums))
	for _, s := range sums {
		out[s.UserID] = s.Seconds
	}
	return out, nil
}

func (r *Repository) LiveMessageCountsByUser(ctx context.Context) (map[int64]int64, error) {
	var counts []userCount
	err := sqlx.SelectContext(ctx, r.ext, &counts, `
		SELECT user_id, COUNT(*) AS count FROM messages GROUP BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count live messages: %w", err)
	}
	out := make(map[int64]int64, len(counts))
	for _, c := range counts {
		out[c.UserID] = c.Count
	}
	return out, nil
}

// LiveGameSecondsForUser is the single-user variant of LiveGameSecondsByUser
// so a stats lookup does not scan every user's sessions.
func (r *Repository) LiveGameSecondsForUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	var seconds int64
	err := sqlx.GetContext(ctx, r.ext, &seconds, `
		SELECT COALESCE(SUM(CASE
			WHEN ended_at IS NULL THEN GREATEST(EXTRACT(EPOCH FROM ($2 - started_at))::bigint, 0)
			ELSE duration_seconds
		END), 0)
		FROM game_sessions
		WHERE user_id = $1`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sum live gaming seconds for user: %w", err)
	}
	return seconds, nil
}

func (r *Repository) LiveVoiceSecondsForUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	var seconds int64
	err := sqlx.GetContext(ctx, r.ext, &seconds, `
		SELECT COALESCE(SUM(seconds), 0)
		FROM (
			(SELECT duration_seconds AS seconds
			FROM voice_sessions
			WHERE user_id = $1 AND ended_at IS NOT NULL)
			UNION ALL
			(SELECT DISTINCT ON (channel_name)
				GREATEST(EXTRACT(EPOCH FROM ($2 - started_at))::bigint, 0) AS seconds
			FROM voice_sessions
			WHERE user_id = $1 AND ended_at IS NULL
			ORDER BY channel_name, started_at DESC, id DESC)
		) live`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sum live voice seconds for user: %w", err)
	}
	return seconds, nil
}

func (r *Repository) LiveMessageCountForUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := sqlx.GetContext(ctx, r.ext, &count,
		`SELECT COUNT(*) FROM messages WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count live messages for user: %w", err)
	}
	return count, nil
}

func (r *Repository) CountOpenGamePlayers(ctx context.Context) (int64, error) {
	var count int64
	err := sqlx.GetContext(ctx, r.ext, &count,
		`SELECT COUNT(DISTINCT user_id) FROM game_sessions WHERE ended_at IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to count open game players: %w", err)
	}
	return count, nil
}

func (r *Repository) UpsertGameServer(ctx context.Context, arg UpsertGameServerParams) (models.GameServer, error) {
	var server models.GameServer
	err := sqlx.GetContext(ctx, r.ext, &server, `
		INSERT INTO game_servers (
			instance_id, instance_name, friendly_name, module, module_display_name,
			ip, port, running, app_state, cpu_usage_percent, memory_usage_mb,
			active_users, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (instance_id) DO UPDATE SET
			instance_name = EXCLUDED.instance_name,
			friendly_name = EXCLUDED.friendly_name,
			module = EXCLUDED.module,
			module_display_name = EXCLUDED.module_display_name,
			ip = EXCLUDED.ip,
			port = EXCLUDED.port,
			running = EXCLUDED.running,
			app_state = EXCLUDED.app_state,
			cpu_usage_percent = EXCLUDED.cpu_usage_percent,
			memory_usage_mb = EXCLUDED.memory_usage_mb,
			active_users = EXCLUDED.active_users,
			updated_at = EXCLUDED.updated_at
		RETURNING *`,
		arg.InstanceID, arg.InstanceName, arg.FriendlyName, arg.Module, arg.ModuleDisplayName,
		arg.IP, arg.Port, arg.Running, arg.AppState, arg.CPUUsagePercent, arg.MemoryUsageMB,
		arg.ActiveUsers, arg.Now)
	if err != nil {
		return models.GameServer{}, fmt.Errorf("failed to upsert game server: %w", err)
	}
	return server, nil
}

func (r *Repository) InsertGameServerMetric(ctx context.Context, serverID int64, cpu, memoryMB float64, activeUsers int, recordedAt time.Time) error {
	_, err := r.ext.ExecContext(ctx, `
		INSERT INTO game_server_metrics (server_id, cpu_usage_percent, memory_usage_mb, active_users, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		serverID, cpu, memoryMB, activeUsers, recordedAt)
	if err != nil {
		return fmt.Errorf("failed to insert game server metric: %w", err)
	}
	return nil
}

// DeleteGameServersNotIn removes instances that disappeared from the panel
// inventory and returns them so the caller can clean up cover files.
func (r *Repository) DeleteGameServersNotIn(ctx context.Context, instanceIDs []string) ([]models.GameServer, error) {
	var deleted []models.GameServer
	var err error
	if len(instanceIDs) == 0 {
		err = sqlx.SelectContext(ctx, r.ext, &deleted,
			`DELETE FROM game_servers RETURNING *`)
	} else {
		err = sqlx.SelectContext(ctx, r.ext, &deleted,
			`DELETE FROM game_servers WHERE NOT (instance_id = ANY($1)) RETURNING *`,
			pq.Array(instanceIDs))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to prune game servers: %w", err)
	}
	return deleted, nil
}

func (r *Repository) GetGameServers(ctx context.Context) ([]models.GameServer, error) {
	var servers []models.GameServer
	err := sqlx.SelectContext(ctx, r.ext, &servers,
		`SELECT * FROM game_servers ORDER BY display_order, friendly_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get game servers: %w", err)
	}
	return servers, nil
}

func (r *Repository) GetGameServersWithoutCovers(ctx context.Context) ([]models.GameServer, error) {
	var servers []models.GameServer
	err := sqlx.SelectContext(ctx, r.ext, &servers,
		`SELECT * FROM game_servers WHERE module <> 'ADS' AND NOT cover_fetched ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get game servers without covers: %w", err)
	}
	return servers, nil
}

// SetGameServerCover records the cover path and marks the lookup done. An
// empty path still marks the server fetched so failed lookups are not
// retried every cycle.
func (r *Repository) SetGameServerCover(ctx context.Context, serverID int64, coverImage string) error {
	_, err := r.ext.ExecContext(ctx, `
		UPDATE game_servers SET cover_image = $2, cover_fetched = TRUE WHERE id = $1`,
		serverID, coverImage)
	if err != nil {
		return fmt.Errorf("failed to set game server cover: %w", err)
	}
	return nil
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
