package database

import (
	"context"
	"time"

	"guildstats/internal/models"
)

// Store is the single entry point to the session store and the durable
// counters. Open/close invariants are enforced here rather than at call
// sites; the recorder and the aggregator are the only writers.
type Store interface {
	// InTx runs fn against a transactional view of the store. A returned
	// error rolls back every change made inside fn.
	InTx(ctx context.Context, fn func(Store) error) error

	// Identity.
	UpsertUser(ctx context.Context, discordID, username string, now time.Time) (models.User, error)
	GetUserByDiscordID(ctx context.Context, discordID string) (models.User, error)
	GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error)

	// Session store writes.
	InsertGameSession(ctx context.Context, userID int64, gameName string, startedAt time.Time) (models.GameSession, error)
	InsertVoiceSession(ctx context.Context, userID int64, channelName string, startedAt time.Time) (models.VoiceSession, error)
	InsertActivityEvent(ctx context.Context, userID int64, activityType, activityName string, startedAt time.Time) (models.ActivityEvent, error)
	InsertMessage(ctx context.Context, userID int64, channelName string, length int, createdAt time.Time) (models.Message, error)
	CloseOpenGameSessions(ctx context.Context, userID int64, endedAt time.Time) (int64, error)
	CloseOpenActivityEvents(ctx context.Context, userID int64, endedAt time.Time) (int64, error)
	// CloseOpenVoiceSessions closes every open session for the
	// (user, channel) pair, each with its own elapsed duration, and
	// reports how many it closed. Duplicate opens left behind by missed
	// leave events settle here instead of lingering.
	CloseOpenVoiceSessions(ctx context.Context, userID int64, channelName string, endedAt time.Time) (int64, error)
	CountOpenVoiceSessions(ctx context.Context, userID int64, channelName string) (int64, error)

	// Drain primitives. The aggregator snapshots closed rows, folds them
	// into the counters and deletes exactly the snapshotted ids, all inside
	// one InTx scope.
	GetClosedGameSessions(ctx context.Context) ([]models.GameSession, error)
	GetClosedVoiceSessions(ctx context.Context) ([]models.VoiceSession, error)
	GetClosedActivityEventIDs(ctx context.Context) ([]int64, error)
	GetAllMessages(ctx context.Context) ([]models.Message, error)
	DeleteGameSessions(ctx context.Context, ids []int64) error
	DeleteVoiceSessions(ctx context.Context, ids []int64) error
	DeleteActivityEvents(ctx context.Context, ids []int64) error
	DeleteMessages(ctx context.Context, ids []int64) error
	AddGameStatistic(ctx context.Context, arg AddGameStatisticParams) error
	AddUserStatistic(ctx context.Context, arg AddUserStatisticParams) error

	// Durable counter reads.
	GetGameStatistic(ctx context.Context, gameName string) (models.GameStatistic, error)
	GetUserStatistic(ctx context.Context, userID int64) (models.UserStatistic, error)
	GetGameStatistics(ctx context.Context) ([]models.GameStatistic, error)
	GetUserStatistics(ctx context.Context) ([]models.UserStatistic, error)

	// Live sums over rows still present in the session store: closed rows
	// contribute their recorded duration, open rows contribute now minus
	// their start. Open voice rows count once per (user, channel), the
	// newest row wins.
	LiveGameSecondsByGame(ctx context.Context, now time.Time) (map[string]int64, error)
	LiveGameSecondsByUser(ctx context.Context, now time.Time) (map[int64]int64, error)
	LiveVoiceSecondsByUser(ctx context.Context, now time.Time) (map[int64]int64, error)
	LiveMessageCountsByUser(ctx context.Context) (map[int64]int64, error)
	LiveGameSecondsForUser(ctx context.Context, userID int64, now time.Time) (int64, error)
	LiveVoiceSecondsForUser(ctx context.Context, userID int64, now time.Time) (int64, error)
	LiveMessageCountForUser(ctx context.Context, userID int64) (int64, error)
	CountOpenGamePlayers(ctx context.Context) (int64, error)

	// Game server inventory.
	UpsertGameServer(ctx context.Context, arg UpsertGameServerParams) (models.GameServer, error)
	InsertGameServerMetric(ctx context.Context, serverID int64, cpu, memoryMB float64, activeUsers int, recordedAt time.Time) error
	DeleteGameServersNotIn(ctx context.Context, instanceIDs []string) ([]models.GameServer, error)
	GetGameServers(ctx context.Context) ([]models.GameServer, error)
	GetGameServersWithoutCovers(ctx context.Context) ([]models.GameServer, error)
	SetGameServerCover(ctx context.Context, serverID int64, coverImage string) error
}

// AddGameStatisticParams carries one drained game group: the Add fields
// accumulate onto lifetime totals, the window fields replace the current
// window values.
type AddGameStatisticParams struct {
	GameName         string
	AddSeconds       int64
	AddSessions      int64
	SecondsThisWeek  int64
	SecondsThisMonth int64
	Now              time.Time
}

// AddUserStatisticParams carries one drained user group, with the same
// add-versus-replace split as AddGameStatisticParams.
type AddUserStatisticParams struct {
	UserID                 int64
	AddGamingSeconds       int64
	AddVoiceSeconds        int64
	AddMessages            int64
	GamingSecondsThisWeek  int64
	GamingSecondsThisMonth int64
	VoiceSecondsThisWeek   int64
	VoiceSecondsThisMonth  int64
	MessagesThisWeek       int64
	MessagesThisMonth      int64
	Now                    time.Time
}

// UpsertGameServerParams is one panel instance as reported by the inventory
// endpoint.
type UpsertGameServerParams struct {
	InstanceID        string
	InstanceName      string
	FriendlyName      string
	Module            string
	ModuleDisplayName string
	IP                string
	Port              int
	Running           bool
	AppState          int
	CPUUsagePercent   float64
	MemoryUsageMB     float64
	ActiveUsers       int
	Now               time.Time
}
