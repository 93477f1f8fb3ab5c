package models

import "time"

// User is a community member observed through the Discord gateway.
// Created on first sighting, username refreshed on every event, never deleted.
type User struct {
	ID        int64     `db:"id"`
	DiscordID string    `db:"discord_id"`
	Username  string    `db:"username"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GameSession is one continuous span of playing a single game.
// Open while EndedAt is nil; DurationSeconds stays 0 until closed.
type GameSession struct {
	ID              int64      `db:"id"`
	UserID          int64      `db:"user_id"`
	GameName        string     `db:"game_name"`
	StartedAt       time.Time  `db:"started_at"`
	EndedAt         *time.Time `db:"ended_at"`
	DurationSeconds int64      `db:"duration_seconds"`
}

// Open reports whether the session is still running.
func (s GameSession) Open() bool {
	return s.EndedAt == nil
}

// VoiceSession is one continuous span in a single voice channel.
type VoiceSession struct {
	ID              int64      `db:"id"`
	UserID          int64      `db:"user_id"`
	ChannelName     string     `db:"channel_name"`
	StartedAt       time.Time  `db:"started_at"`
	EndedAt         *time.Time `db:"ended_at"`
	DurationSeconds int64      `db:"duration_seconds"`
}

// Open reports whether the session is still running.
func (s VoiceSession) Open() bool {
	return s.EndedAt == nil
}

// Message records a single chat message. Immutable; removed only by the
// aggregation cycle.
type Message struct {
	ID            int64     `db:"id"`
	UserID        int64     `db:"user_id"`
	ChannelName   string    `db:"channel_name"`
	MessageLength int       `db:"message_length"`
	CreatedAt     time.Time `db:"created_at"`
}

// Activity kinds mirrored from the Discord presence payload.
const (
	ActivityGame      = "game"
	ActivityStreaming = "streaming"
	ActivityListening = "listening"
	ActivityWatching  = "watching"
	ActivityCustom    = "custom"
	ActivityCompeting = "competing"
	ActivityUnknown   = "unknown"
)

// ActivityEvent is the generic presence log entry, one per activity. Games
// additionally get a GameSession with the same open/close discipline.
type ActivityEvent struct {
	ID           int64      `db:"id"`
	UserID       int64      `db:"user_id"`
	ActivityType string     `db:"activity_type"`
	ActivityName string     `db:"activity_name"`
	StartedAt    time.Time  `db:"started_at"`
	EndedAt      *time.Time `db:"ended_at"`
}

// GameStatistic holds the durable per-game counters. Lifetime totals only
// ever grow; the week/month windows are overwritten each aggregation cycle
// from whatever closed sessions were still undrained, so they approximate
// "since the previous drain" rather than a true calendar window.
type GameStatistic struct {
	GameName         string    `db:"game_name"`
	TotalSeconds     int64     `db:"total_seconds"`
	TotalSessions    int64     `db:"total_sessions"`
	SecondsThisWeek  int64     `db:"seconds_this_week"`
	SecondsThisMonth int64     `db:"seconds_this_month"`
	LastUpdated      time.Time `db:"last_updated"`
}

// UserStatistic holds the durable per-user counters. Same lifecycle and
// window semantics as GameStatistic.
type UserStatistic struct {
	UserID                 int64     `db:"user_id"`
	TotalGamingSeconds     int64     `db:"total_gaming_seconds"`
	TotalVoiceSeconds      int64     `db:"total_voice_seconds"`
	TotalMessages          int64     `db:"total_messages"`
	GamingSecondsThisWeek  int64     `db:"gaming_seconds_this_week"`
	GamingSecondsThisMonth int64     `db:"gaming_seconds_this_month"`
	VoiceSecondsThisWeek   int64     `db:"voice_seconds_this_week"`
	VoiceSecondsThisMonth  int64     `db:"voice_seconds_this_month"`
	MessagesThisWeek       int64     `db:"messages_this_week"`
	MessagesThisMonth      int64     `db:"messages_this_month"`
	LastUpdated            time.Time `db:"last_updated"`
}

// GameServer is one instance reported by the hosting panel inventory.
type GameServer struct {
	ID                int64     `db:"id" json:"id"`
	InstanceID        string    `db:"instance_id" json:"instance_id"`
	InstanceName      string    `db:"instance_name" json:"instance_name"`
	FriendlyName      string    `db:"friendly_name" json:"friendly_name"`
	Module            string    `db:"module" json:"module"`
	ModuleDisplayName string    `db:"module_display_name" json:"module_display_name"`
	IP                string    `db:"ip" json:"ip"`
	Port              int       `db:"port" json:"port"`
	Running           bool      `db:"running" json:"running"`
	AppState          int       `db:"app_state" json:"app_state"`
	CPUUsagePercent   float64   `db:"cpu_usage_percent" json:"cpu_usage_percent"`
	MemoryUsageMB     float64   `db:"memory_usage_mb" json:"memory_usage_mb"`
	ActiveUsers       int       `db:"active_users" json:"active_users"`
	CoverImage        string    `db:"cover_image" json:"cover_image"`
	CoverFetched      bool      `db:"cover_fetched" json:"-"`
	DisplayOrder      int       `db:"display_order" json:"display_order"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// IsGame reports whether the instance runs an actual game. The panel's
// own controller instance uses the ADS module.
func (s GameServer) IsGame() bool {
	return s.Module != "ADS"
}

// GameServerMetric is one resource-usage sample for a server instance.
type GameServerMetric struct {
	ID              int64     `db:"id"`
	ServerID        int64     `db:"server_id"`
	CPUUsagePercent float64   `db:"cpu_usage_percent"`
	MemoryUsageMB   float64   `db:"memory_usage_mb"`
	ActiveUsers     int       `db:"active_users"`
	RecordedAt      time.Time `db:"recorded_at"`
}

// DisplayName is the name shown on dashboards for a server instance.
func (s GameServer) DisplayName() string {
	if s.ModuleDisplayName != "" {
		return s.ModuleDisplayName
	}
	return s.FriendlyName
}
