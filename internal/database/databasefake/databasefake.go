package databasefake

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"guildstats/internal/database"
	"guildstats/internal/models"
)

// New returns an in-memory fake of the store for testing.
func New() database.Store {
	return &fakeStore{}
}

// fakeStore replicates the Postgres store to enable quick testing. All row
// structs are held by value; mutations assign fresh pointer fields, so a
// slice copy is a sufficient transaction snapshot.
type fakeStore struct {
	mu sync.Mutex

	users          []models.User
	gameSessions   []models.GameSession
	voiceSessions  []models.VoiceSession
	messages       []models.Message
	activityEvents []models.ActivityEvent
	gameStats      []models.GameStatistic
	userStats      []models.UserStatistic
	gameServers    []models.GameServer
	serverMetrics  []models.GameServerMetric

	nextID int64
}

func (q *fakeStore) id() int64 {
	q.nextID++
	return q.nextID
}

// InTx snapshots every table and restores the snapshot when fn fails.
func (q *fakeStore) InTx(ctx context.Context, fn func(database.Store) error) error {
	q.mu.Lock()
	snapshot := fakeStore{
		users:          append([]models.User(nil), q.users...),
		gameSessions:   append([]models.GameSession(nil), q.gameSessions...),
		voiceSessions:  append([]models.VoiceSession(nil), q.voiceSessions...),
		messages:       append([]models.Message(nil), q.messages...),
		activityEvents: append([]models.ActivityEvent(nil), q.activityEvents...),
		gameStats:      append([]models.GameStatistic(nil), q.gameStats...),
		userStats:      append([]models.UserStatistic(nil), q.userStats...),
		gameServers:    append([]models.GameServer(nil), q.gameServers...),
		serverMetrics:  append([]models.GameServerMetric(nil), q.serverMetrics...),
		nextID:         q.nextID,
	}
	q.mu.Unlock()

	if err := fn(q); err != nil {
		q.mu.Lock()
		q.users = snapshot.users
		q.gameSessions = snapshot.gameSessions
		q.voiceSessions = snapshot.voiceSessions
		q.messages = snapshot.messages
		q.activityEvents = snapshot.activityEvents
		q.gameStats = snapshot.gameStats
		q.userStats = snapshot.userStats
		q.gameServers = snapshot.gameServers
		q.serverMetrics = snapshot.serverMetrics
		q.nextID = snapshot.nextID
		q.mu.Unlock()
		return err
	}
	return nil
}

func (q *fakeStore) UpsertUser(_ context.Context, discordID, username string, now time.Time) (models.User, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, user := range q.users {
		if user.DiscordID == discordID {
			q.users[i].Username = username
			q.users[i].UpdatedAt = now
			return q.users[i], nil
		}
	}
	user := models.User{
		ID:        q.id(),
		DiscordID: discordID,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.users = append(q.users, user)
	return user, nil
}

func (q *fakeStore) GetUserByDiscordID(_ context.Context, discordID string) (models.User, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, user := range q.users {
		if user.DiscordID == discordID {
			return user, nil
		}
	}
	return models.User{}, sql.ErrNoRows
}

func (q *fakeStore) GetUsersByIDs(_ context.Context, ids []int64) ([]models.User, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	users := make([]models.User, 0, len(ids))
	for _, user := range q.users {
		for _, id := range ids {
			if user.ID == id {
				users = append(users, user)
			}
		}
	}
	return users, nil
}

func (q *fakeStore) InsertGameSession(_ context.Context, userID int64, gameName string, startedAt time.Time) (models.GameSession, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	session := models.GameSession{
		ID:        q.id(),
		UserID:    userID,
		GameName:  gameName,
		StartedAt: startedAt,
	}
	q.gameSessions = append(q.gameSessions, session)
	return session, nil
}

func (q *fakeStore) InsertVoiceSession(_ context.Context, userID int64, channelName string, startedAt time.Time) (models.VoiceSession, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	session := models.VoiceSession{
		ID:          q.id(),
		UserID:      userID,
		ChannelName: channelName,
		StartedAt:   startedAt,
	}
	q.voiceSessions = append(q.voiceSessions, session)
	return session, nil
}

func (q *fakeStore) InsertActivityEvent(_ context.Context, userID int64, activityType, activityName string, startedAt time.Time) (models.ActivityEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	event := models.ActivityEvent{
		ID:           q.id(),
		UserID:       userID,
		ActivityType: activityType,
		ActivityName: activityName,
		StartedAt:    startedAt,
	}
	q.activityEvents = append(q.activityEvents, event)
	return event, nil
}

func (q *fakeStore) InsertMessage(_ context.Context, userID int64, channelName string, length int, createdAt time.Time) (models.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	message := models.Message{
		ID:            q.id(),
		UserID:        userID,
		ChannelName:   channelName,
		MessageLength: length,
		CreatedAt:     createdAt,
	}
	q.messages = append(q.messages, message)
	return message, nil
}

func (q *fakeStore) CloseOpenGameSessions(_ context.Context, userID int64, endedAt time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var closed int64
	for i, session := range q.gameSessions {
		if session.UserID == userID && session.EndedAt == nil {
			ended := endedAt
			q.gameSessions[i].EndedAt = &ended
			q.gameSessions[i].DurationSeconds = int64(endedAt.Sub(session.StartedAt).Seconds())
			closed++
		}
	}
	return closed, nil
}

func (q *fakeStore) CloseOpenActivityEvents(_ context.Context, userID int64, endedAt time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var closed int64
	for i, event := range q.activityEvents {
		if event.UserID == userID && event.EndedAt == nil {
			ended := endedAt
			q.activityEvents[i].EndedAt = &ended
			closed++
		}
	}
	return closed, nil
}

func (q *fakeStore) CloseOpenVoiceSessions(_ context.Context, userID int64, channelName string, endedAt time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var closed int64
	for i, session := range q.voiceSessions {
		if session.UserID != userID || session.ChannelName != channelName || session.EndedAt != nil {
			continue
		}
		ended := endedAt
		q.voiceSessions[i].EndedAt = &ended
		q.voiceSessions[i].DurationSeconds = int64(endedAt.Sub(session.StartedAt).Seconds())
		closed++
	}
	return closed, nil
}

func (q *fakeStore) CountOpenVoiceSessions(_ context.Context, userID int64, channelName string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var count int64
	for _, session := range q.voiceSessions {
		if session.UserID == userID && session.ChannelName == channelName && session.EndedAt == nil {
			count++
		}
	}
	return count, nil
}

func (q *fakeStore) GetClosedGameSessions(_ context.Context) ([]models.GameSession, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sessions := make([]models.GameSession, 0)
	for _, session := range q.gameSessions {
		if session.EndedAt != nil {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (q *fakeStore) GetClosedVoiceSessions(_ context.Context) ([]models.VoiceSession, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sessions := make([]models.VoiceSession, 0)
	for _, session := range q.voiceSessions {
		if session.EndedAt != nil {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (q *fakeStore) GetClosedActivityEventIDs(_ context.Context) ([]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]int64, 0)
	for _, event := range q.activityEvents {
		if event.EndedAt != nil {
			ids = append(ids, event.ID)
		}
	}
	return ids, nil
}

func (q *fakeStore) GetAllMessages(_ context.Context) ([]models.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.Message(nil), q.messages...), nil
}

func (q *fakeStore) DeleteGameSessions(_ context.Context, ids []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.gameSessions[:0]
	for _, session := range q.gameSessions {
		if !containsID(ids, session.ID) {
			kept = append(kept, session)
		}
	}
	q.gameSessions = kept
	return nil
}

func (q *fakeStore) DeleteVoiceSessions(_ context.Context, ids []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.voiceSessions[:0]
	for _, session := range q.voiceSessions {
		if !containsID(ids, session.ID) {
			kept = append(kept, session)
		}
	}
	q.voiceSessions = kept
	return nil
}

func (q *fakeStore) DeleteActivityEvents(_ context.Context, ids []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.activityEvents[:0]
	for _, event := range q.activityEvents {
		if !containsID(ids, event.ID) {
			kept = append(kept, event)
		}
	}
	q.activityEvents = kept
	return nil
}

func (q *fakeStore) DeleteMessages(_ context.Context, ids []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.messages[:0]
	for _, message := range q.messages {
		if !containsID(ids, message.ID) {
			kept = append(kept, message)
		}
	}
	q.messages = kept
	return nil
}

func (q *fakeStore) AddGameStatistic(_ context.Context, arg database.AddGameStatisticParams) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, stat := range q.gameStats {
		if stat.GameName == arg.GameName {
			q.gameStats[i].TotalSeconds += arg.AddSeconds
			q.gameStats[i].TotalSessions += arg.AddSessions
			q.gameStats[i].SecondsThisWeek = arg.SecondsThisWeek
			q.gameStats[i].SecondsThisMonth = arg.SecondsThisMonth
			q.gameStats[i].LastUpdated = arg.Now
			return nil
		}
	}
	q.gameStats = append(q.gameStats, models.GameStatistic{
		GameName:         arg.GameName,
		TotalSeconds:     arg.AddSeconds,
		TotalSessions:    arg.AddSessions,
		SecondsThisWeek:  arg.SecondsThisWeek,
		SecondsThisMonth: arg.SecondsThisMonth,
		LastUpdated:      arg.Now,
	})
	return nil
}

func (q *fakeStore) AddUserStatistic(_ context.Context, arg database.AddUserStatisticParams) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, stat := range q.userStats {
		if stat.UserID == arg.UserID {
			q.userStats[i].TotalGamingSeconds += arg.AddGamingSeconds
			q.userStats[i].TotalVoiceSeconds += arg.AddVoiceSeconds
			q.userStats[i].TotalMessages += arg.AddMessages
			q.userStats[i].GamingSecondsThisWeek = arg.GamingSecondsThisWeek
			q.userStats[i].GamingSecondsThisMonth = arg.GamingSecondsThisMonth
			q.userStats[i].VoiceSecondsThisWeek = arg.VoiceSecondsThisWeek
			q.userStats[i].VoiceSecondsThisMonth = arg.VoiceSecondsThisMonth
			q.userStats[i].MessagesThisWeek = arg.MessagesThisWeek
			q.userStats[i].MessagesThisMonth = arg.MessagesThisMonth
			q.userStats[i].LastUpdated = arg.Now
			return nil
		}
	}
	q.userStats = append(q.userStats, models.UserStatistic{
		UserID:                 arg.UserID,
		TotalGamingSeconds:     arg.AddGamingSeconds,
		TotalVoiceSeconds:      arg.AddVoiceSeconds,
		TotalMessages:          arg.AddMessages,
		GamingSecondsThisWeek:  arg.GamingSecondsThisWeek,
		GamingSecondsThisMonth: arg.GamingSecondsThisMonth,
		VoiceSecondsThisWeek:   arg.VoiceSecondsThisWeek,
		VoiceSecondsThisMonth:  arg.VoiceSecondsThisMonth,
		MessagesThisWeek:       arg.MessagesThisWeek,
		MessagesThisMonth:      arg.MessagesThisMonth,
		LastUpdated:            arg.Now,
	})
	return nil
}

func (q *fakeStore) GetGameStatistic(_ context.Context, gameName string) (models.GameStatistic, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, stat := range q.gameStats {
		if stat.GameName == gameName {
			return stat, nil
		}
	}
	return models.GameStatistic{}, sql.ErrNoRows
}

func (q *fakeStore) GetUserStatistic(_ context.Context, userID int64) (models.UserStatistic, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, stat := range q.userStats {
		if stat.UserID == userID {
			return stat, nil
		}
	}
	return models.UserStatistic{}, sql.ErrNoRows
}

func (q *fakeStore) GetGameStatistics(_ context.Context) ([]models.GameStatistic, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.GameStatistic(nil), q.gameStats...), nil
}

func (q *fakeStore) GetUserStatistics(_ context.Context) ([]models.UserStatistic, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.UserStatistic(nil), q.userStats...), nil
}

func (q *fakeStore) LiveGameSecondsByGame(_ context.Context, now time.Time) (map[string]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]int64)
	for _, session := range q.gameSessions {
		out[session.GameName] += liveSeconds(session.StartedAt, session.EndedAt, session.DurationSeconds, now)
	}
	return out, nil
}

func (q *fakeStore) LiveGameSecondsByUser(_ context.Context, now time.Time) (map[int64]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[int64]int64)
	for _, session := range q.gameSessions {
		out[session.UserID] += liveSeconds(session.StartedAt, session.EndedAt, session.DurationSeconds, now)
	}
	return out, nil
}

func (q *fakeStore) LiveVoiceSecondsByUser(_ context.Context, now time.Time) (map[int64]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[int64]int64)
	for _, session := range q.voiceSessions {
		if session.EndedAt != nil {
			out[session.UserID] += session.DurationSeconds
		}
	}
	for _, session := range q.newestOpenVoice() {
		out[session.UserID] += liveSeconds(session.StartedAt, nil, 0, now)
	}
	return out, nil
}

type voiceKey struct {
	userID  int64
	channel string
}

// newestOpenVoice picks the newest open session per (user, channel) so a
// duplicate open left by a missed leave event counts once.
func (q *fakeStore) newestOpenVoice() map[voiceKey]models.VoiceSession {
	newest := make(map[voiceKey]models.VoiceSession)
	for _, session := range q.voiceSessions {
		if session.EndedAt != nil {
			continue
		}
		key := voiceKey{session.UserID, session.ChannelName}
		cur, ok := newest[key]
		if !ok || session.StartedAt.After(cur.StartedAt) ||
			(session.StartedAt.Equal(cur.StartedAt) && session.ID > cur.ID) {
			newest[key] = session
		}
	}
	return newest
}

func (q *fakeStore) LiveMessageCountsByUser(_ context.Context) (map[int64]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[int64]int64)
	for _, message := range q.messages {
		out[message.UserID]++
	}
	return out, nil
}

func (q *fakeStore) LiveGameSecondsForUser(_ context.Context, userID int64, now time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var total int64
	for _, session := range q.gameSessions {
		if session.UserID == userID {
			total += liveSeconds(session.StartedAt, session.EndedAt, session.DurationSeconds, now)
		}
	}
	return total, nil
}

func (q *fakeStore) LiveVoiceSecondsForUser(_ context.Context, userID int64, now time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var total int64
	for _, session := range q.voiceSessions {
		if session.UserID == userID && session.EndedAt != nil {
			total += session.DurationSeconds
		}
	}
	for key, session := range q.newestOpenVoice() {
		if key.userID == userID {
			total += liveSeconds(session.StartedAt, nil, 0, now)
		}
	}
	return total, nil
}

func (q *fakeStore) LiveMessageCountForUser(_ context.Context, userID int64) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var count int64
	for _, message := range q.messages {
		if message.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (q *fakeStore) CountOpenGamePlayers(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	players := make(map[int64]struct{})
	for _, session := range q.gameSessions {
		if session.EndedAt == nil {
			players[session.UserID] = struct{}{}
		}
	}
	return int64(len(players)), nil
}

func (q *fakeStore) UpsertGameServer(_ context.Context, arg database.UpsertGameServerParams) (models.GameServer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, server := range q.gameServers {
		if server.InstanceID == arg.InstanceID {
			q.gameServers[i].InstanceName = arg.InstanceName
			q.gameServers[i].FriendlyName = arg.FriendlyName
			q.gameServers[i].Module = arg.Module
			q.gameServers[i].ModuleDisplayName = arg.ModuleDisplayName
			q.gameServers[i].IP = arg.IP
			q.gameServers[i].Port = arg.Port
			q.gameServers[i].Running = arg.Running
			q.gameServers[i].AppState = arg.AppState
			q.gameServers[i].CPUUsagePercent = arg.CPUUsagePercent
			q.gameServers[i].MemoryUsageMB = arg.MemoryUsageMB
			q.gameServers[i].ActiveUsers = arg.ActiveUsers
			q.gameServers[i].UpdatedAt = arg.Now
			return q.gameServers[i], nil
		}
	}
	server := models.GameServer{
		ID:                q.id(),
		InstanceID:        arg.InstanceID,
		InstanceName:      arg.InstanceName,
		FriendlyName:      arg.FriendlyName,
		Module:            arg.Module,
		ModuleDisplayName: arg.ModuleDisplayName,
		IP:                arg.IP,
		Port:              arg.Port,
		Running:           arg.Running,
		AppState:          arg.AppState,
		CPUUsagePercent:   arg.CPUUsagePercent,
		MemoryUsageMB:     arg.MemoryUsageMB,
		ActiveUsers:       arg.ActiveUsers,
		CreatedAt:         arg.Now,
		UpdatedAt:         arg.Now,
	}
	q.gameServers = append(q.gameServers, server)
	return server, nil
}

func (q *fakeStore) InsertGameServerMetric(_ context.Context, serverID int64, cpu, memoryMB float64, activeUsers int, recordedAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.serverMetrics = append(q.serverMetrics, models.GameServerMetric{
		ID:              q.id(),
		ServerID:        serverID,
		CPUUsagePercent: cpu,
		MemoryUsageMB:   memoryMB,
		ActiveUsers:     activeUsers,
		RecordedAt:      recordedAt,
	})
	return nil
}

func (q *fakeStore) DeleteGameServersNotIn(_ context.Context, instanceIDs []string) ([]models.GameServer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	keep := make(map[string]struct{}, len(instanceIDs))
	for _, id := range instanceIDs {
		keep[id] = struct{}{}
	}
	var deleted []models.GameServer
	kept := q.gameServers[:0]
	for _, server := range q.gameServers {
		if _, ok := keep[server.InstanceID]; ok {
			kept = append(kept, server)
		} else {
			deleted = append(deleted, server)
		}
	}
	q.gameServers = kept

	keptMetrics := q.serverMetrics[:0]
	for _, metric := range q.serverMetrics {
		alive := false
		for _, server := range q.gameServers {
			if server.ID == metric.ServerID {
				alive = true
				break
			}
		}
		if alive {
			keptMetrics = append(keptMetrics, metric)
		}
	}
	q.serverMetrics = keptMetrics
	return deleted, nil
}

func (q *fakeStore) GetGameServers(_ context.Context) ([]models.GameServer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.GameServer(nil), q.gameServers...), nil
}

func (q *fakeStore) GetGameServersWithoutCovers(_ context.Context) ([]models.GameServer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	servers := make([]models.GameServer, 0)
	for _, server := range q.gameServers {
		if server.IsGame() && !server.CoverFetched {
			servers = append(servers, server)
		}
	}
	return servers, nil
}

func (q *fakeStore) SetGameServerCover(_ context.Context, serverID int64, coverImage string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, server := range q.gameServers {
		if server.ID == serverID {
			q.gameServers[i].CoverImage = coverImage
			q.gameServers[i].CoverFetched = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func liveSeconds(startedAt time.Time, endedAt *time.Time, duration int64, now time.Time) int64 {
	if endedAt != nil {
		return duration
	}
	elapsed := int64(now.Sub(startedAt).Seconds())
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
