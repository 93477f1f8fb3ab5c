package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"guildstats/internal/models"
	"guildstats/internal/tracker"
	"guildstats/pkg/utils"
)

// Bot is the gateway adapter: it translates Discord events into recorder
// calls and answers stat commands from the reader. Handlers only enqueue
// work on the dispatcher; no store access happens on gateway goroutines.
type Bot struct {
	session    *discordgo.Session
	dispatcher *tracker.Dispatcher
	recorder   *tracker.Recorder
	reader     *tracker.Reader
	log        *zap.Logger
}

// New creates the Discord bot.
func New(token string, dispatcher *tracker.Dispatcher, recorder *tracker.Recorder, reader *tracker.Reader, log *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildPresences |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	bot := &Bot{
		session:    session,
		dispatcher: dispatcher,
		recorder:   recorder,
		reader:     reader,
		log:        log,
	}

	session.AddHandler(bot.presenceUpdate)
	session.AddHandler(bot.voiceStateUpdate)
	session.AddHandler(bot.messageCreate)

	return bot, nil
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	b.log.Info("bot is running")
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

// activityKind maps the gateway activity type onto the stored kind.
func activityKind(t discordgo.ActivityType) string {
	switch t {
	case discordgo.ActivityTypeGame:
		return models.ActivityGame
	case discordgo.ActivityTypeStreaming:
		return models.ActivityStreaming
	case discordgo.ActivityTypeListening:
		return models.ActivityListening
	case discordgo.ActivityTypeWatching:
		return models.ActivityWatching
	case discordgo.ActivityTypeCustom:
		return models.ActivityCustom
	case discordgo.ActivityTypeCompeting:
		return models.ActivityCompeting
	default:
		return models.ActivityUnknown
	}
}

func (b *Bot) presenceUpdate(_ *discordgo.Session, p *discordgo.PresenceUpdate) {
	if p.User == nil || p.User.Bot {
		return
	}

	userID := p.User.ID
	username := p.User.Username
	activities := make([]tracker.Activity, 0, len(p.Activities))
	for _, act := range p.Activities {
		if act == nil || act.Name == "" {
			continue
		}
		activities = append(activities, tracker.Activity{
			Kind: activityKind(act.Type),
			Name: act.Name,
		})
	}

	b.dispatcher.Dispatch(userID, func(ctx context.Context) {
		if err := b.recorder.RecordPresence(ctx, userID, username, activities); err != nil {
			b.log.Error("presence update dropped", zap.String("user", userID), zap.Error(err))
		}
	})
}

func (b *Bot) voiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot {
		return
	}

	userID := vs.UserID
	var username string
	if vs.Member != nil && vs.Member.User != nil {
		username = vs.Member.User.Username
	}

	var before string
	if vs.BeforeUpdate != nil {
		before = vs.BeforeUpdate.ChannelID
	}
	after := vs.ChannelID

	switch {
	case before == "" && after != "":
		channel := b.channelName(s, after)
		b.dispatcher.Dispatch(userID, func(ctx context.Context) {
			if err := b.recorder.RecordVoiceJoin(ctx, userID, username, channel); err != nil {
				b.log.Error("voice join dropped", zap.String("user", userID), zap.Error(err))
			}
		})
	case before != "" && after == "":
		channel := b.channelName(s, before)
		b.dispatcher.Dispatch(userID, func(ctx context.Context) {
			if err := b.recorder.RecordVoiceLeave(ctx, userID, username, channel); err != nil {
				b.log.Error("voice leave dropped", zap.String("user", userID), zap.Error(err))
			}
		})
	case before != "" && after != "" && before != after:
		from := b.channelName(s, before)
		to := b.channelName(s, after)
		b.dispatcher.Dispatch(userID, func(ctx context.Context) {
			if err := b.recorder.RecordVoiceSwitch(ctx, userID, username, from, to); err != nil {
				b.log.Error("voice switch dropped", zap.String("user", userID), zap.Error(err))
			}
		})
	}
}

// channelName resolves a channel id through the session state cache,
// falling back to the raw id when the channel is not cached.
func (b *Bot) channelName(s *discordgo.Session, channelID string) string {
	if channel, err := s.State.Channel(channelID); err == nil && channel.Name != "" {
		return channel.Name
	}
	return channelID
}

func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	userID := m.Author.ID
	username := m.Author.Username
	channel := b.channelName(s, m.ChannelID)
	length := len(m.Content)

	b.dispatcher.Dispatch(userID, func(ctx context.Context) {
		if err := b.recorder.RecordMessage(ctx, userID, username, channel, length); err != nil {
			b.log.Error("message dropped", zap.String("user", userID), zap.Error(err))
		}
	})

	content := strings.TrimSpace(m.Content)
	switch {
	case content == "!stats" || strings.HasPrefix(content, "!stats "):
		b.handleStatsCommand(s, m)
	case strings.HasPrefix(content, "!play"):
		b.handlePlayCommand(s, m)
	case content == "!voice":
		b.handleVoiceCommand(s, m)
	case content == "!top":
		b.handleTopCommand(s, m)
	}
}

// handleStatsCommand answers !stats with the caller's live totals, or
// another member's when the command mentions them.
func (b *Bot) handleStatsCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	target := m.Author.ID
	arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(m.Content), "!stats"))
	if utils.IsUserMention(arg) {
		target = utils.ExtractUserIDFromMention(arg)
	}

	totals, err := b.reader.UserTotalsByDiscordID(context.Background(), target)
	if err != nil {
		b.log.Warn("failed to get user totals", zap.Error(err))
		s.ChannelMessageSend(m.ChannelID, "No stats recorded yet.")
		return
	}

	msg := fmt.Sprintf("📊 %s\nGaming: %s\nVoice: %s\nMessages: %d",
		totals.Username,
		utils.FormatDuration(totals.GamingSeconds),
		utils.FormatDuration(totals.VoiceSeconds),
		totals.Messages)
	s.ChannelMessageSend(m.ChannelID, msg)
}

// handlePlayCommand answers !play <game> with the game's live totals.
func (b *Bot) handlePlayCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(m.Content), "!play"))
	if name == "" {
		s.ChannelMessageSend(m.ChannelID, "Usage: !play <game name>")
		return
	}

	totals, err := b.reader.GameTotalsByName(context.Background(), name)
	if err != nil {
		b.log.Warn("failed to get game totals", zap.Error(err))
		s.ChannelMessageSend(m.ChannelID, "Something went wrong fetching game stats.")
		return
	}

	msg := fmt.Sprintf("🎮 %s: %s across %d sessions",
		name, utils.FormatDuration(totals.TotalSeconds), totals.TotalSessions)
	s.ChannelMessageSend(m.ChannelID, msg)
}

// handleVoiceCommand answers !voice with the caller's live voice total.
func (b *Bot) handleVoiceCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	totals, err := b.reader.UserTotalsByDiscordID(context.Background(), m.Author.ID)
	if err != nil {
		b.log.Warn("failed to get user totals", zap.Error(err))
		s.ChannelMessageSend(m.ChannelID, "No voice time recorded for you yet.")
		return
	}

	msg := fmt.Sprintf("⏱️ %s, total voice: %s", totals.Username, utils.FormatDuration(totals.VoiceSeconds))
	s.ChannelMessageSend(m.ChannelID, msg)
}

// handleTopCommand answers !top with the gaming leaderboard.
func (b *Bot) handleTopCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	overview, err := b.reader.Overview(context.Background(), tracker.DefaultLeaderboardSize)
	if err != nil {
		b.log.Warn("failed to get overview", zap.Error(err))
		s.ChannelMessageSend(m.ChannelID, "Something went wrong fetching the leaderboard.")
		return
	}

	var lines []string
	for i, entry := range overview.TopGamers {
		lines = append(lines, utils.FormatLeaderboardEntry(i+1, entry.Username, utils.FormatDuration(entry.Seconds)))
	}
	if len(lines) == 0 {
		lines = append(lines, "(no gaming recorded yet)")
	}

	msg := fmt.Sprintf("🏆 Top gamers:\n%s", strings.Join(lines, "\n"))
	s.ChannelMessageSend(m.ChannelID, utils.TruncateMessage(msg))
}
