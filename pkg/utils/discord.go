package utils

import (
	"fmt"
	"strings"
)

// MaxMessageLength is Discord's hard limit on message content.
const MaxMessageLength = 2000

// IsUserMention reports whether text looks like a <@id> user mention.
func IsUserMention(text string) bool {
	return strings.HasPrefix(text, "<@") && strings.HasSuffix(text, ">")
}

// ExtractUserIDFromMention strips the mention markup around a user id.
// Nickname mentions carry an extra ! after <@.
func ExtractUserIDFromMention(mention string) string {
	id := strings.TrimSuffix(strings.TrimPrefix(mention, "<@"), ">")
	return strings.TrimPrefix(id, "!")
}

// FormatLeaderboardEntry renders one ranked line, medals for the podium.
func FormatLeaderboardEntry(rank int, name, value string) string {
	medal := fmt.Sprintf("%d.", rank)
	switch rank {
	case 1:
		medal = "🥇"
	case 2:
		medal = "🥈"
	case 3:
		medal = "🥉"
	}
	return fmt.Sprintf("%s %s - %s", medal, name, value)
}

// TruncateMessage caps content at Discord's message length limit.
func TruncateMessage(s string) string {
	if len(s) <= MaxMessageLength {
		return s
	}
	return s[:MaxMessageLength-3] + "..."
}
