// Package model defines the domain types used across the application.
package model

import "time"

// Keyword represents a user's highlight subscription.
// A GuildID of zero means the keyword is global: it applies in every guild
// the user shares with the bot.
type Keyword struct {
	ID            int64
	UserID        int64
	GuildID       int64
	Pattern       string
	CaseSensitive bool
	CreatedAt     time.Time
}

// Global reports whether the keyword applies across all shared guilds.
func (k Keyword) Global() bool {
	return k.GuildID == 0
}

// IgnoreKind defines what an ignore rule targets.
type IgnoreKind string

// Supported ignore targets.
const (
	IgnoreChannel IgnoreKind = "channel"
	IgnoreUser    IgnoreKind = "user"
	IgnoreRole    IgnoreKind = "role"
)

// IgnoreRule suppresses notifications for messages matching its target.
// A UserID of zero makes the rule guild-wide; otherwise it applies only to
// notifications destined for that user.
type IgnoreRule struct {
	ID        int64
	GuildID   int64
	UserID    int64
	Kind      IgnoreKind
	TargetID  int64
	CreatedAt time.Time
}

// Block represents one user blocking another. The blocker is never
// notified about messages authored by the blocked user.
type Block struct {
	UserID    int64
	BlockedID int64
	CreatedAt time.Time
}

// OptOut disables all highlighting for a user within one guild without
// deleting their keywords.
type OptOut struct {
	UserID  int64
	GuildID int64
}

// Message is one inbound chat message delivered by the gateway.
type Message struct {
	ID          int64
	GuildID     int64
	ChannelID   int64
	AuthorID    int64
	AuthorRoles []int64
	Content     string
	Timestamp   time.Time
}
