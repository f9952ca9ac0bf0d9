package index

import (
	"highlight_bot/internal/matcher"
	"highlight_bot/internal/model"
)

// Snapshot is a point-in-time view of one guild's subscriptions, ignore
// rules, opt-outs, and the cross-guild block set. It stays valid for the
// duration of one matching pass regardless of concurrent index mutations.
type Snapshot struct {
	GuildID int64

	keywords []*matcher.Compiled
	ignores  []model.IgnoreRule
	optOuts  map[int64]struct{}
	blocks   map[int64]map[int64]struct{}
}

// Keywords returns the guild-scoped and global keywords relevant to this
// guild.
func (s *Snapshot) Keywords() []*matcher.Compiled {
	return s.keywords
}

// OptedOut reports whether the user disabled highlighting in this guild.
func (s *Snapshot) OptedOut(userID int64) bool {
	_, ok := s.optOuts[userID]
	return ok
}

// Blocked reports whether blocker has blocked target.
func (s *Snapshot) Blocked(blocker, target int64) bool {
	_, ok := s.blocks[blocker][target]
	return ok
}

// BlockedEither reports whether a block exists in either direction between
// the two users.
func (s *Snapshot) BlockedEither(a, b int64) bool {
	return s.Blocked(a, b) || s.Blocked(b, a)
}

// Ignored reports whether any ignore rule applicable to ownerID covers the
// message's channel, author, or one of the author's roles. Guild-wide
// rules apply to every owner.
func (s *Snapshot) Ignored(ownerID int64, msg model.Message) bool {
	for _, rule := range s.ignores {
		if rule.UserID != 0 && rule.UserID != ownerID {
			continue
		}
		switch rule.Kind {
		case model.IgnoreChannel:
			if rule.TargetID == msg.ChannelID {
				return true
			}
		case model.IgnoreUser:
			if rule.TargetID == msg.AuthorID {
				return true
			}
		case model.IgnoreRole:
			for _, role := range msg.AuthorRoles {
				if rule.TargetID == role {
					return true
				}
			}
		}
	}
	return false
}
