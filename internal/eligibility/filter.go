// Package eligibility decides whether a keyword match may notify its owner.
package eligibility

import (
	"context"
	"log/slog"

	"highlight_bot/internal/index"
	"highlight_bot/internal/model"
)

// Reason describes why a candidate match was dropped. An empty reason
// means the match is eligible.
type Reason string

// Drop reasons, in the order the checks run.
const (
	ReasonEligible   Reason = ""
	ReasonSelfAuthor Reason = "self_author"
	ReasonBlocked    Reason = "blocked"
	ReasonOptedOut   Reason = "opted_out"
	ReasonIgnored    Reason = "ignored"
	ReasonNotVisible Reason = "not_visible"
)

// Visibility is the transport permission query the filter depends on.
type Visibility interface {
	CanUserViewChannel(ctx context.Context, userID, channelID int64) (bool, error)
}

// Filter applies the layered ignore, block, opt-out, and visibility checks.
type Filter struct {
	vis Visibility
	log *slog.Logger
}

// New creates a Filter using the given visibility query.
func New(vis Visibility, log *slog.Logger) *Filter {
	return &Filter{vis: vis, log: log}
}

// Check reports whether ownerID may be notified about the message, given
// the snapshot the match was produced from. Checks run cheapest first and
// short-circuit on the first failure. A failed check is a non-match, not
// an error.
func (f *Filter) Check(ctx context.Context, ownerID int64, snap *index.Snapshot, msg model.Message) (bool, Reason) {
	if ownerID == msg.AuthorID {
		return false, ReasonSelfAuthor
	}
	if snap.BlockedEither(ownerID, msg.AuthorID) {
		return false, ReasonBlocked
	}
	if snap.OptedOut(ownerID) {
		return false, ReasonOptedOut
	}
	if snap.Ignored(ownerID, msg) {
		return false, ReasonIgnored
	}

	visible, err := f.vis.CanUserViewChannel(ctx, ownerID, msg.ChannelID)
	if err != nil {
		// Fail closed: an unanswerable permission query must not leak a
		// message from a channel the owner cannot see.
		f.log.Debug("visibility check failed",
			"owner_id", ownerID, "channel_id", msg.ChannelID, "error", err)
		return false, ReasonNotVisible
	}
	if !visible {
		return false, ReasonNotVisible
	}
	return true, ReasonEligible
}
