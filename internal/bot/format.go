package bot

import (
	"fmt"
	"strings"

	"highlight_bot/internal/model"
)

// FormatKeywordList formats a user's keywords grouped by scope.
func FormatKeywordList(keywords []model.Keyword, prefix string) string {
	if len(keywords) == 0 {
		return fmt.Sprintf("You have no keywords yet. Use %s add <keyword> to add one.", prefix)
	}

	var global, scoped []model.Keyword
	for _, kw := range keywords {
		if kw.Global() {
			global = append(global, kw)
		} else {
			scoped = append(scoped, kw)
		}
	}

	var b strings.Builder
	b.WriteString("Your keywords:\n")
	if len(global) > 0 {
		b.WriteString("\nGlobal:\n")
		for _, kw := range global {
			fmt.Fprintf(&b, "  %s\n", formatKeyword(kw))
		}
	}
	if len(scoped) > 0 {
		b.WriteString("\nPer-server:\n")
		for _, kw := range scoped {
			fmt.Fprintf(&b, "  %s (server %d)\n", formatKeyword(kw), kw.GuildID)
		}
	}
	return b.String()
}

func formatKeyword(kw model.Keyword) string {
	if kw.CaseSensitive {
		return fmt.Sprintf("%q [case-sensitive]", kw.Pattern)
	}
	return fmt.Sprintf("%q", kw.Pattern)
}

// FormatIgnoreList formats the ignore rules affecting one user.
func FormatIgnoreList(rules []model.IgnoreRule) string {
	if len(rules) == 0 {
		return "No ignore rules affect you in this server."
	}

	var b strings.Builder
	b.WriteString("Ignore rules affecting you here:\n")
	for _, r := range rules {
		owner := "yours"
		if r.UserID == 0 {
			owner = "server-wide"
		}
		fmt.Fprintf(&b, "  I%d: %s %d (%s)\n", r.ID, r.Kind, r.TargetID, owner)
	}
	return b.String()
}

// FormatBlockList formats a user's blocks.
func FormatBlockList(blocks []model.Block) string {
	if len(blocks) == 0 {
		return "You haven't blocked anyone."
	}

	var b strings.Builder
	b.WriteString("Your blocks:\n")
	for _, bl := range blocks {
		fmt.Fprintf(&b, "  user %d\n", bl.BlockedID)
	}
	return b.String()
}
