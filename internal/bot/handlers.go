package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"highlight_bot/internal/model"
)

func (b *Bot) handleHelp(ctx context.Context, channelID int64) {
	b.reply(ctx, channelID, fmt.Sprintf(`Keyword management:
%[1]s add [-g] [-c] <keyword> — subscribe to a keyword or phrase
  -g: match in every server you share with the bot
  -c: case-sensitive matching
%[1]s remove [-g] <keyword> — delete a keyword
%[1]s list — show your keywords

Notification control:
%[1]s ignore channel|user|role <id> — never notify you for that target
%[1]s unignore <rule_id> — remove one of your ignore rules
%[1]s ignores — show ignore rules affecting you here
%[1]s block <user_id> — never be notified about that user's messages
%[1]s unblock <user_id>
%[1]s blocks — show your blocks
%[1]s optout — disable highlighting in this server
%[1]s optin — re-enable highlighting in this server`, b.prefix))
}

func (b *Bot) handleAdd(ctx context.Context, msg model.Message, args string) {
	parsed, err := ParseKeywordArgs(args)
	if err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Usage: %s add [-g] [-c] <keyword>", b.prefix))
		return
	}

	count, err := b.store.CountKeywords(ctx, msg.AuthorID)
	if err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}
	if count >= b.maxKeywords {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("You already have %d keywords, the maximum.", b.maxKeywords))
		return
	}

	guildID := msg.GuildID
	if parsed.Global {
		guildID = 0
	}

	if existing, err := b.store.FindKeyword(ctx, msg.AuthorID, guildID, parsed.Pattern); err == nil && existing != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("You already highlight %q %s.", existing.Pattern, scopeLabel(guildID)))
		return
	}

	kw := &model.Keyword{
		UserID:        msg.AuthorID,
		GuildID:       guildID,
		Pattern:       parsed.Pattern,
		CaseSensitive: parsed.CaseSensitive,
	}
	if err := b.store.CreateKeyword(ctx, kw); err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Failed to save keyword: %v", err))
		return
	}
	if err := b.idx.Insert(*kw); err != nil {
		// Storage accepted the row but the pattern failed to compile; keep
		// storage and index consistent by removing it again.
		_ = b.store.DeleteKeyword(ctx, kw.ID)
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Invalid keyword: %v", err))
		return
	}

	b.reply(ctx, msg.ChannelID, fmt.Sprintf("Now highlighting %q %s.", kw.Pattern, scopeLabel(guildID)))
}

func (b *Bot) handleRemove(ctx context.Context, msg model.Message, args string) {
	parsed, err := ParseKeywordArgs(args)
	if err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Usage: %s remove [-g] <keyword>", b.prefix))
		return
	}

	guildID := msg.GuildID
	if parsed.Global {
		guildID = 0
	}

	kw, err := b.store.FindKeyword(ctx, msg.AuthorID, guildID, parsed.Pattern)
	if errors.Is(err, sql.ErrNoRows) {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("You don't highlight %q %s.", parsed.Pattern, scopeLabel(guildID)))
		return
	}
	if err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}

	if err := b.store.DeleteKeyword(ctx, kw.ID); err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.idx.Remove(kw.ID, kw.GuildID)

	b.reply(ctx, msg.ChannelID, fmt.Sprintf("No longer highlighting %q %s.", kw.Pattern, scopeLabel(guildID)))
}

func (b *Bot) handleList(ctx context.Context, msg model.Message) {
	keywords, err := b.store.ListKeywords(ctx, msg.AuthorID)
	if err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(ctx, msg.ChannelID, FormatKeywordList(keywords, b.prefix))
}

func (b *Bot) handleIgnore(ctx context.Context, msg model.Message, args string) {
	kind, target, err := ParseIgnoreArgs(args)
	if err != nil {
		b.reply(ctx, msg.ChannelID, err.Error())
		return
	}

	rule := &model.IgnoreRule{
		GuildID:  msg.GuildID,
		UserID:   msg.AuthorID,
		Kind:     kind,
		TargetID: target,
	}
	if err := b.store.CreateIgnoreRule(ctx, rule); err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}
	if err := b.refreshIgnores(ctx, msg.GuildID); err != nil {
		b.log.Error("refresh ignore rules", "guild_id", msg.GuildID, "error", err)
	}

	b.reply(ctx, msg.ChannelID, fmt.Sprintf("Ignore rule I%d added: %s %d.", rule.ID, kind, target))
}

func (b *Bot) handleUnignore(ctx context.Context, msg model.Message, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Usage: %s unignore <rule_id>", b.prefix))
		return
	}

	rule, err := b.store.GetIgnoreRule(ctx, id)
	if err != nil || rule.UserID != msg.AuthorID || rule.GuildID != msg.GuildID {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Ignore rule I%d not found.", id))
		return
	}

	if err := b.store.DeleteIgnoreRule(ctx, id); err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}
	if err := b.refreshIgnores(ctx, msg.GuildID); err != nil {
		b.log.Error("refresh ignore rules", "guild_id", msg.GuildID, "error", err)
	}

	b.reply(ctx, msg.ChannelID, fmt.Sprintf("Ignore rule I%d removed.", id))
}

func (b *Bot) handleIgnores(ctx context.Context, msg model.Message) {
	rules, err := b.store.ListIgnoreRules(ctx, msg.GuildID)
	if err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}

	var visible []model.IgnoreRule
	for _, r := range rules {
		if r.UserID == 0 || r.UserID == msg.AuthorID {
			visible = append(visible, r)
		}
	}
	b.reply(ctx, msg.ChannelID, FormatIgnoreList(visible))
}

func (b *Bot) handleBlock(ctx context.Context, msg model.Message, args string) {
	target, err := ParseIDArg(args)
	if err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Usage: %s block <user_id>", b.prefix))
		return
	}
	if target == msg.AuthorID {
		b.reply(ctx, msg.ChannelID, "You can't block yourself.")
		return
	}

	if err := b.store.CreateBlock(ctx, msg.AuthorID, target); err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.idx.SetBlock(msg.AuthorID, target, true)

	b.reply(ctx, msg.ChannelID, fmt.Sprintf("Blocked user %d. You won't be notified about their messages.", target))
}

func (b *Bot) handleUnblock(ctx context.Context, msg model.Message, args string) {
	target, err := ParseIDArg(args)
	if err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Usage: %s unblock <user_id>", b.prefix))
		return
	}

	if err := b.store.DeleteBlock(ctx, msg.AuthorID, target); err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.idx.SetBlock(msg.AuthorID, target, false)

	b.reply(ctx, msg.ChannelID, fmt.Sprintf("Unblocked user %d.", target))
}

func (b *Bot) handleBlocks(ctx context.Context, msg model.Message) {
	blocks, err := b.store.ListBlocks(ctx, msg.AuthorID)
	if err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(ctx, msg.ChannelID, FormatBlockList(blocks))
}

func (b *Bot) handleOptOut(ctx context.Context, msg model.Message) {
	if err := b.store.SetOptOut(ctx, msg.AuthorID, msg.GuildID); err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.idx.SetOptOut(msg.AuthorID, msg.GuildID, true)
	b.reply(ctx, msg.ChannelID, "Highlighting disabled in this server. Your keywords are kept; use optin to re-enable.")
}

func (b *Bot) handleOptIn(ctx context.Context, msg model.Message) {
	if err := b.store.ClearOptOut(ctx, msg.AuthorID, msg.GuildID); err != nil {
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.idx.SetOptOut(msg.AuthorID, msg.GuildID, false)
	b.reply(ctx, msg.ChannelID, "Highlighting re-enabled in this server.")
}

func (b *Bot) refreshIgnores(ctx context.Context, guildID int64) error {
	rules, err := b.store.ListIgnoreRules(ctx, guildID)
	if err != nil {
		return err
	}
	b.idx.SetIgnores(guildID, rules)
	return nil
}

func scopeLabel(guildID int64) string {
	if guildID == 0 {
		return "everywhere"
	}
	return "in this server"
}
