// Package bot implements the user command surface for managing keywords,
// ignore rules, blocks, and opt-outs.
package bot

import (
	"context"
	"log/slog"
	"strings"

	"highlight_bot/internal/index"
	"highlight_bot/internal/model"
	"highlight_bot/internal/storage"
)

// Transport is the outbound call the command surface needs for replies.
type Transport interface {
	SendChannelMessage(ctx context.Context, channelID int64, content string) error
}

// MessageHandler consumes non-command messages.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg model.Message)
}

// Bot routes inbound messages: command-prefixed messages are handled here,
// everything else is forwarded to the matching engine. Command mutations
// write to storage first and then apply the same delta to the index.
type Bot struct {
	store       storage.Storage
	idx         *index.Index
	transport   Transport
	engine      MessageHandler
	prefix      string
	maxKeywords int
	log         *slog.Logger
}

// New creates a Bot with the given command prefix and keyword cap.
func New(store storage.Storage, idx *index.Index, transport Transport, engine MessageHandler, prefix string, maxKeywords int, log *slog.Logger) *Bot {
	return &Bot{
		store:       store,
		idx:         idx,
		transport:   transport,
		engine:      engine,
		prefix:      prefix,
		maxKeywords: maxKeywords,
		log:         log,
	}
}

// HandleMessage implements the gateway handler: commands are processed
// synchronously, all other messages go to the engine.
func (b *Bot) HandleMessage(ctx context.Context, msg model.Message) {
	text := strings.TrimSpace(msg.Content)
	if text == b.prefix || strings.HasPrefix(text, b.prefix+" ") {
		b.handleCommand(ctx, msg, strings.TrimSpace(strings.TrimPrefix(text, b.prefix)))
		return
	}
	b.engine.HandleMessage(ctx, msg)
}

func (b *Bot) reply(ctx context.Context, channelID int64, text string) {
	if err := b.transport.SendChannelMessage(ctx, channelID, text); err != nil {
		b.log.Error("send reply", "channel_id", channelID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg model.Message, line string) {
	cmd := line
	args := ""
	if i := strings.IndexByte(line, ' '); i >= 0 {
		cmd, args = line[:i], strings.TrimSpace(line[i+1:])
	}

	b.log.Debug("command", "cmd", cmd, "args", args, "user_id", msg.AuthorID, "guild_id", msg.GuildID)

	switch cmd {
	case "", "help":
		b.handleHelp(ctx, msg.ChannelID)
	case "add":
		b.handleAdd(ctx, msg, args)
	case "remove":
		b.handleRemove(ctx, msg, args)
	case "list":
		b.handleList(ctx, msg)
	case "ignore":
		b.handleIgnore(ctx, msg, args)
	case "unignore":
		b.handleUnignore(ctx, msg, args)
	case "ignores":
		b.handleIgnores(ctx, msg)
	case "block":
		b.handleBlock(ctx, msg, args)
	case "unblock":
		b.handleUnblock(ctx, msg, args)
	case "blocks":
		b.handleBlocks(ctx, msg)
	case "optout":
		b.handleOptOut(ctx, msg)
	case "optin":
		b.handleOptIn(ctx, msg)
	default:
		b.reply(ctx, msg.ChannelID, "Unknown command. Use "+b.prefix+" help for a list of commands.")
	}
}
