package bot

import (
	"fmt"
	"strconv"
	"strings"

	"highlight_bot/internal/model"
)

// KeywordArgs holds the parsed arguments of an add or remove command.
type KeywordArgs struct {
	Global        bool
	CaseSensitive bool
	Pattern       string
}

// ParseKeywordArgs parses arguments for add/remove.
// Format: [-g] [-c] <keyword or phrase>
func ParseKeywordArgs(args string) (KeywordArgs, error) {
	parts := strings.Fields(args)

	var parsed KeywordArgs
	for len(parts) > 0 && strings.HasPrefix(parts[0], "-") {
		switch parts[0] {
		case "-g":
			parsed.Global = true
		case "-c":
			parsed.CaseSensitive = true
		default:
			return KeywordArgs{}, fmt.Errorf("unknown flag %q, use: -g (global), -c (case-sensitive)", parts[0])
		}
		parts = parts[1:]
	}

	if len(parts) == 0 {
		return KeywordArgs{}, fmt.Errorf("keyword is required")
	}

	parsed.Pattern = strings.Join(parts, " ")
	return parsed, nil
}

// ParseIgnoreArgs parses arguments for ignore.
// Format: channel|user|role <id>
func ParseIgnoreArgs(args string) (model.IgnoreKind, int64, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("usage: ignore channel|user|role <id>")
	}

	var kind model.IgnoreKind
	switch parts[0] {
	case "channel":
		kind = model.IgnoreChannel
	case "user":
		kind = model.IgnoreUser
	case "role":
		kind = model.IgnoreRole
	default:
		return "", 0, fmt.Errorf("invalid target kind %q, use: channel, user, role", parts[0])
	}

	target, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid target ID %q", parts[1])
	}
	return kind, target, nil
}

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("ID is required")
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}
