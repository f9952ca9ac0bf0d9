package dispatch

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"highlight_bot/internal/model"
)

const contentPreviewLimit = 300

// FormatNotification builds the DM body for a highlight notification: the
// matched keywords, the surrounding context window, and the triggering
// message marked within it.
func FormatNotification(msg model.Message, surrounding []model.Message, keywords []string) string {
	var b strings.Builder

	if len(keywords) == 1 {
		fmt.Fprintf(&b, "Keyword \"%s\" matched in a channel you follow.\n", keywords[0])
	} else {
		fmt.Fprintf(&b, "Keywords %s matched in a channel you follow.\n", quoteAll(keywords))
	}

	window := surrounding
	if !containsMessage(window, msg.ID) {
		window = append(window, msg)
	}
	for _, m := range window {
		marker := " "
		if m.ID == msg.ID {
			marker = ">"
		}
		fmt.Fprintf(&b, "\n%s %s <%d>: %s",
			marker, m.Timestamp.UTC().Format("15:04"), m.AuthorID, truncate(m.Content, contentPreviewLimit))
	}
	return b.String()
}

func quoteAll(keywords []string) string {
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = fmt.Sprintf("%q", kw)
	}
	return strings.Join(quoted, ", ")
}

func containsMessage(msgs []model.Message, id int64) bool {
	for _, m := range msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}

// truncate cuts s to at most n bytes, backing off to the nearest rune
// boundary so the preview is never invalid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
