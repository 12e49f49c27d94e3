package ai

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

const (
	baseSystemPrompt = "You are an AI assistant."
	documentHeader   = "\nRelevant document information:\n"
	webHeader        = "\nWeb research information:\n"
)

// BuildSystemPrompt frames a chat turn. The document block, when present,
// always precedes the web block.
func BuildSystemPrompt(docSummary, webContext string) string {
	var builder strings.Builder
	builder.WriteString(baseSystemPrompt)
	if docSummary != "" {
		builder.WriteString(documentHeader)
		builder.WriteString(docSummary)
	}
	if webContext != "" {
		builder.WriteString(webHeader)
		builder.WriteString(webContext)
	}
	return builder.String()
}

// BuildMessages assembles the sequence sent to the chat model: the framing
// message, the stored history in order, then the new question.
//
// historyLimit <= 0 replays the whole history. A positive limit keeps only
// the newest messages, but leading system messages (the persona seed) are
// always kept.
func BuildMessages(system string, history []*schema.Message, question string, historyLimit int) []*schema.Message {
	history = windowHistory(history, historyLimit)

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(system))
	messages = append(messages, history...)
	messages = append(messages, schema.UserMessage(question))
	return messages
}

func windowHistory(history []*schema.Message, limit int) []*schema.Message {
	if limit <= 0 || len(history) <= limit {
		return history
	}

	seeds := 0
	for seeds < len(history) && history[seeds].Role == schema.System {
		seeds++
	}

	rest := history[seeds:]
	if len(rest) <= limit {
		return history
	}

	out := make([]*schema.Message, 0, seeds+limit)
	out = append(out, history[:seeds]...)
	out = append(out, rest[len(rest)-limit:]...)
	return out
}
