package render

import (
	"fmt"
	"strings"

	"github.com/futig/admissions-assistant/internal/entity"
)

const (
	MsgHelp = `🤖 Commands:

/start - Start a new conversation
/reset - Clear the conversation and any unfinished application
/application - Show your application
/transcript - Download the conversation as a file
/help - Show this help

Ask me anything about admissions, programs or campus life. When you are ready to apply, just tell me.`

	MsgReset           = `🔄 Conversation cleared. Ask me anything.`
	MsgNoApplication   = `📋 You have not started an application yet. Tell me when you want to apply.`
	MsgTextOnly        = `✏️ I can only read text messages for now.`
	MsgUnknownCommand  = `❌ Unknown command. Use /help`
	MsgRateLimited     = `⚠️ Too many messages. Please wait a little.`
	MsgRateLimitedHard = `🛑 You are sending messages too often. Please wait a minute.`

	// Errors
	ErrGeneric            = `❌ Something went wrong. Please try again or use /start`
	ErrSessionNotFound    = `❌ Conversation not found. Start a new one with /start`
	ErrInvalidInput       = `❌ I could not accept that message. Please rephrase it.`
	ErrServiceUnavailable = `❌ The assistant is temporarily unavailable. Please try again in a moment.`
	ErrTimeout            = `❌ That took too long. Please try again.`
	ErrTurnCancelled      = `❌ The conversation was closed while I was answering. Use /start`
)

var fieldLabels = map[entity.ApplicationField]string{
	entity.FieldName:    "Name",
	entity.FieldEmail:   "Email",
	entity.FieldPhone:   "Phone",
	entity.FieldProgram: "Program",
}

// RenderApplication formats an application summary, listing the fields in order.
func RenderApplication(app *entity.Application, fields []entity.ApplicationField) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Application (%s)\n\n", app.Status)
	for _, f := range fields {
		value := app.Fields[f]
		if value == "" {
			value = "not provided"
		}
		fmt.Fprintf(&b, "%s: %s\n", fieldLabel(f), value)
	}
	if app.ReviewStatus != nil {
		fmt.Fprintf(&b, "\nReview status: %s", *app.ReviewStatus)
	}
	return strings.TrimRight(b.String(), "\n")
}

func fieldLabel(f entity.ApplicationField) string {
	if label, ok := fieldLabels[f]; ok {
		return label
	}
	return string(f)
}
