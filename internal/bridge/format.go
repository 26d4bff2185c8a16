package bridge

import (
	"fmt"

	"github.com/coopco/toolbridge/internal/tools"
)

func toolReply(t Trigger, res tools.Result) string {
	text := res.Text()
	if t.Preamble == "" {
		return text
	}
	return t.Preamble + "\n\n" + text
}

func degradedReply(tool string) string {
	return fmt.Sprintf("I tried to use the %s tool, but it could not complete right now. Please try again later.", tool)
}

func echoReply(content string) string {
	return "You said: " + content
}

const emptyReply = "I did not receive a message to respond to."
