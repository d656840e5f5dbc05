package host

import (
	"fmt"
	"strings"
)

// FormatEnvelope renders the agent-visible text for one inbound message:
// a single header line identifying the sender, then the body, then a
// media pointer when an attachment was admitted.
func FormatEnvelope(msg InboundMessage) string {
	var b strings.Builder

	sender := msg.SenderName
	if sender == "" {
		sender = msg.SenderUsername
	}
	if sender == "" {
		sender = msg.SenderID
	}
	fmt.Fprintf(&b, "[%s %s] %s (id %s) at %s:\n", msg.Channel, msg.AccountID, sender, msg.SenderID, msg.Timestamp.UTC().Format("2006-01-02 15:04:05"))

	if text := strings.TrimSpace(msg.Text); text != "" {
		b.WriteString(text)
	}
	if msg.MediaPath != "" {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[attachment: %s (%s)]", msg.MediaPath, msg.MediaType)
	}
	return b.String()
}
