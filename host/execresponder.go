package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/quailyquaily/telegate/dispatch"
)

const defaultResponderTimeout = 120 * time.Second

// ExecResponder bridges to an external agent process: the inbound
// message is written to the process's stdin as JSON with the formatted
// envelope attached, and reply payloads are read from stdout. A stdout
// that is not a JSON payload array is treated as one plain-text reply.
type ExecResponder struct {
	Command []string
	Timeout time.Duration
	Logger  *slog.Logger
}

type execInput struct {
	InboundMessage
	Envelope string `json:"envelope"`
}

func (r *ExecResponder) Respond(ctx context.Context, msg InboundMessage) ([]dispatch.Payload, error) {
	if len(r.Command) == 0 {
		return nil, fmt.Errorf("host: no agent command configured")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultResponderTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	input, err := json.Marshal(execInput{InboundMessage: msg, Envelope: FormatEnvelope(msg)})
	if err != nil {
		return nil, fmt.Errorf("host: encode agent input: %w", err)
	}

	cmd := exec.CommandContext(runCtx, r.Command[0], r.Command[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errMsg := strings.TrimSpace(stderr.String()); errMsg != "" {
			return nil, fmt.Errorf("host: agent command failed: %w: %s", err, errMsg)
		}
		return nil, fmt.Errorf("host: agent command failed: %w", err)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return nil, nil
	}

	var payloads []dispatch.Payload
	if err := json.Unmarshal([]byte(out), &payloads); err == nil {
		return payloads, nil
	}
	var single dispatch.Payload
	if err := json.Unmarshal([]byte(out), &single); err == nil && (single.Text != "" || single.MediaURL != "" || len(single.MediaURLs) > 0) {
		return []dispatch.Payload{single}, nil
	}

	if r.Logger != nil {
		r.Logger.Debug("responder_plain_output", "bytes", len(out))
	}
	return []dispatch.Payload{{Text: out}}, nil
}
