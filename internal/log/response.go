package log

import (
	"fmt"
	"strings"
	"time"

	"github.com/yanmxa/hezell/internal/message"
)

// Response describes how a turn ended.
type Response struct {
	Provider    string
	Engine      string
	Answer      string
	Reasoning   string
	Suggestions []string
	Grounding   *message.Grounding
	ImageBytes  int
	Duration    time.Duration
	Err         error
}

// LogResponse logs a turn response for the given turn number.
func LogResponse(turn int, resp Response) {
	writeDevResponse(resp, turn)

	if !enabled {
		return
	}

	status := "ok"
	if resp.Err != nil {
		status = "error"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<<< [%s] %s %s %s | duration=%s\n", GetTurnPrefix(turn), resp.Provider, resp.Engine, status, resp.Duration.Round(time.Millisecond))

	if resp.Reasoning != "" {
		fmt.Fprintf(&sb, "    Reasoning(%d chars)\n", len(resp.Reasoning))
	}
	if resp.Answer != "" {
		sb.WriteString("    Answer:\n")
		for _, line := range strings.Split(resp.Answer, "\n") {
			fmt.Fprintf(&sb, "        %s\n", line)
		}
	}
	if resp.ImageBytes > 0 {
		fmt.Fprintf(&sb, "    Image: %d bytes\n", resp.ImageBytes)
	}
	if len(resp.Suggestions) > 0 {
		fmt.Fprintf(&sb, "    Suggestions: [%s]\n", strings.Join(resp.Suggestions, " | "))
	}
	if resp.Grounding != nil {
		fmt.Fprintf(&sb, "    Sources(%d)\n", len(resp.Grounding.Sources))
	}
	if resp.Err != nil {
		fmt.Fprintf(&sb, "    Error: %v\n", resp.Err)
	}

	logger.Info(sb.String())
}

// LogError logs an error in human-readable format
func LogError(context string, err error) {
	if !enabled {
		return
	}
	logger.Error(fmt.Sprintf("!!! ERROR [%s] %v", context, err))
}
