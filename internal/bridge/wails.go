package bridge

import (
	"context"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// CommandEvent is the Wails event name the frontend listens on for commands
const CommandEvent = "map-command"

// EmitSender forwards commands to the webview through Wails runtime events
type EmitSender struct {
	ctx context.Context
}

// NewEmitSender creates a sender bound to the Wails application context
func NewEmitSender(ctx context.Context) *EmitSender {
	return &EmitSender{ctx: ctx}
}

// SendCommand implements Sender
func (s *EmitSender) SendCommand(cmd Command) {
	wailsRuntime.EventsEmit(s.ctx, CommandEvent, cmd)
}
