package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"voiceagent/internal/audio"
	"voiceagent/internal/domain"
	"voiceagent/internal/persona"
	"voiceagent/internal/usecase"
)

type Formatter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) printf(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.w, format, args...)
}

func (f *Formatter) Error(msg string) {
	f.printf("❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	f.printf("ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	f.printf("✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	f.printf("⚠️  %s\n", msg)
}

func (f *Formatter) CallControls() {
	f.printf("🎙️  Type m + Enter to toggle mute, q + Enter to hang up\n")
}

func (f *Formatter) State(state domain.ConnectionState, reason domain.StateReason) {
	icon := "📞"
	switch state {
	case domain.StateConnected:
		icon = "🟢"
	case domain.StateError:
		icon = "🔴"
	case domain.StateDisconnected:
		icon = "⏹️ "
	}
	f.printf("%s %s\n", icon, usecase.StatusMessage(state, reason))
}

func (f *Formatter) Speaking(speaking bool) {
	if speaking {
		f.printf("🔊 Agent speaking\n")
		return
	}
	f.printf("👂 Listening\n")
}

func (f *Formatter) Mute(muted bool) {
	if muted {
		f.printf("🔇 Microphone muted\n")
		return
	}
	f.printf("🎙️  Microphone live\n")
}

func (f *Formatter) TranscriptEntry(entry domain.LogEntry) {
	label := "You"
	if entry.Role == domain.RoleAgent {
		label = "Agent"
	}
	f.printf("[%s] %s: %s\n", entry.Timestamp.Format("15:04:05"), label, strings.TrimSpace(entry.Text))
}

func (f *Formatter) SessionError(code domain.ErrorCode) {
	f.printf("❌ %s (%s)\n", code.UserMessage(), code)
}

func (f *Formatter) DeviceListHeader() {
	f.printf("🎤 Capture devices:\n\n")
}

func (f *Formatter) DeviceListItem(device audio.Device) {
	marker := ""
	if device.IsDefault {
		marker = " (default)"
	}
	f.printf("  %s%s\n", device.Name, marker)
}

func (f *Formatter) Persona(p persona.Persona, instruction string) {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 %s\n", p.Name)
	if p.Voice != "" {
		fmt.Fprintf(&b, "   voice: %s\n", p.Voice)
	}
	b.WriteString("\n📦 Packages:\n")
	for _, pkg := range p.Packages {
		fmt.Fprintf(&b, "  %s, %s\n", pkg.Name, pkg.Price)
		for _, feature := range pkg.Features {
			fmt.Fprintf(&b, "    - %s\n", feature)
		}
	}
	fmt.Fprintf(&b, "\n📝 System instruction:\n%s\n", instruction)
	f.printf("%s", b.String())
}
