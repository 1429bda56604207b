package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/genai"

	"voiceagent/internal/domain"
	"voiceagent/internal/pcm"
	"voiceagent/internal/ports"
)

func TestConnectConfig(t *testing.T) {
	t.Parallel()

	cfg := connectConfig(ports.LiveConfig{
		Voice:               "Fenrir",
		SystemInstruction:   "You are a realtor.",
		InputTranscription:  true,
		OutputTranscription: true,
	})

	if len(cfg.ResponseModalities) != 1 || cfg.ResponseModalities[0] != genai.ModalityAudio {
		t.Fatalf("unexpected modalities: %v", cfg.ResponseModalities)
	}
	if cfg.SpeechConfig == nil || cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Fenrir" {
		t.Fatalf("voice not configured")
	}
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "You are a realtor." {
		t.Fatalf("system instruction not configured")
	}
	if cfg.InputAudioTranscription == nil || cfg.OutputAudioTranscription == nil {
		t.Fatalf("transcription not enabled")
	}

	bare := connectConfig(ports.LiveConfig{})
	if bare.SpeechConfig != nil || bare.SystemInstruction != nil || bare.InputAudioTranscription != nil {
		t.Fatalf("expected optional fields left unset: %+v", bare)
	}
}

func TestFromSDKMessage(t *testing.T) {
	t.Parallel()

	samples := pcm.FloatToInt16LE([]float32{0.25, -0.25})
	msg := &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			ModelTurn: &genai.Content{Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: "audio/pcm;rate=24000", Data: samples}},
				nil,
				{Text: "ignored"},
			}},
			InputTranscription:  &genai.Transcription{Text: "how much"},
			OutputTranscription: &genai.Transcription{Text: "Essentials is"},
			Interrupted:         true,
		},
		GoAway: &genai.LiveServerGoAway{TimeLeft: 3 * time.Second},
	}

	in := fromSDKMessage(msg)
	if in.setupComplete {
		t.Fatalf("unexpected setup complete")
	}
	if in.goAway == nil || *in.goAway != 3*time.Second {
		t.Fatalf("unexpected go away: %v", in.goAway)
	}
	if in.content.InputTranscript != "how much" || in.content.OutputTranscript != "Essentials is" || !in.content.Interrupted {
		t.Fatalf("unexpected content: %+v", in.content)
	}
	if len(in.content.Audio) != 1 {
		t.Fatalf("expected one audio payload, got %d", len(in.content.Audio))
	}

	buf, err := pcm.DecodeBuffer(in.content.Audio[0].Data, pcm.PlaybackSampleRate)
	if err != nil || buf.Frames() != 2 {
		t.Fatalf("payload did not survive translation: %v %+v", err, buf)
	}

	if open := fromSDKMessage(&genai.LiveServerMessage{SetupComplete: &genai.LiveServerSetupComplete{}}); !open.setupComplete || open.content != nil {
		t.Fatalf("unexpected setup translation: %+v", open)
	}
}

func TestSDKProviderRequiresAPIKey(t *testing.T) {
	t.Parallel()

	p := NewSDKProvider(Config{}, nil)
	if _, err := p.Open(context.Background(), ports.LiveConfig{}); !errors.Is(err, domain.ErrSessionOpen) {
		t.Fatalf("expected ErrSessionOpen, got %v", err)
	}
}

func TestModelName(t *testing.T) {
	t.Parallel()

	if got := modelName(""); got != "models/"+DefaultModel {
		t.Fatalf("unexpected default model: %s", got)
	}
	if got := modelName("models/x"); got != "models/x" {
		t.Fatalf("unexpected model: %s", got)
	}
}
