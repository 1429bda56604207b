package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"voiceagent/internal/domain"
	"voiceagent/internal/pcm"
	"voiceagent/internal/ports"
)

// SDKProvider implements ports.LiveProvider with the google.golang.org/genai client.
type SDKProvider struct {
	cfg    Config
	logger *slog.Logger
}

func NewSDKProvider(cfg Config, logger *slog.Logger) *SDKProvider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SDKProvider{cfg: cfg.withDefaults(), logger: logger.With("transport", "sdk")}
}

func (p *SDKProvider) Open(ctx context.Context, cfg ports.LiveConfig) (ports.LiveSession, error) {
	if err := p.cfg.requireKey(); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    p.cfg.APIBaseURL,
			APIVersion: p.cfg.APIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create client: %v", domain.ErrSessionOpen, err)
	}

	session, err := client.Live.Connect(ctx, modelName(cfg.Model), connectConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSessionOpen, err)
	}

	return newLiveSession(ctx, &sdkTransport{session: session}, p.cfg.sessionOptions(p.logger)), nil
}

func connectConfig(cfg ports.LiveConfig) *genai.LiveConnectConfig {
	modality := genai.ModalityAudio
	if m := strings.TrimSpace(cfg.ResponseModality); m != "" {
		modality = genai.Modality(strings.ToUpper(m))
	}

	out := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{modality},
	}
	if cfg.Voice != "" {
		out.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}
	if cfg.SystemInstruction != "" {
		out.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}
	if cfg.InputTranscription {
		out.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.OutputTranscription {
		out.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	return out
}

type sdkTransport struct {
	session *genai.Session
}

func (t *sdkTransport) Receive() (inbound, error) {
	msg, err := t.session.Receive()
	if err != nil {
		return inbound{}, err
	}
	return fromSDKMessage(msg), nil
}

func (t *sdkTransport) SendAudio(chunk pcm.Blob) error {
	data, err := pcm.Decode(chunk.Data)
	if err != nil {
		return err
	}
	return t.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{MIMEType: chunk.MIMEType, Data: data},
	})
}

func (t *sdkTransport) SendAudioStreamEnd() error {
	return t.session.SendRealtimeInput(genai.LiveRealtimeInput{AudioStreamEnd: true})
}

func (t *sdkTransport) Close() error {
	return t.session.Close()
}

func fromSDKMessage(msg *genai.LiveServerMessage) inbound {
	var out inbound
	if msg == nil {
		return out
	}
	out.setupComplete = msg.SetupComplete != nil
	if msg.GoAway != nil {
		left := msg.GoAway.TimeLeft
		out.goAway = &left
	}

	content := msg.ServerContent
	if content == nil {
		return out
	}

	converted := &domain.ServerMessage{
		TurnComplete: content.TurnComplete,
		Interrupted:  content.Interrupted,
	}
	if content.InputTranscription != nil {
		converted.InputTranscript = content.InputTranscription.Text
	}
	if content.OutputTranscription != nil {
		converted.OutputTranscript = content.OutputTranscription.Text
	}
	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			converted.Audio = append(converted.Audio, domain.AudioPayload{
				MIMEType: part.InlineData.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(part.InlineData.Data),
			})
		}
	}
	out.content = converted
	return out
}
