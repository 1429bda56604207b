package gemini

import (
	"strings"
	"time"

	"voiceagent/internal/domain"
	"voiceagent/internal/pcm"
	"voiceagent/internal/ports"
)

// BidiGenerateContent client messages.

type clientMessage struct {
	Setup         *setupMessage  `json:"setup,omitempty"`
	RealtimeInput *realtimeInput `json:"realtimeInput,omitempty"`
}

type setupMessage struct {
	Model                    string            `json:"model"`
	GenerationConfig         *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction        *wireContent      `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}         `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}         `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text       string    `json:"text,omitempty"`
	InlineData *pcm.Blob `json:"inlineData,omitempty"`
}

type realtimeInput struct {
	Audio          *pcm.Blob `json:"audio,omitempty"`
	AudioStreamEnd bool      `json:"audioStreamEnd,omitempty"`
}

// BidiGenerateContent server messages.

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	GoAway        *goAway        `json:"goAway,omitempty"`
	Error         *serverError   `json:"error,omitempty"`
}

type serverContent struct {
	ModelTurn           *wireContent   `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type transcription struct {
	Text     string `json:"text,omitempty"`
	Finished bool   `json:"finished,omitempty"`
}

type goAway struct {
	// Protobuf duration, e.g. "12.5s".
	TimeLeft string `json:"timeLeft,omitempty"`
}

type serverError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func buildSetup(cfg ports.LiveConfig) *setupMessage {
	modality := strings.ToUpper(strings.TrimSpace(cfg.ResponseModality))
	if modality == "" {
		modality = "AUDIO"
	}

	setup := &setupMessage{
		Model:            modelName(cfg.Model),
		GenerationConfig: &generationConfig{ResponseModalities: []string{modality}},
	}
	if cfg.Voice != "" {
		sc := &speechConfig{}
		sc.VoiceConfig.PrebuiltVoiceConfig.VoiceName = cfg.Voice
		setup.GenerationConfig.SpeechConfig = sc
	}
	if cfg.SystemInstruction != "" {
		setup.SystemInstruction = &wireContent{
			Role:  "user",
			Parts: []wirePart{{Text: cfg.SystemInstruction}},
		}
	}
	if cfg.InputTranscription {
		setup.InputAudioTranscription = &struct{}{}
	}
	if cfg.OutputTranscription {
		setup.OutputAudioTranscription = &struct{}{}
	}
	return setup
}

func (m serverMessage) toInbound() inbound {
	out := inbound{setupComplete: m.SetupComplete != nil}
	if m.GoAway != nil {
		if left, err := time.ParseDuration(m.GoAway.TimeLeft); err == nil {
			out.goAway = &left
		} else {
			var zero time.Duration
			out.goAway = &zero
		}
	}

	content := m.ServerContent
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
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			converted.Audio = append(converted.Audio, domain.AudioPayload{
				MIMEType: part.InlineData.MIMEType,
				Data:     part.InlineData.Data,
			})
		}
	}
	out.content = converted
	return out
}
