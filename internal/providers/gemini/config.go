// Package gemini opens conversational audio sessions against the Gemini Live API.
package gemini

import (
	"fmt"
	"log/slog"
	"strings"

	"voiceagent/internal/domain"
)

const (
	DefaultAPIBaseURL = "https://generativelanguage.googleapis.com/"
	DefaultAPIVersion = "v1beta"
	DefaultModel      = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice      = "Fenrir"
)

// Config controls the Live API connection.
type Config struct {
	APIKey        string
	APIBaseURL    string
	APIVersion    string
	SendQueue     int
	SendStreamEnd bool
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if strings.TrimSpace(c.APIVersion) == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 32
	}
	return c
}

func (c Config) requireKey() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY is not configured", domain.ErrSessionOpen)
	}
	return nil
}

func (c Config) sessionOptions(logger *slog.Logger) sessionOptions {
	return sessionOptions{
		queueSize:     c.SendQueue,
		sendStreamEnd: c.SendStreamEnd,
		logger:        logger,
	}
}

// modelName returns the fully qualified model resource name.
func modelName(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if strings.HasPrefix(model, "models/") || strings.HasPrefix(model, "tunedModels/") {
		return model
	}
	return "models/" + model
}
