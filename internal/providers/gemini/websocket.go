package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"voiceagent/internal/domain"
	"voiceagent/internal/pcm"
	"voiceagent/internal/ports"
)

// WebsocketProvider implements ports.LiveProvider by speaking the BidiGenerateContent wire
// protocol directly over gorilla/websocket.
type WebsocketProvider struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *slog.Logger
}

func NewWebsocketProvider(cfg Config, logger *slog.Logger) *WebsocketProvider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &WebsocketProvider{
		cfg:    cfg.withDefaults(),
		dialer: websocket.DefaultDialer,
		logger: logger.With("transport", "websocket"),
	}
}

func (p *WebsocketProvider) Open(ctx context.Context, cfg ports.LiveConfig) (ports.LiveSession, error) {
	if err := p.cfg.requireKey(); err != nil {
		return nil, err
	}

	wsURL, err := buildLiveURL(p.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSessionOpen, err)
	}

	headers := http.Header{}
	headers.Set("x-goog-api-key", p.cfg.APIKey)

	conn, _, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to Live API websocket: %v", domain.ErrSessionOpen, err)
	}

	t := &wsTransport{conn: conn, logger: p.logger}
	if err := t.write(clientMessage{Setup: buildSetup(cfg)}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: failed to send setup: %v", domain.ErrSessionOpen, err)
	}

	return newLiveSession(ctx, t, p.cfg.sessionOptions(p.logger)), nil
}

type wsTransport struct {
	conn   *websocket.Conn
	logger *slog.Logger
}

func (t *wsTransport) Receive() (inbound, error) {
	for {
		_, payload, err := t.conn.ReadMessage()
		if err != nil {
			return inbound{}, fmt.Errorf("failed to read server message: %w", err)
		}

		var msg serverMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.logger.Debug("ignoring malformed server message", "err", err, "bytes", len(payload))
			continue
		}
		if msg.Error != nil {
			message := strings.TrimSpace(msg.Error.Message)
			if message == "" {
				message = "live api returned an unknown error"
			}
			return inbound{}, errors.New(message)
		}
		return msg.toInbound(), nil
	}
}

func (t *wsTransport) SendAudio(chunk pcm.Blob) error {
	return t.write(clientMessage{RealtimeInput: &realtimeInput{Audio: &chunk}})
}

func (t *wsTransport) SendAudioStreamEnd() error {
	return t.write(clientMessage{RealtimeInput: &realtimeInput{AudioStreamEnd: true}})
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

func (t *wsTransport) write(msg clientMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

func buildLiveURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = DefaultAPIBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	liveURL, err := url.Parse(base + "/ws/google.ai.generativelanguage." + version + ".GenerativeService.BidiGenerateContent")
	if err != nil {
		return "", fmt.Errorf("invalid Live API base URL: %w", err)
	}
	if liveURL.Scheme != "ws" && liveURL.Scheme != "wss" {
		return "", fmt.Errorf("invalid Live API base URL scheme %q", liveURL.Scheme)
	}
	return liveURL.String(), nil
}
