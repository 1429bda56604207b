package usecase

import (
	"time"

	"voiceagent/internal/domain"
)

type nopTelemetry struct{}

func (nopTelemetry) ConnectionState(domain.ConnectionState) {}
func (nopTelemetry) ConnectAttempt(string)                  {}
func (nopTelemetry) ChunkSent()                             {}
func (nopTelemetry) ChunkDropped(string)                    {}
func (nopTelemetry) ChunkScheduled(time.Duration)           {}
func (nopTelemetry) PayloadRejected()                       {}
func (nopTelemetry) Interrupted()                           {}
func (nopTelemetry) TurnCommitted(int)                      {}
