// Package messaging publishes scan results to NATS JetStream.
package messaging

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// StreamManager is the slice of nats.JetStreamContext needed to provision a stream
type StreamManager interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// EnsureStream creates the stream capturing subjects, or updates it when it already exists
func EnsureStream(js StreamManager, name string, subjects []string, maxAge time.Duration, logger *zap.Logger) error {
	cfg := &nats.StreamConfig{
		Name:     name,
		Subjects: subjects,
		Storage:  nats.FileStorage,
		Replicas: 1,
		MaxAge:   maxAge,
		Discard:  nats.DiscardOld,
		// Publisher sets Nats-Msg-Id to the scan id
		Duplicates: 2 * time.Minute,
	}

	_, err := js.StreamInfo(name)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(cfg); err != nil {
			return fmt.Errorf("failed to update stream %s: %w", name, err)
		}
		logger.Info("updated stream", zap.String("stream", name))
		return nil
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, err := js.AddStream(cfg); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}
		logger.Info("created stream", zap.String("stream", name))
		return nil
	default:
		return fmt.Errorf("failed to look up stream %s: %w", name, err)
	}
}
