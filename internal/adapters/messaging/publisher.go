package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/andrescamacho/marketscan-go/internal/application/scanning"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/domain/trading"
)

// JetStreamPublisher is the slice of nats.JetStreamContext the sink publishes through
type JetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// ScanEvent is the JSON payload published for every scan result
type ScanEvent struct {
	ScanID        string                      `json:"scan_id"`
	Game          string                      `json:"game"`
	Level         string                      `json:"level"`
	Outcome       string                      `json:"outcome"`
	Degraded      bool                        `json:"degraded,omitempty"`
	Error         string                      `json:"error,omitempty"`
	StartedAt     time.Time                   `json:"started_at"`
	DurationMs    int64                       `json:"duration_ms"`
	Stats         scanning.ScanStats          `json:"stats"`
	Opportunities []trading.OpportunityRecord `json:"opportunities"`
}

// NewScanEvent flattens a result into its wire form
func NewScanEvent(res scanning.ScanResult) ScanEvent {
	ev := ScanEvent{
		ScanID:        res.ScanID,
		Game:          string(res.Request.Game),
		Level:         string(res.Request.Level),
		Outcome:       res.Outcome(),
		Degraded:      res.Degraded,
		StartedAt:     res.StartedAt,
		DurationMs:    res.Duration.Milliseconds(),
		Stats:         res.Stats,
		Opportunities: make([]trading.OpportunityRecord, len(res.Opportunities)),
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	for i, opp := range res.Opportunities {
		ev.Opportunities[i] = opp.Record()
	}
	return ev
}

// Subject returns <prefix>.<game>.<level>
func Subject(prefix string, game market.Game, level market.Level) string {
	return strings.Join([]string{prefix, string(game), string(level)}, ".")
}

// NATSSink publishes scan results to JetStream. Implements scanning.OpportunitySink.
type NATSSink struct {
	js            JetStreamPublisher
	subjectPrefix string
	logger        *zap.Logger
}

// NewNATSSink creates a sink publishing under subjectPrefix
func NewNATSSink(js JetStreamPublisher, subjectPrefix string, logger *zap.Logger) *NATSSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSSink{js: js, subjectPrefix: subjectPrefix, logger: logger}
}

func (s *NATSSink) Name() string { return "nats" }

// Subjects returns the wildcard covering everything this sink publishes
func (s *NATSSink) Subjects() []string {
	return []string{s.subjectPrefix + ".>"}
}

// Publish sends one result. The scan id doubles as the JetStream message id, so a
// retried publish of the same result is dropped by the server's duplicate window.
func (s *NATSSink) Publish(ctx context.Context, res scanning.ScanResult) error {
	data, err := json.Marshal(NewScanEvent(res))
	if err != nil {
		return fmt.Errorf("failed to encode scan event: %w", err)
	}

	subject := Subject(s.subjectPrefix, res.Request.Game, res.Request.Level)
	ack, err := s.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(res.ScanID))
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	if ack != nil && ack.Duplicate {
		s.logger.Debug("duplicate scan event dropped by stream", zap.String("scan_id", res.ScanID))
	}
	return nil
}
