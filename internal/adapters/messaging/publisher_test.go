package messaging_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andrescamacho/marketscan-go/internal/adapters/messaging"
	"github.com/andrescamacho/marketscan-go/internal/application/scanning"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/domain/trading"
)

type published struct {
	subject string
	data    []byte
}

type fakeJetStream struct {
	msgs []published
	err  error

	streams map[string]*nats.StreamConfig
	added   int
	updated int
}

func (f *fakeJetStream) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, published{subject: subj, data: data})
	return &nats.PubAck{Stream: "MARKETSCAN", Sequence: uint64(len(f.msgs))}, nil
}

func (f *fakeJetStream) StreamInfo(name string, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	cfg, ok := f.streams[name]
	if !ok {
		return nil, nats.ErrStreamNotFound
	}
	return &nats.StreamInfo{Config: *cfg}, nil
}

func (f *fakeJetStream) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.added++
	f.streams[cfg.Name] = cfg
	return &nats.StreamInfo{Config: *cfg}, nil
}

func (f *fakeJetStream) UpdateStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.updated++
	f.streams[cfg.Name] = cfg
	return &nats.StreamInfo{Config: *cfg}, nil
}

func result(t *testing.T) scanning.ScanResult {
	t.Helper()
	item, err := market.NewItem("i-1", "Karambit | Fade", "a8db", 1000, nil, 3)
	require.NoError(t, err)
	opp, err := trading.NewArbitrageOpportunity(trading.NewQuote(item, 1500, "redis"), trading.MustFeeSchedule(0.07, 0), time.Unix(0, 0).UTC())
	require.NoError(t, err)
	return scanning.ScanResult{
		ScanID:        "csgo-boost-1",
		Request:       market.ScanRequest{Game: market.GameCSGO, Level: market.LevelBoost, MaxItems: 5},
		Opportunities: []*trading.ArbitrageOpportunity{opp},
		Duration:      250 * time.Millisecond,
	}
}

func TestNATSSink_PublishesPerGameAndLevel(t *testing.T) {
	// Arrange
	js := &fakeJetStream{}
	sink := messaging.NewNATSSink(js, "marketscan.opportunities", zap.NewNop())

	// Act
	err := sink.Publish(context.Background(), result(t))

	// Assert
	require.NoError(t, err)
	require.Len(t, js.msgs, 1)
	assert.Equal(t, "marketscan.opportunities.csgo.boost", js.msgs[0].subject)

	var ev messaging.ScanEvent
	require.NoError(t, json.Unmarshal(js.msgs[0].data, &ev))
	assert.Equal(t, "csgo-boost-1", ev.ScanID)
	assert.Equal(t, scanning.OutcomeSuccess, ev.Outcome)
	assert.Equal(t, int64(250), ev.DurationMs)
	require.Len(t, ev.Opportunities, 1)
	assert.Equal(t, int64(395), ev.Opportunities[0].NetProfitMinorUnits)
	assert.Equal(t, []string{"marketscan.opportunities.>"}, sink.Subjects())
}

func TestNATSSink_FailedScanCarriesError(t *testing.T) {
	js := &fakeJetStream{}
	sink := messaging.NewNATSSink(js, "ms", nil)
	res := result(t)
	res.Opportunities = nil
	res.Err = errors.New("retries exhausted")
	res.Degraded = true

	require.NoError(t, sink.Publish(context.Background(), res))

	var ev messaging.ScanEvent
	require.NoError(t, json.Unmarshal(js.msgs[0].data, &ev))
	assert.True(t, ev.Degraded)
	assert.Equal(t, "retries exhausted", ev.Error)
	assert.Empty(t, ev.Opportunities)
}

func TestNATSSink_PublishError(t *testing.T) {
	boom := errors.New("no responders")
	sink := messaging.NewNATSSink(&fakeJetStream{err: boom}, "ms", nil)

	err := sink.Publish(context.Background(), result(t))

	assert.ErrorIs(t, err, boom)
}

func TestEnsureStream_CreatesThenUpdates(t *testing.T) {
	js := &fakeJetStream{streams: map[string]*nats.StreamConfig{}}

	require.NoError(t, messaging.EnsureStream(js, "MARKETSCAN", []string{"ms.>"}, time.Hour, zap.NewNop()))
	require.NoError(t, messaging.EnsureStream(js, "MARKETSCAN", []string{"ms.>"}, 2*time.Hour, zap.NewNop()))

	assert.Equal(t, 1, js.added)
	assert.Equal(t, 1, js.updated)
	assert.Equal(t, 2*time.Hour, js.streams["MARKETSCAN"].MaxAge)
}
