package publish

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/solarflow/solarflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subjects []string
	data     [][]byte
	err      error
	closed   bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.data = append(f.data, data)
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

func TestNATSPublish(t *testing.T) {
	ctx := context.Background()
	fc := &fakeConn{}
	n := &NATS{nc: fc, subject: "solarflow.energy"}

	p := types.EnergyDataPoint{
		ID:         "abc",
		BuildingID: "b1",
		Timestamp:  time.Date(2025, 8, 4, 14, 0, 0, 0, time.UTC),
		Building:   types.BuildingData{PVGeneration: 1.5},
	}
	require.NoError(t, n.Publish(ctx, p))
	require.NoError(t, n.Publish(ctx, types.EnergyDataPoint{ID: "def"}))

	assert.Equal(t, []string{"solarflow.energy.b1", "solarflow.energy.default"}, fc.subjects)

	var got types.EnergyDataPoint
	require.NoError(t, json.Unmarshal(fc.data[0], &got))
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, p.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, 1.5, got.Building.PVGeneration)

	require.NoError(t, n.Close())
	assert.True(t, fc.closed)
}

func TestNATSPublishError(t *testing.T) {
	n := &NATS{nc: &fakeConn{err: errors.New("boom")}, subject: "s"}
	err := n.Publish(context.Background(), types.EnergyDataPoint{BuildingID: "b1"})
	assert.ErrorContains(t, err, "failed to publish to s.b1")
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), types.EnergyDataPoint{}))
	assert.NoError(t, p.Close())
}

func TestNATSServer(t *testing.T) {
	url := os.Getenv("NATS_TEST_URL")
	if url == "" {
		t.Skip("NATS_TEST_URL not set")
	}

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	sub, err := nc.SubscribeSync("test.energy.*")
	require.NoError(t, err)

	pubConn, err := nats.Connect(url)
	require.NoError(t, err)
	n := NewNATS(pubConn, "test.energy")
	defer n.Close()

	require.NoError(t, n.Publish(context.Background(), types.EnergyDataPoint{ID: "x", BuildingID: "b1"}))
	require.NoError(t, pubConn.Flush())

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "test.energy.b1", msg.Subject)
	nc.Close()
}
