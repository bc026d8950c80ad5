package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/levenlabs/go-lflag"
	"github.com/nats-io/nats.go"
	"github.com/solarflow/solarflow/pkg/common"
	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/types"
)

// Publisher forwards computed data points to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, p types.EnergyDataPoint) error
	Close() error
}

// Configured returns a NATS publisher when --nats-url is set and a no-op
// publisher otherwise.
func Configured() Publisher {
	url := lflag.String("nats-url", "", "NATS server URL to publish energy data points to (disabled if empty)")
	subject := lflag.String("nats-subject", "solarflow.energy", "NATS subject prefix; points go to <prefix>.<buildingID>")

	var p struct{ Publisher }
	p.Publisher = Noop{}

	lflag.Do(func() {
		if *url == "" {
			return
		}
		nc, err := nats.Connect(*url, nats.Name(common.UserAgent()))
		if err != nil {
			panic(fmt.Sprintf("failed to connect to nats %s: %v", *url, err))
		}
		p.Publisher = NewNATS(nc, *subject)
	})

	return &p
}

// Noop discards every point.
type Noop struct{}

func (Noop) Publish(context.Context, types.EnergyDataPoint) error { return nil }
func (Noop) Close() error { return nil }

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATS JSON-encodes data points onto <subject>.<buildingID>.
type NATS struct {
	nc      conn
	subject string
}

// NewNATS creates a publisher on an established connection. The publisher
// owns the connection and closes it on Close.
func NewNATS(nc *nats.Conn, subject string) *NATS {
	return &NATS{nc: nc, subject: subject}
}

// Subject returns the subject points of the building are published to.
func (n *NATS) Subject(buildingID string) string {
	if buildingID == "" {
		buildingID = types.BuildingIDDefault
	}
	return n.subject + "." + buildingID
}

// Publish implements Publisher.
func (n *NATS) Publish(ctx context.Context, p types.EnergyDataPoint) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal data point: %w", err)
	}
	subject := n.Subject(p.BuildingID)
	if err := n.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	log.Ctx(ctx).DebugContext(ctx, "published data point", slog.String("subject", subject), slog.String("id", p.ID))
	return nil
}

// Close implements Publisher.
func (n *NATS) Close() error {
	n.nc.Close()
	return nil
}
