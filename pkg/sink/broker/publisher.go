// Package broker publishes record batches to NSQ for downstream indexers.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bturcanu/ingestbridge/pkg/types"
)

// Producer is the subset of *nsq.Producer used by the publisher.
type Producer interface {
	MultiPublish(topic string, body [][]byte) error
}

// Message is the body of one NSQ message: a single encoded record and the
// permissions delivered with it.
type Message struct {
	Record      *types.RecordEvent `json:"record"`
	Permissions []types.Permission `json:"permissions"`
}

// Publisher sends each batch as one MultiPublish call so indexers see a pass
// atomically.
type Publisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

func NewPublisher(producer Producer, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

func (p *Publisher) OnNewRecords(ctx context.Context, batch []types.RecordWithPermissions) error {
	if len(batch) == 0 {
		return nil
	}
	bodies := make([][]byte, 0, len(batch))
	for _, item := range batch {
		ev, err := types.EncodeEvent(item.Record)
		if err != nil {
			return fmt.Errorf("broker.OnNewRecords: %w", err)
		}
		perms := item.Permissions
		if perms == nil {
			perms = []types.Permission{}
		}
		body, err := json.Marshal(Message{Record: ev, Permissions: perms})
		if err != nil {
			return fmt.Errorf("broker.OnNewRecords marshal %s: %w", item.Record.ID, err)
		}
		bodies = append(bodies, body)
	}

	if err := p.producer.MultiPublish(p.topic, bodies); err != nil {
		return fmt.Errorf("broker.OnNewRecords publish %s: %w", p.topic, err)
	}
	p.logger.DebugContext(ctx, "published records", "topic", p.topic, "count", len(bodies))
	return nil
}
