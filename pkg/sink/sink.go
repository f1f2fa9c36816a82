// Package sink defines where normalized record batches are delivered.
package sink

import (
	"context"
	"fmt"

	"github.com/bturcanu/ingestbridge/pkg/types"
)

// Sink accepts one complete batch per sync pass. Implementations must treat
// the batch as a unit: either every record is accepted or an error is returned.
type Sink interface {
	OnNewRecords(ctx context.Context, batch []types.RecordWithPermissions) error
}

// Func adapts a function to the Sink interface.
type Func func(ctx context.Context, batch []types.RecordWithPermissions) error

func (f Func) OnNewRecords(ctx context.Context, batch []types.RecordWithPermissions) error {
	return f(ctx, batch)
}

type named struct {
	name string
	sink Sink
}

// Fanout delivers a batch to several sinks in registration order. The first
// failure stops delivery.
type Fanout struct {
	sinks []named
}

func NewFanout() *Fanout {
	return &Fanout{}
}

// Add appends s under a name used in error messages.
func (f *Fanout) Add(name string, s Sink) *Fanout {
	f.sinks = append(f.sinks, named{name: name, sink: s})
	return f
}

// Len returns the number of configured sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

func (f *Fanout) OnNewRecords(ctx context.Context, batch []types.RecordWithPermissions) error {
	if err := types.ValidateBatch(batch); err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	for _, s := range f.sinks {
		if err := s.sink.OnNewRecords(ctx, batch); err != nil {
			return fmt.Errorf("sink %s: %w", s.name, err)
		}
	}
	return nil
}
