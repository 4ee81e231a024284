// Package chain supplies the block height the router uses as its clock.
package chain

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Counter is a local block height advanced explicitly or on a ticker.
type Counter struct {
	height atomic.Uint64
}

func NewCounter(start uint64) *Counter {
	c := &Counter{}
	c.height.Store(start)
	return c
}

func (c *Counter) BlockNumber(context.Context) (uint64, error) {
	return c.height.Load(), nil
}

// Advance moves the height forward by n blocks and returns the new height.
func (c *Counter) Advance(n uint64) uint64 {
	return c.height.Add(n)
}

// Run advances one block per interval until ctx is done.
func (c *Counter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Advance(1)
		}
	}
}

// RPC follows the head of a live chain.
type RPC struct {
	client *ethclient.Client
}

func NewRPC(client *ethclient.Client) *RPC {
	return &RPC{client: client}
}

func (r *RPC) BlockNumber(ctx context.Context) (uint64, error) {
	return r.client.BlockNumber(ctx)
}
