package inmemory

import (
	"context"
	"sync"
)

// Publisher collects published message bodies, used for tests and dry runs.
type Publisher struct {
	bodies [][]byte
	mutex  sync.Mutex
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	stored := make([]byte, len(body))
	copy(stored, body)
	p.bodies = append(p.bodies, stored)

	return nil
}

func (p *Publisher) Close() error {
	return nil
}

// Published returns the bodies published so far in order.
func (p *Publisher) Published() [][]byte {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	result := make([][]byte, len(p.bodies))
	copy(result, p.bodies)

	return result
}
