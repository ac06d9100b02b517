package a2a

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrDuplicateEndpoint = errors.New("a2a: endpoint already registered")
	ErrUnknownSender     = errors.New("a2a: unknown sender")
	ErrUnknownRecipient  = errors.New("a2a: unknown recipient")
)

// Protocol routes messages among registered endpoints and drives each
// conversation breadth-first until no handler produces further replies.
// Registration and history are guarded by a mutex so concurrent Send calls
// on one instance are safe; within a single Send, handlers run strictly
// sequentially in recipient order.
type Protocol struct {
	mu        sync.Mutex
	endpoints map[string]Endpoint
	order     []string // registration order, fixes broadcast fan-out ordering
	history   []Message
}

// NewProtocol returns an empty dispatch engine.
func NewProtocol() *Protocol {
	return &Protocol{endpoints: make(map[string]Endpoint)}
}

// Register adds an endpoint. Registering a name twice fails regardless of
// the handler.
func (p *Protocol) Register(ep Endpoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.endpoints[ep.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateEndpoint, ep.Name)
	}
	p.endpoints[ep.Name] = ep
	p.order = append(p.order, ep.Name)
	return nil
}

// Participants returns the registered endpoint names in registration order.
func (p *Protocol) Participants() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// History returns a snapshot of every message routed so far, oldest first.
// The history is append-only for the lifetime of the Protocol.
func (p *Protocol) History() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.history))
	copy(out, p.history)
	return out
}

// Send routes msg and propagates replies until the conversation quiesces,
// returning every produced message in propagation order. The engine imposes
// no hop limit: a conversation ends when handlers stop replying, and a
// handler pair that always replies loops forever (wrap handlers with MaxHops
// for a hard guard). A handler error aborts the call immediately; messages
// routed before the failure remain in the history.
func (p *Protocol) Send(ctx context.Context, msg Message) ([]Message, error) {
	p.mu.Lock()
	if _, ok := p.endpoints[msg.Sender]; !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownSender, msg.Sender)
	}
	if msg.Recipient != "" {
		if _, ok := p.endpoints[msg.Recipient]; !ok {
			p.mu.Unlock()
			return nil, fmt.Errorf("%w: %q", ErrUnknownRecipient, msg.Recipient)
		}
	}
	p.mu.Unlock()

	var produced []Message
	queue := []Message{msg}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		p.mu.Lock()
		p.history = append(p.history, current)
		p.mu.Unlock()

		recipients := p.resolveRecipients(current)
		defaultRecipient := ""
		if len(recipients) > 0 {
			defaultRecipient = current.Sender
		}

		for _, name := range recipients {
			p.mu.Lock()
			ep, ok := p.endpoints[name]
			p.mu.Unlock()
			if !ok {
				// A handler reply can address any name; reject it the same
				// way Send rejects an unknown top-level recipient.
				return nil, fmt.Errorf("%w: %q", ErrUnknownRecipient, name)
			}

			raw, err := ep.Handler(ctx, current, p.History())
			if err != nil {
				return nil, fmt.Errorf("a2a: endpoint %q: %w", name, err)
			}
			for _, response := range normalize(raw, name, defaultRecipient) {
				produced = append(produced, response)
				queue = append(queue, response)
			}
		}
	}

	return produced, nil
}

// resolveRecipients returns the explicit recipient, or every other endpoint
// when the message is a broadcast.
func (p *Protocol) resolveRecipients(msg Message) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if msg.Recipient != "" {
		return []string{msg.Recipient}
	}
	var out []string
	for _, name := range p.order {
		if name != msg.Sender {
			out = append(out, name)
		}
	}
	return out
}

// MaxHops wraps h so it stops replying once the conversation history reaches
// limit messages. Terminating a conversation is the calling protocol's job,
// not the engine's; embedders that want a hard guard against runaway handler
// pairs wrap their handlers with this.
func MaxHops(limit int, h Handler) Handler {
	return func(ctx context.Context, msg Message, history []Message) (Reply, error) {
		if len(history) >= limit {
			return NoReply(), nil
		}
		return h(ctx, msg, history)
	}
}
