package network

import "fmt"

// Network holds the forks, consumers, producers and pipes of a thermal
// network. Collections keep insertion order. A Network is not safe for
// concurrent mutation.
type Network struct {
	forks     []*Fork
	consumers []*Consumer
	producers []*Producer
	pipes     []*Pipe
}

// New creates an empty network.
func New() *Network {
	return &Network{}
}

// FromSnapshot builds a network from its serialised form. Entities are
// copied; nil entries are skipped.
func FromSnapshot(s Snapshot) *Network {
	n := New()
	for _, f := range s.Forks {
		if f == nil {
			continue
		}
		cp := *f
		n.forks = append(n.forks, &cp)
	}
	for _, c := range s.Consumers {
		if c == nil {
			continue
		}
		cp := *c
		cp.Inputs = append([]string(nil), c.Inputs...)
		n.consumers = append(n.consumers, &cp)
	}
	for _, p := range s.Producers {
		if p == nil {
			continue
		}
		cp := *p
		n.producers = append(n.producers, &cp)
	}
	for _, p := range s.Pipes {
		if p == nil {
			continue
		}
		cp := *p
		n.pipes = append(n.pipes, &cp)
	}
	return n
}

// Snapshot returns a deep copy of the network contents.
func (n *Network) Snapshot() Snapshot {
	return n.Clone().snapshotShared()
}

func (n *Network) snapshotShared() Snapshot {
	return Snapshot{
		Forks:     append([]*Fork{}, n.forks...),
		Consumers: append([]*Consumer{}, n.consumers...),
		Producers: append([]*Producer{}, n.producers...),
		Pipes:     append([]*Pipe{}, n.pipes...),
	}
}

// Clone returns a deep copy.
func (n *Network) Clone() *Network {
	return FromSnapshot(n.snapshotShared())
}

// Forks returns the forks in insertion order.
func (n *Network) Forks() []*Fork { return n.forks }

// Consumers returns the consumers in insertion order.
func (n *Network) Consumers() []*Consumer { return n.consumers }

// Producers returns the producers in insertion order.
func (n *Network) Producers() []*Producer { return n.producers }

// Pipes returns the pipes in insertion order.
func (n *Network) Pipes() []*Pipe { return n.pipes }

// AddFork appends a fork.
func (n *Network) AddFork(f *Fork) { n.forks = append(n.forks, f) }

// AddConsumer appends a consumer.
func (n *Network) AddConsumer(c *Consumer) { n.consumers = append(n.consumers, c) }

// AddProducer appends a producer.
func (n *Network) AddProducer(p *Producer) { n.producers = append(n.producers, p) }

// AddPipe appends a pipe.
func (n *Network) AddPipe(p *Pipe) { n.pipes = append(n.pipes, p) }

// NextForkID returns one past the highest fork id.
func (n *Network) NextForkID() int {
	next := 0
	for _, f := range n.forks {
		if f.ID >= next {
			next = f.ID + 1
		}
	}
	return next
}

// NextConsumerID returns one past the highest consumer id.
func (n *Network) NextConsumerID() int {
	next := 0
	for _, c := range n.consumers {
		if c.ID >= next {
			next = c.ID + 1
		}
	}
	return next
}

// NextProducerID returns one past the highest producer id.
func (n *Network) NextProducerID() int {
	next := 0
	for _, p := range n.producers {
		if p.ID >= next {
			next = p.ID + 1
		}
	}
	return next
}

// NextPipeID returns one past the highest pipe id.
func (n *Network) NextPipeID() int {
	next := 0
	for _, p := range n.pipes {
		if p.ID >= next {
			next = p.ID + 1
		}
	}
	return next
}

// Fork looks up a fork by id.
func (n *Network) Fork(id int) (*Fork, bool) {
	for _, f := range n.forks {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// Consumer looks up a consumer by id.
func (n *Network) Consumer(id int) (*Consumer, bool) {
	for _, c := range n.consumers {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Producer looks up a producer by id.
func (n *Network) Producer(id int) (*Producer, bool) {
	for _, p := range n.producers {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Resolve reports whether ref names a node present in the network.
func (n *Network) Resolve(ref string) bool {
	kind, id, err := ParseRef(ref)
	if err != nil {
		return false
	}
	var ok bool
	switch kind {
	case KindFork:
		_, ok = n.Fork(id)
	case KindConsumer:
		_, ok = n.Consumer(id)
	case KindProducer:
		_, ok = n.Producer(id)
	}
	return ok
}

// RemovePipes drops every pipe whose id is in ids and returns the number
// removed.
func (n *Network) RemovePipes(ids map[int]struct{}) int {
	kept := n.pipes[:0:0]
	for _, p := range n.pipes {
		if _, drop := ids[p.ID]; !drop {
			kept = append(kept, p)
		}
	}
	removed := len(n.pipes) - len(kept)
	n.pipes = kept
	return removed
}

// RemoveConsumers drops every consumer whose id is in ids and returns the
// number removed.
func (n *Network) RemoveConsumers(ids map[int]struct{}) int {
	kept := n.consumers[:0:0]
	for _, c := range n.consumers {
		if _, drop := ids[c.ID]; !drop {
			kept = append(kept, c)
		}
	}
	removed := len(n.consumers) - len(kept)
	n.consumers = kept
	return removed
}

// ClearPipes removes every pipe.
func (n *Network) ClearPipes() int {
	removed := len(n.pipes)
	n.pipes = nil
	return removed
}

// ClearConsumers removes every consumer.
func (n *Network) ClearConsumers() int {
	removed := len(n.consumers)
	n.consumers = nil
	return removed
}

// ClearForks removes every fork.
func (n *Network) ClearForks() int {
	removed := len(n.forks)
	n.forks = nil
	return removed
}

// ReindexForks renumbers the forks densely from 0 in insertion order and
// rewrites pipe endpoints that reference them.
func (n *Network) ReindexForks() {
	mapping := make(map[string]string, len(n.forks))
	for i, f := range n.forks {
		mapping[f.Ref()] = Ref(KindFork, i)
		f.ID = i
	}
	for _, p := range n.pipes {
		if to, ok := mapping[p.From]; ok {
			p.From = to
		}
		if to, ok := mapping[p.To]; ok {
			p.To = to
		}
	}
}

// Validate checks that ids are unique per kind and that every pipe
// endpoint resolves. A dangling endpoint is returned as a
// *ConsistencyError, a repeated id wraps ErrDuplicateIdentity.
func (n *Network) Validate() error {
	refs := make(map[string]struct{}, len(n.forks)+len(n.consumers)+len(n.producers))
	add := func(ref string) error {
		if _, dup := refs[ref]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateIdentity, ref)
		}
		refs[ref] = struct{}{}
		return nil
	}
	for _, f := range n.forks {
		if err := add(f.Ref()); err != nil {
			return err
		}
	}
	for _, c := range n.consumers {
		if err := add(c.Ref()); err != nil {
			return err
		}
	}
	for _, p := range n.producers {
		if err := add(p.Ref()); err != nil {
			return err
		}
	}
	pipeIDs := make(map[int]struct{}, len(n.pipes))
	for _, p := range n.pipes {
		if _, dup := pipeIDs[p.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateIdentity, p.Ref())
		}
		pipeIDs[p.ID] = struct{}{}
	}
	for _, p := range n.pipes {
		if _, ok := refs[p.From]; !ok {
			return &ConsistencyError{PipeID: p.ID, Ref: p.From}
		}
		if _, ok := refs[p.To]; !ok {
			return &ConsistencyError{PipeID: p.ID, Ref: p.To}
		}
	}
	return nil
}
