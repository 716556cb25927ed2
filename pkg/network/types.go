package network

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Kind is the entity collection an identity belongs to.
type Kind string

const (
	KindFork     Kind = "forks"
	KindConsumer Kind = "consumers"
	KindProducer Kind = "producers"
	KindPipe     Kind = "pipes"
)

// ComponentPipe is the component type tag of every pipe.
const ComponentPipe = "Pipe"

// ErrDanglingReference is returned when a pipe endpoint does not resolve to
// an entity in the store.
var ErrDanglingReference = errors.New("dangling reference")

// ErrDuplicateIdentity is returned when two entities of one kind share an
// id.
var ErrDuplicateIdentity = errors.New("duplicate identity")

// ConsistencyError describes a pipe whose endpoint is missing.
type ConsistencyError struct {
	PipeID int
	Ref    string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("pipe %s references missing node %s", Ref(KindPipe, e.PipeID), e.Ref)
}

func (e *ConsistencyError) Unwrap() error {
	return ErrDanglingReference
}

// Ref builds the "<kind>-<id>" identity of an entity.
func Ref(kind Kind, id int) string {
	return string(kind) + "-" + strconv.Itoa(id)
}

// ParseRef splits an identity into its kind and numeric id.
func ParseRef(ref string) (Kind, int, error) {
	i := strings.LastIndex(ref, "-")
	if i <= 0 || i == len(ref)-1 {
		return "", 0, fmt.Errorf("malformed reference %q", ref)
	}
	id, err := strconv.Atoi(ref[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed reference %q: %w", ref, err)
	}
	kind := Kind(ref[:i])
	switch kind {
	case KindFork, KindConsumer, KindProducer, KindPipe:
		return kind, id, nil
	}
	return "", 0, fmt.Errorf("unknown kind in reference %q", ref)
}

// Fork is a junction node of the pipe network.
type Fork struct {
	ID     int     `json:"id"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Street string  `json:"street"`
}

// Ref returns the fork identity.
func (f *Fork) Ref() string { return Ref(KindFork, f.ID) }

// Point returns the fork position in orb order.
func (f *Fork) Point() orb.Point { return orb.Point{f.Lon, f.Lat} }

// Consumer is a heat demand node fed through one or more input buses.
type Consumer struct {
	ID      int      `json:"id"`
	Label   string   `json:"label,omitempty"`
	Lat     float64  `json:"lat"`
	Lon     float64  `json:"lon"`
	Inputs  []string `json:"input"`
	Street  string   `json:"street"`
	Length  float64  `json:"length"`
	MaxHeat float64  `json:"P_heat_max"`
}

// Ref returns the consumer identity.
func (c *Consumer) Ref() string { return Ref(KindConsumer, c.ID) }

// Point returns the consumer position in orb order.
func (c *Consumer) Point() orb.Point { return orb.Point{c.Lon, c.Lat} }

// Producer is a heat source feeding into the network.
type Producer struct {
	ID     int     `json:"id"`
	Label  string  `json:"label"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Street string  `json:"street"`
}

// Ref returns the producer identity.
func (p *Producer) Ref() string { return Ref(KindProducer, p.ID) }

// Point returns the producer position in orb order.
func (p *Producer) Point() orb.Point { return orb.Point{p.Lon, p.Lat} }

// Pipe connects two nodes. From and To are weak references.
type Pipe struct {
	ID            int     `json:"id"`
	From          string  `json:"from_node"`
	To            string  `json:"to_node"`
	Length        float64 `json:"length"`
	ComponentType string  `json:"component_type"`
	Street        string  `json:"street,omitempty"`
}

// Ref returns the pipe identity.
func (p *Pipe) Ref() string { return Ref(KindPipe, p.ID) }

// ProducerSite is a bus location that has to be connected to the network.
type ProducerSite struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// Snapshot is the serialised form of a network.
type Snapshot struct {
	Forks     []*Fork     `json:"forks"`
	Consumers []*Consumer `json:"consumers"`
	Producers []*Producer `json:"producers"`
	Pipes     []*Pipe     `json:"pipes"`
}
