package network

import (
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/rmax-ai/thermonet/pkg/geo"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref     string
		kind    Kind
		id      int
		wantErr bool
	}{
		{ref: "forks-3", kind: KindFork, id: 3},
		{ref: "consumers-0", kind: KindConsumer, id: 0},
		{ref: "producers-12", kind: KindProducer, id: 12},
		{ref: "pipes-1", kind: KindPipe, id: 1},
		{ref: "forks-", wantErr: true},
		{ref: "forks-x", wantErr: true},
		{ref: "sinks-1", wantErr: true},
		{ref: "7", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			kind, id, err := ParseRef(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.ref)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if kind != tt.kind || id != tt.id {
				t.Errorf("got (%s, %d), want (%s, %d)", kind, id, tt.kind, tt.id)
			}
		})
	}
}

func sampleNetwork() *Network {
	n := New()
	n.AddFork(&Fork{ID: 4, Lat: 0, Lon: 0, Street: "a"})
	n.AddFork(&Fork{ID: 9, Lat: 0, Lon: 1, Street: "a"})
	n.AddConsumer(&Consumer{ID: 0, Lat: 1, Lon: 0, Inputs: []string{"b0"}})
	n.AddPipe(&Pipe{ID: 0, From: "forks-4", To: "forks-9", Length: 10})
	n.AddPipe(&Pipe{ID: 1, From: "forks-4", To: "consumers-0", Length: 5})
	return n
}

func TestRemovePipesAndConsumers(t *testing.T) {
	n := sampleNetwork()

	if removed := n.RemovePipes(map[int]struct{}{1: {}, 42: {}}); removed != 1 {
		t.Errorf("expected 1 pipe removed, got %d", removed)
	}
	if len(n.Pipes()) != 1 || n.Pipes()[0].ID != 0 {
		t.Errorf("unexpected pipes after removal: %+v", n.Pipes())
	}

	if removed := n.RemoveConsumers(map[int]struct{}{0: {}}); removed != 1 {
		t.Errorf("expected 1 consumer removed, got %d", removed)
	}
	if len(n.Consumers()) != 0 {
		t.Errorf("expected no consumers, got %d", len(n.Consumers()))
	}
}

func TestReindexForks(t *testing.T) {
	n := sampleNetwork()
	n.ReindexForks()

	if n.Forks()[0].ID != 0 || n.Forks()[1].ID != 1 {
		t.Fatalf("expected dense fork ids, got %d and %d", n.Forks()[0].ID, n.Forks()[1].ID)
	}
	p := n.Pipes()[0]
	if p.From != "forks-0" || p.To != "forks-1" {
		t.Errorf("pipe endpoints not rewritten: %s -> %s", p.From, p.To)
	}
	if err := n.Validate(); err != nil {
		t.Errorf("network should stay valid: %v", err)
	}
}

func TestValidateDanglingReference(t *testing.T) {
	n := sampleNetwork()
	n.AddPipe(&Pipe{ID: 2, From: "forks-9", To: "consumers-7"})

	err := n.Validate()
	if !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("expected ErrDanglingReference, got %v", err)
	}
	var ce *ConsistencyError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConsistencyError, got %T", err)
	}
	if ce.PipeID != 2 || ce.Ref != "consumers-7" {
		t.Errorf("unexpected error detail: %+v", ce)
	}
}

func TestValidateDuplicateIdentity(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(n *Network)
		want   string
	}{
		{"Fork", func(n *Network) { n.AddFork(&Fork{ID: 9, Street: "a"}) }, "forks-9"},
		{"Consumer", func(n *Network) { n.AddConsumer(&Consumer{ID: 0, Inputs: []string{"b1"}}) }, "consumers-0"},
		{"Producer", func(n *Network) {
			n.AddProducer(&Producer{ID: 1, Label: "plant"})
			n.AddProducer(&Producer{ID: 1, Label: "boiler"})
		}, "producers-1"},
		{"Pipe", func(n *Network) { n.AddPipe(&Pipe{ID: 1, From: "forks-9", To: "forks-4"}) }, "pipes-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := sampleNetwork()
			tt.mutate(n)

			err := n.Validate()
			if !errors.Is(err, ErrDuplicateIdentity) {
				t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %s in %q", tt.want, err)
			}
		})
	}
}

func TestValidateRejectsPipeEndpointOnPipe(t *testing.T) {
	n := sampleNetwork()
	n.AddPipe(&Pipe{ID: 2, From: "forks-4", To: "pipes-0"})

	if err := n.Validate(); !errors.Is(err, ErrDanglingReference) {
		t.Errorf("a pipe cannot end at another pipe, got %v", err)
	}
}

func TestClearConsumers(t *testing.T) {
	n := sampleNetwork()
	if removed := n.ClearConsumers(); removed != 1 {
		t.Errorf("expected 1 consumer removed, got %d", removed)
	}
	if len(n.Consumers()) != 0 || n.NextConsumerID() != 0 {
		t.Errorf("consumers left: %+v", n.Consumers())
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	n := sampleNetwork()
	snap := n.Snapshot()
	snap.Forks[0].Street = "changed"
	snap.Consumers[0].Inputs[0] = "changed"

	if n.Forks()[0].Street != "a" {
		t.Errorf("snapshot fork shares memory with network")
	}
	if n.Consumers()[0].Inputs[0] != "b0" {
		t.Errorf("snapshot consumer inputs share memory with network")
	}

	back := FromSnapshot(snap)
	if len(back.Pipes()) != 2 || back.NextForkID() != 10 {
		t.Errorf("unexpected round trip: %d pipes, next fork %d", len(back.Pipes()), back.NextForkID())
	}
}

func TestCreateIntersectionForks(t *testing.T) {
	n := New()
	n.AddFork(&Fork{ID: 0, Lat: 0, Lon: 0, Street: "a"})
	sections := []geo.Section{
		{Label: "a", Active: true, Line: orb.LineString{{0, 0}, {1, 0}}},
		{Label: "b", Active: true, Line: orb.LineString{{1, 0}, {1, 1}}},
		{Label: "off", Active: false, Line: orb.LineString{{5, 5}, {6, 6}}},
	}

	created := n.CreateIntersectionForks(sections)
	if created != 2 {
		t.Fatalf("expected 2 intersection forks, got %d", created)
	}
	if len(n.Forks()) != 3 {
		t.Fatalf("expected 3 forks, got %d", len(n.Forks()))
	}
	if n.Forks()[1].ID != 1 || n.Forks()[2].ID != 2 {
		t.Errorf("expected sequential ids, got %d, %d", n.Forks()[1].ID, n.Forks()[2].ID)
	}
}

func TestCreateSupplyLineOrdersForksAlongStreet(t *testing.T) {
	n := New()
	sections := []geo.Section{
		{Label: "a", Active: true, Line: orb.LineString{{0, 0}, {3, 0}}},
	}
	n.CreateIntersectionForks(sections) // forks-0 at start, forks-1 at end
	n.AddFork(&Fork{ID: 2, Lat: 0, Lon: 2, Street: "a"})
	n.AddFork(&Fork{ID: 3, Lat: 0, Lon: 1, Street: "a"})

	created := n.CreateSupplyLine(sections)
	if created != 3 {
		t.Fatalf("expected 3 supply pipes, got %d", created)
	}
	want := [][2]string{{"forks-0", "forks-3"}, {"forks-3", "forks-2"}, {"forks-2", "forks-1"}}
	for i, p := range n.Pipes() {
		if p.From != want[i][0] || p.To != want[i][1] {
			t.Errorf("pipe %d: got %s -> %s, want %s -> %s", i, p.From, p.To, want[i][0], want[i][1])
		}
		if p.Length <= 0 {
			t.Errorf("pipe %d: expected positive length, got %f", i, p.Length)
		}
	}
}

func TestCreateProducerConnectionPoints(t *testing.T) {
	n := New()
	sections := []geo.Section{
		{Label: "a", Active: true, Line: orb.LineString{{0, 0}, {2, 0}}},
	}
	sites := []ProducerSite{{Label: "heat_plant", Lat: 1, Lon: 1}}

	if err := n.CreateProducerConnectionPoints(sites, sections); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.Producers()) != 1 || len(n.Forks()) != 1 || len(n.Pipes()) != 1 {
		t.Fatalf("expected one producer, fork and pipe, got %d/%d/%d",
			len(n.Producers()), len(n.Forks()), len(n.Pipes()))
	}
	fork := n.Forks()[0]
	if fork.Lon != 1 || fork.Lat != 0 || fork.Street != "a" {
		t.Errorf("unexpected foot point fork: %+v", fork)
	}
	pipe := n.Pipes()[0]
	if pipe.From != "producers-0" || pipe.To != "forks-0" {
		t.Errorf("unexpected producer pipe: %s -> %s", pipe.From, pipe.To)
	}

	if err := n.CreateProducerConnectionPoints(sites, nil); err == nil {
		t.Errorf("expected error without street sections")
	}
}

func TestNormalize(t *testing.T) {
	n := New()
	n.AddFork(&Fork{ID: 0})
	n.AddFork(&Fork{ID: 1, Lon: 1})
	n.AddConsumer(&Consumer{ID: 0, Length: 99})
	n.AddConsumer(&Consumer{ID: 1})
	n.AddPipe(&Pipe{ID: 5, From: "forks-0", To: "forks-1", Length: 3})
	n.AddPipe(&Pipe{ID: 6, From: "forks-1", To: "forks-0", Length: 3})
	n.AddPipe(&Pipe{ID: 7, From: "forks-1", To: "forks-1"})
	n.AddPipe(&Pipe{ID: 8, From: "forks-0", To: "consumers-0", Length: 4})

	stats, err := n.Normalize(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.DuplicatePipes != 1 || stats.SelfLoopPipes != 1 || stats.OrphanConsumers != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(n.Pipes()) != 2 || n.Pipes()[0].ID != 0 || n.Pipes()[1].ID != 1 {
		t.Errorf("expected 2 densely numbered pipes, got %+v", n.Pipes())
	}
	if n.Consumers()[0].Length != 99 {
		t.Errorf("clustered consumer length must be kept, got %f", n.Consumers()[0].Length)
	}

	if _, err := n.Normalize(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Consumers()[0].Length != 4 {
		t.Errorf("full network consumer length should come from its pipe, got %f", n.Consumers()[0].Length)
	}
}

func TestGeoJSON(t *testing.T) {
	n := sampleNetwork()
	n.AddPipe(&Pipe{ID: 9, From: "forks-4", To: "consumers-99"})

	fc := n.GeoJSON()
	// 2 forks + 1 consumer + 2 resolvable pipes
	if len(fc.Features) != 5 {
		t.Fatalf("expected 5 features, got %d", len(fc.Features))
	}
	if _, err := fc.MarshalJSON(); err != nil {
		t.Errorf("marshal failed: %v", err)
	}
}
