package benchmarks

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/randalmurphal/seqmine/pkg/seqmine/config"
	"github.com/randalmurphal/seqmine/pkg/seqmine/event"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// generate builds a deterministic stream of bursts separated by quiet gaps.
// Each burst replays a route through routeLen stations plus some noise.
func generate(seed uint64, bursts, routeLen, stations int) []event.Event {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	at := start

	events := make([]event.Event, 0, bursts*routeLen*2)
	for range bursts {
		at = at.Add(time.Duration(10+rng.IntN(20)) * time.Minute)
		t := at
		for step := range routeLen {
			t = t.Add(time.Duration(2+rng.IntN(10)) * time.Second)
			events = append(events, event.Event{
				Timestamp:   t,
				Origin:      int64(step),
				Destination: int64(step + 1),
			})
			if rng.IntN(3) == 0 {
				events = append(events, event.Event{
					Timestamp:   t.Add(time.Duration(rng.IntN(5)) * time.Second),
					Origin:      rng.Int64N(int64(stations)),
					Destination: rng.Int64N(int64(stations)),
				})
			}
		}
	}
	return events
}

func mustStore(b *testing.B, events []event.Event) *event.Store {
	b.Helper()
	store, err := event.NewStore(events)
	if err != nil {
		b.Fatal(err)
	}
	return store
}

func benchParams() config.Params {
	p := config.Default()
	p.GapThreshold = 5 * time.Minute
	p.TimeWindow = 30 * time.Second
	p.MinRepetitions = 3
	return p
}
