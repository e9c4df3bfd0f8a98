package feed

import (
	"context"
	"errors"
	"time"
)

// Pump copies replayed bars into a Snapshot one bar per interval, the way a
// live poller would fill it. Quotes are stamped with the wall clock when
// published, so the snapshot's max age applies to the pump and not to the
// historical bar times.
type Pump struct {
	Replay   *Replay
	Snapshot *Snapshot
	BarLimit int
	Now      func() time.Time
}

func (p *Pump) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Publish pushes the visible bars of every replayed symbol into the snapshot
// and returns how many symbols had data.
func (p *Pump) Publish(ctx context.Context) int {
	at := p.now()
	n := 0
	for _, sym := range p.Replay.Symbols() {
		bars, err := p.Replay.OHLCV(ctx, sym, "", p.BarLimit)
		if err != nil {
			continue
		}
		p.Snapshot.SetBars(sym, bars)
		if last, ok := bars.Last(); ok {
			p.Snapshot.UpdatePrice(sym, last.Close, at)
		}
		n++
	}
	return n
}

// Run publishes the current bars, then reveals and publishes one more bar
// every interval. It returns nil once the replay is exhausted or ctx is done.
func (p *Pump) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("pump: interval must be positive")
	}
	p.Publish(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if !p.Replay.Step() {
			return nil
		}
		p.Publish(ctx)
	}
}
