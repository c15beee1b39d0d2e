package marketdata

import (
	"context"
	"time"

	"tradecore/internal/model"
)

// PeriodClock answers "which bucket just closed" and fires shortly after
// each period boundary. Grace covers exchange-side publish latency so a
// tick fired at boundary+grace can expect the closed candle to exist.
type PeriodClock struct {
	Grace time.Duration

	now func() time.Time
}

func NewPeriodClock(grace time.Duration) *PeriodClock {
	return &PeriodClock{Grace: grace, now: time.Now}
}

// LastClosed returns the start timestamp of the most recent fully closed
// bucket for the period, i.e. one bucket before the one currently forming.
func (p *PeriodClock) LastClosed(period string) (int64, error) {
	d, err := model.PeriodDuration(period)
	if err != nil {
		return 0, err
	}
	cur, err := model.PeriodStart(p.now().Unix(), period)
	if err != nil {
		return 0, err
	}
	return cur - int64(d.Seconds()), nil
}

// CurrentBucket returns the start timestamp of the bucket now forming.
// Candles with TS >= this value are not yet closed.
func (p *PeriodClock) CurrentBucket(period string) (int64, error) {
	return model.PeriodStart(p.now().Unix(), period)
}

// Ticks delivers a tick just after each period boundary plus Grace,
// until ctx is cancelled. The first tick fires at the next boundary, not
// immediately.
func (p *PeriodClock) Ticks(ctx context.Context, period string) (<-chan time.Time, error) {
	d, err := model.PeriodDuration(period)
	if err != nil {
		return nil, err
	}
	out := make(chan time.Time, 1)
	go func() {
		defer close(out)
		for {
			now := p.now()
			next := now.Truncate(d).Add(d).Add(p.Grace)
			timer := time.NewTimer(next.Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case t := <-timer.C:
				select {
				case out <- t:
				default: // consumer is behind, drop the tick
				}
			}
		}
	}()
	return out, nil
}
