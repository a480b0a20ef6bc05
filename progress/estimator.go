// Package progress turns byte counters reported during an upload into a
// percentage complete and an estimated time remaining.
package progress

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrZeroTotal is returned when a sample reports a total of zero bytes.
// Transports must not emit such samples.
var ErrZeroTotal = errors.New("progress: total bytes is zero")

// Sample is one (loaded, total) observation reported by the transport.
type Sample struct {
	Loaded int64
	Total  int64
}

// Estimate is the progress state derived from a single sample.
type Estimate struct {
	Loaded     int64
	Total      int64
	Percentage float64 // 0-100, rounded to 2 decimal places
	Elapsed    time.Duration

	// Remaining is only meaningful when RemainingKnown is true. It is
	// unknown until some bytes have moved and some time has passed.
	Remaining      time.Duration
	RemainingKnown bool
}

// Percentage returns (loaded*100)/total rounded to 2 decimal places.
func Percentage(loaded, total int64) (float64, error) {
	if total == 0 {
		return 0, ErrZeroTotal
	}
	return round2(float64(loaded) * 100 / float64(total)), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Option configures an Estimator
type Option func(*Estimator)

// WithSmoothing makes the estimator smooth the transfer rate with an
// exponential moving average. alpha is the weight of the newest interval and
// must be in (0, 1]; values outside that range keep the whole-upload average.
func WithSmoothing(alpha float64) Option {
	return func(e *Estimator) {
		if alpha > 0 && alpha <= 1 {
			e.alpha = alpha
		}
	}
}

// Estimator derives remaining time from samples of a single upload.
//
// With the default policy the rate is bytes loaded over total elapsed time,
// recomputed from scratch on every sample. With smoothing enabled the
// estimator keeps the previous rate and must not be shared across uploads.
type Estimator struct {
	alpha float64

	rate        float64 // bytes per millisecond
	lastLoaded  int64
	lastElapsed time.Duration
	seeded      bool
}

// NewEstimator creates an estimator using the whole-upload average rate
// unless WithSmoothing is given.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Smoothing returns the configured smoothing factor, 0 meaning none.
func (e *Estimator) Smoothing() float64 {
	return e.alpha
}

// Estimate computes the percentage and remaining time for s after elapsed
// time since the upload started.
func (e *Estimator) Estimate(s Sample, elapsed time.Duration) (Estimate, error) {
	pct, err := Percentage(s.Loaded, s.Total)
	if err != nil {
		return Estimate{}, err
	}

	est := Estimate{
		Loaded:     s.Loaded,
		Total:      s.Total,
		Percentage: pct,
		Elapsed:    elapsed,
	}

	rate := e.nextRate(s.Loaded, elapsed)

	left := s.Total - s.Loaded
	switch {
	case left == 0:
		est.RemainingKnown = true
	case rate > 0:
		ms := float64(left) / rate
		est.Remaining = time.Duration(ms * float64(time.Millisecond))
		est.RemainingKnown = true
	}

	return est, nil
}

// nextRate returns the bytes/ms rate to use for the current sample, or 0 if
// no rate can be derived yet.
func (e *Estimator) nextRate(loaded int64, elapsed time.Duration) float64 {
	ms := toMillis(elapsed)
	if ms <= 0 {
		return 0
	}
	average := float64(loaded) / ms

	if e.alpha == 0 {
		return average
	}

	if !e.seeded {
		if loaded == 0 {
			return 0
		}
		e.rate = average
		e.seeded = true
	} else if dt := toMillis(elapsed - e.lastElapsed); dt > 0 {
		instant := float64(loaded-e.lastLoaded) / dt
		e.rate = e.alpha*instant + (1-e.alpha)*e.rate
	}

	e.lastLoaded = loaded
	e.lastElapsed = elapsed
	return e.rate
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Session is the bookkeeping for one in-flight upload.
type Session struct {
	StartedAt  time.Time
	TotalBytes int64

	estimator *Estimator
}

// NewSession starts tracking an upload of total bytes that began at start.
func NewSession(start time.Time, total int64, opts ...Option) *Session {
	return &Session{
		StartedAt:  start,
		TotalBytes: total,
		estimator:  NewEstimator(opts...),
	}
}

// Observe estimates progress for loaded bytes at time now.
func (s *Session) Observe(loaded int64, now time.Time) (Estimate, error) {
	return s.estimator.Estimate(Sample{Loaded: loaded, Total: s.TotalBytes}, now.Sub(s.StartedAt))
}

// FormatRemaining renders the remaining time of e for display.
func FormatRemaining(e Estimate) string {
	if !e.RemainingKnown {
		return "unknown"
	}
	return e.Remaining.Round(time.Second).String()
}

// FormatRate renders the average transfer speed of e, e.g. "2.1 MB/s".
func FormatRate(e Estimate) string {
	secs := e.Elapsed.Seconds()
	if secs <= 0 {
		return ""
	}
	bps := float64(e.Loaded) / secs

	const unit = 1000
	if bps < unit {
		return fmt.Sprintf("%.0f B/s", bps)
	}
	div, exp := float64(unit), 0
	for n := bps / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB/s", bps/div, "kMGTPE"[exp])
}
