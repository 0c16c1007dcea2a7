package analyzer

import (
	"sync"
	"time"
)

// Blocking reasons reported by the limiter.
const (
	ReasonInterval       = "2-minute interval not reached"
	ReasonMinuteRequests = "Per-minute request limit"
	ReasonMinuteTokens   = "Per-minute token limit"
	ReasonDailyRequests  = "Daily request limit"
	ReasonAllowed        = "All checks passed"
)

// Limits are the quotas of the scoring service.
type Limits struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute" env:"SCORING_RPM"`
	RequestsPerDay    int           `yaml:"requests_per_day" json:"requests_per_day" env:"SCORING_RPD"`
	TokensPerMinute   int           `yaml:"tokens_per_minute" json:"tokens_per_minute" env:"SCORING_TPM"`
	Interval          time.Duration `yaml:"interval" json:"interval" env:"SCORING_INTERVAL"`
	BatchSize         int           `yaml:"batch_size" json:"batch_size" env:"SCORING_BATCH_SIZE"`
}

// DefaultLimits keeps a safety margin under Gemini Flash-Lite's free tier
// and paces batches two minutes apart.
func DefaultLimits() Limits {
	return Limits{
		RequestsPerMinute: 14,
		RequestsPerDay:    900,
		TokensPerMinute:   220000,
		Interval:          120 * time.Second,
		BatchSize:         100,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.RequestsPerMinute <= 0 {
		l.RequestsPerMinute = d.RequestsPerMinute
	}
	if l.RequestsPerDay <= 0 {
		l.RequestsPerDay = d.RequestsPerDay
	}
	if l.TokensPerMinute <= 0 {
		l.TokensPerMinute = d.TokensPerMinute
	}
	if l.Interval < 0 {
		l.Interval = d.Interval
	}
	if l.BatchSize <= 0 || l.BatchSize > d.BatchSize {
		l.BatchSize = d.BatchSize
	}
	return l
}

// EstimateTokens is the pre-call cost estimate for a batch.
func EstimateTokens(articles int) int {
	return articles*80 + 1000
}

// Clock supplies the current time. Tests substitute a fake.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Decision is the result of one admission check.
type Decision struct {
	Allowed    bool `json:"can_proceed"`
	TimingOK   bool `json:"timing_ok"`
	RequestsOK bool `json:"requests_ok"`
	TokensOK   bool `json:"tokens_ok"`
	DailyOK    bool `json:"daily_ok"`

	// Wait is the time left until the pacing interval has elapsed.
	Wait   time.Duration `json:"-"`
	Reason string        `json:"blocking_reason"`

	RequestsRemainingMinute int `json:"requests_remaining_this_minute"`
	TokensRemainingMinute   int `json:"tokens_remaining_this_minute"`
	RequestsRemainingToday  int `json:"requests_remaining_today"`
}

// TimingOnly is true when pacing is the only predicate that failed.
func (d Decision) TimingOnly() bool {
	return !d.TimingOK && d.RequestsOK && d.TokensOK && d.DailyOK
}

// Limiter is the single owner of the scoring quota counters. Minute and day
// counters reset lazily when the wall-clock minute or day changes.
type Limiter struct {
	mu     sync.Mutex
	limits Limits
	clock  Clock

	minute             time.Time
	day                string
	requestsThisMinute int
	tokensThisMinute   int
	requestsToday      int
	lastRequest        time.Time
}

// NewLimiter creates a limiter. A nil clock uses the system clock.
func NewLimiter(limits Limits, clock Clock) *Limiter {
	if clock == nil {
		clock = systemClock{}
	}
	now := clock.Now()
	return &Limiter{
		limits: limits.withDefaults(),
		clock:  clock,
		minute: now.Truncate(time.Minute),
		day:    now.Format(time.DateOnly),
	}
}

// Limits returns the effective quotas.
func (l *Limiter) Limits() Limits { return l.limits }

func (l *Limiter) resetIfNeeded(now time.Time) {
	if m := now.Truncate(time.Minute); !m.Equal(l.minute) {
		l.minute = m
		l.requestsThisMinute = 0
		l.tokensThisMinute = 0
	}
	if d := now.Format(time.DateOnly); d != l.day {
		l.day = d
		l.requestsToday = 0
	}
}

func (l *Limiter) check(now time.Time, estimated int) Decision {
	l.resetIfNeeded(now)

	d := Decision{TimingOK: true}
	if !l.lastRequest.IsZero() {
		since := now.Sub(l.lastRequest)
		if since < l.limits.Interval {
			d.TimingOK = false
			d.Wait = l.limits.Interval - since
		}
	}
	d.RequestsOK = l.requestsThisMinute < l.limits.RequestsPerMinute
	d.TokensOK = l.tokensThisMinute+estimated <= l.limits.TokensPerMinute
	d.DailyOK = l.requestsToday < l.limits.RequestsPerDay
	d.Allowed = d.TimingOK && d.RequestsOK && d.TokensOK && d.DailyOK

	switch {
	case !d.TimingOK:
		d.Reason = ReasonInterval
	case !d.RequestsOK:
		d.Reason = ReasonMinuteRequests
	case !d.TokensOK:
		d.Reason = ReasonMinuteTokens
	case !d.DailyOK:
		d.Reason = ReasonDailyRequests
	default:
		d.Reason = ReasonAllowed
	}

	d.RequestsRemainingMinute = max(0, l.limits.RequestsPerMinute-l.requestsThisMinute)
	d.TokensRemainingMinute = max(0, l.limits.TokensPerMinute-l.tokensThisMinute)
	d.RequestsRemainingToday = max(0, l.limits.RequestsPerDay-l.requestsToday)
	return d
}

// Check evaluates the four admission predicates without changing state.
func (l *Limiter) Check(estimated int) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.check(l.clock.Now(), estimated)
}

// Reservation is an admitted request awaiting its actual token count.
type Reservation struct {
	estimated int
	minute    time.Time
}

// Reserve admits a request and commits its estimated cost in the same
// critical section, so two callers can never both take the last slot.
func (l *Limiter) Reserve(estimated int) (Decision, *Reservation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	d := l.check(now, estimated)
	if !d.Allowed {
		return d, nil
	}
	l.requestsThisMinute++
	l.requestsToday++
	l.tokensThisMinute += estimated
	l.lastRequest = now
	return d, &Reservation{estimated: estimated, minute: l.minute}
}

// Record replaces the reserved estimate with the actual token usage and
// stamps the last-request time. A nil reservation records a request that
// was not reserved.
func (l *Limiter) Record(r *Reservation, actualTokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.resetIfNeeded(now)
	switch {
	case r == nil:
		l.requestsThisMinute++
		l.requestsToday++
		l.tokensThisMinute += actualTokens
	case r.minute.Equal(l.minute):
		l.tokensThisMinute += actualTokens - r.estimated
	default:
		l.tokensThisMinute += actualTokens
	}
	if l.tokensThisMinute < 0 {
		l.tokensThisMinute = 0
	}
	l.lastRequest = now
}

// UsageStats is a snapshot of the limiter counters.
type UsageStats struct {
	RequestsToday           int      `json:"requests_today"`
	RequestsRemainingToday  int      `json:"requests_remaining_today"`
	RequestsThisMinute      int      `json:"requests_this_minute"`
	TokensThisMinute        int      `json:"tokens_this_minute"`
	SecondsSinceLastRequest *float64 `json:"seconds_since_last_request"`
	CanMakeRequestNow       bool     `json:"can_make_request_now"`
	MaxArticlesPerBatch     int      `json:"max_articles_per_batch"`
}

// Stats returns the current usage.
func (l *Limiter) Stats() UsageStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	d := l.check(now, EstimateTokens(l.limits.BatchSize))
	s := UsageStats{
		RequestsToday:          l.requestsToday,
		RequestsRemainingToday: max(0, l.limits.RequestsPerDay-l.requestsToday),
		RequestsThisMinute:     l.requestsThisMinute,
		TokensThisMinute:       l.tokensThisMinute,
		CanMakeRequestNow:      d.Allowed,
		MaxArticlesPerBatch:    l.limits.BatchSize,
	}
	if !l.lastRequest.IsZero() {
		secs := now.Sub(l.lastRequest).Seconds()
		s.SecondsSinceLastRequest = &secs
	}
	return s
}
