package reminder

import (
	"context"
	"fmt"
	log "log/slog"
	"regexp"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

const (
	DefaultTimezone = "Asia/Karachi"

	scanSpec    = "@every 1m"
	scanTimeout = 30 * time.Second
	firedTTL    = 2 * time.Hour
)

var storedTimeRe = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(am|pm)?$`)

// Due reports whether r should fire at now. The stored time is read as
// H[:MM][am|pm]. Without a suffix, 0 and 13-23 are 24h hours and 1-12 match
// either half of the day. Without minutes the whole hour matches.
func Due(r Reminder, now time.Time) bool {
	m := storedTimeRe.FindStringSubmatch(r.Time)
	if m == nil {
		return false
	}

	hour, _ := strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ := strconv.Atoi(m[2])
		if minute > 59 || minute != now.Minute() {
			return false
		}
	}

	switch suffix := m[3]; {
	case suffix != "":
		if hour < 1 || hour > 12 {
			return false
		}
		return hour%12 == now.Hour()%12 && (suffix == "pm") == (now.Hour() >= 12)
	case hour == 0 || (hour >= 13 && hour <= 23):
		return hour == now.Hour()
	case hour <= 12:
		return hour%12 == now.Hour()%12
	}
	return false
}

// Notifier is told about every reminder that fires.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

type NotifierFunc func(ctx context.Context, r Reminder) error

func (f NotifierFunc) Notify(ctx context.Context, r Reminder) error { return f(ctx, r) }

type Scanner struct {
	store    Store
	ledger   Ledger
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
	cron     *cron.Cron
}

// NewScanner checks store once a minute in loc. notifier may be nil, in
// which case fired reminders are only logged.
func NewScanner(store Store, ledger Ledger, notifier Notifier, loc *time.Location) *Scanner {
	if loc == nil {
		loc = time.Local
	}
	if ledger == nil {
		ledger = NewMemoryLedger()
	}

	logger := cronLogger{}
	return &Scanner{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// LoadLocation resolves a zone name, using DefaultTimezone when name is empty.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

func (s *Scanner) Start() error {
	_, err := s.cron.AddFunc(scanSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
		defer cancel()

		if _, err := s.Scan(ctx); err != nil {
			log.Error("Reminder scan failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminder scan: %w", err)
	}

	s.cron.Start()
	log.Info("Reminder scanner started", "every", "1m", "tz", s.loc.String())
	return nil
}

// Stop halts scheduling; the returned context is done once a running scan
// has finished.
func (s *Scanner) Stop() context.Context {
	return s.cron.Stop()
}

// Scan fires every due reminder that has not fired this hour and returns
// how many fired.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	reminders, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now().In(s.loc)
	fired := 0
	for _, r := range reminders {
		if !Due(r, now) {
			continue
		}

		first, err := s.ledger.Mark(ctx, FireKey(r, now), firedTTL)
		if err != nil {
			return fired, fmt.Errorf("mark reminder %s: %w", r.ID.Hex(), err)
		}
		if !first {
			continue
		}

		fired++
		log.Info("Reminder due", "task", r.Task, "time", r.Time, "intent", r.Intent)

		if s.notifier == nil {
			continue
		}
		if err := s.notifier.Notify(ctx, r); err != nil {
			log.Warn("Reminder notification failed", "task", r.Task, "err", err)
		}
	}

	return fired, nil
}

// cronLogger routes cron's own messages into slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	log.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
