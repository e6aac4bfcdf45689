// Package monitor runs the per-worksheet check pipeline: fetch, normalize,
// classify, diff against persisted state, notify, persist. One Monitor owns
// one worksheet, one state store and one notification channel; the scheduler
// guarantees its runs never overlap.
package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/keltjd-git-314/medical-monitor/internal/notify"
	"github.com/keltjd-git-314/medical-monitor/internal/record"
	"github.com/keltjd-git-314/medical-monitor/internal/sheets"
	"github.com/keltjd-git-314/medical-monitor/internal/state"
)

// DigestMode controls whether a check run sends the daily digest.
type DigestMode int

const (
	// DigestAuto sends the digest when the cadence policy says it is due.
	DigestAuto DigestMode = iota
	// DigestForce always sends the digest (CLI and the daily trigger).
	DigestForce
	// DigestSkip never sends the digest, regardless of cadence.
	DigestSkip
)

// Config describes one monitored worksheet.
type Config struct {
	Name             string
	SpreadsheetID    string
	WorksheetName    string
	CheckInterval    time.Duration
	DailyReportTime  string // "HH:MM"
	SendNewEmployees bool
}

// Result summarizes one check run.
type Result struct {
	Status         string // "success" or "no_data"
	TotalEmployees int
	Expired        []record.Record
	Critical       []record.Record
	NoBook         []record.Record
	Added          []state.Tracked
	Removed        []state.Tracked
	DigestSent     bool
}

// Monitor runs checks for one worksheet.
type Monitor struct {
	cfg        Config
	logger     *zap.Logger
	source     sheets.RowSource
	sender     notify.Sender
	store      *state.Store
	normalizer *record.Normalizer
	cadence    *Cadence
	now        func() time.Time

	// digestRetryAt defers the wall-clock trigger after a due digest hit a
	// no-data run, so retries pace at the check interval instead of every
	// scheduler tick. Only touched from the monitor's own job goroutine.
	digestRetryAt time.Time
}

// New creates a Monitor. The DailyReportTime must parse as HH:MM.
func New(logger *zap.Logger, cfg Config, source sheets.RowSource, sender notify.Sender, store *state.Store) (*Monitor, error) {
	cadence, err := NewCadence(cfg.DailyReportTime)
	if err != nil {
		return nil, err
	}
	return &Monitor{
		cfg:        cfg,
		logger:     logger.Named("monitor").With(zap.String("monitor", cfg.Name)),
		source:     source,
		sender:     sender,
		store:      store,
		normalizer: record.NewNormalizer(logger),
		cadence:    cadence,
		now:        time.Now,
	}, nil
}

// SetClock overrides the clock for the monitor and its normalizer. Intended
// for tests.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
	m.normalizer.SetClock(now)
	m.store.SetClock(now)
}

// Name returns the monitor name.
func (m *Monitor) Name() string { return m.cfg.Name }

// CheckInterval returns the configured periodic check interval.
func (m *Monitor) CheckInterval() time.Duration { return m.cfg.CheckInterval }

// DigestDue reports whether the daily digest is due at now. Exposed for the
// scheduler's wall-clock trigger.
func (m *Monitor) DigestDue(now time.Time) bool {
	if now.Before(m.digestRetryAt) {
		return false
	}
	return m.cadence.IsDue(now)
}

// Check runs one full check: fetch, normalize, classify, diff, notify,
// persist — strictly in that order, so the saved state always reflects this
// run's diff. An empty fetch ends the run early with a no-data result;
// notification failures are logged and never block persistence.
func (m *Monitor) Check(ctx context.Context, mode DigestMode) Result {
	now := m.now()
	m.logger.Info("Starting check")

	rows := m.source.FetchRows(ctx, m.cfg.SpreadsheetID, m.cfg.WorksheetName)
	if len(rows) == 0 {
		m.logger.Warn("No data from worksheet, skipping run")
		return m.noData(now, mode)
	}

	records := m.normalizer.Normalize(rows)
	if len(records) == 0 {
		m.logger.Warn("No employee records after normalization, skipping run")
		return m.noData(now, mode)
	}

	expired, critical, noBook := record.Partition(records)
	added, removed := m.store.Update(records)

	result := Result{
		Status:         "success",
		TotalEmployees: len(records),
		Expired:        expired,
		Critical:       critical,
		NoBook:         noBook,
		Added:          added,
		Removed:        removed,
	}

	// During the nightly bulk-refresh window (hour 0) detailed messages are
	// replaced by a single short refresh notice.
	midnight := now.Hour() == 0
	refreshSent := false

	if m.cfg.SendNewEmployees && len(added) > 0 {
		if midnight {
			m.logger.Info("New employees during refresh window, sending short notice",
				zap.Int("added", len(added)))
			m.send(ctx, notify.Message{
				Kind: notify.KindDataRefresh,
				Text: notify.ComposeRefreshNotice(m.cfg.Name, now),
			})
			refreshSent = true
		} else {
			m.send(ctx, notify.Message{
				Kind: notify.KindNewEmployees,
				Text: notify.ComposeNewEmployeeNotice(added, m.cfg.Name, now),
			})
		}
	}

	digestWanted := mode == DigestForce || (mode == DigestAuto && m.cadence.IsDue(now))
	if digestWanted {
		if midnight {
			if !refreshSent {
				m.send(ctx, notify.Message{
					Kind: notify.KindDataRefresh,
					Text: notify.ComposeRefreshNotice(m.cfg.Name, now),
				})
			}
		} else {
			m.send(ctx, notify.Message{
				Kind: notify.KindDailyDigest,
				Text: notify.ComposeDailyDigest(expired, critical, noBook,
					m.cfg.Name, m.cfg.DailyReportTime, m.store.Count(), now),
			})
		}
		m.cadence.MarkReported(now)
		result.DigestSent = true
	}

	m.store.Save()

	trackedEmployees.WithLabelValues(m.cfg.Name).Set(float64(m.store.Count()))
	problematicEmployees.WithLabelValues(m.cfg.Name, string(record.StatusExpired)).Set(float64(len(expired)))
	problematicEmployees.WithLabelValues(m.cfg.Name, string(record.StatusCritical)).Set(float64(len(critical)))
	problematicEmployees.WithLabelValues(m.cfg.Name, string(record.StatusNoMedicalBook)).Set(float64(len(noBook)))
	checksTotal.WithLabelValues(m.cfg.Name, "success").Inc()

	m.logger.Info("Check finished",
		zap.Int("employees", len(records)),
		zap.Int("expired", len(expired)),
		zap.Int("critical", len(critical)),
		zap.Int("no_medical_book", len(noBook)),
		zap.Int("added", len(added)),
		zap.Int("removed", len(removed)),
		zap.Bool("digest_sent", result.DigestSent),
	)
	return result
}

// noData ends a run that produced no employees. A due digest stays pending
// (the cadence is not consumed), but its retry is deferred by one check
// interval so the wall-clock trigger does not refetch on every tick while
// the source is down.
func (m *Monitor) noData(now time.Time, mode DigestMode) Result {
	if mode == DigestAuto && m.cadence.IsDue(now) && m.cfg.CheckInterval > 0 {
		m.digestRetryAt = now.Add(m.cfg.CheckInterval)
		m.logger.Info("Digest deferred until next check interval",
			zap.Time("retry_at", m.digestRetryAt))
	}
	checksTotal.WithLabelValues(m.cfg.Name, "no_data").Inc()
	return Result{Status: "no_data"}
}

// SendImmediateAlert pushes a single-employee alert outside the regular
// check flow.
func (m *Monitor) SendImmediateAlert(ctx context.Context, r record.Record) {
	m.send(ctx, notify.Message{
		Kind: notify.KindImmediateAlert,
		Text: notify.ComposeImmediateAlert(r, record.Classify(r), m.cfg.Name, m.now()),
	})
}

// send enqueues a message and logs enqueue failures. Delivery errors are the
// sender's concern; they never block the check.
func (m *Monitor) send(ctx context.Context, msg notify.Message) {
	if err := m.sender.Send(ctx, msg); err != nil {
		m.logger.Error("Failed to enqueue notification",
			zap.String("kind", string(msg.Kind)),
			zap.Error(err),
		)
	}
}
