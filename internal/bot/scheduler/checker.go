package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"flight-price-checker/internal/api/flights"
	"flight-price-checker/internal/bot/utils"
	"flight-price-checker/internal/config"
	"flight-price-checker/internal/metrics"
	"flight-price-checker/internal/models"
	"flight-price-checker/internal/monitor"
	"flight-price-checker/internal/workerpool"

	"go.uber.org/zap"
)

const (
	cycleLockKey = "flights:cycle:lock"
	storeTimeout = 10 * time.Second
)

var (
	ErrCycleInFlight = errors.New("check cycle already in flight")
	ErrLeaseHeld     = errors.New("check cycle lease held by another instance")
)

// CycleLocker is a lease shared by every replica so that only one of them
// runs a cycle at a time.
type CycleLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// StatsCache keeps the last cycle report where other processes can read it.
type StatsCache interface {
	SaveCycleReport(ctx context.Context, report *models.CycleReport) error
}

type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseEvaluating
	PhaseNotifying
	PhaseSweeping
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseNotifying:
		return "notifying"
	case PhaseSweeping:
		return "sweeping"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// PriceChecker runs the periodic check cycle: snapshot the active monitors,
// check each one on the fetch pool, notify owners of price drops, then sweep.
type PriceChecker struct {
	registry *monitor.Registry
	store    monitor.Store
	fetcher  monitor.Fetcher
	notifier monitor.Notifier
	sweeper  *Sweeper
	pool     *workerpool.Pool
	config   *config.Config
	metrics  *metrics.Metrics
	logger   *zap.Logger

	locker CycleLocker
	stats  StatsCache

	running       atomic.Bool
	phase         atomic.Int32
	storeFailures atomic.Int32

	mu   sync.RWMutex
	last *models.CycleReport

	halted   chan struct{}
	haltOnce sync.Once
	haltErr  error

	now func() time.Time
}

func New(
	registry *monitor.Registry,
	store monitor.Store,
	fetcher monitor.Fetcher,
	notifier monitor.Notifier,
	sweeper *Sweeper,
	pool *workerpool.Pool,
	cfg *config.Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PriceChecker {
	return &PriceChecker{
		registry: registry,
		store:    store,
		fetcher:  fetcher,
		notifier: notifier,
		sweeper:  sweeper,
		pool:     pool,
		config:   cfg,
		metrics:  m,
		logger:   logger,
		halted:   make(chan struct{}),
		now:      time.Now,
	}
}

// UseLocker makes every cycle take the shared lease first.
func (pc *PriceChecker) UseLocker(l CycleLocker) {
	pc.locker = l
}

// UseStatsCache publishes every cycle report to c.
func (pc *PriceChecker) UseStatsCache(c StatsCache) {
	pc.stats = c
}

func (pc *PriceChecker) SetClock(now func() time.Time) {
	pc.now = now
}

func (pc *PriceChecker) Phase() Phase {
	return Phase(pc.phase.Load())
}

func (pc *PriceChecker) setPhase(p Phase) {
	pc.phase.Store(int32(p))
}

// Stats returns a copy of the last completed cycle report, or nil.
func (pc *PriceChecker) Stats() *models.CycleReport {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if pc.last == nil {
		return nil
	}
	r := *pc.last
	return &r
}

// Halted is closed once the checker has stopped for good because the store
// kept failing.
func (pc *PriceChecker) Halted() <-chan struct{} {
	return pc.halted
}

// HaltErr returns the error that halted the checker.
func (pc *PriceChecker) HaltErr() error {
	select {
	case <-pc.halted:
		return pc.haltErr
	default:
		return nil
	}
}

func (pc *PriceChecker) halt(err error) {
	pc.haltOnce.Do(func() {
		pc.haltErr = err
		close(pc.halted)
	})
}

// Start runs cycles on the check interval grid until ctx is done or the
// checker halts. The first cycle runs one interval after start. Start
// returns after the running cycle, if any, has finished.
func (pc *PriceChecker) Start(ctx context.Context) {
	anchor := pc.now()
	trigger := newTrigger(anchor, pc.config.CheckInterval, func() {
		if _, err := pc.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleInFlight) {
			pc.logger.Warn("check cycle did not complete", zap.Error(err))
		}
	}, pc.logger)

	pc.logger.Info("price checker started",
		zap.Duration("interval", pc.config.CheckInterval),
		zap.Time("first_cycle", Every(anchor, pc.config.CheckInterval).Next(anchor)),
		zap.Int("workers", pc.pool.Size()),
	)

	trigger.Start()

	select {
	case <-ctx.Done():
		pc.logger.Info("price checker stopping")
	case <-pc.halted:
		pc.logger.Error("price checker halted", zap.Error(pc.haltErr))
	}

	<-trigger.Stop().Done()
	pc.logger.Info("price checker stopped")
}

// taskResult is what one monitor's check produced. Failure is empty when
// the outcome was committed.
type taskResult struct {
	monitor models.Monitor
	outcome monitor.Outcome
	check   monitor.Check
	failure monitor.FailureReason
	err     error
}

// cycleGate decides which task results belong to a cycle. Tasks commit
// under a read lock; closing takes the write lock, so after close returns
// no task can commit and every committed result has been recorded.
type cycleGate struct {
	mu     sync.RWMutex
	closed bool

	resMu   sync.Mutex
	results []taskResult
}

func (g *cycleGate) commit(fn func() taskResult) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return false
	}

	res := fn()

	g.resMu.Lock()
	g.results = append(g.results, res)
	g.resMu.Unlock()
	return true
}

func (g *cycleGate) close() []taskResult {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.resMu.Lock()
	defer g.resMu.Unlock()
	out := make([]taskResult, len(g.results))
	copy(out, g.results)
	return out
}

// RunCycle runs one full cycle. It returns ErrCycleInFlight without doing
// anything when another cycle is still running.
func (pc *PriceChecker) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	if !pc.running.CompareAndSwap(false, true) {
		pc.logger.Warn("previous check cycle still running, skipping", zap.Stringer("phase", pc.Phase()))
		pc.metrics.Cycle("skipped", 0)
		return nil, ErrCycleInFlight
	}
	defer pc.running.Store(false)
	defer pc.setPhase(PhaseIdle)

	if pc.locker != nil {
		// the lease outlives the fetch wait so notify and sweep stay covered
		ok, err := pc.locker.AcquireLock(ctx, cycleLockKey, pc.config.CheckInterval+storeTimeout)
		switch {
		case err != nil:
			pc.logger.Warn("cycle lease unavailable, running unguarded", zap.Error(err))
		case !ok:
			pc.logger.Info("another instance holds the cycle lease, skipping")
			pc.metrics.Cycle("skipped", 0)
			return nil, ErrLeaseHeld
		default:
			defer func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
				defer cancel()
				if err := pc.locker.ReleaseLock(releaseCtx, cycleLockKey); err != nil {
					pc.logger.Warn("failed to release cycle lease", zap.Error(err))
				}
			}()
		}
	}

	report := &models.CycleReport{
		StartedAt: pc.now().UTC(),
		Outcomes:  make(map[string]int),
		Failures:  make(map[string]int),
	}

	pc.setPhase(PhaseFetching)
	monitors, err := pc.registry.ListActive(ctx, monitor.AllOwners)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		failures := pc.storeFailures.Add(1)
		pc.logger.Error("failed to snapshot active monitors",
			zap.Int32("consecutive_failures", failures),
			zap.Error(err),
		)
		pc.metrics.Cycle("failed", 0)
		if int(failures) >= pc.config.StoreFailureLimit {
			pc.halt(fmt.Errorf("store unavailable for %d consecutive cycles: %w", failures, err))
		}
		return nil, fmt.Errorf("snapshot active monitors: %w", err)
	}
	pc.storeFailures.Store(0)
	pc.metrics.SetActiveMonitors(len(monitors))
	report.Monitors = len(monitors)

	pc.logger.Info("check cycle started", zap.Int("monitors", len(monitors)))

	results := pc.checkAll(ctx, monitors, report)

	pc.setPhase(PhaseNotifying)
	pc.notify(ctx, results, report)

	if pc.sweeper != nil {
		pc.setPhase(PhaseSweeping)
		sweep := pc.sweeper.Sweep(ctx)
		report.Sweep = &sweep
	}

	report.FinishedAt = pc.now().UTC()
	pc.finish(ctx, report)

	return report, nil
}

// checkAll fans the monitors out on the fetch pool and waits for them, at
// most CycleWaitTimeout. Results that arrive later are discarded.
func (pc *PriceChecker) checkAll(ctx context.Context, monitors []models.Monitor, report *models.CycleReport) []taskResult {
	cycleCtx, cancel := context.WithTimeout(ctx, pc.config.CycleWaitTimeout)
	defer cancel()

	gate := &cycleGate{}
	done := workerpool.Run(cycleCtx, pc.pool, monitors, func(ctx context.Context, m models.Monitor) (struct{}, error) {
		pc.checkMonitor(ctx, gate, m)
		return struct{}{}, nil
	})

	panicked := 0
wait:
	for {
		select {
		case res, ok := <-done:
			if !ok {
				break wait
			}
			var pe *workerpool.PanicError
			if errors.As(res.Err, &pe) {
				panicked++
				report.Failures[string(monitor.FailurePanic)]++
				pc.metrics.Check(string(monitor.FailurePanic))
			}
		case <-cycleCtx.Done():
			pc.logger.Warn("cycle wait timed out, abandoning stragglers",
				zap.Duration("timeout", pc.config.CycleWaitTimeout),
			)
			break wait
		}
	}

	results := gate.close()
	pc.setPhase(PhaseEvaluating)

	report.Abandoned = len(monitors) - len(results) - panicked
	if report.Abandoned > 0 {
		report.Failures[string(monitor.FailureAbandoned)] += report.Abandoned
	}

	for _, res := range results {
		label := res.outcome.Kind.String()
		if res.failure != "" {
			label = string(res.failure)
			report.Failures[label]++
		} else {
			report.Outcomes[label]++
		}
		pc.metrics.Check(label)
	}

	return results
}

// checkMonitor fetches, filters and evaluates one monitor and commits the
// outcome under the monitor's lock. Nothing is written once the gate is
// closed or the monitor has left Active.
func (pc *PriceChecker) checkMonitor(ctx context.Context, gate *cycleGate, m models.Monitor) {
	fetchCtx, cancel := context.WithTimeout(ctx, pc.config.FetchTimeout)
	listings, fetchErr := pc.fetcher.Fetch(fetchCtx, m.SearchParams)
	cancel()

	logger := pc.logger.With(zap.String("monitor_id", m.ID), zap.Int64("owner_id", m.OwnerID))

	committed := gate.commit(func() taskResult {
		res := taskResult{monitor: m}

		if fetchErr != nil {
			res.failure = monitor.ClassifyFetchError(fetchErr)
			res.err = fetchErr
			logger.Warn("price check failed",
				zap.String("reason", string(res.failure)),
				zap.Error(fetchErr),
			)
			// the retention clock still advances through fetch outages
			if err := pc.touchCheck(ctx, m.ID); err != nil {
				logger.Error("failed to record check time", zap.Error(err))
			}
			return res
		}

		err := pc.registry.WithMonitor(m.ID, func() error {
			storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
			defer cancel()

			current, err := pc.store.GetMonitor(storeCtx, m.ID)
			if err != nil {
				return err
			}
			if current == nil || !current.IsActive() {
				res.failure = monitor.FailureNotActive
				return nil
			}

			check := monitor.EvaluateCheck(current, listings)
			ok, err := pc.store.SaveCheck(storeCtx, m.ID, check.Result(current, pc.now().UTC()))
			if err != nil {
				return err
			}
			if !ok {
				res.failure = monitor.FailureNotActive
				return nil
			}

			res.monitor = *current
			res.outcome = check.Restricted
			res.check = check
			return nil
		})
		if err != nil {
			res.failure = monitor.FailureStore
			res.err = err
			logger.Error("failed to commit price check, outcome discarded", zap.Error(err))
			return res
		}

		switch {
		case res.failure == monitor.FailureNotActive:
			logger.Debug("monitor left active during check, outcome discarded")
		default:
			logger.Debug("price checked",
				zap.Stringer("outcome", res.outcome.Kind),
				zap.Int("listings", len(listings)),
				zap.Int64("price", res.outcome.New),
				zap.Int64("overall_price", res.check.Overall.New),
			)
		}
		return res
	})

	if !committed {
		logger.Debug("check finished after cycle deadline, result discarded")
	}
}

// touchCheck advances last_checked_at without touching the stored minimums.
func (pc *PriceChecker) touchCheck(ctx context.Context, monitorID string) error {
	return pc.registry.WithMonitor(monitorID, func() error {
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		defer cancel()
		_, err := pc.store.SaveCheck(storeCtx, monitorID, models.CheckResult{CheckedAt: pc.now().UTC()})
		return err
	})
}

// notify sends at most one price alert per committed check that passes the
// owner's settings, and a one-off notice when a monitor's time filter
// stopped matching. Delivery is attempted once; failures are logged.
func (pc *PriceChecker) notify(ctx context.Context, results []taskResult, report *models.CycleReport) {
	var pending []taskResult
	for _, res := range results {
		if res.failure == "" && res.check.Notifies() {
			pending = append(pending, res)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].monitor.ID < pending[j].monitor.ID })

	configs := make(map[int64]*models.UserConfig)
	for _, res := range pending {
		link := flights.SearchURL(pc.config.FlightsBaseURL, res.monitor.SearchParams)

		if res.check.NoMatchNotice {
			pc.deliver(ctx, res, "no_match", utils.FormatNoMatch(&res.monitor, link), report)
		}
		if !res.check.Restricted.Notifies() && !res.check.Overall.Notifies() {
			continue
		}

		alert := monitor.SelectAlert(res.check, pc.userConfig(ctx, configs, res.monitor.OwnerID))
		if alert.Empty() {
			pc.metrics.Notification("suppressed")
			continue
		}
		pc.deliver(ctx, res, "price_drop", utils.FormatPriceAlert(&res.monitor, alert, link), report)
	}
}

// userConfig loads the owner's notification settings once per cycle. A
// lookup failure falls back to the defaults.
func (pc *PriceChecker) userConfig(ctx context.Context, cache map[int64]*models.UserConfig, owner int64) *models.UserConfig {
	if cfg, ok := cache[owner]; ok {
		return cfg
	}

	cfg, err := pc.store.GetUserConfig(ctx, owner)
	if err != nil {
		pc.logger.Warn("failed to load notification policy, using default",
			zap.Int64("owner_id", owner),
			zap.Error(err),
		)
		cfg = nil
	}
	cache[owner] = cfg
	return cfg
}

func (pc *PriceChecker) deliver(ctx context.Context, res taskResult, kind, text string, report *models.CycleReport) {
	notifyCtx, cancel := context.WithTimeout(ctx, pc.config.NotifyTimeout)
	err := pc.notifier.Notify(notifyCtx, res.monitor.OwnerID, text)
	cancel()

	fields := []zap.Field{
		zap.Int64("owner_id", res.monitor.OwnerID),
		zap.String("monitor_id", res.monitor.ID),
		zap.String("kind", kind),
		zap.Int64("old_price", res.outcome.Old),
		zap.Int64("new_price", res.outcome.New),
	}

	if err != nil {
		report.NotifyErrs++
		pc.metrics.Notification("failed")
		pc.logger.Error("failed to deliver notification", append(fields, zap.Error(err))...)
		return
	}

	report.Notified++
	pc.metrics.Notification("sent")
	pc.logger.Info("notification delivered", fields...)
}

func (pc *PriceChecker) finish(ctx context.Context, report *models.CycleReport) {
	pc.mu.Lock()
	pc.last = report
	pc.mu.Unlock()

	pc.metrics.Cycle("completed", report.Duration())

	if pc.stats != nil {
		if err := pc.stats.SaveCycleReport(ctx, report); err != nil {
			pc.logger.Warn("failed to cache cycle report", zap.Error(err))
		}
	}

	pc.logger.Info("check cycle finished",
		zap.Int("monitors", report.Monitors),
		zap.Any("outcomes", report.Outcomes),
		zap.Any("failures", report.Failures),
		zap.Int("notified", report.Notified),
		zap.Int("notify_errors", report.NotifyErrs),
		zap.Duration("took", report.Duration()),
	)
}
