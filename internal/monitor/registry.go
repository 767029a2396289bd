package monitor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"flight-price-checker/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AllOwners selects every owner in ListActive and CancelAll.
const AllOwners int64 = 0

const dateLayout = "20060102"

var airportCode = regexp.MustCompile(`^[A-Z]{3}$`)

// Registry owns the set of monitors and is the only way to create or cancel
// one. Quota checks are serialized per owner and every mutation of a single
// monitor is serialized per monitor id.
type Registry struct {
	store       Store
	maxMonitors int
	admins      map[int64]bool
	owners      *KeyedMutex
	monitors    *KeyedMutex
	logger      *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewRegistry(store Store, maxMonitors int, adminIDs []int64, logger *zap.Logger) *Registry {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}

	return &Registry{
		store:       store,
		maxMonitors: maxMonitors,
		admins:      admins,
		owners:      NewKeyedMutex(),
		monitors:    NewKeyedMutex(),
		logger:      logger,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
}

// SetClock replaces the time source.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

func (r *Registry) MaxMonitors() int {
	return r.maxMonitors
}

func (r *Registry) IsAdmin(userID int64) bool {
	return r.admins[userID]
}

// Create registers a new active monitor for ownerID.
func (r *Registry) Create(ctx context.Context, ownerID int64, params models.SearchParams, filter models.TimeFilter) (*models.Monitor, error) {
	params = NormalizeParams(params)
	if err := ValidateParams(params, r.now()); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	unlock := r.owners.Lock(ownerKey(ownerID))
	defer unlock()

	count, err := r.store.CountActiveMonitors(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("count active monitors: %w", err)
	}

	if count >= r.maxMonitors {
		r.logger.Warn("monitor quota exceeded",
			zap.Int64("user_id", ownerID),
			zap.Int("active", count),
			zap.Int("max", r.maxMonitors),
		)
		return nil, ErrQuotaExceeded
	}

	m := &models.Monitor{
		ID:           r.newID(),
		OwnerID:      ownerID,
		SearchParams: params,
		Filter:       filter,
		Status:       models.StatusActive,
		CreatedAt:    r.now().UTC(),
	}

	if err := r.store.CreateMonitor(ctx, m); err != nil {
		return nil, fmt.Errorf("create monitor: %w", err)
	}

	r.logger.Info("monitor created",
		zap.Int64("user_id", ownerID),
		zap.String("monitor_id", m.ID),
		zap.Stringer("search", params),
	)

	return m, nil
}

// Cancel stops an active monitor. Admins may cancel any monitor.
func (r *Registry) Cancel(ctx context.Context, monitorID string, requesterID int64) error {
	unlock := r.monitors.Lock(monitorID)
	defer unlock()

	m, err := r.store.GetMonitor(ctx, monitorID)
	if err != nil {
		return fmt.Errorf("get monitor: %w", err)
	}

	if m == nil || !m.IsActive() {
		return ErrNotFound
	}

	if m.OwnerID != requesterID && !r.IsAdmin(requesterID) {
		return ErrNotOwner
	}

	ok, err := r.store.SetMonitorStatus(ctx, monitorID, models.StatusActive, models.StatusCancelled, r.now().UTC())
	if err != nil {
		return fmt.Errorf("cancel monitor: %w", err)
	}
	if !ok {
		return ErrNotFound
	}

	r.logger.Info("monitor cancelled",
		zap.String("monitor_id", monitorID),
		zap.Int64("owner_id", m.OwnerID),
		zap.Int64("requester_id", requesterID),
	)

	return nil
}

// CancelAll cancels every active monitor of ownerID, or of every owner when
// ownerID is AllOwners (admins only). It returns how many were cancelled.
func (r *Registry) CancelAll(ctx context.Context, ownerID, requesterID int64) (int, error) {
	if ownerID == AllOwners && !r.IsAdmin(requesterID) {
		return 0, ErrNotOwner
	}

	active, err := r.ListActive(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, m := range active {
		err := r.Cancel(ctx, m.ID, requesterID)
		switch {
		case err == nil:
			cancelled++
		case errors.Is(err, ErrNotFound):
			// cancelled or expired concurrently
		default:
			return cancelled, err
		}
	}

	return cancelled, nil
}

// ListActive returns the active monitors of ownerID, or all of them for
// AllOwners.
func (r *Registry) ListActive(ctx context.Context, ownerID int64) ([]models.Monitor, error) {
	monitors, err := r.store.ListActiveMonitors(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list active monitors: %w", err)
	}
	return monitors, nil
}

func (r *Registry) Get(ctx context.Context, monitorID string) (*models.Monitor, error) {
	m, err := r.store.GetMonitor(ctx, monitorID)
	if err != nil {
		return nil, fmt.Errorf("get monitor: %w", err)
	}
	if m == nil {
		return nil, ErrNotFound
	}
	return m, nil
}

// WithMonitor runs fn while holding the monitor's write lock.
func (r *Registry) WithMonitor(monitorID string, fn func() error) error {
	unlock := r.monitors.Lock(monitorID)
	defer unlock()
	return fn()
}

// NormalizeParams upper-cases airport codes and trims whitespace.
func NormalizeParams(p models.SearchParams) models.SearchParams {
	return models.SearchParams{
		Origin:      strings.ToUpper(strings.TrimSpace(p.Origin)),
		Destination: strings.ToUpper(strings.TrimSpace(p.Destination)),
		DepartDate:  strings.TrimSpace(p.DepartDate),
		ReturnDate:  strings.TrimSpace(p.ReturnDate),
	}
}

// ValidateParams checks airport code shape and the travel dates: neither in
// the past nor more than a year ahead, and return not before departure.
func ValidateParams(p models.SearchParams, now time.Time) error {
	if !airportCode.MatchString(p.Origin) || !airportCode.MatchString(p.Destination) {
		return fmt.Errorf("%w: airport codes must be three letters", ErrInvalidParams)
	}
	if p.Origin == p.Destination {
		return fmt.Errorf("%w: origin and destination are the same", ErrInvalidParams)
	}

	depart, err := time.Parse(dateLayout, p.DepartDate)
	if err != nil {
		return fmt.Errorf("%w: departure date must be YYYYMMDD", ErrInvalidParams)
	}
	ret, err := time.Parse(dateLayout, p.ReturnDate)
	if err != nil {
		return fmt.Errorf("%w: return date must be YYYYMMDD", ErrInvalidParams)
	}

	today, _ := time.Parse(dateLayout, now.Format(dateLayout))
	if depart.Before(today) {
		return fmt.Errorf("%w: departure date is in the past", ErrInvalidParams)
	}
	if depart.After(today.AddDate(1, 0, 0)) {
		return fmt.Errorf("%w: departure date is more than a year ahead", ErrInvalidParams)
	}
	if ret.Before(depart) {
		return fmt.Errorf("%w: return date is before departure", ErrInvalidParams)
	}

	return nil
}

func ownerKey(ownerID int64) string {
	return strconv.FormatInt(ownerID, 10)
}
