// Package testhelpers provides in-memory collaborators for package tests.
package testhelpers

import (
	"context"
	"sort"
	"sync"
	"time"

	"flight-price-checker/internal/models"
)

// MemStore is an in-memory monitor.Store. Returned records are copies.
type MemStore struct {
	mu       sync.RWMutex
	monitors map[string]models.Monitor
	configs  map[int64]models.UserConfig
	failures map[string]error
	calls    map[string]int
}

func NewMemStore() *MemStore {
	return &MemStore{
		monitors: make(map[string]models.Monitor),
		configs:  make(map[int64]models.UserConfig),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// FailOn makes every later call of the named method return err. A nil err
// clears the failure.
func (s *MemStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// Calls returns how many times the named method was invoked.
func (s *MemStore) Calls(method string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[method]
}

// PutMonitor stores m as is, for test setup.
func (s *MemStore) PutMonitor(m models.Monitor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitors[m.ID] = m
}

// Monitor returns a copy of the stored monitor, or nil.
func (s *MemStore) Monitor(id string) *models.Monitor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.monitors[id]
	if !ok {
		return nil
	}
	return &m
}

// PutUserConfig stores cfg as is, for test setup.
func (s *MemStore) PutUserConfig(cfg models.UserConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.OwnerID] = cfg
}

func (s *MemStore) begin(method string) error {
	s.calls[method]++
	return s.failures[method]
}

func (s *MemStore) CreateMonitor(_ context.Context, m *models.Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("CreateMonitor"); err != nil {
		return err
	}
	s.monitors[m.ID] = *m
	return nil
}

func (s *MemStore) GetMonitor(_ context.Context, id string) (*models.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("GetMonitor"); err != nil {
		return nil, err
	}
	m, ok := s.monitors[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *MemStore) ListActiveMonitors(_ context.Context, ownerID int64) ([]models.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("ListActiveMonitors"); err != nil {
		return nil, err
	}
	var out []models.Monitor
	for _, m := range s.monitors {
		if m.IsActive() && (ownerID == 0 || m.OwnerID == ownerID) {
			out = append(out, m)
		}
	}
	sortMonitors(out)
	return out, nil
}

func (s *MemStore) CountActiveMonitors(_ context.Context, ownerID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("CountActiveMonitors"); err != nil {
		return 0, err
	}
	n := 0
	for _, m := range s.monitors {
		if m.IsActive() && m.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) SetMonitorStatus(_ context.Context, id string, from, to models.Status, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("SetMonitorStatus"); err != nil {
		return false, err
	}
	m, ok := s.monitors[id]
	if !ok || m.Status != from {
		return false, nil
	}
	m.Status = to
	ended := at
	m.EndedAt = &ended
	s.monitors[id] = m
	return true, nil
}

func (s *MemStore) SaveCheck(_ context.Context, id string, res models.CheckResult) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("SaveCheck"); err != nil {
		return false, err
	}
	m, ok := s.monitors[id]
	if !ok || !m.IsActive() {
		return false, nil
	}
	if res.LowestPrice != nil {
		v := *res.LowestPrice
		m.LowestPrice = &v
	}
	if res.OverallLowest != nil {
		v := *res.OverallLowest
		m.OverallLowest = &v
	}
	if res.NoMatchNotified != nil {
		m.NoMatchNotified = *res.NoMatchNotified
	}
	at := res.CheckedAt
	m.LastCheckedAt = &at
	s.monitors[id] = m
	return true, nil
}

func (s *MemStore) ListExpirableMonitors(_ context.Context, createdBefore time.Time) ([]models.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("ListExpirableMonitors"); err != nil {
		return nil, err
	}
	var out []models.Monitor
	for _, m := range s.monitors {
		if m.IsActive() && m.CreatedAt.Before(createdBefore) {
			out = append(out, m)
		}
	}
	sortMonitors(out)
	return out, nil
}

func (s *MemStore) ListPrunableMonitors(_ context.Context, anchorBefore time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("ListPrunableMonitors"); err != nil {
		return nil, err
	}
	var out []models.Monitor
	for _, m := range s.monitors {
		if !m.IsActive() && m.RetentionAnchor().Before(anchorBefore) {
			out = append(out, m)
		}
	}
	sortMonitors(out)
	ids := make([]string, 0, len(out))
	for _, m := range out {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (s *MemStore) DeleteMonitor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("DeleteMonitor"); err != nil {
		return err
	}
	delete(s.monitors, id)
	return nil
}

func (s *MemStore) GetUserConfig(_ context.Context, ownerID int64) (*models.UserConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("GetUserConfig"); err != nil {
		return nil, err
	}
	cfg, ok := s.configs[ownerID]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (s *MemStore) SaveUserConfig(_ context.Context, cfg *models.UserConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("SaveUserConfig"); err != nil {
		return err
	}
	s.configs[cfg.OwnerID] = *cfg
	return nil
}

func (s *MemStore) TouchUserConfig(_ context.Context, ownerID int64, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("TouchUserConfig"); err != nil {
		return err
	}
	if cfg, ok := s.configs[ownerID]; ok {
		cfg.LastUsedAt = usedAt
		s.configs[ownerID] = cfg
	}
	return nil
}

func (s *MemStore) ListStaleUserConfigs(_ context.Context, usedBefore time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("ListStaleUserConfigs"); err != nil {
		return nil, err
	}
	var out []int64
	for id, cfg := range s.configs {
		if cfg.LastUsedAt.Before(usedBefore) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *MemStore) DeleteUserConfig(_ context.Context, ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("DeleteUserConfig"); err != nil {
		return err
	}
	delete(s.configs, ownerID)
	return nil
}

func (s *MemStore) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begin("Ping")
}

func sortMonitors(ms []models.Monitor) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.Before(ms[j].CreatedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}
