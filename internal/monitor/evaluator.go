package monitor

import (
	"fmt"
	"time"

	"flight-price-checker/internal/models"
)

type OutcomeKind int

const (
	NoMatch OutcomeKind = iota
	Initialized
	PriceDropped
	NoChange
)

func (k OutcomeKind) String() string {
	switch k {
	case NoMatch:
		return "no_match"
	case Initialized:
		return "initialized"
	case PriceDropped:
		return "price_dropped"
	case NoChange:
		return "no_change"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome classifies one evaluation. Old is only meaningful for
// PriceDropped and NoChange; Best is nil for NoMatch.
type Outcome struct {
	Kind OutcomeKind
	Old  int64
	New  int64
	Best *models.Listing
}

// Evaluate compares the cheapest admitted listing with the monitor's stored
// minimum. Equal prices resolve to the lowest FlightID.
func Evaluate(m *models.Monitor, admitted []models.Listing) Outcome {
	return evaluate(m.LowestPrice, admitted)
}

// EvaluateOverall is Evaluate against the unfiltered minimum, over every
// listing the source returned.
func EvaluateOverall(m *models.Monitor, listings []models.Listing) Outcome {
	return evaluate(m.OverallLowest, listings)
}

func evaluate(stored *int64, listings []models.Listing) Outcome {
	if len(listings) == 0 {
		return Outcome{Kind: NoMatch}
	}

	best := listings[0]
	for _, l := range listings[1:] {
		if l.Price < best.Price || (l.Price == best.Price && l.FlightID < best.FlightID) {
			best = l
		}
	}

	switch {
	case stored == nil:
		return Outcome{Kind: Initialized, New: best.Price, Best: &best}
	case best.Price < *stored:
		return Outcome{Kind: PriceDropped, Old: *stored, New: best.Price, Best: &best}
	default:
		return Outcome{Kind: NoChange, Old: *stored, New: best.Price, Best: &best}
	}
}

// NewMinimum returns the minimum to persist, or nil when the stored one
// stays as it is.
func (o Outcome) NewMinimum() *int64 {
	switch o.Kind {
	case Initialized, PriceDropped:
		v := o.New
		return &v
	default:
		return nil
	}
}

// Apply returns the minimum m holds after this outcome. It is never larger
// than the one m had.
func (o Outcome) Apply(m *models.Monitor) *int64 {
	if next := o.NewMinimum(); next != nil {
		if m.LowestPrice == nil || *next < *m.LowestPrice {
			return next
		}
	}
	return m.LowestPrice
}

// Notifies reports whether the outcome is a notification candidate.
func (o Outcome) Notifies() bool {
	return o.Kind == PriceDropped
}

// ShouldNotify applies the owner's notification policy to a PriceDropped
// outcome. A nil config means the default policy.
func ShouldNotify(o Outcome, cfg *models.UserConfig) bool {
	if !o.Notifies() {
		return false
	}
	if cfg == nil {
		return true
	}

	switch cfg.NotifyPolicy {
	case models.NotifyThreshold:
		return o.Old-o.New >= cfg.NotifyThreshold
	case models.NotifyTarget:
		return cfg.NotifyTarget != nil && o.New <= *cfg.NotifyTarget
	default:
		return true
	}
}

// Check is one monitor's evaluation for a cycle. Restricted covers the
// listings the time filter admits, Overall all of them. NoMatchNotice is
// set when the filter stopped matching a monitor that already had a price
// and the owner has not been told yet.
type Check struct {
	Restricted    Outcome
	Overall       Outcome
	NoMatchNotice bool
}

// EvaluateCheck filters listings with the monitor's own filter and
// evaluates both minimums.
func EvaluateCheck(m *models.Monitor, listings []models.Listing) Check {
	c := Check{
		Restricted: Evaluate(m, AdmitAll(listings, m.Filter)),
		Overall:    EvaluateOverall(m, listings),
	}
	c.NoMatchNotice = c.Restricted.Kind == NoMatch && !m.NoMatchNotified &&
		(m.LowestPrice != nil || m.OverallLowest != nil)
	return c
}

// Result is the store update for c. The no-match flag is raised with the
// notice and cleared once the filter matches again.
func (c Check) Result(m *models.Monitor, checkedAt time.Time) models.CheckResult {
	res := models.CheckResult{
		LowestPrice:   c.Restricted.NewMinimum(),
		OverallLowest: c.Overall.NewMinimum(),
		CheckedAt:     checkedAt,
	}

	switch {
	case c.NoMatchNotice:
		notified := true
		res.NoMatchNotified = &notified
	case c.Restricted.Kind != NoMatch && m.NoMatchNotified:
		notified := false
		res.NoMatchNotified = &notified
	}

	return res
}

// Notifies reports whether the check may produce a message at all.
func (c Check) Notifies() bool {
	return c.NoMatchNotice || c.Restricted.Notifies() || c.Overall.Notifies()
}

// Alert holds the drops the owner's settings let through. A nil field is
// not reported.
type Alert struct {
	Restricted *Outcome
	Overall    *Outcome
}

func (a Alert) Empty() bool {
	return a.Restricted == nil && a.Overall == nil
}

// SelectAlert applies the owner's price type and notification policy to
// c. An overall drop to the same fare as the restricted one is reported
// once.
func SelectAlert(c Check, cfg *models.UserConfig) Alert {
	var a Alert
	priceType := cfg.EffectivePriceType()

	if priceType != models.PriceOverall && ShouldNotify(c.Restricted, cfg) {
		r := c.Restricted
		a.Restricted = &r
	}
	if priceType != models.PriceRestricted && ShouldNotify(c.Overall, cfg) {
		if a.Restricted == nil || a.Restricted.New != c.Overall.New {
			o := c.Overall
			a.Overall = &o
		}
	}

	return a
}
