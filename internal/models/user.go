package models

import "time"

type NotifyPolicy string

const (
	NotifyAny       NotifyPolicy = "any"
	NotifyThreshold NotifyPolicy = "threshold"
	NotifyTarget    NotifyPolicy = "target"
)

// PriceType picks which minimum a price drop is reported for: the one
// over listings the time filter admits, the one over all listings, or both.
type PriceType string

const (
	PriceRestricted PriceType = "restricted"
	PriceOverall    PriceType = "overall"
	PriceBoth       PriceType = "both"
)

func IsValidPriceType(s string) bool {
	switch PriceType(s) {
	case PriceRestricted, PriceOverall, PriceBoth:
		return true
	}
	return false
}

// UserConfig holds per-owner defaults. It lives independently of monitors
// and is pruned by inactivity.
type UserConfig struct {
	OwnerID         int64        `db:"owner_id"`
	Filter          TimeFilter   `db:"time_filter"`
	NotifyPolicy    NotifyPolicy `db:"notify_policy"`
	NotifyThreshold int64        `db:"notify_threshold"`
	NotifyTarget    *int64       `db:"notify_target"`
	PriceType       PriceType    `db:"price_type"`
	CreatedAt       time.Time    `db:"created_at"`
	LastUsedAt      time.Time    `db:"last_used_at"`
}

const DefaultNotifyThreshold = 5000

func DefaultUserConfig(ownerID int64, now time.Time) *UserConfig {
	return &UserConfig{
		OwnerID:         ownerID,
		Filter:          DefaultTimeFilter(),
		NotifyPolicy:    NotifyAny,
		NotifyThreshold: DefaultNotifyThreshold,
		PriceType:       PriceRestricted,
		CreatedAt:       now,
		LastUsedAt:      now,
	}
}

// EffectivePriceType treats an unset price type as restricted.
func (c *UserConfig) EffectivePriceType() PriceType {
	if c == nil || c.PriceType == "" {
		return PriceRestricted
	}
	return c.PriceType
}
