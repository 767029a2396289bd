package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"flight-price-checker/internal/models"
)

var ErrUsage = errors.New("usage")

// ParseMonitorArgs parses "ORIGIN DEST YYYYMMDD YYYYMMDD".
func ParseMonitorArgs(args []string) (models.SearchParams, error) {
	if len(args) != 4 {
		return models.SearchParams{}, fmt.Errorf("%w: /monitor ORIGIN DEST YYYYMMDD YYYYMMDD", ErrUsage)
	}
	return models.SearchParams{
		Origin:      args[0],
		Destination: args[1],
		DepartDate:  args[2],
		ReturnDate:  args[3],
	}, nil
}

// ApplySetCommand applies the arguments of /set to cfg. Supported forms:
//
//	outbound|return windows <name...>
//	outbound|return cutoff <hour>
//	filter none
//	notify any | threshold <amount> | target <amount>
func ApplySetCommand(cfg *models.UserConfig, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: /set outbound|return windows|cutoff ..., /set filter none, /set notify ..., /set price ...", ErrUsage)
	}

	switch strings.ToLower(args[0]) {
	case "outbound", "return":
		return applyLegRule(cfg, strings.ToLower(args[0]) == "outbound", strings.ToLower(args[1]), args[2:])
	case "filter":
		if strings.ToLower(args[1]) != "none" {
			return fmt.Errorf("%w: /set filter none", ErrUsage)
		}
		cfg.Filter = models.NoFilter()
		return nil
	case "notify":
		return applyNotify(cfg, strings.ToLower(args[1]), args[2:])
	case "price":
		t := strings.ToLower(args[1])
		if len(args) != 2 || !models.IsValidPriceType(t) {
			return fmt.Errorf("%w: /set price restricted|overall|both", ErrUsage)
		}
		cfg.PriceType = models.PriceType(t)
		return nil
	default:
		return fmt.Errorf("%w: unknown setting %q", ErrUsage, args[0])
	}
}

func applyLegRule(cfg *models.UserConfig, outbound bool, mode string, values []string) error {
	f := cfg.Filter

	switch mode {
	case "windows":
		windows := make([]models.Window, 0, len(values))
		for _, v := range values {
			v = strings.ToLower(v)
			if !models.IsValidWindow(v) {
				return fmt.Errorf("%w: unknown window %q", ErrUsage, v)
			}
			windows = append(windows, models.Window(v))
		}

		// switching modes keeps nothing from the other mode
		var out, ret []models.Window
		if f.Kind == models.FilterWindows {
			out, ret = f.Outbound.Windows, f.Return.Windows
		}
		if outbound {
			out = windows
		} else {
			ret = windows
		}
		cfg.Filter = models.WindowFilter(out, ret)

	case "cutoff":
		if len(values) != 1 {
			return fmt.Errorf("%w: /set outbound|return cutoff <hour>", ErrUsage)
		}
		h, err := strconv.Atoi(values[0])
		if err != nil || h < 0 || h > 23 {
			return fmt.Errorf("%w: cutoff hour must be 0-23", ErrUsage)
		}

		var out, ret *int
		if f.Kind == models.FilterCutoff {
			out, ret = f.Outbound.CutoffHour, f.Return.CutoffHour
		}
		if outbound {
			out = &h
		} else {
			ret = &h
		}
		cfg.Filter = models.CutoffFilter(out, ret)

	default:
		return fmt.Errorf("%w: mode must be windows or cutoff", ErrUsage)
	}

	return nil
}

func applyNotify(cfg *models.UserConfig, policy string, values []string) error {
	switch models.NotifyPolicy(policy) {
	case models.NotifyAny:
		cfg.NotifyPolicy = models.NotifyAny
		return nil
	case models.NotifyThreshold, models.NotifyTarget:
		if len(values) != 1 {
			return fmt.Errorf("%w: /set notify %s <amount>", ErrUsage, policy)
		}
		amount, err := strconv.ParseInt(strings.ReplaceAll(values[0], ",", ""), 10, 64)
		if err != nil || amount <= 0 {
			return fmt.Errorf("%w: amount must be a positive number", ErrUsage)
		}
		cfg.NotifyPolicy = models.NotifyPolicy(policy)
		if cfg.NotifyPolicy == models.NotifyThreshold {
			cfg.NotifyThreshold = amount
		} else {
			cfg.NotifyTarget = &amount
		}
		return nil
	default:
		return fmt.Errorf("%w: notify policy must be any, threshold or target", ErrUsage)
	}
}
