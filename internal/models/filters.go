package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Window is a named departure-time bucket.
type Window string

const (
	WindowDawn       Window = "dawn"
	WindowMorning1   Window = "morning1"
	WindowMorning2   Window = "morning2"
	WindowAfternoon1 Window = "afternoon1"
	WindowAfternoon2 Window = "afternoon2"
	WindowNight1     Window = "night1"
	WindowNight2     Window = "night2"
)

// WindowHours maps each window to its [start, end) hour range.
var WindowHours = map[Window][2]int{
	WindowDawn:       {0, 6},
	WindowMorning1:   {6, 9},
	WindowMorning2:   {9, 12},
	WindowAfternoon1: {12, 15},
	WindowAfternoon2: {15, 18},
	WindowNight1:     {18, 21},
	WindowNight2:     {21, 24},
}

func WindowOptions() []Window {
	return []Window{
		WindowDawn,
		WindowMorning1,
		WindowMorning2,
		WindowAfternoon1,
		WindowAfternoon2,
		WindowNight1,
		WindowNight2,
	}
}

func IsValidWindow(name string) bool {
	_, ok := WindowHours[Window(name)]
	return ok
}

// Contains reports whether clock falls in the window, start-inclusive and
// end-exclusive.
func (w Window) Contains(c Clock) bool {
	hours, ok := WindowHours[w]
	if !ok {
		return false
	}
	return c >= Clock(hours[0]*60) && c < Clock(hours[1]*60)
}

func (w Window) String() string {
	hours, ok := WindowHours[w]
	if !ok {
		return string(w)
	}
	return fmt.Sprintf("%s %02d:00-%02d:00", string(w), hours[0], hours[1])
}

type FilterKind string

const (
	FilterNone    FilterKind = "none"
	FilterWindows FilterKind = "windows"
	FilterCutoff  FilterKind = "cutoff"
)

// LegRule constrains the departure time of one leg. Windows is used by
// FilterWindows, CutoffHour by FilterCutoff; an empty rule leaves the leg
// unconstrained.
type LegRule struct {
	Windows    []Window `json:"windows,omitempty"`
	CutoffHour *int     `json:"cutoff_hour,omitempty"`
}

// TimeFilter is stored as JSON in the time_filter column.
type TimeFilter struct {
	Kind     FilterKind `json:"kind"`
	Outbound LegRule    `json:"outbound"`
	Return   LegRule    `json:"return"`
}

func NoFilter() TimeFilter {
	return TimeFilter{Kind: FilterNone}
}

func WindowFilter(outbound, ret []Window) TimeFilter {
	return TimeFilter{
		Kind:     FilterWindows,
		Outbound: LegRule{Windows: sortWindows(outbound)},
		Return:   LegRule{Windows: sortWindows(ret)},
	}
}

func CutoffFilter(outboundHour, returnHour *int) TimeFilter {
	return TimeFilter{
		Kind:     FilterCutoff,
		Outbound: LegRule{CutoffHour: outboundHour},
		Return:   LegRule{CutoffHour: returnHour},
	}
}

// DefaultTimeFilter is applied to owners without a saved config.
func DefaultTimeFilter() TimeFilter {
	return WindowFilter(
		[]Window{WindowMorning1, WindowMorning2},
		[]Window{WindowAfternoon1, WindowAfternoon2, WindowNight1},
	)
}

func (f TimeFilter) Validate() error {
	switch f.Kind {
	case "", FilterNone:
		return nil
	case FilterWindows:
		for _, leg := range []LegRule{f.Outbound, f.Return} {
			for _, w := range leg.Windows {
				if !IsValidWindow(string(w)) {
					return fmt.Errorf("unknown window %q", w)
				}
			}
		}
		return nil
	case FilterCutoff:
		for _, leg := range []LegRule{f.Outbound, f.Return} {
			if leg.CutoffHour != nil && (*leg.CutoffHour < 0 || *leg.CutoffHour > 23) {
				return fmt.Errorf("cutoff hour out of range: %d", *leg.CutoffHour)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown filter kind %q", f.Kind)
	}
}

// Describe renders one leg of the filter for status messages.
func (f TimeFilter) Describe(outbound bool) string {
	leg := f.Return
	if outbound {
		leg = f.Outbound
	}

	switch f.Kind {
	case FilterWindows:
		if len(leg.Windows) == 0 {
			return "any time"
		}
		parts := make([]string, 0, len(leg.Windows))
		for _, w := range leg.Windows {
			parts = append(parts, w.String())
		}
		return strings.Join(parts, ", ")
	case FilterCutoff:
		if leg.CutoffHour == nil {
			return "any time"
		}
		if outbound {
			return fmt.Sprintf("departing by %02d:00", *leg.CutoffHour)
		}
		return fmt.Sprintf("departing from %02d:00", *leg.CutoffHour)
	default:
		return "any time"
	}
}

func (f TimeFilter) Value() (driver.Value, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	// string, not []byte, so dbr interpolates a text literal for jsonb
	return string(data), nil
}

func (f *TimeFilter) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*f = NoFilter()
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan time filter: unsupported type %T", value)
	}

	if len(data) == 0 {
		*f = NoFilter()
		return nil
	}
	return json.Unmarshal(data, f)
}

func sortWindows(in []Window) []Window {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[Window]bool, len(in))
	out := make([]Window, 0, len(in))
	for _, w := range in {
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		return WindowHours[out[i]][0] < WindowHours[out[j]][0]
	})
	return out
}
