package utils

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"flight-price-checker/internal/models"
	"flight-price-checker/internal/monitor"
)

// FormatPrice renders a KRW amount with thousands separators, e.g. 118,000원.
func FormatPrice(p int64) string {
	s := strconv.FormatInt(p, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}

	out := sb.String() + "원"
	if neg {
		return "-" + out
	}
	return out
}

// FormatDate turns YYYYMMDD into YYYY.MM.DD.
func FormatDate(d string) string {
	t, err := time.Parse("20060102", d)
	if err != nil {
		return d
	}
	return t.Format("2006.01.02")
}

func formatRoute(p models.SearchParams) string {
	return fmt.Sprintf("%s ✈️ %s  %s \\~ %s",
		EscapeMarkdown(p.Origin),
		EscapeMarkdown(p.Destination),
		EscapeMarkdown(FormatDate(p.DepartDate)),
		EscapeMarkdown(FormatDate(p.ReturnDate)),
	)
}

// FormatPriceAlert is the notification sent when a monitor finds a
// cheaper fare. It has a section per reported minimum.
func FormatPriceAlert(m *models.Monitor, a monitor.Alert, link string) string {
	var sb strings.Builder

	sb.WriteString("🔔 *Price drop\\!*\n\n")
	sb.WriteString(formatRoute(m.SearchParams) + "\n")

	if a.Restricted != nil {
		sb.WriteString("\n🎯 *Within your time filter*\n")
		sb.WriteString(formatDrop(*a.Restricted))
	}
	if a.Overall != nil {
		sb.WriteString("\n📌 *Any time*\n")
		sb.WriteString(formatDrop(*a.Overall))
	}

	if link != "" {
		sb.WriteString(fmt.Sprintf("\n🔗 [Open search](%s)", link))
	}

	return sb.String()
}

func formatDrop(o monitor.Outcome) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("💰 *Now:* %s\n", EscapeMarkdown(FormatPrice(o.New))))
	sb.WriteString(fmt.Sprintf("📉 *Was:* %s \\(−%s\\)\n",
		EscapeMarkdown(FormatPrice(o.Old)),
		EscapeMarkdown(FormatPrice(o.Old-o.New)),
	))

	if o.Best != nil {
		sb.WriteString(fmt.Sprintf("🛫 *Outbound:* %s → %s\n",
			EscapeMarkdown(o.Best.Departure.String()), EscapeMarkdown(o.Best.Arrival.String())))
		sb.WriteString(fmt.Sprintf("🛬 *Return:* %s → %s\n",
			EscapeMarkdown(o.Best.Return.String()), EscapeMarkdown(o.Best.ReturnArr.String())))
	}

	return sb.String()
}

// FormatNoMatch tells the owner that no fare fits the monitor's time
// filter any more.
func FormatNoMatch(m *models.Monitor, link string) string {
	var sb strings.Builder

	sb.WriteString("ℹ️ *No fares match your time filter*\n\n")
	sb.WriteString(formatRoute(m.SearchParams) + "\n\n")
	sb.WriteString(fmt.Sprintf("🛫 %s\n", EscapeMarkdown(m.Filter.Describe(true))))
	sb.WriteString(fmt.Sprintf("🛬 %s\n", EscapeMarkdown(m.Filter.Describe(false))))
	if m.OverallLowest != nil {
		sb.WriteString(fmt.Sprintf("📌 Cheapest at any time: %s\n", EscapeMarkdown(FormatPrice(*m.OverallLowest))))
	}
	sb.WriteString("\nThe monitor keeps running\\. Change the filter for new monitors with /settings\\.\n")

	if link != "" {
		sb.WriteString(fmt.Sprintf("\n🔗 [Open search](%s)", link))
	}

	return sb.String()
}

func FormatMonitorCreated(m *models.Monitor, active, max int) string {
	var sb strings.Builder

	sb.WriteString("✅ *Monitoring started*\n\n")
	sb.WriteString(formatRoute(m.SearchParams) + "\n")
	sb.WriteString(fmt.Sprintf("🛫 %s\n", EscapeMarkdown(m.Filter.Describe(true))))
	sb.WriteString(fmt.Sprintf("🛬 %s\n\n", EscapeMarkdown(m.Filter.Describe(false))))
	sb.WriteString(fmt.Sprintf("_Active monitors: %d/%d_", active, max))

	return sb.String()
}

func formatMonitorLine(i int, m *models.Monitor) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("*%d\\.* %s\n", i, formatRoute(m.SearchParams)))

	if m.LowestPrice != nil {
		sb.WriteString(fmt.Sprintf("   💰 Lowest: %s\n", EscapeMarkdown(FormatPrice(*m.LowestPrice))))
	} else {
		sb.WriteString("   💰 Lowest: not checked yet\n")
	}
	if m.OverallLowest != nil && (m.LowestPrice == nil || *m.OverallLowest != *m.LowestPrice) {
		sb.WriteString(fmt.Sprintf("   📌 Any time: %s\n", EscapeMarkdown(FormatPrice(*m.OverallLowest))))
	}

	if m.LastCheckedAt != nil {
		sb.WriteString(fmt.Sprintf("   🕒 Checked: %s\n", EscapeMarkdown(m.LastCheckedAt.Format("2006-01-02 15:04"))))
	}

	sb.WriteString(fmt.Sprintf("   ⏱ Filter: %s / %s\n",
		EscapeMarkdown(m.Filter.Describe(true)),
		EscapeMarkdown(m.Filter.Describe(false)),
	))

	return sb.String()
}

func FormatMonitorList(monitors []models.Monitor, max int) string {
	if len(monitors) == 0 {
		return FormatNoMonitorsMessage()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 *Your monitors* \\(%d/%d\\)\n\n", len(monitors), max))

	for i := range monitors {
		sb.WriteString(formatMonitorLine(i+1, &monitors[i]))
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatAllMonitors groups every active monitor by owner for admins.
func FormatAllMonitors(monitors []models.Monitor) string {
	if len(monitors) == 0 {
		return "ℹ️ No active monitors"
	}

	byOwner := make(map[int64][]models.Monitor)
	var owners []int64
	for _, m := range monitors {
		if _, ok := byOwner[m.OwnerID]; !ok {
			owners = append(owners, m.OwnerID)
		}
		byOwner[m.OwnerID] = append(byOwner[m.OwnerID], m)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 *Active monitors:* %d across %d users\n\n", len(monitors), len(owners)))

	for _, owner := range owners {
		sb.WriteString(fmt.Sprintf("👤 *%d*\n", owner))
		for i, m := range byOwner[owner] {
			sb.WriteString(formatMonitorLine(i+1, &m))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func FormatFilter(f models.TimeFilter) string {
	var sb strings.Builder

	kind := string(f.Kind)
	if kind == "" {
		kind = string(models.FilterNone)
	}
	sb.WriteString(fmt.Sprintf("*Mode:* %s\n", EscapeMarkdown(kind)))
	sb.WriteString(fmt.Sprintf("🛫 *Outbound:* %s\n", EscapeMarkdown(f.Describe(true))))
	sb.WriteString(fmt.Sprintf("🛬 *Return:* %s\n", EscapeMarkdown(f.Describe(false))))

	return sb.String()
}

func formatPolicy(cfg *models.UserConfig) string {
	switch cfg.NotifyPolicy {
	case models.NotifyThreshold:
		return fmt.Sprintf("when the price drops by at least %s", FormatPrice(cfg.NotifyThreshold))
	case models.NotifyTarget:
		if cfg.NotifyTarget == nil {
			return "when the target price is reached (no target set)"
		}
		return fmt.Sprintf("when the price reaches %s or less", FormatPrice(*cfg.NotifyTarget))
	default:
		return "on every price drop"
	}
}

func formatPriceType(t models.PriceType) string {
	switch t {
	case models.PriceOverall:
		return "cheapest fare at any time"
	case models.PriceBoth:
		return "cheapest fare within the time filter and at any time"
	default:
		return "cheapest fare within the time filter"
	}
}

func FormatSettingsMessage(cfg *models.UserConfig) string {
	var sb strings.Builder

	sb.WriteString("*⚙️ Settings*\n\n")
	sb.WriteString("*Time filter for new monitors*\n")
	sb.WriteString(FormatFilter(cfg.Filter))
	sb.WriteString(fmt.Sprintf("\n🔔 *Notify:* %s\n", EscapeMarkdown(formatPolicy(cfg))))
	sb.WriteString(fmt.Sprintf("🏷 *Watch:* %s\n\n", EscapeMarkdown(formatPriceType(cfg.EffectivePriceType()))))

	names := make([]string, 0, len(models.WindowOptions()))
	for _, w := range models.WindowOptions() {
		names = append(names, w.String())
	}
	sb.WriteString("*Windows:* " + EscapeMarkdown(strings.Join(names, ", ")) + "\n\n")
	sb.WriteString(EscapeMarkdown("/set outbound windows morning1 morning2") + "\n")
	sb.WriteString(EscapeMarkdown("/set return cutoff 15") + "\n")
	sb.WriteString(EscapeMarkdown("/set filter none") + "\n")
	sb.WriteString(EscapeMarkdown("/set notify any | threshold 5000 | target 300000") + "\n")
	sb.WriteString(EscapeMarkdown("/set price restricted | overall | both"))

	return sb.String()
}

func FormatSweepReport(r models.SweepReport) string {
	var sb strings.Builder

	sb.WriteString("🧹 *Retention sweep*\n\n")
	sb.WriteString(fmt.Sprintf("• Expired monitors: %d\n", r.Expired))
	sb.WriteString(fmt.Sprintf("• Deleted monitors: %d\n", r.MonitorsDeleted))
	sb.WriteString(fmt.Sprintf("• Deleted settings: %d\n", r.ConfigsDeleted))
	if len(r.Errors) > 0 {
		sb.WriteString(fmt.Sprintf("• Errors: %d\n", len(r.Errors)))
	}

	return sb.String()
}

func FormatCycleReport(r *models.CycleReport, phase string) string {
	if r == nil {
		return fmt.Sprintf("📊 *Scheduler*\n\nPhase: %s\nNo cycle has completed yet", EscapeMarkdown(phase))
	}

	var sb strings.Builder
	sb.WriteString("📊 *Scheduler*\n\n")
	sb.WriteString(fmt.Sprintf("Phase: %s\n", EscapeMarkdown(phase)))
	sb.WriteString(fmt.Sprintf("Last cycle: %s \\(%s\\)\n",
		EscapeMarkdown(r.StartedAt.Format("2006-01-02 15:04:05")),
		EscapeMarkdown(r.Duration().Round(time.Second).String()),
	))
	sb.WriteString(fmt.Sprintf("Monitors: %d\n", r.Monitors))
	sb.WriteString(formatCounts("Outcomes", r.Outcomes))
	sb.WriteString(formatCounts("Failures", r.Failures))
	sb.WriteString(fmt.Sprintf("Notified: %d, failed: %d\n", r.Notified, r.NotifyErrs))
	if r.Abandoned > 0 {
		sb.WriteString(fmt.Sprintf("Abandoned: %d\n", r.Abandoned))
	}

	return sb.String()
}

func formatCounts(title string, counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	return fmt.Sprintf("%s: %s\n", title, EscapeMarkdown(strings.Join(parts, ", ")))
}

func FormatWelcomeMessage(firstName string) string {
	name := firstName
	if name == "" {
		name = "traveller"
	}

	return fmt.Sprintf(`👋 Hi, *%s*\!

I watch round\-trip fares and tell you when they get cheaper\.

*Commands:*
/monitor ICN NRT 20260401 20260408 \- start watching a trip
/status \- your monitors
/cancel \- stop a monitor
/settings \- time filter and notifications
/help \- help`, EscapeMarkdown(name))
}

func FormatHelpMessage(max int, interval time.Duration) string {
	return fmt.Sprintf(`*📖 Help*

/monitor ORIGIN DEST YYYYMMDD YYYYMMDD \- watch a round trip
/status \- show your monitors and lowest prices
/cancel \- stop one of your monitors
/settings \- show your time filter and notification policy
/set \- change settings, see /settings

You can watch up to %d trips\. Prices are checked every %s\.
New monitors use the time filter from /settings at creation time\.`,
		max, EscapeMarkdown(interval.String()))
}

func FormatNoMonitorsMessage() string {
	return `ℹ️ *You have no active monitors*

Start one with /monitor ORIGIN DEST YYYYMMDD YYYYMMDD`
}

// EscapeMarkdown escapes special characters for Telegram MarkdownV2
func EscapeMarkdown(text string) string {
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"(", "\\(",
		")", "\\)",
		"~", "\\~",
		"`", "\\`",
		">", "\\>",
		"#", "\\#",
		"+", "\\+",
		"-", "\\-",
		"=", "\\=",
		"|", "\\|",
		"{", "\\{",
		"}", "\\}",
		".", "\\.",
		"!", "\\!",
	)

	return replacer.Replace(text)
}
