package paper

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradecore/engine/internal/domain"
	"github.com/tradecore/engine/internal/execution"
)

// MonitorConfig holds the alert thresholds described in spec §4.8.
type MonitorConfig struct {
	SlippageThresholdBps        decimal.Decimal
	VWAPDeviationThreshold      decimal.Decimal
	FailedOrderThreshold        int
	SlowExecutionThresholdMinutes decimal.Decimal
}

// DefaultMonitorConfig matches spec §4.8's stated defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		SlippageThresholdBps:          decimal.NewFromInt(20),
		VWAPDeviationThreshold:        decimal.NewFromFloat(0.01),
		FailedOrderThreshold:          3,
		SlowExecutionThresholdMinutes: decimal.NewFromInt(120),
	}
}

// ExecutionMonitor observes every completed execution and raises alerts
// (spec §4.8).
type ExecutionMonitor struct {
	cfg MonitorConfig

	mu       sync.Mutex
	alerts   []domain.Alert
	observed []execution.RouteResult
}

// NewExecutionMonitor constructs a monitor with the given thresholds.
func NewExecutionMonitor(cfg MonitorConfig) *ExecutionMonitor {
	return &ExecutionMonitor{cfg: cfg}
}

// Observe inspects one completed route result and raises any alerts its
// thresholds call for (spec §4.8 table).
func (m *ExecutionMonitor) Observe(result execution.RouteResult) {
	m.mu.Lock()
	m.observed = append(m.observed, result)
	recent := m.observed
	if len(recent) > 20 {
		recent = recent[len(recent)-20:]
	}
	m.mu.Unlock()

	if result.PreTradeBps.GreaterThan(m.cfg.SlippageThresholdBps) {
		m.raise(domain.SeverityWarning, domain.AlertExcessiveSlippage,
			"estimated slippage exceeded threshold",
			map[string]interface{}{"execution_id": result.Plan.ExecutionID, "bps": result.PreTradeBps.String()})
	}

	if !result.VWAP.DeviationPct.IsZero() {
		abs := result.VWAP.DeviationPct.Abs()
		if abs.GreaterThan(m.cfg.VWAPDeviationThreshold) {
			sev := domain.SeverityWarning
			if abs.GreaterThan(m.cfg.VWAPDeviationThreshold.Mul(decimal.NewFromInt(2))) {
				sev = domain.SeverityCritical
			}
			m.raise(sev, domain.AlertVWAPDeviation,
				"realized VWAP deviation exceeded threshold",
				map[string]interface{}{"execution_id": result.Plan.ExecutionID, "deviation_pct": result.VWAP.DeviationPct.String()})
		}
	}

	failed := 0
	for _, r := range recent {
		failed += r.Plan.CountByStatus(domain.SliceFailed)
	}
	if failed >= m.cfg.FailedOrderThreshold {
		m.raise(domain.SeverityWarning, domain.AlertFailedOrders,
			"failed slice count in recent executions reached threshold",
			map[string]interface{}{"failed": failed})
	}

	if result.Plan.End != nil {
		duration := result.Plan.End.Sub(result.Plan.Start)
		threshold, _ := m.cfg.SlowExecutionThresholdMinutes.Float64()
		if duration.Minutes() > threshold {
			m.raise(domain.SeverityWarning, domain.AlertSlowExecution,
				"execution took longer than threshold",
				map[string]interface{}{"execution_id": result.Plan.ExecutionID, "minutes": duration.Minutes()})
		}
	}
}

func (m *ExecutionMonitor) raise(sev domain.Severity, kind domain.AlertKind, message string, details map[string]interface{}) {
	alert := domain.Alert{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Severity:  sev,
		Kind:      kind,
		Message:   message,
		Details:   details,
	}
	m.mu.Lock()
	m.alerts = append(m.alerts, alert)
	m.mu.Unlock()
}

// GetActiveAlerts returns unacknowledged alerts, optionally filtered by
// severity (zero value = all severities).
func (m *ExecutionMonitor) GetActiveAlerts(severity domain.Severity) []domain.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Alert
	for _, a := range m.alerts {
		if a.Acknowledged {
			continue
		}
		if severity != 0 && a.Severity != severity {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Acknowledge marks an alert as acknowledged by ID.
func (m *ExecutionMonitor) Acknowledge(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.alerts {
		if m.alerts[i].ID == id {
			m.alerts[i].Acknowledged = true
			return true
		}
	}
	return false
}

// DailySummary aggregates one day's executions.
type DailySummary struct {
	Date            time.Time
	ExecutionCount  int
	ExecutedQty     int64
	FailedSlices    int
	AlertCount      int
	AvgSlippageBps  decimal.Decimal
}

// GetDailySummary aggregates executions whose plan started on the given
// date (UTC calendar day); date zero value means today.
func (m *ExecutionMonitor) GetDailySummary(date time.Time) DailySummary {
	if date.IsZero() {
		date = time.Now().UTC()
	}
	y, mo, d := date.Date()

	m.mu.Lock()
	defer m.mu.Unlock()

	summary := DailySummary{Date: time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)}
	sumBps := decimal.Zero
	for _, r := range m.observed {
		ry, rmo, rd := r.Plan.Start.UTC().Date()
		if ry != y || rmo != mo || rd != d {
			continue
		}
		summary.ExecutionCount++
		summary.ExecutedQty += r.Plan.ExecutedQuantity()
		summary.FailedSlices += r.Plan.CountByStatus(domain.SliceFailed)
		sumBps = sumBps.Add(r.PreTradeBps)
	}
	if summary.ExecutionCount > 0 {
		summary.AvgSlippageBps = sumBps.Div(decimal.NewFromInt(int64(summary.ExecutionCount)))
	}
	for _, a := range m.alerts {
		ay, amo, ad := a.Timestamp.Date()
		if ay == y && amo == mo && ad == d {
			summary.AlertCount++
		}
	}
	return summary
}

// Dashboard is a point-in-time view across all observed executions.
type Dashboard struct {
	TotalExecutions int
	TotalExecuted   int64
	TotalFailed     int
	ActiveAlerts    int
	QualityScore    int
	QualityGrade    string
}

// GetPerformanceDashboard aggregates everything observed so far.
func (m *ExecutionMonitor) GetPerformanceDashboard() Dashboard {
	m.mu.Lock()
	observed := make([]execution.RouteResult, len(m.observed))
	copy(observed, m.observed)
	active := 0
	for _, a := range m.alerts {
		if !a.Acknowledged {
			active++
		}
	}
	m.mu.Unlock()

	d := Dashboard{ActiveAlerts: active}
	for _, r := range observed {
		d.TotalExecutions++
		d.TotalExecuted += r.Plan.ExecutedQuantity()
		d.TotalFailed += r.Plan.CountByStatus(domain.SliceFailed)
	}
	d.QualityScore, d.QualityGrade = m.qualityScore(observed, active)
	return d
}

// GetExecutionQualityScore computes the weighted quality score and letter
// grade described in spec §4.8 (success 40, slippage 30, speed 20, alerts
// 10; A-F by 10-point bands).
func (m *ExecutionMonitor) GetExecutionQualityScore() (int, string) {
	m.mu.Lock()
	observed := make([]execution.RouteResult, len(m.observed))
	copy(observed, m.observed)
	active := 0
	for _, a := range m.alerts {
		if !a.Acknowledged {
			active++
		}
	}
	m.mu.Unlock()
	return m.qualityScore(observed, active)
}

func (m *ExecutionMonitor) qualityScore(observed []execution.RouteResult, activeAlerts int) (int, string) {
	if len(observed) == 0 {
		return 0, "F"
	}

	var totalSlices, failedSlices int
	slowCount := 0
	slippageSum := 0.0
	for _, r := range observed {
		totalSlices += len(r.Plan.Slices)
		failedSlices += r.Plan.CountByStatus(domain.SliceFailed)
		bps, _ := r.PreTradeBps.Float64()
		slippageSum += bps
		if r.Plan.End != nil && r.Plan.End.Sub(r.Plan.Start).Minutes() > 120 {
			slowCount++
		}
	}

	successRate := 1.0
	if totalSlices > 0 {
		successRate = 1.0 - float64(failedSlices)/float64(totalSlices)
	}
	avgSlippage := slippageSum / float64(len(observed))
	slippageScore := 1.0 - avgSlippage/100.0
	if slippageScore < 0 {
		slippageScore = 0
	}
	speedScore := 1.0 - float64(slowCount)/float64(len(observed))
	alertScore := 1.0
	if activeAlerts > 0 {
		alertScore = 1.0 / float64(1+activeAlerts)
	}

	weighted := successRate*40 + slippageScore*30 + speedScore*20 + alertScore*10
	score := int(weighted)

	grade := "F"
	switch {
	case score >= 90:
		grade = "A"
	case score >= 80:
		grade = "B"
	case score >= 70:
		grade = "C"
	case score >= 60:
		grade = "D"
	}
	return score, grade
}

// ClearOldData drops observed executions and acknowledged alerts older
// than the given number of days.
func (m *ExecutionMonitor) ClearOldData(days int) {
	cutoff := time.Now().AddDate(0, 0, -days)

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.observed[:0]
	for _, r := range m.observed {
		if r.Plan.Start.After(cutoff) {
			kept = append(kept, r)
		}
	}
	m.observed = kept

	var keptAlerts []domain.Alert
	for _, a := range m.alerts {
		if !a.Acknowledged || a.Timestamp.After(cutoff) {
			keptAlerts = append(keptAlerts, a)
		}
	}
	m.alerts = keptAlerts
}
