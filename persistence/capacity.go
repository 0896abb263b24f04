package persistence

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UnknownSize is shown when the host cannot report storage usage.
const UnknownSize = "unknown"

// WarningPercent is the usage level above which a save reports a capacity
// advisory.
const WarningPercent = 80.0

// CapacityInfo is the storage usage report.
type CapacityInfo struct {
	UsedBytes      int64   `json:"usedBytes"`
	QuotaBytes     int64   `json:"quotaBytes"`
	Percentage     float64 `json:"percentage"`
	UsedFormatted  string  `json:"usedFormatted"`
	QuotaFormatted string  `json:"quotaFormatted"`
}

// Known reports whether the host answered the estimate.
func (c CapacityInfo) Known() bool {
	return c.UsedFormatted != UnknownSize
}

// CapacityInfo asks the estimator for usage and quota. It never fails: an
// unavailable or failing estimator yields a zeroed "unknown" report.
func (e *Engine) CapacityInfo(ctx context.Context) CapacityInfo {
	unknown := CapacityInfo{UsedFormatted: UnknownSize, QuotaFormatted: UnknownSize}
	if e.estimator == nil {
		return unknown
	}

	est, err := e.estimator.Estimate(ctx)
	if err != nil {
		e.logger.Warn("storage estimate unavailable", zap.Error(err))
		return unknown
	}

	return CapacityInfo{
		UsedBytes:      est.UsageBytes,
		QuotaBytes:     est.QuotaBytes,
		Percentage:     Percentage(est.UsageBytes, est.QuotaBytes),
		UsedFormatted:  FormatBytes(est.UsageBytes),
		QuotaFormatted: FormatBytes(est.QuotaBytes),
	}
}

// Percentage returns used/quota*100, or 0 when quota is not positive.
func Percentage(used, quota int64) float64 {
	if quota <= 0 {
		return 0
	}
	p, _ := decimal.NewFromInt(used).
		Div(decimal.NewFromInt(quota)).
		Mul(decimal.NewFromInt(100)).
		Float64()
	return p
}

var byteUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatBytes renders n with binary prefixes and at most two decimals,
// dropping trailing zeros: 0 -> "0 Bytes", 1536 -> "1.5 KB". Sizes beyond
// the largest unit stay in GB.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}

	k := decimal.NewFromInt(1024)
	value := decimal.NewFromInt(n)
	unit := 0
	for unit < len(byteUnits)-1 && value.GreaterThanOrEqual(k) {
		value = value.Div(k)
		unit++
	}
	return value.Round(2).String() + " " + byteUnits[unit]
}
