// Package score converts derivatives sentiment snapshots into directional signals.
package score

import (
	"fmt"
	"strings"

	"daisybot-go/internal/signal"
)

// Scoring thresholds for the additive point system. Each indicator
// contributes independently; the sum is clamped to [-1, 1].
const (
	fundingExtreme   = 0.05 // mean reversion kicks in past this
	fundingBaseline  = 0.1  // mild long bias while funding is unremarkable
	oiChangeExtreme  = 3.0  // percent
	lsRatioCrowded   = 1.8
	lsRatioStretched = 0.6
	liqVolumeHighUSD = 1_000_000_000

	labelCutoff = 0.3
)

// Compute derives a Signal from one Indicators snapshot. Pure and
// deterministic: identical inputs always produce identical scores.
// Missing upstream readings arrive as zero values and degrade the
// result toward neutral instead of failing.
func Compute(symbol string, ind signal.Indicators) signal.Signal {
	var score float64

	// Funding: fade extremes, otherwise assume baseline positive carry.
	switch {
	case ind.FundingRate > fundingExtreme:
		score -= 0.3
	case ind.FundingRate < -fundingExtreme:
		score += 0.3
	default:
		score += fundingBaseline
	}

	// Open interest: fresh positioning is bullish, unwinding bearish.
	switch {
	case ind.OIChangePercent > oiChangeExtreme:
		score += 0.3
	case ind.OIChangePercent < -oiChangeExtreme:
		score -= 0.3
	}

	// Long/short ratio: contrarian when one side is crowded.
	switch {
	case ind.LongShortRatio > lsRatioCrowded:
		score -= 0.3
	case ind.LongShortRatio < lsRatioStretched:
		score += 0.3
	}

	// Heavy liquidations mean a volatile regime worth a small bonus.
	if ind.LiquidationUSD > liqVolumeHighUSD {
		score += 0.1
	}

	score = clamp(score, -1, 1)

	label := signal.Neutral
	if score >= labelCutoff {
		label = signal.Bullish
	} else if score <= -labelCutoff {
		label = signal.Bearish
	}

	return signal.Signal{
		Symbol:          symbol,
		Score:           score,
		Label:           label,
		FundingRate:     ind.FundingRate,
		OIChangePercent: ind.OIChangePercent,
		LongShortRatio:  ind.LongShortRatio,
		LiquidationUSD:  ind.LiquidationUSD,
		Rationale:       rationale(ind, score),
		Ts:              ind.Ts,
	}
}

// rationale builds a trader-friendly explanation from independently
// triggered clauses. Prose thresholds are finer grained than the scoring
// thresholds so the text reacts before the score does.
func rationale(ind signal.Indicators, score float64) string {
	var parts []string

	switch {
	case ind.OIChangePercent > 3:
		parts = append(parts, fmt.Sprintf("strong capital inflow: open interest surged %.1f%% indicating fresh positioning", ind.OIChangePercent))
	case ind.OIChangePercent > 1:
		parts = append(parts, fmt.Sprintf("moderate OI increase (+%.1f%%) shows growing participation", ind.OIChangePercent))
	case ind.OIChangePercent < -3:
		parts = append(parts, fmt.Sprintf("heavy position unwinding: OI dropped %.1f%% suggesting traders are exiting", ind.OIChangePercent))
	case ind.OIChangePercent < -1:
		parts = append(parts, fmt.Sprintf("declining OI (%.1f%%) indicates reduced interest", ind.OIChangePercent))
	}

	fundingPct := ind.FundingRate * 100
	switch {
	case ind.FundingRate > 0.05:
		parts = append(parts, fmt.Sprintf("extremely high funding (%.3f%%), longs paying heavily, potential mean reversion setup", fundingPct))
	case ind.FundingRate > 0.03:
		parts = append(parts, fmt.Sprintf("elevated funding (%.3f%%), market may be overheated on the long side", fundingPct))
	case ind.FundingRate < -0.05:
		parts = append(parts, fmt.Sprintf("deeply negative funding (%.3f%%), shorts paying a premium, bullish contrarian signal", fundingPct))
	case ind.FundingRate < -0.03:
		parts = append(parts, fmt.Sprintf("negative funding (%.3f%%), short squeeze potential building", fundingPct))
	case ind.FundingRate > -0.01 && ind.FundingRate < 0.01:
		parts = append(parts, fmt.Sprintf("balanced funding (%.3f%%), no funding pressure", fundingPct))
	}

	switch {
	case ind.LongShortRatio > 1.8:
		parts = append(parts, fmt.Sprintf("crowded long (L/S %.2f), contrarian short opportunity with liquidation cascade risk", ind.LongShortRatio))
	case ind.LongShortRatio > 1.3:
		parts = append(parts, fmt.Sprintf("long-biased market (L/S %.2f), watch for reversal", ind.LongShortRatio))
	case ind.LongShortRatio < 0.6:
		parts = append(parts, fmt.Sprintf("extreme short positioning (L/S %.2f), contrarian long setup with squeeze potential", ind.LongShortRatio))
	case ind.LongShortRatio < 0.8:
		parts = append(parts, fmt.Sprintf("short-biased (L/S %.2f), bullish contrarian lean", ind.LongShortRatio))
	default:
		parts = append(parts, fmt.Sprintf("balanced positioning (L/S %.2f), no clear directional bias", ind.LongShortRatio))
	}

	if ind.LiquidationUSD > liqVolumeHighUSD {
		parts = append(parts, fmt.Sprintf("high liquidation volume ($%.0fM), elevated volatility expected", ind.LiquidationUSD/1_000_000))
	}

	text := "Market showing neutral conditions with no extreme readings. Waiting for a clearer directional setup."
	if len(parts) > 0 {
		text = strings.Join(parts, ". ") + "."
	}
	return fmt.Sprintf("%s [signal score %.2f]", text, score)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
