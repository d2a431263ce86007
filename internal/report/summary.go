package report

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/brains/internal/agents"
	"github.com/talgya/brains/internal/learning"
)

// ActionBreakdown formats per-action counts with their share of the total.
func ActionBreakdown(counts []int) string {
	total := 0
	for _, c := range counts {
		total += c
	}
	parts := make([]string, 0, len(counts))
	for a, c := range counts {
		share := 0.0
		if total > 0 {
			share = 100 * float64(c) / float64(total)
		}
		parts = append(parts, fmt.Sprintf("%s %s (%.1f%%)", agents.ActionName(a), humanize.Comma(int64(c)), share))
	}
	return strings.Join(parts, ", ")
}

// TrainSummary describes a finished training run.
func TrainSummary(s learning.TrainStats) string {
	return fmt.Sprintf("trained %s episodes, %s steps; reward per step %.3f; episode reward %.1f ± %.1f\nactions: %s",
		humanize.Comma(int64(s.Episodes)),
		humanize.Comma(int64(s.Steps)),
		s.AvgReward,
		s.RewardMean,
		s.RewardStdDev,
		ActionBreakdown(s.ActionCounts),
	)
}

// EvalSummary describes a greedy evaluation.
func EvalSummary(s learning.EvalStats) string {
	return fmt.Sprintf("evaluated %s episodes; lifetime %.1f ± %.1f ticks; reward per step %.3f\nactions: %s",
		humanize.Comma(int64(s.Episodes)),
		s.AvgLifetime,
		s.LifetimeStdDev,
		s.AvgReward,
		ActionBreakdown(s.ActionCounts),
	)
}
