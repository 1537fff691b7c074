package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sleepsift/sleepsift-cli/internal/pipeline"
	"github.com/sleepsift/sleepsift-cli/internal/sleep"
	"github.com/sleepsift/sleepsift-cli/internal/utils"
)

const narrativeSystemPrompt = "You are a sleep health analyst. You explain why a night of sleep " +
	"was flagged as unusual, in plain language a non-expert can act on. Be specific about which " +
	"metrics deviated and in which direction. Do not give medical advice."

// promptTokenBudget caps how much historical context we pack into a single
// explanation request.
const promptTokenBudget = 3000

// NarrativeRequest describes one flagged night together with the window it
// was judged against.
type NarrativeRequest struct {
	Frame       *sleep.Frame
	Day         *sleep.Day
	Model       string
	MaxTokens   int
	Temperature float64
}

// ExplainAnomaly asks the model for a 2-3 sentence explanation of why the
// given day stands out from the rest of the window.
func (c *Client) ExplainAnomaly(ctx context.Context, req NarrativeRequest) (string, error) {
	if req.Frame == nil || req.Day == nil {
		return "", errors.New("narrative request needs a frame and a flagged day")
	}
	prompt := buildNarrativePrompt(req.Frame, req.Day)
	if utils.CountTokens(prompt) > promptTokenBudget {
		prompt = utils.TruncateToTokenLimit(prompt, promptTokenBudget)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	resp, err := c.Generate(ctx, GenerateRequest{
		Model: req.Model,
		Messages: []Message{
			{Role: "system", Content: narrativeSystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// buildNarrativePrompt summarizes each metric's distribution over the window
// (percentiles, mean, spread) and states the flagged day's readings so the
// model can reason about deviation without seeing every raw day.
func buildNarrativePrompt(frame *sleep.Frame, day *sleep.Day) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A night of sleep on %s was flagged as anomalous (outlier score %.3f) "+
		"against a %d-day window.\n\n", day.DateString(), day.OutlierScore, len(frame.Days))

	b.WriteString("Window distribution per metric:\n")
	for _, col := range frame.Columns {
		vals := columnValues(frame, col)
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		mean, std := meanStdOf(vals)
		fmt.Fprintf(&b, "- %s: mean=%.2f sd=%.2f p10=%.2f p25=%.2f p50=%.2f p75=%.2f p90=%.2f\n",
			col, mean, std,
			pipeline.Quantile(vals, 0.10),
			pipeline.Quantile(vals, 0.25),
			pipeline.Quantile(vals, 0.50),
			pipeline.Quantile(vals, 0.75),
			pipeline.Quantile(vals, 0.90))
	}

	b.WriteString("\nFlagged night's readings:\n")
	for _, col := range frame.Columns {
		if v := day.Feature(col); v != nil {
			fmt.Fprintf(&b, "- %s: %.2f\n", col, *v)
		} else {
			fmt.Fprintf(&b, "- %s: not recorded\n", col)
		}
	}

	b.WriteString("\nIn 2-3 sentences, explain which metrics made this night unusual " +
		"compared to the window and what the deviation suggests about sleep quality.")
	return b.String()
}

func columnValues(frame *sleep.Frame, col string) []float64 {
	var vals []float64
	for i := range frame.Days {
		if v := frame.Days[i].Feature(col); v != nil && !math.IsNaN(*v) {
			vals = append(vals, *v)
		}
	}
	return vals
}

func meanStdOf(vals []float64) (mean, std float64) {
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	for _, v := range vals {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(len(vals)))
	return mean, std
}
