package scoring

import (
	"fmt"
	"sort"
	"strings"
)

// neutralValue stands in for any signal that could not be computed, keeping
// pairs with partial metadata comparable to fully probed pairs.
const neutralValue = 0.5

// ScoreCard is the explainable result of scoring one candidate pair.
type ScoreCard struct {
	Score     float64
	Positive  map[string]float64
	Penalties map[string]float64
	Rationale string
}

// builder accumulates weighted positive evidence, flat bonuses, and
// penalties.
type builder struct {
	positive  map[string]float64
	weights   map[string]float64
	bonuses   map[string]float64
	penalties map[string]float64
}

func newBuilder() *builder {
	return &builder{
		positive:  make(map[string]float64),
		weights:   make(map[string]float64),
		bonuses:   make(map[string]float64),
		penalties: make(map[string]float64),
	}
}

func (b *builder) add(label string, value, weight float64) {
	b.positive[label] = clamp01(value)
	b.weights[label] = weight
}

func (b *builder) addNeutral(label string, weight float64) {
	b.add(label, neutralValue, weight)
}

// bonus records a fixed addition applied after the weighted average. Bonuses
// surface in the positive map so the rationale stays complete.
func (b *builder) bonus(label string, value float64) {
	b.positive[label] = value
	b.bonuses[label] = value
}

func (b *builder) penalize(label string, value float64) {
	if value <= 0 {
		return
	}
	b.penalties[label] = value
}

// card computes the weighted positive average minus the penalty sum, clamped
// to [0,1], and renders the rationale.
func (b *builder) card() ScoreCard {
	var weightedSum, totalWeight float64
	for label, value := range b.positive {
		if _, isBonus := b.bonuses[label]; isBonus {
			continue
		}
		weight := b.weights[label]
		weightedSum += value * weight
		totalWeight += weight
	}
	score := 0.0
	if totalWeight > 0 {
		score = weightedSum / totalWeight
	}
	for _, bonus := range b.bonuses {
		score += bonus
	}
	for _, penalty := range b.penalties {
		score -= penalty
	}

	return ScoreCard{
		Score:     clamp01(score),
		Positive:  b.positive,
		Penalties: b.penalties,
		Rationale: renderRationale(b.positive, b.penalties),
	}
}

// renderRationale lists sorted label:value positives, then penalties if any.
// Used for debugging and audit output, never for decision logic.
func renderRationale(positive, penalties map[string]float64) string {
	parts := make([]string, 0, len(positive)+len(penalties)+1)
	for _, label := range sortedLabels(positive) {
		parts = append(parts, fmt.Sprintf("%s:%.2f", label, positive[label]))
	}
	if len(penalties) > 0 {
		for _, label := range sortedLabels(penalties) {
			parts = append(parts, fmt.Sprintf("-%s:%.2f", label, penalties[label]))
		}
	}
	return strings.Join(parts, " ")
}

func sortedLabels(values map[string]float64) []string {
	labels := make([]string, 0, len(values))
	for label := range values {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

// similarityRatio returns min/max for two non-negative quantities, neutral
// when either side is unknown.
func similarityRatio(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return neutralValue
	}
	if a > b {
		a, b = b, a
	}
	return a / b
}
