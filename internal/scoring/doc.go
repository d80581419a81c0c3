// Package scoring converts raw duplicate-candidate signals into explainable
// confidence scores.
//
// A ScoreCard is a weighted average of positive evidence minus accumulated
// penalties, clamped to [0,1], with a sorted label:value rationale string for
// auditing. Missing signals contribute a fixed neutral value so scores stay
// comparable across pairs with partial metadata.
package scoring
