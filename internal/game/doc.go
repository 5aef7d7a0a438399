// Package game defines the domain model of an Iterated Prisoner's Dilemma
// tournament: moves, signals, strategies, submission sets, turn records and
// match results, together with the payoff table and the per-turn wire codec
// strategies must honor.
//
// # Design Principles
//
//  1. No field that could make a result depend on wall-clock time or scheduling
//  2. Every record that leaves the core has a stable JSON shape
//  3. Identities (strategy digests, match IDs) are content-derived
//
// # Core Types
//
// Strategy: an immutable (owner, language, source) submission.
// TurnRecord: one simultaneous exchange, actual and observed.
// MatchResult: the full ordered turn log plus terminal status.
package game
