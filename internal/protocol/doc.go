// Package protocol implements the per-round information rules.
//
// An Engine turns both players' actual moves (and, in round 3, their hints)
// into what each side is allowed to observe, and scores the turn. Scoring
// always uses actual moves. Engines own their random stream; one engine is
// created per match and never shared.
package protocol
