// Package rng provides the deterministic random source used by the
// permutation stages.
package rng

import (
	"context"
	"math/rand"

	"timecourse/ports"
)

// Adapter implements ports.RNG with deterministic, name-derived streams.
type Adapter struct{}

// New creates the deterministic RNG adapter.
func New() *Adapter {
	return &Adapter{}
}

// SeededStream creates a deterministic random number generator for a named
// operation.
func (a *Adapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(int64(hashString(name)) + seed)), nil
}

// Stream creates a deterministic RNG stream for a specific run and stage.
// Identical run, stage, and base seed always reproduce the same draws.
func (a *Adapter) Stream(ctx context.Context, runID, stageName string, baseSeed int64) (*rand.Rand, error) {
	seed := baseSeed
	if runID != "" {
		seed += int64(hashString(runID))
	}
	if stageName != "" {
		seed += int64(hashString(stageName))
	}
	return rand.New(rand.NewSource(seed)), nil
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}

var _ ports.RNG = (*Adapter)(nil)
