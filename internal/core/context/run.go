// Package context provides run-scoped values extraction.
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunContext identifies a single pipeline invocation.
type RunContext struct {
	RunID     string
	StartedAt time.Time
}

type runContextKey struct{}

type stageKey struct{}

type branchKey struct{}

// WithRun adds RunContext to context.
func WithRun(ctx context.Context, run *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, run)
}

// GetRun returns RunContext from context.
func GetRun(ctx context.Context) *RunContext {
	if v, ok := ctx.Value(runContextKey{}).(*RunContext); ok {
		return v
	}
	return nil
}

// GetRunID returns run ID from context or empty string.
func GetRunID(ctx context.Context) string {
	if r := GetRun(ctx); r != nil {
		return r.RunID
	}
	return ""
}

// NewRunContext creates a RunContext with a time-ordered UUIDv7 id.
func NewRunContext(now time.Time) *RunContext {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &RunContext{
		RunID:     id.String(),
		StartedAt: now,
	}
}

// WithStage marks the pipeline stage currently executing.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// GetStage returns the current stage or empty string.
func GetStage(ctx context.Context) string {
	if s, ok := ctx.Value(stageKey{}).(string); ok {
		return s
	}
	return ""
}

// WithBranch marks the branch being processed.
func WithBranch(ctx context.Context, branch int) context.Context {
	return context.WithValue(ctx, branchKey{}, branch)
}

// GetBranch returns the branch being processed, if any.
func GetBranch(ctx context.Context) (int, bool) {
	b, ok := ctx.Value(branchKey{}).(int)
	return b, ok
}
