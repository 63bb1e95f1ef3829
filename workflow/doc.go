// Package workflow runs reasoning sessions: one SessionRunner per
// question with a wall-clock timeout, a Scheduler that fans batches out
// across a bounded worker pool while preserving input order, and
// evaluators for scoring produced answers against references.
package workflow
