// Package explore holds the run options shared by every state-space exploration
// in desops, and the Guard that enforces them.
//
// Each expanded state passes through Guard.Step, which is the single
// check-and-abort point for cancellation, deadlines and state budgets.
package explore
