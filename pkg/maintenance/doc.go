// Package maintenance holds the operator tools: duplicate cleanup for the
// index and a tracking-state reset for the state store. Both run to
// completion and report what they touched; cleanup defaults to dry-run.
package maintenance
