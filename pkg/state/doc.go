/*
Package state wraps the Redis-compatible key/value store with the pipeline's
naming conventions and atomic primitives.

All cross-component coordination lives here: the work queues, the queued and
processed sets, the per-path locks, the content-address index and the
thumbnail lookup hash. Lock acquisition is always SET NX EX; no multi-key
transactions are required. Transient connection errors surface to callers as
retryable errors and are never swallowed.
*/
package state
