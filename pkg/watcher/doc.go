/*
Package watcher converts raw filesystem notifications and periodic full-tree
walks into a deduplicated stream of file events on the processing queue.

Raw fsnotify notifications are translated and fed to a single dispatcher
goroutine that owns all debounce state: each path has at most one pending
entry whose 5-second timer restarts on every new notification, with deleted
winning over a pending created or modified. Moves arrive as a rename of the
old path plus a create of the new path and decompose into deleted + created.

When a timer fires, the entry is dropped if it went stale or its file
vanished; otherwise it goes through a five-stage deduplication discipline
against the state store (global lock, queued-set membership, recency,
content-address, queue lock) before the JSON event is pushed.

The per-path state machine:

	IDLE ──(notify)──▶ DEBOUNCING ──(timer)──▶ ENQUEUING ──(commit)──▶ LOCKED
	  ▲                     │                       │                    │
	  │                 (new notify)           (drop/dedupe)         (extractor
	  │                     │                       │                 releases)
	  └─────────────────────┴───────────────────────┴────────────────────┘

The global lock is released by the extractor, not here; its 30-minute TTL is
the liveness bound after a crash.
*/
package watcher
