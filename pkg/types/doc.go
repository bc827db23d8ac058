/*
Package types defines the shared data model of the indexing pipeline: volumes,
file events, file type classification, and document identity.

A FileEvent is the single message schema shared by the work queue and the
thumbnail queue. The deterministic document id (DocumentID) is the SHA-256 of
the logical path, which makes re-indexing an in-place upsert.
*/
package types
