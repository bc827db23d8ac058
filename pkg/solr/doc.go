/*
Package solr is the HTTP client for the Solr-compatible search index.

Upserts go to /update?commit=true as a JSON array; deletes are query-based
XML bodies so a delete by logical path also collapses any stale duplicates.
The extractor, the query API and the maintenance tooling all share this
client.
*/
package solr
