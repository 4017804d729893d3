// Package syncer reconciles a local model with the edits it is missing.
//
// A Syncer snapshots the model revision, fetches everything after it from
// the configured provider, and replays the fetched edits through the
// target's remote-apply path in ascending revision order. If a concurrent
// submit moves the revision while a fetch is in flight, the stale batch is
// silently discarded and the cycle retried. Concurrent Synchronize calls
// collapse into the in-flight pass.
//
// Poller runs Synchronize on an interval, retrying failed passes with
// exponential backoff, for integrators that want continuous catch-up.
package syncer
