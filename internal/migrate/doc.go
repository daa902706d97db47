// Package migrate resolves and executes ordered, idempotent database
// migrations against a persistent applied-migrations ledger.
//
// Two layers compose the core. The Resolver computes, for a direction
// and an optional target identifier, the exact ordered subset of
// migration scripts that must run to move the recorded state to the
// desired state. The Runner executes that plan strictly sequentially,
// persisting a ledger update as each step succeeds, and rejects a
// second run while one is in flight within the same process.
//
// Forward resolution is a set difference between the discovered script
// catalog and the ledger, ascending by name; backward resolution
// replays the ledger in descending order, so a script that no longer
// exists in the catalog can still be rolled back. A backward target
// with no ledger entry resolves to just that target, which recovers
// from a forward run that failed before its entry was recorded.
//
// Persistence, script discovery, script loading, and event delivery
// are collaborators behind the LedgerStore, Catalog, and Notifier
// interfaces; the package never touches the filesystem or a database
// directly.
package migrate
