// Package ledger turns a household's expense and payment records into
// per-member balances and a merged activity feed.
//
// Everything here is a pure function of its arguments. Balances are always
// rebuilt from the full record set instead of being patched incrementally,
// so a recomputation can never observe a stale partial update.
package ledger
