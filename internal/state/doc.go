// Package state holds the authoritative in-memory snapshot of one signed-in
// session: the current user, their household, its raw records and the
// balances and activity feed derived from them.
//
// Every mutation goes through a single commit step that replaces the
// snapshot, recomputes the derived data from scratch and then notifies each
// subscriber exactly once, in registration order. Subscribers therefore only
// ever observe fully consistent snapshots.
//
// Data refreshes are sequenced: each refresh takes a token, and a response is
// discarded when a refresh issued later has already been applied, or when the
// session signed out or changed household in the meantime.
package state
