// Package mode owns the active record store and switches it between the
// local-only store and the remote-synced store.
//
// A Controller is in one of four states: Local, SwitchingToRemote, Remote and
// SwitchingToLocal. EnableRemote migrates the local store into the remote one
// and hands off to it; DisableRemote hands back to a freshly opened local
// store without migrating. Only one transition runs at a time; requests made
// while one is in flight are logged and ignored.
//
// Consumers read and write through the Controller, never through a store.
// Reads always hit the store that is active right now. Writes issued during a
// transition are queued and replayed, in issue order, against whichever store
// is active when the transition completes or aborts.
//
// Thread-safety: every Controller method is safe for concurrent use.
package mode
