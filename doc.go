// Package tagcache implements a backend-agnostic cache layer with tag-based
// group invalidation. Entries may be written under one or more tags; flushing
// a tag invalidates every entry that carried it in O(1) per tag, without
// enumerating or tracking individual keys.
//
// Components:
//   - store.Store: byte store with TTL (memory, file, redis, bigcache,
//     ristretto, lru, table, composite).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - Cache[V]: the application-facing API (namespacing, default TTL,
//     remember, batch ops, increment/decrement, statistics).
//   - Tagged[V]: the tag overlay built on versioned physical keys.
//
// Keys:
//
//	<prefix>:<key>             - plain entries
//	<prefix>:tagversion:<tag>  - tag version tokens (never expire)
//	<prefix>:tagged:<hash>     - tagged entries (hash over sorted tags,
//	                             their tokens, and the logical key)
//
// Invalidation model: every tagged entry bakes the version tokens of its tags
// into its physical key. Flush replaces a tag's token with a fresh one and
// does nothing else; all keys derived from the old tokens become unreachable,
// so subsequent reads miss. Orphaned bytes are reclaimed by the backend's own
// TTL or eviction, never by this layer.
package tagcache
