package tagcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A stored blob failed to decode and was deleted on read.
	EntryCorrupt(storageKey string)

	// The backend returned an error. op ∈ {"get", "set", "delete", "getmulti",
	// "setmulti", "deletemulti", "increment", "token_read"}.
	BackendUnavailable(op, storageKey string, err error)

	// A tag's version token was replaced (flush, or first creation on write).
	TagTokenRotated(tag string)

	// A token rotation could not be persisted; the tag's entries remain live.
	TagTokenWriteFailed(tag string, err error)

	// The backend has no native atomic increment; the non-atomic emulation ran.
	IncrementEmulated(key string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) EntryCorrupt(string)                      {}
func (NopHooks) BackendUnavailable(string, string, error) {}
func (NopHooks) TagTokenRotated(string)                   {}
func (NopHooks) TagTokenWriteFailed(string, error)        {}
func (NopHooks) IncrementEmulated(string)                 {}
