package interfaces

// TaskRegistry tracks in-flight analyses so a stock is never analyzed
// twice concurrently. Keys are exchange-qualified (e.g. "asx:BHP").
type TaskRegistry interface {
	// TryAcquire marks key as running on behalf of ownerClientID.
	// Returns false if already held.
	TryAcquire(key, ownerClientID string) bool

	// Release frees key. Releasing an unheld key is a no-op.
	Release(key string)

	// Running reports whether key is currently held.
	Running(key string) bool

	// Owner returns the client ID that acquired key, and whether the
	// key is held.
	Owner(key string) (string, bool)

	// ActiveCount returns the number of held keys.
	ActiveCount() int
}
