package storage

// Store is a durable, synchronous key to string store. Implementations
// swallow and log their own I/O errors: a failed read reports the key as
// absent and a failed write is a no-op, so callers treat absence the same
// as "never set".
type Store interface {
	// Get returns the value for key and whether it was present
	Get(key string) (string, bool)

	// Set stores value under key
	Set(key, value string)

	// SetMany stores every pair as a single write; either all pairs are
	// visible to subsequent reads or none are
	SetMany(values map[string]string)

	// Close releases the underlying medium
	Close() error
}
