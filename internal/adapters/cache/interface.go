package cache

type hitResult[T any] struct {
	data    T
	valid   bool
	claimed bool
}

// Cache where a missing key is claimed by the first caller asking for it.
//
// Other callers see an invalid entry until the claimer sets or deletes it.
type Cache[T any] interface {
	getOrClaim(key string) hitResult[T]
	set(key string, data T)
	delete(key string)
	wait()
}
