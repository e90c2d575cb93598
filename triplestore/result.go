package triplestore

// Result is the outcome of a boundary call. It has exactly three cases:
//
//	Ok(v)     the call succeeded and produced v
//	Empty()   the call succeeded and legitimately produced nothing
//	Fail(err) the call failed
//
// An empty result never implies an error, and a failure never carries a value.
type Result[T any] struct {
	value T
	ok    bool
	err   error
}

// Ok returns a successful result carrying v
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Empty returns a successful result without a value
func Empty[T any]() Result[T] {
	return Result[T]{}
}

// Fail returns a failed result. A nil err is treated as Empty.
func Fail[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Value returns the carried value and whether there was one
func (r Result[T]) Value() (T, bool) {
	return r.value, r.ok
}

// Err returns the failure, or nil for Ok and Empty results
func (r Result[T]) Err() error {
	return r.err
}

// IsOk reports whether the result carries a value
func (r Result[T]) IsOk() bool {
	return r.ok
}

// IsEmpty reports whether the call succeeded without a value
func (r Result[T]) IsEmpty() bool {
	return !r.ok && r.err == nil
}

// IsFailure reports whether the call failed
func (r Result[T]) IsFailure() bool {
	return r.err != nil
}

// Unpack converts the result back to Go's (value, ok, error) convention
func (r Result[T]) Unpack() (T, bool, error) {
	return r.value, r.ok, r.err
}
