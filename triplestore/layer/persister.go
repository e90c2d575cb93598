package layer

// Persister durably stores encoded layer records. PersistLayer must be
// atomic: after an error nothing under name may be readable.
type Persister interface {
	PersistLayer(name Name, data []byte) error
}
