package secret

import "fmt"

// Registry maps resolver id to Resolver. Registration happens at process
// init (NewRegistry + Register), after which the registry is read-only and
// safe to share by reference across goroutines.
type Registry struct {
	resolvers map[string]Resolver
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[string]Resolver)}
}

// Register adds a resolver, overwriting any previous registration under the
// same id.
func (r *Registry) Register(resolver Resolver) {
	r.resolvers[resolver.ID()] = resolver
}

// ErrUnknownResolver is returned when a SecretSpec names a resolver id that
// was never registered.
type ErrUnknownResolver struct {
	ID string
}

func (e *ErrUnknownResolver) Error() string {
	return fmt.Sprintf("secret: unknown resolver %q", e.ID)
}

// Get returns the resolver for id, or ErrUnknownResolver.
func (r *Registry) Get(id string) (Resolver, error) {
	resolver, ok := r.resolvers[id]
	if !ok {
		return nil, &ErrUnknownResolver{ID: id}
	}
	return resolver, nil
}
