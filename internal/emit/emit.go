// Package emit renders a frozen IR into provider-specific pipeline files
// through a registry of interchangeable Emitter implementations, the same
// registry-of-behavior-objects shape internal/cache uses for its fsCache
// and httpCache backends behind one Cache interface. Emitters and secret
// resolvers are both meant to be open, user-extensible sets.
package emit

import "github.com/cuenv/cuenv/internal/ir"

// Emitter renders an IR document into one provider's pipeline file format.
type Emitter interface {
	FormatName() string
	FileExtension() string
	Description() string
	Validate(doc *ir.IR) error
	Emit(doc *ir.IR) (string, error)
}

// Registry maps format name to Emitter.
type Registry struct {
	emitters map[string]Emitter
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{emitters: make(map[string]Emitter)}
}

// Register adds an emitter, overwriting any previous registration under
// the same format name.
func (r *Registry) Register(e Emitter) {
	r.emitters[e.FormatName()] = e
}

// ErrUnknownFormat is returned when Get names an unregistered format.
type ErrUnknownFormat struct{ Format string }

func (e *ErrUnknownFormat) Error() string { return "emit: unknown format " + e.Format }

// Get returns the emitter registered under name.
func (r *Registry) Get(name string) (Emitter, error) {
	e, ok := r.emitters[name]
	if !ok {
		return nil, &ErrUnknownFormat{Format: name}
	}
	return e, nil
}

// Names returns every registered format name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.emitters))
	for n := range r.emitters {
		names = append(names, n)
	}
	return names
}

// EmitValidated runs Validate before Emit so a malformed document never
// reaches a provider's renderer.
func EmitValidated(e Emitter, doc *ir.IR) (string, error) {
	if err := e.Validate(doc); err != nil {
		return "", err
	}
	return e.Emit(doc)
}
