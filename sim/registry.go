package sim

import "fmt"

// Registry is the arena that owns every simulated entity. Entities are
// referenced by Handle; slots are never recycled.
type Registry struct {
	epoch uint32
	slots []Actor
	names map[string]Handle
	env   Env
}

// NewRegistry creates an empty registry injecting env into new entities.
func NewRegistry(env Env) *Registry {
	r := &Registry{
		epoch: nextEpoch(),
		names: make(map[string]Handle),
	}
	if env.NameOf == nil {
		env.NameOf = r.nameOf
	}
	r.env = env.withDefaults()
	return r
}

// Make allocates a new entity of type T under a unique name and returns its handle.
//
//	h, err := Make[Server](r, "small-1")
func Make[T any, PT interface {
	*T
	Actor
}](r *Registry, name string) (Handle, error) {
	if _, taken := r.names[name]; taken {
		return Handle{}, fmt.Errorf("%w: %q", ErrNameNotUnique, name)
	}
	actor := PT(new(T))
	h := Handle{index: uint32(len(r.slots)), gen: r.epoch}
	actor.attach(h, name, actor.Kind(), r.env)
	r.slots = append(r.slots, actor)
	r.names[name] = h
	return h, nil
}

// GetActor resolves h and checks that the entity is a T.
// Unknown handles yield ErrNotFound, entities of another type ErrTypeMismatch.
func GetActor[T Actor](r *Registry, h Handle) (T, error) {
	var zero T
	a, err := r.Lookup(h)
	if err != nil {
		return zero, err
	}
	t, ok := a.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s %q (%s)", ErrTypeMismatch, a.Kind(), a.Name(), h)
	}
	return t, nil
}

// Lookup resolves h to its entity.
func (r *Registry) Lookup(h Handle) (Actor, error) {
	if h.IsZero() || h.gen != r.epoch || int(h.index) >= len(r.slots) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	return r.slots[h.index], nil
}

// GetActorHandle returns the handle registered under name.
func (r *Registry) GetActorHandle(name string) (Handle, error) {
	h, ok := r.names[name]
	if !ok {
		return Handle{}, fmt.Errorf("%w: %q", ErrNameNotFound, name)
	}
	return h, nil
}

func (r *Registry) nameOf(h Handle) string {
	a, err := r.Lookup(h)
	if err != nil {
		return h.String()
	}
	return a.Name()
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	return len(r.slots)
}
