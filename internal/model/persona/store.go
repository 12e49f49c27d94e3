package persona

// Store exposes persona retrieval for HTTP handlers and the chat pipeline.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	Temperature(label string) float32
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the predefined persona list.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier, ignoring case.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	id = Normalize(id)
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// Temperature maps any label to a sampling temperature. Unknown labels get
// FallbackTemperature.
func (s *MemoryStore) Temperature(label string) float32 {
	if p, ok := s.FindByID(label); ok {
		return p.Temperature
	}
	return FallbackTemperature
}
