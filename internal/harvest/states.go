package harvest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/elbkind/feature-hub/internal/registry"
)

// StatesID is the registry id of the serialized state manager.
const StatesID = "s2:serialized-state-manager"

// StatesVersion is the registry version of the serialized state manager.
const StatesVersion = "1.0.0"

// Serializer produces a fragment's state when states are collected.
type Serializer func() (any, error)

// States is the shared serialized-state collector of one render invocation.
// Consumers write to it through the ConsumerStates returned by Bind.
type States struct {
	mu          sync.Mutex
	payloads    map[string]any
	serializers map[string]Serializer
}

// NewStates creates an empty collector.
func NewStates() *States {
	return &States{
		payloads:    make(map[string]any),
		serializers: make(map[string]Serializer),
	}
}

// StatesDefinition returns the registry definition of the serialized state
// manager. Each top-level consumer scope gets its own collector.
func StatesDefinition() *registry.Definition {
	return &registry.Definition{
		ID:      StatesID,
		Version: StatesVersion,
		Create: func(*registry.Environment) (any, error) {
			return NewStates(), nil
		},
	}
}

// Bind returns the view of the collector for one consumer.
func (s *States) Bind(consumerID string) any {
	return &ConsumerStates{states: s, consumerID: consumerID}
}

// RecordState stores payload for fragmentID, replacing any earlier payload or
// serializer.
func (s *States) RecordState(fragmentID string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.serializers, fragmentID)
	s.payloads[fragmentID] = payload
}

// Register stores a serializer for fragmentID, invoked by CollectAll.
func (s *States) Register(fragmentID string, serializer Serializer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.payloads, fragmentID)
	s.serializers[fragmentID] = serializer
}

// CollectAll returns every fragment's payload, invoking registered
// serializers.
func (s *States) CollectAll() (map[string]any, error) {
	s.mu.Lock()
	payloads := make(map[string]any, len(s.payloads)+len(s.serializers))
	for id, p := range s.payloads {
		payloads[id] = p
	}
	serializers := make(map[string]Serializer, len(s.serializers))
	for id, fn := range s.serializers {
		serializers[id] = fn
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(serializers))
	for id := range serializers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p, err := serializers[id]()
		if err != nil {
			return nil, fmt.Errorf("serializing state of %q: %w", id, err)
		}
		payloads[id] = p
	}
	return payloads, nil
}

// SerializeStates returns every state as JSON, encoded as a URI component so
// it can be embedded in a script tag.
func (s *States) SerializeStates() (string, error) {
	states, err := s.CollectAll()
	if err != nil {
		return "", err
	}
	return EncodeStates(states)
}

// EncodeStates encodes collected states the way SerializeStates does.
func EncodeStates(states map[string]any) (string, error) {
	data, err := json.Marshal(states)
	if err != nil {
		return "", fmt.Errorf("encoding serialized states: %w", err)
	}
	return EncodeURIComponent(string(data)), nil
}

// DecodeStates reverses SerializeStates.
func DecodeStates(encoded string) (map[string]any, error) {
	raw, err := url.PathUnescape(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding serialized states: %w", err)
	}
	states := make(map[string]any)
	if err := json.Unmarshal([]byte(raw), &states); err != nil {
		return nil, fmt.Errorf("decoding serialized states: %w", err)
	}
	return states, nil
}

// EncodeURIComponent escapes s like the browser function of the same name, so
// the client can read it with decodeURIComponent.
func EncodeURIComponent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

// ConsumerStates is a consumer's binding of States. Fragments record under
// their own id; the integrator collects everything.
type ConsumerStates struct {
	states     *States
	consumerID string
}

// ConsumerID returns the id the view is bound to.
func (c *ConsumerStates) ConsumerID() string {
	return c.consumerID
}

// RecordState stores payload under fragmentID.
func (c *ConsumerStates) RecordState(fragmentID string, payload any) {
	c.states.RecordState(fragmentID, payload)
}

// Register stores a serializer for the bound consumer.
func (c *ConsumerStates) Register(serializer Serializer) {
	c.states.Register(c.consumerID, serializer)
}

// CollectAll returns every recorded state.
func (c *ConsumerStates) CollectAll() (map[string]any, error) {
	return c.states.CollectAll()
}

// SerializeStates returns every recorded state, encoded for the client.
func (c *ConsumerStates) SerializeStates() (string, error) {
	return c.states.SerializeStates()
}
