package gamemodule

import (
	"fmt"
	"sync"
)

// Descriptor is what a game module exports at process init — enough for
// the runtime to discover it without any reflection over the module's
// internals.
type Descriptor struct {
	GameType         string
	Engine           Engine
	RoomService      RoomService
	JSONSchema       string // optional, describes Payload shapes for docs/validation
}

var (
	mu          sync.RWMutex
	descriptors = map[string]Descriptor{}
)

// Register installs a module's descriptor. Call once per module at process
// startup (cmd/roomserver/main.go calls each module's own Register after
// constructing it), matching a plain registration-table idiom.
func Register(d Descriptor) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := descriptors[d.GameType]; exists {
		panic(fmt.Sprintf("gamemodule: duplicate registration for game type %q", d.GameType))
	}
	descriptors[d.GameType] = d
}

// Lookup returns the descriptor for a game type, if registered.
func Lookup(gameType string) (Descriptor, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := descriptors[gameType]
	return d, ok
}

// All returns every registered descriptor, used by the scheduler to find
// turn-based engines and by admin listing to enumerate game types.
func All() []Descriptor {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, d)
	}
	return out
}
