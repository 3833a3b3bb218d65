package race

import (
	"log/slog"
	"time"

	"github.com/arcaderun/roomrt/internal/economy"
	"github.com/arcaderun/roomrt/internal/gamemodule"
	"github.com/arcaderun/roomrt/internal/registry"
	"github.com/arcaderun/roomrt/internal/store"
)

// GameType is this module's registered identifier.
const GameType = "race"

const lockTTL = 5 * time.Second

// Module backs both gamemodule.Engine (as gamemodule.TurnBased) and
// gamemodule.RoomService, sharing the same store/registry/economy handles.
type Module struct {
	store    *store.Store
	registry *registry.Registry
	economy  economy.Service
	logger   *slog.Logger
}

var _ gamemodule.TurnBased = (*Module)(nil)
var _ gamemodule.RoomService = (*Module)(nil)

// New builds a race Module.
func New(st *store.Store, reg *registry.Registry, econ economy.Service, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	return &Module{store: st, registry: reg, economy: econ, logger: logger.With("component", "race")}
}

// Register installs m into the process-wide module table.
func Register(m *Module) {
	gamemodule.Register(gamemodule.Descriptor{
		GameType:    GameType,
		Engine:      m,
		RoomService: m,
	})
}

// TurnTimeoutSeconds reports the fixed per-turn deadline.
func (m *Module) TurnTimeoutSeconds() int {
	return int(TurnTimeout.Seconds())
}
