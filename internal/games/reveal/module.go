package reveal

import (
	"log/slog"
	"time"

	"github.com/arcaderun/roomrt/internal/economy"
	"github.com/arcaderun/roomrt/internal/gamemodule"
	"github.com/arcaderun/roomrt/internal/registry"
	"github.com/arcaderun/roomrt/internal/store"
)

// GameType is this module's registered identifier.
const GameType = "reveal"

const lockTTL = 5 * time.Second

// Module backs both gamemodule.Engine and gamemodule.RoomService for the
// reveal game — one struct, two facades, sharing the same store/registry/
// economy handles, the way a single-table game naturally does.
type Module struct {
	store    *store.Store
	registry *registry.Registry
	economy  economy.Service
	logger   *slog.Logger
}

var _ gamemodule.Engine = (*Module)(nil)
var _ gamemodule.RoomService = (*Module)(nil)

// New builds a reveal Module.
func New(st *store.Store, reg *registry.Registry, econ economy.Service, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	return &Module{store: st, registry: reg, economy: econ, logger: logger.With("component", "reveal")}
}

// Register installs m into the process-wide module table. Call once at
// startup after constructing the module with its dependencies.
func Register(m *Module) {
	gamemodule.Register(gamemodule.Descriptor{
		GameType:    GameType,
		Engine:      m,
		RoomService: m,
	})
}
