package scripting

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// DefaultsFunc is the global Lua function consulted for newly discovered items.
const DefaultsFunc = "loot_defaults"

// ItemFacts describes a newly discovered item to the defaults script.
type ItemFacts struct {
	ResourceID string
	Type       string
	Mode       string
	Magazine   bool
	Deployable bool
}

// ItemDefaults is the spawn configuration proposed for a new item.
type ItemDefaults struct {
	ChanceToSpawn int
	MaxSpawnCount int
	Enabled       bool
}

// DefaultsHook runs an operator script's loot_defaults function.
//
// A script receives one table with the fields id, type, mode, magazine,
// deployable, chance, count and enabled. It may return nil to keep the
// proposal or a table overriding any of chance, count and enabled.
//
// DefaultsHook is safe for concurrent use; calls are serialized.
type DefaultsHook struct {
	mu     sync.Mutex
	L      *lua.LState
	limit  int
	logger *zap.Logger
}

// LoadDefaultsHook loads the script at path.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a hook or an error if the script fails to load.
func LoadDefaultsHook(path string, instLimit int, logger *zap.Logger) (*DefaultsHook, error) {
	return newDefaultsHook(instLimit, logger, func(L *lua.LState) error { return L.DoFile(path) }, path)
}

// NewDefaultsHook loads the script from source.
func NewDefaultsHook(name, src string, instLimit int, logger *zap.Logger) (*DefaultsHook, error) {
	return newDefaultsHook(instLimit, logger, func(L *lua.LState) error { return L.DoString(src) }, name)
}

func newDefaultsHook(instLimit int, logger *zap.Logger, load func(*lua.LState) error, name string) (*DefaultsHook, error) {
	L := NewSandboxedState()
	registerModules(L, logger)

	done := withBudget(L, instLimit)
	err := load(L)
	done()
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("scripting: loading %q: %w", name, err)
	}
	return &DefaultsHook{L: L, limit: instLimit, logger: logger}, nil
}

// Defined reports whether the script declares loot_defaults.
func (h *DefaultsHook) Defined() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.L.GetGlobal(DefaultsFunc).Type() == lua.LTFunction
}

// Apply passes facts and the proposal in to the script and returns the
// result. Runtime errors and malformed results are logged and leave the
// proposal unchanged.
//
// Postcondition: 0 <= ChanceToSpawn <= 100 and MaxSpawnCount >= 1 when in satisfies them.
func (h *DefaultsHook) Apply(facts ItemFacts, in ItemDefaults) ItemDefaults {
	h.mu.Lock()
	defer h.mu.Unlock()

	fn := h.L.GetGlobal(DefaultsFunc)
	if fn.Type() != lua.LTFunction {
		return in
	}

	arg := h.L.NewTable()
	h.L.SetField(arg, "id", lua.LString(facts.ResourceID))
	h.L.SetField(arg, "type", lua.LString(facts.Type))
	h.L.SetField(arg, "mode", lua.LString(facts.Mode))
	h.L.SetField(arg, "magazine", lua.LBool(facts.Magazine))
	h.L.SetField(arg, "deployable", lua.LBool(facts.Deployable))
	h.L.SetField(arg, "chance", lua.LNumber(in.ChanceToSpawn))
	h.L.SetField(arg, "count", lua.LNumber(in.MaxSpawnCount))
	h.L.SetField(arg, "enabled", lua.LBool(in.Enabled))

	done := withBudget(h.L, h.limit)
	err := h.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, arg)
	done()
	if err != nil {
		h.logger.Warn("loot_defaults failed",
			zap.String("resource_id", facts.ResourceID),
			zap.Error(err),
		)
		return in
	}
	ret := h.L.Get(-1)
	h.L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return in
	}
	out := in
	if n, ok := tbl.RawGetString("chance").(lua.LNumber); ok {
		out.ChanceToSpawn = int(n)
	}
	if n, ok := tbl.RawGetString("count").(lua.LNumber); ok {
		out.MaxSpawnCount = int(n)
	}
	if b, ok := tbl.RawGetString("enabled").(lua.LBool); ok {
		out.Enabled = bool(b)
	}
	if out.ChanceToSpawn < 0 || out.ChanceToSpawn > 100 || out.MaxSpawnCount < 1 {
		h.logger.Warn("loot_defaults returned out of range values",
			zap.String("resource_id", facts.ResourceID),
			zap.Int("chance", out.ChanceToSpawn),
			zap.Int("count", out.MaxSpawnCount),
		)
		return in
	}
	return out
}

// Close releases the Lua state.
func (h *DefaultsHook) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.L.Close()
}
