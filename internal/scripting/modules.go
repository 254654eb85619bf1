package scripting

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// registerModules installs the loot.* helper table into L.
//
// Postcondition: loot.log and loot.contains are defined in L.
func registerModules(L *lua.LState, logger *zap.Logger) {
	mod := L.NewTable()
	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		logger.Info("loot script", zap.String("message", L.CheckString(1)))
		return 0
	}))
	L.SetField(mod, "contains", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(strings.Contains(L.CheckString(1), L.CheckString(2))))
		return 1
	}))
	L.SetGlobal("loot", mod)
}
