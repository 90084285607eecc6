package style

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/umakossiooo/osm-city-pipeline/internal/osmmap"
)

// Runtime hosts a Lua classification hook. The script sees a `city`
// global and may set `city.classify_way` to a function taking a tag
// table and returning a class name ("road", "building", "park",
// "sidewalk") or nil to fall back to the built-in rules.
type Runtime struct {
	L           *lua.LState
	classifyWay lua.LValue
}

// NewRuntime creates a Lua state with the city API registered.
func NewRuntime() *Runtime {
	L := lua.NewState()
	r := &Runtime{L: L}

	city := L.NewTable()
	city.RawSetString("version", lua.LString("1.0.0"))
	for _, class := range []osmmap.Class{
		osmmap.ClassRoad, osmmap.ClassBuilding, osmmap.ClassPark, osmmap.ClassSidewalk,
	} {
		city.RawSetString(class.String(), lua.LString(class.String()))
	}
	L.SetGlobal("city", city)

	return r
}

// Close releases the Lua state.
func (r *Runtime) Close() {
	r.L.Close()
}

// LoadFile executes a hook script and captures its callbacks.
func (r *Runtime) LoadFile(path string) error {
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("style: failed to load Lua hook: %w", err)
	}
	r.extractCallbacks()
	return nil
}

// LoadString executes hook code from a string.
func (r *Runtime) LoadString(code string) error {
	if err := r.L.DoString(code); err != nil {
		return fmt.Errorf("style: failed to load Lua hook: %w", err)
	}
	r.extractCallbacks()
	return nil
}

func (r *Runtime) extractCallbacks() {
	city := r.L.GetGlobal("city")
	if tbl, ok := city.(*lua.LTable); ok {
		r.classifyWay = tbl.RawGetString("classify_way")
	}
}

// ClassifyWay runs the hook for one way's tags. The second return is
// false when the hook declined and the built-in rules should apply.
func (r *Runtime) ClassifyWay(tags map[string]string) (osmmap.Class, bool, error) {
	if r.classifyWay == nil || r.classifyWay.Type() != lua.LTFunction {
		return osmmap.ClassUnclassified, false, nil
	}

	tagTable := r.L.NewTable()
	for k, v := range tags {
		tagTable.RawSetString(k, lua.LString(v))
	}

	if err := r.L.CallByParam(lua.P{
		Fn:      r.classifyWay,
		NRet:    1,
		Protect: true,
	}, tagTable); err != nil {
		return osmmap.ClassUnclassified, false, fmt.Errorf("style: classify_way failed: %w", err)
	}

	ret := r.L.Get(-1)
	r.L.Pop(1)

	if ret == lua.LNil {
		return osmmap.ClassUnclassified, false, nil
	}
	name, ok := ret.(lua.LString)
	if !ok {
		return osmmap.ClassUnclassified, false, fmt.Errorf("style: classify_way returned %s, want string or nil", ret.Type())
	}
	class := osmmap.ClassFromString(string(name))
	if class == osmmap.ClassUnclassified {
		return osmmap.ClassUnclassified, false, fmt.Errorf("style: classify_way returned unknown class %q", string(name))
	}
	return class, true, nil
}
