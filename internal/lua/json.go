package lua

import (
	"encoding/json"
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// JSONService provides json.encode and json.decode to Lua scripts
type JSONService struct{}

// NewJSONService creates a JSON service
func NewJSONService() *JSONService {
	return &JSONService{}
}

// Register adds the JSON service to the Lua state
// Usage in Lua:
//
//	local doc = json.decode(response.body)
//	local body = json.encode({name = "jane"})
func (s *JSONService) Register(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "encode", L.NewFunction(s.luaEncode))
	L.SetField(mod, "decode", L.NewFunction(s.luaDecode))
	L.SetGlobal("json", mod)
}

func (s *JSONService) luaEncode(L *lua.LState) int {
	data, err := json.Marshal(LuaToGo(L.CheckAny(1)))
	if err != nil {
		return pushError(L, "failed to encode: %v", err)
	}
	L.Push(lua.LString(string(data)))
	return 1
}

func (s *JSONService) luaDecode(L *lua.LState) int {
	var v any
	if err := json.Unmarshal([]byte(L.CheckString(1)), &v); err != nil {
		return pushError(L, "failed to decode: %v", err)
	}
	L.Push(GoToLua(L, v))
	return 1
}

// GoToLua converts a JSON-shaped Go value to a Lua value.
func GoToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case float64:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return lua.LString(val.String())
		}
		return lua.LNumber(f)
	case []string:
		tbl := L.NewTable()
		for _, item := range val {
			tbl.Append(lua.LString(item))
		}
		return tbl
	case []any:
		tbl := L.NewTable()
		for _, item := range val {
			tbl.Append(GoToLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for key, item := range val {
			tbl.RawSetString(key, GoToLua(L, item))
		}
		return tbl
	case map[string]string:
		tbl := L.NewTable()
		for key, item := range val {
			tbl.RawSetString(key, lua.LString(item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// LuaToGo converts a Lua value to a Go value. Tables with a non-empty array
// part become slices, other tables become maps keyed by string.
func LuaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case *lua.LTable:
		if n := val.MaxN(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, LuaToGo(val.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		val.ForEach(func(key, item lua.LValue) {
			if key.Type() == lua.LTString {
				out[key.String()] = LuaToGo(item)
			}
		})
		return out
	default:
		return v.String()
	}
}

// StringList reads a Lua value as a list of strings. A single string is a
// one-element list; nil is empty.
func StringList(v lua.LValue) ([]string, error) {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LString:
		return []string{string(val)}, nil
	case *lua.LTable:
		var out []string
		var bad lua.LValue
		val.ForEach(func(key, item lua.LValue) {
			if s, ok := item.(lua.LString); ok {
				out = append(out, string(s))
				return
			}
			bad = item
		})
		if bad != nil {
			return nil, fmt.Errorf("expected a list of strings, found %s", bad.Type())
		}
		if val.MaxN() == 0 {
			sort.Strings(out)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string or list of strings, got %s", v.Type())
	}
}
