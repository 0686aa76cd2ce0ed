package roles

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	luaservices "github.com/project-kessel/edgeid/internal/lua"
)

// LuaSource runs a Lua script to look up roles.
//
// The script must define a function roles(name) returning a list of role
// names, a single role name, or nil. It may also return nil plus an error
// message. The http and json services are available, as is a global config
// table built from LuaSourceConfig.Config.
//
// Example:
//
//	function roles(name)
//	  local resp, err = http.get(config.base_url .. "/users/" .. name)
//	  if resp == nil then return nil, err end
//	  if resp.status == 404 then return {} end
//	  return json.decode(resp.body).roles
//	end
type LuaSource struct {
	script     string
	config     map[string]any
	httpConfig luaservices.HTTPServiceConfig
}

// LuaSourceConfig configures a LuaSource.
type LuaSourceConfig struct {
	Script string

	// Config is exposed to the script as the global "config" table.
	Config map[string]any

	// HTTPConfig configures the script's http service.
	HTTPConfig luaservices.HTTPServiceConfig
}

// NewLuaSource validates the script and creates a Lua role source.
func NewLuaSource(cfg LuaSourceConfig) (*LuaSource, error) {
	if cfg.Script == "" {
		return nil, fmt.Errorf("script is required")
	}

	L := lua.NewState()
	defer L.Close()

	if err := L.DoString(cfg.Script); err != nil {
		return nil, fmt.Errorf("failed to load script: %w", err)
	}
	if L.GetGlobal("roles").Type() != lua.LTFunction {
		return nil, fmt.Errorf("script must define a 'roles' function")
	}

	return &LuaSource{
		script:     cfg.Script,
		config:     cfg.Config,
		httpConfig: cfg.HTTPConfig,
	}, nil
}

// Roles runs the script in a fresh Lua state bound to ctx.
func (s *LuaSource) Roles(ctx context.Context, name string) ([]string, error) {
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	luaservices.NewHTTPServiceWithConfig(s.httpConfig).WithContext(ctx).Register(L)
	luaservices.NewJSONService().Register(L)
	L.SetGlobal("config", luaservices.GoToLua(L, s.configMap()))

	if err := L.DoString(s.script); err != nil {
		return nil, fmt.Errorf("%w: failed to load script: %w", ErrSource, err)
	}

	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal("roles"),
		NRet:    2,
		Protect: true,
	}, lua.LString(name)); err != nil {
		return nil, fmt.Errorf("%w: script execution failed: %w", ErrSource, err)
	}

	ret, msg := L.Get(-2), L.Get(-1)
	L.Pop(2)

	if ret.Type() == lua.LTNil && msg.Type() != lua.LTNil {
		return nil, fmt.Errorf("%w: %s", ErrSource, lua.LVAsString(msg))
	}

	roles, err := luaservices.StringList(ret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSource, err)
	}
	return clean(roles), nil
}

func (s *LuaSource) configMap() map[string]any {
	if s.config == nil {
		return map[string]any{}
	}
	return s.config
}
