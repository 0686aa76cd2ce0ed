package lua

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestJSONService_RoundTrip(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	NewJSONService().Register(L)

	got := runScript(t, L, `
		local doc = json.decode('{"user":"jane","roles":["Reader","Writer"],"active":true}')
		return doc.user .. ":" .. doc.roles[2] .. ":" .. tostring(doc.active) .. ":" .. json.encode(doc.roles)
	`)

	want := `jane:Writer:true:["Reader","Writer"]`
	if got != want {
		t.Errorf("result = %q, want %q", got, want)
	}
}

func TestJSONService_DecodeError(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	NewJSONService().Register(L)

	got := runScript(t, L, `
		local doc, err = json.decode("{not json")
		if doc == nil and err ~= nil then
			return "error"
		end
		return "no-error"
	`)
	if got != "error" {
		t.Errorf("expected decode error, got %q", got)
	}
}

func TestStringList(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	tests := []struct {
		name    string
		script  string
		want    []string
		wantErr bool
	}{
		{"nil", `return nil`, nil, false},
		{"single string", `return "Reader"`, []string{"Reader"}, false},
		{"array", `return {"Reader", "Writer"}`, []string{"Reader", "Writer"}, false},
		{"number", `return 42`, nil, true},
		{"mixed array", `return {"Reader", 1}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := L.DoString(tt.script); err != nil {
				t.Fatalf("script execution failed: %v", err)
			}
			v := L.Get(-1)
			L.Pop(1)

			got, err := StringList(v)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}
