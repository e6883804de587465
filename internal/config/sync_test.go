// SPDX-License-Identifier: MPL-2.0

package config

import (
	"reflect"
	"strings"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// These tests keep the Go struct JSON tags and the CUE schema field names in
// step, so a field added on one side only fails CI instead of being silently
// ignored at load time.

func cueFieldNames(t *testing.T, def string) map[string]bool {
	t.Helper()

	schema := cuecontext.New().CompileString(configSchema)
	if schema.Err() != nil {
		t.Fatalf("failed to compile CUE schema: %v", schema.Err())
	}
	val := schema.LookupPath(cue.ParsePath(def))
	if val.Err() != nil {
		t.Fatalf("failed to lookup CUE definition %s: %v", def, val.Err())
	}

	iter, err := val.Fields(cue.Optional(true))
	if err != nil {
		t.Fatalf("failed to iterate CUE fields: %v", err)
	}
	fields := map[string]bool{}
	for iter.Next() {
		fields[strings.TrimSuffix(iter.Selector().String(), "?")] = true
	}
	return fields
}

func goJSONNames(typ reflect.Type) map[string]bool {
	fields := map[string]bool{}
	for i := range typ.NumField() {
		field := typ.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if field.IsExported() && name != "" && name != "-" {
			fields[name] = true
		}
	}
	return fields
}

func TestSchemaSync(t *testing.T) {
	t.Parallel()

	tests := []struct {
		def string
		typ reflect.Type
	}{
		{"#Config", reflect.TypeFor[Config]()},
		{"#PathsConfig", reflect.TypeFor[PathsConfig]()},
		{"#ToolsConfig", reflect.TypeFor[ToolsConfig]()},
		{"#UIConfig", reflect.TypeFor[UIConfig]()},
	}

	for _, tt := range tests {
		t.Run(tt.def, func(t *testing.T) {
			t.Parallel()

			cueFields := cueFieldNames(t, tt.def)
			goFields := goJSONNames(tt.typ)
			for name := range cueFields {
				if !goFields[name] {
					t.Errorf("CUE field %q not found in %s (missing JSON tag)", name, tt.typ.Name())
				}
			}
			for name := range goFields {
				if !cueFields[name] {
					t.Errorf("Go JSON tag %q of %s not found in the CUE schema", name, tt.typ.Name())
				}
			}
		})
	}
}
