package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gogpu/sdsl/preprocess"
	"github.com/tailscale/hujson"
)

// defineFlag collects -D definitions.
type defineFlag map[string]preprocess.Macro

func (d defineFlag) String() string {
	return strings.Join(slices.Sorted(maps.Keys(d)), ",")
}

func (d defineFlag) Set(def string) error {
	name, m, err := parseDefine(def)
	if err != nil {
		return err
	}
	d[name] = m
	return nil
}

// listFlag collects repeated string flags.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// parseDefine parses NAME, NAME=VALUE or NAME(a,b)=BODY. A bare name
// is defined as 1.
func parseDefine(def string) (string, preprocess.Macro, error) {
	head, value, hasValue := strings.Cut(def, "=")
	if !hasValue {
		value = "1"
	}
	name, params, isFunc := strings.Cut(head, "(")
	if !validName(name) {
		return "", preprocess.Macro{}, fmt.Errorf("invalid macro name in %q", def)
	}
	m := preprocess.Define(value)
	if isFunc {
		list, ok := strings.CutSuffix(params, ")")
		if !ok {
			return "", preprocess.Macro{}, fmt.Errorf("unterminated parameter list in %q", def)
		}
		m.Params = []string{}
		for p := range strings.SplitSeq(list, ",") {
			p = strings.TrimSpace(p)
			if p == "" && list == "" {
				break
			}
			if !validName(p) {
				return "", preprocess.Macro{}, fmt.Errorf("invalid parameter %q in %q", p, def)
			}
			m.Params = append(m.Params, p)
		}
	}
	return name, m, nil
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && '0' <= c && c <= '9':
		default:
			return false
		}
	}
	return true
}

// macroDef is the object form of a macro in a macros file.
type macroDef struct {
	Params []string `json:"params"`
	Value  string   `json:"value"`
}

// loadMacros reads a JSON object of macro definitions. Comments and
// trailing commas are allowed. Values are strings, numbers, booleans or
// {"params": [...], "value": "..."} objects for function-like macros:
//
//	{
//		// lighting
//		"MAX_LIGHTS": 4,
//		"USE_FOG": true,
//		"SQ": {"params": ["x"], "value": "((x) * (x))"},
//	}
func loadMacros(path string) (map[string]preprocess.Macro, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	macros, err := parseMacros(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return macros, nil
}

func parseMacros(data []byte) (map[string]preprocess.Macro, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(std, &raw); err != nil {
		return nil, err
	}
	macros := make(map[string]preprocess.Macro, len(raw))
	for name, msg := range raw {
		if !validName(name) {
			return nil, fmt.Errorf("invalid macro name %q", name)
		}
		m, err := decodeMacro(msg)
		if err != nil {
			return nil, fmt.Errorf("macro %s: %w", name, err)
		}
		macros[name] = m
	}
	return macros, nil
}

func decodeMacro(msg json.RawMessage) (preprocess.Macro, error) {
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return preprocess.Macro{}, err
	}
	switch v := v.(type) {
	case string:
		return preprocess.Define(v), nil
	case float64:
		return preprocess.Define(strconv.FormatFloat(v, 'g', -1, 64)), nil
	case bool:
		if v {
			return preprocess.Define("1"), nil
		}
		return preprocess.Define("0"), nil
	case map[string]any:
		var def macroDef
		if err := json.Unmarshal(msg, &def); err != nil {
			return preprocess.Macro{}, err
		}
		for _, p := range def.Params {
			if !validName(p) {
				return preprocess.Macro{}, fmt.Errorf("invalid parameter %q", p)
			}
		}
		m := preprocess.Define(def.Value)
		if def.Params != nil {
			m.Params = def.Params
		}
		return m, nil
	}
	return preprocess.Macro{}, fmt.Errorf("unsupported value %s", msg)
}
