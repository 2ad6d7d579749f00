package plugin

import "math"

// Enabler is implemented by binding arguments carrying enable flag.
type Enabler interface {
	Enabled() bool
}

// EnableFromArg interprets binding argument: absent means enabled, boolean
// is taken as is, Enabler and maps with "enable" key provide the flag,
// anything else means enabled.
func EnableFromArg(arg any) bool {
	switch v := arg.(type) {
	case nil:
		return true
	case bool:
		return v
	case Enabler:
		return v.Enabled()
	case map[string]any:
		if e, ok := v["enable"]; ok {
			return truthy(e)
		}
	case map[string]bool:
		if e, ok := v["enable"]; ok {
			return e
		}
	}
	return true
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return len(x) > 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0 && !math.IsNaN(x)
	}
	return true
}
