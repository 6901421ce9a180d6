// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"maps"
	goruntime "runtime"
	"slices"
	"strings"
)

// mergeEnv overlays vars on base (KEY=VALUE entries). Overlaid keys replace
// inherited ones; new keys are appended in sorted order.
func mergeEnv(base []string, vars map[string]string) []string {
	if len(vars) == 0 {
		return base
	}

	out := make([]string, 0, len(base)+len(vars))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if hasEnvKey(vars, key) {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		out = append(out, k+"="+vars[k])
	}
	return out
}

// hasEnvKey reports whether key is overlaid. Windows treats variable names
// case-insensitively.
func hasEnvKey(vars map[string]string, key string) bool {
	if _, ok := vars[key]; ok {
		return true
	}
	if goruntime.GOOS != "windows" {
		return false
	}
	for k := range vars {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}
