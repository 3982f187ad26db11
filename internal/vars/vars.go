// Package vars resolves ${name} placeholders in task templates.
package vars

import "regexp"

var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// Interpolate replaces every ${name} in template with vars[name]. Names missing
// from vars keep their original ${name} text. Values are inserted verbatim and
// never expanded again.
func Interpolate(template string, vars map[string]string) string {
	if template == "" || len(vars) == 0 {
		return template
	}
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		name := match[2 : len(match)-1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}

// Merge returns a new mapping holding defaults overlaid by overrides.
func Merge(defaults, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
