package resource

import "regexp"

var placeholderRe = regexp.MustCompile(`\{([\w.]+)\}`)

// Render substitutes {key} placeholders from values. Unknown keys render as
// {MISSING:key} so authoring mistakes stay visible.
func Render(text string, values map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := values[key]; ok {
			return v
		}
		return "{MISSING:" + key + "}"
	})
}
