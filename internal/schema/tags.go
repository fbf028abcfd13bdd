package schema

import "strings"

// ParseTag parses a dbdef tag into its attributes.
// "type:uuid;primary_key;default:now()" yields {"type": "uuid", "primary_key": "", "default": "now()"}.
// Repeated keys are joined with ";".
func ParseTag(tag string) map[string]string {
	attributes := make(map[string]string)
	if tag == "" {
		return attributes
	}

	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, found := strings.Cut(part, ":")
		if !found {
			attributes[part] = ""
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if existing, ok := attributes[key]; ok {
			attributes[key] = existing + ";" + value
		} else {
			attributes[key] = value
		}
	}

	return attributes
}

func hasFlag(attributes map[string]string, flag string) bool {
	_, ok := attributes[flag]
	return ok
}

// splitList splits a comma separated list, dropping blanks
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
