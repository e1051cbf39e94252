package normalize

import "strings"

// UnknownName is the display name stored when a patient entry carries no
// usable name parts.
const UnknownName = "Unknown"

// DisplayName joins a given name and a family name into the display form
// stored on the patient row. Missing parts are dropped; if nothing remains
// the result is UnknownName.
func DisplayName(given, family string) string {
	name := strings.TrimSpace(strings.TrimSpace(given) + " " + strings.TrimSpace(family))
	if name == "" {
		return UnknownName
	}
	return name
}
