package persona

import (
	"fmt"
	"strings"
)

// DefaultLabel is used by chat requests that do not name a personality.
const DefaultLabel = "factual"

// FallbackTemperature applies to labels outside the preset table.
const FallbackTemperature float32 = 0.3

// Persona captures a named response style and its sampling temperature.
type Persona struct {
	ID          string  `json:"id"`
	Temperature float32 `json:"temperature"`
	Description string  `json:"description,omitempty"`
}

// Seed provides the built-in personality presets.
func Seed() []Persona {
	return []Persona{
		{
			ID:          "factual",
			Temperature: 0.0,
			Description: "Deterministic, sticks to the source material.",
		},
		{
			ID:          "humorous",
			Temperature: 0.7,
			Description: "Playful phrasing with more varied wording.",
		},
		{
			ID:          "friendly",
			Temperature: 0.5,
			Description: "Warm and conversational.",
		},
	}
}

// Directive returns the system instruction that seeds a session for label.
// The label is embedded verbatim.
func Directive(label string) string {
	return fmt.Sprintf("You are a %s assistant.", label)
}

// Normalize lower-cases a label for lookup and display.
func Normalize(label string) string {
	return strings.ToLower(label)
}
