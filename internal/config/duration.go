package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "500ms" or "2s" parse
// directly. yaml.v3 decodes time.Duration only from integer nanoseconds,
// which nobody wants to write in a config file.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler. Accepts Go duration strings
// ("1.5s", "200ms") and bare integers, which are treated as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid duration: expected a scalar value")
	}

	raw := value.Value
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		// A bare number means seconds.
		secs, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		parsed = time.Duration(secs) * time.Second
	}

	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must be non-negative", raw)
	}

	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler, emitting the duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
