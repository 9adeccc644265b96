// Package template defines the portable serialized form of a node's filter
// configuration, used by template capture/apply flows and cloning. Other
// tooling crossing this boundary must honor the payload shape; unknown or
// missing fields default-fill on decode.
package template

import (
	"encoding/json"
	"fmt"

	"github.com/loykin/sigsift/internal/registry"
)

// Wire values for the mode field.
const (
	ModeDifference   = "diff"
	ModeIntersection = "inter"
)

// Payload is the template configuration payload. Fields are pointers so an
// absent field is distinguishable from a zero value and can be default-filled
// on apply.
type Payload struct {
	Mode             *string `json:"mode,omitempty"`
	QualitySensitive *bool   `json:"quality_sensitive,omitempty"`
}

// FromConfig captures a full configuration into a payload.
func FromConfig(c registry.Config) Payload {
	m := string(c.Mode)
	qs := c.QualitySensitive
	return Payload{Mode: &m, QualitySensitive: &qs}
}

// Patch converts the payload into a registry patch. Unknown mode strings are
// dropped so they default-fill downstream instead of failing.
func (p Payload) Patch() registry.Patch {
	var out registry.Patch
	if p.Mode != nil {
		if m := registry.Mode(*p.Mode); m.Known() {
			out.Mode = &m
		}
	}
	if p.QualitySensitive != nil {
		qs := *p.QualitySensitive
		out.QualitySensitive = &qs
	}
	return out
}

// Config default-fills the payload into a full configuration.
func (p Payload) Config() registry.Config {
	return p.Patch().Materialized()
}

// Normalize returns a payload with every field present, defaults filled in.
func (p Payload) Normalize() Payload {
	return FromConfig(p.Config())
}

// Encode renders the payload as JSON.
func Encode(p Payload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode template payload: %w", err)
	}
	return b, nil
}

// Decode parses a JSON payload. Unknown fields are ignored; a syntactically
// broken payload is an error, a semantically foreign one is not.
func Decode(b []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return Payload{}, fmt.Errorf("decode template payload: %w", err)
	}
	return p, nil
}
