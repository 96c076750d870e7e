package node

import (
	"encoding/json"
	"slices"
)

// Endpoints lists the HTTP paths a node serves.
type Endpoints struct {
	Execute string `json:"execute,omitempty" yaml:"execute,omitempty"`
	Health  string `json:"health,omitempty" yaml:"health,omitempty"`
}

// Metadata describes a model node to the platform.
type Metadata struct {
	ModelID      string    `json:"model_id"`
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Description  string    `json:"description,omitempty"`
	Capabilities []string  `json:"capabilities"`
	Endpoints    Endpoints `json:"endpoints"`
	CostPerCall  *float64  `json:"cost_per_call,omitempty"`
	Tags         []string  `json:"tags,omitempty"`

	// Extra holds top-level fields of the document the type doesn't model.
	// They are kept as decoded and written back unchanged.
	Extra map[string]any `json:"-"`
}

var metadataFields = []string{
	"model_id", "name", "version", "description",
	"capabilities", "endpoints", "cost_per_call", "tags",
}

type plainMetadata Metadata

// MarshalJSON writes the modelled fields followed by Extra.
func (m Metadata) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(plainMetadata(m))
	if err != nil || len(m.Extra) == 0 {
		return data, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for key, value := range m.Extra {
		if slices.Contains(metadataFields, key) {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		fields[key] = raw
	}
	return json.Marshal(fields)
}

// UnmarshalJSON decodes the modelled fields and collects the rest in Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var p plainMetadata
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for key, raw := range fields {
		if slices.Contains(metadataFields, key) {
			continue
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		if p.Extra == nil {
			p.Extra = map[string]any{}
		}
		p.Extra[key] = value
	}
	*m = Metadata(p)
	return nil
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	out := m
	out.Capabilities = slices.Clone(m.Capabilities)
	out.Tags = slices.Clone(m.Tags)
	if m.CostPerCall != nil {
		cost := *m.CostPerCall
		out.CostPerCall = &cost
	}
	if m.Extra != nil {
		out.Extra = cloneValue(m.Extra).(map[string]any)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = cloneValue(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	default:
		return v
	}
}
