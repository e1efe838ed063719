package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// InitMsg is the instantiation request. Count is accepted but unused.
type InitMsg struct {
	Count *uint32 `json:"count"`
}

// HandleMsg is the execute request. Exactly one variant is set.
type HandleMsg struct {
	Remove *struct{} `json:"remove,omitempty"`
}

// QueryMsg is the query request. Exactly one variant is set.
type QueryMsg struct {
	Read *struct{} `json:"read,omitempty"`
}

// ReadResponse answers QueryMsg.Read.
type ReadResponse struct {
	Val bool `json:"val"`
}

// Attribute is one key/value log entry attached to a response.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response is returned by instantiate and execute.
type Response struct {
	Messages []json.RawMessage `json:"messages"`
	Log      []Attribute       `json:"log"`
}

// Env describes the call a contract is running in.
type Env struct {
	BlockHeight uint64    `json:"block_height"`
	Time        time.Time `json:"time"`
	Contract    string    `json:"contract"`
	Sender      string    `json:"sender,omitempty"`
}

func (m *HandleMsg) UnmarshalJSON(data []byte) error {
	variant, err := unmarshalVariant(data, "remove")
	if err != nil {
		return fmt.Errorf("handle msg: %w", err)
	}
	switch variant {
	case "remove":
		m.Remove = &struct{}{}
	}
	return nil
}

func (m *QueryMsg) UnmarshalJSON(data []byte) error {
	variant, err := unmarshalVariant(data, "read")
	if err != nil {
		return fmt.Errorf("query msg: %w", err)
	}
	switch variant {
	case "read":
		m.Read = &struct{}{}
	}
	return nil
}

// unmarshalVariant accepts a unit variant either as a bare string ("remove")
// or as a single-key object whose value is {} or null ({"remove":{}}) and
// returns its name.
func unmarshalVariant(data []byte, known ...string) (string, error) {
	data = bytes.TrimSpace(data)
	var name string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &name); err != nil {
			return "", err
		}
	} else {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", err
		}
		if len(obj) != 1 {
			return "", fmt.Errorf("expected exactly one variant, got %d", len(obj))
		}
		for k, v := range obj {
			name = k
			if !unitValue(v) {
				return "", fmt.Errorf("variant %q takes no fields, got %s", k, v)
			}
		}
	}
	for _, k := range known {
		if k == name {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown variant %q, expected one of %q", name, known)
}

func unitValue(raw json.RawMessage) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	return len(fields) == 0
}
