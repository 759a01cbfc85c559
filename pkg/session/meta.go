package session

import (
	"encoding/json"
	"fmt"
)

// Meta describes the user an admin is impersonating. Fields the backend
// sends beyond the known ones are kept in Extra so they survive a round trip
// through the store.
type Meta struct {
	UserID   string
	Username string
	Email    string
	FullName string
	Extra    map[string]any
}

// Label returns the best human-readable name for the impersonated user.
func (m *Meta) Label() string {
	switch {
	case m == nil:
		return "Impersonated User"
	case m.Username != "":
		return m.Username
	case m.UserID != "":
		return m.UserID
	default:
		return "Impersonated User"
	}
}

// MarshalJSON flattens Extra into the top-level object.
func (m Meta) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.UserID != "" {
		out["user_id"] = m.UserID
	}
	if m.Username != "" {
		out["username"] = m.Username
	}
	if m.Email != "" {
		out["email"] = m.Email
	}
	if m.FullName != "" {
		out["full_name"] = m.FullName
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both {"user_id": ...} and the backend user shape
// {"id": ...}; ids may be numbers or strings.
func (m *Meta) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = MetaFromMap(raw)
	return nil
}

// MetaFromMap builds a Meta from a decoded JSON object.
func MetaFromMap(raw map[string]any) Meta {
	var m Meta
	take := func(keys ...string) string {
		for _, k := range keys {
			v, ok := raw[k]
			if !ok || v == nil {
				continue
			}
			delete(raw, k)
			switch t := v.(type) {
			case string:
				if t != "" {
					return t
				}
			case float64:
				return fmt.Sprintf("%.0f", t)
			default:
				return fmt.Sprint(t)
			}
		}
		return ""
	}
	m.UserID = take("user_id", "id")
	m.Username = take("username")
	m.Email = take("email")
	m.FullName = take("full_name")
	if len(raw) > 0 {
		m.Extra = raw
	}
	return m
}
