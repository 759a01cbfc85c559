package session

import (
	"encoding/json"
	"testing"
)

func TestMeta_JSONRoundTrip(t *testing.T) {
	in := Meta{UserID: "9", Username: "carol", Extra: map[string]any{"role": "user"}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Meta
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.UserID != "9" || out.Username != "carol" {
		t.Errorf("out = %+v", out)
	}
	if out.Extra["role"] != "user" {
		t.Errorf("extra role = %v, want user", out.Extra["role"])
	}
}

func TestMeta_Label(t *testing.T) {
	tests := []struct {
		meta *Meta
		want string
	}{
		{nil, "Impersonated User"},
		{&Meta{}, "Impersonated User"},
		{&Meta{UserID: "5"}, "5"},
		{&Meta{UserID: "5", Username: "dave"}, "dave"},
	}
	for _, tt := range tests {
		if got := tt.meta.Label(); got != tt.want {
			t.Errorf("Label(%+v) = %q, want %q", tt.meta, got, tt.want)
		}
	}
}
