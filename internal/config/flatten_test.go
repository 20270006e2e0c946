package config

import (
	"reflect"
	"testing"
)

func TestFlatten_Simple(t *testing.T) {
	in := map[string]any{"data_dir": "/tmp", "log_level": "info"}
	out := Flatten(in)
	if !reflect.DeepEqual(out, in) {
		t.Errorf("flat map should be unchanged, got %v", out)
	}
}

func TestFlatten_Nested(t *testing.T) {
	in := map[string]any{
		"server": map[string]any{
			"base_url":    "https://chat.example.com",
			"socket_path": "/ws",
		},
		"log_level": "info",
	}
	out := Flatten(in)
	want := map[string]any{
		"server.base_url":    "https://chat.example.com",
		"server.socket_path": "/ws",
		"log_level":          "info",
	}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("expected %v, got %v", want, out)
	}
}

func TestFlatten_DeeplyNested(t *testing.T) {
	in := map[string]any{
		"a": map[string]any{
			"b": map[string]any{
				"c": 1,
			},
		},
	}
	out := Flatten(in)
	if out["a.b.c"] != 1 {
		t.Errorf("expected a.b.c=1, got %v", out["a.b.c"])
	}
}

func TestFlatten_EmptyMap(t *testing.T) {
	out := Flatten(map[string]any{})
	if len(out) != 0 {
		t.Errorf("expected empty map, got %v", out)
	}
}

func TestUnflatten_Nested(t *testing.T) {
	in := map[string]any{
		"chat.page_size":      30,
		"chat.typing_idle_ms": 2000,
		"log_level":           "info",
	}
	out := Unflatten(in)
	chat, ok := out["chat"].(map[string]any)
	if !ok {
		t.Fatalf("expected chat to be nested map, got %T", out["chat"])
	}
	if chat["page_size"] != 30 {
		t.Errorf("expected page_size=30, got %v", chat["page_size"])
	}
	if out["log_level"] != "info" {
		t.Errorf("expected log_level preserved, got %v", out["log_level"])
	}
}

func TestRoundTrip_FlattenUnflatten(t *testing.T) {
	in := map[string]any{
		"data_dir": "/tmp",
		"server": map[string]any{
			"base_url": "https://chat.example.com",
		},
		"reconnect": map[string]any{
			"max_attempts": 5,
			"multiplier":   2.0,
		},
	}
	out := Unflatten(Flatten(in))
	if !reflect.DeepEqual(out, in) {
		t.Errorf("round trip mismatch:\nwant %v\ngot  %v", in, out)
	}
}

func TestMaskSecrets(t *testing.T) {
	in := map[string]any{
		"auth.password":  "hunter2-secret",
		"auth.user_name": "an",
	}
	out := MaskSecrets(in)
	if out["auth.password"] != "***cret" {
		t.Errorf("expected masked password, got %v", out["auth.password"])
	}
	if out["auth.user_name"] != "an" {
		t.Errorf("non-secret must pass through, got %v", out["auth.user_name"])
	}
}

func TestMaskSecrets_EmptySecret(t *testing.T) {
	out := MaskSecrets(map[string]any{"auth.password": ""})
	if out["auth.password"] != "" {
		t.Errorf("empty secret stays empty, got %v", out["auth.password"])
	}
}

func TestMaskSecrets_ShortSecret(t *testing.T) {
	out := MaskSecrets(map[string]any{"auth.password": "abc"})
	if out["auth.password"] != "***abc" {
		t.Errorf("expected ***abc, got %v", out["auth.password"])
	}
}

func TestIsSecretKey(t *testing.T) {
	if !IsSecretKey("auth.password") {
		t.Error("auth.password is a secret key")
	}
	if IsSecretKey("server.base_url") {
		t.Error("server.base_url is not a secret key")
	}
}
