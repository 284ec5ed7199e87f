package config

import (
	"reflect"
	"testing"
)

func TestFlatten_Nested(t *testing.T) {
	in := map[string]any{
		"log_level": "info",
		"video": map[string]any{
			"model":   "grok-imagine-0.9",
			"enabled": true,
		},
		"rate_limit": map[string]any{
			"max_calls": 5,
		},
	}
	got := Flatten(in)
	want := map[string]any{
		"log_level":            "info",
		"video.model":          "grok-imagine-0.9",
		"video.enabled":        true,
		"rate_limit.max_calls": 5,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Flatten = %v, want %v", got, want)
	}
}

func TestFlatten_ListsAreLeaves(t *testing.T) {
	in := map[string]any{
		"groups": map[string]any{
			"list": []any{"g1", "g2"},
		},
	}
	got := Flatten(in)
	list, ok := got["groups.list"].([]any)
	if !ok || len(list) != 2 {
		t.Errorf("list should survive flattening as a value, got %v", got)
	}
}

func TestUnflatten_Nested(t *testing.T) {
	in := map[string]any{
		"video.model":   "grok-imagine-0.9",
		"video.enabled": true,
		"log_level":     "info",
	}
	got := Unflatten(in)
	video, ok := got["video"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested video map, got %v", got)
	}
	if video["model"] != "grok-imagine-0.9" || video["enabled"] != true {
		t.Errorf("video map = %v", video)
	}
	if got["log_level"] != "info" {
		t.Errorf("top-level key lost: %v", got)
	}
}

func TestRoundTrip_FlattenUnflatten(t *testing.T) {
	in := map[string]any{
		"data_dir": "/tmp/x",
		"video": map[string]any{
			"base_url":        "https://api.x.ai",
			"timeout_seconds": float64(180),
		},
		"telegram": map[string]any{
			"token": "t",
		},
	}
	got := Unflatten(Flatten(in))
	if !reflect.DeepEqual(got, in) {
		t.Errorf("round trip changed map: %v != %v", got, in)
	}
}

func TestMaskSecrets(t *testing.T) {
	in := map[string]any{
		"video.api_key":  "xai-0123456789",
		"telegram.token": "tok",
		"video.model":    "grok-imagine-0.9",
		"video.enabled":  true,
	}
	got := MaskSecrets(in)
	if got["video.api_key"] != "***6789" {
		t.Errorf("long secret mask = %v", got["video.api_key"])
	}
	if got["telegram.token"] != "***tok" {
		t.Errorf("short secret mask = %v", got["telegram.token"])
	}
	if got["video.model"] != "grok-imagine-0.9" || got["video.enabled"] != true {
		t.Errorf("non-secrets must pass through unchanged: %v", got)
	}
}

func TestMaskSecrets_EmptySecret(t *testing.T) {
	in := map[string]any{"video.api_key": ""}
	got := MaskSecrets(in)
	if got["video.api_key"] != "" {
		t.Errorf("empty secret should stay empty, got %v", got["video.api_key"])
	}
}

func TestIsSecretKey(t *testing.T) {
	if !IsSecretKey("video.api_key") || !IsSecretKey("telegram.token") {
		t.Error("secret keys not recognized")
	}
	if IsSecretKey("video.model") {
		t.Error("video.model is not a secret")
	}
}
