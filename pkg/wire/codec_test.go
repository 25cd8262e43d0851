package wire

import (
	"errors"
	"testing"
)

func TestEncodeDecodeMessage(t *testing.T) {
	msg := New("SetSpeed", map[string]any{
		"speed": 42,
		"unit":  "kph",
	})

	data, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}

	decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}

	if decoded.Type() != "SetSpeed" {
		t.Errorf("Type = %q, want \"SetSpeed\"", decoded.Type())
	}
	if decoded["unit"] != "kph" {
		t.Errorf("unit = %v, want \"kph\"", decoded["unit"])
	}
}

func TestEncodeMessageDeterministic(t *testing.T) {
	msg := New("Probe", map[string]any{
		"b": 2,
		"a": 1,
		"c": 3,
	})

	first, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	second, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	if string(first) != string(second) {
		t.Error("encoding is not deterministic")
	}
}

func TestEncodeMessageMissingType(t *testing.T) {
	msg := Message{"speed": 42}
	if _, err := EncodeMessage(msg); !errors.Is(err, ErrMissingType) {
		t.Errorf("EncodeMessage = %v, want ErrMissingType", err)
	}
}

func TestDecodeMessageMissingType(t *testing.T) {
	data, err := Marshal(map[string]any{"speed": 42})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if _, err := DecodeMessage(data); !errors.Is(err, ErrMissingType) {
		t.Errorf("DecodeMessage = %v, want ErrMissingType", err)
	}
}

func TestDecodeMessageGarbage(t *testing.T) {
	if _, err := DecodeMessage([]byte{0xFF, 0x00, 0x12}); err == nil {
		t.Error("DecodeMessage accepted garbage bytes")
	}
}

func TestDecodeNestedMaps(t *testing.T) {
	msg := New("State", map[string]any{
		"vehicle": map[string]any{
			"pos": map[string]any{"x": 1, "y": 2},
		},
	})
	data, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}

	// Nested maps come back as map[string]any; no interface-keyed maps.
	vehicle, ok := decoded["vehicle"].(map[string]any)
	if !ok {
		t.Fatalf("vehicle decoded as %T, want map[string]any", decoded["vehicle"])
	}
	if _, ok := vehicle["pos"].(map[string]any); !ok {
		t.Fatalf("pos decoded as %T, want map[string]any", vehicle["pos"])
	}
}
