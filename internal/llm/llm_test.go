package llm

import (
	"testing"
)

func TestExtractJSONObjectPlain(t *testing.T) {
	result, ok := ExtractJSONObject(`{"key": "value", "num": 42}`)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
	if result["num"] != float64(42) {
		t.Errorf("expected num=42, got %v", result["num"])
	}
}

func TestExtractJSONObjectSurroundingProse(t *testing.T) {
	text := "Sure, here is the verdict:\n{\"is_negative\": true, \"severity\": \"high\"}\nLet me know if you need more."
	result, ok := ExtractJSONObject(text)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if result["severity"] != "high" {
		t.Errorf("expected severity='high', got %v", result["severity"])
	}
}

func TestExtractJSONObjectMarkdownFence(t *testing.T) {
	text := "```json\n{\"key\": \"value\"}\n```"
	result, ok := ExtractJSONObject(text)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestExtractJSONObjectNestedBraces(t *testing.T) {
	text := `{"reason": "contains a { stray brace } inside a string", "severity": "low"}`
	result, ok := ExtractJSONObject(text)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if result["severity"] != "low" {
		t.Errorf("expected severity='low', got %v", result["severity"])
	}
}

func TestExtractJSONObjectInvalid(t *testing.T) {
	_, ok := ExtractJSONObject("not json at all")
	if ok {
		t.Error("expected ok=false for text with no JSON object")
	}
}

func TestExtractJSONObjectEmpty(t *testing.T) {
	_, ok := ExtractJSONObject("")
	if ok {
		t.Error("expected ok=false for empty string")
	}
}

func TestExtractJSONObjectUnbalanced(t *testing.T) {
	_, ok := ExtractJSONObject(`{"key": "value"`)
	if ok {
		t.Error("expected ok=false for an unbalanced object")
	}
}
