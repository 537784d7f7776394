package prefz

import "testing"

type codecTestValue struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	codec := JSONCodec{}

	in := codecTestValue{Name: "test", Count: 42}
	data, err := codec.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out codecTestValue
	if err := codec.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if out != in {
		t.Errorf("round trip changed value: %+v != %+v", out, in)
	}
}

func TestJSONCodec_RoundTripScalar(t *testing.T) {
	codec := JSONCodec{}

	data, err := codec.Marshal(10)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out int
	if err := codec.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out != 10 {
		t.Errorf("expected 10, got %d", out)
	}
}

func TestJSONCodec_UnmarshalInvalid(t *testing.T) {
	codec := JSONCodec{}

	var v codecTestValue
	if err := codec.Unmarshal([]byte(`{not valid json}`), &v); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestJSONCodec_ContentType(t *testing.T) {
	codec := JSONCodec{}

	if ct := codec.ContentType(); ct != "application/json" {
		t.Errorf("expected 'application/json', got %q", ct)
	}
}

func TestYAMLCodec_RoundTrip(t *testing.T) {
	codec := YAMLCodec{}

	in := codecTestValue{Name: "yaml", Count: 7}
	data, err := codec.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out codecTestValue
	if err := codec.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if out != in {
		t.Errorf("round trip changed value: %+v != %+v", out, in)
	}
}

func TestYAMLCodec_UnmarshalJSON(t *testing.T) {
	codec := YAMLCodec{}

	// YAML codec should also accept JSON (YAML is a superset of JSON)
	var v codecTestValue
	if err := codec.Unmarshal([]byte(`{"name": "json-compat", "count": 99}`), &v); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if v.Name != "json-compat" {
		t.Errorf("expected name 'json-compat', got %q", v.Name)
	}
}

func TestYAMLCodec_UnmarshalInvalid(t *testing.T) {
	codec := YAMLCodec{}

	var v codecTestValue
	if err := codec.Unmarshal([]byte("name: [unclosed"), &v); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestYAMLCodec_ContentType(t *testing.T) {
	codec := YAMLCodec{}

	if ct := codec.ContentType(); ct != "application/x-yaml" {
		t.Errorf("expected 'application/x-yaml', got %q", ct)
	}
}
