package model

import (
	"encoding/json"
	"testing"
)

func TestRelation_UnmarshalNormalizesShapes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLen  int
		wantName string
	}{
		{"object", `{"id":"c1","name":"Go","slug":"go"}`, 1, "Go"},
		{"single element array", `[{"id":"c1","name":"Go","slug":"go"}]`, 1, "Go"},
		{"multiple elements", `[{"id":"c1","name":"Go","slug":"go"},{"id":"c2","name":"Rust","slug":"rust"}]`, 2, "Go"},
		{"empty array", `[]`, 0, ""},
		{"null", `null`, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Relation[CategoryRef]
			if err := json.Unmarshal([]byte(tt.input), &r); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", r.Len(), tt.wantLen)
			}
			one := r.One()
			if tt.wantName == "" {
				if one != nil {
					t.Errorf("One() = %+v, want nil", one)
				}
				return
			}
			if one == nil || one.Name != tt.wantName {
				t.Errorf("One() = %+v, want name %q", one, tt.wantName)
			}
		})
	}
}

func TestRelation_UnmarshalRejectsScalars(t *testing.T) {
	var r Relation[TagRef]
	if err := json.Unmarshal([]byte(`"go"`), &r); err == nil {
		t.Error("expected error for scalar relation")
	}
}

func TestRelation_InStructField(t *testing.T) {
	// tagsがオブジェクトでも配列でも同じ値になること
	var objectForm, arrayForm PostTagRelation
	if err := json.Unmarshal([]byte(`{"id":"bpt1","tag_id":"t1","tags":{"id":"t1","name":"Go","slug":"go"}}`), &objectForm); err != nil {
		t.Fatalf("object form: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"id":"bpt1","tag_id":"t1","tags":[{"id":"t1","name":"Go","slug":"go"}]}`), &arrayForm); err != nil {
		t.Fatalf("array form: %v", err)
	}

	a, b := objectForm.Tags.One(), arrayForm.Tags.One()
	if a == nil || b == nil || *a != *b {
		t.Errorf("object form %+v and array form %+v should normalize to the same tag", a, b)
	}
}

func TestRelation_MarshalAsSingleObject(t *testing.T) {
	r := NewRelation(CategoryRef{ID: "c1", Name: "Go", Slug: "go"}, CategoryRef{ID: "c2"})
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != `{"id":"c1","name":"Go","slug":"go"}` {
		t.Errorf("Marshal = %s", b)
	}

	empty, err := json.Marshal(Relation[CategoryRef]{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(empty) != "null" {
		t.Errorf("Marshal(empty) = %s, want null", empty)
	}
}
