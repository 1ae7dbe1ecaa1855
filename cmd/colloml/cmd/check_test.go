package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/christophcharles/colloml/pkg/types"
)

func TestLoadSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	content := `
objects:
  Student:
    id: Int
    active: Bool
    groups: "[Int]"
  Room:
    capacity: Int
variables:
  StudentInSlot: [Student, Int]
  RoomUsed: [Room]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	schema, varSchema, err := loadSchema(path)
	if err != nil {
		t.Fatalf("loadSchema: %v", err)
	}

	if !types.Equal(schema["Student"]["id"], types.Int()) {
		t.Errorf("Student.id = %s", schema["Student"]["id"])
	}
	if !types.Equal(schema["Student"]["groups"], types.List(types.Int())) {
		t.Errorf("Student.groups = %s", schema["Student"]["groups"])
	}
	if !types.Equal(varSchema["StudentInSlot"][0], types.Object("Student")) {
		t.Errorf("StudentInSlot[0] = %s", varSchema["StudentInSlot"][0])
	}
	if !types.Equal(varSchema["StudentInSlot"][1], types.Int()) {
		t.Errorf("StudentInSlot[1] = %s", varSchema["StudentInSlot"][1])
	}
}

func TestLoadSchemaRejectsUnknownTypes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	content := "objects:\n  Student:\n    id: Teacher\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := loadSchema(path); err == nil {
		t.Fatal("expected an error for an unknown field type")
	}
}

func TestParseSchemaType(t *testing.T) {
	objects := map[string]bool{"Student": true}

	tests := []struct {
		input string
		want  *types.Type
	}{
		{"Int", types.Int()},
		{"Bool", types.Bool()},
		{"String", types.String()},
		{"Student", types.Object("Student")},
		{"[Int]", types.List(types.Int())},
		{"[[Student]]", types.List(types.List(types.Object("Student")))},
		{"(Int, Bool)", types.Tuple(types.Int(), types.Bool())},
		{"Int?", types.Optional(types.Int())},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSchemaType(tt.input, objects)
			if err != nil {
				t.Fatalf("parseSchemaType(%q): %v", tt.input, err)
			}
			if !types.Equal(got, tt.want) {
				t.Errorf("parseSchemaType(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}

	if _, err := parseSchemaType("Constraint", objects); err == nil {
		t.Error("Constraint should not be allowed in schemas")
	}
}
