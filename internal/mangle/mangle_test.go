package mangle

import (
	"testing"

	"github.com/bytecast/jtc/internal/model"
)

func TestMangleProgramAssignsUniqueNames(t *testing.T) {
	program := model.NewProgramModel()

	c := model.NewClassModel("com/example/Widget", model.KindClass)
	c.Methods = []*model.MethodModel{
		{Owner: c.Name, Name: "compute", Descriptor: "(I)I"},
		{Owner: c.Name, Name: "compute", Descriptor: "(D)D"},
		{Owner: c.Name, Name: "<init>", Descriptor: "()V"},
	}
	c.Fields = []*model.FieldModel{
		{Owner: c.Name, Name: "count", Type: model.IntT()},
	}
	program.Add(c)

	New().MangleProgram(program)

	if c.Methods[0].EmissionName == c.Methods[1].EmissionName {
		t.Errorf("overloaded methods got identical EmissionName %q", c.Methods[0].EmissionName)
	}
	for _, m := range c.Methods {
		if m.EmissionName == "" {
			t.Errorf("method %s%s has empty EmissionName", m.Name, m.Descriptor)
		}
	}
	if c.Methods[2].EmissionName == "" {
		t.Error("<init> should still get a non-empty EmissionName")
	}
	if c.Fields[0].EmissionName == "" {
		t.Error("field EmissionName should not be empty")
	}
}

func TestSanitizeIdentifierHandlesSeparators(t *testing.T) {
	got := sanitizeIdentifier("com/example/Foo$Bar")
	for _, r := range got {
		if r == '/' || r == '$' || r == '.' {
			t.Fatalf("sanitized identifier %q still contains separator %q", got, r)
		}
	}
}

func TestDescriptorHashDeterministic(t *testing.T) {
	a := descriptorHash("(I)V")
	b := descriptorHash("(I)V")
	if a != b {
		t.Errorf("descriptorHash not deterministic: %q != %q", a, b)
	}
	if len(a) != 8 {
		t.Errorf("len(descriptorHash) = %d, want 8", len(a))
	}
	if descriptorHash("(D)V") == a {
		t.Error("different descriptors hashed to the same suffix")
	}
}
