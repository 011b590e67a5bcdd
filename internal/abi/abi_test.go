package abi

import (
	"testing"

	"github.com/bytecast/jtc/internal/model"
)

func TestResolveExactVersion(t *testing.T) {
	s, err := Resolve("v1.0.0")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Alloc == "" {
		t.Error("expected non-empty Alloc symbol")
	}
}

func TestResolveBareVersionNormalizes(t *testing.T) {
	s, err := Resolve("1.0.0")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Version != "v1.0.0" {
		t.Errorf("Version = %q, want v1.0.0", s.Version)
	}
}

func TestResolveUnknownMajorFails(t *testing.T) {
	if _, err := Resolve("v9.0.0"); err == nil {
		t.Fatal("expected error for unknown major version, got nil")
	}
}

func TestResolveInvalidVersionFails(t *testing.T) {
	if _, err := Resolve("not-a-version"); err == nil {
		t.Fatal("expected error for invalid semver string, got nil")
	}
}

func TestBoxSymbolForPrimitives(t *testing.T) {
	s, err := Resolve("v1.0.0")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	box, unbox := s.BoxSymbolFor(model.IntT())
	if box != s.BoxInt || unbox != s.UnboxInt {
		t.Errorf("BoxSymbolFor(int) = (%s, %s), want (%s, %s)", box, unbox, s.BoxInt, s.UnboxInt)
	}
}

func TestBoxSymbolForReferenceTypePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic boxing a reference type")
		}
	}()
	s, _ := Resolve("v1.0.0")
	s.BoxSymbolFor(model.ObjectT("java/lang/String"))
}
