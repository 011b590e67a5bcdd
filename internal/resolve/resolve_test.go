package resolve

import (
	"testing"

	"github.com/bytecast/jtc/internal/jtcerr"
	"github.com/bytecast/jtc/internal/model"
)

func newObject() *model.ClassModel {
	c := model.NewClassModel("java/lang/Object", model.KindClass)
	return c
}

func TestResolveVTableOverride(t *testing.T) {
	program := model.NewProgramModel()
	program.Add(newObject())

	base := model.NewClassModel("Base", model.KindClass)
	base.SuperName = "java/lang/Object"
	base.Methods = []*model.MethodModel{
		{Owner: "Base", Name: "greet", Descriptor: "()V", VSlot: -1},
	}
	program.Add(base)

	derived := model.NewClassModel("Derived", model.KindClass)
	derived.SuperName = "Base"
	derived.Methods = []*model.MethodModel{
		{Owner: "Derived", Name: "greet", Descriptor: "()V", VSlot: -1},
	}
	program.Add(derived)

	program.EntryClasses = []string{"Derived"}

	if err := Resolve(program, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(derived.VTable) != 1 {
		t.Fatalf("len(VTable) = %d, want 1", len(derived.VTable))
	}
	if derived.VTable[0].Owner != "Derived" {
		t.Errorf("VTable[0].Owner = %q, want Derived (override should replace slot)", derived.VTable[0].Owner)
	}
	if derived.Methods[0].VSlot != base.Methods[0].VSlot {
		t.Errorf("overriding method VSlot = %d, want %d to match base", derived.Methods[0].VSlot, base.Methods[0].VSlot)
	}

	if !derived.Reachable {
		t.Error("Derived should be reachable (entry class)")
	}
	if !base.Reachable {
		t.Error("Base should be reachable (superclass of entry class)")
	}
}

func TestResolveFinalOverrideIsLinkError(t *testing.T) {
	program := model.NewProgramModel()
	program.Add(newObject())

	base := model.NewClassModel("Base", model.KindClass)
	base.SuperName = "java/lang/Object"
	base.Methods = []*model.MethodModel{
		{Owner: "Base", Name: "greet", Descriptor: "()V", AccessFlags: model.AccFinal, VSlot: -1},
	}
	program.Add(base)

	derived := model.NewClassModel("Derived", model.KindClass)
	derived.SuperName = "Base"
	derived.Methods = []*model.MethodModel{
		{Owner: "Derived", Name: "greet", Descriptor: "()V", VSlot: -1},
	}
	program.Add(derived)
	program.EntryClasses = []string{"Derived"}

	err := Resolve(program, nil)
	if err == nil {
		t.Fatal("expected LinkError overriding a final method, got nil")
	}
	multi, ok := err.(*jtcerr.Multi)
	if !ok {
		t.Fatalf("error type = %T, want *jtcerr.Multi", err)
	}
	if multi.Kind != jtcerr.LinkError {
		t.Errorf("Kind = %v, want LinkError", multi.Kind)
	}
}

func TestResolveUnresolvedSuperIsLinkError(t *testing.T) {
	program := model.NewProgramModel()
	orphan := model.NewClassModel("Orphan", model.KindClass)
	orphan.SuperName = "does/not/Exist"
	program.Add(orphan)

	err := Resolve(program, nil)
	if err == nil {
		t.Fatal("expected LinkError for unresolved superclass, got nil")
	}
}

func TestResolveDiamondInterfaceConflict(t *testing.T) {
	program := model.NewProgramModel()
	program.Add(newObject())

	ifaceA := model.NewClassModel("IfaceA", model.KindInterface)
	ifaceA.Methods = []*model.MethodModel{
		{Owner: "IfaceA", Name: "m", Descriptor: "()V", VSlot: -1},
	}
	program.Add(ifaceA)

	ifaceB := model.NewClassModel("IfaceB", model.KindInterface)
	ifaceB.Methods = []*model.MethodModel{
		{Owner: "IfaceB", Name: "m", Descriptor: "()V", VSlot: -1},
	}
	program.Add(ifaceB)

	impl := model.NewClassModel("Impl", model.KindClass)
	impl.SuperName = "java/lang/Object"
	impl.Interfaces = []string{"IfaceA", "IfaceB"}
	program.Add(impl)
	program.EntryClasses = []string{"Impl"}

	// Both interface methods are non-abstract defaults with no class
	// override: this is the diamond case buildInterfaceDispatch must flag.
	ifaceA.Methods[0].AccessFlags = 0
	ifaceB.Methods[0].AccessFlags = 0

	err := Resolve(program, nil)
	if err == nil {
		t.Fatal("expected LinkError for diamond default-method conflict, got nil")
	}
}

// TestResolveInterfaceDefaultNoConflictWithOverride covers the non-diamond
// case: two interfaces declare the same default method, but the class
// overrides it itself, so the class override wins with no LinkError.
func TestResolveInterfaceDefaultNoConflictWithOverride(t *testing.T) {
	program := model.NewProgramModel()
	program.Add(newObject())

	ifaceA := model.NewClassModel("IfaceA", model.KindInterface)
	ifaceA.Methods = []*model.MethodModel{
		{Owner: "IfaceA", Name: "m", Descriptor: "()V", VSlot: -1},
	}
	program.Add(ifaceA)

	ifaceB := model.NewClassModel("IfaceB", model.KindInterface)
	ifaceB.Methods = []*model.MethodModel{
		{Owner: "IfaceB", Name: "m", Descriptor: "()V", VSlot: -1},
	}
	program.Add(ifaceB)

	impl := model.NewClassModel("Impl", model.KindClass)
	impl.SuperName = "java/lang/Object"
	impl.Interfaces = []string{"IfaceA", "IfaceB"}
	impl.Methods = []*model.MethodModel{
		{Owner: "Impl", Name: "m", Descriptor: "()V", VSlot: -1},
	}
	program.Add(impl)
	program.EntryClasses = []string{"Impl"}

	if err := Resolve(program, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
}
