package emit

import (
	"strings"
	"testing"

	"github.com/bytecast/jtc/internal/abi"
	"github.com/bytecast/jtc/internal/lower"
	"github.com/bytecast/jtc/internal/model"
)

func testSymbols(t *testing.T) abi.Symbols {
	t.Helper()
	s, err := abi.Resolve("v1.1.0")
	if err != nil {
		t.Fatalf("abi.Resolve: %v", err)
	}
	return s
}

// TestRenderBoxedBoxesPrimitiveIntoReferenceField covers spec.md §6's
// boxing requirement at the field-store sink: storing an int-typed
// expression into an Object-typed field must go through the ABI's BoxInt
// symbol, not a raw unboxed store.
func TestRenderBoxedBoxesPrimitiveIntoReferenceField(t *testing.T) {
	e := &Emitter{Symbols: testSymbols(t)}
	got := e.renderBoxed(lower.Const{Value: int32(3), Type: model.IntT()}, model.ObjectT("java/lang/Object"))
	if !strings.Contains(got, e.Symbols.BoxInt) {
		t.Errorf("renderBoxed(int->Object) = %q, want it to call %s", got, e.Symbols.BoxInt)
	}
}

func TestRenderBoxedLeavesReferenceToReferenceAlone(t *testing.T) {
	e := &Emitter{Symbols: testSymbols(t)}
	arg := lower.ThisRef{Type: model.ObjectT("Widget")}
	got := e.renderBoxed(arg, model.ObjectT("java/lang/Object"))
	if strings.Contains(got, "_box_") {
		t.Errorf("renderBoxed(ref->ref) = %q, should not box a reference value", got)
	}
	if got != "self" {
		t.Errorf("renderBoxed(ref->ref) = %q, want unmodified render of ThisRef", got)
	}
}

func TestRenderBoxedLeavesPrimitiveToPrimitiveAlone(t *testing.T) {
	e := &Emitter{Symbols: testSymbols(t)}
	got := e.renderBoxed(lower.Const{Value: int32(3), Type: model.IntT()}, model.IntT())
	if got != "3" {
		t.Errorf("renderBoxed(int->int) = %q, want \"3\" unboxed", got)
	}
}

// TestLiteralForInternsStringConstant covers spec.md §6's string-interning
// requirement: an ldc'd String constant must route through StringIntern.
func TestLiteralForInternsStringConstant(t *testing.T) {
	e := &Emitter{Symbols: testSymbols(t)}
	got := e.literalFor(lower.Const{Value: "hello", Type: model.ObjectT("java/lang/String")})
	want := e.Symbols.StringIntern + "(\"hello\")"
	if got != want {
		t.Errorf("literalFor(String const) = %q, want %q", got, want)
	}
}

func TestLiteralForClassConstantIsNotInterned(t *testing.T) {
	e := &Emitter{Symbols: testSymbols(t)}
	got := e.literalFor(lower.Const{Value: "com/example/Widget", Type: model.ObjectT("java/lang/Class")})
	if strings.Contains(got, e.Symbols.StringIntern) {
		t.Errorf("literalFor(Class const) = %q, should not intern a class literal", got)
	}
}

// TestRenderStatementEmitsEndCatch covers the CatchBegin/CatchEnd bracket:
// closing a handler region must call the ABI's EndCatch symbol.
func TestRenderStatementEmitsEndCatch(t *testing.T) {
	e := &Emitter{Symbols: testSymbols(t)}
	var b strings.Builder
	e.renderStatement(&b, model.NewClassModel("Widget", model.KindClass), &model.MethodModel{}, lower.CatchEnd{HandlerID: 9}, "")
	if !strings.Contains(b.String(), e.Symbols.EndCatch) {
		t.Errorf("renderStatement(CatchEnd) = %q, want it to call %s", b.String(), e.Symbols.EndCatch)
	}
}

// TestRenderStatementReturnBoxesPrimitiveForObjectReturnType covers the
// Return sink: a method declared to return Object boxes a primitive value.
func TestRenderStatementReturnBoxesPrimitiveForObjectReturnType(t *testing.T) {
	e := &Emitter{Symbols: testSymbols(t)}
	m := &model.MethodModel{Owner: "Widget", Name: "box", Descriptor: "()Ljava/lang/Object;", Return: model.ObjectT("java/lang/Object")}
	var b strings.Builder
	e.renderStatement(&b, model.NewClassModel("Widget", model.KindClass), m, lower.Return{Value: lower.Const{Value: int32(5), Type: model.IntT()}}, "")
	if !strings.Contains(b.String(), e.Symbols.BoxInt) {
		t.Errorf("renderStatement(Return int as Object) = %q, want it to call %s", b.String(), e.Symbols.BoxInt)
	}
}

// TestRenderInvokeVirtualUsesResolvedVSlotNotZero covers dispatch through
// a method's actual v-table slot: a class declaring more than one virtual
// method must not dispatch every call through slot 0.
func TestRenderInvokeVirtualUsesResolvedVSlotNotZero(t *testing.T) {
	owner := model.NewClassModel("Widget", model.KindClass)
	owner.Methods = []*model.MethodModel{
		{Owner: "Widget", Name: "first", Descriptor: "()V", VSlot: 0},
		{Owner: "Widget", Name: "second", Descriptor: "()V", VSlot: 1},
	}
	program := model.NewProgramModel()
	program.Add(owner)

	e := &Emitter{Symbols: testSymbols(t), program: program}
	got := e.renderInvoke(lower.InvokeExpr{
		Kind:       lower.InvokeVirtual,
		Owner:      "Widget",
		Name:       "second",
		Descriptor: "()V",
		Receiver:   lower.ThisRef{Type: model.ObjectT("Widget")},
	})
	if !strings.Contains(got, e.Symbols.VirtualDispatch+"(self, 1)") {
		t.Errorf("renderInvoke(second) = %q, want dispatch through slot 1", got)
	}
}

// TestRenderInvokeVirtualResolvesSlotFromSuperclass covers an invokevirtual
// whose statically-declared owner is an ancestor that never overrode the
// method: the slot must still resolve by walking up the superclass chain.
func TestRenderInvokeVirtualResolvesSlotFromSuperclass(t *testing.T) {
	base := model.NewClassModel("Base", model.KindClass)
	base.Methods = []*model.MethodModel{
		{Owner: "Base", Name: "greet", Descriptor: "()V", VSlot: 2},
	}
	program := model.NewProgramModel()
	program.Add(base)

	e := &Emitter{Symbols: testSymbols(t), program: program}
	got := e.renderInvoke(lower.InvokeExpr{
		Kind:       lower.InvokeVirtual,
		Owner:      "Base",
		Name:       "greet",
		Descriptor: "()V",
		Receiver:   lower.ThisRef{Type: model.ObjectT("Base")},
	})
	if !strings.Contains(got, e.Symbols.VirtualDispatch+"(self, 2)") {
		t.Errorf("renderInvoke(greet) = %q, want dispatch through slot 2", got)
	}
}

// TestRenderInvokeVirtualEmitsAssertionWhenEnabled covers --emit-assertions
// wiring: the rendered call must assert the resolved slot is non-negative.
func TestRenderInvokeVirtualEmitsAssertionWhenEnabled(t *testing.T) {
	owner := model.NewClassModel("Widget", model.KindClass)
	owner.Methods = []*model.MethodModel{
		{Owner: "Widget", Name: "run", Descriptor: "()V", VSlot: 3},
	}
	program := model.NewProgramModel()
	program.Add(owner)

	e := &Emitter{Symbols: testSymbols(t), program: program, EmitAssertions: true}
	got := e.renderInvoke(lower.InvokeExpr{
		Kind:       lower.InvokeVirtual,
		Owner:      "Widget",
		Name:       "run",
		Descriptor: "()V",
		Receiver:   lower.ThisRef{Type: model.ObjectT("Widget")},
	})
	if !strings.Contains(got, "assert(3 >= 0)") {
		t.Errorf("renderInvoke with EmitAssertions = %q, want an assert(3 >= 0) guard", got)
	}
}

func TestRenderInvokeVirtualOmitsAssertionByDefault(t *testing.T) {
	owner := model.NewClassModel("Widget", model.KindClass)
	owner.Methods = []*model.MethodModel{
		{Owner: "Widget", Name: "run", Descriptor: "()V", VSlot: 3},
	}
	program := model.NewProgramModel()
	program.Add(owner)

	e := &Emitter{Symbols: testSymbols(t), program: program}
	got := e.renderInvoke(lower.InvokeExpr{
		Kind:       lower.InvokeVirtual,
		Owner:      "Widget",
		Name:       "run",
		Descriptor: "()V",
		Receiver:   lower.ThisRef{Type: model.ObjectT("Widget")},
	})
	if strings.Contains(got, "assert") {
		t.Errorf("renderInvoke without EmitAssertions = %q, want no assert guard", got)
	}
}

// TestRenderStatementFieldStoreBoxesPrimitiveForObjectField covers the
// FieldStore sink, resolving the declared field type from e.program.
func TestRenderStatementFieldStoreBoxesPrimitiveForObjectField(t *testing.T) {
	owner := model.NewClassModel("Widget", model.KindClass)
	owner.Fields = []*model.FieldModel{
		{Owner: "Widget", Name: "boxed", EmissionName: "Widget_boxed", Type: model.ObjectT("java/lang/Object"), IsStatic: true},
	}
	program := model.NewProgramModel()
	program.Add(owner)

	e := &Emitter{Symbols: testSymbols(t), program: program}
	var b strings.Builder
	stmt := lower.FieldStore{Owner: "Widget", Name: "boxed", Static: true, Value: lower.Const{Value: int32(4), Type: model.IntT()}}
	e.renderStatement(&b, owner, &model.MethodModel{}, stmt, "")
	if !strings.Contains(b.String(), e.Symbols.BoxInt) {
		t.Errorf("renderStatement(FieldStore int into Object field) = %q, want it to call %s", b.String(), e.Symbols.BoxInt)
	}
}
