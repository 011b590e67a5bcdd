package lower

import (
	"testing"

	"github.com/bytecast/jtc/internal/model"
)

func newMethod(insns []model.Instruction, maxLocals int) *model.MethodModel {
	return &model.MethodModel{
		Owner:      "com/example/Widget",
		Name:       "compute",
		Descriptor: "()I",
		MaxLocals:  maxLocals,
		MaxStack:   4,
		Return:     model.IntT(),
		Code:       &model.InstructionStream{Instructions: insns},
	}
}

func TestLowerConstantReturn(t *testing.T) {
	owner := model.NewClassModel("com/example/Widget", model.KindClass)
	m := newMethod([]model.Instruction{
		{Offset: 0, Opcode: 0x10, Mnemonic: "bipush", IntImmediate: 42},
		{Offset: 2, Opcode: 0xac, Mnemonic: "ireturn"},
	}, 1)

	body, err := Lower(model.NewProgramModel(), owner, m)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}

	if len(body.Statements) == 0 {
		t.Fatal("expected at least one statement")
	}
	last := body.Statements[len(body.Statements)-1]
	ret, ok := last.(Return)
	if !ok {
		t.Fatalf("last statement = %T, want Return", last)
	}
	c, ok := ret.Value.(Const)
	if !ok {
		t.Fatalf("return value = %T, want Const", ret.Value)
	}
	if c.Value.(int32) != 42 {
		t.Errorf("return value = %v, want 42", c.Value)
	}
}

func TestLowerAbstractMethodIsEmpty(t *testing.T) {
	owner := model.NewClassModel("com/example/Widget", model.KindClass)
	m := &model.MethodModel{Owner: owner.Name, Name: "abstractOp", Descriptor: "()V"}
	body, err := Lower(model.NewProgramModel(), owner, m)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if len(body.Statements) != 0 {
		t.Errorf("expected empty body for abstract method, got %d statements", len(body.Statements))
	}
}

func TestLowerBranchJoinFlushesStack(t *testing.T) {
	owner := model.NewClassModel("com/example/Widget", model.KindClass)
	// if (arg0 == 0) goto L7; bipush 1; goto L9; L7: bipush 2; L9: ireturn
	insns := []model.Instruction{
		{Offset: 0, Mnemonic: "iload_0", LocalIndex: 0},
		{Offset: 1, Mnemonic: "ifeq", BranchTarget: 7},
		{Offset: 4, Mnemonic: "bipush", IntImmediate: 1},
		{Offset: 6, Mnemonic: "goto", BranchTarget: 9},
		{Offset: 7, Mnemonic: "bipush", IntImmediate: 2},
		{Offset: 9, Mnemonic: "ireturn"},
	}
	m := newMethod(insns, 1)

	body, err := Lower(model.NewProgramModel(), owner, m)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if len(body.Statements) == 0 {
		t.Fatal("expected statements")
	}
}

func TestLowerStackUnderflowIsVerifyError(t *testing.T) {
	owner := model.NewClassModel("com/example/Widget", model.KindClass)
	m := newMethod([]model.Instruction{
		{Offset: 0, Mnemonic: "ireturn"},
	}, 0)

	if _, err := Lower(model.NewProgramModel(), owner, m); err == nil {
		t.Fatal("expected VerifyError for stack underflow, got nil")
	}
}

func TestTranslateLdcTypesEachConstantKind(t *testing.T) {
	owner := model.NewClassModel("com/example/Widget", model.KindClass)
	cases := []struct {
		name      string
		insn      model.Instruction
		wantType  model.JavaType
		wantValue interface{}
	}{
		{"int", model.Instruction{Mnemonic: "ldc", ConstKind: "int", ConstValue: int32(7)}, model.IntT(), int32(7)},
		{"float", model.Instruction{Mnemonic: "ldc", ConstKind: "float", ConstValue: float32(1.5)}, model.FloatT(), float32(1.5)},
		{"long", model.Instruction{Mnemonic: "ldc2_w", ConstKind: "long", ConstValue: int64(9000000000)}, model.LongT(), int64(9000000000)},
		{"double", model.Instruction{Mnemonic: "ldc2_w", ConstKind: "double", ConstValue: 2.5}, model.DoubleT(), 2.5},
		{"string", model.Instruction{Mnemonic: "ldc", ConstKind: "string", ConstValue: "hi"}, model.ObjectT("java/lang/String"), "hi"},
		{"class", model.Instruction{Mnemonic: "ldc", ConstKind: "class", ConstValue: "com/example/Other"}, model.ObjectT("java/lang/Class"), "com/example/Other"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := &lowerer{program: model.NewProgramModel(), owner: owner, synthetic: map[int]model.JavaType{}}
			if err := l.translateLdc(&tc.insn); err != nil {
				t.Fatalf("translateLdc: %v", err)
			}
			v, ok := l.stack[len(l.stack)-1].(Const)
			if !ok {
				t.Fatalf("pushed value = %T, want Const", l.stack[len(l.stack)-1])
			}
			if v.Type != tc.wantType {
				t.Errorf("Type = %+v, want %+v", v.Type, tc.wantType)
			}
			if v.Value != tc.wantValue {
				t.Errorf("Value = %v, want %v", v.Value, tc.wantValue)
			}
		})
	}
}

// TestLowerOptionsElideDeadCodeControlsDeadStoreRemoval covers the
// --elide-dead-code wiring: a store to a local never subsequently read is
// dropped by default, and kept when explicitly disabled via Options.
func TestLowerOptionsElideDeadCodeControlsDeadStoreRemoval(t *testing.T) {
	owner := model.NewClassModel("com/example/Widget", model.KindClass)
	// bipush 5; istore_1 (dead: slot 1 never read again); bipush 9; ireturn
	insns := []model.Instruction{
		{Offset: 0, Mnemonic: "bipush", IntImmediate: 5},
		{Offset: 2, Mnemonic: "istore_1", LocalIndex: 1},
		{Offset: 3, Mnemonic: "bipush", IntImmediate: 9},
		{Offset: 5, Mnemonic: "ireturn"},
	}
	m := newMethod(insns, 2)

	withElision, err := Lower(model.NewProgramModel(), owner, m)
	if err != nil {
		t.Fatalf("Lower (default): %v", err)
	}
	for _, s := range withElision.Statements {
		if a, ok := s.(Assign); ok && a.Slot == 1 {
			t.Errorf("default Lower() kept dead store to slot 1, want it elided: %#v", a)
		}
	}

	withoutElision, err := Lower(model.NewProgramModel(), owner, m, Options{ElideDeadCode: false})
	if err != nil {
		t.Fatalf("Lower (ElideDeadCode: false): %v", err)
	}
	found := false
	for _, s := range withoutElision.Statements {
		if a, ok := s.(Assign); ok && a.Slot == 1 {
			found = true
		}
	}
	if !found {
		t.Error("Lower(Options{ElideDeadCode: false}) elided a dead store anyway, want it kept")
	}
}

func TestLowerLdc2WWideConstantReservesTwoSlots(t *testing.T) {
	owner := model.NewClassModel("com/example/Widget", model.KindClass)
	// if (arg0 == 0) goto L8; ldc2_w 5L; goto L11; L8: ldc2_w 10L; L11: lstore_1; lload_1; lreturn
	insns := []model.Instruction{
		{Offset: 0, Mnemonic: "iload_0", LocalIndex: 0},
		{Offset: 1, Mnemonic: "ifeq", BranchTarget: 8},
		{Offset: 4, Mnemonic: "ldc2_w", ConstKind: "long", ConstValue: int64(5)},
		{Offset: 7, Mnemonic: "goto", BranchTarget: 11},
		{Offset: 8, Mnemonic: "ldc2_w", ConstKind: "long", ConstValue: int64(10)},
		{Offset: 11, Mnemonic: "lstore_1", LocalIndex: 1},
		{Offset: 12, Mnemonic: "lload_1", LocalIndex: 1},
		{Offset: 13, Mnemonic: "lreturn"},
	}
	m := newMethod(insns, 3)
	m.Descriptor = "()J"
	m.Return = model.LongT()

	body, err := Lower(model.NewProgramModel(), owner, m)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	wideSlots := 0
	for _, typ := range body.SyntheticLocals {
		if !typ.IsWide() {
			t.Errorf("synthetic local type = %v, want a wide (long/double) type for every join-flushed ldc2_w value", typ)
		}
		wideSlots++
	}
	if wideSlots != 1 {
		t.Fatalf("len(SyntheticLocals) = %d, want 1 (the join at L11 flushes into one per-offset local)", wideSlots)
	}
	// Each wide synthetic reserves two slots (spec.md §4.3): three locals
	// (maxLocals=3) plus one two-slot wide synthetic is NextSlot == 5.
	if body.NextSlot != 5 {
		t.Errorf("NextSlot = %d, want 5 (3 explicit locals + 1 wide synthetic at 2 slots)", body.NextSlot)
	}
}
