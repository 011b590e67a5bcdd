package classfile

import "testing"

func TestLdcConstantAtResolvesEveryKind(t *testing.T) {
	pool := Pool{
		nil,
		&Integer{Value: 7},              // 1
		&Float{Value: 1.5},              // 2
		&Long{Value: 9000000000},        // 3
		&Double{Value: 2.5},             // 4
		&Utf8{Value: "hi"},              // 5
		&String{StringIndex: 5},         // 6
		&Utf8{Value: "com/example/Foo"}, // 7
		&Class{NameIndex: 7},            // 8
	}

	cases := []struct {
		name      string
		index     uint16
		wantKind  string
		wantValue interface{}
	}{
		{"int", 1, "int", int32(7)},
		{"float", 2, "float", float32(1.5)},
		{"long", 3, "long", int64(9000000000)},
		{"double", 4, "double", 2.5},
		{"string", 6, "string", "hi"},
		{"class", 8, "class", "com/example/Foo"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, value, err := pool.LdcConstantAt(tc.index)
			if err != nil {
				t.Fatalf("LdcConstantAt: %v", err)
			}
			if kind != tc.wantKind {
				t.Errorf("kind = %q, want %q", kind, tc.wantKind)
			}
			if value != tc.wantValue {
				t.Errorf("value = %v, want %v", value, tc.wantValue)
			}
		})
	}
}

func TestLdcConstantAtRejectsUnloadableEntry(t *testing.T) {
	pool := Pool{nil, &Fieldref{ClassIndex: 1, NameAndTypeIndex: 1}}
	if _, _, err := pool.LdcConstantAt(1); err == nil {
		t.Fatal("expected an error resolving a Fieldref via ldc, got nil")
	}
}

func TestDecodeLdcAttachesResolvedConstant(t *testing.T) {
	pool := Pool{
		nil,
		&Long{Value: 42}, // 1
	}
	// ldc2_w #1; lreturn
	code := []byte{opLdc2W, 0x00, 0x01, 0xad}

	stream, err := Decode(pool, code)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	insn := stream.At(0)
	if insn == nil {
		t.Fatal("no instruction at offset 0")
	}
	if insn.ConstKind != "long" {
		t.Errorf("ConstKind = %q, want \"long\"", insn.ConstKind)
	}
	if insn.ConstValue != int64(42) {
		t.Errorf("ConstValue = %v, want int64(42)", insn.ConstValue)
	}
}
