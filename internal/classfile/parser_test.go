package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// classFileBuilder assembles a minimal, well-formed class file byte stream
// for table-driven round-trip tests, without relying on Parse itself.
type classFileBuilder struct {
	buf  bytes.Buffer
	pool [][]byte // serialized constant pool entries, 1-indexed when assembled
}

func newClassFileBuilder() *classFileBuilder {
	return &classFileBuilder{}
}

func (b *classFileBuilder) addUtf8(s string) uint16 {
	var entry bytes.Buffer
	entry.WriteByte(TagUtf8)
	binary.Write(&entry, binary.BigEndian, uint16(len(s)))
	entry.WriteString(s)
	b.pool = append(b.pool, entry.Bytes())
	return uint16(len(b.pool))
}

func (b *classFileBuilder) addClass(nameIdx uint16) uint16 {
	var entry bytes.Buffer
	entry.WriteByte(TagClass)
	binary.Write(&entry, binary.BigEndian, nameIdx)
	b.pool = append(b.pool, entry.Bytes())
	return uint16(len(b.pool))
}

// build assembles a class with a single instance method of the given name
// and descriptor whose body is exactly codeBytes, no exception handlers.
func (b *classFileBuilder) build(thisName, superName, methodName, methodDesc string, codeBytes []byte, maxStack, maxLocals uint16) []byte {
	thisUtf8 := b.addUtf8(thisName)
	thisClass := b.addClass(thisUtf8)
	superUtf8 := b.addUtf8(superName)
	superClass := b.addClass(superUtf8)
	methodNameIdx := b.addUtf8(methodName)
	methodDescIdx := b.addUtf8(methodDesc)
	codeAttrNameIdx := b.addUtf8("Code")

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(magic))
	binary.Write(&out, binary.BigEndian, uint16(0))  // minor
	binary.Write(&out, binary.BigEndian, uint16(61)) // major (Java 17)

	binary.Write(&out, binary.BigEndian, uint16(len(b.pool)+1)) // constant_pool_count
	for _, entry := range b.pool {
		out.Write(entry)
	}

	binary.Write(&out, binary.BigEndian, uint16(0x0021)) // ACC_PUBLIC|ACC_SUPER
	binary.Write(&out, binary.BigEndian, thisClass)
	binary.Write(&out, binary.BigEndian, superClass)
	binary.Write(&out, binary.BigEndian, uint16(0)) // interfaces_count
	binary.Write(&out, binary.BigEndian, uint16(0)) // fields_count

	binary.Write(&out, binary.BigEndian, uint16(1)) // methods_count
	binary.Write(&out, binary.BigEndian, uint16(0x0001))
	binary.Write(&out, binary.BigEndian, methodNameIdx)
	binary.Write(&out, binary.BigEndian, methodDescIdx)
	binary.Write(&out, binary.BigEndian, uint16(1)) // attributes_count

	var code bytes.Buffer
	binary.Write(&code, binary.BigEndian, maxStack)
	binary.Write(&code, binary.BigEndian, maxLocals)
	binary.Write(&code, binary.BigEndian, uint32(len(codeBytes)))
	code.Write(codeBytes)
	binary.Write(&code, binary.BigEndian, uint16(0)) // exception_table_length
	binary.Write(&code, binary.BigEndian, uint16(0)) // Code's own attributes_count

	binary.Write(&out, binary.BigEndian, codeAttrNameIdx)
	binary.Write(&out, binary.BigEndian, uint32(code.Len()))
	out.Write(code.Bytes())

	binary.Write(&out, binary.BigEndian, uint16(0)) // class attributes_count

	return out.Bytes()
}

func TestParseRoundTrip(t *testing.T) {
	cases := []struct {
		name       string
		thisName   string
		superName  string
		methodName string
		methodDesc string
		code       []byte
	}{
		{
			name:       "trivial void method",
			thisName:   "com/example/Trivial",
			superName:  "java/lang/Object",
			methodName: "run",
			methodDesc: "()V",
			code:       []byte{opReturn},
		},
		{
			name:       "integer return",
			thisName:   "com/example/Answer",
			superName:  "java/lang/Object",
			methodName: "answer",
			methodDesc: "()I",
			code:       []byte{opBipush, 42, opIreturn},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newClassFileBuilder()
			raw := b.build(tc.thisName, tc.superName, tc.methodName, tc.methodDesc, tc.code, 2, 1)

			cf, err := Parse(bytes.NewReader(raw))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}

			gotName, err := cf.ClassName()
			if err != nil {
				t.Fatalf("ClassName: %v", err)
			}
			if gotName != tc.thisName {
				t.Errorf("ClassName = %q, want %q", gotName, tc.thisName)
			}

			gotSuper, err := cf.SuperClassName()
			if err != nil {
				t.Fatalf("SuperClassName: %v", err)
			}
			if gotSuper != tc.superName {
				t.Errorf("SuperClassName = %q, want %q", gotSuper, tc.superName)
			}

			if len(cf.Methods) != 1 {
				t.Fatalf("len(Methods) = %d, want 1", len(cf.Methods))
			}
			m := cf.Methods[0]
			if m.Name != tc.methodName || m.Descriptor != tc.methodDesc {
				t.Errorf("method = %s%s, want %s%s", m.Name, m.Descriptor, tc.methodName, tc.methodDesc)
			}
			if m.Code == nil {
				t.Fatal("method Code is nil")
			}
			if !bytes.Equal(m.Code.Code, tc.code) {
				t.Errorf("Code bytes = %v, want %v", m.Code.Code, tc.code)
			}

			cm, err := BuildClassModel(cf)
			if err != nil {
				t.Fatalf("BuildClassModel: %v", err)
			}
			if cm.Name != tc.thisName {
				t.Errorf("ClassModel.Name = %q, want %q", cm.Name, tc.thisName)
			}
			if len(cm.Methods) != 1 || cm.Methods[0].Code == nil {
				t.Fatalf("ClassModel method/Code not populated")
			}
			if len(cm.Methods[0].Code.Instructions) == 0 {
				t.Errorf("decoded instruction stream is empty")
			}
		})
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x00}
	if _, err := Parse(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for bad magic number, got nil")
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	params, ret, err := ParseMethodDescriptor("(ILjava/lang/String;[D)Z")
	if err != nil {
		t.Fatalf("ParseMethodDescriptor: %v", err)
	}
	if len(params) != 3 {
		t.Fatalf("len(params) = %d, want 3", len(params))
	}
	if params[1].Referent != "java/lang/String" {
		t.Errorf("params[1].Referent = %q, want java/lang/String", params[1].Referent)
	}
	if params[2].Rank != 1 {
		t.Errorf("params[2].Rank = %d, want 1", params[2].Rank)
	}
	if ret.String() != "boolean" {
		t.Errorf("ret = %v, want boolean", ret)
	}
}
