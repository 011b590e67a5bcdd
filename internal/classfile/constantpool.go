package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Constant pool tags.
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
)

// Entry is implemented by every constant pool entry type.
type Entry interface {
	Tag() uint8
}

type Utf8 struct{ Value string }

func (c *Utf8) Tag() uint8 { return TagUtf8 }

type Integer struct{ Value int32 }

func (c *Integer) Tag() uint8 { return TagInteger }

type Float struct{ Value float32 }

func (c *Float) Tag() uint8 { return TagFloat }

type Long struct{ Value int64 }

func (c *Long) Tag() uint8 { return TagLong }

type Double struct{ Value float64 }

func (c *Double) Tag() uint8 { return TagDouble }

type Class struct{ NameIndex uint16 }

func (c *Class) Tag() uint8 { return TagClass }

type String struct{ StringIndex uint16 }

func (c *String) Tag() uint8 { return TagString }

type Fieldref struct{ ClassIndex, NameAndTypeIndex uint16 }

func (c *Fieldref) Tag() uint8 { return TagFieldref }

type Methodref struct{ ClassIndex, NameAndTypeIndex uint16 }

func (c *Methodref) Tag() uint8 { return TagMethodref }

type InterfaceMethodref struct{ ClassIndex, NameAndTypeIndex uint16 }

func (c *InterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }

type NameAndType struct{ NameIndex, DescriptorIndex uint16 }

func (c *NameAndType) Tag() uint8 { return TagNameAndType }

// MethodHandle is kept structurally (not as an opaque placeholder). No
// later stage reads it: Lower rejects every invokedynamic as Unsupported
// without consulting its bootstrap method.
type MethodHandle struct {
	ReferenceKind  uint8
	ReferenceIndex uint16
}

func (c *MethodHandle) Tag() uint8 { return TagMethodHandle }

type MethodType struct{ DescriptorIndex uint16 }

func (c *MethodType) Tag() uint8 { return TagMethodType }

type Dynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *Dynamic) Tag() uint8 { return TagDynamic }

type InvokeDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *InvokeDynamic) Tag() uint8 { return TagInvokeDynamic }

// Pool is a 1-indexed constant pool; Pool[0] is always nil.
type Pool []Entry

func parsePool(r io.Reader, count uint16) (Pool, error) {
	pool := make(Pool, count)

	for i := uint16(1); i < count; i++ {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, fmt.Errorf("reading tag at index %d: %w", i, err)
		}

		switch tag {
		case TagUtf8:
			var length uint16
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return nil, fmt.Errorf("reading Utf8 length at index %d: %w", i, err)
			}
			bytes := make([]byte, length)
			if _, err := io.ReadFull(r, bytes); err != nil {
				return nil, fmt.Errorf("reading Utf8 bytes at index %d: %w", i, err)
			}
			pool[i] = &Utf8{Value: decodeModifiedUTF8(bytes)}

		case TagInteger:
			var val int32
			if err := binary.Read(r, binary.BigEndian, &val); err != nil {
				return nil, fmt.Errorf("reading Integer at index %d: %w", i, err)
			}
			pool[i] = &Integer{Value: val}

		case TagFloat:
			var bits uint32
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, fmt.Errorf("reading Float at index %d: %w", i, err)
			}
			pool[i] = &Float{Value: math.Float32frombits(bits)}

		case TagLong:
			var val int64
			if err := binary.Read(r, binary.BigEndian, &val); err != nil {
				return nil, fmt.Errorf("reading Long at index %d: %w", i, err)
			}
			pool[i] = &Long{Value: val}
			i++ // long/double occupy two constant pool slots

		case TagDouble:
			var bits uint64
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, fmt.Errorf("reading Double at index %d: %w", i, err)
			}
			pool[i] = &Double{Value: math.Float64frombits(bits)}
			i++

		case TagClass:
			var nameIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, fmt.Errorf("reading Class at index %d: %w", i, err)
			}
			pool[i] = &Class{NameIndex: nameIndex}

		case TagString:
			var stringIndex uint16
			if err := binary.Read(r, binary.BigEndian, &stringIndex); err != nil {
				return nil, fmt.Errorf("reading String at index %d: %w", i, err)
			}
			pool[i] = &String{StringIndex: stringIndex}

		case TagFieldref:
			var classIndex, natIndex uint16
			if err := binary.Read(r, binary.BigEndian, &classIndex); err != nil {
				return nil, fmt.Errorf("reading Fieldref class_index at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &natIndex); err != nil {
				return nil, fmt.Errorf("reading Fieldref name_and_type_index at index %d: %w", i, err)
			}
			pool[i] = &Fieldref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagMethodref:
			var classIndex, natIndex uint16
			if err := binary.Read(r, binary.BigEndian, &classIndex); err != nil {
				return nil, fmt.Errorf("reading Methodref class_index at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &natIndex); err != nil {
				return nil, fmt.Errorf("reading Methodref name_and_type_index at index %d: %w", i, err)
			}
			pool[i] = &Methodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagInterfaceMethodref:
			var classIndex, natIndex uint16
			if err := binary.Read(r, binary.BigEndian, &classIndex); err != nil {
				return nil, fmt.Errorf("reading InterfaceMethodref class_index at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &natIndex); err != nil {
				return nil, fmt.Errorf("reading InterfaceMethodref name_and_type_index at index %d: %w", i, err)
			}
			pool[i] = &InterfaceMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagNameAndType:
			var nameIndex, descIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, fmt.Errorf("reading NameAndType name_index at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
				return nil, fmt.Errorf("reading NameAndType descriptor_index at index %d: %w", i, err)
			}
			pool[i] = &NameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex}

		case TagMethodHandle:
			var refKind uint8
			var refIndex uint16
			if err := binary.Read(r, binary.BigEndian, &refKind); err != nil {
				return nil, fmt.Errorf("reading MethodHandle reference_kind at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &refIndex); err != nil {
				return nil, fmt.Errorf("reading MethodHandle reference_index at index %d: %w", i, err)
			}
			pool[i] = &MethodHandle{ReferenceKind: refKind, ReferenceIndex: refIndex}

		case TagMethodType:
			var descIndex uint16
			if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
				return nil, fmt.Errorf("reading MethodType at index %d: %w", i, err)
			}
			pool[i] = &MethodType{DescriptorIndex: descIndex}

		case TagDynamic:
			var bsmIndex, natIndex uint16
			if err := binary.Read(r, binary.BigEndian, &bsmIndex); err != nil {
				return nil, fmt.Errorf("reading Dynamic at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &natIndex); err != nil {
				return nil, fmt.Errorf("reading Dynamic name_and_type at index %d: %w", i, err)
			}
			pool[i] = &Dynamic{BootstrapMethodAttrIndex: bsmIndex, NameAndTypeIndex: natIndex}

		case TagInvokeDynamic:
			var bsmIndex, natIndex uint16
			if err := binary.Read(r, binary.BigEndian, &bsmIndex); err != nil {
				return nil, fmt.Errorf("reading InvokeDynamic at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &natIndex); err != nil {
				return nil, fmt.Errorf("reading InvokeDynamic name_and_type at index %d: %w", i, err)
			}
			pool[i] = &InvokeDynamic{BootstrapMethodAttrIndex: bsmIndex, NameAndTypeIndex: natIndex}

		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
	}

	return pool, nil
}

// Utf8At returns the Utf8 string at index.
func (p Pool) Utf8At(index uint16) (string, error) {
	if int(index) >= len(p) || p[index] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", index)
	}
	u, ok := p[index].(*Utf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, p[index].Tag())
	}
	return u.Value, nil
}

// ClassNameAt returns the class name referenced by a CONSTANT_Class entry.
func (p Pool) ClassNameAt(index uint16) (string, error) {
	if int(index) >= len(p) || p[index] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", index)
	}
	c, ok := p[index].(*Class)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", index)
	}
	return p.Utf8At(c.NameIndex)
}

// LdcConstantAt resolves the constant an ldc/ldc_w/ldc2_w instruction
// addresses, returning a kind tag ("int", "float", "long", "double",
// "string", "class") alongside the Go-native value: int32/float32/int64/
// float64 for the numeric kinds, or the literal string/referenced class
// name for "string"/"class".
func (p Pool) LdcConstantAt(index uint16) (kind string, value interface{}, err error) {
	if int(index) >= len(p) || p[index] == nil {
		return "", nil, fmt.Errorf("invalid constant pool index %d", index)
	}
	switch c := p[index].(type) {
	case *Integer:
		return "int", c.Value, nil
	case *Float:
		return "float", c.Value, nil
	case *Long:
		return "long", c.Value, nil
	case *Double:
		return "double", c.Value, nil
	case *String:
		s, err := p.Utf8At(c.StringIndex)
		if err != nil {
			return "", nil, err
		}
		return "string", s, nil
	case *Class:
		name, err := p.Utf8At(c.NameIndex)
		if err != nil {
			return "", nil, err
		}
		return "class", name, nil
	default:
		return "", nil, fmt.Errorf("constant pool index %d (tag=%d) is not loadable by ldc", index, p[index].Tag())
	}
}

// MemberRef is the resolved (class, name, descriptor) identity of a
// field/method/interface-method reference.
type MemberRef struct {
	ClassName  string
	MemberName string
	Descriptor string
}

func (p Pool) resolveNameAndType(index uint16) (string, string, error) {
	if int(index) >= len(p) || p[index] == nil {
		return "", "", fmt.Errorf("invalid NameAndType index %d", index)
	}
	nat, ok := p[index].(*NameAndType)
	if !ok {
		return "", "", fmt.Errorf("constant pool index %d is not NameAndType", index)
	}
	name, err := p.Utf8At(nat.NameIndex)
	if err != nil {
		return "", "", fmt.Errorf("resolving name: %w", err)
	}
	desc, err := p.Utf8At(nat.DescriptorIndex)
	if err != nil {
		return "", "", fmt.Errorf("resolving descriptor: %w", err)
	}
	return name, desc, nil
}

// FieldrefAt resolves a CONSTANT_Fieldref entry.
func (p Pool) FieldrefAt(index uint16) (*MemberRef, error) {
	f, ok := p[index].(*Fieldref)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not Fieldref", index)
	}
	className, err := p.ClassNameAt(f.ClassIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving Fieldref class: %w", err)
	}
	name, desc, err := p.resolveNameAndType(f.NameAndTypeIndex)
	if err != nil {
		return nil, err
	}
	return &MemberRef{ClassName: className, MemberName: name, Descriptor: desc}, nil
}

// MethodrefAt resolves a CONSTANT_Methodref entry.
func (p Pool) MethodrefAt(index uint16) (*MemberRef, error) {
	m, ok := p[index].(*Methodref)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not Methodref", index)
	}
	className, err := p.ClassNameAt(m.ClassIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving Methodref class: %w", err)
	}
	name, desc, err := p.resolveNameAndType(m.NameAndTypeIndex)
	if err != nil {
		return nil, err
	}
	return &MemberRef{ClassName: className, MemberName: name, Descriptor: desc}, nil
}

// InterfaceMethodrefAt resolves a CONSTANT_InterfaceMethodref entry.
func (p Pool) InterfaceMethodrefAt(index uint16) (*MemberRef, error) {
	m, ok := p[index].(*InterfaceMethodref)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not InterfaceMethodref", index)
	}
	className, err := p.ClassNameAt(m.ClassIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving InterfaceMethodref class: %w", err)
	}
	name, desc, err := p.resolveNameAndType(m.NameAndTypeIndex)
	if err != nil {
		return nil, err
	}
	return &MemberRef{ClassName: className, MemberName: name, Descriptor: desc}, nil
}

// decodeModifiedUTF8 decodes the class file's modified-UTF-8 encoding
// (ordinary UTF-8 except NUL is two bytes and supplementary characters are
// encoded as a surrogate pair, each separately modified-UTF-8 encoded).
// Most identifiers never touch either case, so a byte-compatible fast path
// is taken whenever no 0xED lead byte (surrogate marker) is present.
func decodeModifiedUTF8(b []byte) string {
	// 0xC0 is never a continuation byte, so every 0xC0 0x80 pair is an encoded NUL.
	b = bytes.ReplaceAll(b, []byte{0xC0, 0x80}, []byte{0x00})
	hasSurrogateMarker := false
	for _, c := range b {
		if c == 0xED {
			hasSurrogateMarker = true
			break
		}
	}
	if !hasSurrogateMarker {
		return string(b)
	}
	return decodeSurrogatePairs(b)
}
