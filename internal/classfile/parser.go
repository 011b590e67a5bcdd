package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

const magic = 0xCAFEBABE

// Parse reads one class file from r and returns its raw, unlinked form.
// Parse never consults any other class; cross-class reference resolution
// is Resolve's job (spec.md §4.1: "Do not resolve any cross-class reference").
func Parse(r io.Reader) (*RawClassFile, error) {
	cf := &RawClassFile{}

	var gotMagic uint32
	if err := binary.Read(r, binary.BigEndian, &gotMagic); err != nil {
		return nil, fmt.Errorf("reading magic number: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0x%X)", gotMagic, uint32(magic))
	}

	if err := binary.Read(r, binary.BigEndian, &cf.MinorVersion); err != nil {
		return nil, fmt.Errorf("reading minor version: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.MajorVersion); err != nil {
		return nil, fmt.Errorf("reading major version: %w", err)
	}

	var cpCount uint16
	if err := binary.Read(r, binary.BigEndian, &cpCount); err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", err)
	}
	pool, err := parsePool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.Pool = pool

	if err := binary.Read(r, binary.BigEndian, &cf.AccessFlags); err != nil {
		return nil, fmt.Errorf("reading access flags: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.ThisClass); err != nil {
		return nil, fmt.Errorf("reading this_class: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.SuperClass); err != nil {
		return nil, fmt.Errorf("reading super_class: %w", err)
	}

	var interfacesCount uint16
	if err := binary.Read(r, binary.BigEndian, &interfacesCount); err != nil {
		return nil, fmt.Errorf("reading interfaces count: %w", err)
	}
	cf.Interfaces = make([]uint16, interfacesCount)
	for i := range cf.Interfaces {
		if err := binary.Read(r, binary.BigEndian, &cf.Interfaces[i]); err != nil {
			return nil, fmt.Errorf("reading interface %d: %w", i, err)
		}
	}

	var fieldsCount uint16
	if err := binary.Read(r, binary.BigEndian, &fieldsCount); err != nil {
		return nil, fmt.Errorf("reading fields count: %w", err)
	}
	cf.Fields, err = parseFields(r, pool, fieldsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}

	var methodsCount uint16
	if err := binary.Read(r, binary.BigEndian, &methodsCount); err != nil {
		return nil, fmt.Errorf("reading methods count: %w", err)
	}
	cf.Methods, err = parseMethods(r, pool, methodsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	if err := cf.parseClassAttributes(r); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	return cf, nil
}

func parseFields(r io.Reader, pool Pool, count uint16) ([]RawField, error) {
	fields := make([]RawField, count)
	for i := range fields {
		var accessFlags, nameIndex, descIndex, attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, fmt.Errorf("reading field %d access flags: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading field %d name index: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, fmt.Errorf("reading field %d descriptor index: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, fmt.Errorf("reading field %d attributes count: %w", i, err)
		}

		name, err := pool.Utf8At(nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving field %d name: %w", i, err)
		}
		desc, err := pool.Utf8At(descIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving field %d descriptor: %w", i, err)
		}

		attrs, err := parseAttributes(r, pool, attrCount)
		if err != nil {
			return nil, fmt.Errorf("parsing field %d attributes: %w", i, err)
		}

		f := RawField{AccessFlags: accessFlags, Name: name, Descriptor: desc}
		for _, a := range attrs {
			switch a.Name {
			case "ConstantValue":
				if len(a.Data) >= 2 {
					idx := binary.BigEndian.Uint16(a.Data[0:2])
					f.ConstValue = constantValueOf(pool, idx)
				}
			case "RuntimeVisibleAnnotations":
				anns, err := parseAnnotationsAttribute(pool, a.Data)
				if err != nil {
					return nil, fmt.Errorf("parsing field %d annotations: %w", i, err)
				}
				f.Annotations = anns
			}
		}
		fields[i] = f
	}
	return fields, nil
}

func parseMethods(r io.Reader, pool Pool, count uint16) ([]RawMethod, error) {
	methods := make([]RawMethod, count)
	for i := range methods {
		var accessFlags, nameIndex, descIndex, attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, fmt.Errorf("reading method %d access flags: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading method %d name index: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, fmt.Errorf("reading method %d descriptor index: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, fmt.Errorf("reading method %d attributes count: %w", i, err)
		}

		name, err := pool.Utf8At(nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving method %d name: %w", i, err)
		}
		desc, err := pool.Utf8At(descIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving method %d descriptor: %w", i, err)
		}

		attrs, err := parseAttributes(r, pool, attrCount)
		if err != nil {
			return nil, fmt.Errorf("parsing method %d attributes: %w", i, err)
		}

		m := RawMethod{AccessFlags: accessFlags, Name: name, Descriptor: desc}
		for _, a := range attrs {
			switch a.Name {
			case "Code":
				code, err := parseCodeAttribute(a.Data)
				if err != nil {
					return nil, fmt.Errorf("parsing Code attribute for method %s: %w", name, err)
				}
				m.Code = code
			case "RuntimeVisibleAnnotations":
				anns, err := parseAnnotationsAttribute(pool, a.Data)
				if err != nil {
					return nil, fmt.Errorf("parsing method %d annotations: %w", i, err)
				}
				m.Annotations = anns
			case "AnnotationDefault":
				v, _, err := parseElementValue(pool, a.Data)
				if err != nil {
					return nil, fmt.Errorf("parsing method %d AnnotationDefault: %w", i, err)
				}
				m.DefaultValue = v
			}
		}
		methods[i] = m
	}
	return methods, nil
}

func parseAttributes(r io.Reader, pool Pool, count uint16) ([]RawAttribute, error) {
	attrs := make([]RawAttribute, count)
	for i := range attrs {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading attribute %d name index: %w", i, err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("reading attribute %d length: %w", i, err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("reading attribute %d data: %w", i, err)
		}
		name, err := pool.Utf8At(nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		attrs[i] = RawAttribute{Name: name, Data: data}
	}
	return attrs, nil
}

func parseCodeAttribute(data []byte) (*RawCode, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("Code attribute too short: %d bytes", len(data))
	}
	maxStack := binary.BigEndian.Uint16(data[0:2])
	maxLocals := binary.BigEndian.Uint16(data[2:4])
	codeLength := binary.BigEndian.Uint32(data[4:8])

	if len(data) < 8+int(codeLength) {
		return nil, fmt.Errorf("Code attribute data too short for code_length %d", codeLength)
	}
	code := make([]byte, codeLength)
	copy(code, data[8:8+codeLength])

	offset := 8 + int(codeLength)
	var handlers []RawExceptionHandler
	if offset+2 <= len(data) {
		exTableLen := binary.BigEndian.Uint16(data[offset : offset+2])
		offset += 2
		handlers = make([]RawExceptionHandler, exTableLen)
		for i := range handlers {
			if offset+8 > len(data) {
				return nil, fmt.Errorf("exception table truncated at entry %d", i)
			}
			handlers[i] = RawExceptionHandler{
				StartPC:   binary.BigEndian.Uint16(data[offset : offset+2]),
				EndPC:     binary.BigEndian.Uint16(data[offset+2 : offset+4]),
				HandlerPC: binary.BigEndian.Uint16(data[offset+4 : offset+6]),
				CatchType: binary.BigEndian.Uint16(data[offset+6 : offset+8]),
			}
			offset += 8
		}
	}

	return &RawCode{
		MaxStack:          maxStack,
		MaxLocals:         maxLocals,
		Code:              code,
		ExceptionHandlers: handlers,
	}, nil
}

func (cf *RawClassFile) parseClassAttributes(r io.Reader) error {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return err
	}
	for i := uint16(0); i < count; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return err
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return err
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return err
		}
		name, err := cf.Pool.Utf8At(nameIndex)
		if err != nil {
			continue // unresolvable attribute name: skip rather than fail the whole class
		}
		switch name {
		case "BootstrapMethods":
			cf.Bootstraps, err = parseBootstrapMethods(data)
			if err != nil {
				return fmt.Errorf("parsing BootstrapMethods: %w", err)
			}
		case "SourceFile":
			if len(data) >= 2 {
				idx := binary.BigEndian.Uint16(data[0:2])
				if s, err := cf.Pool.Utf8At(idx); err == nil {
					cf.SourceFile = s
				}
			}
		case "RuntimeVisibleAnnotations":
			anns, err := parseAnnotationsAttribute(cf.Pool, data)
			if err != nil {
				return fmt.Errorf("parsing class annotations: %w", err)
			}
			cf.Annotations = anns
		}
	}
	return nil
}

func parseBootstrapMethods(data []byte) ([]BootstrapMethod, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("BootstrapMethods data too short")
	}
	numMethods := binary.BigEndian.Uint16(data[0:2])
	offset := 2
	methods := make([]BootstrapMethod, numMethods)
	for i := range methods {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("BootstrapMethods truncated at method %d", i)
		}
		methodRef := binary.BigEndian.Uint16(data[offset : offset+2])
		numArgs := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += 4
		args := make([]uint16, numArgs)
		for j := range args {
			if offset+2 > len(data) {
				return nil, fmt.Errorf("BootstrapMethods truncated at arg %d of method %d", j, i)
			}
			args[j] = binary.BigEndian.Uint16(data[offset : offset+2])
			offset += 2
		}
		methods[i] = BootstrapMethod{MethodRef: methodRef, BootstrapArguments: args}
	}
	return methods, nil
}

// ClassName returns the fully-qualified name of this class.
func (cf *RawClassFile) ClassName() (string, error) {
	return cf.Pool.ClassNameAt(cf.ThisClass)
}

// SuperClassName returns the fully-qualified super class name, or "" for roots/interfaces.
func (cf *RawClassFile) SuperClassName() (string, error) {
	if cf.SuperClass == 0 {
		return "", nil
	}
	return cf.Pool.ClassNameAt(cf.SuperClass)
}

func constantValueOf(pool Pool, idx uint16) interface{} {
	if int(idx) >= len(pool) || pool[idx] == nil {
		return nil
	}
	switch c := pool[idx].(type) {
	case *Integer:
		return c.Value
	case *Long:
		return c.Value
	case *Float:
		return c.Value
	case *Double:
		return c.Value
	case *String:
		s, _ := pool.Utf8At(c.StringIndex)
		return s
	default:
		return nil
	}
}
