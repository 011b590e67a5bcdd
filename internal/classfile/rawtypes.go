package classfile

// RawClassFile is the as-parsed class file, before any cross-class linking.
// It is the Ingest stage's direct output for one class, handed to
// internal/classfile's own BuildClassModel to become a model.ClassModel.
type RawClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         Pool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []RawField
	Methods      []RawMethod
	Annotations  []RawAnnotation
	SourceFile   string
	Bootstraps   []BootstrapMethod
}

// RawField is one field_info entry.
type RawField struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	ConstValue  interface{} // from ConstantValue attribute, if present
	Annotations []RawAnnotation
}

// RawMethod is one method_info entry.
type RawMethod struct {
	AccessFlags  uint16
	Name         string
	Descriptor   string
	Code         *RawCode // nil for abstract/native methods
	Annotations  []RawAnnotation
	DefaultValue interface{} // from AnnotationDefault, for annotation-type element methods
}

// RawCode is a decoded Code attribute.
type RawCode struct {
	MaxStack          uint16
	MaxLocals         uint16
	Code              []byte
	ExceptionHandlers []RawExceptionHandler
}

// RawExceptionHandler is one exception_table entry of a Code attribute.
// CatchType is a constant-pool index into a CONSTANT_Class entry, 0 for
// catch-all (finally).
type RawExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// RawAnnotation is a parsed RuntimeVisibleAnnotations entry: a type
// descriptor plus a flat name->value element map. Nested annotations and
// arrays are represented recursively via the same dynamic value shapes
// (string, int64, float64, []interface{}, *RawAnnotation); boolean, byte,
// char, short and int elements all decode to int64.
type RawAnnotation struct {
	TypeDescriptor string
	Elements       map[string]interface{}
}

// BootstrapMethod is one entry of the class-level BootstrapMethods
// attribute. Parse keeps the entries on RawClassFile; nothing downstream
// reads them (Lower rejects every invokedynamic as Unsupported).
type BootstrapMethod struct {
	MethodRef          uint16 // constant-pool index of a MethodHandle
	BootstrapArguments []uint16
}

// RawAttribute is an attribute_info entry before interpretation.
type RawAttribute struct {
	Name string
	Data []byte
}
