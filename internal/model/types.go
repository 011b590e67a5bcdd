// Package model defines the shared class-graph model that flows through
// the Ingest, Resolve, Lower, and Emit stages: ClassModel, FieldModel,
// MethodModel, JavaType, InstructionStream, and the ProgramModel that owns
// them all.
//
// Cross-references between ClassModels are never owning pointers — a
// ClassModel refers to its super/interfaces by name and resolves them
// through the ProgramModel's map on demand. This keeps ownership acyclic
// even though the named graph itself can and does contain cycles (a
// method parameter referencing a subtype of its own owner, for instance).
package model

// Kind distinguishes the handful of class-like entities the translator
// must model distinctly.
type Kind int

const (
	KindClass Kind = iota
	KindInterface
	KindEnum
	KindAnnotation
	KindArray
	KindPrimitive
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindEnum:
		return "enum"
	case KindAnnotation:
		return "annotation"
	case KindArray:
		return "array"
	case KindPrimitive:
		return "primitive"
	default:
		return "unknown"
	}
}

// Origin records where a ClassModel's definition came from.
type Origin int

const (
	// OriginInput means the class was parsed from the input set during Ingest.
	OriginInput Origin = iota
	// OriginRuntimeProvided means the class was referenced but listed in
	// Config.ProvidedByRuntime: Resolve treats it as a resolved, opaque
	// placeholder rather than a LinkError.
	OriginRuntimeProvided
)

// Annotation is a named, merged bag of element values. Values are kept
// untyped (interface{}) since the translator only needs to propagate them
// to Emit, never evaluate them.
type Annotation struct {
	TypeName string
	Elements map[string]interface{}
}

// ClassModel represents one class, interface, enum, or annotation type in
// the closed program.
type ClassModel struct {
	Name       string // fully-qualified, internal slashed form
	Kind       Kind
	SuperName  string // empty for roots and interfaces
	Interfaces []string
	Fields     []*FieldModel
	Methods    []*MethodModel
	Annotations []Annotation
	SourceFile string
	AccessFlags uint16
	Origin     Origin

	// Link fields, populated during Resolve. Zero/nil/-1 before Resolve runs.
	ClassID         int // dense id assigned during Resolve; -1 until then
	FlattenedFields []*FieldModel   // concatenated super-then-own instance fields
	VTable          []*MethodModel  // dense v-slot -> declaring-or-overriding method
	IfaceDispatch   map[IfaceMethodKey]*MethodModel
	Reachable       bool
}

// IfaceMethodKey identifies an interface method by identity, independent
// of which class implements it.
type IfaceMethodKey struct {
	Interface  string
	Name       string
	Descriptor string
}

// NewClassModel returns a ClassModel with link fields in their pre-Resolve
// zero state.
func NewClassModel(name string, kind Kind) *ClassModel {
	return &ClassModel{
		Name:    name,
		Kind:    kind,
		ClassID: -1,
	}
}

// IsRoot reports whether this class has no superclass (the program's
// single root, by spec invariant).
func (c *ClassModel) IsRoot() bool {
	return c.SuperName == ""
}

// FieldModel is one field declaration.
type FieldModel struct {
	Owner        string // owner class name
	Name         string // original name
	EmissionName string // sanitized, collision-free within the owner
	AccessFlags  uint16
	Type         JavaType
	ConstValue   interface{} // nil if no constant initializer
	Annotations  []Annotation
	IsStatic     bool
	SlotOffset   int // instance-field slot offset; meaningless for static fields
	Reachable    bool
}

// MethodModel is one method or constructor declaration.
type MethodModel struct {
	Owner        string
	Name         string // original name, e.g. "<init>", "compute"
	Descriptor   string // raw type descriptor, e.g. "(I)Ljava/lang/String;"
	EmissionName string // sanitized, owner+name+descriptor-hash disambiguated
	AccessFlags  uint16
	Params       []JavaType
	Return       JavaType
	Handlers     []ExceptionHandler
	Code         *InstructionStream // nil for native/abstract methods
	Annotations  []Annotation
	VSlot        int // -1 for static/private/constructor; a final method gets a slot like any other virtual method
	MaxLocals    int
	MaxStack     int
	Reachable    bool
	DefaultValue interface{} // from AnnotationDefault, for annotation-type element methods
}

// IsStatic, IsPrivate, IsFinal, IsAbstract, IsNative decode the JVM-style
// access-flag bits the Ingest stage already parsed off the class file.
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
	AccNative       = 0x0100
)

func (m *MethodModel) IsStatic() bool   { return m.AccessFlags&AccStatic != 0 }
func (m *MethodModel) IsPrivate() bool  { return m.AccessFlags&AccPrivate != 0 }
func (m *MethodModel) IsFinal() bool    { return m.AccessFlags&AccFinal != 0 }
func (m *MethodModel) IsAbstract() bool { return m.AccessFlags&AccAbstract != 0 }
func (m *MethodModel) IsNative() bool   { return m.AccessFlags&AccNative != 0 }
func (m *MethodModel) IsConstructor() bool {
	return m.Name == "<init>" || m.Name == "<clinit>"
}

// IsVirtualCandidate reports whether m participates in v-table assignment
// at all (spec.md §4.2 step 3).
func (m *MethodModel) IsVirtualCandidate() bool {
	return !m.IsStatic() && !m.IsPrivate() && !m.IsConstructor()
}

// JavaTypeKind is the structured-type discriminant for JavaType.
type JavaTypeKind int

const (
	TVoid JavaTypeKind = iota
	TBool
	TByte
	TChar
	TShort
	TInt
	TLong
	TFloat
	TDouble
	TObject
	TArray
)

// JavaType is the parsed, structured form of a type descriptor.
type JavaType struct {
	Kind     JavaTypeKind
	Elem     *JavaType // element type, for TArray
	Rank     int       // array rank, for TArray
	Referent string    // class name, for TObject or TArray-of-TObject
}

func Void() JavaType    { return JavaType{Kind: TVoid} }
func IntT() JavaType    { return JavaType{Kind: TInt} }
func LongT() JavaType   { return JavaType{Kind: TLong} }
func FloatT() JavaType  { return JavaType{Kind: TFloat} }
func DoubleT() JavaType { return JavaType{Kind: TDouble} }
func BoolT() JavaType   { return JavaType{Kind: TBool} }
func ObjectT(referent string) JavaType {
	return JavaType{Kind: TObject, Referent: referent}
}

// IsWide reports whether this type occupies two local-variable/operand-stack
// slots in the source bytecode (long and double).
func (t JavaType) IsWide() bool {
	return t.Kind == TLong || t.Kind == TDouble
}

// IsReference reports whether t is an object or array reference type.
func (t JavaType) IsReference() bool {
	return t.Kind == TObject || t.Kind == TArray
}

func (t JavaType) String() string {
	switch t.Kind {
	case TVoid:
		return "void"
	case TBool:
		return "boolean"
	case TByte:
		return "byte"
	case TChar:
		return "char"
	case TShort:
		return "short"
	case TInt:
		return "int"
	case TLong:
		return "long"
	case TFloat:
		return "float"
	case TDouble:
		return "double"
	case TObject:
		return t.Referent
	case TArray:
		return t.Elem.String() + "[]"
	default:
		return "?"
	}
}

// ExceptionHandler is one entry of a method's exception table.
type ExceptionHandler struct {
	StartPC   int
	EndPC     int
	HandlerPC int
	CatchType string // empty for catch-all (finally)
}

// Instruction is one decoded bytecode instruction, tagged with its
// type-erased operand per spec.md §3.
type Instruction struct {
	Offset   int
	Opcode   byte
	Mnemonic string

	// Which of the following are meaningful depends on Opcode.
	IntImmediate   int64
	ConstIndex     int // constant-pool index, for ldc/getstatic/invoke*/new/etc.
	BranchTarget   int // absolute byte offset
	LocalIndex     int
	TypeName       string
	MemberClass    string
	MemberName     string
	MemberDesc     string
	TableSwitch    *TableSwitch
	LookupSwitch   *LookupSwitch

	// ConstKind and ConstValue carry the resolved constant-pool entry for
	// ldc/ldc_w/ldc2_w, decoded against the pool at Decode time rather than
	// left as a bare index: "int", "float", "long", "double" pair with a
	// matching int32/float32/int64/float64 ConstValue; "string" and "class"
	// carry the literal string or referenced class name as a Go string.
	ConstKind  string
	ConstValue interface{}
}

// TableSwitch is the decoded payload of a tableswitch instruction.
type TableSwitch struct {
	Default int
	Low     int
	High    int
	Targets []int // absolute byte offsets, len == High-Low+1
}

// LookupSwitch is the decoded payload of a lookupswitch instruction.
type LookupSwitch struct {
	Default int
	Pairs   map[int]int // match value -> absolute byte offset
}

// InstructionStream is a method body's raw decoded instructions, offset-addressable.
type InstructionStream struct {
	Instructions []Instruction
}

// At returns the instruction starting at the given byte offset, or nil.
func (s *InstructionStream) At(offset int) *Instruction {
	for i := range s.Instructions {
		if s.Instructions[i].Offset == offset {
			return &s.Instructions[i]
		}
	}
	return nil
}

// LocalSlot is a symbolic local: an index, an inferred type, and an
// optional SSA-like version used by Lower's join reconciliation.
type LocalSlot struct {
	Index   int
	Type    JavaType
	Version int
}

// ProgramModel is the root container owning every ClassModel in the
// closed program.
type ProgramModel struct {
	Classes map[string]*ClassModel
	// EntryClasses is the configured root set driving reachability (spec §4.2 step 6).
	EntryClasses []string
	// ProvidedByRuntime lists class names Resolve should treat as opaque
	// externally-resolved placeholders rather than LinkErrors.
	ProvidedByRuntime map[string]bool
	// nextClassID is a private monotonically increasing class-id counter,
	// advanced only during Resolve; exported via AssignClassID.
	nextClassID int
}

// NewProgramModel returns an empty ProgramModel ready for Ingest to populate.
func NewProgramModel() *ProgramModel {
	return &ProgramModel{
		Classes:           make(map[string]*ClassModel),
		ProvidedByRuntime: make(map[string]bool),
	}
}

// Add registers a freshly-ingested ClassModel. It is an error (caller's
// responsibility to check) to add two classes of the same name.
func (p *ProgramModel) Add(c *ClassModel) {
	p.Classes[c.Name] = c
}

// Lookup resolves a class by name through the program map — the only
// legal way one ClassModel may reference another.
func (p *ProgramModel) Lookup(name string) (*ClassModel, bool) {
	c, ok := p.Classes[name]
	return c, ok
}

// AssignClassID hands out the next dense class-id. Resolve calls this once
// per class, in its topological order (supertype depth, then name), so the
// assignment itself is deterministic (spec.md §4.3 "Determinism").
func (p *ProgramModel) AssignClassID() int {
	id := p.nextClassID
	p.nextClassID++
	return id
}

// LookupMethod finds a method on exactly the named class (no superclass
// walk) by name+descriptor.
func (c *ClassModel) LookupMethod(name, descriptor string) *MethodModel {
	for _, m := range c.Methods {
		if m.Name == name && m.Descriptor == descriptor {
			return m
		}
	}
	return nil
}

// LookupField finds a field declared directly on this class (no
// superclass walk) by name.
func (c *ClassModel) LookupField(name string) *FieldModel {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}
