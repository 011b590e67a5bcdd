package lower

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytecast/jtc/internal/classfile"
	"github.com/bytecast/jtc/internal/jtcerr"
	"github.com/bytecast/jtc/internal/model"
)

// lowerer holds the per-method mutable state of the stack simulation. It is
// never shared across methods or goroutines (spec.md §5: "Lower is all-or-
// nothing per method").
type lowerer struct {
	program *model.ProgramModel
	owner   *model.ClassModel
	method  *model.MethodModel

	stack      []Expr
	statements []Stmt
	nextSlot   int
	synthetic  map[int]model.JavaType

	joinPoints   map[int]bool
	tryBeginsAt  map[int][]int
	tryEndsAt    map[int][]int
	handlersAt   map[int][]model.ExceptionHandler

	openHandler   bool
	openHandlerID int
}

// Options controls optional Lower behavior. Calling Lower with no Options
// keeps its historical behavior (dead assignments elided); the zero value
// Options{} disables elision.
type Options struct {
	ElideDeadCode bool
}

// Lower converts one method's raw InstructionStream into a TIRBody. It is
// a no-op returning an empty body for abstract/native methods (Code == nil).
// opts is variadic so existing call sites (and the default --elide-dead-code
// true) need no change; pass an explicit Options to disable elision.
func Lower(program *model.ProgramModel, owner *model.ClassModel, m *model.MethodModel, opts ...Options) (*TIRBody, error) {
	elide := true
	if len(opts) > 0 {
		elide = opts[0].ElideDeadCode
	}
	if m.Code == nil {
		return &TIRBody{}, nil
	}

	l := &lowerer{
		program:     program,
		owner:       owner,
		method:      m,
		nextSlot:    m.MaxLocals,
		synthetic:   make(map[int]model.JavaType),
		joinPoints:  computeJoinPoints(m),
		tryBeginsAt: make(map[int][]int),
		tryEndsAt:   make(map[int][]int),
		handlersAt:  make(map[int][]model.ExceptionHandler),
	}
	for idx, h := range m.Handlers {
		l.tryBeginsAt[h.StartPC] = append(l.tryBeginsAt[h.StartPC], idx)
		l.tryEndsAt[h.EndPC] = append(l.tryEndsAt[h.EndPC], idx)
		l.handlersAt[h.HandlerPC] = append(l.handlersAt[h.HandlerPC], h)
	}

	for i := range m.Code.Instructions {
		insn := &m.Code.Instructions[i]
		if err := l.step(insn); err != nil {
			kind := jtcerr.VerifyError
			if insn.Mnemonic == "invokedynamic" {
				kind = jtcerr.Unsupported
			}
			return nil, jtcerr.AtOffset(kind, owner.Name, methodLabel(m), insn.Offset, err)
		}
	}

	if l.openHandler {
		l.emit(CatchEnd{HandlerID: l.openHandlerID})
	}

	stmts := l.statements
	if elide {
		stmts = elideDeadAssignments(l.statements)
	}
	body := &TIRBody{
		Statements:      stmts,
		SyntheticLocals: l.synthetic,
		NextSlot:        l.nextSlot,
	}
	return body, nil
}

func methodLabel(m *model.MethodModel) string { return m.Name + m.Descriptor }

// computeJoinPoints collects every offset that is a branch target, a
// handler entry, or otherwise requires the operand stack be empty of
// cross-block expressions on entry (spec.md §4.3).
func computeJoinPoints(m *model.MethodModel) map[int]bool {
	joins := make(map[int]bool)
	for _, h := range m.Handlers {
		joins[h.HandlerPC] = true
	}
	if m.Code == nil {
		return joins
	}
	for _, insn := range m.Code.Instructions {
		if insn.TableSwitch != nil {
			joins[insn.TableSwitch.Default] = true
			for _, t := range insn.TableSwitch.Targets {
				joins[t] = true
			}
		}
		if insn.LookupSwitch != nil {
			joins[insn.LookupSwitch.Default] = true
			for _, t := range insn.LookupSwitch.Pairs {
				joins[t] = true
			}
		}
		if isBranchMnemonic(insn.Mnemonic) {
			joins[insn.BranchTarget] = true
		}
	}
	return joins
}

func isBranchMnemonic(mnemonic string) bool {
	switch mnemonic {
	case "ifeq", "ifne", "iflt", "ifge", "ifgt", "ifle",
		"if_icmpeq", "if_icmpne", "if_icmplt", "if_icmpge", "if_icmpgt", "if_icmple",
		"if_acmpeq", "if_acmpne", "goto", "goto_w", "jsr", "jsr_w",
		"ifnull", "ifnonnull":
		return true
	}
	return false
}

func (l *lowerer) push(e Expr)  { l.stack = append(l.stack, e) }
func (l *lowerer) pop() (Expr, error) {
	if len(l.stack) == 0 {
		return nil, fmt.Errorf("stack underflow")
	}
	e := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]
	return e, nil
}

func (l *lowerer) popN(n int) ([]Expr, error) {
	out := make([]Expr, n)
	for i := n - 1; i >= 0; i-- {
		e, err := l.pop()
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (l *lowerer) freshSlot(t model.JavaType) int {
	slot := l.nextSlot
	l.nextSlot++
	if t.IsWide() {
		l.nextSlot++
	}
	l.synthetic[slot] = t
	return slot
}

func (l *lowerer) emit(s Stmt) { l.statements = append(l.statements, s) }

// materialize assigns e into a fresh synthetic local and returns a read of
// it, used for join flushing and for dup-family side-effect preservation.
func (l *lowerer) materialize(e Expr, t model.JavaType) Expr {
	slot := l.freshSlot(t)
	l.emit(Assign{Slot: slot, Expr: e})
	return LocalRead{Slot: slot, Type: t}
}

// flushJoin materializes every live stack entry into a dedicated synthetic
// local, in stack order, so the join's successors read from locals only
// (spec.md §4.3 "Stack flush at joins").
func (l *lowerer) flushJoin() {
	for i, e := range l.stack {
		t := exprType(e)
		slot := l.freshSlot(t)
		l.emit(Assign{Slot: slot, Expr: e})
		l.stack[i] = LocalRead{Slot: slot, Type: t}
	}
}

func (l *lowerer) step(insn *model.Instruction) error {
	offset := insn.Offset

	for _, idx := range l.tryEndsAt[offset] {
		l.emit(TryEnd{RangeID: idx})
	}
	if l.joinPoints[offset] && offset != 0 {
		l.flushJoin()
	}
	l.emit(Label{ID: offset})
	if len(l.handlersAt[offset]) > 0 {
		if l.openHandler {
			l.emit(CatchEnd{HandlerID: l.openHandlerID})
		}
		for _, h := range l.handlersAt[offset] {
			slot := l.freshSlot(model.ObjectT("java/lang/Throwable"))
			l.stack = nil
			l.emit(CatchBegin{CaughtType: h.CatchType, HandlerID: offset, Slot: slot})
			l.push(LocalRead{Slot: slot, Type: model.ObjectT("java/lang/Throwable")})
		}
		l.openHandler, l.openHandlerID = true, offset
	}
	for _, idx := range l.tryBeginsAt[offset] {
		l.emit(TryBegin{RangeID: idx})
	}

	return l.translate(insn)
}

func (l *lowerer) translate(insn *model.Instruction) error {
	m := insn.Mnemonic
	switch {
	case m == "nop":
		return nil
	case m == "aconst_null":
		l.push(Const{Value: nil, Type: model.ObjectT("")})
		return nil
	case strings.HasPrefix(m, "iconst_"):
		return l.pushIntConst(m, "iconst_")
	case strings.HasPrefix(m, "lconst_"):
		l.push(Const{Value: int64(mustSuffixInt(m, "lconst_")), Type: model.LongT()})
		return nil
	case strings.HasPrefix(m, "fconst_"):
		l.push(Const{Value: float32(mustSuffixInt(m, "fconst_")), Type: model.FloatT()})
		return nil
	case strings.HasPrefix(m, "dconst_"):
		l.push(Const{Value: float64(mustSuffixInt(m, "dconst_")), Type: model.DoubleT()})
		return nil
	case m == "bipush" || m == "sipush":
		l.push(Const{Value: int32(insn.IntImmediate), Type: model.IntT()})
		return nil
	case m == "ldc" || m == "ldc_w" || m == "ldc2_w":
		return l.translateLdc(insn)

	case isLocalLoad(m):
		return l.translateLocalLoad(insn)
	case isLocalStore(m):
		return l.translateLocalStore(insn)

	case isArrayLoad(m):
		return l.translateArrayLoad(m)
	case isArrayStore(m):
		return l.translateArrayStore(m)

	case m == "pop":
		_, err := l.pop()
		return err
	case m == "pop2":
		if _, err := l.pop(); err != nil {
			return err
		}
		_, err := l.pop()
		return err
	case m == "dup":
		return l.translateDup()
	case m == "dup_x1":
		return l.translateDupX1()
	case m == "dup_x2":
		return l.translateDupX2()
	case m == "dup2":
		return l.translateDup2()
	case m == "dup2_x1", m == "dup2_x2":
		return l.translateDup2X(m)
	case m == "swap":
		return l.translateSwap()

	case isBinaryArith(m):
		return l.translateBinaryArith(m)
	case isUnaryNeg(m):
		return l.translateNeg(m)
	case isShiftOrBitwise(m):
		return l.translateBinaryArith(m)
	case m == "iinc":
		cur := LocalRead{Slot: insn.LocalIndex, Type: model.IntT()}
		sum := BinaryOp{Op: "+", Left: cur, Right: Const{Value: int32(insn.IntImmediate), Type: model.IntT()}, Type: model.IntT()}
		l.emit(Assign{Slot: insn.LocalIndex, Expr: sum})
		return nil

	case isConversion(m):
		return l.translateConversion(m)
	case isCompare(m):
		return l.translateCompare(m)

	case isIfCmp(m):
		return l.translateBranch(insn, m)
	case m == "goto" || m == "goto_w":
		l.emit(Goto{Target: insn.BranchTarget})
		l.stack = nil
		return nil
	case m == "jsr" || m == "jsr_w" || m == "ret":
		return fmt.Errorf("%s: subroutine inlining must run before Lower (spec.md §9 Subroutines)", m)

	case m == "tableswitch":
		return l.translateTableSwitch(insn)
	case m == "lookupswitch":
		return l.translateLookupSwitch(insn)

	case m == "ireturn" || m == "lreturn" || m == "freturn" || m == "dreturn" || m == "areturn":
		v, err := l.pop()
		if err != nil {
			return err
		}
		l.emit(Return{Value: v})
		l.stack = nil
		return nil
	case m == "return":
		l.emit(Return{Value: nil})
		l.stack = nil
		return nil

	case m == "getstatic":
		t, err := classfile.ParseFieldDescriptor(insn.MemberDesc)
		if err != nil {
			return err
		}
		l.push(FieldLoad{Owner: insn.MemberClass, Name: insn.MemberName, Descriptor: insn.MemberDesc, Static: true, Type: t})
		return nil
	case m == "putstatic":
		v, err := l.pop()
		if err != nil {
			return err
		}
		l.emit(FieldStore{Owner: insn.MemberClass, Name: insn.MemberName, Descriptor: insn.MemberDesc, Static: true, Value: v})
		return nil
	case m == "getfield":
		ref, err := l.pop()
		if err != nil {
			return err
		}
		t, err := classfile.ParseFieldDescriptor(insn.MemberDesc)
		if err != nil {
			return err
		}
		l.push(FieldLoad{Owner: insn.MemberClass, Name: insn.MemberName, Descriptor: insn.MemberDesc, Receiver: ref, Type: t})
		return nil
	case m == "putfield":
		v, err := l.pop()
		if err != nil {
			return err
		}
		ref, err := l.pop()
		if err != nil {
			return err
		}
		l.emit(FieldStore{Owner: insn.MemberClass, Name: insn.MemberName, Descriptor: insn.MemberDesc, Receiver: ref, Value: v})
		return nil

	case m == "invokevirtual":
		return l.translateInvoke(insn, InvokeVirtual)
	case m == "invokespecial":
		return l.translateInvoke(insn, InvokeSpecial)
	case m == "invokestatic":
		return l.translateInvoke(insn, InvokeStatic)
	case m == "invokeinterface":
		return l.translateInvoke(insn, InvokeInterface)
	case m == "invokedynamic":
		return fmt.Errorf("invokedynamic is unsupported")

	case m == "new":
		l.push(NewObject{Type: insn.TypeName})
		return nil
	case m == "newarray":
		dim, err := l.pop()
		if err != nil {
			return err
		}
		l.push(NewArray{ElemType: primitiveArrayType(insn.IntImmediate), Dims: []Expr{dim}})
		return nil
	case m == "anewarray":
		dim, err := l.pop()
		if err != nil {
			return err
		}
		l.push(NewArray{ElemType: model.ObjectT(insn.TypeName), Dims: []Expr{dim}})
		return nil
	case m == "multianewarray":
		dims, err := l.popN(int(insn.IntImmediate))
		if err != nil {
			return err
		}
		l.push(NewArray{ElemType: model.ObjectT(insn.TypeName), Dims: dims})
		return nil
	case m == "arraylength":
		a, err := l.pop()
		if err != nil {
			return err
		}
		l.push(ArrayLength{Array: a})
		return nil
	case m == "instanceof":
		a, err := l.pop()
		if err != nil {
			return err
		}
		l.push(InstanceOf{Arg: a, Type: insn.TypeName})
		return nil
	case m == "checkcast":
		a, err := l.pop()
		if err != nil {
			return err
		}
		l.push(Checkcast{Arg: a, Type: insn.TypeName})
		return nil
	case m == "athrow":
		a, err := l.pop()
		if err != nil {
			return err
		}
		l.emit(Throw{Arg: a})
		l.stack = nil
		return nil
	case m == "monitorenter":
		a, err := l.pop()
		if err != nil {
			return err
		}
		l.emit(MonitorOp{Enter: true, Arg: a})
		return nil
	case m == "monitorexit":
		a, err := l.pop()
		if err != nil {
			return err
		}
		l.emit(MonitorOp{Enter: false, Arg: a})
		return nil

	case strings.HasPrefix(m, "wide "):
		return fmt.Errorf("wide-prefixed instructions must be pre-expanded by the decoder")

	default:
		return fmt.Errorf("unrecognized or unsupported opcode %s (0x%02x)", m, insn.Opcode)
	}
}

func (l *lowerer) pushIntConst(m, prefix string) error {
	l.push(Const{Value: int32(mustSuffixInt(m, prefix)), Type: model.IntT()})
	return nil
}

// translateLdc pushes the constant an ldc/ldc_w/ldc2_w instruction addresses,
// typed from the resolved constant-pool entry (Decode's ConstKind/ConstValue)
// rather than the instruction's raw pool index: a wide constant (long,
// double) must report IsWide() true so flushJoin reserves two slots for it,
// and a String/Class constant must carry a reference type so downstream
// typing (exprType, hasSideEffect, array element types) sees a reference,
// not a stray int.
func (l *lowerer) translateLdc(insn *model.Instruction) error {
	switch insn.ConstKind {
	case "int":
		l.push(Const{Value: insn.ConstValue.(int32), Type: model.IntT()})
	case "float":
		l.push(Const{Value: insn.ConstValue.(float32), Type: model.FloatT()})
	case "long":
		l.push(Const{Value: insn.ConstValue.(int64), Type: model.LongT()})
	case "double":
		l.push(Const{Value: insn.ConstValue.(float64), Type: model.DoubleT()})
	case "string":
		l.push(Const{Value: insn.ConstValue.(string), Type: model.ObjectT("java/lang/String")})
	case "class":
		l.push(Const{Value: insn.ConstValue.(string), Type: model.ObjectT("java/lang/Class")})
	default:
		return fmt.Errorf("ldc at offset %d: unresolved constant kind %q", insn.Offset, insn.ConstKind)
	}
	return nil
}

func mustSuffixInt(m, prefix string) int {
	suffix := strings.TrimPrefix(m, prefix)
	if suffix == "m1" {
		return -1
	}
	n := 0
	for _, r := range suffix {
		n = n*10 + int(r-'0')
	}
	return n
}

func isLocalLoad(m string) bool {
	for _, p := range []string{"iload", "lload", "fload", "dload", "aload"} {
		if m == p || strings.HasPrefix(m, p+"_") {
			return true
		}
	}
	return false
}

func isLocalStore(m string) bool {
	for _, p := range []string{"istore", "lstore", "fstore", "dstore", "astore"} {
		if m == p || strings.HasPrefix(m, p+"_") {
			return true
		}
	}
	return false
}

func localTypeForOp(prefix string) model.JavaType {
	switch prefix {
	case "i":
		return model.IntT()
	case "l":
		return model.LongT()
	case "f":
		return model.FloatT()
	case "d":
		return model.DoubleT()
	default:
		return model.ObjectT("")
	}
}

func (l *lowerer) translateLocalLoad(insn *model.Instruction) error {
	prefix, slot := splitLocalOp(insn)
	l.push(LocalRead{Slot: slot, Type: localTypeForOp(prefix)})
	return nil
}

func (l *lowerer) translateLocalStore(insn *model.Instruction) error {
	_, slot := splitLocalOp(insn)
	v, err := l.pop()
	if err != nil {
		return err
	}
	l.emit(Assign{Slot: slot, Expr: v})
	return nil
}

// splitLocalOp returns the base-type prefix ("i","l","f","d","a") and the
// local slot index, for both the indexed and the _0.._3 instruction forms.
func splitLocalOp(insn *model.Instruction) (string, int) {
	m := insn.Mnemonic
	prefix := string(m[0])
	if idx := strings.IndexByte(m, '_'); idx >= 0 {
		return prefix, insn.LocalIndex // decoder already resolved _N into LocalIndex
	}
	return prefix, insn.LocalIndex
}

func isArrayLoad(m string) bool {
	switch m {
	case "iaload", "laload", "faload", "daload", "aaload", "baload", "caload", "saload":
		return true
	}
	return false
}

func isArrayStore(m string) bool {
	switch m {
	case "iastore", "lastore", "fastore", "dastore", "aastore", "bastore", "castore", "sastore":
		return true
	}
	return false
}

func arrayElemType(m string) model.JavaType {
	switch m[0] {
	case 'i':
		return model.IntT()
	case 'l':
		return model.LongT()
	case 'f':
		return model.FloatT()
	case 'd':
		return model.DoubleT()
	case 'a':
		return model.ObjectT("")
	case 'b':
		return model.JavaType{Kind: model.TByte}
	case 'c':
		return model.JavaType{Kind: model.TChar}
	case 's':
		return model.JavaType{Kind: model.TShort}
	default:
		return model.IntT()
	}
}

func (l *lowerer) translateArrayLoad(m string) error {
	idx, err := l.pop()
	if err != nil {
		return err
	}
	arr, err := l.pop()
	if err != nil {
		return err
	}
	l.push(ArrayLoad{Array: arr, Index: idx, ElemType: arrayElemType(m)})
	return nil
}

func (l *lowerer) translateArrayStore(m string) error {
	v, err := l.pop()
	if err != nil {
		return err
	}
	idx, err := l.pop()
	if err != nil {
		return err
	}
	arr, err := l.pop()
	if err != nil {
		return err
	}
	l.emit(ArrayStore{Array: arr, Index: idx, Value: v})
	return nil
}

// translateDup and its siblings manipulate the symbolic stack directly per
// spec.md §4.3; any expression with a potential side effect (an
// InvokeExpr, or a load that may throw) is materialized first so it is
// evaluated exactly once.
func (l *lowerer) hasSideEffect(e Expr) bool {
	switch e.(type) {
	case InvokeExpr, FieldLoad, ArrayLoad, Checkcast, NewObject, NewArray:
		return true
	default:
		return false
	}
}

func (l *lowerer) stabilize(e Expr) Expr {
	if !l.hasSideEffect(e) {
		return e
	}
	return l.materialize(e, exprType(e))
}

func (l *lowerer) translateDup() error {
	top, err := l.pop()
	if err != nil {
		return err
	}
	top = l.stabilize(top)
	l.push(top)
	l.push(top)
	return nil
}

func (l *lowerer) translateDupX1() error {
	vs, err := l.popN(2)
	if err != nil {
		return err
	}
	v2, v1 := l.stabilize(vs[0]), l.stabilize(vs[1])
	l.push(v1)
	l.push(v2)
	l.push(v1)
	return nil
}

func (l *lowerer) translateDupX2() error {
	vs, err := l.popN(3)
	if err != nil {
		return err
	}
	v3, v2, v1 := l.stabilize(vs[0]), l.stabilize(vs[1]), l.stabilize(vs[2])
	l.push(v1)
	l.push(v3)
	l.push(v2)
	l.push(v1)
	return nil
}

func (l *lowerer) translateDup2() error {
	vs, err := l.popN(2)
	if err != nil {
		return err
	}
	v2, v1 := l.stabilize(vs[0]), l.stabilize(vs[1])
	l.push(v2)
	l.push(v1)
	l.push(v2)
	l.push(v1)
	return nil
}

func (l *lowerer) translateDup2X(m string) error {
	n := 3
	if m == "dup2_x2" {
		n = 4
	}
	vs, err := l.popN(n)
	if err != nil {
		return err
	}
	for i := range vs {
		vs[i] = l.stabilize(vs[i])
	}
	top2, top1 := vs[n-2], vs[n-1]
	rest := vs[:n-2]
	l.push(top2)
	l.push(top1)
	for _, v := range rest {
		l.push(v)
	}
	l.push(top2)
	l.push(top1)
	return nil
}

func (l *lowerer) translateSwap() error {
	vs, err := l.popN(2)
	if err != nil {
		return err
	}
	l.push(vs[1])
	l.push(vs[0])
	return nil
}

func isBinaryArith(m string) bool {
	for _, suf := range []string{"add", "sub", "mul", "div", "rem"} {
		if strings.HasSuffix(m, suf) && len(m) == len("i")+len(suf) {
			return true
		}
	}
	return false
}

func isShiftOrBitwise(m string) bool {
	switch m {
	case "ishl", "lshl", "ishr", "lshr", "iushr", "lushr",
		"iand", "land", "ior", "lor", "ixor", "lxor":
		return true
	}
	return false
}

func isUnaryNeg(m string) bool {
	switch m {
	case "ineg", "lneg", "fneg", "dneg":
		return true
	}
	return false
}

func opSymbol(m string) string {
	switch {
	case strings.HasSuffix(m, "add"):
		return "+"
	case strings.HasSuffix(m, "sub"):
		return "-"
	case strings.HasSuffix(m, "mul"):
		return "*"
	case strings.HasSuffix(m, "div"):
		return "/"
	case strings.HasSuffix(m, "rem"):
		return "%"
	case strings.HasSuffix(m, "shl"):
		return "<<"
	case strings.HasSuffix(m, "shr"):
		if strings.HasPrefix(m, "iu") || strings.HasPrefix(m, "lu") {
			return ">>>"
		}
		return ">>"
	case strings.HasSuffix(m, "and"):
		return "&"
	case strings.HasSuffix(m, "or"):
		return "|"
	case strings.HasSuffix(m, "xor"):
		return "^"
	default:
		return "?"
	}
}

func arithType(m string) model.JavaType {
	switch m[0] {
	case 'i':
		return model.IntT()
	case 'l':
		return model.LongT()
	case 'f':
		return model.FloatT()
	case 'd':
		return model.DoubleT()
	default:
		return model.IntT()
	}
}

func (l *lowerer) translateBinaryArith(m string) error {
	vs, err := l.popN(2)
	if err != nil {
		return err
	}
	t := arithType(m)
	l.push(foldBinary(opSymbol(m), vs[0], vs[1], t))
	return nil
}

// foldBinary performs spec.md §4.3's constant folding for pure binary ops
// over two int constants; every other combination is left as a BinaryOp
// node for Emit to lower directly.
func foldBinary(op string, left, right Expr, t model.JavaType) Expr {
	lc, lok := left.(Const)
	rc, rok := right.(Const)
	if lok && rok && t.Kind == model.TInt {
		li, liok := lc.Value.(int32)
		ri, riok := rc.Value.(int32)
		if liok && riok {
			if v, ok := foldIntOp(op, li, ri); ok {
				return Const{Value: v, Type: t}
			}
		}
	}
	return BinaryOp{Op: op, Left: left, Right: right, Type: t}
}

func foldIntOp(op string, a, b int32) (int32, bool) {
	switch op {
	case "+":
		return a + b, true
	case "-":
		return a - b, true
	case "*":
		return a * b, true
	case "&":
		return a & b, true
	case "|":
		return a | b, true
	case "^":
		return a ^ b, true
	default:
		return 0, false // division/shift/rem folding skipped: divisor-zero must remain a runtime fault
	}
}

func (l *lowerer) translateNeg(m string) error {
	v, err := l.pop()
	if err != nil {
		return err
	}
	l.push(UnaryOp{Op: "-", Arg: v, Type: arithType(m)})
	return nil
}

func isConversion(m string) bool {
	switch m {
	case "i2l", "i2f", "i2d", "l2i", "l2f", "l2d", "f2i", "f2l", "f2d", "d2i", "d2l", "d2f", "i2b", "i2c", "i2s":
		return true
	}
	return false
}

var conversionTypes = map[string][2]model.JavaTypeKind{
	"i2l": {model.TInt, model.TLong}, "i2f": {model.TInt, model.TFloat}, "i2d": {model.TInt, model.TDouble},
	"l2i": {model.TLong, model.TInt}, "l2f": {model.TLong, model.TFloat}, "l2d": {model.TLong, model.TDouble},
	"f2i": {model.TFloat, model.TInt}, "f2l": {model.TFloat, model.TLong}, "f2d": {model.TFloat, model.TDouble},
	"d2i": {model.TDouble, model.TInt}, "d2l": {model.TDouble, model.TLong}, "d2f": {model.TDouble, model.TFloat},
	"i2b": {model.TInt, model.TByte}, "i2c": {model.TInt, model.TChar}, "i2s": {model.TInt, model.TShort},
}

func (l *lowerer) translateConversion(m string) error {
	v, err := l.pop()
	if err != nil {
		return err
	}
	kinds := conversionTypes[m]
	from, to := model.JavaType{Kind: kinds[0]}, model.JavaType{Kind: kinds[1]}
	l.push(Convert{From: from, To: to, Arg: v})
	return nil
}

func isCompare(m string) bool {
	switch m {
	case "lcmp", "fcmpl", "fcmpg", "dcmpl", "dcmpg":
		return true
	}
	return false
}

func (l *lowerer) translateCompare(m string) error {
	vs, err := l.popN(2)
	if err != nil {
		return err
	}
	l.push(BinaryOp{Op: "cmp:" + m, Left: vs[0], Right: vs[1], Type: model.IntT()})
	return nil
}

func isIfCmp(m string) bool {
	switch m {
	case "ifeq", "ifne", "iflt", "ifge", "ifgt", "ifle",
		"if_icmpeq", "if_icmpne", "if_icmplt", "if_icmpge", "if_icmpgt", "if_icmple",
		"if_acmpeq", "if_acmpne", "ifnull", "ifnonnull":
		return true
	}
	return false
}

var cmpOpSymbol = map[string]string{
	"ifeq": "==", "ifne": "!=", "iflt": "<", "ifge": ">=", "ifgt": ">", "ifle": "<=",
	"if_icmpeq": "==", "if_icmpne": "!=", "if_icmplt": "<", "if_icmpge": ">=", "if_icmpgt": ">", "if_icmple": "<=",
	"if_acmpeq": "==", "if_acmpne": "!=", "ifnull": "==", "ifnonnull": "!=",
}

func (l *lowerer) translateBranch(insn *model.Instruction, m string) error {
	var cond Expr
	switch {
	case strings.HasPrefix(m, "if_icmp") || strings.HasPrefix(m, "if_acmp"):
		vs, err := l.popN(2)
		if err != nil {
			return err
		}
		cond = BinaryOp{Op: cmpOpSymbol[m], Left: vs[0], Right: vs[1], Type: model.BoolT()}
	case m == "ifnull" || m == "ifnonnull":
		v, err := l.pop()
		if err != nil {
			return err
		}
		cond = BinaryOp{Op: cmpOpSymbol[m], Left: v, Right: Const{Value: nil, Type: model.ObjectT("")}, Type: model.BoolT()}
	default:
		v, err := l.pop()
		if err != nil {
			return err
		}
		cond = BinaryOp{Op: cmpOpSymbol[m], Left: v, Right: Const{Value: int32(0), Type: model.IntT()}, Type: model.BoolT()}
	}
	l.emit(BranchIf{Cond: cond, Target: insn.BranchTarget})
	return nil
}

func (l *lowerer) translateTableSwitch(insn *model.Instruction) error {
	v, err := l.pop()
	if err != nil {
		return err
	}
	ts := insn.TableSwitch
	cases := make(map[int]int, len(ts.Targets))
	for i, target := range ts.Targets {
		cases[ts.Low+i] = target
	}
	l.emit(Switch{Value: v, Default: ts.Default, Cases: cases})
	l.stack = nil
	return nil
}

func (l *lowerer) translateLookupSwitch(insn *model.Instruction) error {
	v, err := l.pop()
	if err != nil {
		return err
	}
	ls := insn.LookupSwitch
	cases := make(map[int]int, len(ls.Pairs))
	for k, v := range ls.Pairs {
		cases[k] = v
	}
	l.emit(Switch{Value: v, Default: ls.Default, Cases: cases})
	l.stack = nil
	return nil
}

func (l *lowerer) translateInvoke(insn *model.Instruction, kind InvokeKind) error {
	params, ret, err := classfile.ParseMethodDescriptor(insn.MemberDesc)
	if err != nil {
		return err
	}
	args, err := l.popN(len(params))
	if err != nil {
		return err
	}
	var receiver Expr
	if kind != InvokeStatic {
		receiver, err = l.pop()
		if err != nil {
			return err
		}
	}
	call := InvokeExpr{Kind: kind, Owner: insn.MemberClass, Name: insn.MemberName, Descriptor: insn.MemberDesc, Receiver: receiver, Args: args, Type: ret}

	if ret.Kind == model.TVoid {
		l.emit(InvokeStmt{Call: call})
		return nil
	}
	// Materialize immediately: an invocation's result is re-read at most
	// once per bytecode-verifier-valid program, so this never duplicates
	// the call while still preserving the "evaluated exactly once,
	// exceptions visible in order" requirement of spec.md §4.3.
	l.push(l.materialize(call, ret))
	return nil
}

func primitiveArrayType(atype int64) model.JavaType {
	switch atype {
	case 4:
		return model.BoolT()
	case 5:
		return model.JavaType{Kind: model.TChar}
	case 6:
		return model.FloatT()
	case 7:
		return model.DoubleT()
	case 8:
		return model.JavaType{Kind: model.TByte}
	case 9:
		return model.JavaType{Kind: model.TShort}
	case 10:
		return model.IntT()
	case 11:
		return model.LongT()
	default:
		return model.IntT()
	}
}

// ExprType is exprType's exported form, so Emit can decide when a value
// flowing into a reference-typed destination (a field, array element, or
// return) needs boxing.
func ExprType(e Expr) model.JavaType { return exprType(e) }

func exprType(e Expr) model.JavaType {
	switch v := e.(type) {
	case LocalRead:
		return v.Type
	case Const:
		return v.Type
	case UnaryOp:
		return v.Type
	case BinaryOp:
		return v.Type
	case Convert:
		return v.To
	case FieldLoad:
		return v.Type
	case ArrayLoad:
		return v.ElemType
	case ArrayLength:
		return model.IntT()
	case InstanceOf:
		return model.BoolT()
	case Checkcast:
		return model.ObjectT(v.Type)
	case NewObject:
		return model.ObjectT(v.Type)
	case NewArray:
		return model.JavaType{Kind: model.TArray, Elem: &v.ElemType, Rank: len(v.Dims)}
	case ThisRef:
		return v.Type
	case InvokeExpr:
		return v.Type
	default:
		return model.ObjectT("")
	}
}

// elideDeadAssignments drops an Assign whose local is never subsequently
// read, when its RHS is side-effect-free (spec.md §4.3 "Constant folding
// and cleanup"). This applies to original and synthetic locals alike; an
// assignment with a side-effecting RHS is always kept.
func elideDeadAssignments(stmts []Stmt) []Stmt {
	readCount := make(map[int]int)
	for _, s := range stmts {
		countLocalReads(s, readCount)
	}

	out := make([]Stmt, 0, len(stmts))
	for _, s := range stmts {
		if a, ok := s.(Assign); ok {
			if readCount[a.Slot] == 0 && !hasSideEffectStatic(a.Expr) {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

func hasSideEffectStatic(e Expr) bool {
	switch v := e.(type) {
	case InvokeExpr:
		return true
	case FieldLoad, ArrayLoad, Checkcast, NewObject, NewArray:
		return true
	case BinaryOp:
		return hasSideEffectStatic(v.Left) || hasSideEffectStatic(v.Right)
	case UnaryOp:
		return hasSideEffectStatic(v.Arg)
	case Convert:
		return hasSideEffectStatic(v.Arg)
	default:
		return false
	}
}

func countLocalReads(s Stmt, counts map[int]int) {
	var walk func(e Expr)
	walk = func(e Expr) {
		switch v := e.(type) {
		case LocalRead:
			counts[v.Slot]++
		case UnaryOp:
			walk(v.Arg)
		case BinaryOp:
			walk(v.Left)
			walk(v.Right)
		case Convert:
			walk(v.Arg)
		case FieldLoad:
			if v.Receiver != nil {
				walk(v.Receiver)
			}
		case ArrayLoad:
			walk(v.Array)
			walk(v.Index)
		case ArrayLength:
			walk(v.Array)
		case InstanceOf:
			walk(v.Arg)
		case Checkcast:
			walk(v.Arg)
		case NewArray:
			for _, d := range v.Dims {
				walk(d)
			}
		case InvokeExpr:
			if v.Receiver != nil {
				walk(v.Receiver)
			}
			for _, a := range v.Args {
				walk(a)
			}
		}
	}

	switch v := s.(type) {
	case Assign:
		walk(v.Expr)
	case FieldStore:
		if v.Receiver != nil {
			walk(v.Receiver)
		}
		walk(v.Value)
	case ArrayStore:
		walk(v.Array)
		walk(v.Index)
		walk(v.Value)
	case MonitorOp:
		walk(v.Arg)
	case BranchIf:
		walk(v.Cond)
	case InvokeStmt:
		if v.Call.Receiver != nil {
			walk(v.Call.Receiver)
		}
		for _, a := range v.Call.Args {
			walk(a)
		}
	case Throw:
		walk(v.Arg)
	case Return:
		if v.Value != nil {
			walk(v.Value)
		}
	}
}

// sortedCaseKeys returns a Switch's match values in ascending order, for
// Emit's deterministic output (spec.md §4.3 "Determinism").
func sortedCaseKeys(sw Switch) []int {
	keys := make([]int, 0, len(sw.Cases))
	for k := range sw.Cases {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
