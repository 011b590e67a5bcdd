package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytecast/jtc/internal/lower"
	"github.com/bytecast/jtc/internal/model"
)

// renderDefinition produces the .cpp unit: static-field initializers
// (guarded by the ABI's static-init guard symbols), method bodies
// translated statement-by-statement from TIR, and the class's v-table
// instance (spec.md §4.4).
func (e *Emitter) renderDefinition(program *model.ProgramModel, c *model.ClassModel) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "#include \"%s\"\n", headerFileName(c))
	if e.EmitAssertions {
		b.WriteString("#include <assert.h>\n")
	}
	b.WriteString("\n")

	for _, f := range c.Fields {
		if !f.IsStatic {
			continue
		}
		fmt.Fprintf(&b, "%s %s = %s;\n", cFieldType(f.Type), f.EmissionName, zeroValueLiteral(f.Type))
	}
	b.WriteString("\n")

	if hasNonTrivialStaticInit(c) {
		fmt.Fprintf(&b, "static jtc_bool %s_clinit_done = 0;\n", flattenClassName(c.Name))
		fmt.Fprintf(&b, "void %s_clinit(void) {\n", flattenClassName(c.Name))
		fmt.Fprintf(&b, "    %s(&%s_clinit_done);\n", e.Symbols.StaticInitGuardAcquire, flattenClassName(c.Name))
		fmt.Fprintf(&b, "    if (!%s_clinit_done) {\n", flattenClassName(c.Name))
		if init := findClinit(c); init != nil {
			body := e.Bodies[c.Name][methodKey(init)]
			e.renderStatements(&b, c, init, body, "        ")
		}
		fmt.Fprintf(&b, "        %s_clinit_done = 1;\n", flattenClassName(c.Name))
		fmt.Fprintf(&b, "    }\n")
		fmt.Fprintf(&b, "    %s(&%s_clinit_done);\n", e.Symbols.StaticInitGuardRelease, flattenClassName(c.Name))
		b.WriteString("}\n\n")
	}

	for _, m := range c.Methods {
		if m.IsAbstract() || m.IsNative() || m.IsConstructor() && m.Name == "<clinit>" {
			continue
		}
		body := e.Bodies[c.Name][methodKey(m)]
		if body == nil {
			continue
		}
		fmt.Fprintf(&b, "%s %s(%s) {\n", cFieldType(m.Return), m.EmissionName, cParamList(c, m))
		e.renderStatements(&b, c, m, body, "    ")
		b.WriteString("}\n\n")
	}

	e.renderVTableInstance(&b, c)
	return b.String(), nil
}

func hasNonTrivialStaticInit(c *model.ClassModel) bool {
	return findClinit(c) != nil
}

func findClinit(c *model.ClassModel) *model.MethodModel {
	for _, m := range c.Methods {
		if m.Name == "<clinit>" {
			return m
		}
	}
	return nil
}

func zeroValueLiteral(t model.JavaType) string {
	switch t.Kind {
	case model.TBool:
		return "0"
	case model.TByte, model.TChar, model.TShort, model.TInt:
		return "0"
	case model.TLong:
		return "0L"
	case model.TFloat:
		return "0.0f"
	case model.TDouble:
		return "0.0"
	default:
		return "NULL"
	}
}

func (e *Emitter) renderStatements(b *strings.Builder, c *model.ClassModel, m *model.MethodModel, body *lower.TIRBody, indent string) {
	if body == nil {
		return
	}
	for _, stmt := range body.Statements {
		e.renderStatement(b, c, m, stmt, indent)
	}
}

func (e *Emitter) renderStatement(b *strings.Builder, c *model.ClassModel, m *model.MethodModel, stmt lower.Stmt, indent string) {
	switch s := stmt.(type) {
	case lower.Label:
		fmt.Fprintf(b, "L%d:;\n", s.ID)
	case lower.Assign:
		fmt.Fprintf(b, "%s%s = %s;\n", indent, localName(s.Slot), e.renderExpr(s.Expr))
	case lower.FieldStore:
		destType := model.ObjectT("")
		if owner, ok := e.program.Classes[s.Owner]; ok {
			if f := owner.LookupField(s.Name); f != nil {
				destType = f.Type
			}
		}
		fmt.Fprintf(b, "%s%s = %s;\n", indent, e.renderFieldRef(s.Owner, s.Name, s.Receiver, s.Static), e.renderBoxed(s.Value, destType))
	case lower.ArrayStore:
		destType := lower.ExprType(s.Array)
		if destType.Kind == model.TArray && destType.Elem != nil {
			destType = *destType.Elem
		}
		fmt.Fprintf(b, "%s%s[%s] = %s;\n", indent, e.renderExpr(s.Array), e.renderExpr(s.Index), e.renderBoxed(s.Value, destType))
	case lower.MonitorOp:
		if s.Enter {
			fmt.Fprintf(b, "%s%s(%s);\n", indent, e.Symbols.MonitorEnter, e.renderExpr(s.Arg))
		} else {
			fmt.Fprintf(b, "%s%s(%s);\n", indent, e.Symbols.MonitorExit, e.renderExpr(s.Arg))
		}
	case lower.BranchIf:
		fmt.Fprintf(b, "%sif (%s) goto L%d;\n", indent, e.renderExpr(s.Cond), s.Target)
	case lower.Goto:
		fmt.Fprintf(b, "%sgoto L%d;\n", indent, s.Target)
	case lower.Switch:
		fmt.Fprintf(b, "%sswitch (%s) {\n", indent, e.renderExpr(s.Value))
		for _, k := range sortedKeys(s.Cases) {
			fmt.Fprintf(b, "%s    case %d: goto L%d;\n", indent, k, s.Cases[k])
		}
		fmt.Fprintf(b, "%s    default: goto L%d;\n", indent, s.Default)
		fmt.Fprintf(b, "%s}\n", indent)
	case lower.InvokeStmt:
		fmt.Fprintf(b, "%s%s;\n", indent, e.renderExpr(s.Call))
	case lower.Throw:
		fmt.Fprintf(b, "%s%s(%s);\n", indent, e.Symbols.Throw, e.renderExpr(s.Arg))
	case lower.Return:
		if s.Value == nil {
			fmt.Fprintf(b, "%sreturn;\n", indent)
		} else {
			fmt.Fprintf(b, "%sreturn %s;\n", indent, e.renderBoxed(s.Value, m.Return))
		}
	case lower.TryBegin:
		fmt.Fprintf(b, "%s/* try-region %d begin */\n", indent, s.RangeID)
	case lower.TryEnd:
		fmt.Fprintf(b, "%s/* try-region %d end */\n", indent, s.RangeID)
	case lower.CatchBegin:
		fmt.Fprintf(b, "%s%s = %s(%d); /* catch %s */\n", indent, localName(s.Slot), e.Symbols.BeginCatch, s.HandlerID, catchLabel(s.CaughtType))
	case lower.CatchEnd:
		fmt.Fprintf(b, "%s%s(); /* end catch %d */\n", indent, e.Symbols.EndCatch, s.HandlerID)
	default:
		fmt.Fprintf(b, "%s/* unrenderable statement %T */\n", indent, stmt)
	}
}

func catchLabel(t string) string {
	if t == "" {
		return "<any>"
	}
	return t
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func localName(slot int) string { return fmt.Sprintf("local_%d", slot) }

// renderBoxed renders value, boxing it with the ABI's primitive-kind Box
// symbol when a primitive expression flows into a reference-typed
// destination (a field, array element, or return value) — spec.md §6
// "boxing for each primitive" applies at exactly these three sinks.
func (e *Emitter) renderBoxed(value lower.Expr, destType model.JavaType) string {
	valueType := lower.ExprType(value)
	if destType.IsReference() && !valueType.IsReference() {
		box, _ := e.Symbols.BoxSymbolFor(valueType)
		return fmt.Sprintf("%s(%s)", box, e.renderExpr(value))
	}
	return e.renderExpr(value)
}

func (e *Emitter) renderFieldRef(owner, name string, receiver lower.Expr, static bool) string {
	if static {
		return owner + "_" + name
	}
	return fmt.Sprintf("(%s)->%s", e.renderExpr(receiver), name)
}

func (e *Emitter) renderExpr(expr lower.Expr) string {
	switch v := expr.(type) {
	case lower.LocalRead:
		return localName(v.Slot)
	case lower.Const:
		return e.literalFor(v)
	case lower.UnaryOp:
		return fmt.Sprintf("(%s%s)", v.Op, e.renderExpr(v.Arg))
	case lower.BinaryOp:
		if strings.HasPrefix(v.Op, "cmp:") {
			return fmt.Sprintf("jtc_%s(%s, %s)", strings.TrimPrefix(v.Op, "cmp:"), e.renderExpr(v.Left), e.renderExpr(v.Right))
		}
		return fmt.Sprintf("(%s %s %s)", e.renderExpr(v.Left), v.Op, e.renderExpr(v.Right))
	case lower.Convert:
		return fmt.Sprintf("((%s)%s)", cFieldType(v.To), e.renderExpr(v.Arg))
	case lower.FieldLoad:
		return e.renderFieldRef(v.Owner, v.Name, v.Receiver, v.Static)
	case lower.ArrayLoad:
		return fmt.Sprintf("%s[%s]", e.renderExpr(v.Array), e.renderExpr(v.Index))
	case lower.ArrayLength:
		return fmt.Sprintf("(%s)->length", e.renderExpr(v.Array))
	case lower.InstanceOf:
		return fmt.Sprintf("%s(%s, %q)", e.Symbols.InstanceOf, e.renderExpr(v.Arg), v.Type)
	case lower.Checkcast:
		return fmt.Sprintf("%s(%s, %q)", e.Symbols.Checkcast, e.renderExpr(v.Arg), v.Type)
	case lower.NewObject:
		return fmt.Sprintf("%s(%q)", e.Symbols.Alloc, v.Type)
	case lower.NewArray:
		return fmt.Sprintf("%s(%q, %s)", e.Symbols.AllocArray, v.ElemType.String(), joinExprs(e, v.Dims))
	case lower.ThisRef:
		return "self"
	case lower.InvokeExpr:
		return e.renderInvoke(v)
	default:
		return fmt.Sprintf("/* unrenderable expr %T */", expr)
	}
}

func joinExprs(e *Emitter, exprs []lower.Expr) string {
	parts := make([]string, len(exprs))
	for i, x := range exprs {
		parts[i] = e.renderExpr(x)
	}
	return strings.Join(parts, ", ")
}

// literalFor renders a Const's value. A ldc'd string literal is run through
// the ABI's StringIntern symbol (spec.md §6 "string interning") rather than
// emitted as a bare C string, since the JVM guarantees referential equality
// for string constants with the same contents; a ldc'd class literal has no
// interning contract and is rendered as its plain class-name string.
func (e *Emitter) literalFor(c lower.Const) string {
	if c.Value == nil {
		return "NULL"
	}
	switch v := c.Value.(type) {
	case int32:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%dL", v)
	case float32:
		return fmt.Sprintf("%gf", v)
	case float64:
		return fmt.Sprintf("%g", v)
	case string:
		if c.Type.Kind == model.TObject && c.Type.Referent == "java/lang/String" {
			return fmt.Sprintf("%s(%q)", e.Symbols.StringIntern, v)
		}
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (e *Emitter) renderInvoke(v lower.InvokeExpr) string {
	var args []string
	if v.Receiver != nil {
		args = append(args, e.renderExpr(v.Receiver))
	}
	for _, a := range v.Args {
		args = append(args, e.renderExpr(a))
	}
	joined := strings.Join(args, ", ")

	switch v.Kind {
	case lower.InvokeStatic, lower.InvokeSpecial:
		return fmt.Sprintf("%s_%s(%s)", flattenClassName(v.Owner), v.Name, joined)
	case lower.InvokeVirtual:
		slot := e.vslotFor(v.Owner, v.Name, v.Descriptor)
		dispatch := fmt.Sprintf("((%s)%s(%s, %d))(%s)", "void*", e.Symbols.VirtualDispatch, e.renderExpr(v.Receiver), slot, joined)
		if e.EmitAssertions {
			// Resolve assigns every virtually-dispatched method a slot >= 0
			// (spec.md §4.2 step 3); -1 here means a static, private or
			// constructor method slipped through as a virtual call, a translator bug the
			// assertion surfaces instead of silently mis-dispatching.
			return fmt.Sprintf("(assert(%d >= 0), %s)", slot, dispatch)
		}
		return dispatch
	case lower.InvokeInterface:
		return fmt.Sprintf("((%s)%s(%s, %q, %q))(%s)", "void*", e.Symbols.InterfaceDispatch, e.renderExpr(v.Receiver), v.Owner, v.Name+v.Descriptor, joined)
	default:
		return fmt.Sprintf("/* unrenderable invoke kind */")
	}
}

// vslotFor resolves the v-table slot a declared (owner, name, descriptor)
// invokevirtual target was assigned during Resolve's v-table construction,
// walking up from the statically-declared owner through its superclasses:
// an override keeps the slot its overridden method was assigned (spec.md
// §4.2 step 3), so the slot found at any class in the chain is the one
// every dynamic receiver type dispatches through.
func (e *Emitter) vslotFor(owner, name, descriptor string) int {
	for owner != "" {
		c, ok := e.program.Lookup(owner)
		if !ok {
			break
		}
		if m := c.LookupMethod(name, descriptor); m != nil {
			return m.VSlot
		}
		owner = c.SuperName
	}
	return 0
}

func (e *Emitter) renderVTableInstance(b *strings.Builder, c *model.ClassModel) {
	fmt.Fprintf(b, "%s_vtable %s_vtable_instance = {\n", flattenClassName(c.Name), flattenClassName(c.Name))
	for _, m := range c.VTable {
		if m == nil {
			fmt.Fprintf(b, "    NULL,\n")
			continue
		}
		fmt.Fprintf(b, "    (void*)%s, /* %s%s */\n", m.EmissionName, m.Name, m.Descriptor)
	}
	b.WriteString("};\n")
}
