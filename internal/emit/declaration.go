package emit

import (
	"fmt"
	"strings"

	"github.com/bytecast/jtc/internal/model"
)

// renderDeclaration produces the .h unit: the struct layout (object header
// plus flattened instance fields), the v-table typedef, static-field
// externs, and method prototypes (spec.md §4.4).
func (e *Emitter) renderDeclaration(c *model.ClassModel) (string, error) {
	var b strings.Builder
	guard := "JTC_" + strings.ToUpper(flattenClassName(c.Name)) + "_H"
	fmt.Fprintf(&b, "#ifndef %s\n#define %s\n\n", guard, guard)
	fmt.Fprintf(&b, "#include \"jtc_runtime.h\"\n\n")

	fmt.Fprintf(&b, "/* class-id %d: %s */\n", c.ClassID, c.Name)
	fmt.Fprintf(&b, "typedef struct %s_vtable {\n", flattenClassName(c.Name))
	for slot, m := range c.VTable {
		if m == nil {
			continue
		}
		fmt.Fprintf(&b, "    void *slot_%d; /* %s%s */\n", slot, m.Name, m.Descriptor)
	}
	fmt.Fprintf(&b, "} %s_vtable;\n\n", flattenClassName(c.Name))

	fmt.Fprintf(&b, "typedef struct %s {\n", flattenClassName(c.Name))
	fmt.Fprintf(&b, "    jtc_object_header header;\n")
	for _, f := range c.FlattenedFields {
		fmt.Fprintf(&b, "    %s %s; /* slot %d, from %s */\n", cFieldType(f.Type), f.EmissionName, f.SlotOffset, f.Owner)
	}
	fmt.Fprintf(&b, "} %s;\n\n", flattenClassName(c.Name))

	for _, f := range c.Fields {
		if !f.IsStatic {
			continue
		}
		fmt.Fprintf(&b, "extern %s %s;\n", cFieldType(f.Type), f.EmissionName)
	}
	b.WriteString("\n")

	for _, m := range c.Methods {
		if m.IsAbstract() || m.Code == nil && !m.IsNative() {
			continue
		}
		fmt.Fprintf(&b, "%s %s(%s);\n", cFieldType(m.Return), m.EmissionName, cParamList(c, m))
	}

	fmt.Fprintf(&b, "\nextern %s_vtable %s_vtable_instance;\n", flattenClassName(c.Name), flattenClassName(c.Name))
	fmt.Fprintf(&b, "\n#endif /* %s */\n", guard)
	return b.String(), nil
}

func cFieldType(t model.JavaType) string {
	switch t.Kind {
	case model.TVoid:
		return "void"
	case model.TBool:
		return "jtc_bool"
	case model.TByte:
		return "int8_t"
	case model.TChar:
		return "uint16_t"
	case model.TShort:
		return "int16_t"
	case model.TInt:
		return "int32_t"
	case model.TLong:
		return "int64_t"
	case model.TFloat:
		return "float"
	case model.TDouble:
		return "double"
	case model.TObject:
		return "jtc_object *"
	case model.TArray:
		return "jtc_array *"
	default:
		return "void *"
	}
}

func cParamList(c *model.ClassModel, m *model.MethodModel) string {
	var parts []string
	if !m.IsStatic() {
		parts = append(parts, fmt.Sprintf("%s *self", flattenClassName(c.Name)))
	}
	for i, p := range m.Params {
		parts = append(parts, fmt.Sprintf("%s arg%d", cFieldType(p), i))
	}
	if len(parts) == 0 {
		return "void"
	}
	return strings.Join(parts, ", ")
}
