package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytecast/jtc/internal/model"
)

// renderProgramTable produces the program-wide registration unit: one
// jtc_class_descriptor per emitted class (class-id, super-id, v-table
// pointer) plus the flattened interface-dispatch entries the runtime's
// InterfaceDispatch symbol walks at call sites, and a single
// jtc_program_init that registers them all (spec.md §4.4 "program table").
func (e *Emitter) renderProgramTable(program *model.ProgramModel, names []string) string {
	var b strings.Builder
	b.WriteString("#include \"jtc_runtime.h\"\n")
	for _, name := range names {
		fmt.Fprintf(&b, "#include \"%s\"\n", headerFileName(program.Classes[name]))
	}
	b.WriteString("\n")

	byID := make(map[int]*model.ClassModel, len(names))
	for _, name := range names {
		c := program.Classes[name]
		byID[c.ClassID] = c
	}
	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	fmt.Fprintf(&b, "static jtc_class_descriptor jtc_program_classes[%d];\n\n", len(ids))

	var ifaceEntries []string
	for _, id := range ids {
		c := byID[id]
		for key, m := range c.IfaceDispatch {
			if m == nil {
				continue
			}
			ifaceEntries = append(ifaceEntries, fmt.Sprintf(
				"    { %d, %q, %q, (void*)%s },",
				c.ClassID, key.Interface, key.Name+key.Descriptor, m.EmissionName))
		}
	}
	sort.Strings(ifaceEntries)

	fmt.Fprintf(&b, "static jtc_iface_dispatch_entry jtc_program_iface_table[%d] = {\n", len(ifaceEntries))
	for _, line := range ifaceEntries {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("};\n\n")

	b.WriteString("void jtc_program_init(void) {\n")
	for _, id := range ids {
		c := byID[id]
		superID := -1
		if sup, ok := program.Classes[c.SuperName]; ok {
			superID = sup.ClassID
		}
		fmt.Fprintf(&b, "    jtc_program_classes[%d] = (jtc_class_descriptor){ %d, %d, (void*)&%s_vtable_instance };\n",
			c.ClassID, c.ClassID, superID, flattenClassName(c.Name))
	}
	fmt.Fprintf(&b, "    jtc_runtime_register_classes(jtc_program_classes, %d);\n", len(ids))
	fmt.Fprintf(&b, "    jtc_runtime_register_iface_table(jtc_program_iface_table, %d);\n", len(ifaceEntries))
	b.WriteString("}\n")

	return b.String()
}
