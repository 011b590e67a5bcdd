// Package resolve links the per-class models Ingest produced into one
// closed program graph: supertype chains, flattened instance-field layout,
// virtual-dispatch tables, interface-dispatch tables, merged annotations,
// and the entry-driven reachability set Lower/Emit restrict themselves to.
package resolve

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/bytecast/jtc/internal/jtcerr"
	"github.com/bytecast/jtc/internal/model"
)

// Resolve performs every linking step in program order, aborting after the
// first step that reports any LinkError (all occurrences within that step
// are still collected and reported together).
func Resolve(program *model.ProgramModel, log *logrus.Logger) error {
	if err := checkSupertypes(program); err != nil {
		return err
	}
	order, err := topoOrder(program)
	if err != nil {
		return err
	}
	assignClassIDs(program, order)
	if err := flattenFields(program, order); err != nil {
		return err
	}
	if err := buildVTables(program, order); err != nil {
		return err
	}
	if err := buildInterfaceDispatch(program, order); err != nil {
		return err
	}
	mergeAnnotations(program, order)
	markReachable(program)
	if err := inlineAllSubroutines(program, order); err != nil {
		return err
	}

	if log != nil {
		log.WithField("classes", len(program.Classes)).Info("resolve complete")
	}
	return nil
}

// checkSupertypes verifies every super/interface name refers to a class
// actually present in the program (either ingested or a runtime-provided
// placeholder), per spec.md §4.2 step 1.
func checkSupertypes(program *model.ProgramModel) error {
	var errs []*jtcerr.Error
	for _, name := range sortedNames(program) {
		c := program.Classes[name]
		if c.Origin == model.OriginRuntimeProvided {
			continue
		}
		if c.SuperName != "" {
			if _, ok := program.Lookup(c.SuperName); !ok {
				errs = append(errs, jtcerr.New(jtcerr.LinkError, name, fmt.Sprintf("unresolved superclass %s", c.SuperName)))
			}
		}
		for _, iface := range c.Interfaces {
			if _, ok := program.Lookup(iface); !ok {
				errs = append(errs, jtcerr.New(jtcerr.LinkError, name, fmt.Sprintf("unresolved interface %s", iface)))
			}
		}
	}
	return jtcerr.NewMulti(jtcerr.LinkError, errs)
}

// topoOrder returns every class name ordered by increasing supertype depth,
// lexicographically within a depth, breaking ties deterministically
// (spec.md §4.3 "Determinism"). A supertype cycle is reported as LinkError
// rather than looping forever.
func topoOrder(program *model.ProgramModel) ([]string, error) {
	depth := make(map[string]int, len(program.Classes))
	var compute func(name string, visiting map[string]bool) (int, error)
	compute = func(name string, visiting map[string]bool) (int, error) {
		if d, ok := depth[name]; ok {
			return d, nil
		}
		if visiting[name] {
			return 0, jtcerr.New(jtcerr.LinkError, name, "supertype cycle detected")
		}
		c, ok := program.Lookup(name)
		if !ok || c.SuperName == "" || c.Origin == model.OriginRuntimeProvided {
			depth[name] = 0
			return 0, nil
		}
		visiting[name] = true
		d, err := compute(c.SuperName, visiting)
		delete(visiting, name)
		if err != nil {
			return 0, err
		}
		depth[name] = d + 1
		return d + 1, nil
	}

	names := sortedNames(program)
	var errs []*jtcerr.Error
	for _, name := range names {
		if _, err := compute(name, map[string]bool{}); err != nil {
			errs = append(errs, err.(*jtcerr.Error))
		}
	}
	if merr := jtcerr.NewMulti(jtcerr.LinkError, errs); merr != nil {
		return nil, merr
	}

	sort.SliceStable(names, func(i, j int) bool {
		if depth[names[i]] != depth[names[j]] {
			return depth[names[i]] < depth[names[j]]
		}
		return names[i] < names[j]
	})
	return names, nil
}

// assignClassIDs hands out dense class ids in topological order (spec.md
// §4.3), so that a subclass's id is always greater than every ancestor's.
func assignClassIDs(program *model.ProgramModel, order []string) {
	for _, name := range order {
		c := program.Classes[name]
		c.ClassID = program.AssignClassID()
	}
}

// flattenFields concatenates each class's supertype instance fields (in
// the super's own flattened order) with its own newly declared instance
// fields, assigning each a monotonically increasing SlotOffset (spec.md
// §4.2 step 2). Static fields are never flattened; they remain addressed
// by (owner, name) only.
func flattenFields(program *model.ProgramModel, order []string) error {
	for _, name := range order {
		c := program.Classes[name]
		if c.Origin == model.OriginRuntimeProvided {
			continue
		}
		var flattened []*model.FieldModel
		offset := 0
		if c.SuperName != "" {
			super, ok := program.Lookup(c.SuperName)
			if ok {
				flattened = append(flattened, super.FlattenedFields...)
				offset = len(super.FlattenedFields)
			}
		}
		for _, f := range c.Fields {
			if f.IsStatic {
				continue
			}
			f.SlotOffset = offset
			offset++
			flattened = append(flattened, f)
		}
		c.FlattenedFields = flattened
	}
	return nil
}

// buildVTables assigns a dense v-slot to every virtual-candidate method,
// inheriting the super's slot for an overriding method and appending a new
// slot otherwise (spec.md §4.2 step 3). Override is identity by
// (name, descriptor); a final method overridden anywhere is a LinkError.
func buildVTables(program *model.ProgramModel, order []string) error {
	var errs []*jtcerr.Error
	for _, name := range order {
		c := program.Classes[name]
		if c.Origin == model.OriginRuntimeProvided {
			continue
		}
		var vtable []*model.MethodModel
		if c.SuperName != "" {
			if super, ok := program.Lookup(c.SuperName); ok {
				vtable = append(vtable, super.VTable...)
			}
		}

		for _, m := range c.Methods {
			if !m.IsVirtualCandidate() {
				m.VSlot = -1
				continue
			}
			overrideSlot := -1
			for slot, existing := range vtable {
				if existing == nil {
					continue
				}
				if existing.Name == m.Name && existing.Descriptor == m.Descriptor {
					if existing.IsFinal() {
						errs = append(errs, jtcerr.New(jtcerr.LinkError, name,
							fmt.Sprintf("%s%s overrides final method declared in %s", m.Name, m.Descriptor, existing.Owner)))
					}
					overrideSlot = slot
					break
				}
			}
			if overrideSlot >= 0 {
				m.VSlot = overrideSlot
				vtable[overrideSlot] = m
			} else {
				m.VSlot = len(vtable)
				vtable = append(vtable, m)
			}
		}
		c.VTable = vtable
	}
	return jtcerr.NewMulti(jtcerr.LinkError, errs)
}

// buildInterfaceDispatch computes, for every class, the concrete method
// backing each interface method identity (interface, name, descriptor) it
// transitively implements (spec.md §4.2 step 4). Two distinct default
// implementations reaching the same class with no class override is a
// diamond conflict and a LinkError.
func buildInterfaceDispatch(program *model.ProgramModel, order []string) error {
	var errs []*jtcerr.Error
	for _, name := range order {
		c := program.Classes[name]
		if c.Origin == model.OriginRuntimeProvided || c.Kind == model.KindInterface {
			continue
		}
		dispatch := make(map[model.IfaceMethodKey]*model.MethodModel)
		if c.SuperName != "" {
			if super, ok := program.Lookup(c.SuperName); ok {
				for k, v := range super.IfaceDispatch {
					dispatch[k] = v
				}
			}
		}

		// bySignature tracks, independent of which interface a method is
		// reached through, the method currently backing (name, descriptor) —
		// so a conflict between two distinct interfaces' defaults for the
		// same signature is caught even though they sit under different
		// IfaceMethodKeys in dispatch (one per interface, for emission).
		bySignature := make(map[string]*model.MethodModel)
		for k, v := range dispatch {
			bySignature[k.Name+k.Descriptor] = v
		}

		ifaces := transitiveInterfaces(program, c)
		for _, iface := range ifaces {
			ic, ok := program.Lookup(iface)
			if !ok {
				continue
			}
			for _, im := range ic.Methods {
				if im.IsStatic() || im.IsConstructor() {
					continue
				}
				key := model.IfaceMethodKey{Interface: iface, Name: im.Name, Descriptor: im.Descriptor}
				sigKey := im.Name + im.Descriptor
				if concrete := findClassImplementation(c, im.Name, im.Descriptor); concrete != nil {
					dispatch[key] = concrete
					bySignature[sigKey] = concrete
					continue
				}
				if im.IsAbstract() {
					continue
				}
				if existing, ok := bySignature[sigKey]; ok && existing != im {
					errs = append(errs, jtcerr.New(jtcerr.LinkError, name,
						fmt.Sprintf("diamond conflict for %s.%s%s between %s and %s", iface, im.Name, im.Descriptor, existing.Owner, im.Owner)))
					continue
				}
				bySignature[sigKey] = im
				dispatch[key] = im
			}
		}
		c.IfaceDispatch = dispatch
	}
	return jtcerr.NewMulti(jtcerr.LinkError, errs)
}

func findClassImplementation(c *model.ClassModel, name, descriptor string) *model.MethodModel {
	for _, m := range c.VTable {
		if m != nil && m.Name == name && m.Descriptor == descriptor && !m.IsAbstract() {
			return m
		}
	}
	return nil
}

func transitiveInterfaces(program *model.ProgramModel, c *model.ClassModel) []string {
	seen := map[string]bool{}
	var order []string
	var visit func(name string)
	visit = func(name string) {
		cls, ok := program.Lookup(name)
		if !ok {
			return
		}
		for _, iface := range cls.Interfaces {
			if !seen[iface] {
				seen[iface] = true
				order = append(order, iface)
				visit(iface)
			}
		}
		if cls.SuperName != "" {
			visit(cls.SuperName)
		}
	}
	visit(c.Name)
	sort.Strings(order)
	return order
}

// mergeAnnotations folds an annotation type's own per-element default
// values (MethodModel.DefaultValue, parsed from each element method's
// AnnotationDefault attribute) into every concrete annotation usage that
// omits that element (spec.md §4.2 step 5), so Emit never has to consult
// the declaring annotation type. Element methods without a default
// contribute nothing, so usages omitting them are left untouched.
func mergeAnnotations(program *model.ProgramModel, order []string) {
	defaults := make(map[string]map[string]interface{})
	for _, name := range order {
		c := program.Classes[name]
		if c.Kind != model.KindAnnotation {
			continue
		}
		d := make(map[string]interface{})
		for _, m := range c.Methods {
			if m.DefaultValue != nil {
				d[m.Name] = m.DefaultValue
			}
		}
		if len(d) > 0 {
			defaults[name] = d
		}
	}

	merge := func(anns []model.Annotation) {
		for i := range anns {
			d, ok := defaults[anns[i].TypeName]
			if !ok {
				continue
			}
			if anns[i].Elements == nil {
				anns[i].Elements = map[string]interface{}{}
			}
			for k, v := range d {
				if _, present := anns[i].Elements[k]; !present {
					anns[i].Elements[k] = v
				}
			}
		}
	}

	for _, name := range order {
		c := program.Classes[name]
		merge(c.Annotations)
		for _, f := range c.Fields {
			merge(f.Annotations)
		}
		for _, m := range c.Methods {
			merge(m.Annotations)
		}
	}
}

// markReachable runs the worklist closure of spec.md §4.2 step 6, starting
// from the program's configured entry classes and following instantiation,
// static access, method reference, and type reference edges. Classes
// listed in Config.ProvidedByRuntime are resolved but never themselves
// marked reachable beyond their own declaration (their members are opaque).
func markReachable(program *model.ProgramModel) {
	var queue []string
	visitedClasses := map[string]bool{}

	markClass := func(name string) {
		if c, ok := program.Lookup(name); ok && !c.Reachable {
			c.Reachable = true
			if !visitedClasses[name] {
				visitedClasses[name] = true
				queue = append(queue, name)
			}
		}
	}

	for _, name := range program.EntryClasses {
		markClass(name)
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		c, ok := program.Lookup(name)
		if !ok || c.Origin == model.OriginRuntimeProvided {
			continue
		}

		if c.SuperName != "" {
			markClass(c.SuperName)
		}
		for _, iface := range c.Interfaces {
			markClass(iface)
		}
		for _, m := range c.Methods {
			m.Reachable = true
			for _, p := range m.Params {
				markType(p, markClass)
			}
			markType(m.Return, markClass)
			if m.Code != nil {
				for _, insn := range m.Code.Instructions {
					if insn.MemberClass != "" {
						markClass(insn.MemberClass)
					}
					if insn.TypeName != "" {
						markClass(insn.TypeName)
					}
				}
			}
			for _, h := range m.Handlers {
				if h.CatchType != "" {
					markClass(h.CatchType)
				}
			}
			for _, ann := range m.Annotations {
				markClass(ann.TypeName)
			}
		}
		for _, f := range c.Fields {
			f.Reachable = true
			markType(f.Type, markClass)
			for _, ann := range f.Annotations {
				markClass(ann.TypeName)
			}
		}
		for _, ann := range c.Annotations {
			markClass(ann.TypeName)
		}
	}
}

func markType(t model.JavaType, markClass func(string)) {
	switch t.Kind {
	case model.TObject:
		markClass(t.Referent)
	case model.TArray:
		if t.Elem != nil {
			markType(*t.Elem, markClass)
		}
	}
}

func sortedNames(program *model.ProgramModel) []string {
	names := make([]string, 0, len(program.Classes))
	for name := range program.Classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
