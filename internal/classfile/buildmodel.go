package classfile

import (
	"fmt"

	"github.com/bytecast/jtc/internal/model"
	"github.com/bytecast/jtc/internal/jtcerr"
)

// BuildClassModel converts a RawClassFile into the shared model.ClassModel,
// decoding every method's Code attribute into an InstructionStream along
// the way. It performs no cross-class lookups (that is Resolve's job) but
// resolves field/method descriptors and any constant-pool-backed names
// that are wholly local to this class.
func BuildClassModel(raw *RawClassFile) (*model.ClassModel, error) {
	name, err := raw.ClassName()
	if err != nil {
		return nil, jtcerr.Wrap(jtcerr.MalformedInput, "<unknown>", fmt.Errorf("resolving this_class: %w", err))
	}

	kind := model.KindClass
	switch {
	case raw.AccessFlags&model.AccAnnotation != 0:
		kind = model.KindAnnotation
	case raw.AccessFlags&model.AccInterface != 0:
		kind = model.KindInterface
	case raw.AccessFlags&model.AccEnum != 0:
		kind = model.KindEnum
	}

	c := model.NewClassModel(name, kind)
	c.AccessFlags = raw.AccessFlags
	c.SourceFile = raw.SourceFile
	c.Origin = model.OriginInput

	superName, err := raw.SuperClassName()
	if err != nil {
		return nil, jtcerr.Wrap(jtcerr.MalformedInput, name, fmt.Errorf("resolving super_class: %w", err))
	}
	c.SuperName = superName

	for _, idx := range raw.Interfaces {
		ifaceName, err := raw.Pool.ClassNameAt(idx)
		if err != nil {
			return nil, jtcerr.Wrap(jtcerr.MalformedInput, name, fmt.Errorf("resolving interface: %w", err))
		}
		c.Interfaces = append(c.Interfaces, ifaceName)
	}

	for _, ann := range raw.Annotations {
		c.Annotations = append(c.Annotations, toModelAnnotation(ann))
	}

	for _, rf := range raw.Fields {
		fm, err := buildFieldModel(name, rf)
		if err != nil {
			return nil, jtcerr.Wrap(jtcerr.MalformedInput, name, fmt.Errorf("field %s: %w", rf.Name, err))
		}
		c.Fields = append(c.Fields, fm)
	}

	for _, rm := range raw.Methods {
		mm, err := buildMethodModel(raw.Pool, name, rm)
		if err != nil {
			return nil, jtcerr.Wrap(jtcerr.MalformedInput, name, fmt.Errorf("method %s%s: %w", rm.Name, rm.Descriptor, err))
		}
		c.Methods = append(c.Methods, mm)
	}

	return c, nil
}

func buildFieldModel(owner string, rf RawField) (*model.FieldModel, error) {
	t, err := ParseFieldDescriptor(rf.Descriptor)
	if err != nil {
		return nil, err
	}
	fm := &model.FieldModel{
		Owner:       owner,
		Name:        rf.Name,
		AccessFlags: rf.AccessFlags,
		Type:        t,
		ConstValue:  rf.ConstValue,
		IsStatic:    rf.AccessFlags&model.AccStatic != 0,
	}
	for _, ann := range rf.Annotations {
		fm.Annotations = append(fm.Annotations, toModelAnnotation(ann))
	}
	return fm, nil
}

func buildMethodModel(pool Pool, owner string, rm RawMethod) (*model.MethodModel, error) {
	params, ret, err := ParseMethodDescriptor(rm.Descriptor)
	if err != nil {
		return nil, err
	}
	mm := &model.MethodModel{
		Owner:        owner,
		Name:         rm.Name,
		Descriptor:   rm.Descriptor,
		AccessFlags:  rm.AccessFlags,
		Params:       params,
		Return:       ret,
		VSlot:        -1,
		DefaultValue: rm.DefaultValue,
	}
	for _, ann := range rm.Annotations {
		mm.Annotations = append(mm.Annotations, toModelAnnotation(ann))
	}

	if rm.Code == nil {
		return mm, nil
	}
	mm.MaxStack = int(rm.Code.MaxStack)
	mm.MaxLocals = int(rm.Code.MaxLocals)

	stream, err := Decode(pool, rm.Code.Code)
	if err != nil {
		return nil, fmt.Errorf("decoding Code: %w", err)
	}
	mm.Code = stream

	for _, h := range rm.Code.ExceptionHandlers {
		eh := model.ExceptionHandler{
			StartPC:   int(h.StartPC),
			EndPC:     int(h.EndPC),
			HandlerPC: int(h.HandlerPC),
		}
		if h.CatchType != 0 {
			catchName, err := pool.ClassNameAt(h.CatchType)
			if err != nil {
				return nil, fmt.Errorf("resolving catch type: %w", err)
			}
			eh.CatchType = catchName
		}
		mm.Handlers = append(mm.Handlers, eh)
	}

	return mm, nil
}

func toModelAnnotation(ra RawAnnotation) model.Annotation {
	typeName := ra.TypeDescriptor
	if t, err := ParseFieldDescriptor(ra.TypeDescriptor); err == nil && t.Kind == model.TObject {
		typeName = t.Referent
	}
	return model.Annotation{TypeName: typeName, Elements: ra.Elements}
}
