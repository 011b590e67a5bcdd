package resolve

import (
	"fmt"

	"github.com/bytecast/jtc/internal/jtcerr"
	"github.com/bytecast/jtc/internal/model"
)

// inlineAllSubroutines runs inlineSubroutines over every method body in the
// program, skipping runtime-provided classes (opaque placeholders, never
// translated) and methods Ingest left codeless (abstract/native).
func inlineAllSubroutines(program *model.ProgramModel, order []string) error {
	for _, name := range order {
		c := program.Classes[name]
		if c.Origin == model.OriginRuntimeProvided {
			continue
		}
		for _, m := range c.Methods {
			if err := inlineSubroutines(c, m); err != nil {
				return err
			}
		}
	}
	return nil
}

// inlineSubroutines rewrites every jsr/jsr_w call site in m's code into a
// cloned copy of the target subroutine with its ret replaced by a goto back
// to the call site's return address, per spec.md §9 ("the jsr/ret construct
// does not map cleanly to any modern control-flow representation; inline
// unconditionally at Resolve time"). Once every call site has its clone, the
// original subroutine bodies are dropped. This runs before Lower ever sees
// the method, so Lower can assume an acyclic jsr- and ret-free stream.
func inlineSubroutines(owner *model.ClassModel, m *model.MethodModel) error {
	if m.Code == nil {
		return nil
	}
	insc := m.Code
	synthetic := nextSyntheticOffset(insc.Instructions)
	inlined := make(map[int]int) // original subroutine entry offset -> its ret offset

	for {
		i, found := findJsr(insc.Instructions)
		if !found {
			kept := insc.Instructions[:0]
			for _, insn := range insc.Instructions {
				dead := false
				for entry, ret := range inlined {
					dead = dead || (insn.Offset >= entry && insn.Offset <= ret)
				}
				if !dead {
					kept = append(kept, insn)
				}
			}
			insc.Instructions = kept
			return nil
		}
		jsr := insc.Instructions[i]
		returnAddr, ok := returnAddressAfter(insc.Instructions, i)
		if !ok {
			return jtcerr.New(jtcerr.VerifyError, owner.Name, fmt.Sprintf("%s: jsr at offset %d has no fall-through return address", m.Name+m.Descriptor, jsr.Offset))
		}

		entryIdx := indexOfOffset(insc.Instructions, jsr.BranchTarget)
		if entryIdx < 0 {
			return jtcerr.New(jtcerr.VerifyError, owner.Name, fmt.Sprintf("%s: jsr at offset %d targets unknown offset %d", m.Name+m.Descriptor, jsr.Offset, jsr.BranchTarget))
		}
		retIdx := firstRetFrom(insc.Instructions, entryIdx)
		if retIdx < 0 {
			return jtcerr.New(jtcerr.VerifyError, owner.Name, fmt.Sprintf("%s: subroutine at offset %d has no ret", m.Name+m.Descriptor, jsr.BranchTarget))
		}
		if err := rejectRecursiveSubroutine(insc.Instructions, entryIdx, retIdx); err != nil {
			return jtcerr.New(jtcerr.Unsupported, owner.Name, fmt.Sprintf("%s: %v", m.Name+m.Descriptor, err))
		}
		inlined[jsr.BranchTarget] = insc.Instructions[retIdx].Offset

		clone, offsetMap, newSynthetic := cloneSubroutineBody(insc.Instructions[entryIdx:retIdx+1], synthetic)
		synthetic = newSynthetic
		cloneEntryOffset := clone[0].Offset

		for k := range clone {
			if clone[k].Mnemonic == "ret" {
				clone[k] = model.Instruction{Offset: clone[k].Offset, Opcode: opGoto, Mnemonic: "goto", BranchTarget: returnAddr}
			}
		}
		remapInternalBranches(clone, offsetMap)

		insc.Instructions[i] = model.Instruction{Offset: jsr.Offset, Opcode: opGoto, Mnemonic: "goto", BranchTarget: cloneEntryOffset}
		insc.Instructions = append(insc.Instructions, clone...)
	}
}

// opGoto is the JVM goto opcode (0xa7); jsr_w's literal wide-offset variant
// is never needed for the synthesized replacement since BranchTarget is
// already an absolute offset regardless of original encoding width.
const opGoto = 0xa7

func nextSyntheticOffset(insns []model.Instruction) int {
	max := 0
	for _, insn := range insns {
		if insn.Offset > max {
			max = insn.Offset
		}
	}
	return max + 1000
}

func findJsr(insns []model.Instruction) (int, bool) {
	for i, insn := range insns {
		if insn.Mnemonic == "jsr" || insn.Mnemonic == "jsr_w" {
			return i, true
		}
	}
	return -1, false
}

func returnAddressAfter(insns []model.Instruction, jsrIdx int) (int, bool) {
	if jsrIdx+1 < len(insns) {
		return insns[jsrIdx+1].Offset, true
	}
	return 0, false
}

func indexOfOffset(insns []model.Instruction, offset int) int {
	for i, insn := range insns {
		if insn.Offset == offset {
			return i
		}
	}
	return -1
}

func firstRetFrom(insns []model.Instruction, from int) int {
	for i := from; i < len(insns); i++ {
		if insns[i].Mnemonic == "ret" {
			return i
		}
	}
	return -1
}

// rejectRecursiveSubroutine flags a subroutine that calls back into itself
// (directly or by jsr-ing to an offset inside its own body), which spec.md
// §9 forbids outright rather than attempting cyclic inlining.
func rejectRecursiveSubroutine(insns []model.Instruction, entryIdx, retIdx int) error {
	entryOffset, retOffset := insns[entryIdx].Offset, insns[retIdx].Offset
	for i := entryIdx; i <= retIdx; i++ {
		insn := insns[i]
		if insn.Mnemonic != "jsr" && insn.Mnemonic != "jsr_w" {
			continue
		}
		if insn.BranchTarget >= entryOffset && insn.BranchTarget <= retOffset {
			return fmt.Errorf("recursive subroutine at offset %d", entryOffset)
		}
	}
	return nil
}

// cloneSubroutineBody deep-copies body, assigning each instruction a fresh
// synthetic offset so the clone can coexist with the original (shared by
// other call sites) and any earlier clones already appended. Returns the
// clone, the old->new offset map for internal-branch remapping, and the
// next unused synthetic offset.
func cloneSubroutineBody(body []model.Instruction, nextOffset int) ([]model.Instruction, map[int]int, int) {
	clone := make([]model.Instruction, len(body))
	offsetMap := make(map[int]int, len(body))
	for i, insn := range body {
		newInsn := insn
		newInsn.Offset = nextOffset
		offsetMap[insn.Offset] = nextOffset
		nextOffset++
		if insn.TableSwitch != nil {
			ts := *insn.TableSwitch
			ts.Targets = append([]int(nil), insn.TableSwitch.Targets...)
			newInsn.TableSwitch = &ts
		}
		if insn.LookupSwitch != nil {
			ls := *insn.LookupSwitch
			ls.Pairs = make(map[int]int, len(insn.LookupSwitch.Pairs))
			for k, v := range insn.LookupSwitch.Pairs {
				ls.Pairs[k] = v
			}
			newInsn.LookupSwitch = &ls
		}
		clone[i] = newInsn
	}
	return clone, offsetMap, nextOffset
}

// remapInternalBranches rewrites every branch target that fell inside the
// original subroutine body to point at the corresponding cloned
// instruction; targets outside the body (a branch back out to shared code)
// are left pointing at the original, still-present offset.
func remapInternalBranches(clone []model.Instruction, offsetMap map[int]int) {
	for i := range clone {
		insn := &clone[i]
		if newTarget, ok := offsetMap[insn.BranchTarget]; ok && insn.BranchTarget != 0 {
			insn.BranchTarget = newTarget
		}
		if insn.TableSwitch != nil {
			if nd, ok := offsetMap[insn.TableSwitch.Default]; ok {
				insn.TableSwitch.Default = nd
			}
			for k, t := range insn.TableSwitch.Targets {
				if nt, ok := offsetMap[t]; ok {
					insn.TableSwitch.Targets[k] = nt
				}
			}
		}
		if insn.LookupSwitch != nil {
			if nd, ok := offsetMap[insn.LookupSwitch.Default]; ok {
				insn.LookupSwitch.Default = nd
			}
			for k, t := range insn.LookupSwitch.Pairs {
				if nt, ok := offsetMap[t]; ok {
					insn.LookupSwitch.Pairs[k] = nt
				}
			}
		}
	}
}
