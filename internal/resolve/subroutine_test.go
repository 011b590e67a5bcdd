package resolve

import (
	"testing"

	"github.com/bytecast/jtc/internal/model"
)

func instr(offset int, mnemonic string) model.Instruction {
	return model.Instruction{Offset: offset, Mnemonic: mnemonic}
}

func branchInstr(offset int, mnemonic string, target int) model.Instruction {
	return model.Instruction{Offset: offset, Mnemonic: mnemonic, BranchTarget: target}
}

func TestInlineSubroutinesReplacesJsrAndRet(t *testing.T) {
	owner := model.NewClassModel("Finally", model.KindClass)
	m := &model.MethodModel{
		Owner: "Finally", Name: "run", Descriptor: "()V",
		Code: &model.InstructionStream{Instructions: []model.Instruction{
			instr(0, "nop"),
			branchInstr(1, "jsr", 10),
			instr(4, "return"),
			instr(10, "astore"),
			instr(11, "nop"),
			instr(12, "ret"),
		}},
	}

	if err := inlineSubroutines(owner, m); err != nil {
		t.Fatalf("inlineSubroutines: %v", err)
	}

	for _, insn := range m.Code.Instructions {
		if insn.Mnemonic == "jsr" || insn.Mnemonic == "ret" {
			t.Fatalf("jsr/ret survived inlining: %+v", insn)
		}
	}

	jsrSite := m.Code.At(1)
	if jsrSite == nil || jsrSite.Mnemonic != "goto" {
		t.Fatalf("offset 1 = %+v, want goto replacing jsr", jsrSite)
	}
	clonedEntry := m.Code.At(jsrSite.BranchTarget)
	if clonedEntry == nil || clonedEntry.Mnemonic != "astore" {
		t.Fatalf("cloned subroutine entry = %+v, want astore", clonedEntry)
	}

	var clonedRet *model.Instruction
	for i := range m.Code.Instructions {
		insn := &m.Code.Instructions[i]
		if insn.Offset > 12 && insn.Offset != clonedEntry.Offset {
			clonedRet = insn
		}
	}
	if clonedRet == nil || clonedRet.Mnemonic != "goto" || clonedRet.BranchTarget != 4 {
		t.Fatalf("cloned ret replacement = %+v, want goto to offset 4 (return address)", clonedRet)
	}
}

func TestInlineSubroutinesRejectsRecursion(t *testing.T) {
	owner := model.NewClassModel("Recursive", model.KindClass)
	m := &model.MethodModel{
		Owner: "Recursive", Name: "run", Descriptor: "()V",
		Code: &model.InstructionStream{Instructions: []model.Instruction{
			branchInstr(0, "jsr", 5),
			instr(3, "return"),
			instr(5, "astore"),
			branchInstr(6, "jsr", 5),
			instr(9, "ret"),
		}},
	}

	if err := inlineSubroutines(owner, m); err == nil {
		t.Fatal("expected an error for a subroutine that jsrs into its own body")
	}
}

func TestInlineSubroutinesNoopWithoutJsr(t *testing.T) {
	owner := model.NewClassModel("Plain", model.KindClass)
	m := &model.MethodModel{
		Owner: "Plain", Name: "run", Descriptor: "()V",
		Code: &model.InstructionStream{Instructions: []model.Instruction{
			instr(0, "return"),
		}},
	}
	if err := inlineSubroutines(owner, m); err != nil {
		t.Fatalf("inlineSubroutines: %v", err)
	}
	if len(m.Code.Instructions) != 1 {
		t.Fatalf("len(Instructions) = %d, want unchanged 1", len(m.Code.Instructions))
	}
}
