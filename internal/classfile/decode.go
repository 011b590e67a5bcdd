package classfile

import (
	"encoding/binary"
	"fmt"

	"github.com/bytecast/jtc/internal/model"
)

// Opcode constants, JVM spec chapter 6. The decoded model.Instruction keeps
// both the numeric opcode and its mnemonic; Lower's switch dispatches on
// the mnemonic.
const (
	opNop         = 0x00
	opAconstNull  = 0x01
	opIconstM1    = 0x02
	opIconst0     = 0x03
	opIconst5     = 0x08
	opLconst0     = 0x09
	opLconst1     = 0x0a
	opFconst0     = 0x0b
	opFconst2     = 0x0d
	opDconst0     = 0x0e
	opDconst1     = 0x0f
	opBipush      = 0x10
	opSipush      = 0x11
	opLdc         = 0x12
	opLdcW        = 0x13
	opLdc2W       = 0x14
	opIload       = 0x15
	opLload       = 0x16
	opFload       = 0x17
	opDload       = 0x18
	opAload       = 0x19
	opIload0      = 0x1a
	opIload3      = 0x1d
	opLload0      = 0x1e
	opLload3      = 0x21
	opFload0      = 0x22
	opFload3      = 0x25
	opDload0      = 0x26
	opDload3      = 0x29
	opAload0      = 0x2a
	opAload3      = 0x2d
	opIaload      = 0x2e
	opLaload      = 0x2f
	opFaload      = 0x30
	opDaload      = 0x31
	opAaload      = 0x32
	opBaload      = 0x33
	opCaload      = 0x34
	opSaload      = 0x35
	opIstore      = 0x36
	opLstore      = 0x37
	opFstore      = 0x38
	opDstore      = 0x39
	opAstore      = 0x3a
	opIstore0     = 0x3b
	opIstore3     = 0x3e
	opLstore0     = 0x3f
	opLstore3     = 0x42
	opFstore0     = 0x43
	opFstore3     = 0x46
	opDstore0     = 0x47
	opDstore3     = 0x4a
	opAstore0     = 0x4b
	opAstore3     = 0x4e
	opIastore     = 0x4f
	opLastore     = 0x50
	opFastore     = 0x51
	opDastore     = 0x52
	opAastore     = 0x53
	opBastore     = 0x54
	opCastore     = 0x55
	opSastore     = 0x56
	opPop         = 0x57
	opPop2        = 0x58
	opDup         = 0x59
	opDupX1       = 0x5a
	opDupX2       = 0x5b
	opDup2        = 0x5c
	opDup2X1      = 0x5d
	opDup2X2      = 0x5e
	opSwap        = 0x5f
	opIadd        = 0x60
	opLadd        = 0x61
	opFadd        = 0x62
	opDadd        = 0x63
	opIsub        = 0x64
	opLsub        = 0x65
	opFsub        = 0x66
	opDsub        = 0x67
	opImul        = 0x68
	opLmul        = 0x69
	opFmul        = 0x6a
	opDmul        = 0x6b
	opIdiv        = 0x6c
	opLdiv        = 0x6d
	opFdiv        = 0x6e
	opDdiv        = 0x6f
	opIrem        = 0x70
	opLrem        = 0x71
	opFrem        = 0x72
	opDrem        = 0x73
	opIneg        = 0x74
	opLneg        = 0x75
	opFneg        = 0x76
	opDneg        = 0x77
	opIshl        = 0x78
	opLshl        = 0x79
	opIshr        = 0x7a
	opLshr        = 0x7b
	opIushr       = 0x7c
	opLushr       = 0x7d
	opIand        = 0x7e
	opLand        = 0x7f
	opIor         = 0x80
	opLor         = 0x81
	opIxor        = 0x82
	opLxor        = 0x83
	opIinc        = 0x84
	opI2l         = 0x85
	opI2f         = 0x86
	opI2d         = 0x87
	opL2i         = 0x88
	opL2f         = 0x89
	opL2d         = 0x8a
	opF2i         = 0x8b
	opF2l         = 0x8c
	opF2d         = 0x8d
	opD2i         = 0x8e
	opD2l         = 0x8f
	opD2f         = 0x90
	opI2b         = 0x91
	opI2c         = 0x92
	opI2s         = 0x93
	opLcmp        = 0x94
	opFcmpl       = 0x95
	opFcmpg       = 0x96
	opDcmpl       = 0x97
	opDcmpg       = 0x98
	opIfeq        = 0x99
	opIfne        = 0x9a
	opIflt        = 0x9b
	opIfge        = 0x9c
	opIfgt        = 0x9d
	opIfle        = 0x9e
	opIfIcmpeq    = 0x9f
	opIfIcmpne    = 0xa0
	opIfIcmplt    = 0xa1
	opIfIcmpge    = 0xa2
	opIfIcmpgt    = 0xa3
	opIfIcmple    = 0xa4
	opIfAcmpeq    = 0xa5
	opIfAcmpne    = 0xa6
	opGoto        = 0xa7
	opJsr         = 0xa8
	opRet         = 0xa9
	opTableswitch = 0xaa
	opLookupswitch = 0xab
	opIreturn     = 0xac
	opLreturn     = 0xad
	opFreturn     = 0xae
	opDreturn     = 0xaf
	opAreturn     = 0xb0
	opReturn      = 0xb1
	opGetstatic   = 0xb2
	opPutstatic   = 0xb3
	opGetfield    = 0xb4
	opPutfield    = 0xb5
	opInvokevirtual   = 0xb6
	opInvokespecial   = 0xb7
	opInvokestatic    = 0xb8
	opInvokeinterface = 0xb9
	opInvokedynamic   = 0xba
	opNew         = 0xbb
	opNewarray    = 0xbc
	opAnewarray   = 0xbd
	opArraylength = 0xbe
	opAthrow      = 0xbf
	opCheckcast   = 0xc0
	opInstanceof  = 0xc1
	opMonitorenter = 0xc2
	opMonitorexit  = 0xc3
	opWide        = 0xc4
	opMultianewarray = 0xc5
	opIfnull      = 0xc6
	opIfnonnull   = 0xc7
	opGotoW       = 0xc8
	opJsrW        = 0xc9
)

var mnemonics = map[byte]string{
	opNop: "nop", opAconstNull: "aconst_null",
	opIconstM1: "iconst_m1", opIconst0: "iconst_0",
	opBipush: "bipush", opSipush: "sipush",
	opLdc: "ldc", opLdcW: "ldc_w", opLdc2W: "ldc2_w",
	opIload: "iload", opLload: "lload", opFload: "fload", opDload: "dload", opAload: "aload",
	opIaload: "iaload", opLaload: "laload", opFaload: "faload", opDaload: "daload",
	opAaload: "aaload", opBaload: "baload", opCaload: "caload", opSaload: "saload",
	opIstore: "istore", opLstore: "lstore", opFstore: "fstore", opDstore: "dstore", opAstore: "astore",
	opIastore: "iastore", opLastore: "lastore", opFastore: "fastore", opDastore: "dastore",
	opAastore: "aastore", opBastore: "bastore", opCastore: "castore", opSastore: "sastore",
	opPop: "pop", opPop2: "pop2",
	opDup: "dup", opDupX1: "dup_x1", opDupX2: "dup_x2",
	opDup2: "dup2", opDup2X1: "dup2_x1", opDup2X2: "dup2_x2", opSwap: "swap",
	opIadd: "iadd", opLadd: "ladd", opFadd: "fadd", opDadd: "dadd",
	opIsub: "isub", opLsub: "lsub", opFsub: "fsub", opDsub: "dsub",
	opImul: "imul", opLmul: "lmul", opFmul: "fmul", opDmul: "dmul",
	opIdiv: "idiv", opLdiv: "ldiv", opFdiv: "fdiv", opDdiv: "ddiv",
	opIrem: "irem", opLrem: "lrem", opFrem: "frem", opDrem: "drem",
	opIneg: "ineg", opLneg: "lneg", opFneg: "fneg", opDneg: "dneg",
	opIshl: "ishl", opLshl: "lshl", opIshr: "ishr", opLshr: "lshr",
	opIushr: "iushr", opLushr: "lushr",
	opIand: "iand", opLand: "land", opIor: "ior", opLor: "lor", opIxor: "ixor", opLxor: "lxor",
	opIinc: "iinc",
	opI2l: "i2l", opI2f: "i2f", opI2d: "i2d", opL2i: "l2i", opL2f: "l2f", opL2d: "l2d",
	opF2i: "f2i", opF2l: "f2l", opF2d: "f2d", opD2i: "d2i", opD2l: "d2l", opD2f: "d2f",
	opI2b: "i2b", opI2c: "i2c", opI2s: "i2s",
	opLcmp: "lcmp", opFcmpl: "fcmpl", opFcmpg: "fcmpg", opDcmpl: "dcmpl", opDcmpg: "dcmpg",
	opIfeq: "ifeq", opIfne: "ifne", opIflt: "iflt", opIfge: "ifge", opIfgt: "ifgt", opIfle: "ifle",
	opIfIcmpeq: "if_icmpeq", opIfIcmpne: "if_icmpne", opIfIcmplt: "if_icmplt",
	opIfIcmpge: "if_icmpge", opIfIcmpgt: "if_icmpgt", opIfIcmple: "if_icmple",
	opIfAcmpeq: "if_acmpeq", opIfAcmpne: "if_acmpne",
	opGoto: "goto", opJsr: "jsr", opRet: "ret",
	opTableswitch: "tableswitch", opLookupswitch: "lookupswitch",
	opIreturn: "ireturn", opLreturn: "lreturn", opFreturn: "freturn", opDreturn: "dreturn",
	opAreturn: "areturn", opReturn: "return",
	opGetstatic: "getstatic", opPutstatic: "putstatic",
	opGetfield: "getfield", opPutfield: "putfield",
	opInvokevirtual: "invokevirtual", opInvokespecial: "invokespecial",
	opInvokestatic: "invokestatic", opInvokeinterface: "invokeinterface",
	opInvokedynamic: "invokedynamic",
	opNew: "new", opNewarray: "newarray", opAnewarray: "anewarray",
	opArraylength: "arraylength", opAthrow: "athrow",
	opCheckcast: "checkcast", opInstanceof: "instanceof",
	opMonitorenter: "monitorenter", opMonitorexit: "monitorexit",
	opWide: "wide", opMultianewarray: "multianewarray",
	opIfnull: "ifnull", opIfnonnull: "ifnonnull",
	opGotoW: "goto_w", opJsrW: "jsr_w",
}

func mnemonicFor(op byte) string {
	if m, ok := mnemonics[op]; ok {
		return m
	}
	if op >= opIconstM1 && op <= opIconst5 {
		return fmt.Sprintf("iconst_%d", int(op)-int(opIconstM1)-1)
	}
	if op >= opLconst0 && op <= opLconst1 {
		return fmt.Sprintf("lconst_%d", op-opLconst0)
	}
	if op >= opFconst0 && op <= opFconst2 {
		return fmt.Sprintf("fconst_%d", op-opFconst0)
	}
	if op >= opDconst0 && op <= opDconst1 {
		return fmt.Sprintf("dconst_%d", op-opDconst0)
	}
	return variadicLocalMnemonic(op)
}

func variadicLocalMnemonic(op byte) string {
	switch {
	case op >= opIload0 && op <= opIload3:
		return fmt.Sprintf("iload_%d", op-opIload0)
	case op >= opLload0 && op <= opLload3:
		return fmt.Sprintf("lload_%d", op-opLload0)
	case op >= opFload0 && op <= opFload3:
		return fmt.Sprintf("fload_%d", op-opFload0)
	case op >= opDload0 && op <= opDload3:
		return fmt.Sprintf("dload_%d", op-opDload0)
	case op >= opAload0 && op <= opAload3:
		return fmt.Sprintf("aload_%d", op-opAload0)
	case op >= opIstore0 && op <= opIstore3:
		return fmt.Sprintf("istore_%d", op-opIstore0)
	case op >= opLstore0 && op <= opLstore3:
		return fmt.Sprintf("lstore_%d", op-opLstore0)
	case op >= opFstore0 && op <= opFstore3:
		return fmt.Sprintf("fstore_%d", op-opFstore0)
	case op >= opDstore0 && op <= opDstore3:
		return fmt.Sprintf("dstore_%d", op-opDstore0)
	case op >= opAstore0 && op <= opAstore3:
		return fmt.Sprintf("astore_%d", op-opAstore0)
	default:
		return fmt.Sprintf("unknown_0x%02x", op)
	}
}

// Decode performs the one linear pass over a Code attribute's byte array
// required by spec.md §4.1, producing an offset-addressable InstructionStream.
// It does not resolve constant-pool references beyond what is needed to
// carry member/type names forward for Resolve — no cross-class lookups occur.
func Decode(pool Pool, code []byte) (*model.InstructionStream, error) {
	var insns []model.Instruction
	i := 0
	for i < len(code) {
		start := i
		op := code[i]
		i++

		insn := model.Instruction{Offset: start, Opcode: op, Mnemonic: mnemonicFor(op)}

		switch {
		case isLocalVarOp(op):
			insn.LocalIndex = int(code[i])
			i++

		case op == opIinc:
			insn.LocalIndex = int(code[i])
			insn.IntImmediate = int64(int8(code[i+1]))
			i += 2

		case op == opBipush:
			insn.IntImmediate = int64(int8(code[i]))
			i++

		case op == opSipush:
			insn.IntImmediate = int64(int16(binary.BigEndian.Uint16(code[i : i+2])))
			i += 2

		case op == opLdc:
			idx := int(code[i])
			i++
			insn.ConstIndex = idx
			kind, value, err := pool.LdcConstantAt(uint16(idx))
			if err != nil {
				return nil, fmt.Errorf("offset %d (%s): %w", start, insn.Mnemonic, err)
			}
			insn.ConstKind, insn.ConstValue = kind, value

		case op == opLdcW || op == opLdc2W:
			idx := int(binary.BigEndian.Uint16(code[i : i+2]))
			i += 2
			insn.ConstIndex = idx
			kind, value, err := pool.LdcConstantAt(uint16(idx))
			if err != nil {
				return nil, fmt.Errorf("offset %d (%s): %w", start, insn.Mnemonic, err)
			}
			insn.ConstKind, insn.ConstValue = kind, value

		case op == opNewarray:
			insn.IntImmediate = int64(code[i])
			i++

		case op == opNew || op == opAnewarray || op == opCheckcast || op == opInstanceof:
			idx := binary.BigEndian.Uint16(code[i : i+2])
			i += 2
			insn.ConstIndex = int(idx)
			name, err := pool.ClassNameAt(idx)
			if err != nil {
				return nil, fmt.Errorf("offset %d (%s): %w", start, insn.Mnemonic, err)
			}
			insn.TypeName = name

		case op == opGetstatic || op == opPutstatic || op == opGetfield || op == opPutfield:
			idx := binary.BigEndian.Uint16(code[i : i+2])
			i += 2
			insn.ConstIndex = int(idx)
			ref, err := pool.FieldrefAt(idx)
			if err != nil {
				return nil, fmt.Errorf("offset %d (%s): %w", start, insn.Mnemonic, err)
			}
			insn.MemberClass, insn.MemberName, insn.MemberDesc = ref.ClassName, ref.MemberName, ref.Descriptor

		case op == opInvokevirtual || op == opInvokespecial || op == opInvokestatic:
			idx := binary.BigEndian.Uint16(code[i : i+2])
			i += 2
			insn.ConstIndex = int(idx)
			ref, err := pool.MethodrefAt(idx)
			if err != nil {
				return nil, fmt.Errorf("offset %d (%s): %w", start, insn.Mnemonic, err)
			}
			insn.MemberClass, insn.MemberName, insn.MemberDesc = ref.ClassName, ref.MemberName, ref.Descriptor

		case op == opInvokeinterface:
			idx := binary.BigEndian.Uint16(code[i : i+2])
			i += 2
			i += 2 // count, zero byte
			insn.ConstIndex = int(idx)
			ref, err := pool.InterfaceMethodrefAt(idx)
			if err != nil {
				return nil, fmt.Errorf("offset %d (%s): %w", start, insn.Mnemonic, err)
			}
			insn.MemberClass, insn.MemberName, insn.MemberDesc = ref.ClassName, ref.MemberName, ref.Descriptor

		case op == opInvokedynamic:
			idx := binary.BigEndian.Uint16(code[i : i+2])
			i += 4 // name/type index, two reserved zero bytes
			insn.ConstIndex = int(idx)

		case op == opIfeq || op == opIfne || op == opIflt || op == opIfge || op == opIfgt || op == opIfle ||
			op == opIfIcmpeq || op == opIfIcmpne || op == opIfIcmplt || op == opIfIcmpge || op == opIfIcmpgt || op == opIfIcmple ||
			op == opIfAcmpeq || op == opIfAcmpne || op == opGoto || op == opJsr ||
			op == opIfnull || op == opIfnonnull:
			offset16 := int16(binary.BigEndian.Uint16(code[i : i+2]))
			i += 2
			insn.BranchTarget = start + int(offset16)

		case op == opGotoW || op == opJsrW:
			offset32 := int32(binary.BigEndian.Uint32(code[i : i+4]))
			i += 4
			insn.BranchTarget = start + int(offset32)

		case op == opRet:
			insn.LocalIndex = int(code[i])
			i++

		case op == opTableswitch:
			// pad to 4-byte boundary from the start of the method
			i = align4(i)
			def := int32(binary.BigEndian.Uint32(code[i : i+4]))
			i += 4
			low := int32(binary.BigEndian.Uint32(code[i : i+4]))
			i += 4
			high := int32(binary.BigEndian.Uint32(code[i : i+4]))
			i += 4
			n := int(high-low) + 1
			targets := make([]int, n)
			for j := 0; j < n; j++ {
				off := int32(binary.BigEndian.Uint32(code[i : i+4]))
				i += 4
				targets[j] = start + int(off)
			}
			insn.TableSwitch = &model.TableSwitch{
				Default: start + int(def),
				Low:     int(low),
				High:    int(high),
				Targets: targets,
			}

		case op == opLookupswitch:
			i = align4(i)
			def := int32(binary.BigEndian.Uint32(code[i : i+4]))
			i += 4
			npairs := int32(binary.BigEndian.Uint32(code[i : i+4]))
			i += 4
			pairs := make(map[int]int, npairs)
			for j := int32(0); j < npairs; j++ {
				match := int32(binary.BigEndian.Uint32(code[i : i+4]))
				i += 4
				off := int32(binary.BigEndian.Uint32(code[i : i+4]))
				i += 4
				pairs[int(match)] = start + int(off)
			}
			insn.LookupSwitch = &model.LookupSwitch{Default: start + int(def), Pairs: pairs}

		case op == opMultianewarray:
			idx := binary.BigEndian.Uint16(code[i : i+2])
			dims := code[i+2]
			i += 3
			insn.ConstIndex = int(idx)
			insn.IntImmediate = int64(dims)
			name, err := pool.ClassNameAt(idx)
			if err != nil {
				return nil, fmt.Errorf("offset %d (multianewarray): %w", start, err)
			}
			insn.TypeName = name

		case op == opWide:
			insn, i = decodeWide(code, i, start)

		default:
			// nop and the zero-operand arithmetic/stack/return family need no operand bytes.
		}

		insns = append(insns, insn)
	}
	return &model.InstructionStream{Instructions: insns}, nil
}

func isLocalVarOp(op byte) bool {
	switch op {
	case opIload, opLload, opFload, opDload, opAload,
		opIstore, opLstore, opFstore, opDstore, opAstore:
		return true
	}
	return false
}

func align4(i int) int {
	for i%4 != 0 {
		i++
	}
	return i
}

func decodeWide(code []byte, i, start int) (model.Instruction, int) {
	sub := code[i]
	i++
	insn := model.Instruction{Offset: start, Opcode: opWide}
	if sub == opIinc {
		insn.Mnemonic = "wide iinc"
		insn.LocalIndex = int(binary.BigEndian.Uint16(code[i : i+2]))
		i += 2
		insn.IntImmediate = int64(int16(binary.BigEndian.Uint16(code[i : i+2])))
		i += 2
	} else {
		insn.Mnemonic = "wide " + mnemonicFor(sub)
		insn.LocalIndex = int(binary.BigEndian.Uint16(code[i : i+2]))
		i += 2
	}
	return insn, i
}
