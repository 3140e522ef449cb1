package recompiler

// REX Prefix Constants
const (
	X86_REX_BASE = 0x40
	X86_REX_W    = 0x08 // REX.W - 64-bit operand size
	X86_REX_R    = 0x04 // REX.R - Extension of ModRM reg field
	X86_REX_X    = 0x02 // REX.X - Extension of SIB index field
	X86_REX_B    = 0x01 // REX.B - Extension of ModRM r/m, SIB base, or opcode reg field
)

// ModRM Mode Constants
const (
	X86_MOD_INDIRECT_DISP32 = 0x02 // [reg + disp32]
	X86_MOD_REGISTER        = 0x03 // reg
)

const (
	X86_PREFIX_66 = 0x66 // operand-size override
	X86_PREFIX_0F = 0x0F // two-byte opcode escape
)

// Primary Opcodes
const (
	X86_OP_ADD_RM_R        = 0x01 // ADD r/m, r
	X86_OP_OR_RM_R         = 0x09 // OR r/m, r
	X86_OP_AND_RM_R        = 0x21 // AND r/m, r
	X86_OP_SUB_RM_R        = 0x29 // SUB r/m, r
	X86_OP_XOR_RM_R        = 0x31 // XOR r/m, r
	X86_OP_CMP_RM_R        = 0x39 // CMP r/m, r
	X86_OP_PUSH_R          = 0x50 // PUSH r64 (+ reg)
	X86_OP_POP_R           = 0x58 // POP r64 (+ reg)
	X86_OP_IMUL_R_RM_IMM32 = 0x69 // IMUL r, r/m, imm32
	X86_OP_GROUP1_RM_IMM32 = 0x81 // Group 1 operations with imm32
	X86_OP_GROUP1_RM_IMM8  = 0x83 // Group 1 operations with imm8
	X86_OP_TEST_RM_R       = 0x85 // TEST r/m, r
	X86_OP_MOV_RM8_R8      = 0x88 // MOV r/m8, r8
	X86_OP_MOV_RM_R        = 0x89 // MOV r/m, r
	X86_OP_MOV_R_RM        = 0x8B // MOV r, r/m
	X86_OP_MOV_R_IMM       = 0xB8 // MOV r, imm (+ reg)
	X86_OP_GROUP2_RM_IMM8  = 0xC1 // Group 2 shift operations with imm8
	X86_OP_RET             = 0xC3 // RET
	X86_OP_MOV_RM_IMM8     = 0xC6 // MOV r/m8, imm8
	X86_OP_MOV_RM_IMM      = 0xC7 // MOV r/m, imm32
	X86_OP_GROUP2_RM_CL    = 0xD3 // Group 2 shift operations by CL
	X86_OP_JMP_REL32       = 0xE9 // JMP rel32
	X86_OP_GROUP3_RM       = 0xF7 // Group 3 unary operations
	X86_OP_GROUP5_RM       = 0xFF // Group 5 operations (INC, DEC, CALL, JMP, PUSH)
)

// Two-byte Opcodes (0x0F prefix)
const (
	X86_OP2_MOVZX_R_RM8  = 0xB6 // MOVZX r, r/m8
	X86_OP2_MOVZX_R_RM16 = 0xB7 // MOVZX r, r/m16
	X86_OP2_IMUL_R_RM    = 0xAF // IMUL r, r/m
	X86_OP2_BSWAP        = 0xC8 // BSWAP r32/r64 (+ reg)
)

// Conditional Jump Opcodes (0x0F prefix)
const (
	X86_OP2_JB  = 0x82 // JB/JNAE/JC rel32
	X86_OP2_JAE = 0x83 // JAE/JNB/JNC rel32
	X86_OP2_JE  = 0x84 // JE/JZ rel32
	X86_OP2_JNE = 0x85 // JNE/JNZ rel32
	X86_OP2_JBE = 0x86 // JBE/JNA rel32
	X86_OP2_JA  = 0x87 // JA/JNBE rel32
	X86_OP2_JL  = 0x8C // JL/JNGE rel32
	X86_OP2_JGE = 0x8D // JGE/JNL rel32
	X86_OP2_JLE = 0x8E // JLE/JNG rel32
	X86_OP2_JG  = 0x8F // JG/JNLE rel32
)

// ModRM reg field constants for opcodes with sub-operations
const (
	X86_REG_ADD = 0 // group 1
	X86_REG_OR  = 1
	X86_REG_AND = 4
	X86_REG_SUB = 5
	X86_REG_XOR = 6
	X86_REG_CMP = 7

	X86_REG_ROR = 1 // group 2
	X86_REG_SHL = 4
	X86_REG_SHR = 5
	X86_REG_SAR = 7

	X86_REG_TEST = 0 // group 3
	X86_REG_NEG  = 3
	X86_REG_DIV  = 6

	X86_REG_CALL = 2 // group 5
)
