package recompiler

// X86Reg represents an x86-64 register with encoding information
type X86Reg struct {
	Name    string
	RegBits byte // 3-bit code for ModRM/SIB
	REXBit  byte // 1 if register index >= 8
}

var (
	RAX = X86Reg{"rax", 0, 0}
	RCX = X86Reg{"rcx", 1, 0}
	RDX = X86Reg{"rdx", 2, 0}
	RBX = X86Reg{"rbx", 3, 0}
	RSP = X86Reg{"rsp", 4, 0}
	RBP = X86Reg{"rbp", 5, 0}
	RSI = X86Reg{"rsi", 6, 0}
	RDI = X86Reg{"rdi", 7, 0}
	R8  = X86Reg{"r8", 0, 1}
	R9  = X86Reg{"r9", 1, 1}
	R10 = X86Reg{"r10", 2, 1}
	R11 = X86Reg{"r11", 3, 1}
	R12 = X86Reg{"r12", 4, 1}
	R13 = X86Reg{"r13", 5, 1}
	R14 = X86Reg{"r14", 6, 1}
	R15 = X86Reg{"r15", 7, 1}
)

// bpfRegs maps eBPF r0..r10 onto the host. r1..r5 line up with the SysV
// argument registers so helper calls need no shuffling; r6..r10 live in
// callee-saved registers.
var bpfRegs = [11]X86Reg{
	RAX, // r0
	RDI, // r1
	RSI, // r2
	RDX, // r3
	RCX, // r4
	R8,  // r5
	RBX, // r6
	R13, // r7
	R14, // r8
	R15, // r9
	RBP, // r10
}

// EnvReg carries the per-call environment handed to helpers.
var EnvReg = R12

// Scratch registers, never allocated to eBPF registers.
var (
	TmpReg  = R10
	TmpReg2 = R11
)

// calleeSaved is the prologue push order; the epilogue pops in reverse.
var calleeSaved = []X86Reg{RBP, RBX, R12, R13, R14, R15}
