//go:build amd64

/*
Copyright (C) 2025-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package expr

import "unsafe"

// The amd64 backend targets the x87 FPU. Every template leaves its result on
// the FPU stack top; binary operations find the right operand in st(0) and
// the left one in st(1). RAX carries memory addresses and is saved in the
// prologue. Scratch words live below RSP, which is safe because signals run
// on their own stack.

type codeWriter struct {
	buf []byte
}

func (w *codeWriter) emitByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *codeWriter) emitBytes(bs ...byte) {
	w.buf = append(w.buf, bs...)
}

func (w *codeWriter) emitU32(v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (w *codeWriter) emitU64(v uint64) {
	w.emitU32(uint32(v))
	w.emitU32(uint32(v >> 32))
}

func (w *codeWriter) emitAddr(p unsafe.Pointer) {
	w.emitU64(uint64(uintptr(p)))
}

// emitMovRaxAddr emits: MOV RAX, imm64
func (w *codeWriter) emitMovRaxAddr(p unsafe.Pointer) {
	w.emitBytes(0x48, 0xb8)
	w.emitAddr(p)
}

// emitLoad pushes the value at addr onto the FPU stack, converting integer
// representations to double on the way in.
func (w *codeWriter) emitLoad(addr unsafe.Pointer, typ NumericType) {
	w.emitMovRaxAddr(addr)
	switch typ {
	case F32:
		w.emitBytes(0xd9, 0x00) // fld    dword ptr [rax]
	case F64:
		w.emitBytes(0xdd, 0x00) // fld    qword ptr [rax]
	case I16:
		w.emitBytes(0xdf, 0x00) // fild   word ptr [rax]
	case I32:
		w.emitBytes(0xdb, 0x00) // fild   dword ptr [rax]
	case I64:
		w.emitBytes(0xdf, 0x28) // fild   qword ptr [rax]
	}
}

// prologue: save RAX, stash the caller's FPU control word in the evaluator's
// cell and switch to 53-bit precision so arithmetic rounds exactly like
// native double operations.
func emitPrologue(w *codeWriter, ev *Evaluator) {
	w.emitByte(0x50) // push   rax
	w.emitMovRaxAddr(unsafe.Pointer(ev.cwCell))
	w.emitBytes(0xd9, 0x38)                               // fnstcw word ptr [rax]
	w.emitBytes(0x66, 0xc7, 0x44, 0x24, 0xfe, 0x7f, 0x02) // mov    word ptr [rsp-2], 27fh
	w.emitBytes(0xd9, 0x6c, 0x24, 0xfe)                   // fldcw  word ptr [rsp-2]
}

// epilogue: restore the control word, then move the result from st(0) into
// xmm0 through the evaluator's return cell, as the ABI expects.
func emitEpilogue(w *codeWriter, ev *Evaluator) {
	w.emitMovRaxAddr(unsafe.Pointer(ev.cwCell))
	w.emitBytes(0xd9, 0x28) // fldcw  word ptr [rax]
	w.emitMovRaxAddr(unsafe.Pointer(ev.retCell))
	w.emitBytes(0xdd, 0x18)             // fstp   qword ptr [rax]
	w.emitBytes(0xf3, 0x0f, 0x7e, 0x00) // movq   xmm0, qword ptr [rax]
	w.emitByte(0x58)                    // pop    rax
	w.emitByte(0xc3)                    // ret
}

// emitDirect fuses a memory operand into the arithmetic instruction itself
// (pass A specialization). The reversed forms are used when the folded
// operand was the left-hand side of sub or div.
func emitDirect(w *codeWriter, d *directOperand) {
	var modrm byte
	switch d.op.Name {
	case "add":
		modrm = 0x00 // fadd
	case "mul":
		modrm = 0x08 // fmul
	case "sub":
		if d.reversed {
			modrm = 0x28 // fsubr
		} else {
			modrm = 0x20 // fsub
		}
	case "div":
		if d.reversed {
			modrm = 0x38 // fdivr
		} else {
			modrm = 0x30 // fdiv
		}
	}
	var addr unsafe.Pointer
	typ := F64
	if d.cons != nil {
		addr = d.cons.addr()
	} else {
		addr = d.vari.addr
		typ = d.vari.typ
	}
	w.emitMovRaxAddr(addr)
	switch typ {
	case I16:
		w.emitBytes(0xde, modrm) // fiadd family, word ptr [rax]
	case I32:
		w.emitBytes(0xda, modrm) // fiadd family, dword ptr [rax]
	case F32:
		w.emitBytes(0xd8, modrm) // fadd family, dword ptr [rax]
	case F64:
		w.emitBytes(0xdc, modrm) // fadd family, qword ptr [rax]
	}
}

// emitPowChain expands an integer exponent into multiplications, with a
// reciprocal for negative exponents. Exponent 0 replaces the base with 1.
func emitPowChain(w *codeWriter, exp int) {
	a := exp
	if a < 0 {
		a = -a
	}
	switch a {
	case 0:
		w.emitBytes(0xdd, 0xd8) // fstp   st(0)
		w.emitBytes(0xd9, 0xe8) // fld1
	case 1:
		// nothing to do
	case 2:
		w.emitBytes(0xdc, 0xc8) // fmul   st(0), st
	case 3:
		w.emitBytes(0xd9, 0xc0) // fld    st(0)
		w.emitBytes(0xdc, 0xc8) // fmul   st(0), st
		w.emitBytes(0xde, 0xc9) // fmulp  st(1), st
	case 4:
		w.emitBytes(0xdc, 0xc8, 0xdc, 0xc8)
	case 5:
		w.emitBytes(0xd9, 0xc0) // fld    st(0)
		w.emitBytes(0xdc, 0xc8, 0xdc, 0xc8)
		w.emitBytes(0xde, 0xc9) // fmulp  st(1), st
	case 6:
		w.emitBytes(0xd9, 0xc0) // fld    st(0)
		w.emitBytes(0xdc, 0xc8, 0xdc, 0xc8)
		w.emitBytes(0xd8, 0xc9) // fmul   st(0), st(1)
		w.emitBytes(0xde, 0xc9) // fmulp  st(1), st
	case 7:
		w.emitBytes(0xd9, 0xc0) // fld    st(0)
		w.emitBytes(0xdc, 0xc8, 0xdc, 0xc8)
		w.emitBytes(0xd8, 0xc9) // fmul   st(0), st(1)
		w.emitBytes(0xd8, 0xc9) // fmul   st(0), st(1)
		w.emitBytes(0xde, 0xc9) // fmulp  st(1), st
	case 8:
		w.emitBytes(0xdc, 0xc8, 0xdc, 0xc8, 0xdc, 0xc8)
	case 16:
		w.emitBytes(0xdc, 0xc8, 0xdc, 0xc8, 0xdc, 0xc8, 0xdc, 0xc8)
	case 32:
		w.emitBytes(0xdc, 0xc8, 0xdc, 0xc8, 0xdc, 0xc8, 0xdc, 0xc8, 0xdc, 0xc8)
	}
	if exp < 0 {
		w.emitBytes(0xd9, 0xe8) // fld1
		w.emitBytes(0xde, 0xf1) // fdivrp st(1), st
	}
}

// emitTrigReduce brings the argument into fsin/fcos range by computing
// st(0) mod 2*pi with fprem, which is exact.
func emitTrigReduce(w *codeWriter) {
	w.emitBytes(0xd9, 0xeb) // fldpi
	w.emitBytes(0xd8, 0xc0) // fadd   st, st(0)
	w.emitBytes(0xd9, 0xc9) // fxch   st(1)
	w.emitBytes(0xd9, 0xf8) // fprem
	w.emitBytes(0xdd, 0xd9) // fstp   st(1)
}

func emitSin(w *codeWriter) {
	if Settings.HighAccuracyTrig {
		emitTrigReduce(w)
	}
	w.emitBytes(0xd9, 0xfe) // fsin
}

func emitCos(w *codeWriter) {
	if Settings.HighAccuracyTrig {
		emitTrigReduce(w)
	}
	w.emitBytes(0xd9, 0xff) // fcos
}

func emitTan(w *codeWriter) {
	w.emitBytes(
		0xd9, 0xf2, // fptan
		0xdd, 0xd8, // fstp   st(0)
	)
}

func emitAbs(w *codeWriter) {
	w.emitBytes(0xd9, 0xe1) // fabs
}

func emitNeg(w *codeWriter) {
	w.emitBytes(0xd9, 0xe0) // fchs
}

func emitSqrt(w *codeWriter) {
	w.emitBytes(0xd9, 0xfa) // fsqrt
}

func emitSfc(w *codeWriter) {
	w.emitBytes(
		0xd9, 0xf4, // fxtract
		0xdd, 0xd9, // fstp   st(1)
	)
}

func emitExpn(w *codeWriter) {
	w.emitBytes(
		0xd9, 0xf4, // fxtract
		0xdd, 0xd8, // fstp   st(0)
	)
}

// sign: fcmovbe lands zero on the positive branch, so sign(0) is +1.
func emitSign(w *codeWriter) {
	w.emitBytes(
		0xd9, 0xee, // fldz
		0xdf, 0xf1, // fcomip st, st(1)
		0xdd, 0xd8, // fstp   st(0)
		0xd9, 0xe8, // fld1
		0xd9, 0xe8, // fld1
		0xd9, 0xe0, // fchs
		0xda, 0xd1, // fcmovbe st, st(1)
		0xdd, 0xd9, // fstp   st(1)
	)
}

// signp: fcmovnbe needs x strictly above 0, so zero and NaN both yield 0.
func emitSignp(w *codeWriter) {
	w.emitBytes(
		0xd9, 0xee, // fldz                 ; 0, x
		0xd9, 0xe8, // fld1                 ; 1, 0, x
		0xd9, 0xca, // fxch   st(2)         ; x, 0, 1
		0xdb, 0xf1, // fcomi  st, st(1)
		0xdd, 0xd8, // fstp   st(0)         ; 0, 1
		0xdb, 0xd1, // fcmovnbe st, st(1)
		0xdd, 0xd9, // fstp   st(1)
	)
}

func emitAdd(w *codeWriter) {
	w.emitBytes(0xde, 0xc1) // faddp  st(1), st
}

func emitSub(w *codeWriter) {
	w.emitBytes(0xde, 0xe9) // fsubp  st(1), st
}

func emitMul(w *codeWriter) {
	w.emitBytes(0xde, 0xc9) // fmulp  st(1), st
}

func emitDiv(w *codeWriter) {
	w.emitBytes(0xde, 0xf9) // fdivp  st(1), st
}

func emitExp(w *codeWriter) {
	w.emitBytes(
		0xd9, 0xea, // fldl2e
		0xde, 0xc9, // fmulp  st(1), st
		0xd9, 0xe8, // fld1
		0xd9, 0xc1, // fld    st(1)
		0xd9, 0xf8, // fprem
		0xd9, 0xf0, // f2xm1
		0xde, 0xc1, // faddp  st(1), st
		0xd9, 0xfd, // fscale
		0xdd, 0xd9, // fstp   st(1)
	)
}

func emitLn(w *codeWriter) {
	w.emitBytes(
		0xd9, 0xe8, // fld1
		0xd9, 0xc9, // fxch   st(1)
		0xd9, 0xf1, // fyl2x
		0xd9, 0xea, // fldl2e
		0xde, 0xf9, // fdivp  st(1), st
	)
}

func emitLog10(w *codeWriter) {
	w.emitBytes(
		0xd9, 0xe8, // fld1
		0xd9, 0xc9, // fxch   st(1)
		0xd9, 0xf1, // fyl2x
		0xd9, 0xe9, // fldl2t
		0xde, 0xf9, // fdivp  st(1), st
	)
}

func emitLog2(w *codeWriter) {
	w.emitBytes(
		0xd9, 0xe8, // fld1
		0xd9, 0xc9, // fxch   st(1)
		0xd9, 0xf1, // fyl2x
	)
}

func emitYlog2(w *codeWriter) {
	w.emitBytes(0xd9, 0xf1) // fyl2x
}

// logb(b, v) = log2(v) / log2(b); v arrives in st(0), b in st(1).
func emitLogb(w *codeWriter) {
	w.emitBytes(
		0xd9, 0xe8, // fld1
		0xd9, 0xc9, // fxch   st(1)
		0xd9, 0xf1, // fyl2x                ; log2(v), b
		0xd9, 0xc9, // fxch   st(1)         ; b, log2(v)
		0xd9, 0xe8, // fld1
		0xd9, 0xc9, // fxch   st(1)
		0xd9, 0xf1, // fyl2x                ; log2(b), log2(v)
		0xde, 0xf9, // fdivp  st(1), st     ; log2(v)/log2(b)
	)
}

func emitMax(w *codeWriter) {
	w.emitBytes(
		0xdb, 0xf1, // fcomi  st, st(1)
		0xda, 0xc1, // fcmovb st, st(1)
		0xdd, 0xd9, // fstp   st(1)
	)
}

func emitMin(w *codeWriter) {
	w.emitBytes(
		0xdb, 0xf1, // fcomi  st, st(1)
		0xd9, 0xc9, // fxch   st(1)
		0xda, 0xc1, // fcmovb st, st(1)
		0xdd, 0xd9, // fstp   st(1)
	)
}

// emitRoundCW rounds st(0) to an integer under the given control word, saving
// and restoring the prevailing one around the frndint.
func emitRoundCW(w *codeWriter, cw uint16) {
	w.emitBytes(0x66, 0xc7, 0x44, 0x24, 0xfc, byte(cw), byte(cw>>8)) // mov word ptr [rsp-4], cw
	w.emitBytes(0xd9, 0x7c, 0x24, 0xfe)                              // fnstcw word ptr [rsp-2]
	w.emitBytes(0xd9, 0x6c, 0x24, 0xfc)                              // fldcw  word ptr [rsp-4]
	w.emitBytes(0xd9, 0xfc)                                          // frndint
	w.emitBytes(0xd9, 0x6c, 0x24, 0xfe)                              // fldcw  word ptr [rsp-2]
}

func emitFloor(w *codeWriter) { emitRoundCW(w, 0x067f) } // round toward -inf
func emitCeil(w *codeWriter)  { emitRoundCW(w, 0x0a7f) } // round toward +inf
func emitRound(w *codeWriter) { emitRoundCW(w, 0x027f) } // round to nearest even
func emitInt(w *codeWriter)   { emitRoundCW(w, 0x0e7f) } // truncate toward zero

func emitMod(w *codeWriter) {
	w.emitBytes(
		0xd9, 0xc9, // fxch   st(1)
		0xd9, 0xf8, // fprem
		0xdd, 0xd9, // fstp   st(1)
	)
}

// less_than: fcmovnbe requires strictly-greater flags, so equal operands and
// NaN both yield 0.
func emitLessThan(w *codeWriter) {
	w.emitBytes(
		0xdf, 0xf1, // fcomip st, st(1)
		0xdd, 0xd8, // fstp   st(0)
		0xd9, 0xe8, // fld1
		0xd9, 0xee, // fldz
		0xdb, 0xd1, // fcmovnbe st, st(1)
		0xdd, 0xd9, // fstp   st(1)
	)
}

// bnd: the period is added only for a strictly negative remainder
// (fcmovnbe), so bnd(0, p) stays 0.
func emitBnd(w *codeWriter) {
	w.emitBytes(
		0xd9, 0xc9, // fxch   st(1)
		0xd9, 0xf8, // fprem
		0xd9, 0xc0, // fld    st(0)
		0xdc, 0xc2, // fadd   st(2), st
		0xd9, 0xee, // fldz
		0xdf, 0xf1, // fcomip st, st(1)
		0xdd, 0xd8, // fstp   st(0)
		0xdb, 0xd1, // fcmovnbe st, st(1)
		0xdd, 0xd9, // fstp   st(1)
	)
}

func emitBias(w *codeWriter) {
	w.emitBytes(
		0xd9, 0xe8, // fld1
		0xdc, 0xf1, // fdivr  st(1), st
		0xdc, 0xe9, // fsub   st(1), st
		0xdc, 0xe9, // fsub   st(1), st
		0xd8, 0xe2, // fsub   st, st(2)
		0xde, 0xc9, // fmulp  st(1), st
		0xd9, 0xe8, // fld1
		0xde, 0xc1, // faddp  st(1), st
		0xde, 0xf9, // fdivp  st(1), st
	)
}

func emitGain(w *codeWriter) {
	w.emitBytes( //                          ; FPU stack
		0xd9, 0xc1, // fld    st(1)          ; x, a, x
		0xd8, 0xc2, // fadd   st, st(2)      ; 2x, a, x
		0xd9, 0xe8, // fld1                  ; 1, 2x, a, x
		0xdf, 0xf1, // fcomip st, st(1)      ; 2x, a, x
		0xdd, 0xd8, // fstp   st(0)          ; a, x
		0xd9, 0xc0, // fld    st(0)          ; a, a, x
		0xd8, 0xc1, // fadd   st, st(1)      ; 2a, a, x
		0xd9, 0xe8, // fld1                  ; 1, 2a, a, x
		0xde, 0xe9, // fsubp  st(1), st      ; 2a-1, a, x
		0xde, 0xf1, // fdivrp st(1), st      ; (2a-1)/a, x
		0xd9, 0xc1, // fld    st(1)          ; x, (2a-1)/a, x
		0xdc, 0xc0, // fadd   st(0), st      ; 2x, (2a-1)/a, x
		0xd9, 0xe8, // fld1                  ; 1, 2x, (2a-1)/a, x
		0xde, 0xe9, // fsubp  st(1), st      ; 2x-1, (2a-1)/a, x
		0xde, 0xc9, // fmulp  st(1), st      ; k, x
		0xd9, 0xe8, // fld1                  ; 1, k, x
		0x72, 0x06, // jb     x_ge_half
		0xde, 0xc1, // faddp  st(1), st      ; k+1, x
		0xde, 0xf9, // fdivp  st(1), st      ; x/(k+1)
		0xeb, 0x0a, // jmp    gain_exit
		// x_ge_half:
		0xd9, 0xc1, // fld    st(1)          ; k, 1, k, x
		0xde, 0xe9, // fsubp  st(1), st      ; 1-k, k, x
		0xd9, 0xc9, // fxch   st(1)          ; k, 1-k, x
		0xde, 0xea, // fsubp  st(2), st      ; 1-k, x-k
		0xde, 0xf9, // fdivp  st(1), st      ; (x-k)/(1-k)
		// gain_exit:
	)
}

// emitPow is the generic power template, used when the exponent is not a
// foldable integer constant. Integer exponents up to 32 still take an exact
// multiplication loop at run time; everything else goes through
// 2^(e*log2|b|) with fscale.
func emitPow(w *codeWriter) {
	w.emitBytes(
		0xd9, 0xc0, // fld    st(0)
		0xd9, 0xfc, // frndint
		0xd8, 0xd1, // fcom   st(1)
		0xdf, 0xe0, // fnstsw ax
		0x9e,       // sahf
		0x75, 0x3c, // jne    pop_before_generic_pow

		0xd9, 0xe1, // fabs
		0x66, 0xc7, 0x44, 0x24, 0xfe, 0xff, 0xff, // mov    word ptr [rsp-2], 0ffffh
		0xdf, 0x5c, 0x24, 0xfe, // fistp  word ptr [rsp-2]
		0x66, 0x8b, 0x44, 0x24, 0xfe, // mov    ax, word ptr [rsp-2]
		0x66, 0x83, 0xe8, 0x01, // sub    ax, 1
		0x66, 0x83, 0xf8, 0x21, // cmp    ax, 1fh
		0x77, 0x22, // ja     generic_pow

		0xd9, 0xc1, // fld    st(1)
		// loop_start:
		0x66, 0x85, 0xc0, // test   ax, ax
		0x74, 0x08, // je     loop_end
		0xdc, 0xca, // fmul   st(2), st
		0x66, 0x83, 0xe8, 0x01, // sub    ax, 1
		0xeb, 0xf3, // jmp    loop_start

		// loop_end:
		0xdd, 0xd8, // fstp   st(0)
		0xd9, 0xe4, // ftst
		0xdf, 0xe0, // fnstsw ax
		0x9e,       // sahf
		0xdd, 0xd8, // fstp   st(0)
		0x77, 0x28, // ja     exit_point

		0xd9, 0xe8, // fld1
		0xde, 0xf1, // fdivrp st(1), st
		0xeb, 0x22, // jmp    exit_point

		// pop_before_generic_pow:
		0xdd, 0xd8, // fstp   st(0)
		// generic_pow:
		0xd9, 0xc9, // fxch
		0xd9, 0xe4, // ftst
		0x9b,       // wait
		0xdf, 0xe0, // fnstsw ax
		0x9e,       // sahf
		0x74, 0x14, // je     store_and_exit
		0xd9, 0xe1, // fabs
		0xd9, 0xf1, // fyl2x
		0xd9, 0xe8, // fld1
		0xd9, 0xc1, // fld    st(1)
		0xd9, 0xf8, // fprem
		0xd9, 0xf0, // f2xm1
		0xde, 0xc1, // faddp  st(1), st
		0xd9, 0xfd, // fscale
		0x77, 0x02, // ja     store_and_exit
		0xd9, 0xe0, // fchs
		// store_and_exit:
		0xdd, 0xd9, // fstp   st(1)
		// exit_point:
	)
}

var templates = map[string]func(*codeWriter){
	"sin":       emitSin,
	"cos":       emitCos,
	"tan":       emitTan,
	"abs":       emitAbs,
	"neg":       emitNeg,
	"sqrt":      emitSqrt,
	"sfc":       emitSfc,
	"expn":      emitExpn,
	"sign":      emitSign,
	"signp":     emitSignp,
	"add":       emitAdd,
	"sub":       emitSub,
	"mul":       emitMul,
	"div":       emitDiv,
	"pow":       emitPow,
	"exp":       emitExp,
	"ln":        emitLn,
	"log":       emitLn,
	"log2":      emitLog2,
	"log10":     emitLog10,
	"ylog2":     emitYlog2,
	"logb":      emitLogb,
	"min":       emitMin,
	"max":       emitMax,
	"floor":     emitFloor,
	"ceil":      emitCeil,
	"round":     emitRound,
	"int":       emitInt,
	"mod":       emitMod,
	"less_than": emitLessThan,
	"bnd":       emitBnd,
	"bias":      emitBias,
	"gain":      emitGain,
}

// assemble linearizes the postfix stream into machine code and locks it into
// an executable page.
func assemble(ev *Evaluator, p *program) (*callable, *Error) {
	w := &codeWriter{}
	emitPrologue(w, ev)
	for _, h := range p.stream {
		n := &p.nodes[h]
		switch n.kind {
		case nodeConst:
			w.emitLoad(n.cons.addr(), F64)
		case nodeVar:
			w.emitLoad(n.vari.addr, n.vari.typ)
		case nodeOp:
			switch {
			case n.direct != nil:
				emitDirect(w, n.direct)
			case n.powChain:
				emitPowChain(w, n.powExp)
			default:
				tpl, ok := templates[n.decl.Name]
				if !ok {
					panic("expr: no code template for " + n.decl.Name)
				}
				tpl(w)
			}
		}
	}
	emitEpilogue(w, ev)

	buf, err := allocExec(len(w.buf))
	if err != nil {
		return nil, errorf(AllocationFailed, 0, "cannot allocate executable page: %v", err)
	}
	copy(buf.mem, w.buf)
	if err := buf.makeRX(); err != nil {
		buf.free()
		return nil, errorf(AllocationFailed, 0, "cannot lock executable page: %v", err)
	}
	return &callable{fn: buf.entry(), buf: buf}, nil
}
