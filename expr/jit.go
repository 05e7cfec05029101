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

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// execBuf is one mmap'd region holding generated code. It starts out
// read+write; makeRX flips it to read+execute, so the region is never
// writable and executable at the same time.
type execBuf struct {
	mem []byte
	ptr unsafe.Pointer
	n   int
}

func allocExec(size int) (*execBuf, error) {
	page := unix.Getpagesize()
	n := (size + page - 1) &^ (page - 1)
	if n == 0 {
		n = page
	}
	b, err := unix.Mmap(-1, 0, n,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	return &execBuf{mem: b, ptr: unsafe.Pointer(&b[0]), n: n}, nil
}

func (e *execBuf) makeRX() error {
	return unix.Mprotect(e.mem, unix.PROT_READ|unix.PROT_EXEC)
}

func (e *execBuf) free() {
	if e.mem != nil {
		unix.Munmap(e.mem)
		e.mem = nil
	}
}

// entry reinterprets the page start as a Go func value. A Go func value is a
// pointer to a closure struct whose first word is the code pointer; the
// generated code ignores the closure register.
func (e *execBuf) entry() func() float64 {
	fn := unsafe.Pointer(&struct{ p unsafe.Pointer }{e.ptr})
	return *(*func() float64)(unsafe.Pointer(&fn))
}
