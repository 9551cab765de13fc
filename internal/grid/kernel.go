// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package grid

import (
	"github.com/klauspost/cpuid"
)

// The innermost stamping primitives. GridKernel adds a convolution-weighted
// visibility into a grid plane; DegridKernel is the conjugate read. Both
// assume the caller has verified [iu-support, iu+support] x [iv-support,
// iv+support] lies inside the plane; there are no internal bounds checks as
// these routines dominate total runtime.
//
// Planes are row-major with stride nx; conv is a (2*support+1)^2 matrix for
// one oversampling sub-cell.

var gridKernel   func(plane []complex128, nx int, conv []complex128, cvis complex128, iu, iv, support int)
var degridKernel func(plane []complex128, nx int, conv []complex128, iu, iv, support int) complex128
var kernelName   string

func init() {
	if cpuid.CPU.AVX2() {
		gridKernel, degridKernel, kernelName = gridUnrolled, degridUnrolled, "unrolled 4-wide"
	} else {
		gridKernel, degridKernel, kernelName = gridGeneric, degridGeneric, "generic"
	}
}

// Describes the selected kernel variant for diagnostic logging
func GridKernelInfo() string {
	return "Gridding kernel: "+kernelName
}

func gridGeneric(plane []complex128, nx int, conv []complex128, cvis complex128, iu, iv, support int) {
	cSize:=2*support+1
	for dv:=0; dv<cSize; dv++ {
		pOff:=(iv-support+dv)*nx+iu-support
		pRow:=plane[pOff:pOff+cSize]
		cRow:=conv[dv*cSize:(dv+1)*cSize]
		for i,c:=range cRow {
			pRow[i]+=c*cvis
		}
	}
}

func degridGeneric(plane []complex128, nx int, conv []complex128, iu, iv, support int) (sum complex128) {
	cSize:=2*support+1
	for dv:=0; dv<cSize; dv++ {
		pOff:=(iv-support+dv)*nx+iu-support
		pRow:=plane[pOff:pOff+cSize]
		cRow:=conv[dv*cSize:(dv+1)*cSize]
		for i,c:=range cRow {
			sum+=c*pRow[i]
		}
	}
	return sum
}

// Manually unrolled variants processing four taps per iteration; selected on
// CPUs with AVX2 where the compiler vectorizes the independent accumulators
func gridUnrolled(plane []complex128, nx int, conv []complex128, cvis complex128, iu, iv, support int) {
	cSize:=2*support+1
	for dv:=0; dv<cSize; dv++ {
		pOff:=(iv-support+dv)*nx+iu-support
		pRow:=plane[pOff:pOff+cSize]
		cRow:=conv[dv*cSize:(dv+1)*cSize]
		i:=0
		for ; i+4<=cSize; i+=4 {
			pRow[i  ]+=cRow[i  ]*cvis
			pRow[i+1]+=cRow[i+1]*cvis
			pRow[i+2]+=cRow[i+2]*cvis
			pRow[i+3]+=cRow[i+3]*cvis
		}
		for ; i<cSize; i++ {
			pRow[i]+=cRow[i]*cvis
		}
	}
}

func degridUnrolled(plane []complex128, nx int, conv []complex128, iu, iv, support int) complex128 {
	cSize:=2*support+1
	var s0, s1, s2, s3 complex128
	for dv:=0; dv<cSize; dv++ {
		pOff:=(iv-support+dv)*nx+iu-support
		pRow:=plane[pOff:pOff+cSize]
		cRow:=conv[dv*cSize:(dv+1)*cSize]
		i:=0
		for ; i+4<=cSize; i+=4 {
			s0+=cRow[i  ]*pRow[i  ]
			s1+=cRow[i+1]*pRow[i+1]
			s2+=cRow[i+2]*pRow[i+2]
			s3+=cRow[i+3]*pRow[i+3]
		}
		for ; i<cSize; i++ {
			s0+=cRow[i]*pRow[i]
		}
	}
	return s0+s1+s2+s3
}
