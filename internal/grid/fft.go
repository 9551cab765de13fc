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
	"gonum.org/v1/gonum/dsp/fourier"
)

// Centered 2D FFT of a row-major plane, in place. The origin is the pixel
// (nx/2, ny/2) both before and after the transform, matching the grid
// convention where the UV origin sits at the image centre pixel. The inverse
// transform normalizes by 1/(nx*ny). Requires even nx and ny so the
// quadrant shuffle is an involution.
func fft2d(data []complex128, nx, ny int, forward bool) {
	fftShift(data, nx, ny)

	fftU:=fourier.NewCmplxFFT(nx)
	rowTmp:=make([]complex128, nx)
	for v:=0; v<ny; v++ {
		row:=data[v*nx:(v+1)*nx]
		if forward {
			fftU.Coefficients(rowTmp, row)
		} else {
			fftU.Sequence(rowTmp, row)
		}
		copy(row, rowTmp)
	}

	fftV:=fourier.NewCmplxFFT(ny)
	col   :=make([]complex128, ny)
	colTmp:=make([]complex128, ny)
	for u:=0; u<nx; u++ {
		for v:=0; v<ny; v++ { col[v]=data[v*nx+u] }
		if forward {
			fftV.Coefficients(colTmp, col)
		} else {
			fftV.Sequence(colTmp, col)
		}
		for v:=0; v<ny; v++ { data[v*nx+u]=colTmp[v] }
	}

	fftShift(data, nx, ny)

	if !forward {
		norm:=complex(1.0/float64(nx*ny), 0)
		for i:=range data { data[i]*=norm }
	}
}

// Swaps diagonally opposite quadrants, moving pixel (nx/2, ny/2) to (0,0)
func fftShift(data []complex128, nx, ny int) {
	hx, hy:=nx/2, ny/2
	for v:=0; v<hy; v++ {
		r0:=data[v*nx:]
		r1:=data[(v+hy)*nx:]
		for u:=0; u<hx; u++ {
			r0[u],      r1[u+hx] = r1[u+hx], r0[u]
			r0[u+hx],   r1[u]    = r1[u],    r0[u+hx]
		}
	}
}
