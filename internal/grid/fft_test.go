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
	"math/cmplx"
	"testing"
	"github.com/valyala/fastrand"
)

func TestFFTDeltaAtCentre(t *testing.T) {
	nx, ny:=8, 8
	data:=make([]complex128, nx*ny)
	data[(ny/2)*nx+nx/2]=complex(1, 0)

	fft2d(data, nx, ny, true)
	for i, v:=range data {
		if cmplx.Abs(v-complex(1, 0))>1e-12 {
			t.Fatalf("pixel %d is %v, want 1: a centred delta must transform to a flat spectrum", i, v)
		}
	}
}

func TestFFTFlatToDelta(t *testing.T) {
	nx, ny:=8, 8
	data:=make([]complex128, nx*ny)
	for i:=range data { data[i]=complex(1, 0) }

	fft2d(data, nx, ny, false)
	for y:=0; y<ny; y++ {
		for x:=0; x<nx; x++ {
			want:=complex128(0)
			if x==nx/2 && y==ny/2 { want=complex(1, 0) }
			if got:=data[y*nx+x]; cmplx.Abs(got-want)>1e-12 {
				t.Fatalf("pixel (%d,%d) is %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestFFTRoundTrip(t *testing.T) {
	rng:=fastrand.RNG{}
	rng.Seed(7)
	nx, ny:=16, 8
	data:=randomComplexes(&rng, nx*ny)
	orig:=append([]complex128(nil), data...)

	fft2d(data, nx, ny, true)
	fft2d(data, nx, ny, false)
	for i:=range data {
		if cmplx.Abs(data[i]-orig[i])>1e-9 {
			t.Fatalf("pixel %d is %v after round trip, want %v", i, data[i], orig[i])
		}
	}
}
