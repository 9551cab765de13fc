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


package vis

import (
	"math/cmplx"
	"testing"
)

func TestLinearParallelHandsToStokesI(t *testing.T) {
	p, err:=NewPolConverter([]Stokes{StokesXX, StokesYY}, []Stokes{StokesI}, true)
	if err!=nil { t.Fatalf("creating converter: %s", err.Error()) }

	out:=make([]complex128, 1)
	p.Convert(out, []complex128{complex(3, 1), complex(1, -1)})
	if want:=complex(2, 0); cmplx.Abs(out[0]-want)>1e-12 {
		t.Errorf("I is %v, want %v: I=(XX+YY)/2", out[0], want)
	}
}

func TestFullLinearRoundTrip(t *testing.T) {
	linear:=[]Stokes{StokesXX, StokesXY, StokesYX, StokesYY}
	stokes:=[]Stokes{StokesI, StokesQ, StokesU, StokesV}
	toStokes, err:=NewPolConverter(linear, stokes, true)
	if err!=nil { t.Fatalf("creating forward converter: %s", err.Error()) }
	toLinear, err:=NewPolConverter(stokes, linear, true)
	if err!=nil { t.Fatalf("creating backward converter: %s", err.Error()) }

	in:=[]complex128{complex(4, 1), complex(-1, 2), complex(0.5, -3), complex(2, 2)}
	mid:=make([]complex128, 4)
	out:=make([]complex128, 4)
	toStokes.Convert(mid, in)
	toLinear.Convert(out, mid)
	for i:=range in {
		if cmplx.Abs(out[i]-in[i])>1e-12 {
			t.Errorf("product %v is %v after round trip, want %v", linear[i], out[i], in[i])
		}
	}
}

func TestStokesIToLinearWithoutCheck(t *testing.T) {
	// writing a Stokes I model into an XX/YY frame must put I on both
	// parallel hands, treating the unknown Q as zero
	p, err:=NewPolConverter([]Stokes{StokesI}, []Stokes{StokesXX, StokesYY}, false)
	if err!=nil { t.Fatalf("creating converter: %s", err.Error()) }

	out:=make([]complex128, 2)
	p.Convert(out, []complex128{complex(1.5, 0.5)})
	for i, got:=range out {
		if want:=complex(1.5, 0.5); cmplx.Abs(got-want)>1e-12 {
			t.Errorf("product %d is %v, want %v", i, got, want)
		}
	}
}

func TestUndeterminedOutputFails(t *testing.T) {
	// parallel hands carry no information about U or V
	if _, err:=NewPolConverter([]Stokes{StokesXX, StokesYY}, []Stokes{StokesU}, true); err==nil {
		t.Errorf("deriving U from parallel hands must fail with checking enabled")
	}
	if _, err:=NewPolConverter([]Stokes{StokesXX, StokesYY}, []Stokes{StokesU}, false); err!=nil {
		t.Errorf("without checking the conversion must succeed: %s", err.Error())
	}
}

func TestIdentityConversion(t *testing.T) {
	frame:=[]Stokes{StokesXX, StokesYY}
	p, err:=NewPolConverter(frame, frame, true)
	if err!=nil { t.Fatalf("creating converter: %s", err.Error()) }
	in:=[]complex128{complex(1, 2), complex(3, 4)}
	out:=make([]complex128, 2)
	p.Convert(out, in)
	for i:=range in {
		if out[i]!=in[i] {
			t.Errorf("product %d is %v, want %v", i, out[i], in[i])
		}
	}
}

func TestCircularToStokes(t *testing.T) {
	p, err:=NewPolConverter([]Stokes{StokesRR, StokesLL}, []Stokes{StokesI, StokesV}, true)
	if err!=nil { t.Fatalf("creating converter: %s", err.Error()) }

	out:=make([]complex128, 2)
	p.Convert(out, []complex128{complex(3, 0), complex(1, 0)})
	if want:=complex(2, 0); cmplx.Abs(out[0]-want)>1e-12 {
		t.Errorf("I is %v, want %v: I=(RR+LL)/2", out[0], want)
	}
	if want:=complex(1, 0); cmplx.Abs(out[1]-want)>1e-12 {
		t.Errorf("V is %v, want %v: V=(RR-LL)/2", out[1], want)
	}
}
