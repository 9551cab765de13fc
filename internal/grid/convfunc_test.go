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
	"math"
	"math/cmplx"
	"testing"

	"github.com/mlnoga/radiolight/internal/vis"
)

func TestTabulateKernel(t *testing.T) {
	support, oversample:=1, 2
	fineSize:=(2*support+1)*oversample
	fine:=make([]complex128, fineSize*fineSize)
	for j:=range fine { fine[j]=complex(float64(j), 0) }

	funcs:=tabulateKernel(fine, support, oversample)
	if len(funcs)!=oversample*oversample {
		t.Fatalf("tabulated %d matrices, want %d", len(funcs), oversample*oversample)
	}
	cSize:=2*support+1
	for _, m:=range funcs {
		if len(m)!=cSize*cSize {
			t.Fatalf("matrix has %d taps, want %d", len(m), cSize*cSize)
		}
	}
	// sub-cell (fracU,fracV) tap (du,dv) reads fine[(dv*os+fracV)*fineSize + du*os+fracU]
	if got, want:=funcs[1+oversample*0][0], fine[0*fineSize+1]; got!=want {
		t.Errorf("sub-cell (1,0) tap (0,0) is %v, want %v", got, want)
	}
	if got, want:=funcs[0+oversample*1][1*cSize+2], fine[(1*oversample+1)*fineSize+2*oversample]; got!=want {
		t.Errorf("sub-cell (0,1) tap (2,1) is %v, want %v", got, want)
	}
}

func TestSpheroidalKernel(t *testing.T) {
	p, err:=newSphProvider(3, 8)
	if err!=nil { t.Fatalf("creating provider: %s", err.Error()) }

	if p.Support()!=3 || p.Oversample()!=8 {
		t.Fatalf("support %d oversample %d, want 3 and 8", p.Support(), p.Oversample())
	}
	funcs:=p.Funcs()
	if len(funcs)!=8*8 {
		t.Fatalf("%d convolution functions, want 64", len(funcs))
	}

	// the zero-offset kernel is normalized to unit sum and peaks at centre
	m:=funcs[0]
	cSize:=2*p.Support()+1
	var sum complex128
	peak:=0.0
	peakIdx:=-1
	for j, v:=range m {
		sum+=v
		if a:=cmplx.Abs(v); a>peak { peak, peakIdx = a, j }
	}
	// unit area up to the sampling error of the coarse tap spacing
	if math.Abs(real(sum)-1)>0.02 || math.Abs(imag(sum))>1e-12 {
		t.Errorf("kernel sum is %v, want 1", sum)
	}
	centre:=(cSize/2)*cSize+cSize/2
	if peakIdx!=centre {
		t.Errorf("kernel peaks at tap %d, want centre %d", peakIdx, centre)
	}
}

func TestSpheroidalCorrection(t *testing.T) {
	nx, ny:=16, 16
	data:=make([]float64, nx*ny)
	for j:=range data { data[j]=1 }
	correctSpheroidal(data, nx, ny)

	// the taper is strongest at the edges, so correction amplifies them
	centre:=data[(ny/2)*nx+nx/2]
	inner:=data[(ny/2)*nx+nx/2+3]
	if centre<=0 {
		t.Fatalf("corrected centre is %g, want positive", centre)
	}
	if inner<=centre {
		t.Errorf("correction must increase away from centre: inner %g centre %g", inner, centre)
	}
}

func TestGrdsf(t *testing.T) {
	// the rational approximation is normalized to one at nu=0
	if v:=grdsf(0); math.Abs(v-1)>1e-4 {
		t.Errorf("grdsf(0) is %g, want ~1", v)
	}
	if v0, v1:=grdsf(0.2), grdsf(0.8); v1>=v0 {
		t.Errorf("grdsf must decrease: %g at 0.2 vs %g at 0.8", v0, v1)
	}
	if v:=grdsf(1.5); v!=0 {
		t.Errorf("grdsf beyond 1 is %g, want 0", v)
	}
}

func TestWStackPlaneCorrection(t *testing.T) {
	p, err:=newWStackProvider(3, 8, 1000, 5)
	if err!=nil { t.Fatalf("creating provider: %s", err.Error()) }

	nx, ny:=8, 8
	data:=make([]complex128, nx*ny)
	for j:=range data { data[j]=1 }

	// the central grid holds w=0 and needs no correction
	p.CorrectPlane(2, data, nx, ny, 1e-3, 1e-3, false)
	for j, v:=range data {
		if v!=1 { t.Fatalf("pixel %d is %v after the w=0 correction, want 1", j, v) }
	}

	// grid 3 holds w=+500 wavelengths; the phase centre stays untouched
	// while off-centre pixels pick up the w phase
	p.CorrectPlane(3, data, nx, ny, 1e-3, 1e-3, false)
	centre:=(ny/2)*nx+nx/2
	if v:=data[centre]; cmplx.Abs(v-1)>1e-12 {
		t.Errorf("phase centre is %v, want 1", v)
	}
	l:=2e-3
	want:=cmplx.Exp(complex(0, 2*math.Pi*500*(math.Sqrt(1-l*l)-1)))
	if v:=data[centre+2]; cmplx.Abs(v-want)>1e-12 {
		t.Errorf("pixel at l=%g is %v, want %v", l, v, want)
	}
	if imag(data[centre+2])==0 {
		t.Errorf("off-centre pixel carries no w phase")
	}

	// the degridding direction applies the conjugate and undoes it
	p.CorrectPlane(3, data, nx, ny, 1e-3, 1e-3, true)
	for j, v:=range data {
		if cmplx.Abs(v-1)>1e-12 {
			t.Fatalf("pixel %d is %v after the round trip, want 1", j, v)
		}
	}
}

func wTestChunk(w float64) *vis.Chunk {
	c:=&vis.Chunk{
		UVW:  [][3]float64{{100, 100, w}},
		Freq: []float64{1.4e9},
	}
	c.RotatedUVW=c.UVW
	c.Delay=[]float64{0}
	return c
}

func TestWProjectPlaneSelection(t *testing.T) {
	p, err:=newWProjProvider(3, 4, 1000, 5)
	if err!=nil { t.Fatalf("creating provider: %s", err.Error()) }
	if p.NConvIndices()!=5 || p.NGrids()!=1 {
		t.Fatalf("conv indices %d grids %d, want 5 and 1", p.NConvIndices(), p.NGrids())
	}

	// w=0 must select the central plane, built lazily on first use
	if err:=p.Init(wTestChunk(0), [2]float64{1000, 1000}); err!=nil {
		t.Fatalf("init: %s", err.Error())
	}
	if got:=p.CIndex(0, 0, 0); got!=0 {
		t.Errorf("first built plane has index %d, want 0", got)
	}
	os:=p.Oversample()
	if got:=len(p.Funcs()); got!=os*os {
		t.Errorf("%d functions after one plane, want %d", got, os*os)
	}

	// a second distinct w plane extends the table
	wMetres:=500*speedOfLight/1.4e9 // 500 wavelengths at 1.4 GHz
	if err:=p.Init(wTestChunk(wMetres), [2]float64{1000, 1000}); err!=nil {
		t.Fatalf("init: %s", err.Error())
	}
	if got:=p.CIndex(0, 0, 0); got!=1 {
		t.Errorf("second built plane has index %d, want 1", got)
	}
	if got:=len(p.Funcs()); got!=2*os*os {
		t.Errorf("%d functions after two planes, want %d", got, 2*os*os)
	}
}

func TestWProjectRejectsExcessiveW(t *testing.T) {
	p, err:=newWProjProvider(3, 4, 1000, 5)
	if err!=nil { t.Fatalf("creating provider: %s", err.Error()) }
	wMetres:=2000*speedOfLight/1.4e9
	if err:=p.Init(wTestChunk(wMetres), [2]float64{1000, 1000}); err==nil {
		t.Errorf("w beyond wmax must fail")
	}
}

func TestWStackGridSelection(t *testing.T) {
	p, err:=newWStackProvider(3, 8, 1000, 5)
	if err!=nil { t.Fatalf("creating provider: %s", err.Error()) }
	if p.NGrids()!=5 || p.NConvIndices()!=1 {
		t.Fatalf("grids %d conv indices %d, want 5 and 1", p.NGrids(), p.NConvIndices())
	}

	if err:=p.Init(wTestChunk(0), [2]float64{1000, 1000}); err!=nil {
		t.Fatalf("init: %s", err.Error())
	}
	if got:=p.GIndex(0, 0, 0); got!=2 {
		t.Errorf("w=0 selects grid %d, want central grid 2", got)
	}

	wMetres:=400*speedOfLight/1.4e9 // wscale is 500 wavelengths per plane
	if err:=p.Init(wTestChunk(wMetres), [2]float64{1000, 1000}); err!=nil {
		t.Fatalf("init: %s", err.Error())
	}
	if got:=p.GIndex(0, 0, 0); got!=3 {
		t.Errorf("w=+400 wavelengths selects grid %d, want 3", got)
	}
}
