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
	"io"
	"math"
	"math/cmplx"
	"testing"

	"github.com/mlnoga/radiolight/internal/fits"
	"github.com/mlnoga/radiolight/internal/vis"
)

const (
	testRA  = 3.27  // rad
	testDec = -0.78 // rad
)

func testAxes(n int) *vis.Axes {
	cell:=10*math.Pi/(180*3600) // 10 arcsec
	return &vis.Axes{
		Direction: &vis.DirectionAxis{
			RefRA: testRA, RefDec: testDec,
			RefPixX: float64(n)/2, RefPixY: float64(n)/2,
			IncRA: -cell, IncDec: cell,
		},
		Frequency: &vis.FrequencyAxis{Start: 1.4e9, Increment: 1e6, N: 1},
		Stokes:    []vis.Stokes{vis.StokesI},
	}
}

// One row, one channel, Stokes I frame, pointed at the image centre
func testChunk(uvw [3]float64, v complex128) *vis.Chunk {
	c:=&vis.Chunk{
		UVW:           [][3]float64{uvw},
		Freq:          []float64{1.4e9},
		Vis:           [][]complex128{{v}},
		Flag:          [][]bool{{false}},
		Feed1:         []int{0},
		Pointing1:     []vis.Direction{{RA: testRA, Dec: testDec}},
		DishPointing1: []vis.Direction{{RA: testRA, Dec: testDec}},
		Stokes:        []vis.Stokes{vis.StokesI},
	}
	centre:=vis.Direction{RA: testRA, Dec: testDec}
	c.RotateUVW(centre, centre)
	return c
}

func newBoxGridder(t *testing.T, n int, dopsf bool) *TableVisGridder {
	t.Helper()
	g, err:=NewTableVisGridder(newBoxProvider(), io.Discard)
	if err!=nil { t.Fatalf("creating gridder: %s", err.Error()) }
	if err:=g.InitialiseGrid(testAxes(n), n, n, dopsf); err!=nil {
		t.Fatalf("initialising grid: %s", err.Error())
	}
	return g
}

func TestBoxGridSinglePoint(t *testing.T) {
	n:=8
	g:=newBoxGridder(t, n, false)
	v:=complex(0.5, 0.25)
	if err:=g.Grid(testChunk([3]float64{0, 0, 0}, v)); err!=nil {
		t.Fatalf("gridding: %s", err.Error())
	}

	// a zero baseline lands on the grid centre; the gridded value is the
	// conjugate of the visibility as the delay phasor is unity
	centre:=(n/2)*n+n/2
	want:=cmplx.Conj(v)
	for j, got:=range g.grids[0] {
		if j==centre {
			if cmplx.Abs(got-want)>1e-12 {
				t.Errorf("centre cell is %v, want %v", got, want)
			}
		} else if got!=0 {
			t.Errorf("cell %d is %v, want 0", j, got)
		}
	}
	if w:=g.SumOfWeights(); len(w)!=1 || w[0]!=1 {
		t.Errorf("sum of weights is %v, want [1]", w)
	}
	if s:=g.Stats(); s.SamplesGridded!=1 {
		t.Errorf("gridded %d samples, want 1", s.SamplesGridded)
	}
}

func TestBoxFinaliseGridFlatResponse(t *testing.T) {
	n:=8
	g:=newBoxGridder(t, n, false)
	if err:=g.Grid(testChunk([3]float64{0, 0, 0}, complex(1, 0))); err!=nil {
		t.Fatalf("gridding: %s", err.Error())
	}
	img, err:=g.FinaliseGrid()
	if err!=nil { t.Fatalf("finalising: %s", err.Error()) }

	if img.DimensionsToString()!="8x8x1x1" {
		t.Fatalf("image dimensions %s, want 8x8x1x1", img.DimensionsToString())
	}
	// a single visibility on the UV origin produces a flat image
	for j, got:=range img.Data {
		if math.Abs(float64(got)-1)>1e-5 {
			t.Fatalf("pixel %d is %g, want 1", j, got)
		}
	}

	if err:=g.Grid(testChunk([3]float64{0, 0, 0}, complex(1, 0))); err==nil {
		t.Errorf("gridding after finalise must fail")
	}
}

func TestBoxFinaliseWeights(t *testing.T) {
	n:=8
	g:=newBoxGridder(t, n, false)
	if err:=g.Grid(testChunk([3]float64{0, 0, 0}, complex(1, 0))); err!=nil {
		t.Fatalf("gridding: %s", err.Error())
	}
	wts, err:=g.FinaliseWeights()
	if err!=nil { t.Fatalf("finalising weights: %s", err.Error()) }
	for j, got:=range wts.Data {
		if got!=1 {
			t.Fatalf("weights pixel %d is %g, want 1", j, got)
		}
	}
}

func TestBoundsRejection(t *testing.T) {
	g:=newBoxGridder(t, 8, false)
	// a 10^7 m baseline scales to thousands of cells, far off the 8x8 grid
	if err:=g.Grid(testChunk([3]float64{1e7, 0, 0}, complex(1, 0))); err!=nil {
		t.Fatalf("gridding: %s", err.Error())
	}
	if s:=g.Stats(); s.SamplesGridded!=0 {
		t.Errorf("gridded %d samples, want 0: sample lies outside the grid", s.SamplesGridded)
	}
	for j, got:=range g.grids[0] {
		if got!=0 {
			t.Fatalf("cell %d is %v, want 0", j, got)
		}
	}
}

func TestFlaggedSamplesSkipped(t *testing.T) {
	g:=newBoxGridder(t, 8, false)
	c:=testChunk([3]float64{0, 0, 0}, complex(1, 0))
	c.Flag[0][0]=true
	if err:=g.Grid(c); err!=nil {
		t.Fatalf("gridding: %s", err.Error())
	}
	s:=g.Stats()
	if s.SamplesGridded!=0 || s.VectorsFlagged!=1 {
		t.Errorf("gridded %d flagged %d, want 0 and 1", s.SamplesGridded, s.VectorsFlagged)
	}
}

func TestPSFRepresentativeFeed(t *testing.T) {
	g:=newBoxGridder(t, 8, true)
	c:=testChunk([3]float64{0, 0, 0}, complex(0.5, 0))
	// second row from another feed must not contribute to the PSF
	c.UVW=append(c.UVW, [3]float64{0, 0, 0})
	c.Vis=append(c.Vis, []complex128{complex(0.5, 0)})
	c.Flag=append(c.Flag, []bool{false})
	c.Feed1=append(c.Feed1, 1)
	c.Pointing1=append(c.Pointing1, vis.Direction{RA: testRA, Dec: testDec})
	c.DishPointing1=append(c.DishPointing1, vis.Direction{RA: testRA, Dec: testDec})
	centre:=vis.Direction{RA: testRA, Dec: testDec}
	c.RotateUVW(centre, centre)

	if err:=g.Grid(c); err!=nil {
		t.Fatalf("gridding: %s", err.Error())
	}
	if w:=g.SumOfWeights()[0]; w!=1 {
		t.Errorf("sum of weights is %g, want 1: only the representative feed contributes", w)
	}
	// PSF visibilities are unit amplitude regardless of the data
	if got:=g.grids[0][4*8+4]; cmplx.Abs(got-complex(1, 0))>1e-12 {
		t.Errorf("centre cell is %v, want 1", got)
	}
}

func TestPSFAllData(t *testing.T) {
	gr, err:=NewTableVisGridder(newBoxProvider(), io.Discard)
	if err!=nil { t.Fatalf("creating gridder: %s", err.Error()) }
	gr.SetUseAllDataForPSF(true)
	if err:=gr.InitialiseGrid(testAxes(8), 8, 8, true); err!=nil {
		t.Fatalf("initialising grid: %s", err.Error())
	}

	c:=testChunk([3]float64{0, 0, 0}, complex(0.5, 0))
	c.UVW=append(c.UVW, [3]float64{0, 0, 0})
	c.Vis=append(c.Vis, []complex128{complex(0.5, 0)})
	c.Flag=append(c.Flag, []bool{false})
	c.Feed1=append(c.Feed1, 1)
	c.Pointing1=append(c.Pointing1, vis.Direction{RA: testRA, Dec: testDec})
	c.DishPointing1=append(c.DishPointing1, vis.Direction{RA: testRA, Dec: testDec})
	centre:=vis.Direction{RA: testRA, Dec: testDec}
	c.RotateUVW(centre, centre)

	if err:=gr.Grid(c); err!=nil {
		t.Fatalf("gridding: %s", err.Error())
	}
	if w:=gr.SumOfWeights()[0]; w!=2 {
		t.Errorf("sum of weights is %g, want 2: all data contribute to the PSF", w)
	}
}

func TestMaxPointingSeparation(t *testing.T) {
	gr, err:=NewTableVisGridder(newBoxProvider(), io.Discard)
	if err!=nil { t.Fatalf("creating gridder: %s", err.Error()) }
	gr.SetMaxPointingSeparation(1e-3)
	if err:=gr.InitialiseGrid(testAxes(8), 8, 8, false); err!=nil {
		t.Fatalf("initialising grid: %s", err.Error())
	}

	c:=testChunk([3]float64{0, 0, 0}, complex(1, 0))
	c.Pointing1[0]=vis.Direction{RA: testRA+0.1, Dec: testDec}
	if err:=gr.Grid(c); err!=nil {
		t.Fatalf("gridding: %s", err.Error())
	}
	s:=gr.Stats()
	if s.RowsRejected!=1 || s.SamplesGridded!=0 {
		t.Errorf("rejected %d gridded %d, want 1 and 0", s.RowsRejected, s.SamplesGridded)
	}
}

func TestDegridDeltaModel(t *testing.T) {
	n:=8
	model:=fits.NewImageFromNaxisn([]int32{int32(n), int32(n), 1, 1}, nil)
	model.Data[(n/2)*n+n/2]=1 // delta at the image centre

	g, err:=NewTableVisGridder(newBoxProvider(), io.Discard)
	if err!=nil { t.Fatalf("creating gridder: %s", err.Error()) }
	if err:=g.InitialiseDegrid(testAxes(n), model); err!=nil {
		t.Fatalf("initialising degrid: %s", err.Error())
	}

	c:=testChunk([3]float64{0, 0, 0}, complex(0, 0))
	if err:=g.Degrid(c); err!=nil {
		t.Fatalf("degridding: %s", err.Error())
	}
	// a centred unit point source predicts unit visibility on every baseline
	if got:=c.Vis[0][0]; cmplx.Abs(got-complex(1, 0))>1e-9 {
		t.Errorf("predicted visibility %v, want 1", got)
	}
	if s:=g.Stats(); s.SamplesDegridded!=1 {
		t.Errorf("degridded %d samples, want 1", s.SamplesDegridded)
	}
}

func TestDegridEmptyModel(t *testing.T) {
	n:=8
	model:=fits.NewImageFromNaxisn([]int32{int32(n), int32(n), 1, 1}, nil)

	g, err:=NewTableVisGridder(newBoxProvider(), io.Discard)
	if err!=nil { t.Fatalf("creating gridder: %s", err.Error()) }
	if err:=g.InitialiseDegrid(testAxes(n), model); err!=nil {
		t.Fatalf("initialising degrid: %s", err.Error())
	}

	c:=testChunk([3]float64{0, 0, 0}, complex(0.7, 0))
	if err:=g.Degrid(c); err!=nil {
		t.Fatalf("degridding: %s", err.Error())
	}
	if got:=c.Vis[0][0]; got!=complex(0.7, 0) {
		t.Errorf("visibility is %v after degridding an empty model, want 0.7 unchanged", got)
	}
}

func TestGridWithoutInitFails(t *testing.T) {
	g, err:=NewTableVisGridder(newBoxProvider(), io.Discard)
	if err!=nil { t.Fatalf("creating gridder: %s", err.Error()) }
	if err:=g.Grid(testChunk([3]float64{0, 0, 0}, complex(1, 0))); err==nil {
		t.Errorf("gridding without initialisation must fail")
	}
	if err:=g.Degrid(testChunk([3]float64{0, 0, 0}, complex(1, 0))); err==nil {
		t.Errorf("degridding without initialisation must fail")
	}
}

func TestPaddedGridding(t *testing.T) {
	n:=8
	gr, err:=NewTableVisGridder(newBoxProvider(), io.Discard)
	if err!=nil { t.Fatalf("creating gridder: %s", err.Error()) }
	if err:=gr.SetPaddingFactor(1.5); err!=nil {
		t.Fatalf("setting padding: %s", err.Error())
	}
	if err:=gr.InitialiseGrid(testAxes(n), n, n, false); err!=nil {
		t.Fatalf("initialising grid: %s", err.Error())
	}
	if gr.shape[0]!=12 || gr.shape[1]!=12 {
		t.Fatalf("padded shape is %dx%d, want 12x12", gr.shape[0], gr.shape[1])
	}
	if err:=gr.Grid(testChunk([3]float64{0, 0, 0}, complex(1, 0))); err!=nil {
		t.Fatalf("gridding: %s", err.Error())
	}
	img, err:=gr.FinaliseGrid()
	if err!=nil { t.Fatalf("finalising: %s", err.Error()) }
	// the output must be cut back to the requested size
	if img.DimensionsToString()!="8x8x1x1" {
		t.Errorf("image dimensions %s, want 8x8x1x1", img.DimensionsToString())
	}
	for j, got:=range img.Data {
		if math.Abs(float64(got)-1)>1e-5 {
			t.Fatalf("pixel %d is %g, want 1", j, got)
		}
	}
}

// A multi-grid provider that records which grids receive an image domain
// correction in each direction
type recordingPlaneProvider struct {
	*boxProvider
	nGrids  int
	inverse []int
	forward []int
}

func (p *recordingPlaneProvider) NGrids() int { return p.nGrids }

func (p *recordingPlaneProvider) CorrectPlane(gIdx int, data []complex128, nx, ny int, lInc, mInc float64, forward bool) {
	if forward {
		p.forward=append(p.forward, gIdx)
	} else {
		p.inverse=append(p.inverse, gIdx)
	}
}

func TestPerGridImageCorrection(t *testing.T) {
	n:=8
	p:=&recordingPlaneProvider{boxProvider: newBoxProvider(), nGrids: 2}
	g, err:=NewTableVisGridder(p, io.Discard)
	if err!=nil { t.Fatalf("creating gridder: %s", err.Error()) }

	if err:=g.InitialiseGrid(testAxes(n), n, n, false); err!=nil {
		t.Fatalf("initialising grid: %s", err.Error())
	}
	if err:=g.Grid(testChunk([3]float64{0, 0, 0}, complex(1, 0))); err!=nil {
		t.Fatalf("gridding: %s", err.Error())
	}
	if _, err:=g.FinaliseGrid(); err!=nil {
		t.Fatalf("finalising: %s", err.Error())
	}
	if len(p.inverse)!=2 || p.inverse[0]!=0 || p.inverse[1]!=1 {
		t.Errorf("imaging corrections applied to grids %v, want [0 1]", p.inverse)
	}

	model:=fits.NewImageFromNaxisn([]int32{int32(n), int32(n), 1, 1}, nil)
	model.Data[(n/2)*n+n/2]=1
	if err:=g.InitialiseDegrid(testAxes(n), model); err!=nil {
		t.Fatalf("initialising degrid: %s", err.Error())
	}
	if len(p.forward)!=2 || p.forward[0]!=0 || p.forward[1]!=1 {
		t.Errorf("degridding corrections applied to grids %v, want [0 1]", p.forward)
	}
}

func TestMFSWeightsApplied(t *testing.T) {
	g:=newBoxGridder(t, 8, false)
	w:=NewMFSWeights(1.4e9)
	w.SetOrder(1)
	g.SetVisWeights(w)
	// data frequency equals the reference, so order 1 weights are zero
	if err:=g.Grid(testChunk([3]float64{0, 0, 0}, complex(1, 0))); err!=nil {
		t.Fatalf("gridding: %s", err.Error())
	}
	if got:=g.grids[0][4*8+4]; got!=0 {
		t.Errorf("centre cell is %v, want 0 under a zero MFS weight", got)
	}
}
