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
	"fmt"

	"github.com/mlnoga/radiolight/internal/vis"
)

const (
	defaultSphSupport    = 3
	defaultSphOversample = 128
)

// Prolate spheroidal antialiasing kernel. One function for all samples;
// suppresses aliased sources from outside the field of view
type sphProvider struct {
	support    int
	oversample int
	funcs      [][]complex128
}

func init() {
	RegisterGridder("SphFunc", func(s *Settings) (Gridder, error) {
		p, err:=newSphProvider(s.Support, s.Oversample)
		if err!=nil { return nil, err }
		return NewTableVisGridder(p, s.LogWriter())
	})
}

func newSphProvider(support, oversample int) (*sphProvider, error) {
	if support==0 { support=defaultSphSupport }
	if oversample==0 { oversample=defaultSphOversample }
	if support<1 {
		return nil, fmt.Errorf("spheroidal function support %d must be positive", support)
	}
	if oversample<1 {
		return nil, fmt.Errorf("oversampling factor %d must be positive", oversample)
	}
	p:=&sphProvider{support: support, oversample: oversample}
	fine:=outerProduct(sphFine1d(support, oversample))
	p.funcs=tabulateKernel(fine, support, oversample)
	return p, nil
}

func (p *sphProvider) Name() string       { return "SphFunc" }
func (p *sphProvider) Support() int       { return p.support }
func (p *sphProvider) Oversample() int    { return p.oversample }
func (p *sphProvider) NConvIndices() int  { return 1 }
func (p *sphProvider) NGrids() int        { return 1 }

func (p *sphProvider) Init(chunk *vis.Chunk, uvCellSize [2]float64) error { return nil }

func (p *sphProvider) CIndex(row, pol, ch int) int { return 0 }
func (p *sphProvider) GIndex(row, pol, ch int) int { return 0 }
func (p *sphProvider) Funcs() [][]complex128       { return p.funcs }

func (p *sphProvider) Correct(data []float64, nx, ny int) {
	correctSpheroidal(data, nx, ny)
}

// Finely sampled 1D kernel profile (1-nu^2)*grdsf(nu) over the support,
// normalized to unit area per UV cell so gridding preserves total flux
func sphFine1d(support, oversample int) []float64 {
	n:=(2*support+1)*oversample
	centre:=support*oversample
	fine:=make([]float64, n)
	sum:=0.0
	for j:=0; j<n; j++ {
		t:=float64(j-centre)/float64(oversample)
		nu:=t/float64(support+1)
		if nu<0 { nu=-nu }
		v:=(1-nu*nu)*grdsf(nu)
		if v<0 { v=0 }
		fine[j]=v
		sum+=v
	}
	scale:=float64(oversample)/sum
	for j:=range fine { fine[j]*=scale }
	return fine
}

// Divides out the spheroidal image plane taper. Taper zeros at the very edge
// of the padded image are mapped to zero rather than dividing
func correctSpheroidal(data []float64, nx, ny int) {
	ccfx:=make([]float64, nx)
	for ix:=0; ix<nx; ix++ {
		nux:=abs64(2*float64(ix)-float64(nx))/float64(nx)
		ccfx[ix]=grdsf(nux)
	}
	ccfy:=make([]float64, ny)
	for iy:=0; iy<ny; iy++ {
		nuy:=abs64(2*float64(iy)-float64(ny))/float64(ny)
		ccfy[iy]=grdsf(nuy)
	}
	for iy:=0; iy<ny; iy++ {
		row:=data[iy*nx:(iy+1)*nx]
		cy:=ccfy[iy]
		for ix:=0; ix<nx; ix++ {
			c:=ccfx[ix]*cy
			if c>1e-12 || c< -1e-12 {
				row[ix]/=c
			} else {
				row[ix]=0
			}
		}
	}
}

func abs64(x float64) float64 {
	if x<0 { return -x }
	return x
}

// Rational approximation to the 0th order prolate spheroidal function with
// m=6, alpha=1 after Schwab, "Optimal Gridding of Visibility Data in Radio
// Interferometry", Indirect Imaging (1984). Argument nu in [0,1]
func grdsf(nu float64) float64 {
	p:=[2][5]float64{
		{8.203343e-2, -3.644705e-1, 6.278660e-1, -5.335581e-1, 2.312756e-1},
		{4.028559e-3, -3.697768e-2, 1.021332e-1, -1.201436e-1, 6.412774e-2},
	}
	q:=[2][3]float64{
		{1.0, 8.212018e-1, 2.078043e-1},
		{1.0, 9.599102e-1, 2.918724e-1},
	}
	var part int
	var nuend float64
	switch {
	case nu>=0 && nu<0.75:
		part, nuend = 0, 0.75
	case nu>=0.75 && nu<=1.0:
		part, nuend = 1, 1.0
	default:
		return 0
	}
	delnusq:=nu*nu - nuend*nuend
	top:=p[part][0]
	dsq:=delnusq
	for k:=1; k<5; k++ {
		top+=p[part][k]*dsq
		dsq*=delnusq
	}
	bot:=q[part][0]
	dsq=delnusq
	for k:=1; k<3; k++ {
		bot+=q[part][k]*dsq
		dsq*=delnusq
	}
	if bot==0 { return 0 }
	return top/bot
}
