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
	"math"

	"github.com/mlnoga/radiolight/internal/vis"
)

const defaultWStackPlanes = 33

// W-stacking. Samples are sorted onto one grid per w plane using the plain
// spheroidal kernel, deferring the w correction to the image domain. Trades
// the larger w projection kernels for memory, one full grid per plane
type wStackProvider struct {
	sph      *sphProvider
	wmax     float64 // maximum |w| in wavelengths
	nwplanes int     // odd; plane nwplanes/2 is w=0
	wscale   float64 // wavelengths per plane

	gIndexOf [][]int // per row, per channel
}

func init() {
	RegisterGridder("WStack", func(s *Settings) (Gridder, error) {
		p, err:=newWStackProvider(s.Support, s.Oversample, s.WMax, s.NWPlanes)
		if err!=nil { return nil, err }
		return NewTableVisGridder(p, s.LogWriter())
	})
}

func newWStackProvider(support, oversample int, wmax float64, nwplanes int) (*wStackProvider, error) {
	if wmax==0 { wmax=defaultWMax }
	if nwplanes==0 { nwplanes=defaultWStackPlanes }
	if nwplanes<1 || nwplanes%2!=1 {
		return nil, fmt.Errorf("number of w planes %d must be positive and odd", nwplanes)
	}
	if wmax<=0 {
		return nil, fmt.Errorf("wmax %g must be positive", wmax)
	}
	sph, err:=newSphProvider(support, oversample)
	if err!=nil { return nil, err }
	wscale:=wmax/float64(nwplanes/2)
	if nwplanes==1 { wscale=1 }
	return &wStackProvider{sph: sph, wmax: wmax, nwplanes: nwplanes, wscale: wscale}, nil
}

func (p *wStackProvider) Name() string      { return "WStack" }
func (p *wStackProvider) Support() int      { return p.sph.Support() }
func (p *wStackProvider) Oversample() int   { return p.sph.Oversample() }
func (p *wStackProvider) NConvIndices() int { return 1 }
func (p *wStackProvider) NGrids() int       { return p.nwplanes }

func (p *wStackProvider) Init(chunk *vis.Chunk, uvCellSize [2]float64) error {
	nRow, nChan:=chunk.NRow(), chunk.NChan()
	p.gIndexOf=make([][]int, nRow)
	for i:=0; i<nRow; i++ {
		p.gIndexOf[i]=make([]int, nChan)
		for ch:=0; ch<nChan; ch++ {
			wLambda:=chunk.Freq[ch]*chunk.RotatedUVW[i][2]/speedOfLight
			plane:=p.nwplanes/2+nint(wLambda/p.wscale)
			if plane<0 || plane>=p.nwplanes {
				return fmt.Errorf("w coordinate %g wavelengths exceeds wmax %g; increase wmax or the number of w planes",
					wLambda, p.wmax)
			}
			p.gIndexOf[i][ch]=plane
		}
	}
	return nil
}

func (p *wStackProvider) CIndex(row, pol, ch int) int { return 0 }
func (p *wStackProvider) GIndex(row, pol, ch int) int { return p.gIndexOf[row][ch] }
func (p *wStackProvider) Funcs() [][]complex128       { return p.sph.Funcs() }

func (p *wStackProvider) Correct(data []float64, nx, ny int) {
	correctSpheroidal(data, nx, ny)
}

// Applies the w phase of the plane held by grid gIdx in the image domain,
// exp(2 pi i w (sqrt(1-l^2-m^2)-1)) when imaging and its conjugate when
// degridding. Pixels beyond the l^2+m^2=1 horizon are zeroed
func (p *wStackProvider) CorrectPlane(gIdx int, data []complex128, nx, ny int, lInc, mInc float64, forward bool) {
	wLambda:=float64(gIdx-p.nwplanes/2)*p.wscale
	if wLambda==0 { return }
	scale:=2*math.Pi*wLambda
	if forward { scale=-scale }
	for iy:=0; iy<ny; iy++ {
		m:=float64(iy-ny/2)*mInc
		row:=data[iy*nx:(iy+1)*nx]
		for ix:=0; ix<nx; ix++ {
			l:=float64(ix-nx/2)*lInc
			r2:=l*l+m*m
			if r2>=1 {
				row[ix]=0
				continue
			}
			phase:=scale*(math.Sqrt(1-r2)-1)
			row[ix]*=complex(math.Cos(phase), math.Sin(phase))
		}
	}
}
