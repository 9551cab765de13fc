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
	"math/cmplx"

	"github.com/mlnoga/radiolight/internal/vis"
)

const (
	defaultWProjSupport    = 5
	defaultWProjOversample = 8
	defaultWProjPlanes     = 33
	defaultWMax            = 35000 // wavelengths
)

// W-projection kernels. Non-coplanar baselines are corrected by convolving
// each sample with the Fourier transform of the w phase screen for its
// w plane, so a single grid suffices. Kernels are built lazily per plane
// the first time a sample needs them
type wProjProvider struct {
	support    int
	oversample int
	wmax       float64 // maximum |w| in wavelengths
	nwplanes   int     // odd; plane nwplanes/2 is w=0
	wscale     float64 // wavelengths per plane

	funcs        [][]complex128
	planeToCIdx  map[int]int
	cIndexOf     [][]int // per row, per channel
	uvCellSize   [2]float64
}

func init() {
	RegisterGridder("WProject", func(s *Settings) (Gridder, error) {
		p, err:=newWProjProvider(s.Support, s.Oversample, s.WMax, s.NWPlanes)
		if err!=nil { return nil, err }
		return NewTableVisGridder(p, s.LogWriter())
	})
}

func newWProjProvider(support, oversample int, wmax float64, nwplanes int) (*wProjProvider, error) {
	if support==0 { support=defaultWProjSupport }
	if oversample==0 { oversample=defaultWProjOversample }
	if wmax==0 { wmax=defaultWMax }
	if nwplanes==0 { nwplanes=defaultWProjPlanes }
	if support<1 {
		return nil, fmt.Errorf("w projection support %d must be positive", support)
	}
	if oversample<2 || oversample%2!=0 {
		return nil, fmt.Errorf("w projection oversampling factor %d must be even", oversample)
	}
	if nwplanes<1 || nwplanes%2!=1 {
		return nil, fmt.Errorf("number of w planes %d must be positive and odd", nwplanes)
	}
	if wmax<=0 {
		return nil, fmt.Errorf("wmax %g must be positive", wmax)
	}
	wscale:=wmax/float64(nwplanes/2)
	if nwplanes==1 { wscale=1 }
	return &wProjProvider{
		support: support, oversample: oversample,
		wmax: wmax, nwplanes: nwplanes, wscale: wscale,
		planeToCIdx: map[int]int{},
	}, nil
}

func (p *wProjProvider) Name() string      { return "WProject" }
func (p *wProjProvider) Support() int      { return p.support }
func (p *wProjProvider) Oversample() int   { return p.oversample }
func (p *wProjProvider) NConvIndices() int { return p.nwplanes }
func (p *wProjProvider) NGrids() int       { return 1 }

func (p *wProjProvider) Init(chunk *vis.Chunk, uvCellSize [2]float64) error {
	p.uvCellSize=uvCellSize
	nRow, nChan:=chunk.NRow(), chunk.NChan()
	p.cIndexOf=make([][]int, nRow)
	for i:=0; i<nRow; i++ {
		p.cIndexOf[i]=make([]int, nChan)
		for ch:=0; ch<nChan; ch++ {
			wLambda:=chunk.Freq[ch]*chunk.RotatedUVW[i][2]/speedOfLight
			plane:=p.nwplanes/2+nint(wLambda/p.wscale)
			if plane<0 || plane>=p.nwplanes {
				return fmt.Errorf("w coordinate %g wavelengths exceeds wmax %g; increase wmax or the number of w planes",
					wLambda, p.wmax)
			}
			cIdx, ok:=p.planeToCIdx[plane]
			if !ok {
				var err error
				if cIdx, err=p.buildPlane(plane); err!=nil { return err }
			}
			p.cIndexOf[i][ch]=cIdx
		}
	}
	return nil
}

func (p *wProjProvider) CIndex(row, pol, ch int) int { return p.cIndexOf[row][ch] }
func (p *wProjProvider) GIndex(row, pol, ch int) int { return 0 }
func (p *wProjProvider) Funcs() [][]complex128       { return p.funcs }

func (p *wProjProvider) Correct(data []float64, nx, ny int) {
	correctSpheroidal(data, nx, ny)
}

// Generates the oversample^2 kernels for one w plane and appends them to the
// function table. The kernel is the centered FFT of the tapered phase screen
// exp(2 pi i w (sqrt(1-l^2-m^2)-1)) sampled over the image patch conjugate
// to the fine UV sampling uvCellSize/oversample
func (p *wProjProvider) buildPlane(plane int) (cIdx int, err error) {
	wLambda:=float64(plane-p.nwplanes/2)*p.wscale
	n:=(2*p.support+1)*p.oversample

	cell:=p.uvCellSize[0]
	if cell<=0 { cell=1 }
	deltaU:=cell/float64(p.oversample)
	deltaL:=1/(float64(n)*deltaU)

	screen:=make([]complex128, n*n)
	for k:=0; k<n; k++ {
		m:=float64(k-n/2)*deltaL
		nuy:=abs64(2*float64(k)-float64(n))/float64(n)
		ty:=grdsf(nuy)
		row:=screen[k*n:(k+1)*n]
		for j:=0; j<n; j++ {
			l:=float64(j-n/2)*deltaL
			r2:=l*l+m*m
			if r2>=1 { continue }
			nux:=abs64(2*float64(j)-float64(n))/float64(n)
			phase:=2*math.Pi*wLambda*(math.Sqrt(1-r2)-1)
			row[j]=complex(ty*grdsf(nux), 0)*cmplx.Exp(complex(0, phase))
		}
	}
	fft2d(screen, n, n, true)

	// the FFT centre n/2 sits half an oversampling step above the kernel
	// tabulation centre support*oversample; realign and zero pad the edge
	fine:=make([]complex128, n*n)
	off:=p.oversample/2
	for k:=0; k<n; k++ {
		if k+off>=n { break }
		src:=screen[(k+off)*n:]
		dst:=fine[k*n:(k+1)*n]
		for j:=0; j+off<n; j++ {
			dst[j]=src[j+off]
		}
	}

	var sum complex128
	for _, v:=range fine { sum+=v }
	if cmplx.Abs(sum)<1e-12 {
		return 0, fmt.Errorf("degenerate convolution function for w plane %d (w=%g wavelengths)", plane, wLambda)
	}
	norm:=complex(float64(p.oversample*p.oversample), 0)/sum
	for i:=range fine { fine[i]*=norm }

	cIdx=len(p.funcs)/(p.oversample*p.oversample)
	p.funcs=append(p.funcs, tabulateKernel(fine, p.support, p.oversample)...)
	p.planeToCIdx[plane]=cIdx
	return cIdx, nil
}
