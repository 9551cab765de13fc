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
	"io"

	"github.com/mlnoga/radiolight/internal/fits"
	"github.com/mlnoga/radiolight/internal/vis"
)

// SnapshotGridder wraps another gridder for snapshot imaging: over a short
// observation the w coordinate is well approximated by a plane w = a*u + b*v,
// which corresponds to a coordinate distortion of the image rather than a
// genuine non-coplanarity. The adapter fits that plane per chunk, subtracts
// it from the w coordinates before delegating, and warns when the residual
// exceeds the configured tolerance. Optionally it clips the distorted image
// edges where the planar approximation breaks down
type SnapshotGridder struct {
	inner          Gridder
	wTolerance     float64 // wavelengths
	clippingFactor float64 // fraction of each image border to zero
	log            io.Writer

	coeffA, coeffB float64
	planesFitted   int64
	tolExceeded    int64
}

func NewSnapshotGridder(inner Gridder, wTolerance, clippingFactor float64, log io.Writer) *SnapshotGridder {
	return &SnapshotGridder{
		inner: inner, wTolerance: wTolerance, clippingFactor: clippingFactor, log: log,
	}
}

func (s *SnapshotGridder) InitialiseGrid(axes *vis.Axes, nx, ny int, dopsf bool) error {
	return s.inner.InitialiseGrid(axes, nx, ny, dopsf)
}

func (s *SnapshotGridder) Grid(chunk *vis.Chunk) error {
	savedW:=s.fitAndSubtractWPlane(chunk)
	err:=s.inner.Grid(chunk)
	s.restoreW(chunk, savedW)
	return err
}

func (s *SnapshotGridder) FinaliseGrid() (*fits.Image, error) {
	img, err:=s.inner.FinaliseGrid()
	if err!=nil { return nil, err }
	s.clip(img)
	return img, nil
}

func (s *SnapshotGridder) FinaliseWeights() (*fits.Image, error) {
	return s.inner.FinaliseWeights()
}

func (s *SnapshotGridder) InitialiseDegrid(axes *vis.Axes, model *fits.Image) error {
	return s.inner.InitialiseDegrid(axes, model)
}

func (s *SnapshotGridder) Degrid(chunk *vis.Chunk) error {
	savedW:=s.fitAndSubtractWPlane(chunk)
	err:=s.inner.Degrid(chunk)
	s.restoreW(chunk, savedW)
	return err
}

func (s *SnapshotGridder) FinaliseDegrid() { s.inner.FinaliseDegrid() }

func (s *SnapshotGridder) CustomiseForContext(context string) { s.inner.CustomiseForContext(context) }
func (s *SnapshotGridder) SetVisWeights(w VisWeights)         { s.inner.SetVisWeights(w) }

func (s *SnapshotGridder) ReportStats() {
	fmt.Fprintf(s.log, "Snapshot imaging fitted %d w planes, %d exceeded the tolerance of %g wavelengths\n",
		s.planesFitted, s.tolExceeded, s.wTolerance)
	s.inner.ReportStats()
}

// Least-squares fit of w = a*u + b*v over the rows of the chunk, then
// subtraction of the fitted plane from the rotated w coordinates. The
// residual is checked against the tolerance at the highest data frequency.
// Returns the original w column so callers can restore it after delegating
func (s *SnapshotGridder) fitAndSubtractWPlane(chunk *vis.Chunk) []float64 {
	var suu, svv, suv, suw, svw float64
	for _, uvw:=range chunk.RotatedUVW {
		suu+=uvw[0]*uvw[0]
		svv+=uvw[1]*uvw[1]
		suv+=uvw[0]*uvw[1]
		suw+=uvw[0]*uvw[2]
		svw+=uvw[1]*uvw[2]
	}
	det:=suu*svv-suv*suv
	a, b:=0.0, 0.0
	if det!=0 {
		a=(suw*svv-svw*suv)/det
		b=(svw*suu-suw*suv)/det
	}
	s.coeffA, s.coeffB = a, b
	s.planesFitted++

	maxFreq:=0.0
	for _, f:=range chunk.Freq {
		if f>maxFreq { maxFreq=f }
	}

	savedW:=make([]float64, len(chunk.RotatedUVW))
	maxResidual:=0.0
	for i:=range chunk.RotatedUVW {
		uvw:=&chunk.RotatedUVW[i]
		savedW[i]=uvw[2]
		residual:=uvw[2]-a*uvw[0]-b*uvw[1]
		uvw[2]=residual
		if r:=abs64(residual); r>maxResidual { maxResidual=r }
	}

	maxResidualLambda:=maxResidual*maxFreq/speedOfLight
	if maxResidualLambda>s.wTolerance {
		s.tolExceeded++
		fmt.Fprintf(s.log, "Warning: residual w of %g wavelengths exceeds the snapshot tolerance of %g\n",
			maxResidualLambda, s.wTolerance)
	}
	return savedW
}

func (s *SnapshotGridder) restoreW(chunk *vis.Chunk, savedW []float64) {
	for i:=range savedW {
		chunk.RotatedUVW[i][2]=savedW[i]
	}
}

// Zeros the border of each image plane where the coordinate distortion of
// the planar w approximation is largest
func (s *SnapshotGridder) clip(img *fits.Image) {
	if s.clippingFactor<=0 { return }
	nx, ny:=int(img.Naxisn[0]), int(img.Naxisn[1])
	borderX:=int(float64(nx)*s.clippingFactor/2)
	borderY:=int(float64(ny)*s.clippingFactor/2)
	if borderX==0 && borderY==0 { return }
	for p:=0; p<img.NPlanes(); p++ {
		plane:=img.Plane(p)
		for y:=0; y<ny; y++ {
			row:=plane[y*nx:(y+1)*nx]
			if y<borderY || y>=ny-borderY {
				for x:=range row { row[x]=0 }
				continue
			}
			for x:=0; x<borderX; x++ { row[x]=0 }
			for x:=nx-borderX; x<nx; x++ { row[x]=0 }
		}
	}
	fmt.Fprintf(s.log, "Clipped %g of the image edges distorted by snapshot imaging\n", s.clippingFactor)
}
