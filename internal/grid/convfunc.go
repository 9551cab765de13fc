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
	"github.com/mlnoga/radiolight/internal/vis"
)

// ConvFuncProvider supplies the convolution functions used for stamping, and
// the matching image plane correction. Implementations decide per sample
// which function and which grid to use; the w-aware providers key off the
// rotated w coordinate.
//
// Funcs returns one (2*support+1)^2 matrix per table entry, laid out so the
// flat index for a sample is
//
//	fracU + oversample*(fracV + oversample*CIndex(row, pol, chan))
//
// i.e. oversample^2 consecutive sub-cell matrices per convolution index.
type ConvFuncProvider interface {
	Name() string
	Support() int        // half-width; the stamped footprint is (2*support+1)^2
	Oversample() int     // sub-cell positions per UV cell, per axis
	NConvIndices() int   // distinct CIndex values, excluding oversampling
	NGrids() int         // distinct GIndex values

	// Prepares (or extends) the function table for the given chunk.
	// uvCellSize is in wavelengths per grid cell for the two UV axes
	Init(chunk *vis.Chunk, uvCellSize [2]float64) error

	CIndex(row, pol, ch int) int
	GIndex(row, pol, ch int) int
	Funcs() [][]complex128

	// Divides out the image plane taper that the convolution imposes,
	// operating on one padded nx*ny image plane
	Correct(data []float64, nx, ny int)
}

// PlaneCorrector is implemented by providers that split their samples over
// several grids and owe each grid its own image domain term, such as the
// per plane w phase of w stacking. FinaliseGrid applies it to each complex
// image after the inverse FFT (forward=false); InitialiseDegrid applies the
// conjugate term to the model before the forward FFT (forward=true).
// lInc and mInc are the direction cosine increments per pixel
type PlaneCorrector interface {
	CorrectPlane(gIdx int, data []complex128, nx, ny int, lInc, mInc float64, forward bool)
}

// Slices a finely sampled kernel of size ((2*support+1)*oversample)^2 into
// oversample^2 stamping matrices of (2*support+1)^2 taps each, ordered
// fracU + oversample*fracV. Fine sample j on one axis corresponds to the
// continuous kernel argument (j - support*oversample)/oversample, so the
// matrix for sub-cell (fracU, fracV) holds the kernel evaluated at offsets
// du + fracU/oversample for du in [-support, support].
func tabulateKernel(fine []complex128, support, oversample int) [][]complex128 {
	cSize:=2*support+1
	fineSize:=cSize*oversample
	funcs:=make([][]complex128, oversample*oversample)
	for fracV:=0; fracV<oversample; fracV++ {
		for fracU:=0; fracU<oversample; fracU++ {
			m:=make([]complex128, cSize*cSize)
			for dv:=0; dv<cSize; dv++ {
				fo:=(dv*oversample+fracV)*fineSize
				mo:=dv*cSize
				for du:=0; du<cSize; du++ {
					m[mo+du]=fine[fo+du*oversample+fracU]
				}
			}
			funcs[fracU+oversample*fracV]=m
		}
	}
	return funcs
}

// Builds a separable fine 2D kernel from a fine 1D profile
func outerProduct(fine1d []float64) []complex128 {
	n:=len(fine1d)
	fine:=make([]complex128, n*n)
	for v:=0; v<n; v++ {
		fv:=fine1d[v]
		row:=fine[v*n:(v+1)*n]
		for u:=0; u<n; u++ {
			row[u]=complex(fine1d[u]*fv, 0)
		}
	}
	return fine
}
