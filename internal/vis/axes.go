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

// Direction axis of an output image: a tangent-plane projection about a
// reference position. Increments are in radians per pixel, the reference
// pixel is in unpadded image coordinates
type DirectionAxis struct {
	RefRA    float64 `json:"refRA"`
	RefDec   float64 `json:"refDec"`
	RefPixX  float64 `json:"refPixX"`
	RefPixY  float64 `json:"refPixY"`
	IncRA    float64 `json:"incRA"`
	IncDec   float64 `json:"incDec"`
}

// Converts pixel coordinates to a world direction using the local
// tangent-plane approximation
func (a *DirectionAxis) ToWorld(x, y float64) Direction {
	return Direction{
		RA:  a.RefRA  + (x-a.RefPixX)*a.IncRA,
		Dec: a.RefDec + (y-a.RefPixY)*a.IncDec,
	}
}

// Regularly sampled spectral axis of an output image cube, in Hz
type FrequencyAxis struct {
	Start     float64 `json:"start"`
	Increment float64 `json:"increment"`
	N         int     `json:"n"`
}

// Coordinate axes describing an output image: a mandatory direction axis,
// and optional frequency and polarisation axes
type Axes struct {
	Direction *DirectionAxis `json:"direction"`
	Frequency *FrequencyAxis `json:"frequency"`
	Stokes    []Stokes       `json:"stokes"`
}

// The tangent point all UVW coordinates are rotated to; the reference
// position of the direction axis
func (a *Axes) TangentPoint() Direction {
	return Direction{RA: a.Direction.RefRA, Dec: a.Direction.RefDec}
}

// Number of polarisation planes in the output image; one if no Stokes axis
// is defined
func (a *Axes) NPol() int {
	if len(a.Stokes)==0 { return 1 }
	return len(a.Stokes)
}

// Polarisation descriptors of the output image planes, defaulting to Stokes I
func (a *Axes) ImageStokes() []Stokes {
	if len(a.Stokes)==0 { return []Stokes{StokesI} }
	return a.Stokes
}
