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


package fits

import (
	"fmt"
	"math"
	"strings"
)

// A FITS image cube, as produced by the gridder (dirty image, PSF, weights)
// or read back as a degridding model.
// Spec here:   https://fits.gsfc.nasa.gov/standard40/fits_standard40aa-le.pdf
// Primer here: https://fits.gsfc.nasa.gov/fits_primer.html
type Image struct {
	ID       int         // Sequential ID number, for log output
	FileName string      // Original file name, if any, for log output

	Header Header        // The header with all keys, values, comments etc.
	Bitpix int32         // Bits per pixel value from the header. Positive values are integral, negative floating
	Bzero  float32       // Zero offset. True pixel value is Bzero + Bscale * Data[i]
	Bscale float32       // Value scaler. True pixel value is Bzero + Bscale * Data[i]
	Naxisn []int32       // Axis dimensions. Most quickly varying dimension first (i.e. X,Y,POL,FREQ)
	Pixels int32         // Number of pixels in the image. Product of Naxisn[]

	Data   []float32     // The image data
}

// Creates a FITS image initialized with empty header
func NewImage() *Image {
	return &Image{
		Header:  NewHeader(),
		Bscale:  1,
	}
}

// Creates a FITS image from given naxisn. Data is not copied, allocated if nil. naxisn is deep copied
func NewImageFromNaxisn(naxisn []int32, data []float32) *Image {
	numPixels:=int32(1)
	for _,naxis:=range(naxisn) {
		numPixels*=naxis
	}
	if data==nil {
		data=make([]float32, numPixels)
	}
	return &Image{
		ID:       0,
		FileName: "",
		Header:   NewHeader(),
		Bitpix:   -32,
		Bzero:    0,
		Bscale:   1,
		Naxisn:   append([]int32(nil), naxisn...), // clone slice
		Pixels:   numPixels,
		Data:     data,
	}
}

// FITS header data
type Header struct {
	Bools    map[string]bool
	Ints     map[string]int32
	Floats   map[string]float32
	Strings  map[string]string
	Comments []string
	History  []string
	End      bool
	Length   int32
}

// Creates a FITS header initialized with empty maps and arrays
func NewHeader() Header {
	return Header{
		Bools:   make(map[string]bool),
		Ints:    make(map[string]int32),
		Floats:  make(map[string]float32),
		Strings: make(map[string]string),
		Comments:make([]string,0),
		History: make([]string,0),
		End:     false,
	}
}

const fitsBlockSize int  = 2880 // Block size of FITS header and data units
const HeaderLineSize int = 80   // Line size of a FITS header

func (f *Image) DimensionsToString() string {
	b:=strings.Builder{}
	for i,naxis:=range(f.Naxisn) {
		if i>0 {
			fmt.Fprintf(&b, "x%d", naxis)
		} else {
			fmt.Fprintf(&b, "%d", naxis)
		}
	}
	return b.String()
}

// Number of spatial pixels in one image plane
func (f *Image) PlanePixels() int {
	if len(f.Naxisn)<2 { return int(f.Pixels) }
	return int(f.Naxisn[0])*int(f.Naxisn[1])
}

// Number of planes in the cube (product of all axes beyond the first two)
func (f *Image) NPlanes() int {
	n:=1
	for _,naxis:=range f.Naxisn[2:] {
		n*=int(naxis)
	}
	return n
}

// Returns the data of one 2D plane as a subslice
func (f *Image) Plane(i int) []float32 {
	pp:=f.PlanePixels()
	return f.Data[i*pp:(i+1)*pp]
}

// Minimum and maximum finite data value, for preview scaling
func (f *Image) MinMax() (min, max float32) {
	min, max = float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _,v:=range f.Data {
		if math.IsNaN(float64(v)) { continue }
		if v<min { min=v }
		if v>max { max=v }
	}
	return min, max
}

// Maximum absolute data value; zero for an empty model
func (f *Image) MaxAbs() float32 {
	max:=float32(0)
	for _,v:=range f.Data {
		a:=v
		if a<0 { a=-a }
		if a>max { max=a }
	}
	return max
}
