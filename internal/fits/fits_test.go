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
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/valyala/fastrand"
)

func TestImageAccessors(t *testing.T) {
	img:=NewImageFromNaxisn([]int32{4, 2, 3}, nil)
	if img.Pixels!=24 || len(img.Data)!=24 {
		t.Fatalf("image has %d pixels and %d data values, want 24", img.Pixels, len(img.Data))
	}
	if img.DimensionsToString()!="4x2x3" {
		t.Errorf("dimensions %s, want 4x2x3", img.DimensionsToString())
	}
	if img.NPlanes()!=3 || img.PlanePixels()!=8 {
		t.Errorf("%d planes of %d pixels, want 3 of 8", img.NPlanes(), img.PlanePixels())
	}
	img.Data[13]=-7
	p:=img.Plane(1)
	if len(p)!=8 || p[5]!=-7 {
		t.Errorf("plane 1 is %v, want value -7 at offset 5", p)
	}
	if img.MaxAbs()!=7 {
		t.Errorf("max abs is %g, want 7", img.MaxAbs())
	}
	if img.Plane(2)[0]!=0 {
		t.Errorf("untouched plane must stay zero")
	}
}

func TestMaxAbsEmptyModel(t *testing.T) {
	img:=NewImageFromNaxisn([]int32{8, 8}, nil)
	if img.MaxAbs()!=0 {
		t.Errorf("empty model max abs is %g, want 0", img.MaxAbs())
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	rng:=fastrand.RNG{}
	rng.Seed(42)
	data:=make([]float32, 8*6*2)
	for i:=range data {
		data[i]=float32(rng.Uint32())/float32(1<<32)-0.5
	}
	orig:=NewImageFromNaxisn([]int32{8, 6, 2}, data)
	orig.Header.Strings["CTYPE1"]="RA---SIN"
	orig.Header.Floats["CRVAL1"]=187.5

	buf:=bytes.Buffer{}
	if err:=orig.Write(&buf); err!=nil {
		t.Fatalf("writing: %s", err.Error())
	}
	if buf.Len()%2880!=0 {
		t.Errorf("output is %d bytes, want a multiple of the 2880 byte block size", buf.Len())
	}

	got:=NewImage()
	if err:=got.Read(&buf, io.Discard); err!=nil {
		t.Fatalf("reading: %s", err.Error())
	}
	if got.DimensionsToString()!=orig.DimensionsToString() {
		t.Fatalf("dimensions %s, want %s", got.DimensionsToString(), orig.DimensionsToString())
	}
	if got.Bitpix!=-32 {
		t.Errorf("bitpix %d, want -32", got.Bitpix)
	}
	if got.Header.Strings["CTYPE1"]!="RA---SIN" {
		t.Errorf("CTYPE1 is %q, want RA---SIN", got.Header.Strings["CTYPE1"])
	}
	if v:=got.Header.Floats["CRVAL1"]; math.Abs(float64(v)-187.5)>1e-4 {
		t.Errorf("CRVAL1 is %g, want 187.5", v)
	}
	for i:=range data {
		if got.Data[i]!=data[i] {
			t.Fatalf("data value %d is %g, want %g", i, got.Data[i], data[i])
		}
	}
}

func TestWriteReplacesNaNs(t *testing.T) {
	img:=NewImageFromNaxisn([]int32{2, 2}, []float32{1, float32(math.NaN()), 3, 4})
	buf:=bytes.Buffer{}
	if err:=img.Write(&buf); err!=nil {
		t.Fatalf("writing: %s", err.Error())
	}
	got:=NewImage()
	if err:=got.Read(&buf, io.Discard); err!=nil {
		t.Fatalf("reading: %s", err.Error())
	}
	if got.Data[1]!=0 {
		t.Errorf("NaN written as %g, want 0", got.Data[1])
	}
	if got.Data[0]!=1 || got.Data[2]!=3 || got.Data[3]!=4 {
		t.Errorf("finite values %v changed", got.Data)
	}
}
