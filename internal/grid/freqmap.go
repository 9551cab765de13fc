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
	"errors"
	"fmt"
	"math"

	"github.com/mlnoga/radiolight/internal/vis"
)

// FrequencyMapper translates data channels of the current chunk into image
// cube planes. Data channels falling outside the cube frequency axis are
// reported as unmapped and skipped by the gridder rather than failing the
// whole chunk.
type FrequencyMapper struct {
	freqAxis    *vis.FrequencyAxis // nil until an image is set up
	singlePlane bool               // everything maps to plane 0
	mapping     []int              // per data channel; -1 if unmapped
}

// Binds the mapper to the frequency axis of the image cube
func (m *FrequencyMapper) SetupImage(axes *vis.Axes) error {
	if axes==nil || axes.Frequency==nil {
		return errors.New("image axes lack a frequency axis required for channel mapping")
	}
	if axes.Frequency.N<1 {
		return fmt.Errorf("invalid number of image channels %d", axes.Frequency.N)
	}
	m.freqAxis=axes.Frequency
	m.singlePlane=false
	m.mapping=nil
	return nil
}

// Configures the mapper to direct all data channels onto a single image
// plane, used for continuum imaging and PSF cubes without a spectral axis
func (m *FrequencyMapper) SetupSinglePlaneGridding() {
	m.freqAxis=nil
	m.singlePlane=true
	m.mapping=nil
}

// Computes the channel map for the frequencies of the current chunk.
// Must be called before IsMapped or Map
func (m *FrequencyMapper) SetupMapping(freqs []float64) {
	if m.mapping==nil || len(m.mapping)!=len(freqs) {
		m.mapping=make([]int, len(freqs))
	}
	if m.singlePlane {
		for i:=range m.mapping { m.mapping[i]=0 }
		return
	}
	if m.freqAxis==nil {
		panic("frequency mapper used before setup")
	}
	for i, f:=range freqs {
		m.mapping[i]=-1
		if m.freqAxis.Increment==0 {
			if m.freqAxis.N==1 { m.mapping[i]=0 }
			continue
		}
		plane:=nint((f-m.freqAxis.Start)/m.freqAxis.Increment)
		if plane>=0 && plane<m.freqAxis.N {
			m.mapping[i]=plane
		}
	}
}

// True if the given data channel contributes to the image cube
func (m *FrequencyMapper) IsMapped(ch int) bool {
	if m.mapping==nil { panic("frequency mapping queried before SetupMapping") }
	return m.mapping[ch]>=0
}

// Image plane for the given data channel. Panics if the channel is unmapped
func (m *FrequencyMapper) Map(ch int) int {
	if m.mapping==nil { panic("frequency mapping queried before SetupMapping") }
	plane:=m.mapping[ch]
	if plane<0 { panic(fmt.Sprintf("data channel %d is not mapped onto the image cube", ch)) }
	return plane
}

// Rounds to the nearest integer, halves away from zero
func nint(x float64) int {
	return int(math.Round(x))
}
