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

import (
	"fmt"
	"io"
	"math"
	"github.com/valyala/fastrand"
)

const speedOfLight=2.99792458e8 // m/s

// A point source used by the simulator, with offsets from the phase centre
// in radians and flux in Jy
type PointSource struct {
	L    float64 `json:"l"`
	M    float64 `json:"m"`
	Flux float64 `json:"flux"`
}

// Configuration for the synthetic observation generator
type SimConfig struct {
	Rows      int           `json:"rows"`      // rows per chunk
	Chunks    int           `json:"chunks"`
	FreqStart float64       `json:"freqStart"` // Hz
	FreqInc   float64       `json:"freqInc"`   // Hz
	Channels  int           `json:"channels"`
	Stokes    []Stokes      `json:"stokes"`
	MaxBaseline float64     `json:"maxBaseline"` // metres
	Pointing  Direction     `json:"pointing"`
	Sources   []PointSource `json:"sources"`
	FlagFraction float64    `json:"flagFraction"`
	Seed      uint32        `json:"seed"`
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		Rows: 128, Chunks: 4,
		FreqStart: 1.4e9, FreqInc: 1e6, Channels: 8,
		Stokes: []Stokes{StokesXX, StokesYY},
		MaxBaseline: 3000,
		Sources: []PointSource{{L: 0, M: 0, Flux: 1}},
		Seed: 1,
	}
}

// Generates synthetic visibility chunks for a set of point sources over a
// random east-west-ish uv coverage. The same seed reproduces the same data.
// Rotated UVW and delays are filled in for a tangent point on the pointing
// centre, matching what the dataset iterator provides in production
func Simulate(cfg SimConfig, logWriter io.Writer) []*Chunk {
	rng:=fastrand.RNG{}
	rng.Seed(cfg.Seed)
	nPol:=len(cfg.Stokes)

	chunks:=make([]*Chunk, cfg.Chunks)
	for ci:=range chunks {
		c:=&Chunk{
			UVW:           make([][3]float64, cfg.Rows),
			Freq:          make([]float64, cfg.Channels),
			Vis:           make([][]complex128, cfg.Rows),
			Flag:          make([][]bool, cfg.Rows),
			Feed1:         make([]int, cfg.Rows),
			Pointing1:     make([]Direction, cfg.Rows),
			DishPointing1: make([]Direction, cfg.Rows),
			Stokes:        append([]Stokes(nil), cfg.Stokes...),
		}
		for ch:=0; ch<cfg.Channels; ch++ {
			c.Freq[ch]=cfg.FreqStart+float64(ch)*cfg.FreqInc
		}
		for i:=0; i<cfg.Rows; i++ {
			c.UVW[i]=[3]float64{
				cfg.MaxBaseline*(unitRand(&rng)*2-1),
				cfg.MaxBaseline*(unitRand(&rng)*2-1),
				0,
			}
			c.Pointing1[i]=cfg.Pointing
			c.DishPointing1[i]=cfg.Pointing
			c.Vis[i]=make([]complex128, cfg.Channels*nPol)
			c.Flag[i]=make([]bool, cfg.Channels*nPol)
			for ch:=0; ch<cfg.Channels; ch++ {
				uWave:=c.Freq[ch]*c.UVW[i][0]/speedOfLight
				vWave:=c.Freq[ch]*c.UVW[i][1]/speedOfLight
				var v complex128
				for _, src:=range cfg.Sources {
					phase:=-2*math.Pi*(uWave*src.L+vWave*src.M)
					v+=complex(src.Flux*math.Cos(phase), src.Flux*math.Sin(phase))
				}
				for p:=0; p<nPol; p++ {
					c.Vis[i][ch*nPol+p]=v
					if cfg.FlagFraction>0 && unitRand(&rng)<cfg.FlagFraction {
						c.Flag[i][ch*nPol+p]=true
					}
				}
			}
		}
		c.RotateUVW(cfg.Pointing, cfg.Pointing)
		chunks[ci]=c
	}
	fmt.Fprintf(logWriter, "Simulated %d chunks of %d rows x %d channels x %d polarisations for %d sources\n",
		cfg.Chunks, cfg.Rows, cfg.Channels, nPol, len(cfg.Sources))
	return chunks
}

func unitRand(rng *fastrand.RNG) float64 {
	return float64(rng.Uint32())/float64(1<<32)
}
