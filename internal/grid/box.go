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

// Nearest-neighbour pillbox kernel. Each visibility lands on exactly one
// grid cell with unit weight; the single tap sits at the centre of a 3x3
// stamp. Mostly useful for testing and quick looks
type boxProvider struct {
	funcs [][]complex128
}

func init() {
	RegisterGridder("Box", func(s *Settings) (Gridder, error) {
		return NewTableVisGridder(newBoxProvider(), s.LogWriter())
	})
}

func newBoxProvider() *boxProvider {
	f:=make([]complex128, 3*3)
	f[1*3+1]=complex(1, 0)
	return &boxProvider{funcs: [][]complex128{f}}
}

func (p *boxProvider) Name() string       { return "Box" }
func (p *boxProvider) Support() int       { return 1 }
func (p *boxProvider) Oversample() int    { return 1 }
func (p *boxProvider) NConvIndices() int  { return 1 }
func (p *boxProvider) NGrids() int        { return 1 }

func (p *boxProvider) Init(chunk *vis.Chunk, uvCellSize [2]float64) error { return nil }

func (p *boxProvider) CIndex(row, pol, ch int) int { return 0 }
func (p *boxProvider) GIndex(row, pol, ch int) int { return 0 }
func (p *boxProvider) Funcs() [][]complex128       { return p.funcs }

// A pillbox in UV corresponds to a sinc taper in the image plane; like the
// original nearest-neighbour gridder we leave it uncorrected
func (p *boxProvider) Correct(data []float64, nx, ny int) {}
