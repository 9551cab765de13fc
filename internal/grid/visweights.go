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
	"math"
)

// VisWeights scales visibilities during gridding and degridding, e.g. for
// multi-frequency synthesis Taylor term imaging
type VisWeights interface {
	// Weight for one sample; applied multiplicatively on top of the
	// convolution function
	Weight(row int, freq float64, pol int) float64
	// Selects the Taylor term; called by CustomiseForContext
	SetOrder(order int)
}

const defaultMFSRefFreq = 1.405e9 // Hz

// Multi-frequency synthesis weights ((f-f0)/f0)^order, so successive Taylor
// term images pick up successive moments of the spectral behaviour
type mfsWeights struct {
	refFreq float64
	order   int
}

func NewMFSWeights(refFreq float64) VisWeights {
	if refFreq==0 { refFreq=defaultMFSRefFreq }
	return &mfsWeights{refFreq: refFreq}
}

func (w *mfsWeights) SetOrder(order int) { w.order=order }

func (w *mfsWeights) Weight(row int, freq float64, pol int) float64 {
	if w.order==0 { return 1 }
	return math.Pow((freq-w.refFreq)/w.refFreq, float64(w.order))
}
