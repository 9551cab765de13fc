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
	"errors"
	"fmt"
)

// Polarisation product or Stokes parameter descriptor
type Stokes int

const (
	StokesI Stokes = iota
	StokesQ
	StokesU
	StokesV
	StokesXX
	StokesXY
	StokesYX
	StokesYY
	StokesRR
	StokesRL
	StokesLR
	StokesLL
)

var stokesNames=map[Stokes]string{
	StokesI: "I", StokesQ: "Q", StokesU: "U", StokesV: "V",
	StokesXX: "XX", StokesXY: "XY", StokesYX: "YX", StokesYY: "YY",
	StokesRR: "RR", StokesRL: "RL", StokesLR: "LR", StokesLL: "LL",
}

func (s Stokes) String() string { return stokesNames[s] }

// Expresses one polarisation product as a linear combination of the Stokes
// parameters (I,Q,U,V). Measurement convention: XX=I+Q, YY=I-Q, XY=U+iV,
// YX=U-iV; RR=I+V, LL=I-V, RL=Q+iU, LR=Q-iU
func stokesDecomposition(s Stokes) ([4]complex128, bool) {
	switch s {
	case StokesI:  return [4]complex128{1, 0, 0, 0}, true
	case StokesQ:  return [4]complex128{0, 1, 0, 0}, true
	case StokesU:  return [4]complex128{0, 0, 1, 0}, true
	case StokesV:  return [4]complex128{0, 0, 0, 1}, true
	case StokesXX: return [4]complex128{1, 1, 0, 0}, true
	case StokesYY: return [4]complex128{1, -1, 0, 0}, true
	case StokesXY: return [4]complex128{0, 0, 1, complex(0, 1)}, true
	case StokesYX: return [4]complex128{0, 0, 1, complex(0, -1)}, true
	case StokesRR: return [4]complex128{1, 0, 0, 1}, true
	case StokesLL: return [4]complex128{1, 0, 0, -1}, true
	case StokesRL: return [4]complex128{0, 1, complex(0, 1), 0}, true
	case StokesLR: return [4]complex128{0, 1, complex(0, -1), 0}, true
	}
	return [4]complex128{}, false
}

// Converts visibility vectors between two polarisation frames via the Stokes
// domain: out = S_out * pinv(S_in) * in, where S maps Stokes (I,Q,U,V) to
// measured products. The matrix is built once at construction; Convert is a
// plain matrix-vector product suitable for the per-sample loop
type PolConverter struct {
	matrix  [][]complex128
	nIn     int
	nOut    int
	identity bool
}

// Creates a converter from frame in to frame out. With check set, an input
// frame which does not fully determine the output products is an error;
// without it missing products are treated as zero (used for writing model
// visibilities back into a sparser instrumental frame)
func NewPolConverter(in, out []Stokes, check bool) (*PolConverter, error) {
	if len(in)==0 || len(out)==0 { return nil, errors.New("polarisation frames must not be empty") }
	if equalStokes(in, out) {
		return &PolConverter{nIn: len(in), nOut: len(out), identity: true}, nil
	}

	// build S_in (nIn x 4) and its coverage of the Stokes domain
	sIn:=make([][4]complex128, len(in))
	covered:=[4]bool{}
	for i, s:=range in {
		row, ok:=stokesDecomposition(s)
		if !ok { return nil, errors.New(fmt.Sprintf("unsupported polarisation product %v", s)) }
		sIn[i]=row
		for k:=0; k<4; k++ {
			if row[k]!=0 { covered[k]=true }
		}
	}

	// recover Stokes from the input products. For the supported frames
	// (full 4-product, parallel-hand pairs, Stokes subsets) the system is
	// block diagonal in conjugate pairs and solved directly
	stokesFromIn, err:=invertDecomposition(sIn, covered, check)
	if err!=nil { return nil, err }

	m:=make([][]complex128, len(out))
	for o, s:=range out {
		row, ok:=stokesDecomposition(s)
		if !ok { return nil, errors.New(fmt.Sprintf("unsupported polarisation product %v", s)) }
		if check {
			for k:=0; k<4; k++ {
				if row[k]!=0 && !covered[k] {
					return nil, errors.New(fmt.Sprintf("input frame does not determine %v", s))
				}
			}
		}
		m[o]=make([]complex128, len(in))
		for i:=0; i<len(in); i++ {
			var sum complex128
			for k:=0; k<4; k++ {
				sum+=row[k]*stokesFromIn[k][i]
			}
			m[o][i]=sum
		}
	}
	return &PolConverter{matrix: m, nIn: len(in), nOut: len(out)}, nil
}

// Solves S_in * stokes = products in the least-squares sense for the
// conjugate-symmetric decompositions used here. Each Stokes parameter k is
// recovered as sum_i w_ki * product_i with w the scaled conjugate transpose
func invertDecomposition(sIn [][4]complex128, covered [4]bool, check bool) ([4][]complex128, error) {
	var out [4][]complex128
	for k:=0; k<4; k++ {
		out[k]=make([]complex128, len(sIn))
		if !covered[k] { continue }
		// normalisation: sum of |coefficient|^2 over rows referencing k
		var norm complex128
		for i:=0; i<len(sIn); i++ {
			c:=sIn[i][k]
			norm+=c*conj(c)
		}
		if norm==0 {
			if check { return out, errors.New("degenerate polarisation decomposition") }
			continue
		}
		for i:=0; i<len(sIn); i++ {
			out[k][i]=conj(sIn[i][k])/norm
		}
	}
	return out, nil
}

func conj(c complex128) complex128 { return complex(real(c), -imag(c)) }

func equalStokes(a, b []Stokes) bool {
	if len(a)!=len(b) { return false }
	for i:=range a {
		if a[i]!=b[i] { return false }
	}
	return true
}

// Applies the conversion to one visibility vector. out must have NOut
// elements; in must have NIn elements
func (p *PolConverter) Convert(out, in []complex128) {
	if p.identity {
		copy(out, in)
		return
	}
	for o:=0; o<p.nOut; o++ {
		var sum complex128
		row:=p.matrix[o]
		for i:=0; i<p.nIn; i++ {
			sum+=row[i]*in[i]
		}
		out[o]=sum
	}
}

func (p *PolConverter) NIn() int  { return p.nIn }
func (p *PolConverter) NOut() int { return p.nOut }
