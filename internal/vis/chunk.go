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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// One chunk of visibility data as delivered by a dataset iterator: per-row
// UVW and pointing metadata, a per-channel frequency list, and cubes of
// visibilities and flags. The visibility cube is writable; degridding
// overwrites it with model predictions
type Chunk struct {
	UVW           [][3]float64  // metres, per row
	RotatedUVW    [][3]float64  // metres, rotated to the common tangent point
	Delay         []float64     // metres, phase-rotation delay per row
	Freq          []float64     // Hz, per channel
	Vis           [][]complex128 // [row][chan*nPol+pol]
	Flag          [][]bool      // [row][chan*nPol+pol]
	Feed1         []int         // feed id per row
	Pointing1     []Direction   // phase-centre direction per row
	DishPointing1 []Direction   // dish pointing per row
	Stokes        []Stokes      // instrumental polarisation frame
}

func (c *Chunk) NRow() int  { return len(c.UVW) }
func (c *Chunk) NChan() int { return len(c.Freq) }
func (c *Chunk) NPol() int  { return len(c.Stokes) }

// Returns the visibility vector (one value per polarisation product) for a
// given row and channel as a subslice of the writable cube
func (c *Chunk) VisVector(row, chan_ int) []complex128 {
	nPol:=c.NPol()
	return c.Vis[row][chan_*nPol : (chan_+1)*nPol]
}

// Reports whether all polarisation products of a row/channel are unflagged
func (c *Chunk) AllPolGood(row, chan_ int) bool {
	nPol:=c.NPol()
	flags:=c.Flag[row][chan_*nPol : (chan_+1)*nPol]
	for _, f:=range flags {
		if f { return false }
	}
	return true
}

// Fills RotatedUVW and Delay for the given tangent point and image centre.
// With the phase centre on the tangent point the rotation is the identity and
// the delay vanishes; otherwise the w term picks up the projection of the
// baseline onto the offset direction. This mirrors what the dataset iterator
// precomputes in production; the gridder itself never rotates
func (c *Chunk) RotateUVW(tangent, imageCentre Direction) {
	c.RotatedUVW=make([][3]float64, len(c.UVW))
	c.Delay=make([]float64, len(c.UVW))
	dRA :=imageCentre.RA-tangent.RA
	dDec:=imageCentre.Dec-tangent.Dec
	for i, uvw:=range c.UVW {
		c.RotatedUVW[i]=uvw
		c.Delay[i]=uvw[0]*dRA*math.Cos(tangent.Dec) + uvw[1]*dDec
	}
}

// JSON wire format for a chunk; complex cubes are split into real and
// imaginary parts as JSON has no complex type
type chunkJSON struct {
	UVW           [][3]float64 `json:"uvw"`
	RotatedUVW    [][3]float64 `json:"rotatedUVW,omitempty"`
	Delay         []float64    `json:"delay,omitempty"`
	Freq          []float64    `json:"freq"`
	VisRe         [][]float64  `json:"visRe"`
	VisIm         [][]float64  `json:"visIm"`
	Flag          [][]bool     `json:"flag"`
	Feed1         []int        `json:"feed1"`
	Pointing1     []Direction  `json:"pointing1"`
	DishPointing1 []Direction  `json:"dishPointing1"`
	Stokes        []Stokes     `json:"stokes"`
}

func (c *Chunk) MarshalJSON() ([]byte, error) {
	cj:=chunkJSON{
		UVW: c.UVW, RotatedUVW: c.RotatedUVW, Delay: c.Delay, Freq: c.Freq,
		Flag: c.Flag, Feed1: c.Feed1, Pointing1: c.Pointing1,
		DishPointing1: c.DishPointing1, Stokes: c.Stokes,
	}
	cj.VisRe=make([][]float64, len(c.Vis))
	cj.VisIm=make([][]float64, len(c.Vis))
	for i, row:=range c.Vis {
		re:=make([]float64, len(row))
		im:=make([]float64, len(row))
		for j, v:=range row {
			re[j], im[j] = real(v), imag(v)
		}
		cj.VisRe[i], cj.VisIm[i] = re, im
	}
	return json.Marshal(&cj)
}

func (c *Chunk) UnmarshalJSON(b []byte) error {
	var cj chunkJSON
	if err:=json.Unmarshal(b, &cj); err!=nil { return err }
	if len(cj.VisRe)!=len(cj.VisIm) {
		return errors.New(fmt.Sprintf("visibility cube mismatch: %d real vs %d imaginary rows", len(cj.VisRe), len(cj.VisIm)))
	}
	c.UVW, c.RotatedUVW, c.Delay, c.Freq = cj.UVW, cj.RotatedUVW, cj.Delay, cj.Freq
	c.Flag, c.Feed1, c.Pointing1, c.DishPointing1, c.Stokes = cj.Flag, cj.Feed1, cj.Pointing1, cj.DishPointing1, cj.Stokes
	c.Vis=make([][]complex128, len(cj.VisRe))
	for i:=range cj.VisRe {
		if len(cj.VisRe[i])!=len(cj.VisIm[i]) {
			return errors.New(fmt.Sprintf("visibility cube mismatch in row %d", i))
		}
		row:=make([]complex128, len(cj.VisRe[i]))
		for j:=range row {
			row[j]=complex(cj.VisRe[i][j], cj.VisIm[i][j])
		}
		c.Vis[i]=row
	}
	return nil
}

// Reads a sequence of chunks from a JSON file written by WriteChunks or the
// simulator
func LoadChunks(fileName string, logWriter io.Writer) ([]*Chunk, error) {
	f, err:=os.Open(fileName)
	if err!=nil { return nil, err }
	defer f.Close()

	var chunks []*Chunk
	if err:=json.NewDecoder(f).Decode(&chunks); err!=nil { return nil, err }
	nRow, nVis:=0, 0
	for _, c:=range chunks {
		nRow+=c.NRow()
		nVis+=c.NRow()*c.NChan()*c.NPol()
	}
	fmt.Fprintf(logWriter, "Loaded %d chunks with %d rows and %d visibilities from %s\n", len(chunks), nRow, nVis, fileName)
	return chunks, nil
}

// Writes a sequence of chunks to a JSON file
func WriteChunks(fileName string, chunks []*Chunk) error {
	f, err:=os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err!=nil { return err }
	defer f.Close()
	enc:=json.NewEncoder(f)
	return enc.Encode(chunks)
}
