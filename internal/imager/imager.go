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


package imager

import (
	"fmt"
	"io"

	"github.com/mlnoga/radiolight/internal/fits"
	"github.com/mlnoga/radiolight/internal/grid"
	"github.com/mlnoga/radiolight/internal/vis"
)

// One imaging request: which gridder with which options, the image geometry,
// and whether to form the PSF instead of the dirty image
type Request struct {
	Settings grid.Settings `json:"settings"`
	Axes     *vis.Axes     `json:"axes"`
	Nx       int           `json:"nx"`
	Ny       int           `json:"ny"`
	DoPSF    bool          `json:"doPSF"`
	Context  string        `json:"context,omitempty"`
}

// Grids all chunks and returns the dirty image or PSF plus the sum of
// weights cube
func MakeImage(req *Request, chunks []*vis.Chunk, logWriter io.Writer) (img, weights *fits.Image, err error) {
	req.Settings.Log=logWriter
	g, err:=grid.Make(&req.Settings)
	if err!=nil { return nil, nil, err }
	if req.Context!="" {
		g.CustomiseForContext(req.Context)
	}

	if err:=g.InitialiseGrid(req.Axes, req.Nx, req.Ny, req.DoPSF); err!=nil {
		return nil, nil, err
	}
	for i, c:=range chunks {
		if err:=g.Grid(c); err!=nil {
			return nil, nil, fmt.Errorf("gridding chunk %d: %s", i, err.Error())
		}
	}
	weights, err=g.FinaliseWeights()
	if err!=nil { return nil, nil, err }
	img, err=g.FinaliseGrid()
	if err!=nil { return nil, nil, err }
	g.ReportStats()
	return img, weights, nil
}

// Predicts model visibilities for all chunks, accumulating into their
// writable visibility cubes
func DegridModel(req *Request, model *fits.Image, chunks []*vis.Chunk, logWriter io.Writer) error {
	req.Settings.Log=logWriter
	g, err:=grid.Make(&req.Settings)
	if err!=nil { return err }
	if req.Context!="" {
		g.CustomiseForContext(req.Context)
	}

	if err:=g.InitialiseDegrid(req.Axes, model); err!=nil { return err }
	for i, c:=range chunks {
		if err:=g.Degrid(c); err!=nil {
			return fmt.Errorf("degridding chunk %d: %s", i, err.Error())
		}
	}
	g.FinaliseDegrid()
	g.ReportStats()
	return nil
}

// Rotates all chunks to the tangent point of the axes, which production
// dataset iterators precompute. Simulated or externally loaded chunks may
// lack the rotated coordinates
func EnsureRotated(req *Request, chunks []*vis.Chunk) {
	axes:=req.Axes
	imageCentre:=axes.Direction.ToWorld(float64(req.Nx)/2, float64(req.Ny)/2)
	for _, c:=range chunks {
		if len(c.RotatedUVW)!=c.NRow() || len(c.Delay)!=c.NRow() {
			c.RotateUVW(axes.TangentPoint(), imageCentre)
		}
	}
}
