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
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mlnoga/radiolight/internal/vis"
)

// Settings selects and parameterizes a gridder. The zero value of each field
// means "not set" and falls back to the per-gridder default
type Settings struct {
	Gridder    string  `json:"gridder"`              // Box, SphFunc, WProject or WStack
	Support    int     `json:"support,omitempty"`    // kernel half-width
	Oversample int     `json:"oversample,omitempty"` // sub-cell positions per UV cell
	WMax       float64 `json:"wmax,omitempty"`       // maximum |w| in wavelengths
	NWPlanes   int     `json:"nwplanes,omitempty"`   // number of w planes, odd

	Padding               float64 `json:"padding,omitempty"`               // grid padding factor >=1
	MaxPointingSeparation string  `json:"maxPointingSeparation,omitempty"` // angle, e.g. "8.5arcsec"
	AllDataPSF            bool    `json:"allDataPSF,omitempty"`
	OversampleWeight      bool    `json:"oversampleWeight,omitempty"`

	VisWeights string  `json:"visWeights,omitempty"` // "" or "MFS"
	MFSRefFreq float64 `json:"mfsRefFreq,omitempty"` // Hz, 0 selects the default

	SnapshotImaging bool    `json:"snapshotImaging,omitempty"`
	WTolerance      float64 `json:"wTolerance,omitempty"` // wavelengths
	Clipping        float64 `json:"clipping,omitempty"`   // fraction of the image to zero at the edge

	Log io.Writer `json:"-"`
}

func (s *Settings) LogWriter() io.Writer {
	if s.Log==nil { return os.Stdout }
	return s.Log
}

// GridderCreator builds a gridder from settings. Registered per gridder name
type GridderCreator func(s *Settings) (Gridder, error)

var gridderCreators=map[string]GridderCreator{}

// Registers a gridder creator under the given name. Panics on duplicate
// registration, which indicates a programming error
func RegisterGridder(name string, creator GridderCreator) {
	if _, ok:=gridderCreators[name]; ok {
		panic(fmt.Sprintf("gridder %s is already registered", name))
	}
	gridderCreators[name]=creator
}

// Names of all registered gridders, sorted
func GridderNames() []string {
	names:=make([]string, 0, len(gridderCreators))
	for name:=range gridderCreators {
		names=append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builds a fully configured gridder from settings: creates the named
// gridder, applies the generic tuning options, attaches visibility weights
// and finally wraps the snapshot imaging adapter if requested
func Make(s *Settings) (Gridder, error) {
	log:=s.LogWriter()
	name:=s.Gridder
	if name=="" { name="SphFunc" }
	creator, ok:=gridderCreators[name]
	if !ok {
		return nil, fmt.Errorf("unknown gridder %s, available: %s", name, strings.Join(GridderNames(), ", "))
	}
	gridder, err:=creator(s)
	if err!=nil { return nil, err }

	tvg, isTable:=gridder.(*TableVisGridder)

	if s.Padding!=0 {
		if !isTable {
			return nil, fmt.Errorf("gridder %s is incompatible with the padding option", name)
		}
		if err:=tvg.SetPaddingFactor(s.Padding); err!=nil { return nil, err }
		fmt.Fprintf(log, "Gridder padding of %g is used\n", s.Padding)
	}

	if s.MaxPointingSeparation!="" {
		if !isTable {
			return nil, fmt.Errorf("gridder %s is incompatible with the pointing separation option", name)
		}
		rad, err:=vis.ParseAngle(s.MaxPointingSeparation)
		if err!=nil { return nil, err }
		tvg.SetMaxPointingSeparation(rad)
		fmt.Fprintf(log, "Rows with pointing more than %g rad from the image centre will be rejected\n", rad)
	}

	if s.AllDataPSF {
		if !isTable {
			return nil, fmt.Errorf("gridder %s is incompatible with the all-data PSF option", name)
		}
		tvg.SetUseAllDataForPSF(true)
		fmt.Fprintf(log, "The PSF will be estimated using all available data\n")
	}

	if s.OversampleWeight {
		if !isTable {
			return nil, fmt.Errorf("gridder %s is incompatible with the oversampled weight option", name)
		}
		tvg.SetTrackWeightPerPlane(true)
		fmt.Fprintf(log, "Weights will be tracked per oversampling plane\n")
	}

	switch s.VisWeights {
	case "":
	case "MFS":
		refFreq:=s.MFSRefFreq
		if refFreq==0 { refFreq=defaultMFSRefFreq }
		gridder.SetVisWeights(NewMFSWeights(refFreq))
		fmt.Fprintf(log, "Multi-frequency synthesis weights selected with reference frequency %g Hz\n", refFreq)
	default:
		return nil, fmt.Errorf("unknown visibility weighting scheme %s", s.VisWeights)
	}

	if s.SnapshotImaging {
		if s.WTolerance<=0 {
			return nil, fmt.Errorf("snapshot imaging requires a positive w tolerance, got %g", s.WTolerance)
		}
		if s.Clipping<0 || s.Clipping>=1 {
			return nil, fmt.Errorf("snapshot clipping %g must be in [0,1)", s.Clipping)
		}
		gridder=NewSnapshotGridder(gridder, s.WTolerance, s.Clipping, log)
		fmt.Fprintf(log, "Snapshot imaging selected with w tolerance %g wavelengths and clipping %g\n",
			s.WTolerance, s.Clipping)
	}

	return gridder, nil
}
