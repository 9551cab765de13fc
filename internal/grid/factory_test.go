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
	"io"
	"testing"
)

func init() {
	// a pre-wrapped gridder that is not a table gridder, to exercise the
	// option compatibility checks
	RegisterGridder("SnapshotBox", func(s *Settings) (Gridder, error) {
		inner, err:=NewTableVisGridder(newBoxProvider(), s.LogWriter())
		if err!=nil { return nil, err }
		return NewSnapshotGridder(inner, 1, 0, s.LogWriter()), nil
	})
}

func TestGridderRegistry(t *testing.T) {
	names:=GridderNames()
	want:=[]string{"Box", "SnapshotBox", "SphFunc", "WProject", "WStack"}
	if len(names)!=len(want) {
		t.Fatalf("registry has %d gridders %v, want %d", len(names), names, len(want))
	}
	for i:=range want {
		if names[i]!=want[i] {
			t.Errorf("gridder %d is %s, want %s", i, names[i], want[i])
		}
	}
}

func TestMakeUnknownGridder(t *testing.T) {
	_, err:=Make(&Settings{Gridder: "Nearest", Log: io.Discard})
	if err==nil {
		t.Errorf("making an unknown gridder must fail")
	}
}

func TestMakeWithOptions(t *testing.T) {
	g, err:=Make(&Settings{
		Gridder: "Box", Padding: 1.5, MaxPointingSeparation: "600arcsec",
		AllDataPSF: true, OversampleWeight: true, VisWeights: "MFS",
		Log: io.Discard,
	})
	if err!=nil { t.Fatalf("making gridder: %s", err.Error()) }
	tvg, ok:=g.(*TableVisGridder)
	if !ok { t.Fatalf("expected a table gridder") }
	if tvg.paddingFactor!=1.5 {
		t.Errorf("padding factor %g, want 1.5", tvg.paddingFactor)
	}
	if tvg.maxPointingSeparation<=0 {
		t.Errorf("max pointing separation not applied")
	}
	if !tvg.useAllDataForPSF || !tvg.trackWeightPerPlane {
		t.Errorf("PSF and weight tracking options not applied")
	}
	if tvg.visWeight==nil {
		t.Errorf("MFS weights not attached")
	}
}

func TestMakeSnapshotRequiresTolerance(t *testing.T) {
	if _, err:=Make(&Settings{Gridder: "Box", SnapshotImaging: true, Log: io.Discard}); err==nil {
		t.Errorf("snapshot imaging without w tolerance must fail")
	}
	g, err:=Make(&Settings{Gridder: "Box", SnapshotImaging: true, WTolerance: 100, Log: io.Discard})
	if err!=nil { t.Fatalf("making snapshot gridder: %s", err.Error()) }
	if _, ok:=g.(*SnapshotGridder); !ok {
		t.Errorf("expected a snapshot adapter")
	}
}

func TestMakeBadOptions(t *testing.T) {
	if _, err:=Make(&Settings{Gridder: "Box", Padding: 0.5, Log: io.Discard}); err==nil {
		t.Errorf("padding below 1 must fail")
	}
	if _, err:=Make(&Settings{Gridder: "Box", MaxPointingSeparation: "10parsec", Log: io.Discard}); err==nil {
		t.Errorf("unparseable angle must fail")
	}
	if _, err:=Make(&Settings{Gridder: "Box", VisWeights: "natural", Log: io.Discard}); err==nil {
		t.Errorf("unknown weighting scheme must fail")
	}
	if _, err:=Make(&Settings{Gridder: "SphFunc", Support: -1, Log: io.Discard}); err==nil {
		t.Errorf("negative support must fail")
	}
	if _, err:=Make(&Settings{Gridder: "WProject", NWPlanes: 4, Log: io.Discard}); err==nil {
		t.Errorf("even number of w planes must fail")
	}
}

func TestMakeIncompatibleOptions(t *testing.T) {
	for _, s:=range []*Settings{
		{Gridder: "SnapshotBox", Padding: 1.5},
		{Gridder: "SnapshotBox", MaxPointingSeparation: "600arcsec"},
		{Gridder: "SnapshotBox", AllDataPSF: true},
		{Gridder: "SnapshotBox", OversampleWeight: true},
	} {
		s.Log=io.Discard
		if _, err:=Make(s); err==nil {
			t.Errorf("settings %+v must be rejected for a non-table gridder", *s)
		}
	}
}

func TestMFSWeightOrders(t *testing.T) {
	w:=NewMFSWeights(0) // selects the default reference frequency
	if got:=w.Weight(0, 1.5e9, 0); got!=1 {
		t.Errorf("order 0 weight is %g, want 1", got)
	}
	w.SetOrder(1)
	want:=(1.5e9-defaultMFSRefFreq)/defaultMFSRefFreq
	if got:=w.Weight(0, 1.5e9, 0); got!=want {
		t.Errorf("order 1 weight is %g, want %g", got, want)
	}
	w.SetOrder(2)
	if got:=w.Weight(0, 1.5e9, 0); got!=want*want {
		t.Errorf("order 2 weight is %g, want %g", got, want*want)
	}
}
