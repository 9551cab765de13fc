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
	"math"
	"strconv"
	"strings"
)

// A direction on the celestial sphere, in radians
type Direction struct {
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`
}

// Angular separation between two directions in radians, via the haversine formula
// which stays accurate for small separations
func (d Direction) Separation(o Direction) float64 {
	sinDDec:=math.Sin(0.5*(o.Dec-d.Dec))
	sinDRA :=math.Sin(0.5*(o.RA -d.RA ))
	h:=sinDDec*sinDDec + math.Cos(d.Dec)*math.Cos(o.Dec)*sinDRA*sinDRA
	if h>1 { h=1 }
	return 2*math.Asin(math.Sqrt(h))
}

func (d Direction) String() string {
	return fmt.Sprintf("(ra=%.6f rad, dec=%.6f rad)", d.RA, d.Dec)
}

// Parses an angle string with unit suffix, e.g. "1deg", "30arcsec", "0.01rad".
// A bare number is treated as radians
func ParseAngle(s string) (float64, error) {
	s=strings.TrimSpace(s)
	for _, u:=range []struct{ suffix string; factor float64 }{
		{"arcsec", math.Pi/180/3600},
		{"arcmin", math.Pi/180/60},
		{"deg",    math.Pi/180},
		{"rad",    1},
	} {
		if strings.HasSuffix(s, u.suffix) {
			v, err:=strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), 64)
			if err!=nil { return 0, err }
			return v*u.factor, nil
		}
	}
	v, err:=strconv.ParseFloat(s, 64)
	if err!=nil { return 0, errors.New(fmt.Sprintf("unable to parse angle %q", s)) }
	return v, nil
}
