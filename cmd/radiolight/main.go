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

package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"
	rl "github.com/mlnoga/radiolight/internal"
	"github.com/mlnoga/radiolight/internal/fits"
	"github.com/mlnoga/radiolight/internal/grid"
	"github.com/mlnoga/radiolight/internal/imager"
	"github.com/mlnoga/radiolight/internal/rest"
	"github.com/mlnoga/radiolight/internal/vis"
	"github.com/pbnjay/memory"
)

const version = "0.1.0"

var totalMiBs=memory.TotalMemory()/1024/1024

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out     = flag.String("out", "out.fits", "save output to `file`")
var jpg     = flag.String("jpg", "%auto", "save 8bit false-color preview of output as JPEG to `file`. `%auto` replaces suffix of output file with .jpg")
var log     = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")
var weights = flag.String("weights", "", "save sum of weights cube to `file`")
var model   = flag.String("model", "", "degrid model image cube from `file`")

var size    = flag.Int("size", 256, "output image size in pixels per axis")
var cell    = flag.Float64("cell", 10, "image cell size in arcseconds per pixel")
var ra      = flag.Float64("ra", 187.5, "image centre right ascension in degrees")
var dec     = flag.Float64("dec", -45.0, "image centre declination in degrees")
var stokes  = flag.String("stokes", "I", "output polarisation planes, a combination of I, Q, U and V")
var nchan   = flag.Int("nchan", 1, "number of spectral planes in the output cube, 0=continuum")
var chan0   = flag.Float64("chan0", 1.4e9, "frequency of the first spectral plane in Hz")
var chanw   = flag.Float64("chanw", 1e6, "width of one spectral plane in Hz")
var context = flag.String("context", "", "imaging context, e.g. image.i.taylor.1 to select an MFS Taylor term")

var gridder    = flag.String("gridder", "SphFunc", "gridding kernel, one of Box, SphFunc, WProject, WStack")
var support    = flag.Int("support", 0, "convolution function half-width in cells, 0=gridder default")
var oversample = flag.Int("oversample", 0, "oversampling factor for fractional cell positions, 0=gridder default")
var wmax       = flag.Float64("wmax", 0, "maximum |w| in wavelengths for WProject/WStack, 0=default")
var nwplanes   = flag.Int("nwplanes", 0, "number of w planes for WProject/WStack, odd, 0=default")

var padding    = flag.Float64("padding", 0, "grid padding factor >=1 to reduce aliasing, 0=no padding")
var maxsep     = flag.String("maxsep", "", "reject rows pointing further than this `angle` from the image centre, e.g. 600arcsec")
var alldatapsf = flag.Bool("alldatapsf", false, "estimate the PSF from all feeds and pointings, not a single representative one")
var osweight   = flag.Bool("osweight", false, "track the sum of weights per oversampling plane")
var visweights = flag.String("visweights", "", "visibility weighting scheme, blank or MFS")
var reffreq    = flag.Float64("reffreq", 0, "MFS reference frequency in Hz, 0=default")
var snapshot   = flag.Bool("snapshot", false, "enable snapshot imaging with best-fit w plane subtraction")
var wtol       = flag.Float64("wtol", 0, "residual w tolerance in wavelengths for snapshot imaging")
var clipping   = flag.Float64("clipping", 0, "fraction of the image edges to clip after snapshot imaging")

var simRows   = flag.Int("simRows", 128, "simulated rows per chunk")
var simChunks = flag.Int("simChunks", 4, "simulated number of chunks")
var simSeed   = flag.Int("simSeed", 1, "simulation random seed")

var memLimit = flag.Int64("memLimit", int64((totalMiBs*7)/10), "total MiB of memory the UV grids may occupy, default=0.7x physical memory")

var chroot = flag.String("chroot", "", "serve: confine the server to this `directory` via chroot (requires root)")
var setuid = flag.Int("setuid", -1, "serve: drop to this user id after chrooting, -1=keep")

func main() {
	logWriter:=os.Stdout
	start:=time.Now()
	flag.Usage=func(){
 	    fmt.Fprintf(logWriter, `Radiolight Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (simulate|grid|psf|degrid|serve|legal|version) (chunks0.json ... chunksn.json)

Commands:
  simulate Simulate an observation and write visibility chunks to -out
  grid     Grid input visibility chunks into a dirty image
  psf      Grid unit visibilities into a point spread function estimate
  degrid   Predict visibilities for the -model image and write them to -out
  serve    Start the REST API server on port 8080
  legal    Show license and attribution information
  version  Show version information

Flags:
`, os.Args[0])
	    flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logging to file in addition to stdout, if selected
	if *log=="%auto" {
		if *out!="" {
			*log=strings.TrimSuffix(*out, filepath.Ext(*out))+".log"
		} else {
			*log=""
		}
	}
	if *log!="" {
		err:=rl.LogAlsoToFile(*log)
		if err!=nil { rl.LogFatalf("Unable to open logfile '%s'\n", *log) }
	}

	// Also auto-select JPEG output target
	if *jpg=="%auto" {
		if *out!="" {
			*jpg=strings.TrimSuffix(*out, filepath.Ext(*out))+".jpg"
		} else {
			*jpg=""
		}
	}

	// Enable CPU profiling if flagged
    if *cpuprofile != "" {
        f, err := os.Create(*cpuprofile)
        if err != nil {
            rl.LogFatal("Could not create CPU profile: ", err)
        }
        defer f.Close()
        if err := pprof.StartCPUProfile(f); err != nil {
            rl.LogFatal("Could not start CPU profile: ", err)
        }
        defer pprof.StopCPUProfile()
    }

    args:=flag.Args()
    if len(args)<1 {
    	flag.Usage()
    	return
    }

	var err error
    switch args[0] {
    case "serve":
    	rest.Serve(*chroot, *setuid)

    case "simulate":
    	err=cmdSimulate(rl.LogWriter())

    case "grid":
    	err=cmdGrid(args[1:], false, rl.LogWriter())

    case "psf":
    	err=cmdGrid(args[1:], true, rl.LogWriter())

    case "degrid":
    	err=cmdDegrid(args[1:], rl.LogWriter())

    case "legal":
    	cmdLegal()

    case "version":
    	fmt.Fprintf(logWriter, "Version %s\n", version)

    case "help", "?":
    	flag.Usage()

    default:
    	fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
    	flag.Usage()
    	return
    }

	now:=time.Now()
	elapsed:=now.Sub(start)
	fmt.Fprintf(logWriter, "\nDone after %v\n", elapsed)

	// Store memory profile if flagged
    if *memprofile != "" {
        f, err := os.Create(*memprofile)
        if err != nil {
            rl.LogFatal("Could not create memory profile: ", err)
        }
        defer f.Close()
        runtime.GC() // get up-to-date statistics
        if err := pprof.Lookup("allocs").WriteTo(f,0); err != nil {
            rl.LogFatal("Could not write allocation profile: ", err)
        }
    }

    if err!=nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		os.Exit(-1)
	}
    rl.LogSync()
}

const (
	degToRad    = math.Pi/180
	arcsecToRad = math.Pi/(180*3600)
)

// Builds the image axes from command line flags
func axesFromFlags() (*vis.Axes, error) {
	st, err:=parseStokes(*stokes)
	if err!=nil { return nil, err }
	axes:=&vis.Axes{
		Direction: &vis.DirectionAxis{
			RefRA:   *ra  * degToRad,
			RefDec:  *dec * degToRad,
			RefPixX: float64(*size)/2,
			RefPixY: float64(*size)/2,
			IncRA:   -*cell * arcsecToRad, // RA increases leftwards
			IncDec:   *cell * arcsecToRad,
		},
		Stokes: st,
	}
	if *nchan>0 {
		axes.Frequency=&vis.FrequencyAxis{Start: *chan0, Increment: *chanw, N: *nchan}
	}
	return axes, nil
}

func parseStokes(s string) ([]vis.Stokes, error) {
	var res []vis.Stokes
	for _, c:=range strings.ToUpper(s) {
		switch c {
		case 'I': res=append(res, vis.StokesI)
		case 'Q': res=append(res, vis.StokesQ)
		case 'U': res=append(res, vis.StokesU)
		case 'V': res=append(res, vis.StokesV)
		default:
			return nil, fmt.Errorf("unknown Stokes parameter '%c'", c)
		}
	}
	return res, nil
}

func settingsFromFlags(logWriter io.Writer) grid.Settings {
	return grid.Settings{
		Gridder: *gridder, Support: *support, Oversample: *oversample,
		WMax: *wmax, NWPlanes: *nwplanes,
		Padding: *padding, MaxPointingSeparation: *maxsep,
		AllDataPSF: *alldatapsf, OversampleWeight: *osweight,
		VisWeights: *visweights, MFSRefFreq: *reffreq,
		SnapshotImaging: *snapshot, WTolerance: *wtol, Clipping: *clipping,
		Log: logWriter,
	}
}

// Refuses image geometries whose UV grids would exceed the memory limit
func checkGridMemory(logWriter io.Writer) error {
	nGrids:=1
	if *gridder=="WStack" {
		nGrids=*nwplanes
		if nGrids==0 { nGrids=33 }
	}
	pad:=*padding
	if pad<1 { pad=1 }
	px:=float64(*size)*pad
	planes:=len(*stokes) * max(1, *nchan)
	gridMiBs:=int64(px*px*float64(planes*nGrids)*16/(1024*1024))
	if gridMiBs> *memLimit {
		return fmt.Errorf("UV grids would need %d MiB, exceeding the limit of %d MiB; reduce -size, -padding or -nwplanes", gridMiBs, *memLimit)
	}
	fmt.Fprintf(logWriter, "UV grids will occupy %d MiB of %d MiB available\n", gridMiBs, *memLimit)
	return nil
}

func max(a, b int) int {
	if a>b { return a }
	return b
}

func cmdSimulate(logWriter io.Writer) error {
	cfg:=vis.DefaultSimConfig()
	cfg.Rows  = *simRows
	cfg.Chunks= *simChunks
	cfg.Seed  = uint32(*simSeed)
	cfg.FreqStart= *chan0
	cfg.FreqInc  = *chanw
	if *nchan>0 { cfg.Channels= *nchan }
	cfg.Pointing=vis.Direction{RA: *ra * degToRad, Dec: *dec * degToRad}

	chunks:=vis.Simulate(cfg, logWriter)
	fileName:=*out
	if filepath.Ext(fileName)==".fits" {
		fileName=strings.TrimSuffix(fileName, ".fits")+".json"
	}
	if err:=vis.WriteChunks(fileName, chunks); err!=nil { return err }
	fmt.Fprintf(logWriter, "Wrote %d chunks to %s\n", len(chunks), fileName)
	return nil
}

func loadAllChunks(fileNames []string, logWriter io.Writer) ([]*vis.Chunk, error) {
	if len(fileNames)<1 {
		return nil, fmt.Errorf("need at least one visibility chunk file")
	}
	var chunks []*vis.Chunk
	for _, fileName:=range fileNames {
		cs, err:=vis.LoadChunks(fileName, logWriter)
		if err!=nil { return nil, err }
		chunks=append(chunks, cs...)
	}
	return chunks, nil
}

func cmdGrid(args []string, dopsf bool, logWriter io.Writer) error {
	if err:=checkGridMemory(logWriter); err!=nil { return err }
	axes, err:=axesFromFlags()
	if err!=nil { return err }
	chunks, err:=loadAllChunks(args, logWriter)
	if err!=nil { return err }

	req:=&imager.Request{
		Settings: settingsFromFlags(logWriter),
		Axes: axes, Nx: *size, Ny: *size, DoPSF: dopsf, Context: *context,
	}
	imager.EnsureRotated(req, chunks)

	img, wts, err:=imager.MakeImage(req, chunks, logWriter)
	if err!=nil { return err }

	if *out!="" {
		if err:=img.WriteFile(*out); err!=nil { return err }
		fmt.Fprintf(logWriter, "Wrote image %s to %s\n", img.DimensionsToString(), *out)
	}
	if *weights!="" {
		if err:=wts.WriteFile(*weights); err!=nil { return err }
		fmt.Fprintf(logWriter, "Wrote weights %s to %s\n", wts.DimensionsToString(), *weights)
	}
	if *jpg!="" {
		if err:=img.WritePreviewToFile(*jpg, 0.5, 90); err!=nil { return err }
		fmt.Fprintf(logWriter, "Wrote preview to %s\n", *jpg)
	}
	return nil
}

func cmdDegrid(args []string, logWriter io.Writer) error {
	if *model=="" {
		return fmt.Errorf("degridding requires a -model image cube")
	}
	axes, err:=axesFromFlags()
	if err!=nil { return err }
	chunks, err:=loadAllChunks(args, logWriter)
	if err!=nil { return err }

	m, err:=fits.NewImageFromFile(*model, 0, logWriter)
	if err!=nil { return err }
	fmt.Fprintf(logWriter, "Loaded model %s from %s\n", m.DimensionsToString(), *model)

	req:=&imager.Request{
		Settings: settingsFromFlags(logWriter),
		Axes: axes, Nx: int(m.Naxisn[0]), Ny: int(m.Naxisn[1]), Context: *context,
	}
	imager.EnsureRotated(req, chunks)

	if err:=imager.DegridModel(req, m, chunks, logWriter); err!=nil { return err }

	fileName:=*out
	if filepath.Ext(fileName)==".fits" {
		fileName=strings.TrimSuffix(fileName, ".fits")+".json"
	}
	if err:=vis.WriteChunks(fileName, chunks); err!=nil { return err }
	fmt.Fprintf(logWriter, "Wrote predicted visibilities to %s\n", fileName)
	return nil
}
