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


package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"github.com/gin-gonic/gin"

	"github.com/mlnoga/radiolight/internal/fits"
	"github.com/mlnoga/radiolight/internal/grid"
	"github.com/mlnoga/radiolight/internal/imager"
	"github.com/mlnoga/radiolight/internal/vis"
)


// Starts the REST API server. Gridding jobs read and write files on the
// server, so an optional chroot and setuid drop confines them
func Serve(chroot string, setuid int) {
	MakeSandbox(chroot, setuid)
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET ("/ping",     getPing)
			v1.GET ("/gridders", getGridders)
			v1.POST("/simulate", postSimulate)
			v1.POST("/grid",     postGrid)
			v1.POST("/degrid",   postDegrid)
		}
	}
	r.Run() // listen and serve on 0.0.0.0:8080
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

func getGridders(c *gin.Context) {
	c.JSON(200, gin.H{
		"gridders": grid.GridderNames(),
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m,err:=json.MarshalIndent(args, "", "  ")
	if err!=nil { return err }
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

type postSimulateArgs struct {
	Config   vis.SimConfig `json:"config"`
	FileName string        `json:"fileName"`
}

func postSimulate(c *gin.Context) {
	logWriter := c.Writer
	var args postSimulateArgs
	if err:=c.ShouldBind(&args); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}

	header := logWriter.Header()
	header.Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err:=printArgs(logWriter, "Arguments:\n", "\n", args); err!=nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	chunks:=vis.Simulate(args.Config, logWriter)
	if args.FileName!="" {
		if err:=vis.WriteChunks(args.FileName, chunks); err!=nil {
			fmt.Fprintf(logWriter, "error: %s\n", err.Error())
			return
		}
		fmt.Fprintf(logWriter, "Wrote %d chunks to %s\n", len(chunks), args.FileName)
	}
	logWriter.(http.Flusher).Flush()
}

type postGridArgs struct {
	Request        imager.Request `json:"request"`
	ChunksFile     string         `json:"chunksFile"`
	OutFile        string         `json:"outFile"`
	WeightsFile    string         `json:"weightsFile"`
	PreviewFile    string         `json:"previewFile"`
}

func postGrid(c *gin.Context)  {
	logWriter := c.Writer
	var args postGridArgs
	if err:=c.ShouldBind(&args); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}

	header := logWriter.Header()
	header.Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err:=printArgs(logWriter, "Arguments:\n", "\n", args); err!=nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	chunks, err:=vis.LoadChunks(args.ChunksFile, logWriter)
	if err!=nil {
		fmt.Fprintf(logWriter, "Error loading chunks: %s\n", err.Error())
		return
	}
	imager.EnsureRotated(&args.Request, chunks)

	img, weights, err:=imager.MakeImage(&args.Request, chunks, logWriter)
	if err!=nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
		return
	}

	if args.OutFile!="" {
		if err:=img.WriteFile(args.OutFile); err!=nil {
			fmt.Fprintf(logWriter, "Error writing image: %s\n", err.Error())
			return
		}
		fmt.Fprintf(logWriter, "Wrote image %s to %s\n", img.DimensionsToString(), args.OutFile)
	}
	if args.WeightsFile!="" {
		if err:=weights.WriteFile(args.WeightsFile); err!=nil {
			fmt.Fprintf(logWriter, "Error writing weights: %s\n", err.Error())
			return
		}
		fmt.Fprintf(logWriter, "Wrote weights %s to %s\n", weights.DimensionsToString(), args.WeightsFile)
	}
	if args.PreviewFile!="" {
		if err:=img.WritePreviewToFile(args.PreviewFile, 0.5, 90); err!=nil {
			fmt.Fprintf(logWriter, "Error writing preview: %s\n", err.Error())
			return
		}
		fmt.Fprintf(logWriter, "Wrote preview to %s\n", args.PreviewFile)
	}
	logWriter.(http.Flusher).Flush()
}

type postDegridArgs struct {
	Request    imager.Request `json:"request"`
	ChunksFile string         `json:"chunksFile"`
	ModelFile  string         `json:"modelFile"`
	OutFile    string         `json:"outFile"`
}

func postDegrid(c *gin.Context) {
	logWriter := c.Writer
	var args postDegridArgs
	if err:=c.ShouldBind(&args); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}

	header := logWriter.Header()
	header.Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err:=printArgs(logWriter, "Arguments:\n", "\n", args); err!=nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	chunks, err:=vis.LoadChunks(args.ChunksFile, logWriter)
	if err!=nil {
		fmt.Fprintf(logWriter, "Error loading chunks: %s\n", err.Error())
		return
	}
	imager.EnsureRotated(&args.Request, chunks)

	model, err:=fits.NewImageFromFile(args.ModelFile, 0, logWriter)
	if err!=nil {
		fmt.Fprintf(logWriter, "Error loading model: %s\n", err.Error())
		return
	}

	if err:=imager.DegridModel(&args.Request, model, chunks, logWriter); err!=nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
		return
	}

	if args.OutFile!="" {
		if err:=vis.WriteChunks(args.OutFile, chunks); err!=nil {
			fmt.Fprintf(logWriter, "Error writing chunks: %s\n", err.Error())
			return
		}
		fmt.Fprintf(logWriter, "Wrote predicted visibilities to %s\n", args.OutFile)
	}
	logWriter.(http.Flusher).Flush()
}
