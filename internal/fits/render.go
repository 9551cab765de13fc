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


package fits

import (
	"bufio"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
	"os"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Writes a false-color JPEG preview of the first plane of the cube, mapping
// data values onto an HSL ramp from deep blue (minimum) to red (maximum).
// Gamma stretches faint emission, ~0.5 works well for dirty images
func (f *Image) WritePreviewToFile(fileName string, gamma float32, quality int) error {
	file, err:=os.Create(fileName)
	if err!=nil { return err }
	defer file.Close()

	writer:=bufio.NewWriter(file)
	defer writer.Flush()
	return f.WritePreview(writer, gamma, quality)
}

func (f *Image) WritePreview(w io.Writer, gamma float32, quality int) error {
	width, height:=int(f.Naxisn[0]), int(f.Naxisn[1])
	plane:=f.Plane(0)
	min, max:=planeMinMax(plane)
	scale:=float32(1)
	if max>min { scale=1/(max-min) }
	gammaInv:=float64(1/gamma)

	img:=image.NewRGBA(image.Rectangle{image.Point{0,0}, image.Point{width, height}})
	for y:=0; y<height; y++ {
		yoffset:=y*width
		for x:=0; x<width; x++ {
			v:=(plane[yoffset+x]-min)*scale
			if math.IsNaN(float64(v)) || v<0 { v=0 }
			if v>1 { v=1 }
			if gammaInv!=1.0 {
				v=float32(math.Pow(float64(v), gammaInv))
			}
			// hue runs 240 (blue) down to 0 (red), luminance tracks the value
			c:=colorful.Hsl(240*(1-float64(v)), 1, 0.1+0.8*float64(v))
			r, g, b:=c.Clamped().RGB255()
			img.SetRGBA(x, height-1-y, color.RGBA{r, g, b, 255})
		}
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

func planeMinMax(plane []float32) (min, max float32) {
	min, max = float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _,v:=range plane {
		if math.IsNaN(float64(v)) { continue }
		if v<min { min=v }
		if v>max { max=v }
	}
	return min, max
}
