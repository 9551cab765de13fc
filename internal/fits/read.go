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
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var reParser *regexp.Regexp = compileRE() // Regexp parser for FITS header lines

// Reads a model image cube for degridding
func NewImageFromFile(fileName string, id int, logWriter io.Writer) (i *Image, err error) {
	i=NewImage()
	i.ID=id
	return i, i.ReadFile(fileName, logWriter)
}

// Read FITS data from the file with the given name. Decompresses gzip if .gz or gzip suffix is present
func (f *Image) ReadFile(fileName string, logWriter io.Writer) error {
	file, err:=os.Open(fileName)
	if err!=nil { return err }
	defer file.Close()

	var r io.Reader=file
	f.FileName=fileName
	lExt:=strings.ToLower(path.Ext(fileName))
	if lExt==".gz" || lExt==".gzip" {
		r, err=gzip.NewReader(file)
		if err!=nil { return err }
	}
	return f.Read(r, logWriter)
}

func (f *Image) popHeaderInt32(key string) (res int32, err error) {
	if val, ok:=f.Header.Ints[key]; ok {
		delete(f.Header.Ints, key)
		return val, nil
	}
	return 0, fmt.Errorf("%d: FITS header does not contain key %s", f.ID, key)
}

func (f *Image) popHeaderInt32OrFloat(key string) (res float32, err error) {
	if val, ok:=f.Header.Ints[key]; ok {
		delete(f.Header.Ints, key)
		return float32(val), nil
	} else if val, ok:=f.Header.Floats[key]; ok {
		delete(f.Header.Floats, key)
		return val, nil
	}
	return 0, fmt.Errorf("%d: FITS header does not contain key %s", f.ID, key)
}

func (f *Image) Read(r io.Reader, logWriter io.Writer) (err error) {
	err=f.Header.read(r, f.ID, logWriter)
	if err!=nil { return err }

	// check mandatory fields as per standard
	if !f.Header.Bools["SIMPLE"] {
		return fmt.Errorf("%d: Not a valid FITS file; SIMPLE=T missing in header", f.ID)
	}
	delete(f.Header.Bools, "SIMPLE")

	if f.Bitpix, err=f.popHeaderInt32("BITPIX"); err!=nil { return err }
	var naxis int32
	if naxis, err=f.popHeaderInt32("NAXIS"); err!=nil { return err }
	f.Naxisn=make([]int32, naxis)
	f.Pixels=int32(1)
	for i:=int32(1); i<=naxis; i++ {
		var nai int32
		if nai, err=f.popHeaderInt32("NAXIS"+strconv.FormatInt(int64(i), 10)); err!=nil { return err }
		f.Naxisn[i-1]=nai
		f.Pixels*=nai
	}
	if f.Bzero,  err=f.popHeaderInt32OrFloat("BZERO");  err!=nil { f.Bzero=0 }
	if f.Bscale, err=f.popHeaderInt32OrFloat("BSCALE"); err!=nil { f.Bscale=1 }

	return f.readData(r, logWriter)
}

// Read image data from file, convert to float32 data type, apply Bzero offset and set Bzero to 0 afterwards.
// Model cubes for degridding are floating point; integer payloads are not supported
func (f *Image) readData(r io.Reader, logWriter io.Writer) (err error) {
	switch f.Bitpix {
	case -32:
		return f.readFloatData(r, 4)
	case -64:
		fmt.Fprintf(logWriter, "%d: Warning: loss of precision converting float%d to float32 values\n", f.ID, -f.Bitpix)
		return f.readFloatData(r, 8)
	default:
		return fmt.Errorf("%d: Unsupported BITPIX value %d for a model cube", f.ID, f.Bitpix)
	}
}

const bufLen int = 16*1024 // input buffer length for reading from file

// Batched read of float data in network byte order, adjusting for Bzero/Bscale
func (f *Image) readFloatData(r io.Reader, bytesPerValue int) error {
	f.Data=make([]float32, int(f.Pixels))
	raw:=make([]byte, len(f.Data)*bytesPerValue)
	if _, err:=io.ReadFull(r, raw); err!=nil {
		return fmt.Errorf("%d: %s", f.ID, err.Error())
	}
	for i:=0; i<len(f.Data); i++ {
		var val float32
		if bytesPerValue==4 {
			bits:=(uint32(raw[i*4])<<24) | (uint32(raw[i*4+1])<<16) | (uint32(raw[i*4+2])<<8) | uint32(raw[i*4+3])
			val=math.Float32frombits(bits)
		} else {
			bits:=(uint64(raw[i*8])<<56) | (uint64(raw[i*8+1])<<48) | (uint64(raw[i*8+2])<<40) | (uint64(raw[i*8+3])<<32) |
				(uint64(raw[i*8+4])<<24) | (uint64(raw[i*8+5])<<16) | (uint64(raw[i*8+6])<<8) | uint64(raw[i*8+7])
			val=float32(math.Float64frombits(bits))
		}
		f.Data[i]=val*f.Bscale + f.Bzero
	}
	f.Bzero, f.Bscale = 0, 1 // reflect that data values incorporate these now
	return nil
}

func (h *Header) read(r io.Reader, id int, logWriter io.Writer) error {
	buf:=make([]byte, fitsBlockSize)

	for h.Length=0; !h.End; {
		// read next header unit
		bytesRead, err:=io.ReadFull(r, buf)
		if err!=nil || bytesRead!=fitsBlockSize {
			return fmt.Errorf("%d: %s", id, err.Error())
		}
		h.Length+=int32(bytesRead)

		// parse all lines in this header unit
		for lineNo:=0; lineNo<fitsBlockSize/HeaderLineSize && !h.End; lineNo++ {
			line:=buf[lineNo*HeaderLineSize : (lineNo+1)*HeaderLineSize]
			subValues:=reParser.FindSubmatch(line)
			if subValues==nil {
				fmt.Fprintf(logWriter, "%d: Warning:Cannot parse '%s', ignoring\n", id, string(line))
			} else {
				subNames:=reParser.SubexpNames()
				h.readLine(subNames, subValues, id, lineNo, logWriter)
			}
		}
	}
	return nil
}

func (h *Header) readLine(subNames []string, subValues [][]byte, id, lineNo int, logWriter io.Writer) {
	key:=""
	// ignore index 0 which is the whole line
	for i:=1; i<len(subNames); i++ {
		if subValues[i]!=nil && len(subNames[i])==1 {
			switch c:=subNames[i][0]; c {
			case byte('E'): // end line
				h.End=true
			case byte('H'): // history line
				h.History=append(h.History, string(subValues[i]))
			case byte('C'): // comment line
				h.Comments=append(h.Comments, string(subValues[i]))
			case byte('k'): // key
				key=string(subValues[i])
			case byte('b'): // boolean
				if len(subValues[i])>0 {
					v:=subValues[i][0]
					h.Bools[key]= v==byte('t') || v==byte('T')
				}
			case byte('i'): // int
				val, err:=strconv.ParseInt(string(subValues[i]), 10, 64)
				if err==nil { h.Ints[key]=int32(val) }
			case byte('f'): // float
				val, err:=strconv.ParseFloat(string(subValues[i]), 64)
				if err==nil { h.Floats[key]=float32(val) }
			case byte('s'): // string
				// trailing blanks in FITS string values are not significant
				h.Strings[key]=strings.TrimRight(string(subValues[i]), " ")
			case byte('c'): // value comment
				// ignored
			default:
				fmt.Fprintf(logWriter, "%d:%d:Warning:Unknown token '%s'\n", id, lineNo, string(c))
			}
		}
	}
}

// Build regexp parser for FITS header lines
func compileRE() *regexp.Regexp {
	white   :="\\s+"
	whiteOpt:="\\s*"

	histLine:="HISTORY"+white+"(?P<H>.*)"
	commLine:="COMMENT"+white+"(?P<C>.*)"
	endLine :="(?P<E>END)"+whiteOpt

	key   :="(?P<k>[A-Z0-9_-]+)"
	boo   :="(?P<b>[TF])"
	inte  :="(?P<i>[+-]?[0-9]+)"
	floa  :="(?P<f>[+-]?[0-9]*\\.[0-9]*(?:[ED][-+]?[0-9]+)?)"
	stri  :="'(?P<s>[^']*)'"
	val   :="(?:"+boo+"|"+inte+"|"+floa+"|"+stri+")"
	commOpt:="(?:/(?P<c>.*))?"
	keyLine:=key+whiteOpt+"="+whiteOpt+val+whiteOpt+commOpt

	lineRe:="^(?:"+white+"|"+histLine+"|"+commLine+"|"+keyLine+"|"+endLine+")$"
	return regexp.MustCompile(lineRe)
}
