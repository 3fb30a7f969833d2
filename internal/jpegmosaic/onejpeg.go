// Package jpegmosaic implements the JPEG-mosaic pyramid backend: a slide
// stored as a grid of JPEG files, each holding many internal tiles
// delimited by restart markers.
package jpegmosaic

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"image/jpeg"
	"io"
	"os"

	"github.com/openslide-go/slidecore/internal/slide"
)

// restart marker byte range: 0xD0..0xD7. EOI is 0xD9.
const (
	markerSOI = 0xD8
	markerEOI = 0xD9
	markerSOF0 = 0xC0
	markerSOF1 = 0xC1
	markerDHT  = 0xC4
	markerDQT  = 0xDB
	markerDRI  = 0xDD
	markerSOS  = 0xDA
	markerCOM  = 0xFE
	rst0       = 0xD0
	rst7       = 0xD7
)

// OneJpeg is one source JPEG file: a restart-marker-delimited grid of
// tiles, plus the lazily-filled offset index that locates each restart
// segment.
type OneJpeg struct {
	Path     string
	f        *os.File
	fileSize int64

	width, height         int // full image dimensions at scale_denom=1
	tileWidth, tileHeight int // width/tilesAcross, height/tilesDown
	tilesAcross, tilesDown int

	headerStop     int64 // byte offset where entropy-coded data begins == starts[0]
	widthFieldOff  int64 // absolute offset of SOF0's 2-byte width field
	heightFieldOff int64 // absolute offset of SOF0's 2-byte height field

	comment string

	starts []int64 // starts[i] == -1 means undiscovered
	hints  []int64 // optional externally-supplied guesses, nil if none
}

// Close releases the file handle. Callers hold the backend mutex around
// any concurrent use.
func (oj *OneJpeg) Close() error {
	return oj.f.Close()
}

// sofInfo carries the handful of SOF0 fields the restart-marker index
// needs: dimensions and the maximum component sampling factors (used to
// derive the MCU pixel size).
type sofInfo struct {
	width, height  int
	widthOff, heightOff int64
	maxH, maxV     int
}

// openOneJPEG opens path, parses its headers through SOS, and allocates
// (but does not fill beyond index 0) the restart-marker index. hints, if
// non-nil, must have one entry per restart segment.
func openOneJPEG(path string, hints []int64) (*OneJpeg, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, slide.Wrap(slide.IOFailure, "openOneJPEG", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, slide.Wrap(slide.IOFailure, "openOneJPEG", err)
	}

	oj := &OneJpeg{Path: path, f: f, fileSize: fi.Size(), hints: hints}

	restartInterval, sof, comment, headerStop, err := parseHeader(f)
	if err != nil {
		f.Close()
		return nil, slide.Wrap(slide.BadFile, fmt.Sprintf("parsing %s", path), err)
	}
	if restartInterval <= 0 {
		f.Close()
		return nil, slide.Wrap(slide.BadFile, "openOneJPEG", fmt.Errorf("%s: no restart interval (DRI marker missing or zero)", path))
	}

	mcuW := 8 * sof.maxH
	mcuH := 8 * sof.maxV
	mcusPerRow := ceilDiv(sof.width, mcuW)
	mcuRows := ceilDiv(sof.height, mcuH)
	if mcusPerRow%restartInterval != 0 {
		f.Close()
		return nil, slide.Wrap(slide.BadFile, "openOneJPEG", fmt.Errorf("%s: restart interval %d does not divide MCUs per row %d", path, restartInterval, mcusPerRow))
	}

	oj.width = sof.width
	oj.height = sof.height
	oj.widthFieldOff = sof.widthOff
	oj.heightFieldOff = sof.heightOff
	oj.comment = comment
	oj.headerStop = headerStop
	oj.tilesAcross = mcusPerRow / restartInterval
	oj.tilesDown = mcuRows
	oj.tileWidth = oj.width / oj.tilesAcross
	oj.tileHeight = oj.height / oj.tilesDown

	n := oj.tilesAcross * oj.tilesDown
	oj.starts = make([]int64, n)
	for i := range oj.starts {
		oj.starts[i] = -1
	}
	oj.starts[0] = headerStop

	return oj, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// parseHeader scans from the start of the file through the end of the
// SOS marker segment's header, recording the fields the restart-marker
// engine needs. It does not touch entropy-coded scan data.
func parseHeader(f *os.File) (restartInterval int, sof sofInfo, comment string, headerStop int64, err error) {
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return
	}
	br := bufio.NewReader(f)
	pos := int64(0)

	readByte := func() (byte, error) {
		b, e := br.ReadByte()
		if e == nil {
			pos++
		}
		return b, e
	}
	readUint16 := func() (uint16, error) {
		var buf [2]byte
		if _, e := io.ReadFull(br, buf[:]); e != nil {
			return 0, e
		}
		pos += 2
		return binary.BigEndian.Uint16(buf[:]), nil
	}
	skip := func(n int) error {
		k, e := io.CopyN(io.Discard, br, int64(n))
		pos += k
		return e
	}

	b0, e := readByte()
	if e != nil {
		err = e
		return
	}
	b1, e := readByte()
	if e != nil {
		err = e
		return
	}
	if b0 != 0xFF || b1 != markerSOI {
		err = fmt.Errorf("missing SOI marker")
		return
	}

	for {
		m, e := readByte()
		if e != nil {
			err = e
			return
		}
		if m != 0xFF {
			err = fmt.Errorf("expected marker, got 0x%02X at offset %d", m, pos-1)
			return
		}
		var marker byte
		for {
			marker, e = readByte()
			if e != nil {
				err = e
				return
			}
			if marker != 0xFF {
				break
			}
			// fill byte, keep consuming
		}

		switch {
		case marker >= rst0 && marker <= rst7, marker == 0x01:
			continue // standalone marker, no payload
		case marker == markerEOI:
			err = fmt.Errorf("EOI before SOS")
			return
		}

		segLen, e := readUint16()
		if e != nil {
			err = e
			return
		}
		payloadLen := int(segLen) - 2
		if payloadLen < 0 {
			err = fmt.Errorf("invalid segment length at offset %d", pos-2)
			return
		}

		switch marker {
		case markerSOF0, markerSOF1:
			var precision byte
			if precision, e = readByte(); e != nil {
				err = e
				return
			}
			_ = precision
			heightOff := pos
			h, e := readUint16()
			if e != nil {
				err = e
				return
			}
			widthOff := pos
			w, e := readUint16()
			if e != nil {
				err = e
				return
			}
			numComp, e := readByte()
			if e != nil {
				err = e
				return
			}
			maxH, maxV := 1, 1
			for i := 0; i < int(numComp); i++ {
				if e := skip(1); e != nil { // component id
					err = e
					return
				}
				hv, e := readByte()
				if e != nil {
					err = e
					return
				}
				h, v := int(hv>>4), int(hv&0x0F)
				if h > maxH {
					maxH = h
				}
				if v > maxV {
					maxV = v
				}
				if e := skip(1); e != nil { // quant table selector
					err = e
					return
				}
			}
			sof = sofInfo{
				width: int(w), height: int(h),
				widthOff: widthOff, heightOff: heightOff,
				maxH: maxH, maxV: maxV,
			}
		case markerDRI:
			ri, e := readUint16()
			if e != nil {
				err = e
				return
			}
			restartInterval = int(ri)
		case markerCOM:
			buf := make([]byte, payloadLen)
			if _, e := io.ReadFull(br, buf); e != nil {
				err = e
				return
			}
			pos += int64(payloadLen)
			if i := bytes.IndexByte(buf, 0); i >= 0 {
				buf = buf[:i]
			}
			comment = string(buf)
		case markerSOS:
			if e := skip(payloadLen); e != nil {
				err = e
				return
			}
			headerStop = pos
			return
		default:
			if e := skip(payloadLen); e != nil {
				err = e
				return
			}
		}
	}
}

// scanForward implements find_next_ff_marker: starting at file
// offset from, find the next 0xFF byte not immediately followed by a
// 0x00 stuff byte, and return the marker byte after it plus the file
// offset immediately following the marker pair.
func scanForward(f *os.File, from int64) (marker byte, afterMarker int64, err error) {
	r := bufio.NewReaderSize(io.NewSectionReader(f, from, 1<<62), 4096)
	pos := from
	for {
		b, e := r.ReadByte()
		if e != nil {
			return 0, 0, e
		}
		pos++
		if b != 0xFF {
			continue
		}
		for {
			b2, e := r.ReadByte()
			if e != nil {
				return 0, 0, e
			}
			pos++
			if b2 == 0xFF {
				continue // run of fill bytes, keep looking for the marker
			}
			if b2 == 0x00 {
				break // stuffed FF byte, not a marker: resume outer scan
			}
			return b2, pos, nil
		}
	}
}

// computeMCUStart fills oj.starts[target] if unknown. Callers
// hold the backend's restart-marker mutex.
func (oj *OneJpeg) computeMCUStart(target int) error {
	if oj.starts[target] != -1 {
		return nil
	}
	if target == 0 {
		return slide.Wrap(slide.BadFile, "computeMCUStart", fmt.Errorf("%s: segment 0 must already be known", oj.Path))
	}

	if oj.hints != nil {
		if off := oj.hints[target]; off != -1 {
			var buf [2]byte
			_, err := oj.f.ReadAt(buf[:], off-2)
			if err == nil && buf[0] == 0xFF && buf[1] >= rst0 && buf[1] <= rst7 {
				oj.starts[target] = off
				return nil
			}
			logWarnHintRejected(oj.Path, target)
		}
	}

	firstGood := target - 1
	for oj.starts[firstGood] == -1 {
		firstGood--
	}
	pos := oj.starts[firstGood]

	for firstGood < target {
		marker, afterPos, err := scanForward(oj.f, pos)
		if err != nil {
			return slide.Wrap(slide.IOFailure, "computeMCUStart", fmt.Errorf("%s: %w", oj.Path, err))
		}
		if marker == markerEOI {
			break
		}
		if marker >= rst0 && marker <= rst7 {
			firstGood++
			oj.starts[firstGood] = afterPos
		}
		pos = afterPos
	}
	return nil
}

// readNativeTile decodes tile (col,row) — in this file's own, native
// (scale_denom==1) tile grid — and returns its ARGB32 pixels at native
// tile_width x tile_height resolution. Callers box-downsample for
// scale_denom > 1.
func (oj *OneJpeg) readNativeTile(col, row int) ([]byte, error) {
	if col < 0 || col >= oj.tilesAcross || row < 0 || row >= oj.tilesDown {
		return nil, slide.Wrap(slide.OutOfRange, "readNativeTile", fmt.Errorf("%s: tile (%d,%d) out of %dx%d grid", oj.Path, col, row, oj.tilesAcross, oj.tilesDown))
	}
	mcuStart := row*oj.tilesAcross + col

	if err := oj.computeMCUStart(mcuStart); err != nil {
		return nil, err
	}
	var stopPos int64
	if mcuStart+1 == len(oj.starts) {
		stopPos = oj.fileSize
	} else {
		if err := oj.computeMCUStart(mcuStart + 1); err != nil {
			return nil, err
		}
		stopPos = oj.starts[mcuStart+1]
	}
	startPos := oj.starts[mcuStart]

	buf, err := oj.synthesizeStream(startPos, stopPos)
	if err != nil {
		return nil, err
	}

	img, err := jpeg.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, slide.Wrap(slide.DecodeFailure, fmt.Sprintf("%s tile (%d,%d)", oj.Path, col, row), err)
	}

	return argbFromImage(img, oj.tileWidth, oj.tileHeight), nil
}

// synthesizeStream builds `[header bytes 0..headerStop) ++ [scan bytes
// startPos..stopPos)]`, rewrites the final byte to 0xD9 (EOI), and
// patches the copied SOF0 dimension fields to declare tile_width x
// tile_height — the Go-accessible form of the "declare image_width /
// image_height = tile size" decoder cunning (the
// stdlib decoder has no struct field to override post-header-parse, so
// the override is applied to the bytes themselves before decode).
func (oj *OneJpeg) synthesizeStream(startPos, stopPos int64) ([]byte, error) {
	size := oj.headerStop + (stopPos - startPos)
	buf := make([]byte, size)

	if _, err := oj.f.ReadAt(buf[:oj.headerStop], 0); err != nil {
		return nil, slide.Wrap(slide.IOFailure, "synthesizeStream", err)
	}
	if _, err := oj.f.ReadAt(buf[oj.headerStop:], startPos); err != nil {
		return nil, slide.Wrap(slide.IOFailure, "synthesizeStream", err)
	}

	if buf[oj.headerStop] == 0xFF {
		panic(fmt.Sprintf("jpegmosaic: %s: synthesized scan data begins with 0xFF (marker split)", oj.Path))
	}
	if buf[len(buf)-2] != 0xFF {
		panic(fmt.Sprintf("jpegmosaic: %s: synthesized buffer's penultimate byte is not 0xFF", oj.Path))
	}
	buf[len(buf)-1] = markerEOI

	binary.BigEndian.PutUint16(buf[oj.heightFieldOff:], uint16(oj.tileHeight))
	binary.BigEndian.PutUint16(buf[oj.widthFieldOff:], uint16(oj.tileWidth))

	return buf, nil
}
