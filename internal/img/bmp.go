package img

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	fileHeaderSize = 14 // BITMAPFILEHEADER
	dibHeaderSize  = 40 // BITMAPINFOHEADER
)

// dibHeader is the BITMAPINFOHEADER layout found at the start of a bitmap
// blob embedded in an overlay.
type dibHeader struct {
	Size          uint32 // Header size, 40 for BITMAPINFOHEADER
	Width         uint32
	Height        uint32
	Planes        uint16
	BitCount      uint16 // Bits per pixel, determines palette size
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter uint32
	YPelsPerMeter uint32
	ClrUsed       uint32
	ClrImportant  uint32
}

// ExtractBMP turns a raw DIB blob from an overlay into a standalone BMP file
// image by prepending the 14-byte file header. Blobs that do not start with
// a 40-byte BITMAPINFOHEADER are not bitmaps; those yield no image and no
// error.
func ExtractBMP(blob []byte) ([]byte, error) {
	var header dibHeader
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read dib header: %w", err)
	}
	if header.Size != dibHeaderSize {
		return nil, nil
	}

	// Pixel data follows the two headers and, for indexed color modes, the
	// palette of 4-byte entries.
	offset := uint32(fileHeaderSize + dibHeaderSize)
	if header.BitCount < 16 {
		offset += uint32(1<<header.BitCount) * 4
	}

	out := bytes.NewBuffer(make([]byte, 0, fileHeaderSize+len(blob)))
	out.WriteString("BM")
	binary.Write(out, binary.LittleEndian, uint32(fileHeaderSize+len(blob)))
	binary.Write(out, binary.LittleEndian, uint16(0))
	binary.Write(out, binary.LittleEndian, uint16(0))
	binary.Write(out, binary.LittleEndian, offset)
	out.Write(blob)
	return out.Bytes(), nil
}
