package flac

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// readTotalSamples parses the mandatory STREAMINFO block at the head of
// a FLAC file for the stream's total sample count — the one format
// field the frame decoder does not expose. Everything else (rate,
// channels, bit depth) comes from the decoder itself.
func readTotalSamples(path string) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var marker [4]byte
	if _, err := io.ReadFull(file, marker[:]); err != nil {
		return 0, fmt.Errorf("failed to read FLAC marker: %w", err)
	}
	if string(marker[:]) != "fLaC" {
		return 0, fmt.Errorf("not a FLAC file")
	}

	var header [4]byte
	if _, err := io.ReadFull(file, header[:]); err != nil {
		return 0, fmt.Errorf("failed to read metadata header: %w", err)
	}
	if header[0]&0x7F != 0 {
		// STREAMINFO must be the first metadata block.
		return 0, fmt.Errorf("first metadata block is not STREAMINFO")
	}

	var block [34]byte
	if _, err := io.ReadFull(file, block[:]); err != nil {
		return 0, fmt.Errorf("failed to read STREAMINFO: %w", err)
	}

	// Bytes 10..17 pack, from the most significant bit down:
	// 20 bits sample rate, 3 bits channels-1, 5 bits bps-1,
	// 36 bits total samples.
	packed := binary.BigEndian.Uint64(block[10:18])

	if packed>>44 == 0 {
		return 0, fmt.Errorf("invalid sample rate in STREAMINFO")
	}

	return packed & 0xFFFFFFFFF, nil
}
