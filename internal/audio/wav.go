// Package audio provides WAV envelope helpers for the synthesis service:
// encoding PCM payloads and deriving playback duration from encoded audio.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WAV header layout constants for canonical PCM files.
const (
	HeaderLength = 44

	riffMagic = "RIFF"
	waveMagic = "WAVE"
	fmtMagic  = "fmt "
	dataMagic = "data"

	pcmFormatTag      = 1
	fmtChunkSize      = 16
	byteRateOffset    = 28
	bitsPerByte       = 8
	bytesPerPCMSample = 2
)

// Errors returned when parsing audio payloads.
var (
	// ErrNotWAV indicates a payload without a RIFF/WAVE envelope.
	ErrNotWAV = errors.New("payload is not a WAV file")
	// ErrTruncatedWAV indicates a WAV payload shorter than its header.
	ErrTruncatedWAV = errors.New("WAV payload is truncated")
	// ErrZeroByteRate indicates a WAV header with a zero byte rate.
	ErrZeroByteRate = errors.New("WAV header has zero byte rate")
)

// EncodePCM16 wraps little-endian 16-bit PCM samples in a canonical WAV
// envelope.
func EncodePCM16(samples []byte, sampleRate, channels int) []byte {
	dataLen := len(samples)
	byteRate := sampleRate * channels * bytesPerPCMSample
	blockAlign := channels * bytesPerPCMSample

	buf := make([]byte, 0, HeaderLength+dataLen)

	buf = append(buf, riffMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(HeaderLength-8+dataLen))
	buf = append(buf, waveMagic...)
	buf = append(buf, fmtMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, fmtChunkSize)
	buf = binary.LittleEndian.AppendUint16(buf, pcmFormatTag)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(byteRate))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(blockAlign))
	buf = binary.LittleEndian.AppendUint16(buf, bytesPerPCMSample*bitsPerByte)
	buf = append(buf, dataMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataLen))
	buf = append(buf, samples...)

	return buf
}

// Duration computes the playback length in seconds of a WAV payload from its
// header byte rate. For buffers concatenated from several WAV chunks the
// result counts every chunk's payload at the first header's byte rate.
func Duration(data []byte) (float64, error) {
	err := validateHeader(data)
	if err != nil {
		return 0, err
	}

	byteRate := binary.LittleEndian.Uint32(data[byteRateOffset : byteRateOffset+4])
	if byteRate == 0 {
		return 0, ErrZeroByteRate
	}

	payload := len(data) - HeaderLength

	return float64(payload) / float64(byteRate), nil
}

// DurationOrEstimate computes Duration for WAV payloads and falls back to an
// estimate from the fallback byte rate for other encodings. A non-positive
// fallback yields zero.
func DurationOrEstimate(data []byte, fallbackByteRate int) float64 {
	seconds, err := Duration(data)
	if err == nil {
		return seconds
	}

	if fallbackByteRate <= 0 {
		return 0
	}

	return float64(len(data)) / float64(fallbackByteRate)
}

func validateHeader(data []byte) error {
	if len(data) < HeaderLength {
		return fmt.Errorf("%w: %d bytes", ErrTruncatedWAV, len(data))
	}

	if string(data[0:4]) != riffMagic || string(data[8:12]) != waveMagic {
		return ErrNotWAV
	}

	return nil
}
