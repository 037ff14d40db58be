package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	// SampleRate is the default rate produced by the bundled engines.
	SampleRate = 22050
	// Channels is the default channel count (mono).
	Channels = 1
	// BitDepth is the only supported sample width.
	BitDepth = 16

	wavHeaderSize = 44
)

var (
	// ErrNotWAV is returned for data without a RIFF/WAVE header.
	ErrNotWAV = errors.New("not a WAV file")

	// ErrUnsupportedFormat is returned for WAV files that are not 16-bit PCM.
	ErrUnsupportedFormat = errors.New("unsupported WAV format")

	// ErrFormatMismatch is returned when merging files with different formats.
	ErrFormatMismatch = errors.New("WAV formats differ")
)

// Format describes signed 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat returns the format produced by the bundled engines.
func DefaultFormat() Format {
	return Format{SampleRate: SampleRate, Channels: Channels}
}

// BytesPerFrame returns the size of one sample across all channels.
func (f Format) BytesPerFrame() int {
	return BitDepth / 8 * f.Channels
}

// Duration returns the playback length of n bytes of PCM.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate == 0 || f.BytesPerFrame() == 0 {
		return 0
	}
	frames := n / f.BytesPerFrame()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// ParseWAV returns the format and PCM payload of a 16-bit PCM WAV file.
// Chunks other than fmt and data are skipped.
func ParseWAV(data []byte) (Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, ErrNotWAV
	}

	var (
		f       Format
		haveFmt bool
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if id == "data" && end > len(data) {
			// streamed output leaves the size unset
			end = len(data)
		}
		if end > len(data) {
			return Format{}, nil, fmt.Errorf("%w: truncated %q chunk", ErrNotWAV, id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Format{}, nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body:])
			bits := binary.LittleEndian.Uint16(data[body+14:])
			if audioFormat != 1 || bits != BitDepth {
				return Format{}, nil, fmt.Errorf("%w: format %d, %d bits", ErrUnsupportedFormat, audioFormat, bits)
			}
			f.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			f.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, nil, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			return f, data[body:end], nil
		}

		pos = end + size%2
	}
	return Format{}, nil, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}

// EncodeWAV wraps pcm in a canonical 44-byte WAV header.
func EncodeWAV(f Format, pcm []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))
	writeHeader(&buf, f, len(pcm))
	buf.Write(pcm)
	return buf.Bytes()
}

func writeHeader(w io.Writer, f Format, dataLen int) {
	byteRate := f.SampleRate * f.BytesPerFrame()
	h := make([]byte, wavHeaderSize)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], uint32(36+dataLen))
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1)
	binary.LittleEndian.PutUint16(h[22:], uint16(f.Channels))
	binary.LittleEndian.PutUint32(h[24:], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(h[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:], uint16(f.BytesPerFrame()))
	binary.LittleEndian.PutUint16(h[34:], BitDepth)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], uint32(dataLen))
	w.Write(h)
}

// WriteWAV writes pcm to path as a WAV file, replacing it atomically.
func WriteWAV(path string, f Format, pcm []byte) error {
	return writeAtomic(path, EncodeWAV(f, pcm))
}

// MergeWAV concatenates the PCM payloads of parts into a single WAV file at
// target. All parts must share one format.
func MergeWAV(target string, parts []string) error {
	if len(parts) == 0 {
		return errors.New("no parts to merge")
	}

	var (
		format Format
		pcm    bytes.Buffer
	)
	for i, p := range parts {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read part: %w", err)
		}
		f, payload, err := ParseWAV(data)
		if err != nil {
			return fmt.Errorf("part %s: %w", filepath.Base(p), err)
		}
		if i == 0 {
			format = f
		} else if f != format {
			return fmt.Errorf("%w: %s", ErrFormatMismatch, filepath.Base(p))
		}
		pcm.Write(payload)
	}

	return WriteWAV(target, format, pcm.Bytes())
}

// Resample converts pcm from one format to another using linear
// interpolation. Channel counts must match.
func Resample(pcm []byte, from, to Format) ([]byte, error) {
	if from == to {
		return pcm, nil
	}
	if from.Channels != to.Channels {
		return nil, fmt.Errorf("%w: %d to %d channels", ErrUnsupportedFormat, from.Channels, to.Channels)
	}
	if from.SampleRate <= 0 || to.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate", ErrUnsupportedFormat)
	}

	ch := from.Channels
	inFrames := len(pcm) / from.BytesPerFrame()
	if inFrames == 0 {
		return nil, nil
	}
	outFrames := int(int64(inFrames) * int64(to.SampleRate) / int64(from.SampleRate))
	out := make([]byte, outFrames*to.BytesPerFrame())

	sample := func(frame, c int) float64 {
		if frame >= inFrames {
			frame = inFrames - 1
		}
		off := (frame*ch + c) * 2
		return float64(int16(binary.LittleEndian.Uint16(pcm[off:])))
	}

	ratio := float64(from.SampleRate) / float64(to.SampleRate)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		j := int(pos)
		frac := pos - float64(j)
		for c := 0; c < ch; c++ {
			v := sample(j, c)*(1-frac) + sample(j+1, c)*frac
			off := (i*ch + c) * 2
			binary.LittleEndian.PutUint16(out[off:], uint16(int16(v)))
		}
	}
	return out, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
