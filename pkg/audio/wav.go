package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned by [DecodeWAV] when the input is not a readable
// RIFF/WAVE PCM file.
var ErrInvalidWAV = errors.New("audio: invalid WAV data")

// DecodeWAV decodes a RIFF/WAVE file. 8, 16, 24 and 32-bit integer PCM is
// accepted and converted to 16-bit.
func DecodeWAV(data []byte) (*Waveform, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if d.NumChans == 0 || d.SampleRate == 0 {
		return nil, fmt.Errorf("%w: missing format chunk", ErrInvalidWAV)
	}

	depth := int(d.BitDepth)
	pcm := make([]byte, len(buf.Data)*2)
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(to16(s, depth)))
	}
	return &Waveform{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		PCM:        pcm,
	}, nil
}

// ReadWAV reads all of r and decodes it with [DecodeWAV].
func ReadWAV(r io.Reader) (*Waveform, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("audio: read WAV: %w", err)
	}
	return DecodeWAV(data)
}

// WriteWAV encodes w as a 16-bit PCM RIFF/WAVE file. The encoder seeks back
// to patch the chunk sizes, hence the io.WriteSeeker.
func (w *Waveform) WriteWAV(ws io.WriteSeeker) error {
	if w.SampleRate <= 0 || w.Channels <= 0 {
		return fmt.Errorf("audio: cannot encode %s", w.Format())
	}
	data := make([]int, len(w.PCM)/2)
	for i := range data {
		data[i] = int(int16(binary.LittleEndian.Uint16(w.PCM[i*2:])))
	}

	enc := wav.NewEncoder(ws, w.SampleRate, 16, w.Channels, 1)
	err := enc.Write(&goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: w.SampleRate, NumChannels: w.Channels},
		SourceBitDepth: 16,
	})
	if err != nil {
		return fmt.Errorf("audio: encode WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalise WAV: %w", err)
	}
	return nil
}

// to16 scales a decoded integer sample of the given bit depth to int16.
// 8-bit WAV is unsigned, every other depth is signed.
func to16(v, depth int) int16 {
	switch depth {
	case 8:
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}
