package playback

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"gopkg.in/hraban/opus.v2"

	"github.com/guffawlabs/go-tutor/pkg/audioio"
)

// opusStreamRate is the fixed output rate of libopusfile.
const opusStreamRate = 48000

// rawPCMRate is assumed for headerless .pcm/.raw captures, matching the
// capture pipeline's format.
const rawPCMRate = 16000

// DecodeFile reads the audio file at ref into mono 16-bit PCM, returning
// the samples and their sample rate. The format is picked by extension:
// mp3, ogg/opus, wav, and raw 16kHz PCM are supported.
func DecodeFile(ref string) ([]int16, int, error) {
	f, err := os.Open(ref)
	if err != nil {
		return nil, 0, fmt.Errorf("playback: open %s: %w", ref, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(ref)) {
	case ".mp3":
		return decodeMP3(f)
	case ".ogg", ".opus":
		return decodeOpus(f)
	case ".wav":
		return decodeWAV(f)
	case ".pcm", ".raw":
		return decodeRaw(f)
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(ref))
	}
}

func decodeMP3(r io.Reader) ([]int16, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, fmt.Errorf("playback: mp3 decode: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("playback: mp3 read: %w", err)
	}

	// go-mp3 always emits 16-bit stereo.
	samples := audioio.StereoToMono(audioio.BytesToSamples(raw))
	return samples, dec.SampleRate(), nil
}

func decodeOpus(r io.Reader) ([]int16, int, error) {
	stream, err := opus.NewStream(r)
	if err != nil {
		return nil, 0, fmt.Errorf("playback: opus stream: %w", err)
	}
	defer stream.Close()

	var samples []int16
	buf := make([]int16, 5760)
	for {
		n, err := stream.Read(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("playback: opus read: %w", err)
		}
		samples = append(samples, buf[:n]...)
	}
	return samples, opusStreamRate, nil
}

func decodeRaw(r io.Reader) ([]int16, int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("playback: pcm read: %w", err)
	}
	return audioio.BytesToSamples(raw), rawPCMRate, nil
}

// decodeWAV handles canonical PCM RIFF files: 16-bit samples, mono or
// stereo, any sample rate.
func decodeWAV(r io.Reader) ([]int16, int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("playback: wav read: %w", err)
	}
	if len(raw) < 12 || !bytes.Equal(raw[0:4], []byte("RIFF")) || !bytes.Equal(raw[8:12], []byte("WAVE")) {
		return nil, 0, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedFormat)
	}

	var (
		rate     int
		channels int
		bits     int
		data     []byte
	)

	off := 12
	for off+8 <= len(raw) {
		id := string(raw[off : off+4])
		size := int(binary.LittleEndian.Uint32(raw[off+4 : off+8]))
		body := off + 8
		if body+size > len(raw) {
			size = len(raw) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
			}
			format := binary.LittleEndian.Uint16(raw[body : body+2])
			if format != 1 {
				return nil, 0, fmt.Errorf("%w: non-PCM wav (format %d)", ErrUnsupportedFormat, format)
			}
			channels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			rate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(raw[body+14 : body+16]))
		case "data":
			data = raw[body : body+size]
		}

		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if rate == 0 || data == nil {
		return nil, 0, fmt.Errorf("%w: missing fmt or data chunk", ErrUnsupportedFormat)
	}
	if bits != 16 {
		return nil, 0, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, bits)
	}

	samples := audioio.BytesToSamples(data)
	if channels == 2 {
		samples = audioio.StereoToMono(samples)
	} else if channels != 1 {
		return nil, 0, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}
	return samples, rate, nil
}
