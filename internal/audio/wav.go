package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeWAV wraps mono signed-16-bit PCM samples in a canonical RIFF/WAVE
// container at sampleRate, as StreamingASR needs for its multipart
// transcription requests (spec §4.2). Adapted from the teacher's
// pkg/audio.NewWavBuffer, generalized from a byte-buffer to an []int16 input
// so callers never have to hand-roll endianness.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	buf := new(bytes.Buffer)
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))           // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1))           // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// DecodeWAV extracts mono 16-bit PCM samples and the container's sample rate
// from a RIFF/WAVE payload, as StreamingTTS needs to normalize provider
// responses (spec §4.4). It tolerates extra chunks between fmt and data.
func DecodeWAV(data []byte) (samples []int16, sampleRate int, err error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE container")
	}

	pos := 12
	var channels, bitsPerSample int
	var dataBytes []byte

	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too small")
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			dataBytes = data[body : body+chunkSize]
		}

		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}

	if dataBytes == nil {
		return nil, 0, fmt.Errorf("no data chunk found")
	}
	if bitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d", bitsPerSample)
	}
	if channels <= 0 {
		channels = 1
	}

	raw := make([]int16, len(dataBytes)/2)
	for i := range raw {
		raw[i] = int16(binary.LittleEndian.Uint16(dataBytes[i*2 : i*2+2]))
	}
	if channels > 1 {
		raw = Downmix(raw, channels)
	}
	return raw, sampleRate, nil
}
