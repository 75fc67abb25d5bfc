package audio

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV wraps raw PCM data in a WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels, bytesPerSample int) []byte {
	dataLen := len(pcm)

	buf := &bytes.Buffer{}
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*bytesPerSample))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels*bytesPerSample))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bytesPerSample*8))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)

	return buf.Bytes()
}
