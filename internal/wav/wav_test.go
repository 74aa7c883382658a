package wav

import (
	"bytes"
	"testing"
)

func TestConstants(t *testing.T) {
	if HeaderSize != 44 {
		t.Errorf("HeaderSize = %d, want 44", HeaderSize)
	}
	if FormatPCM != 1 || FormatIEEEFloat != 3 || FormatALaw != 6 || FormatMULaw != 7 {
		t.Error("format codes do not match the WAVE registry")
	}
}

func TestPutLE16(t *testing.T) {
	tests := []struct {
		name   string
		value  uint16
		expect []byte
	}{
		{"zero", 0, []byte{0x00, 0x00}},
		{"one", 1, []byte{0x01, 0x00}},
		{"256", 256, []byte{0x00, 0x01}},
		{"max", 0xFFFF, []byte{0xFF, 0xFF}},
		{"mixed", 0x1234, []byte{0x34, 0x12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := make([]byte, 2)
			PutLE16(b, tt.value)
			if !bytes.Equal(b, tt.expect) {
				t.Errorf("PutLE16(%d) = %v, want %v", tt.value, b, tt.expect)
			}
		})
	}
}

func TestPutLE32(t *testing.T) {
	tests := []struct {
		name   string
		value  uint32
		expect []byte
	}{
		{"zero", 0, []byte{0x00, 0x00, 0x00, 0x00}},
		{"256", 256, []byte{0x00, 0x01, 0x00, 0x00}},
		{"max", 0xFFFFFFFF, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{"mixed", 0x12345678, []byte{0x78, 0x56, 0x34, 0x12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := make([]byte, 4)
			PutLE32(b, tt.value)
			if !bytes.Equal(b, tt.expect) {
				t.Errorf("PutLE32(%d) = %v, want %v", tt.value, b, tt.expect)
			}
		})
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func TestWrapRawPCM(t *testing.T) {
	pcmData := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	wavData := WrapRawPCM(pcmData, 44100, 2, 16)

	if len(wavData) != HeaderSize+len(pcmData) {
		t.Fatalf("expected %d bytes, got %d", HeaderSize+len(pcmData), len(wavData))
	}
	if !bytes.Equal(wavData[0:4], []byte("RIFF")) || !bytes.Equal(wavData[8:12], []byte("WAVE")) {
		t.Error("missing RIFF/WAVE header")
	}
	if !bytes.Equal(wavData[12:16], []byte("fmt ")) || !bytes.Equal(wavData[36:40], []byte("data")) {
		t.Error("missing fmt or data chunk")
	}
	if got := le32(wavData[4:8]); got != uint32(36+len(pcmData)) {
		t.Errorf("file size = %d, want %d", got, 36+len(pcmData))
	}
	if got := le32(wavData[40:44]); got != uint32(len(pcmData)) {
		t.Errorf("data size = %d, want %d", got, len(pcmData))
	}
	if got := le16(wavData[22:24]); got != 2 {
		t.Errorf("channels = %d, want 2", got)
	}
	if got := le32(wavData[24:28]); got != 44100 {
		t.Errorf("sample rate = %d, want 44100", got)
	}
	// 44100 * 2 channels * 2 bytes
	if got := le32(wavData[28:32]); got != 176400 {
		t.Errorf("byte rate = %d, want 176400", got)
	}
	if got := le16(wavData[32:34]); got != 4 {
		t.Errorf("block align = %d, want 4", got)
	}
	if !bytes.Equal(wavData[44:], pcmData) {
		t.Error("PCM data mismatch")
	}
}

func TestWrapRawPCM_EmptyData(t *testing.T) {
	wav := WrapRawPCM(nil, 22050, 1, 16)

	if len(wav) != HeaderSize {
		t.Errorf("WrapRawPCM(nil) length = %d, want %d", len(wav), HeaderSize)
	}
	if got := le32(wav[40:44]); got != 0 {
		t.Errorf("data size = %d, want 0", got)
	}
}

func TestHeader_Streaming(t *testing.T) {
	h := Header(FormatPCM, 48000, 2, 16, StreamingSize)
	if got := le32(h[4:8]); got != StreamingSize {
		t.Errorf("riff size = %#x, want %#x", got, uint32(StreamingSize))
	}
	if got := le32(h[40:44]); got != StreamingSize {
		t.Errorf("data size = %#x, want %#x", got, uint32(StreamingSize))
	}
}

func TestCreateMinimal(t *testing.T) {
	wav := CreateMinimal(100, 44100, 2, 16)

	// 44 header + 100 frames * 2 channels * 2 bytes
	expectedSize := HeaderSize + 100*2*2
	if len(wav) != expectedSize {
		t.Errorf("CreateMinimal(100, 44100, 2, 16) length = %d, want %d", len(wav), expectedSize)
	}
	for i := HeaderSize; i < len(wav); i++ {
		if wav[i] != 0 {
			t.Errorf("CreateMinimal should produce silence, got non-zero at byte %d", i)
			break
		}
	}
}

func TestFloatToInt16(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{2, 32767},
		{-2, -32768},
		{0.5, 16384},
	}
	for _, tt := range tests {
		if got := FloatToInt16(tt.in); got != tt.want {
			t.Errorf("FloatToInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEncodeInt16_Interleaves(t *testing.T) {
	pcm := EncodeInt16([][]float32{{1, 0}, {0, -1}})
	want := []int16{32767, 0, 0, -32767}
	if len(pcm) != len(want)*2 {
		t.Fatalf("len = %d, want %d", len(pcm), len(want)*2)
	}
	for i, w := range want {
		if got := int16(le16(pcm[i*2:])); got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
	if EncodeInt16(nil) != nil {
		t.Error("EncodeInt16(nil) should be nil")
	}
}
