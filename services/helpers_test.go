package services

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeWAV writes a PCM WAV file with dataSize bytes of silence
func writeWAV(t *testing.T, dir, name string, dataSize int) string {
	t.Helper()

	header := make([]byte, 44)
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(36+dataSize))
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1)     // PCM
	binary.LittleEndian.PutUint16(header[22:], 1)     // mono
	binary.LittleEndian.PutUint32(header[24:], 16000) // sample rate
	binary.LittleEndian.PutUint32(header[28:], 32000) // byte rate
	binary.LittleEndian.PutUint16(header[32:], 2)     // block align
	binary.LittleEndian.PutUint16(header[34:], 16)    // bits per sample
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(dataSize))

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, append(header, make([]byte, dataSize)...), 0644))
	return path
}

// writeMP3 writes a file starting with an ID3v2 header
func writeMP3(t *testing.T, dir, name string) string {
	t.Helper()
	content := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 128)...)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

type fakeClipboard struct {
	mu    sync.Mutex
	text  string
	calls int
}

func (f *fakeClipboard) WriteText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.text = text
	return nil
}

func (f *fakeClipboard) Contents() (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.calls
}
