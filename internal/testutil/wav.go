// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// WAVBytes returns a silent 16-bit PCM mono WAV file of the given length.
func WAVBytes(sampleRate int, seconds float64) []byte {
	dataSize := uint32(float64(sampleRate)*seconds) * 2

	buf := make([]byte, 0, 44+dataSize)
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, 36+dataSize)
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, 1) // mono
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate*2))
	buf = binary.LittleEndian.AppendUint16(buf, 2)
	buf = binary.LittleEndian.AppendUint16(buf, 16)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, dataSize)
	return append(buf, make([]byte, dataSize)...)
}

// WriteWAV writes a silent WAV file named name into dir and returns its path.
func WriteWAV(t testing.TB, dir, name string, sampleRate int, seconds float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, WAVBytes(sampleRate, seconds), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}
