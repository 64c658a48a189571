package schema

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Serialize converts a document to indented JSON. The output is deterministic:
// the same document always produces the same bytes, which downstream consumers
// rely on for caching and change detection.
func Serialize(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("document cannot be nil")
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize document: %w", err)
	}

	return data, nil
}

// Deserialize parses serialized document bytes back into a Document.
func Deserialize(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("document data cannot be empty")
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to deserialize document: %w", err)
	}

	return &doc, nil
}

// Compress gzips serialized document bytes at the best compression level.
// Compression happens once per run, after assembly, so the level is not a
// throughput concern.
func Compress(data []byte) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("data cannot be nil")
	}
	if len(data) == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("data cannot be nil")
	}
	if len(data) == 0 {
		return []byte{}, nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress data: %w", err)
	}

	return decompressed, nil
}

// WriteToFile serializes a document and writes it to path, creating the parent
// directory if absent.
func WriteToFile(doc *Document, path string) error {
	if path == "" {
		return fmt.Errorf("output path cannot be empty")
	}

	data, err := Serialize(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write document to %s: %w", path, err)
	}

	return nil
}

// ReadFromFile loads a serialized document, transparently handling the
// gzip-compressed twin produced by compressed runs.
func ReadFromFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}

	if filepath.Ext(path) == ".gz" {
		data, err = Decompress(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress document %s: %w", path, err)
		}
	}

	return Deserialize(data)
}
