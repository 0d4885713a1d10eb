package artifact

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"os"

	"github.com/klauspost/compress/zstd"

	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/features"
)

var decoder = mustZstd(zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxPayloadSize), zstd.WithDecoderConcurrency(1)))

// Read loads and fully validates the artifact at path. Filesystem errors
// wrap ErrIO (os.ErrNotExist stays reachable); anything wrong with the
// contents wraps ErrArtifactCorrupt.
func Read(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.IO(err, "reading artifact %s", path)
	}
	return Unmarshal(data)
}

// Unmarshal parses bytes produced by Marshal.
func Unmarshal(data []byte) (*Artifact, error) {
	if len(data) < HeaderSize {
		return nil, apperrors.Corrupt("file is %d bytes, shorter than the %d-byte header", len(data), HeaderSize)
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != MagicBytes {
		return nil, apperrors.Corrupt("bad magic bytes %x", magic)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != FormatVersion {
		return nil, apperrors.Corrupt("unsupported format version %d", v)
	}
	size := binary.LittleEndian.Uint64(data[8:16])
	body := data[HeaderSize:]
	if size != uint64(len(body)) {
		return nil, apperrors.Corrupt("header declares %d payload bytes, found %d", size, len(body))
	}
	if sum := crc32.ChecksumIEEE(body); sum != binary.LittleEndian.Uint32(data[16:20]) {
		return nil, apperrors.Corrupt("checksum mismatch")
	}
	rawSize := binary.LittleEndian.Uint32(data[20:24])
	if rawSize > maxPayloadSize {
		return nil, apperrors.Corrupt("payload of %d bytes exceeds limit", rawSize)
	}
	raw, err := decoder.DecodeAll(body, make([]byte, 0, rawSize))
	if err != nil {
		return nil, apperrors.Corrupt("decompressing payload: %v", err)
	}

	var p payload
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&p); err != nil {
		return nil, apperrors.Corrupt("parsing payload: %v", err)
	}
	vec, err := features.FromState(p.Vectorizer)
	if err != nil {
		return nil, apperrors.Corrupt("feature space: %v", err)
	}
	model, err := classifier.Decode(p.Model)
	if err != nil {
		return nil, apperrors.Corrupt("model: %v", err)
	}
	a := &Artifact{Metadata: p.Metadata, Vectorizer: vec, Model: model}
	if err := a.Validate(); err != nil {
		return nil, apperrors.Corrupt("%v", err)
	}
	return a, nil
}

// ReadMetadata reads the JSON companion written by WriteMetadata.
func ReadMetadata(path string) (Metadata, error) {
	var m Metadata
	data, err := os.ReadFile(path)
	if err != nil {
		return m, apperrors.IO(err, "reading metadata %s", path)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, apperrors.Corrupt("parsing metadata %s: %v", path, err)
	}
	return m, nil
}
