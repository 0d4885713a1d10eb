package artifact

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/classifier"
)

// EncodeAll is safe for concurrent use on a shared encoder.
var encoder = mustZstd(zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression)))

// Marshal produces the on-disk bytes for a.
func Marshal(a *Artifact) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to write inconsistent artifact: %w", err)
	}
	enc, err := classifier.Encode(a.Model)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payload{
		Metadata:   a.Metadata,
		Vectorizer: a.Vectorizer.State(),
		Model:      enc,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling artifact payload: %w", err)
	}
	compressed := encoder.EncodeAll(raw, nil)

	buf := make([]byte, HeaderSize, HeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(buf[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(buf[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(len(compressed)))
	binary.LittleEndian.PutUint32(buf[16:20], crc32.ChecksumIEEE(compressed))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(len(raw)))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(a.Metadata.TrainedAt.Unix()))
	return append(buf, compressed...), nil
}

// Write atomically replaces path with the serialized artifact.
func Write(path string, a *Artifact) error {
	data, err := Marshal(a)
	if err != nil {
		return err
	}
	tmp, err := stage(path, data)
	if err != nil {
		return err
	}
	return commit(tmp, path)
}

// WriteMetadata atomically writes the operator-facing JSON companion.
func WriteMetadata(path string, m Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	tmp, err := stage(path, append(data, '\n'))
	if err != nil {
		return err
	}
	return commit(tmp, path)
}

// WriteBundle stages both files before renaming either, so a failure while
// writing leaves the previous pair untouched. The artifact is renamed last
// because it is the file the service loads.
func WriteBundle(artifactPath, metadataPath string, a *Artifact) error {
	data, err := Marshal(a)
	if err != nil {
		return err
	}
	meta, err := json.MarshalIndent(a.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	artifactTmp, err := stage(artifactPath, data)
	if err != nil {
		return err
	}
	metaTmp, err := stage(metadataPath, append(meta, '\n'))
	if err != nil {
		os.Remove(artifactTmp)
		return err
	}
	if err := commit(metaTmp, metadataPath); err != nil {
		os.Remove(artifactTmp)
		return err
	}
	return commit(artifactTmp, artifactPath)
}

// stage writes data to a synced temp file next to path and returns its name.
func stage(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.IO(err, "creating output directory %s", dir)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", apperrors.IO(err, "creating temp file in %s", dir)
	}
	tmp := f.Name()
	fail := func(err error, what string) (string, error) {
		f.Close()
		os.Remove(tmp)
		return "", apperrors.IO(err, "%s %s", what, tmp)
	}
	if _, err := f.Write(data); err != nil {
		return fail(err, "writing")
	}
	if err := f.Sync(); err != nil {
		return fail(err, "syncing")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", apperrors.IO(err, "closing %s", tmp)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return "", apperrors.IO(err, "chmod %s", tmp)
	}
	return tmp, nil
}

func commit(tmp, path string) error {
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return apperrors.IO(err, "renaming %s to %s", tmp, path)
	}
	return nil
}

// mustZstd fails package init on a bad codec option instead of leaving a
// nil coder behind for the first Read or Write.
func mustZstd[T any](coder T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("artifact: zstd codec: %v", err))
	}
	return coder
}
