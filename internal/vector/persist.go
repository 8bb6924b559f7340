package vector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	apperrors "knowledge-server/pkg/errors"
)

// On-disk form: two co-located artifacts per logical path. <path> holds the
// index itself (header plus records, little-endian), <path>.texts.json holds
// the id-to-text mapping as a plain JSON object. Both must come from the same
// save to reload consistently; a missing texts file is tolerated and falls
// back to nil texts, a missing index file is a load error.
//
// Save is not crash-safe atomic. Callers needing atomicity should save to a
// temporary location and rename into place.

var indexMagic = [4]byte{'K', 'S', 'V', 'I'}

const indexFormatVersion uint16 = 1

var metricCodes = map[Metric]uint8{
	MetricCosine:       0,
	MetricL2:           1,
	MetricInnerProduct: 2,
}

func textsPath(path string) string {
	return path + ".texts.json"
}

type indexHeader struct {
	Magic     [4]byte
	Version   uint16
	Metric    uint8
	_         uint8 // padding
	Dimension uint32
	NextID    int64
	Count     uint64
}

// Save writes the index and its text mapping to disk
func (x *Index) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := indexHeader{
		Magic:     indexMagic,
		Version:   indexFormatVersion,
		Metric:    metricCodes[x.metric],
		Dimension: uint32(x.dimension),
		NextID:    x.nextID,
		Count:     uint64(len(x.vectors)),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write index header: %w", err)
	}
	for id, v := range x.vectors {
		if err := binary.Write(w, binary.LittleEndian, id); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush index file: %w", err)
	}

	texts := make(map[string]string, len(x.texts))
	for id, text := range x.texts {
		texts[strconv.FormatInt(id, 10)] = text
	}
	data, err := json.Marshal(texts)
	if err != nil {
		return fmt.Errorf("failed to encode text mapping: %w", err)
	}
	if err := os.WriteFile(textsPath(path), data, 0o644); err != nil {
		return fmt.Errorf("failed to write text mapping: %w", err)
	}

	x.logger.Debug("Vector index saved",
		zap.String("path", path),
		zap.Int("vectors", len(x.vectors)),
	)
	return nil
}

// Load replaces the index contents with a previously saved artifact. The
// stored dimension must match this index's dimension exactly; loading never
// truncates or pads vectors. The stored metric is adopted.
func (x *Index) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header indexHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to read index header: %w", err)
	}
	if header.Magic != indexMagic {
		return fmt.Errorf("not a vector index file: %s", path)
	}
	if header.Version != indexFormatVersion {
		return fmt.Errorf("unsupported index format version %d", header.Version)
	}
	if int(header.Dimension) != x.dimension {
		return apperrors.NewDimensionMismatch(x.dimension, int(header.Dimension))
	}
	metric, ok := metricFromCode(header.Metric)
	if !ok {
		return fmt.Errorf("unknown metric code %d", header.Metric)
	}

	vectors := make(map[int64][]float32, header.Count)
	for i := uint64(0); i < header.Count; i++ {
		var id int64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}
		v := make([]float32, header.Dimension)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}
		vectors[id] = v
	}

	texts := make(map[int64]string)
	if data, err := os.ReadFile(textsPath(path)); err == nil {
		raw := make(map[string]string)
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to decode text mapping: %w", err)
		}
		for key, text := range raw {
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid text mapping key %q: %w", key, err)
			}
			texts[id] = text
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read text mapping: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.metric = metric
	x.vectors = vectors
	x.texts = texts
	x.nextID = header.NextID

	x.logger.Debug("Vector index loaded",
		zap.String("path", path),
		zap.Int("vectors", len(vectors)),
	)
	return nil
}

func metricFromCode(code uint8) (Metric, bool) {
	for m, c := range metricCodes {
		if c == code {
			return m, true
		}
	}
	return "", false
}
