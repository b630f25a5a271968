package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/annel0/voxelload/internal/vec"
)

// layoutFormatVersion - версия формата снимка
const layoutFormatVersion = 1

// layoutDocument - сериализуемое представление снимка раскладки
type layoutDocument struct {
	Version   int        `json:"version"`
	Positions []vec.Vec3 `json:"positions"`
}

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder
	codecErr    error
)

func initCodec() {
	encoderOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
}

// EncodeLayout сериализует позиции в JSON и сжимает zstd.
// Позиции сортируются снизу вверх, чтобы одинаковые раскладки давали одинаковые байты.
func EncodeLayout(positions []vec.Vec3) ([]byte, error) {
	initCodec()
	if codecErr != nil {
		return nil, fmt.Errorf("storage: инициализация zstd: %w", codecErr)
	}

	sorted := make([]vec.Vec3, len(positions))
	copy(sorted, positions)
	sortPositions(sorted)

	raw, err := json.Marshal(layoutDocument{Version: layoutFormatVersion, Positions: sorted})
	if err != nil {
		return nil, fmt.Errorf("storage: ошибка сериализации раскладки: %w", err)
	}
	return encoder.EncodeAll(raw, nil), nil
}

// DecodeLayout распаковывает снимок, созданный EncodeLayout
func DecodeLayout(data []byte) ([]vec.Vec3, error) {
	initCodec()
	if codecErr != nil {
		return nil, fmt.Errorf("storage: инициализация zstd: %w", codecErr)
	}

	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: ошибка распаковки раскладки: %w", err)
	}

	var doc layoutDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("storage: ошибка десериализации раскладки: %w", err)
	}
	if doc.Version != layoutFormatVersion {
		return nil, fmt.Errorf("storage: неподдерживаемая версия раскладки %d", doc.Version)
	}
	sortPositions(doc.Positions)
	return doc.Positions, nil
}
