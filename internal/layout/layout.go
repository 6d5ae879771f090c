// Package layout кодирует раскладку вокселей в формат сохранения
// [{"position":{"x":..,"y":..,"z":..},"color":..}, ...] и обратно,
// а также сжимает, хеширует и экспортирует её в GLB.
package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/annel0/voxel-editor/internal/world"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxLayoutSize предел размера файла раскладки при чтении
const MaxLayoutSize = 64 << 20

const schemaURL = "layout.schema.json"

// Лишние поля записей допускаются и игнорируются
const schemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["position", "color"],
    "properties": {
      "position": {
        "type": "object",
        "required": ["x", "y", "z"],
        "properties": {
          "x": {"type": "number"},
          "y": {"type": "number"},
          "z": {"type": "number"}
        }
      },
      "color": {"type": "integer", "minimum": 0, "maximum": 16777215}
    }
  }
}`

var layoutSchema = jsonschema.MustCompileString(schemaURL, schemaJSON)

// Encode сериализует записи в JSON-массив
func Encode(records []world.Record) ([]byte, error) {
	if records == nil {
		records = []world.Record{}
	}
	return json.Marshal(records)
}

// Write пишет записи в w
func Write(w io.Writer, records []world.Record) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Decode разбирает и проверяет раскладку. Любая запись без position или color,
// с нечисловыми значениями или цветом вне 24 бит даёт ошибку
// world.ErrMalformedSaveRecord. Принадлежность позиций решётке проверяет
// world.ValidateRecords при восстановлении.
func Decode(data []byte) ([]world.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, &world.MalformedRecordError{Index: -1, Reason: "invalid JSON: " + err.Error()}
	}
	if dec.More() {
		return nil, &world.MalformedRecordError{Index: -1, Reason: "trailing data after layout"}
	}

	if err := layoutSchema.Validate(raw); err != nil {
		return nil, schemaError(err)
	}

	var records []world.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &world.MalformedRecordError{Index: -1, Reason: err.Error()}
	}
	return records, nil
}

// Read читает раскладку из r, ограничивая размер MaxLayoutSize
func Read(r io.Reader) ([]world.Record, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxLayoutSize+1))
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	if len(data) > MaxLayoutSize {
		return nil, &world.MalformedRecordError{Index: -1, Reason: "layout too large"}
	}
	return Decode(data)
}

// schemaError переводит ошибку схемы в MalformedRecordError с номером записи
func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &world.MalformedRecordError{Index: -1, Reason: err.Error()}
	}

	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return &world.MalformedRecordError{
		Index:  recordIndex(leaf.InstanceLocation),
		Reason: strings.TrimSpace(fmt.Sprintf("%s %s", leaf.InstanceLocation, leaf.Message)),
	}
}

// recordIndex достаёт номер записи из JSON-указателя вида "/3/position/x"
func recordIndex(location string) int {
	parts := strings.Split(strings.TrimPrefix(location, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return -1
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil {
		return -1
	}
	return idx
}
