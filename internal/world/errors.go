package world

import (
	"errors"
	"fmt"
)

// ErrMalformedSaveRecord запись сохранённой раскладки не проходит проверку.
// Загрузка целиком отменяется, состояние хранилища не меняется.
var ErrMalformedSaveRecord = errors.New("malformed save record")

// MalformedRecordError уточняет, какая запись и почему отвергнута
type MalformedRecordError struct {
	Index  int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", ErrMalformedSaveRecord, e.Reason)
	}
	return fmt.Sprintf("%s: record %d: %s", ErrMalformedSaveRecord, e.Index, e.Reason)
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrMalformedSaveRecord)
func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedSaveRecord
}
