package index

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/DRSN-tech/visual-search/pkg/e"
)

// IdMap — упорядоченные идентификаторы товаров: элемент i соответствует ординалу i индекса.
type IdMap struct {
	ids []string
}

func NewIdMap(ids []string) *IdMap {
	return &IdMap{ids: append([]string(nil), ids...)}
}

func (m *IdMap) Len() int { return len(m.ids) }

// ProductID переводит ординал индекса в идентификатор товара.
func (m *IdMap) ProductID(ordinal int) (string, bool) {
	if ordinal < 0 || ordinal >= len(m.ids) {
		return "", false
	}
	return m.ids[ordinal], true
}

// IDs возвращает копию последовательности.
func (m *IdMap) IDs() []string {
	return append([]string(nil), m.ids...)
}

func (m *IdMap) record(ordinal int, productID string) error {
	if ordinal != len(m.ids) {
		return fmt.Errorf("%w: ordinal %d recorded at position %d", e.ErrIndexCorrupt, ordinal, len(m.ids))
	}
	m.ids = append(m.ids, productID)
	return nil
}

func (m *IdMap) MarshalJSON() ([]byte, error) {
	if m.ids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m.ids)
}

func (m *IdMap) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &m.ids)
}

func (m *IdMap) Save(path string) error {
	const op = "IdMap.Save"

	data, err := json.Marshal(m)
	if err != nil {
		return e.Wrap(op, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

func LoadIdMap(path string) (*IdMap, error) {
	const op = "LoadIdMap"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var m IdMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrIndexCorrupt, err))
	}

	return &m, nil
}
