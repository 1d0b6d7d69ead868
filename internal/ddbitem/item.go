// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package ddbitem

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Item is one raw record as emitted by the scan provider: attribute names in
// document order, each mapped to its decoded type-tagged value.
type Item struct {
	fields *orderedmap.OrderedMap[string, Value]
}

func NewItem() *Item {
	return &Item{fields: orderedmap.New[string, Value]()}
}

// Set adds or replaces an attribute. A replaced attribute keeps its position.
func (it *Item) Set(name string, v Value) {
	it.fields.Set(name, v)
}

func (it *Item) Get(name string) (Value, bool) {
	return it.fields.Get(name)
}

func (it *Item) Len() int {
	return it.fields.Len()
}

// Names returns attribute names in document order.
func (it *Item) Names() []string {
	names := make([]string, 0, it.fields.Len())
	for pair := it.fields.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Each calls fn for every attribute in document order.
func (it *Item) Each(fn func(name string, v Value)) {
	for pair := it.fields.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// DecodeItem decodes one JSON object of type-tagged attributes.
// Attribute failures are reported as *FieldError.
func DecodeItem(raw []byte, policy WrapperPolicy) (*Item, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("item is not a JSON object")
	}

	attrs := orderedmap.New[string, json.RawMessage]()
	if err := attrs.UnmarshalJSON(trimmed); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}

	item := NewItem()
	for pair := attrs.Oldest(); pair != nil; pair = pair.Next() {
		v, err := decodeValue(pair.Value, policy)
		if err != nil {
			return nil, &FieldError{Field: pair.Key, Err: err}
		}
		item.Set(pair.Key, v)
	}
	return item, nil
}

// MarshalJSON renders the item in the provider's wire form, attributes in
// document order.
func (it *Item) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	first := true
	for pair := it.fields.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			b.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(pair.Key)
		if err != nil {
			return nil, err
		}
		v, err := pair.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", pair.Key, err)
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// FieldError locates a wrapper decode failure on a named attribute. Nested
// map attributes produce dotted paths.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("attribute %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Path returns the dotted attribute path down to the failing value.
func (e *FieldError) Path() string {
	path := e.Field
	err := e.Err
	for err != nil {
		if fe, ok := err.(*FieldError); ok {
			path += "." + fe.Field
			err = fe.Err
			continue
		}
		we, ok := err.(*wrapperError)
		if !ok {
			break
		}
		err = we.err
	}
	return path
}
