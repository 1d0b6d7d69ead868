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

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FlatRecord maps attribute names to unwrapped values, in the order the
// attributes appeared in the raw item.
type FlatRecord struct {
	fields *orderedmap.OrderedMap[string, any]
}

// Flatten drops the type tags from every attribute of it. Field names and
// their order are kept exactly.
func Flatten(it *Item) *FlatRecord {
	rec := NewFlatRecord()
	it.Each(func(name string, v Value) {
		rec.Set(name, v.Unwrap())
	})
	return rec
}

func NewFlatRecord() *FlatRecord {
	return &FlatRecord{fields: orderedmap.New[string, any]()}
}

// Set adds or replaces a field. A replaced field keeps its position.
func (r *FlatRecord) Set(name string, v any) *FlatRecord {
	r.fields.Set(name, v)
	return r
}

func (r *FlatRecord) Get(name string) (any, bool) {
	return r.fields.Get(name)
}

func (r *FlatRecord) Len() int {
	return r.fields.Len()
}

// Names returns field names in insertion order.
func (r *FlatRecord) Names() []string {
	names := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// MarshalJSON renders the record as a plain JSON object, fields in order.
func (r *FlatRecord) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	first := true
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			b.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(pair.Key)
		if err != nil {
			return nil, err
		}
		v, err := marshalPlain(pair.Value)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func marshalPlain(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}
