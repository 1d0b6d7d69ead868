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
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies which DynamoDB type tag wrapped a value.
type Kind uint8

const (
	// KindBare is a value that arrived without a type wrapper.
	KindBare Kind = iota
	KindString
	KindNumber
	KindBinary
	KindBool
	KindNull
	KindList
	KindMap
	KindStringSet
	KindNumberSet
	KindBinarySet
)

var kindTags = [...]string{
	KindBare:      "",
	KindString:    "S",
	KindNumber:    "N",
	KindBinary:    "B",
	KindBool:      "BOOL",
	KindNull:      "NULL",
	KindList:      "L",
	KindMap:       "M",
	KindStringSet: "SS",
	KindNumberSet: "NS",
	KindBinarySet: "BS",
}

var tagKinds = map[string]Kind{
	"S":    KindString,
	"N":    KindNumber,
	"B":    KindBinary,
	"BOOL": KindBool,
	"NULL": KindNull,
	"L":    KindList,
	"M":    KindMap,
	"SS":   KindStringSet,
	"NS":   KindNumberSet,
	"BS":   KindBinarySet,
}

// Tag returns the wire tag, or "" for KindBare.
func (k Kind) Tag() string {
	if int(k) < len(kindTags) {
		return kindTags[k]
	}
	return ""
}

func (k Kind) String() string {
	if k == KindBare {
		return "bare"
	}
	return k.Tag()
}

// WrapperPolicy decides what happens when a type wrapper is not exactly
// one known tag.
type WrapperPolicy uint8

const (
	// PolicyStrict rejects wrappers with zero or several keys, or an unknown tag.
	PolicyStrict WrapperPolicy = iota
	// PolicyFirstKey takes the first key in document order and passes an
	// unknown tag's payload through unwrapped.
	PolicyFirstKey
)

// ParseWrapperPolicy accepts "strict" and "first".
func ParseWrapperPolicy(s string) (WrapperPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return PolicyStrict, nil
	case "first", "first-key":
		return PolicyFirstKey, nil
	default:
		return PolicyStrict, fmt.Errorf("unknown wrapper policy %q (want strict or first)", s)
	}
}

func (p WrapperPolicy) String() string {
	if p == PolicyFirstKey {
		return "first"
	}
	return "strict"
}

// Value is one attribute value decoded from its type-tagged wrapper.
type Value struct {
	Kind Kind
	// Str holds S, N and B payloads. N keeps the provider's decimal string and
	// B keeps the base64 text.
	Str  string
	Bool bool
	List []Value
	Map  *Item
	// Set holds SS, NS and BS members in provider order.
	Set  []string
	Bare any
}

// wrapperError is a decode failure local to one attribute; the caller adds
// the field name.
type wrapperError struct {
	reason string
	err    error
}

func (e *wrapperError) Error() string {
	if e.err != nil {
		return e.reason + ": " + e.err.Error()
	}
	return e.reason
}

func (e *wrapperError) Unwrap() error { return e.err }

func decodeValue(raw json.RawMessage, policy WrapperPolicy) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		bare, err := decodeBare(trimmed)
		if err != nil {
			return Value{}, &wrapperError{reason: "invalid bare value", err: err}
		}
		return Value{Kind: KindBare, Bare: bare}, nil
	}

	wrapper := orderedmap.New[string, json.RawMessage]()
	if err := wrapper.UnmarshalJSON(trimmed); err != nil {
		return Value{}, &wrapperError{reason: "invalid type wrapper", err: err}
	}

	switch n := wrapper.Len(); {
	case n == 0:
		return Value{}, &wrapperError{reason: "empty type wrapper"}
	case n > 1 && policy == PolicyStrict:
		return Value{}, &wrapperError{reason: fmt.Sprintf("type wrapper has %d keys", n)}
	}

	pair := wrapper.Oldest()
	kind, known := tagKinds[pair.Key]
	if !known {
		if policy == PolicyStrict {
			return Value{}, &wrapperError{reason: fmt.Sprintf("unknown type tag %q", pair.Key)}
		}
		bare, err := decodeBare(pair.Value)
		if err != nil {
			return Value{}, &wrapperError{reason: "invalid wrapped value", err: err}
		}
		return Value{Kind: KindBare, Bare: bare}, nil
	}

	return decodeTagged(kind, pair.Value, policy)
}

func decodeTagged(kind Kind, payload json.RawMessage, policy WrapperPolicy) (Value, error) {
	v := Value{Kind: kind}
	var err error
	switch kind {
	case KindString, KindBinary:
		err = json.Unmarshal(payload, &v.Str)
	case KindNumber:
		if err = json.Unmarshal(payload, &v.Str); err != nil {
			// Some emitters write N as a bare JSON number.
			var num json.Number
			if numErr := json.Unmarshal(payload, &num); numErr == nil {
				v.Str, err = num.String(), nil
			}
		}
	case KindBool:
		err = json.Unmarshal(payload, &v.Bool)
	case KindNull:
	case KindList:
		var elems []json.RawMessage
		if err = json.Unmarshal(payload, &elems); err == nil {
			v.List = make([]Value, 0, len(elems))
			for i, elem := range elems {
				ev, elemErr := decodeValue(elem, policy)
				if elemErr != nil {
					return Value{}, &wrapperError{reason: fmt.Sprintf("list element %d", i), err: elemErr}
				}
				v.List = append(v.List, ev)
			}
		}
	case KindMap:
		v.Map, err = DecodeItem(payload, policy)
	case KindStringSet, KindNumberSet, KindBinarySet:
		err = json.Unmarshal(payload, &v.Set)
	}
	if err != nil {
		return Value{}, &wrapperError{reason: fmt.Sprintf("invalid %s payload", kind.Tag()), err: err}
	}
	return v, nil
}

func decodeBare(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Unwrap returns the plain value carried inside the wrapper. Lists and maps
// are unwrapped recursively; sets become string slices.
func (v Value) Unwrap() any {
	switch v.Kind {
	case KindString, KindNumber, KindBinary:
		return v.Str
	case KindBool:
		return v.Bool
	case KindNull:
		return nil
	case KindList:
		out := make([]any, len(v.List))
		for i, elem := range v.List {
			out[i] = elem.Unwrap()
		}
		return out
	case KindMap:
		if v.Map == nil {
			return Flatten(NewItem())
		}
		return Flatten(v.Map)
	case KindStringSet, KindNumberSet, KindBinarySet:
		out := make([]string, len(v.Set))
		copy(out, v.Set)
		return out
	default:
		return v.Bare
	}
}

// MarshalJSON renders the value in the provider's type-tagged wire form.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == KindBare {
		return json.Marshal(v.Bare)
	}

	var payload any
	switch v.Kind {
	case KindString, KindNumber, KindBinary:
		payload = v.Str
	case KindBool:
		payload = v.Bool
	case KindNull:
		payload = true
	case KindList:
		list := v.List
		if list == nil {
			list = []Value{}
		}
		payload = list
	case KindMap:
		m := v.Map
		if m == nil {
			m = NewItem()
		}
		payload = m
	case KindStringSet, KindNumberSet, KindBinarySet:
		set := v.Set
		if set == nil {
			set = []string{}
		}
		payload = set
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	b.WriteString(`{"`)
	b.WriteString(v.Kind.Tag())
	b.WriteString(`":`)
	b.Write(body)
	b.WriteByte('}')
	return b.Bytes(), nil
}
