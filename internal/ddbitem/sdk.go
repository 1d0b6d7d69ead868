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
	"encoding/base64"
	"slices"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// FromSDK converts an item returned by the DynamoDB SDK. The SDK hands back
// an unordered map, so attributes are ordered by name.
func FromSDK(attrs map[string]types.AttributeValue) *Item {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	slices.Sort(names)

	item := NewItem()
	for _, name := range names {
		item.Set(name, ValueFromSDK(attrs[name]))
	}
	return item
}

// ValueFromSDK converts one SDK attribute value. Binary payloads are base64
// encoded to match the provider's JSON output.
func ValueFromSDK(av types.AttributeValue) Value {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return Value{Kind: KindString, Str: v.Value}
	case *types.AttributeValueMemberN:
		return Value{Kind: KindNumber, Str: v.Value}
	case *types.AttributeValueMemberB:
		return Value{Kind: KindBinary, Str: base64.StdEncoding.EncodeToString(v.Value)}
	case *types.AttributeValueMemberBOOL:
		return Value{Kind: KindBool, Bool: v.Value}
	case *types.AttributeValueMemberNULL:
		return Value{Kind: KindNull}
	case *types.AttributeValueMemberL:
		list := make([]Value, len(v.Value))
		for i, elem := range v.Value {
			list[i] = ValueFromSDK(elem)
		}
		return Value{Kind: KindList, List: list}
	case *types.AttributeValueMemberM:
		return Value{Kind: KindMap, Map: FromSDK(v.Value)}
	case *types.AttributeValueMemberSS:
		return Value{Kind: KindStringSet, Set: slices.Clone(v.Value)}
	case *types.AttributeValueMemberNS:
		return Value{Kind: KindNumberSet, Set: slices.Clone(v.Value)}
	case *types.AttributeValueMemberBS:
		set := make([]string, len(v.Value))
		for i, b := range v.Value {
			set[i] = base64.StdEncoding.EncodeToString(b)
		}
		return Value{Kind: KindBinarySet, Set: set}
	default:
		return Value{Kind: KindNull}
	}
}
