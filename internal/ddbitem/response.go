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
	"errors"
	"fmt"

	"github.com/cardinalhq/ddbexport/internal/exporterr"
)

// Page is one decoded scan response line.
type Page struct {
	Items []*Item
	// Rejected holds one *exporterr.MalformedRecordError per item that was
	// skipped. The remaining items of the page are still usable.
	Rejected     []error
	Count        int
	ScannedCount int
}

type wirePage struct {
	Items        []json.RawMessage `json:"Items"`
	Count        int               `json:"Count"`
	ScannedCount int               `json:"ScannedCount"`
}

// ParseResponse decodes one provider output line. A line that is not a JSON
// object returns a *exporterr.MalformedRecordError and no page. A line with
// no Items array is a valid, empty page.
func ParseResponse(line []byte, lineNo int, policy WrapperPolicy) (*Page, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &exporterr.MalformedRecordError{Line: lineNo, Reason: "provider output is not a JSON object"}
	}

	var wp wirePage
	if err := json.Unmarshal(trimmed, &wp); err != nil {
		return nil, &exporterr.MalformedRecordError{Line: lineNo, Reason: "invalid provider response", Err: err}
	}

	page := &Page{
		Items:        make([]*Item, 0, len(wp.Items)),
		Count:        wp.Count,
		ScannedCount: wp.ScannedCount,
	}
	for i, raw := range wp.Items {
		item, err := DecodeItem(raw, policy)
		if err != nil {
			page.Rejected = append(page.Rejected, rejection(lineNo, i, err))
			continue
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

func rejection(lineNo, index int, err error) error {
	mre := &exporterr.MalformedRecordError{
		Line:   lineNo,
		Reason: fmt.Sprintf("item %d", index),
		Err:    err,
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		mre.Field = fe.Path()
		mre.Err = fe.Err
	}
	return mre
}

// EncodePage renders items as one provider-shaped response line, without the
// trailing newline.
func EncodePage(items []*Item, scanned int) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(`{"Items":[`)
	for i, it := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		raw, err := it.MarshalJSON()
		if err != nil {
			return nil, err
		}
		b.Write(raw)
	}
	fmt.Fprintf(&b, `],"Count":%d,"ScannedCount":%d}`, len(items), scanned)
	return b.Bytes(), nil
}
