// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package jsonval decodes JSON documents into an order-preserving tree.
// encoding/json (and map[string]any decoding generally) loses object key
// order; dotted-path resolution against a response payload doesn't need
// order, but re-serializing a JSON_OUTPUT variable for display does, so the
// whole tree is kept ordered rather than bouncing through a map.
package jsonval

import (
	"bytes"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/packetd/probed/errs"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Pair is one key/value entry of an Object node, in source order.
type Pair struct {
	Key   string
	Value Node
}

// Node is one JSON value: object, array or primitive.
type Node struct {
	Kind   Kind
	Bool   bool
	Num    string // preserved numeric literal text, e.g. "773"
	Str    string
	Array  []Node
	Object []Pair
}

// Parse decodes a JSON document, failing with a ParseError on malformed input.
func Parse(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	n, err := parseValue(dec)
	if err != nil {
		return Node{}, errs.Parse("malformed JSON: %v", err)
	}
	return n, nil
}

func parseValue(dec *json.Decoder) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return Node{}, err
	}
	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (Node, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case json.Delim('{'):
			return parseObject(dec)
		case json.Delim('['):
			return parseArray(dec)
		}
	case json.Number:
		return Node{Kind: KindNumber, Num: t.String()}, nil
	case string:
		return Node{Kind: KindString, Str: t}, nil
	case bool:
		return Node{Kind: KindBool, Bool: t}, nil
	case nil:
		return Node{Kind: KindNull}, nil
	}
	return Node{}, errs.Parse("unexpected JSON token %v", tok)
}

func parseObject(dec *json.Decoder) (Node, error) {
	obj := Node{Kind: KindObject}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Node{}, err
		}
		key, _ := keyTok.(string)

		val, err := parseValue(dec)
		if err != nil {
			return Node{}, err
		}
		obj.Object = append(obj.Object, Pair{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil { // consume closing '}'
		return Node{}, err
	}
	return obj, nil
}

func parseArray(dec *json.Decoder) (Node, error) {
	arr := Node{Kind: KindArray}
	for dec.More() {
		val, err := parseValue(dec)
		if err != nil {
			return Node{}, err
		}
		arr.Array = append(arr.Array, val)
	}
	if _, err := dec.Token(); err != nil { // consume closing ']'
		return Node{}, err
	}
	return arr, nil
}

// Lookup resolves a single path segment: an object key, or an array index.
func (n Node) Lookup(seg string) (Node, bool) {
	switch n.Kind {
	case KindObject:
		for _, p := range n.Object {
			if p.Key == seg {
				return p.Value, true
			}
		}
	case KindArray:
		idx, err := strconv.Atoi(seg)
		if err == nil && idx >= 0 && idx < len(n.Array) {
			return n.Array[idx], true
		}
	}
	return Node{}, false
}

// Path resolves a dotted path (already split on '.') against the document.
func (n Node) Path(segs []string) (Node, bool) {
	cur := n
	for _, seg := range segs {
		next, ok := cur.Lookup(seg)
		if !ok {
			return Node{}, false
		}
		cur = next
	}
	return cur, true
}

// String renders the leaf node's textual value, used for both dotted-path
// substitution and printing a whole subtree.
func (n Node) String() string {
	switch n.Kind {
	case KindString:
		return n.Str
	case KindNumber:
		return n.Num
	case KindBool:
		if n.Bool {
			return "true"
		}
		return "false"
	case KindNull:
		return ""
	case KindArray, KindObject:
		var buf bytes.Buffer
		n.encode(&buf)
		return buf.String()
	}
	return ""
}

func (n Node) encode(buf *bytes.Buffer) {
	switch n.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if n.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(n.Num)
	case KindString:
		b, _ := json.Marshal(n.Str)
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range n.Array {
			if i > 0 {
				buf.WriteByte(',')
			}
			e.encode(buf)
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, p := range n.Object {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(p.Key)
			buf.Write(kb)
			buf.WriteByte(':')
			p.Value.encode(buf)
		}
		buf.WriteByte('}')
	}
}
