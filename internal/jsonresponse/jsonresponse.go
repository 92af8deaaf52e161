// Package jsonresponse converts between JSON text and response values.
//
// Strings read from JSON carry the JSON-source mark, so arguments and
// variables can later be read as enums or IDs. Numbers which fit a 32-bit
// signed integer become Int, every other number becomes Float.
package jsonresponse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	json "github.com/goccy/go-json"

	response "github.com/hanpama/gqlservice/internal/response"
)

// Parse reads a single JSON value.
func Parse(data []byte) (response.Value, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a single JSON value from r. Trailing data is an error.
func Decode(r io.Reader) (response.Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	p := &parser{}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if !p.done {
				return response.Value{}, io.ErrUnexpectedEOF
			}
			return p.result, nil
		}
		if err != nil {
			return response.Value{}, err
		}
		if p.done {
			return response.Value{}, errors.New("jsonresponse: unexpected data after value")
		}
		if err := p.token(tok); err != nil {
			return response.Value{}, err
		}
	}
}

type frame struct {
	value response.Value
	key   string
	// hasKey is set between a member name and its value.
	hasKey bool
}

type parser struct {
	stack  []frame
	result response.Value
	done   bool
}

func (p *parser) token(tok json.Token) error {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return p.open(response.NewMap(0))
		case '[':
			return p.open(response.NewList(0))
		default:
			top := p.stack[len(p.stack)-1]
			p.stack = p.stack[:len(p.stack)-1]
			if len(p.stack) == 0 {
				p.result, p.done = top.value, true
			}
			return nil
		}
	case string:
		if n := len(p.stack); n > 0 {
			top := &p.stack[n-1]
			if top.value.Type() == response.Map && !top.hasKey {
				top.key, top.hasKey = v, true
				return nil
			}
		}
		return p.add(response.NewString(v).FromJSON())
	case bool:
		return p.add(response.NewBoolean(v))
	case json.Number:
		return p.add(number(string(v)))
	case float64:
		return p.add(number(strconv.FormatFloat(v, 'g', -1, 64)))
	case nil:
		return p.add(response.Value{})
	}
	return fmt.Errorf("jsonresponse: unexpected token %v", tok)
}

func number(text string) response.Value {
	if i, err := strconv.ParseInt(text, 10, 32); err == nil {
		return response.NewInt(int(i))
	}
	f, _ := strconv.ParseFloat(text, 64)
	return response.NewFloat(f)
}

// open adds a container to its parent and makes it the current one. The
// root container becomes the result when it is closed.
func (p *parser) open(container response.Value) error {
	if len(p.stack) > 0 {
		if err := p.add(container); err != nil {
			return err
		}
	}
	p.stack = append(p.stack, frame{value: container})
	return nil
}

func (p *parser) add(v response.Value) error {
	n := len(p.stack)
	if n == 0 {
		p.result, p.done = v, true
		return nil
	}
	top := &p.stack[n-1]
	if top.value.Type() == response.List {
		top.value.Append(v)
		return nil
	}
	if !top.value.Emplace(top.key, v) {
		return fmt.Errorf("jsonresponse: duplicate member name: %s", top.key)
	}
	top.key, top.hasKey = "", false
	return nil
}

// Marshal encodes v as JSON.
func Marshal(v response.Value) ([]byte, error) {
	w := NewWriter()
	response.WriteValue(w, v)
	return w.Bytes()
}

// MarshalStream encodes the tokens of s without building a Value.
func MarshalStream(s response.Stream) ([]byte, error) {
	w := NewWriter()
	s.Visit(w)
	return w.Bytes()
}

// Encode writes the JSON form of v to out.
func Encode(out io.Writer, v response.Value) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

type level struct {
	object bool
	first  bool
}

// Writer is a response.Writer producing JSON text. The first encoding
// error is kept and reported by Bytes.
type Writer struct {
	buf    []byte
	levels []level
	err    error
}

var _ response.Writer = (*Writer)(nil)

func NewWriter() *Writer { return &Writer{} }

// Bytes returns the encoded text.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if len(w.levels) != 0 {
		return nil, errors.New("jsonresponse: unterminated object or array")
	}
	return w.buf, nil
}

// value separates array items. Object members are separated by AddMember.
func (w *Writer) value() {
	n := len(w.levels)
	if n == 0 || w.levels[n-1].object {
		return
	}
	if !w.levels[n-1].first {
		w.buf = append(w.buf, ',')
	}
	w.levels[n-1].first = false
}

func (w *Writer) open(object bool, delim byte) {
	w.value()
	w.buf = append(w.buf, delim)
	w.levels = append(w.levels, level{object: object, first: true})
}

func (w *Writer) close(delim byte) {
	if len(w.levels) == 0 {
		w.fail(errors.New("jsonresponse: unbalanced end token"))
		return
	}
	w.levels = w.levels[:len(w.levels)-1]
	w.buf = append(w.buf, delim)
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) marshal(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.fail(err)
		w.buf = append(w.buf, "null"...)
		return
	}
	w.buf = append(w.buf, data...)
}

func (w *Writer) StartObject() { w.open(true, '{') }
func (w *Writer) EndObject() { w.close('}') }
func (w *Writer) StartArray() { w.open(false, '[') }
func (w *Writer) EndArray() { w.close(']') }
func (w *Writer) Reserve(int) {}

func (w *Writer) AddMember(name string) {
	n := len(w.levels)
	if n == 0 || !w.levels[n-1].object {
		w.fail(fmt.Errorf("jsonresponse: member %s outside an object", name))
		return
	}
	if !w.levels[n-1].first {
		w.buf = append(w.buf, ',')
	}
	w.levels[n-1].first = false
	w.marshal(name)
	w.buf = append(w.buf, ':')
}

func (w *Writer) Null() {
	w.value()
	w.buf = append(w.buf, "null"...)
}

func (w *Writer) String(s string) {
	w.value()
	w.marshal(s)
}

func (w *Writer) Bool(b bool) {
	w.value()
	w.buf = strconv.AppendBool(w.buf, b)
}

func (w *Writer) Int(i int) {
	w.value()
	w.buf = strconv.AppendInt(w.buf, int64(i), 10)
}

func (w *Writer) Float(f float64) {
	w.value()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		w.fail(fmt.Errorf("jsonresponse: unsupported float %v", f))
		w.buf = append(w.buf, "null"...)
		return
	}
	w.marshal(f)
}

func (w *Writer) Enum(name string) { w.String(name) }
func (w *Writer) ID(id response.IDType) { w.String(id.String()) }

// Value writes an opaque value. Custom payloads are encoded with their
// MarshalJSON method when they have one.
func (w *Writer) Value(v response.Value) {
	switch v.Type() {
	case response.Scalar:
		response.WriteValue(w, v.AsScalar())
	case response.Custom:
		w.value()
		w.marshal(v.AsCustom())
	default:
		response.WriteValue(w, v)
	}
}
