package vosk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/harunnryd/voskstream/pkg/errorsx"
)

// InvalidJSONPayload is emitted in place of a final result that cannot be parsed.
const InvalidJSONPayload = `{"error": "invalid JSON"}`

const (
	resultKey = "result"
	confKey   = "conf"
	textKey   = "text"
)

var nullJSON = []byte("null")

// Word is one entry of the final result list.
type Word struct {
	Word  string   `json:"word"`
	Conf  *float64 `json:"conf,omitempty"`
	Start float64  `json:"start"`
	End   float64  `json:"end"`
}

type field struct {
	key   string
	value json.RawMessage
}

// AggregatedResult is the final recognizer message with the mean word confidence attached.
// Original fields keep their order and their exact values.
type AggregatedResult struct {
	Conf   float64
	fields []field
}

// Aggregate parses the final message and computes conf. Entries of "result" without a
// numeric conf are left out of the mean; a missing or non-list "result" gives 0.0.
func Aggregate(raw []byte) (*AggregatedResult, error) {
	fields, err := parseObject(raw)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("vosk: final message: %w", err), errorsx.ReasonMalformedFinal)
	}
	res := &AggregatedResult{fields: fields}
	value, _ := res.Field(resultKey)
	res.Conf = meanConfidence(value)
	res.set(confKey, formatConf(res.Conf))
	return res, nil
}

func parseObject(raw []byte) ([]field, error) {
	if !json.Valid(raw) {
		return nil, errors.New("invalid JSON")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("not a JSON object")
	}

	var fields []field
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, value); err != nil {
			return nil, err
		}
		value = compact.Bytes()
		// Repeated keys keep their first position and their last value.
		if i, ok := index[key]; ok {
			fields[i].value = value
			continue
		}
		index[key] = len(fields)
		fields = append(fields, field{key: key, value: value})
	}
	return fields, nil
}

func meanConfidence(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return 0
	}
	var sum float64
	var n int
	for _, entry := range entries {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(entry, &obj); err != nil || obj == nil {
			continue
		}
		c, ok := obj[confKey]
		if !ok || bytes.Equal(c, nullJSON) {
			continue
		}
		var v float64
		if err := json.Unmarshal(c, &v); err != nil {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return 0
	}
	return roundTo(mean, 3)
}

// roundTo rounds the exact binary value half to even, so 0.2345 (stored just below the
// tie) gives 0.234 and the tie 0.8125 gives 0.812.
func roundTo(v float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return 0
	}
	return r
}

// formatConf always renders a decimal point so 0 prints as 0.0.
func formatConf(v float64) json.RawMessage {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return json.RawMessage(s)
}

func (r *AggregatedResult) set(key string, value json.RawMessage) {
	for i := range r.fields {
		if r.fields[i].key == key {
			r.fields[i].value = value
			return
		}
	}
	r.fields = append(r.fields, field{key: key, value: value})
}

// Field returns the raw JSON value stored under key.
func (r *AggregatedResult) Field(key string) (json.RawMessage, bool) {
	for _, f := range r.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return nil, false
}

// Keys lists the top-level keys in output order.
func (r *AggregatedResult) Keys() []string {
	out := make([]string, 0, len(r.fields))
	for _, f := range r.fields {
		out = append(out, f.key)
	}
	return out
}

// Text returns the "text" field, or "" when it is absent or not a string.
func (r *AggregatedResult) Text() string {
	raw, ok := r.Field(textKey)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Words decodes the "result" list. A missing list yields no words.
func (r *AggregatedResult) Words() ([]Word, error) {
	raw, ok := r.Field(resultKey)
	if !ok || bytes.Equal(raw, nullJSON) {
		return nil, nil
	}
	var words []Word
	if err := json.Unmarshal(raw, &words); err != nil {
		return nil, fmt.Errorf("vosk: decode words: %w", err)
	}
	return words, nil
}

func (r *AggregatedResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalString(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(f.value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *AggregatedResult) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}

func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
