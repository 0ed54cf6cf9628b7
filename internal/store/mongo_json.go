package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/datatypes"
)

// jsonToRawValue 요소 payload를 BSON 값으로 저장 (Mixed 타입과 동일하게 조회 가능).
// Extended JSON 해석 없이 키 순서와 숫자 표현을 그대로 보존
func jsonToRawValue(data datatypes.JSON) (bson.RawValue, error) {
	if len(data) == 0 {
		return bson.RawValue{Type: bson.TypeNull}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	value, err := decodeJSONValue(dec)
	if err != nil {
		return bson.RawValue{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return bson.RawValue{}, errors.New("trailing data after element payload")
	}

	raw, err := bson.Marshal(bson.D{{Key: "v", Value: value}})
	if err != nil {
		return bson.RawValue{}, err
	}
	return bson.Raw(raw).Lookup("v"), nil
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			doc := bson.D{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := keyTok.(string)
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				doc = append(doc, bson.E{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return doc, nil
		case '[':
			arr := bson.A{}
			for dec.More() {
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", v)
	case json.Number:
		return jsonNumberToBSON(v), nil
	default:
		// string, bool, nil
		return v, nil
	}
}

// jsonNumberToBSON 정수는 int64, 왕복해도 같은 값인 실수는 double, 나머지는 Decimal128
func jsonNumberToBSON(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}

	s := n.String()
	if f, err := n.Float64(); err == nil {
		orig, ok1 := new(big.Rat).SetString(s)
		short, ok2 := new(big.Rat).SetString(strconv.FormatFloat(f, 'g', -1, 64))
		if ok1 && ok2 && orig.Cmp(short) == 0 {
			return f
		}
	}
	if d, err := primitive.ParseDecimal128(s); err == nil {
		return d
	}
	f, _ := n.Float64()
	return f
}

func rawValueToJSON(value bson.RawValue) (datatypes.JSON, error) {
	if value.Type == 0 || value.Type == bson.TypeNull {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := writeJSONValue(&buf, value); err != nil {
		return nil, err
	}
	return datatypes.JSON(buf.Bytes()), nil
}

func writeJSONValue(buf *bytes.Buffer, value bson.RawValue) error {
	switch value.Type {
	case bson.TypeNull:
		buf.WriteString("null")
	case bson.TypeBoolean:
		buf.WriteString(strconv.FormatBool(value.Boolean()))
	case bson.TypeInt32:
		buf.WriteString(strconv.FormatInt(int64(value.Int32()), 10))
	case bson.TypeInt64:
		buf.WriteString(strconv.FormatInt(value.Int64(), 10))
	case bson.TypeDouble:
		out, err := json.Marshal(value.Double())
		if err != nil {
			return err
		}
		buf.Write(out)
	case bson.TypeDecimal128:
		s := value.Decimal128().String()
		if !json.Valid([]byte(s)) {
			return fmt.Errorf("decimal %s has no JSON form", s)
		}
		buf.WriteString(s)
	case bson.TypeString:
		out, err := json.Marshal(value.StringValue())
		if err != nil {
			return err
		}
		buf.Write(out)
	case bson.TypeEmbeddedDocument:
		elems, err := value.Document().Elements()
		if err != nil {
			return err
		}
		buf.WriteByte('{')
		for i, el := range elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(el.Key())
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeJSONValue(buf, el.Value()); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case bson.TypeArray:
		values, err := value.Array().Values()
		if err != nil {
			return err
		}
		buf.WriteByte('[')
		for i, v := range values {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONValue(buf, v); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		// 외부에서 넣은 BSON 전용 타입(날짜, ObjectID 등)은 relaxed Extended JSON으로
		return writeExtJSON(buf, value)
	}
	return nil
}

func writeExtJSON(buf *bytes.Buffer, value bson.RawValue) error {
	raw, err := bson.Marshal(bson.D{{Key: "v", Value: value}})
	if err != nil {
		return err
	}
	ext, err := bson.MarshalExtJSON(bson.Raw(raw), false, false)
	if err != nil {
		return err
	}

	var wrapper struct {
		V json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(ext, &wrapper); err != nil {
		return err
	}
	buf.Write(wrapper.V)
	return nil
}
