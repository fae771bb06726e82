package grpc

import (
	"fmt"
	"math"
	"strconv"

	tmplerrors "github.com/tmpldb/tmpldb/internal/errors"
	"github.com/tmpldb/tmpldb/pkg/types"
	"google.golang.org/protobuf/types/known/structpb"
)

// EncodeRecord converts a record to a protobuf struct:
//
//	{"template": "T", "instance": "i" | null,
//	 "fields": [{"name": "n", "kind": "integer", "value": "42"}, ...]}
//
// Fields are a list so their order survives. Integers travel as decimal
// strings since a protobuf number is a double; floats travel as numbers and
// must be finite.
func EncodeRecord(rec *types.Record) (*structpb.Struct, error) {
	fields := make([]*structpb.Value, 0, rec.Len())
	if rec.Fields != nil {
		for p := rec.Fields.Oldest(); p != nil; p = p.Next() {
			v, err := encodeValue(p.Value)
			if err != nil {
				return nil, tmplerrors.NewSerializationError(fmt.Sprintf("field %q", p.Key), err)
			}
			fields = append(fields, structpb.NewStructValue(&structpb.Struct{
				Fields: map[string]*structpb.Value{
					"name":  structpb.NewStringValue(p.Key),
					"kind":  structpb.NewStringValue(p.Value.Kind.String()),
					"value": v,
				},
			}))
		}
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"template": optionalString(rec.Schema),
			"instance": optionalString(rec.Instance),
			"fields":   structpb.NewListValue(&structpb.ListValue{Values: fields}),
		},
	}, nil
}

// EncodeRecords encodes every record in order.
func EncodeRecords(recs []*types.Record) (*structpb.ListValue, error) {
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(recs))}
	for _, rec := range recs {
		s, err := EncodeRecord(rec)
		if err != nil {
			return nil, err
		}
		out.Values = append(out.Values, structpb.NewStructValue(s))
	}
	return out, nil
}

// DecodeRecord reverses EncodeRecord.
func DecodeRecord(s *structpb.Struct) (*types.Record, error) {
	rec := &types.Record{
		Schema:   s.GetFields()["template"].GetStringValue(),
		Instance: s.GetFields()["instance"].GetStringValue(),
		Fields:   types.NewFields(),
	}
	for i, fv := range s.GetFields()["fields"].GetListValue().GetValues() {
		f := fv.GetStructValue()
		if f == nil {
			return nil, fmt.Errorf("field %d is not a struct", i)
		}
		name := f.GetFields()["name"].GetStringValue()
		v, err := decodeValue(f.GetFields()["kind"].GetStringValue(), f.GetFields()["value"])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		rec.Set(name, v)
	}
	return rec, nil
}

// DecodeRecords reverses EncodeRecords.
func DecodeRecords(l *structpb.ListValue) ([]*types.Record, error) {
	recs := make([]*types.Record, 0, len(l.GetValues()))
	for i, v := range l.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("record %d is not a struct", i)
		}
		rec, err := DecodeRecord(s)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func encodeValue(v types.Value) (*structpb.Value, error) {
	switch v.Kind {
	case types.KindText:
		return structpb.NewStringValue(v.Text), nil
	case types.KindInteger:
		return structpb.NewStringValue(strconv.FormatInt(v.Int, 10)), nil
	case types.KindFloat:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return nil, fmt.Errorf("unsupported float value: %v", v.Float)
		}
		return structpb.NewNumberValue(v.Float), nil
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

func decodeValue(kind string, v *structpb.Value) (types.Value, error) {
	switch kind {
	case types.KindText.String():
		return types.Text(v.GetStringValue()), nil
	case types.KindInteger.String():
		return types.ParseValue(types.KindInteger, v.GetStringValue())
	case types.KindFloat.String():
		if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
			return types.Value{}, fmt.Errorf("float value is not a number")
		}
		return types.Float(v.GetNumberValue()), nil
	default:
		return types.Value{}, fmt.Errorf("unknown kind %q", kind)
	}
}

func optionalString(s string) *structpb.Value {
	if s == "" {
		return structpb.NewNullValue()
	}
	return structpb.NewStringValue(s)
}
