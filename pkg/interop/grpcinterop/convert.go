package grpcinterop

import (
	"fmt"
	"math"
	"reflect"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// toMessage builds a message of type md from a Go value: a map keyed by
// field name, a *dynamic.Message or a proto.Message of the same type.
func toMessage(v any, md *desc.MessageDescriptor) (*dynamic.Message, error) {
	switch m := v.(type) {
	case *dynamic.Message:
		if got := m.GetMessageDescriptor().GetFullyQualifiedName(); got != md.GetFullyQualifiedName() {
			return nil, fmt.Errorf("expected message %s, got %s", md.GetFullyQualifiedName(), got)
		}
		return m, nil
	case proto.Message:
		if got := string(m.ProtoReflect().Descriptor().FullName()); got != md.GetFullyQualifiedName() {
			return nil, fmt.Errorf("expected message %s, got %s", md.GetFullyQualifiedName(), got)
		}
		data, err := proto.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", md.GetFullyQualifiedName(), err)
		}
		msg := dynamic.NewMessage(md)
		if err := msg.Unmarshal(data); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", md.GetFullyQualifiedName(), err)
		}
		return msg, nil
	case map[string]any:
		msg := dynamic.NewMessage(md)
		if err := fill(msg, m); err != nil {
			return nil, err
		}
		return msg, nil
	case nil:
		return dynamic.NewMessage(md), nil
	}
	return nil, fmt.Errorf("expected map[string]any or message for %s, got %T", md.GetFullyQualifiedName(), v)
}

// fill sets fields of msg by name. Unknown names are an error.
func fill(msg *dynamic.Message, fields map[string]any) error {
	md := msg.GetMessageDescriptor()
	for name, val := range fields {
		fd := md.FindFieldByName(name)
		if fd == nil {
			return fmt.Errorf("message %s has no field %q", md.GetFullyQualifiedName(), name)
		}
		if err := setField(msg, fd, val); err != nil {
			return err
		}
	}
	return nil
}

func setField(msg *dynamic.Message, fd *desc.FieldDescriptor, val any) error {
	if val == nil {
		return nil
	}
	v, err := toProtoValue(val, fd)
	if err != nil {
		return fmt.Errorf("field %s: %w", fd.GetName(), err)
	}
	if err := msg.TrySetField(fd, v); err != nil {
		return fmt.Errorf("field %s: %w", fd.GetName(), err)
	}
	return nil
}

func toProtoValue(val any, fd *desc.FieldDescriptor) (any, error) {
	rv := reflect.ValueOf(val)

	if fd.IsMap() {
		if rv.Kind() != reflect.Map {
			return nil, fmt.Errorf("expected map, got %T", val)
		}
		out := make(map[any]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, err := toProtoSingleValue(iter.Key().Interface(), fd.GetMapKeyType())
			if err != nil {
				return nil, fmt.Errorf("key: %w", err)
			}
			v, err := toProtoSingleValue(iter.Value().Interface(), fd.GetMapValueType())
			if err != nil {
				return nil, fmt.Errorf("value for %v: %w", iter.Key(), err)
			}
			out[k] = v
		}
		return out, nil
	}

	if fd.IsRepeated() {
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("expected list for repeated field, got %T", val)
		}
		out := make([]any, rv.Len())
		for i := range out {
			v, err := toProtoSingleValue(rv.Index(i).Interface(), fd)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}

	return toProtoSingleValue(val, fd)
}

func toProtoSingleValue(val any, fd *desc.FieldDescriptor) (any, error) {
	rv := reflect.ValueOf(val)
	switch fd.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32, descriptorpb.FieldDescriptorProto_TYPE_SINT32, descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		if i, ok := toInt(rv, math.MinInt32, math.MaxInt32); ok {
			return int32(i), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_INT64, descriptorpb.FieldDescriptorProto_TYPE_SINT64, descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		if i, ok := toInt(rv, math.MinInt64, math.MaxInt64); ok {
			return i, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32, descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		if u, ok := toUint(rv, math.MaxUint32); ok {
			return uint32(u), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64, descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		if u, ok := toUint(rv, math.MaxUint64); ok {
			return u, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		if f, ok := toFloat(rv); ok {
			return float32(f), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		if f, ok := toFloat(rv); ok {
			return f, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		switch b := val.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		return toMessage(val, fd.GetMessageType())
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		// by name or by number
		if rv.Kind() == reflect.String {
			if ev := fd.GetEnumType().FindValueByName(rv.String()); ev != nil {
				return ev.GetNumber(), nil
			}
			return nil, fmt.Errorf("enum %s has no value %q", fd.GetEnumType().GetFullyQualifiedName(), rv.String())
		}
		if i, ok := toInt(rv, math.MinInt32, math.MaxInt32); ok {
			return int32(i), nil
		}
	}
	return nil, fmt.Errorf("cannot convert %T to %s", val, typeName(fd))
}

func toInt(rv reflect.Value, lo, hi int64) (int64, bool) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		return i, i >= lo && i <= hi
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		return int64(u), u <= uint64(hi)
	case reflect.Float32, reflect.Float64:
		// JSON numbers arrive as float64
		f := rv.Float()
		if f != math.Trunc(f) || f < float64(lo) || f >= -float64(lo) {
			return 0, false
		}
		return int64(f), int64(f) <= hi
	}
	return 0, false
}

func toUint(rv reflect.Value, hi uint64) (uint64, bool) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		return uint64(i), i >= 0 && uint64(i) <= hi
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		return u, u <= hi
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
			return 0, false
		}
		return uint64(f), uint64(f) <= hi
	}
	return 0, false
}

func toFloat(rv reflect.Value) (float64, bool) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func typeName(fd *desc.FieldDescriptor) string {
	switch fd.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		return fd.GetMessageType().GetFullyQualifiedName()
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		return fd.GetEnumType().GetFullyQualifiedName()
	}
	return fd.GetType().String()
}

// messageToMap converts a dynamic message to a map keyed by field name.
// Every field is present; unset fields hold their default value.
func messageToMap(msg *dynamic.Message) map[string]any {
	fields := make(map[string]any)
	for _, fd := range msg.GetMessageDescriptor().GetFields() {
		fields[fd.GetName()] = fromProtoValue(msg.GetField(fd), fd)
	}
	return fields
}

func fromProtoValue(val any, fd *desc.FieldDescriptor) any {
	if fd.IsMap() {
		out := make(map[string]any)
		if m, ok := val.(map[any]any); ok {
			for k, v := range m {
				out[fmt.Sprint(k)] = fromProtoSingleValue(v, fd.GetMapValueType())
			}
		}
		return out
	}
	if fd.IsRepeated() {
		slice, _ := val.([]any)
		out := make([]any, len(slice))
		for i, v := range slice {
			out[i] = fromProtoSingleValue(v, fd)
		}
		return out
	}
	return fromProtoSingleValue(val, fd)
}

func fromProtoSingleValue(val any, fd *desc.FieldDescriptor) any {
	switch v := val.(type) {
	case nil:
		return nil
	case *dynamic.Message:
		return messageToMap(v)
	case int32:
		if fd.GetType() == descriptorpb.FieldDescriptorProto_TYPE_ENUM {
			if ev := fd.GetEnumType().FindValueByNumber(v); ev != nil {
				return ev.GetName()
			}
		}
		return v
	}
	return val
}
