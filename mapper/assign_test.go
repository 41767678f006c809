package mapper

import (
	"errors"
	"reflect"
	"testing"
)

type testLabel string

func TestAssign(t *testing.T) {
	var i int
	if err := assign(reflect.ValueOf(&i).Elem(), reflect.ValueOf(ptr(int32(7)))); err != nil || i != 7 {
		t.Errorf("*int32 -> int: got %d, %v", i, err)
	}

	var pi *int64
	if err := assign(reflect.ValueOf(&pi).Elem(), reflect.ValueOf(9)); err != nil || pi == nil || *pi != 9 {
		t.Errorf("int -> *int64: got %v, %v", pi, err)
	}

	var label testLabel
	if err := assign(reflect.ValueOf(&label).Elem(), reflect.ValueOf("x")); err != nil || label != "x" {
		t.Errorf("string -> named string: got %q, %v", label, err)
	}

	s := "keep"
	ps := &s
	if err := assign(reflect.ValueOf(&ps).Elem(), reflect.Value{}); err != nil || ps != nil {
		t.Errorf("invalid source must clear, got %v, %v", ps, err)
	}

	var names []testLabel
	if err := assign(reflect.ValueOf(&names).Elem(), reflect.ValueOf([]string{"a", "b"})); err != nil || len(names) != 2 || names[1] != "b" {
		t.Errorf("[]string -> []testLabel: got %v, %v", names, err)
	}
}

func TestAssign_Refused(t *testing.T) {
	var s string
	err := assign(reflect.ValueOf(&s).Elem(), reflect.ValueOf(65))
	var ce *ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("int -> string: expected ConversionError, got %v (value %q)", err, s)
	}

	var f float64
	if err := assign(reflect.ValueOf(&f).Elem(), reflect.ValueOf(true)); !errors.As(err, &ce) {
		t.Errorf("bool -> float64: expected ConversionError, got %v", err)
	}
}

func TestAssign_Narrowing(t *testing.T) {
	var small *int32
	if err := assign(reflect.ValueOf(&small).Elem(), reflect.ValueOf(1<<32+7)); err == nil {
		t.Errorf("int -> *int32 overflow: expected error, got %d", *small)
	}
	if err := assign(reflect.ValueOf(&small).Elem(), reflect.ValueOf(int64(-40))); err != nil || small == nil || *small != -40 {
		t.Errorf("int64 -> *int32 in range: got %v, %v", small, err)
	}

	var u uint
	if err := assign(reflect.ValueOf(&u).Elem(), reflect.ValueOf(int64(-1))); err == nil {
		t.Errorf("negative int64 -> uint: expected error, got %d", u)
	}
	var i8 int8
	if err := assign(reflect.ValueOf(&i8).Elem(), reflect.ValueOf(uint64(200))); err == nil {
		t.Errorf("uint64 -> int8 overflow: expected error, got %d", i8)
	}

	var n int
	var ce *ConversionError
	if err := assign(reflect.ValueOf(&n).Elem(), reflect.ValueOf(2.5)); !errors.As(err, &ce) {
		t.Errorf("fractional float -> int: expected ConversionError, got %v (value %d)", err, n)
	}
	if err := assign(reflect.ValueOf(&n).Elem(), reflect.ValueOf(3.0)); err != nil || n != 3 {
		t.Errorf("integral float -> int: got %d, %v", n, err)
	}

	var f32 float32
	if err := assign(reflect.ValueOf(&f32).Elem(), reflect.ValueOf(1e300)); err == nil {
		t.Errorf("float64 -> float32 overflow: expected error, got %v", f32)
	}
}
