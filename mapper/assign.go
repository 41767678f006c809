package mapper

import (
	"math"
	"reflect"
)

// assign stores src into dst, coercing between pointer and value forms,
// named types and numeric widths. Numeric values that would overflow, wrap
// or lose a fraction in dst are refused. A nil or invalid src clears dst.
func assign(dst, src reflect.Value) error {
	for src.IsValid() && src.Kind() == reflect.Interface {
		if src.IsNil() {
			dst.SetZero()
			return nil
		}
		src = src.Elem()
	}
	if !src.IsValid() {
		dst.SetZero()
		return nil
	}
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}

	if src.Kind() == reflect.Ptr {
		if src.IsNil() {
			dst.SetZero()
			return nil
		}
		if dst.Kind() != reflect.Ptr {
			return assign(dst, src.Elem())
		}
	}

	if dst.Kind() == reflect.Ptr {
		ptr := reflect.New(dst.Type().Elem())
		if err := assign(ptr.Elem(), src); err != nil {
			return err
		}
		dst.Set(ptr)
		return nil
	}

	if convertible(src.Type(), dst.Type()) {
		if !fits(src, dst.Type()) {
			return &ConversionError{From: src.Type(), To: dst.Type()}
		}
		dst.Set(src.Convert(dst.Type()))
		return nil
	}

	if src.Kind() == reflect.Slice && dst.Kind() == reflect.Slice {
		if src.IsNil() {
			dst.SetZero()
			return nil
		}
		out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			if err := assign(out.Index(i), src.Index(i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	}

	return &ConversionError{From: src.Type(), To: dst.Type()}
}

// convertible reports whether reflect conversion from one type to the other
// preserves meaning. Integer to string conversions yield runes and are refused.
func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	fromString := from.Kind() == reflect.String
	toString := to.Kind() == reflect.String
	if fromString != toString {
		return false
	}
	if isNumeric(from.Kind()) != isNumeric(to.Kind()) {
		return false
	}
	return true
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// fits reports whether the numeric value v is representable in t. Non-numeric
// values always fit.
func fits(v reflect.Value, t reflect.Type) bool {
	if !isNumeric(v.Kind()) || !isNumeric(t.Kind()) {
		return true
	}
	zero := reflect.Zero(t)
	switch {
	case v.CanInt():
		n := v.Int()
		switch {
		case zero.CanInt():
			return !zero.OverflowInt(n)
		case zero.CanUint():
			return n >= 0 && !zero.OverflowUint(uint64(n))
		}
		return true
	case v.CanUint():
		n := v.Uint()
		switch {
		case zero.CanInt():
			return n <= math.MaxInt64 && !zero.OverflowInt(int64(n))
		case zero.CanUint():
			return !zero.OverflowUint(n)
		}
		return true
	}

	f := v.Float()
	switch {
	case zero.CanFloat():
		return math.IsNaN(f) || math.IsInf(f, 0) || !zero.OverflowFloat(f)
	case f != math.Trunc(f):
		return false
	case zero.CanInt():
		return f >= math.MinInt64 && f < math.MaxInt64 && !zero.OverflowInt(int64(f))
	case zero.CanUint():
		return f >= 0 && f < math.MaxUint64 && !zero.OverflowUint(uint64(f))
	}
	return true
}
