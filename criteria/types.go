// Пакет criteria реализует декларативный движок фильтрации записей.
// Поддерживает два типа правил: "list" (точное совпадение с одним из
// разрешённых значений) и "range" (попадание в один из закрытых интервалов).
package criteria

import (
	"fmt"
	"strconv"
	"time"
)

// Kind — категория значения в закрытом объединении Value.
type Kind uint8

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	}
	return "unknown"
}

// Value — скалярное значение записи: строка, целое, вещественное или время.
// Коллекции и вложенные структуры не поддерживаются.
type Value struct {
	kind Kind
	str  string
	i    int64
	f    float64
	t    time.Time
}

func Str(s string) Value     { return Value{kind: KindString, str: s} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// FromAny преобразует скаляр из YAML/JSON/TOML декодера в Value.
// Булевы и составные значения отклоняются.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case string:
		return Str(x), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Int(int64(x)), nil
	case uint64:
		return Int(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case time.Time:
		return Time(x), nil
	case Value:
		return x, nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", v)
}

func (v Value) Kind() Kind { return v.kind }

// String возвращает отображаемое представление значения.
// Время форматируется как RFC3339, чтобы строковая сортировка
// совпадала с хронологической.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindTime:
		return v.t.Format(time.RFC3339)
	}
	return ""
}

// AsTime возвращает временное значение, если оно есть.
func (v Value) AsTime() (time.Time, bool) {
	if v.kind == KindTime {
		return v.t, true
	}
	return time.Time{}, false
}

// asFloat — числовая интерпретация значения: целые и вещественные
// напрямую, строки — через парсинг.
func (v Value) asFloat() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindString:
		f, err := strconv.ParseFloat(v.str, 64)
		return f, err == nil
	}
	return 0, false
}

// Equal — точное сравнение значений. Числовые категории сравниваются
// между собой по величине, остальные — только внутри своей категории.
func (v Value) Equal(o Value) bool {
	if (v.kind == KindInt || v.kind == KindFloat) && (o.kind == KindInt || o.kind == KindFloat) {
		vf, _ := v.asFloat()
		of, _ := o.asFloat()
		return vf == of
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindTime:
		return v.t.Equal(o.t)
	}
	return false
}

// MarshalYAML выводит нижележащий скаляр (для дампа критериев).
func (v Value) MarshalYAML() (any, error) {
	switch v.kind {
	case KindString:
		return v.str, nil
	case KindInt:
		return v.i, nil
	case KindFloat:
		return v.f, nil
	case KindTime:
		return v.t.Format(time.RFC3339), nil
	}
	return nil, nil
}

// DeclaredType — объявленный тип поля из ключа data_type.
type DeclaredType uint8

const (
	TypeUnspecified DeclaredType = iota
	TypeStr
	TypeInt
	TypeFloat
	TypeNumeric
	TypeDatetime
)

func (d DeclaredType) String() string {
	switch d {
	case TypeStr:
		return "str"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeNumeric:
		return "numeric"
	case TypeDatetime:
		return "datetime"
	}
	return "unspecified"
}

// parseDeclaredType распознаёт значение data_type. Неизвестные имена
// трактуются как отсутствие объявленного типа.
func parseDeclaredType(s string) (DeclaredType, bool) {
	switch s {
	case "str":
		return TypeStr, true
	case "int":
		return TypeInt, true
	case "float":
		return TypeFloat, true
	case "numeric":
		return TypeNumeric, true
	case "datetime":
		return TypeDatetime, true
	case "":
		return TypeUnspecified, true
	}
	return TypeUnspecified, false
}

// checkType проверяет соответствие значения объявленному типу.
// Для TypeUnspecified проверка не вызывается (вызывающий пропускает её),
// здесь она тривиально истинна.
func checkType(v Value, declared DeclaredType) bool {
	switch declared {
	case TypeStr:
		return v.kind == KindString
	case TypeInt:
		return v.kind == KindInt
	case TypeFloat:
		return v.kind == KindFloat
	case TypeNumeric:
		_, ok := v.asFloat()
		return ok
	case TypeDatetime:
		return v.kind == KindTime
	}
	return true
}

// inRange проверяет start <= v <= end с учётом категорий: числовые
// значения (включая числовые строки) сравниваются как float, время —
// хронологически, строки — лексикографически. Несравнимые комбинации
// считаются непопаданием.
func inRange(v, start, end Value) bool {
	if vf, ok := v.asFloat(); ok {
		sf, ok1 := start.asFloat()
		ef, ok2 := end.asFloat()
		if ok1 && ok2 {
			return sf <= vf && vf <= ef
		}
	}
	if v.kind == KindTime && start.kind == KindTime && end.kind == KindTime {
		return !v.t.Before(start.t) && !v.t.After(end.t)
	}
	if v.kind == KindString && start.kind == KindString && end.kind == KindString {
		return start.str <= v.str && v.str <= end.str
	}
	return false
}
