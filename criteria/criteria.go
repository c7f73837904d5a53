package criteria

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// ErrInvalidCriteria — фатальная ошибка конфигурации: запись критерия
// не является таблицей или не содержит ключей type/value.
var ErrInvalidCriteria = errors.New("invalid criteria")

// Record — одна запись на проверку: имя поля -> скалярное значение.
// Создаётся вызывающей стороной, движок её не изменяет.
type Record map[string]Value

type rangePair struct {
	start Value
	end   Value
}

type listRule struct {
	field   string
	allowed []Value
}

type rangeRule struct {
	field string
	pairs []rangePair
}

// Filter — скомпилированный набор правил. Таблицы правил строятся
// один раз в New и после этого только читаются, поэтому параллельные
// проверки не требуют синхронизации.
type Filter struct {
	listRules  []listRule
	rangeRules []rangeRule
	typeMap    map[string]DeclaredType
	threads    int
	logger     *slog.Logger
}

// New разбирает сырое описание критериев в неизменяемые таблицы правил.
// Каждая запись: {"type": "list"|"range", "data_type": опционально,
// "value": последовательность}. Отсутствие type или value, как и
// не-табличная запись, — фатальная ошибка всей конфигурации.
// Поля обрабатываются в отсортированном порядке имён, что задаёт
// детерминированный порядок проверки.
func New(raw map[string]any, threads int, logger *slog.Logger) (*Filter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if threads < 1 {
		threads = 1
	}

	f := &Filter{
		typeMap: make(map[string]DeclaredType, len(raw)),
		threads: threads,
		logger:  logger,
	}

	fields := make([]string, 0, len(raw))
	for name := range raw {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	for _, field := range fields {
		cfg, ok := asMap(raw[field])
		if !ok {
			return nil, fmt.Errorf("%w: field %q must be a mapping with 'type' and 'value'", ErrInvalidCriteria, field)
		}
		rawType, hasType := cfg["type"]
		rawValue, hasValue := cfg["value"]
		if !hasType || !hasValue {
			return nil, fmt.Errorf("%w: field %q must contain 'type' and 'value'", ErrInvalidCriteria, field)
		}

		// data_type записывается независимо от судьбы самого правила
		declaredRaw, _ := cfg["data_type"].(string)
		declared, known := parseDeclaredType(declaredRaw)
		if !known {
			logger.Debug("unknown data_type, type check disabled",
				slog.String("field", field), slog.String("data_type", declaredRaw))
		}
		f.typeMap[field] = declared

		switch rawType {
		case "list":
			f.parseListRule(field, rawValue)
		case "range":
			f.parseRangeRule(field, rawValue)
		default:
			logger.Error("unknown filter type, field skipped",
				slog.String("field", field), slog.Any("type", rawType))
		}
	}

	return f, nil
}

func (f *Filter) parseListRule(field string, rawValue any) {
	values, ok := asValues(rawValue)
	if !ok {
		f.logger.Error("'list' field value is not a sequence of scalars, field skipped",
			slog.String("field", field))
		return
	}
	f.listRules = append(f.listRules, listRule{field: field, allowed: values})
}

func (f *Filter) parseRangeRule(field string, rawValue any) {
	values, ok := asValues(rawValue)
	if !ok {
		f.logger.Error("'range' field value is not a sequence of scalars, field skipped",
			slog.String("field", field))
		return
	}

	// нечётный хвост отбрасывается
	if len(values)%2 != 0 {
		f.logger.Warn("odd number of range items, discarding the last one",
			slog.String("field", field))
		values = values[:len(values)-1]
	}

	pairs := make([]rangePair, 0, len(values)/2)
	for i := 0; i+1 < len(values); i += 2 {
		pairs = append(pairs, rangePair{start: values[i], end: values[i+1]})
	}
	if len(pairs) > 0 {
		f.rangeRules = append(f.rangeRules, rangeRule{field: field, pairs: pairs})
	}
}

// asMap принимает таблицы как из viper (map[string]any), так и из
// прямого yaml-декодирования (map[any]any).
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

// asValues приводит сырое value к последовательности Value.
// Элемент неподдерживаемого типа делает всё правило непригодным.
func asValues(v any) ([]Value, bool) {
	var raw []any
	switch s := v.(type) {
	case []any:
		raw = s
	case []string:
		raw = make([]any, len(s))
		for i, x := range s {
			raw[i] = x
		}
	case []int:
		raw = make([]any, len(s))
		for i, x := range s {
			raw[i] = x
		}
	case []float64:
		raw = make([]any, len(s))
		for i, x := range s {
			raw[i] = x
		}
	default:
		return nil, false
	}

	out := make([]Value, 0, len(raw))
	for _, item := range raw {
		val, err := FromAny(item)
		if err != nil {
			return nil, false
		}
		out = append(out, val)
	}
	return out, true
}
