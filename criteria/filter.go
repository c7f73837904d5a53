package criteria

import (
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// IsValid проверяет запись против всех правил. Порядок проверки
// детерминирован (порядок регистрации), первое несовпадение
// прерывает проверку всей записи. Отклонение записи — нормальный
// исход, не ошибка.
func (f *Filter) IsValid(rec Record) bool {
	for _, rule := range f.listRules {
		if !f.checkList(rule, rec) {
			return false
		}
	}
	for _, rule := range f.rangeRules {
		if !f.checkRange(rule, rec) {
			return false
		}
	}
	return true
}

func (f *Filter) checkList(rule listRule, rec Record) bool {
	val, ok := rec[rule.field]
	if !ok {
		return false
	}
	if declared := f.typeMap[rule.field]; declared != TypeUnspecified {
		if !checkType(val, declared) {
			return false
		}
	}
	for _, allowed := range rule.allowed {
		if val.Equal(allowed) {
			return true
		}
	}
	return false
}

func (f *Filter) checkRange(rule rangeRule, rec Record) bool {
	val, ok := rec[rule.field]
	if !ok {
		return false
	}
	if declared := f.typeMap[rule.field]; declared != TypeUnspecified {
		if !checkType(val, declared) {
			return false
		}
	}
	for _, pair := range rule.pairs {
		if inRange(val, pair.start, pair.end) {
			return true
		}
	}
	return false
}

// FilterFiles применяет IsValid к каждой записи пулом из threads
// горутин и возвращает прошедшие записи в исходном порядке.
// Результаты привязываются к исходному индексу, поэтому порядок
// завершения горутин на выход не влияет.
func (f *Filter) FilterFiles(records []Record) []Record {
	if len(records) == 0 {
		f.logger.Warn("no files provided for filtering")
		return []Record{}
	}

	f.logger.Debug("filtering files", slog.Int("total", len(records)))

	results := make([]bool, len(records))
	var g errgroup.Group
	g.SetLimit(f.threads)
	for i, rec := range records {
		g.Go(func() error {
			results[i] = f.IsValid(rec)
			return nil
		})
	}
	_ = g.Wait()

	filtered := make([]Record, 0, len(records))
	for i, rec := range records {
		if results[i] {
			filtered = append(filtered, rec)
		}
	}

	f.logger.Info("filtering finished",
		slog.Int("passed", len(filtered)), slog.Int("total", len(records)))
	return filtered
}
