// Пакет matcher обходит дерево архива и сопоставляет пути файлов
// со скомпилированным шаблоном, извлекая атрибуты в записи для
// последующей фильтрации.
package matcher

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"seis-filter/criteria"
)

// Matcher сопоставляет файлы каталога Dir с шаблоном Pattern.
// DeriveTime управляет выводом атрибута time из полей даты (для
// файлов откликов его отключают). ScanLimit, если задан, ограничивает
// скорость обхода — полезно на общих сетевых хранилищах.
type Matcher struct {
	Dir        string
	Pattern    *regexp.Regexp
	DeriveTime bool
	ScanLimit  *rate.Limiter

	logger *slog.Logger
}

func New(dir string, re *regexp.Regexp, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		Dir:        dir,
		Pattern:    re,
		DeriveTime: true,
		logger:     logger,
	}
}

// ListFiles рекурсивно собирает все файлы в каталоге. Ошибки доступа
// к отдельным элементам журналируются и пропускаются.
func (m *Matcher) ListFiles(ctx context.Context) ([]string, error) {
	m.logger.Info("searching for files", slog.String("dir", m.Dir))
	var files []string
	err := filepath.WalkDir(m.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			m.logger.Warn("skipping unreadable entry",
				slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if m.ScanLimit != nil {
			if err := m.ScanLimit.Wait(ctx); err != nil {
				return err
			}
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("file search finished",
		slog.Int("count", len(files)), slog.String("dir", m.Dir))
	return files, nil
}

// MatchFiles сопоставляет пути с шаблоном пулом из threads горутин.
// Если paths == nil, список собирается через ListFiles. Возвращает
// записи совпавших файлов в порядке исходного списка путей.
func (m *Matcher) MatchFiles(ctx context.Context, paths []string, threads int) ([]criteria.Record, error) {
	if paths == nil {
		var err error
		paths, err = m.ListFiles(ctx)
		if err != nil {
			return nil, err
		}
	}
	if threads < 1 {
		threads = 1
	}

	m.logger.Info("start file pattern matching")

	results := make([]criteria.Record, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = m.matchFile(path)
			return nil
		})
	}
	_ = g.Wait()

	matched := make([]criteria.Record, 0, len(paths))
	for _, rec := range results {
		if rec != nil {
			matched = append(matched, rec)
		}
	}
	m.logger.Info("files matched", slog.Int("count", len(matched)))
	return matched, nil
}

// matchFile сопоставляет один путь с шаблоном и извлекает именованные
// группы. Несовпавший путь даёт nil.
func (m *Matcher) matchFile(path string) criteria.Record {
	sub := m.Pattern.FindStringSubmatch(path)
	if sub == nil {
		return nil
	}
	fields := make(map[string]string)
	for i, name := range m.Pattern.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		fields[name] = sub[i]
	}

	rec := make(criteria.Record, len(fields)+2)
	for name, val := range fields {
		rec[name] = criteria.Str(val)
	}
	rec["path"] = criteria.Str(path)

	if m.DeriveTime {
		if t, ok := m.timeFromFields(fields); ok {
			rec["time"] = criteria.Time(t)
		}
	}
	return rec
}

// timeFromFields строит время из полей year/month/day либо year/jday
// (плюс необязательные hour/minute). Двузначный год считается от 2000.
func (m *Matcher) timeFromFields(fields map[string]string) (time.Time, bool) {
	yearStr, ok := fields["year"]
	if !ok {
		m.logger.Warn("insufficient time fields", slog.Any("fields", fields))
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	if len(yearStr) == 2 {
		year += 2000
	}

	hour := atoiDefault(fields["hour"], 0)
	minute := atoiDefault(fields["minute"], 0)

	if jdayStr, ok := fields["jday"]; ok {
		jday, err := strconv.Atoi(jdayStr)
		if err != nil {
			return time.Time{}, false
		}
		t := time.Date(year, time.January, 1, hour, minute, 0, 0, time.UTC).
			AddDate(0, 0, jday-1)
		return t, true
	}

	monthStr, hasMonth := fields["month"]
	dayStr, hasDay := fields["day"]
	if !hasMonth || !hasDay {
		m.logger.Warn("insufficient time fields", slog.Any("fields", fields))
		return time.Time{}, false
	}
	month, err1 := strconv.Atoi(monthStr)
	day, err2 := strconv.Atoi(dayStr)
	if err1 != nil || err2 != nil {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	// time.Date нормализует переполнение, а не сообщает об ошибке
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		m.logger.Warn("invalid date fields", slog.Any("fields", fields))
		return time.Time{}, false
	}
	return t, true
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
