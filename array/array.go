// Пакет array собирает конвейер целиком: шаблон -> сопоставление ->
// фильтрация -> группировка. SeisArray представляет архив данных как
// виртуальную решётку станций.
package array

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"seis-filter/criteria"
	"seis-filter/matcher"
	"seis-filter/organizer"
	"seis-filter/pattern"
)

// ErrNotMatched возвращается методами, требующими предварительного
// вызова Match (или Filter — для операций над отфильтрованным набором).
var ErrNotMatched = errors.New("files are not matched yet")

// SeisArray — архив сейсмических данных с шаблоном раскладки.
type SeisArray struct {
	Dir      string
	Registry *pattern.FieldRegistry
	Pattern  *regexp.Regexp

	// Files — записи всех совпавших файлов (после Match).
	Files []criteria.Record
	// FilteredFiles — записи, прошедшие критерии (после Filter).
	FilteredFiles []criteria.Record
	// Groups — результат Group.
	Groups []organizer.Group
	// VirtualArray — результат Organize.
	VirtualArray map[string]any

	// ScanLimit, если задан, ограничивает скорость обхода каталога.
	ScanLimit *rate.Limiter

	deriveTime bool
	logger     *slog.Logger
}

// New создаёт массив для каталога dir с шаблоном раскладки данных.
// customFields пополняют реестр плейсхолдеров; overwrite разрешает
// замену стандартных полей.
func New(dir, patternStr string, customFields map[string]string, overwrite bool, logger *slog.Logger) (*SeisArray, error) {
	return newArray(dir, patternStr, customFields, overwrite, true, logger)
}

// NewResp создаёт массив файлов инструментальных откликов: поля даты
// в шаблоне не требуются, атрибут time не выводится. Поля resp_type и
// version регистрируются автоматически.
func NewResp(dir, patternStr string, customFields map[string]string, overwrite bool, logger *slog.Logger) (*SeisArray, error) {
	merged := map[string]string{
		"resp_type": `(RESP|StationXML|PAZ|FAP)`,
		"version":   `v\d{2}`,
	}
	for name, re := range customFields {
		merged[name] = re
	}
	return newArray(dir, patternStr, merged, overwrite, false, logger)
}

func newArray(dir, patternStr string, customFields map[string]string, overwrite, deriveTime bool, logger *slog.Logger) (*SeisArray, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := pattern.NewRegistry(logger)
	for name, re := range customFields {
		if err := reg.AddField(name, re, overwrite); err != nil {
			return nil, err
		}
	}

	var (
		re  *regexp.Regexp
		err error
	)
	if deriveTime {
		re, err = pattern.CheckPattern(dir, patternStr, reg)
	} else {
		re, err = pattern.CheckRespPattern(dir, patternStr, reg)
	}
	if err != nil {
		return nil, fmt.Errorf("check pattern: %w", err)
	}

	return &SeisArray{
		Dir:        dir,
		Registry:   reg,
		Pattern:    re,
		deriveTime: deriveTime,
		logger:     logger,
	}, nil
}

// Match сопоставляет файлы каталога с шаблоном и сохраняет записи в Files.
func (a *SeisArray) Match(ctx context.Context, threads int) error {
	m := matcher.New(a.Dir, a.Pattern, a.logger)
	m.DeriveTime = a.deriveTime
	m.ScanLimit = a.ScanLimit
	files, err := m.MatchFiles(ctx, nil, threads)
	if err != nil {
		return fmt.Errorf("match files: %w", err)
	}
	a.Files = files
	return nil
}

// Filter применяет критерии к совпавшим файлам и сохраняет прошедшие
// записи в FilteredFiles. При verbose сводка правил пишется в журнал.
func (a *SeisArray) Filter(rawCriteria map[string]any, threads int, verbose bool) error {
	if a.Files == nil {
		return ErrNotMatched
	}
	f, err := criteria.New(rawCriteria, threads, a.logger)
	if err != nil {
		return err
	}
	if verbose {
		f.ShowCriteria()
	}
	a.FilteredFiles = f.FilterFiles(a.Files)
	return nil
}

// Group группирует записи по меткам. filtered выбирает между
// отфильтрованным и полным набором.
func (a *SeisArray) Group(labels, sortLabels []string, filtered bool) error {
	files, err := a.pick(filtered)
	if err != nil {
		return err
	}
	a.Groups = organizer.GroupBy(files, labels, sortLabels)
	return nil
}

// Organize строит вложенную структуру по порядку меток.
// output — "dict" либо "path".
func (a *SeisArray) Organize(labelOrder []string, output string, filtered bool) error {
	files, err := a.pick(filtered)
	if err != nil {
		return err
	}
	a.VirtualArray = organizer.Organize(files, labelOrder, output, a.logger)
	return nil
}

// Stations возвращает станции записей (с повторами, в порядке записей).
func (a *SeisArray) Stations(filtered bool) ([]string, error) {
	files, err := a.pick(filtered)
	if err != nil {
		return nil, err
	}
	stations := make([]string, 0, len(files))
	for _, rec := range files {
		if s, ok := rec["station"]; ok {
			stations = append(stations, s.String())
		}
	}
	return stations, nil
}

// Times возвращает временные атрибуты записей.
func (a *SeisArray) Times(filtered bool) ([]time.Time, error) {
	files, err := a.pick(filtered)
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, 0, len(files))
	for _, rec := range files {
		if v, ok := rec["time"]; ok {
			if t, ok := v.AsTime(); ok {
				times = append(times, t)
			}
		}
	}
	return times, nil
}

func (a *SeisArray) pick(filtered bool) ([]criteria.Record, error) {
	if filtered {
		if a.FilteredFiles == nil {
			return nil, fmt.Errorf("%w: filter the files first", ErrNotMatched)
		}
		return a.FilteredFiles, nil
	}
	if a.Files == nil {
		return nil, fmt.Errorf("%w: match the files first", ErrNotMatched)
	}
	return a.Files, nil
}
