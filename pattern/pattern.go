// Пакет pattern преобразует шаблоны путей с плейсхолдерами вида
// {station} в регулярные выражения с именованными группами.
// Шаблон описывает раскладку архива, например:
//
//	{home}/{YYYY}/{network}.{station}.{component}.{JJJ}.SAC
package pattern

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// placeholderRe находит плейсхолдеры, включая подстановочные {?} и {*}.
var placeholderRe = regexp.MustCompile(`\{(\w+|\?|\*)\}`)

// FieldRegistry хранит упорядоченный набор плейсхолдеров и их
// регулярных выражений (уже обёрнутых в именованную группу).
type FieldRegistry struct {
	names  []string
	fields map[string]string
	logger *slog.Logger
}

// defaultFields — стандартный набор полей. Порядок фиксирован.
var defaultFields = []struct{ name, regex string }{
	{"YYYY", `(?P<year>\d{4})`},
	{"YY", `(?P<year>\d{2})`},
	{"MM", `(?P<month>\d{2})`},
	{"DD", `(?P<day>\d{2})`},
	{"JJJ", `(?P<jday>\d{3})`},
	{"HH", `(?P<hour>\d{2})`},
	{"MI", `(?P<minute>\d{2})`},
	{"home", `(?P<home>[A-Za-z0-9/_-]+)`},
	{"network", `(?P<network>\w+)`},
	{"event", `(?P<event>\w+)`},
	{"station", `(?P<station>\w+)`},
	{"component", `(?P<component>\w+)`},
	{"sampleF", `(?P<sampleF>\w+)`},
	{"quality", `(?P<quality>\w+)`},
	{"locid", `(?P<locid>\w+)`},
	{"suffix", `(?P<suffix>\w+)`},
	{"label0", `(?P<label0>\w+)`},
	{"label1", `(?P<label1>\w+)`},
	{"label2", `(?P<label2>\w+)`},
	{"label3", `(?P<label3>\w+)`},
	{"label4", `(?P<label4>\w+)`},
	{"label5", `(?P<label5>\w+)`},
	{"label6", `(?P<label6>\w+)`},
	{"label7", `(?P<label7>\w+)`},
	{"label8", `(?P<label8>\w+)`},
	{"label9", `(?P<label9>\w+)`},
}

// NewRegistry создаёт реестр со стандартным набором полей.
func NewRegistry(logger *slog.Logger) *FieldRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &FieldRegistry{
		fields: make(map[string]string, len(defaultFields)),
		logger: logger,
	}
	for _, f := range defaultFields {
		r.names = append(r.names, f.name)
		r.fields[f.name] = f.regex
	}
	return r
}

// AddField регистрирует пользовательское поле. Регулярное выражение
// проверяется на компилируемость внутри именованной группы. Повторная
// регистрация без overwrite оставляет старое определение.
func (r *FieldRegistry) AddField(name, regexStr string, overwrite bool) error {
	if _, exists := r.fields[name]; exists && !overwrite {
		r.logger.Warn("field already exists, use overwrite to replace it",
			slog.String("field", name))
		return nil
	}
	namedGroup := fmt.Sprintf("(?P<%s>%s)", name, regexStr)
	if _, err := regexp.Compile(namedGroup); err != nil {
		return fmt.Errorf("invalid regex pattern for field %q: %w", name, err)
	}
	if _, exists := r.fields[name]; !exists {
		r.names = append(r.names, name)
	}
	r.fields[name] = namedGroup
	return nil
}

// RemoveField удаляет поле из реестра.
func (r *FieldRegistry) RemoveField(name string) {
	if _, exists := r.fields[name]; !exists {
		r.logger.Warn("field not found", slog.String("field", name))
		return
	}
	delete(r.fields, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
}

// Fields возвращает имена зарегистрированных полей в порядке регистрации.
func (r *FieldRegistry) Fields() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// ValidatePattern проверяет, что все плейсхолдеры шаблона известны реестру.
func (r *FieldRegistry) ValidatePattern(pattern string) error {
	var invalid []string
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatch(pattern, -1) {
		name := m[1]
		if name == "?" || name == "*" {
			continue
		}
		if _, ok := r.fields[name]; !ok && !seen[name] {
			invalid = append(invalid, name)
			seen[name] = true
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return fmt.Errorf("pattern contains invalid fields: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// BuildRegex собирает из шаблона строку регулярного выражения:
// литеральные участки экранируются, плейсхолдеры заменяются на свои
// именованные группы, {?} соответствует сегменту без разделителей,
// {*} — любой последовательности символов.
func (r *FieldRegistry) BuildRegex(pattern string) string {
	var b strings.Builder
	last := 0
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		name := pattern[loc[2]:loc[3]]
		switch name {
		case "?":
			b.WriteString(`[^. _/]*`)
		case "*":
			b.WriteString(`.*`)
		default:
			b.WriteString(r.fields[name])
		}
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	return b.String()
}

// обязательные поля шаблона данных
var requiredFields = []string{"home", "component", "station"}

// допустимые комбинации полей даты
var dateFieldSets = [][]string{
	{"YYYY", "MM", "DD"},
	{"YYYY", "JJJ"},
	{"YY", "MM", "DD"},
	{"YY", "JJJ"},
}

// CheckPattern валидирует шаблон данных и компилирует его в регулярное
// выражение, привязанное к началу пути. Требования: все плейсхолдеры
// известны, без повторов, присутствуют {home}/{component}/{station} и
// хотя бы один полный набор полей даты. {home} подставляется каталогом
// архива как литерал.
func CheckPattern(arrayDir, pattern string, reg *FieldRegistry) (*regexp.Regexp, error) {
	return checkPattern(arrayDir, pattern, reg, true)
}

// CheckRespPattern — вариант для файлов инструментальных откликов
// (RESP, StationXML и т.п.): поля даты не требуются.
func CheckRespPattern(arrayDir, pattern string, reg *FieldRegistry) (*regexp.Regexp, error) {
	return checkPattern(arrayDir, pattern, reg, false)
}

func checkPattern(arrayDir, pattern string, reg *FieldRegistry, needDate bool) (*regexp.Regexp, error) {
	if err := reg.ValidatePattern(pattern); err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, m := range placeholderRe.FindAllStringSubmatch(pattern, -1) {
		if m[1] == "?" || m[1] == "*" {
			continue
		}
		counts[m[1]]++
	}
	var duplicates []string
	for name, n := range counts {
		if n > 1 {
			duplicates = append(duplicates, name)
		}
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		return nil, fmt.Errorf("pattern contains duplicate fields: %s", strings.Join(duplicates, ", "))
	}

	for _, f := range requiredFields {
		if counts[f] == 0 {
			return nil, fmt.Errorf("pattern must contain {%s}", f)
		}
	}

	if needDate {
		hasDate := false
		for _, set := range dateFieldSets {
			complete := true
			for _, f := range set {
				if counts[f] == 0 {
					complete = false
					break
				}
			}
			if complete {
				hasDate = true
				break
			}
		}
		if !hasDate {
			return nil, fmt.Errorf("pattern must contain one set of date fields")
		}
	}

	if info, err := os.Stat(arrayDir); err != nil || !info.IsDir() {
		reg.logger.Warn("array dir is not a directory", slog.String("dir", arrayDir))
	}

	pattern = strings.ReplaceAll(pattern, "{home}", filepath.Clean(arrayDir))
	re, err := regexp.Compile("^" + reg.BuildRegex(pattern))
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	return re, nil
}
