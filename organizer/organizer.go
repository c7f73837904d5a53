// Пакет organizer перегруппировывает отфильтрованные записи по
// значениям выбранных полей-меток (station, component и т.п.).
package organizer

import (
	"log/slog"
	"sort"
	"strings"

	"seis-filter/criteria"
)

// Group — записи с одинаковой комбинацией значений меток.
type Group struct {
	// Key — значения меток в порядке запроса.
	Key []string
	// Records — записи группы.
	Records []criteria.Record
}

// GroupBy группирует записи по значениям labels. Записи без какой-либо
// из меток пропускаются. Группы возвращаются в отсортированном порядке
// ключей, внутри группы записи сортируются по sortLabels.
func GroupBy(records []criteria.Record, labels, sortLabels []string) []Group {
	byKey := make(map[string]*Group)
	var keys []string

	for _, rec := range records {
		key, ok := labelKey(rec, labels)
		if !ok {
			continue
		}
		joined := strings.Join(key, "\x00")
		g, exists := byKey[joined]
		if !exists {
			g = &Group{Key: key}
			byKey[joined] = g
			keys = append(keys, joined)
		}
		g.Records = append(g.Records, rec)
	}

	sort.Strings(keys)
	out := make([]Group, 0, len(keys))
	for _, k := range keys {
		g := byKey[k]
		if len(sortLabels) > 0 {
			sortRecords(g.Records, sortLabels)
		}
		out = append(out, *g)
	}
	return out
}

// Organize строит вложенную структуру: на каждом уровне ключ — значение
// очередной метки из labelOrder, в листьях — записи (output == "dict")
// либо их пути (output == "path"). Неизвестный output трактуется как
// "dict" с предупреждением.
func Organize(records []criteria.Record, labelOrder []string, output string, logger *slog.Logger) map[string]any {
	if logger == nil {
		logger = slog.Default()
	}
	if output != "path" && output != "dict" {
		logger.Warn("output type should be 'path' or 'dict', falling back to 'dict'",
			slog.String("output", output))
		output = "dict"
	}
	return organize(records, labelOrder, output)
}

func organize(records []criteria.Record, labels []string, output string) map[string]any {
	out := make(map[string]any)
	if len(labels) == 0 {
		return out
	}

	buckets := make(map[string][]criteria.Record)
	for _, rec := range records {
		val, ok := rec[labels[0]]
		if !ok {
			continue
		}
		buckets[val.String()] = append(buckets[val.String()], rec)
	}

	for key, group := range buckets {
		if len(labels) > 1 {
			out[key] = organize(group, labels[1:], output)
			continue
		}
		if output == "path" {
			paths := make([]string, 0, len(group))
			for _, rec := range group {
				if p, ok := rec["path"]; ok {
					paths = append(paths, p.String())
				}
			}
			sort.Strings(paths)
			out[key] = paths
		} else {
			out[key] = group
		}
	}
	return out
}

func labelKey(rec criteria.Record, labels []string) ([]string, bool) {
	key := make([]string, len(labels))
	for i, label := range labels {
		val, ok := rec[label]
		if !ok {
			return nil, false
		}
		key[i] = val.String()
	}
	return key, true
}

func sortRecords(records []criteria.Record, sortLabels []string) {
	sort.SliceStable(records, func(i, j int) bool {
		for _, label := range sortLabels {
			vi, oki := records[i][label]
			vj, okj := records[j][label]
			if !oki || !okj {
				continue
			}
			si, sj := vi.String(), vj.String()
			if si != sj {
				return si < sj
			}
		}
		return false
	})
}
