package criteria

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type listSummary struct {
	Field    string  `yaml:"field"`
	DataType string  `yaml:"data_type"`
	Values   []Value `yaml:"values"`
}

type pairSummary struct {
	Start Value `yaml:"start"`
	End   Value `yaml:"end"`
}

type rangeSummary struct {
	Field    string        `yaml:"field"`
	DataType string        `yaml:"data_type"`
	Pairs    []pairSummary `yaml:"pairs"`
}

type criteriaSummary struct {
	List    []listSummary     `yaml:"list_criteria"`
	Range   []rangeSummary    `yaml:"range_criteria"`
	TypeMap map[string]string `yaml:"type_map"`
}

// Summary возвращает YAML-дамп активных правил и карты типов.
// Чисто наблюдательная функция, на фильтрацию не влияет.
func (f *Filter) Summary() string {
	doc := criteriaSummary{
		TypeMap: make(map[string]string, len(f.typeMap)),
	}
	for _, rule := range f.listRules {
		doc.List = append(doc.List, listSummary{
			Field:    rule.field,
			DataType: f.typeMap[rule.field].String(),
			Values:   rule.allowed,
		})
	}
	for _, rule := range f.rangeRules {
		pairs := make([]pairSummary, len(rule.pairs))
		for i, p := range rule.pairs {
			pairs[i] = pairSummary{Start: p.start, End: p.end}
		}
		doc.Range = append(doc.Range, rangeSummary{
			Field:    rule.field,
			DataType: f.typeMap[rule.field].String(),
			Pairs:    pairs,
		})
	}
	for field, declared := range f.typeMap {
		doc.TypeMap[field] = declared.String()
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Sprintf("criteria summary unavailable: %v", err)
	}
	return string(out)
}

// ShowCriteria пишет сводку правил в журнал диагностики.
func (f *Filter) ShowCriteria() {
	f.logger.Debug("===== Filter Criteria Summary =====\n" + f.Summary())
}

// LoadCriteria читает описание критериев из YAML-файла. Ключи
// сохраняют регистр, поэтому имена полей вроде sampleF не искажаются.
func LoadCriteria(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read criteria file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse criteria file: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}
