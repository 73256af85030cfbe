package enrich

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/silobot/silo/models"
)

// rawAnalysis is the tolerant shape of model output. Models drift between
// field names and between scalar and list values, so every field accepts
// more than the prompt asks for.
type rawAnalysis struct {
	Type     stringList    `json:"type"`
	Category stringList    `json:"category"`
	Topics   stringList    `json:"topics"`
	Entities []looseEntity `json:"entities"`
	Summary  string        `json:"summary"`
	Tags     stringList    `json:"tags"`
}

func (r rawAnalysis) normalize() models.Analysis {
	category := r.Type.first()
	if category == "" {
		category = r.Category.first()
	}
	if category == "" {
		category = "General"
	}

	seen := map[string]bool{}
	categories := []string{}
	for _, c := range append([]string{category}, r.Topics...) {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		categories = append(categories, c)
	}

	entities := make([]models.Entity, 0, len(r.Entities))
	for _, e := range r.Entities {
		if e.Name == "" {
			continue
		}
		entities = append(entities, models.Entity{Name: e.Name, Type: e.Type})
	}

	summary := strings.TrimSpace(r.Summary)
	if summary == "" {
		summary = "No summary available."
	}

	return models.Analysis{
		Category:   category,
		Categories: categories,
		Topics:     r.Topics,
		Entities:   entities,
		Summary:    summary,
		Tags:       r.Tags,
	}
}

// stringList accepts a JSON string, number or array and always yields a
// slice of non-empty strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		*s = stringifyAll(list)
		return nil
	}
	var single any
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*s = stringifyAll([]any{single})
	return nil
}

func (s stringList) first() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func stringifyAll(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		var str string
		switch t := v.(type) {
		case nil:
			continue
		case string:
			str = t
		default:
			str = fmt.Sprint(t)
		}
		if str = strings.TrimSpace(str); str != "" {
			out = append(out, str)
		}
	}
	return out
}

// looseEntity accepts either a bare string or an object with any of the
// name/entity/value and type/category key pairs models tend to emit.
type looseEntity struct {
	Name string
	Type string
}

func (e *looseEntity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Name = strings.TrimSpace(s)
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.Name = firstString(obj, "name", "entity", "value")
	e.Type = firstString(obj, "type", "category")
	return nil
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := obj[key].(string); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
