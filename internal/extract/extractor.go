package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"souschef/internal/models"
)

const extractionPrompt = `You are a recipe structuring assistant. Convert the
recipe below into a JSON object with this shape:

{
  "recipe": {"title": "", "total_duration": "PT45M", "servings": 2, "difficulty": "easy", "locale": "en-US", "source": ""},
  "ingredients": [{"name": "", "quantity": "", "unit": ""}],
  "utensils": [""],
  "steps": [{"id": "snake_case_id", "description": "", "instructions": "", "type": "immediate|timer", "auto_start": false, "requires_confirm": false, "duration": "PT10M", "depends_on": ["other_step_id"]}],
  "notes": ""
}

Durations are ISO-8601 (PT#H#M#S). Use "timer" only for steps with a
waiting period. depends_on lists the step ids that must finish first.
Respond with the JSON object only.

Recipe:
%s`

// Extractor turns free-form recipe text into a validated recipe document.
type Extractor struct {
	model llms.Model
}

// NewExtractor creates an extractor backed by the given model.
func NewExtractor(model llms.Model) *Extractor {
	return &Extractor{model: model}
}

// Extract structures raw recipe text and validates the result so callers
// can hand the document straight to the session layer.
func (e *Extractor) Extract(ctx context.Context, text string) (*models.RecipeDocument, error) {
	resp, err := llms.GenerateFromSinglePrompt(ctx, e.model,
		fmt.Sprintf(extractionPrompt, text),
		llms.WithTemperature(0),
	)
	if err != nil {
		return nil, fmt.Errorf("recipe extraction: %w", err)
	}

	var doc models.RecipeDocument
	if err := json.Unmarshal([]byte(stripFences(resp)), &doc); err != nil {
		return nil, fmt.Errorf("parse extracted recipe: %w", err)
	}
	if err := ValidateDocument(&doc); err != nil {
		return nil, fmt.Errorf("extracted recipe invalid: %w", err)
	}
	return &doc, nil
}

// ValidateDocument performs the schema checks the engine assumes have
// already happened: non-empty steps, unique ids, resolvable dependencies,
// and parseable durations on timer steps.
func ValidateDocument(doc *models.RecipeDocument) error {
	if doc.Recipe.Title == "" {
		return fmt.Errorf("recipe title is required")
	}
	if len(doc.Steps) == 0 {
		return fmt.Errorf("recipe has no steps")
	}

	ids := make(map[string]bool, len(doc.Steps))
	for _, st := range doc.Steps {
		if st.ID == "" {
			return fmt.Errorf("step with empty id")
		}
		if ids[st.ID] {
			return fmt.Errorf("duplicate step id %q", st.ID)
		}
		ids[st.ID] = true

		switch st.Type {
		case models.StepTypeImmediate:
		case models.StepTypeTimer:
			if _, err := models.ParseISO8601Duration(st.Duration); err != nil {
				return fmt.Errorf("step %q: %w", st.ID, err)
			}
		default:
			return fmt.Errorf("step %q has unknown type %q", st.ID, st.Type)
		}
	}
	for _, st := range doc.Steps {
		for _, dep := range st.DependsOn {
			if !ids[dep] {
				return fmt.Errorf("step %q depends on unknown step %q", st.ID, dep)
			}
		}
	}
	return nil
}

// stripFences removes a markdown code fence if the model wrapped its
// JSON in one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
