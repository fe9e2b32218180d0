package database

import (
	"testing"

	"souschef/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDoc() *models.RecipeDocument {
	return &models.RecipeDocument{
		Recipe: models.RecipeMeta{
			Title:         "Roast Squash Salad",
			TotalDuration: "PT50M",
			Servings:      4,
			Difficulty:    "easy",
			Locale:        "en-GB",
		},
		Ingredients: []models.Ingredient{
			{Name: "butternut squash", Quantity: "1"},
			{Name: "olive oil", Quantity: "2", Unit: "tbsp"},
		},
		Utensils: []string{"oven", "roasting tin"},
		Steps: []models.RecipeStep{
			{ID: "preheat_oven", Description: "Preheat the oven", Type: models.StepTypeImmediate},
			{ID: "roast_squash", Description: "Roast the squash", Type: models.StepTypeTimer,
				Duration: "PT40M", DependsOn: []string{"preheat_oven"}},
		},
		Notes: "Best served warm.",
	}
}

func TestOpenUnsupportedDialect(t *testing.T) {
	if _, err := Open("mongodb", ""); err == nil {
		t.Fatal("Open accepted an unsupported dialect")
	}
}

func TestSaveAndGetDocument(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveDocument("squash-salad", sampleDoc()); err != nil {
		t.Fatalf("SaveDocument() failed: %v", err)
	}

	doc, err := s.GetDocument("squash-salad")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if doc.Recipe.Title != "Roast Squash Salad" {
		t.Errorf("loaded title = %q", doc.Recipe.Title)
	}
	if len(doc.Steps) != 2 {
		t.Fatalf("loaded %d steps, want 2", len(doc.Steps))
	}
	if doc.Steps[1].Duration != "PT40M" {
		t.Errorf("loaded step duration = %q, want PT40M", doc.Steps[1].Duration)
	}
	if len(doc.Steps[1].DependsOn) != 1 || doc.Steps[1].DependsOn[0] != "preheat_oven" {
		t.Errorf("loaded dependencies = %v", doc.Steps[1].DependsOn)
	}
}

func TestSaveDocumentUpserts(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveDocument("r1", sampleDoc()); err != nil {
		t.Fatal(err)
	}
	updated := sampleDoc()
	updated.Recipe.Title = "Roast Squash Salad v2"
	if err := s.SaveDocument("r1", updated); err != nil {
		t.Fatal(err)
	}

	recipes, err := s.ListRecipes()
	if err != nil {
		t.Fatal(err)
	}
	if len(recipes) != 1 {
		t.Fatalf("ListRecipes() returned %d rows, want 1", len(recipes))
	}
	if recipes[0].Title != "Roast Squash Salad v2" {
		t.Errorf("title after upsert = %q", recipes[0].Title)
	}
}

func TestGetDocumentMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetDocument("missing"); err == nil {
		t.Fatal("GetDocument for unknown id succeeded")
	}
}

func TestDeleteRecipe(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveDocument("r1", sampleDoc()); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRecipe("r1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetDocument("r1"); err == nil {
		t.Error("recipe still readable after delete")
	}
	if err := s.DeleteRecipe("never-existed"); err != nil {
		t.Errorf("deleting unknown recipe failed: %v", err)
	}
}
