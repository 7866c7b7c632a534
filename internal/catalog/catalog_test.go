package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/mokuji/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "courses.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndGetCourse(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	course := &models.Course{
		ID:       "c1",
		Title:    "Golf Explained",
		SCOCount: 3,
		Content:  "Golf is played by striking a ball.",
		Enrichment: map[string]interface{}{
			"language": "English",
			"keywords": []interface{}{"golf", "sports"},
		},
		SourceFile: "golf.zip",
	}
	if err := store.SaveCourse(ctx, course); err != nil {
		t.Fatalf("SaveCourse: %v", err)
	}

	got, err := store.GetCourse(ctx, "c1")
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	if got.Title != course.Title || got.SCOCount != 3 || got.Content != course.Content {
		t.Errorf("got %+v", got)
	}
	if got.Enrichment["language"] != "English" {
		t.Errorf("enrichment = %+v", got.Enrichment)
	}
}

func TestGetCourse_notFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetCourse(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing course")
	}
}

func TestListCourses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		err := store.SaveCourse(ctx, &models.Course{ID: id, Title: "Course " + id, Content: "x"})
		if err != nil {
			t.Fatalf("SaveCourse %s: %v", id, err)
		}
	}
	courses, err := store.ListCourses(ctx, 10)
	if err != nil {
		t.Fatalf("ListCourses: %v", err)
	}
	if len(courses) != 3 {
		t.Errorf("got %d courses, want 3", len(courses))
	}
	count, err := store.CountCourses(ctx)
	if err != nil || count != 3 {
		t.Errorf("CountCourses = %d, %v", count, err)
	}
}

func TestDeleteCourse(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.SaveCourse(ctx, &models.Course{ID: "d1", Title: "Doomed", Content: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteCourse(ctx, "d1"); err != nil {
		t.Fatalf("DeleteCourse: %v", err)
	}
	if err := store.DeleteCourse(ctx, "d1"); err == nil {
		t.Error("deleting a missing course should error")
	}
}
