package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/mokuji/internal/archive"
	"github.com/hyperjump/mokuji/internal/catalog"
	"github.com/hyperjump/mokuji/internal/config"
	"github.com/hyperjump/mokuji/internal/enrich"
	"github.com/hyperjump/mokuji/internal/keyword"
	"github.com/hyperjump/mokuji/internal/models"
	"go.uber.org/zap"
)

const testManifest = `<?xml version="1.0"?>
<manifest xmlns:adlcp="http://www.adlnet.org/xsd/adlcp_rootv1p2">
  <organizations>
    <organization>
      <title>Golf Explained</title>
      <item identifier="lesson_1" identifierref="res_1">
        <title>Playing the Game</title>
      </item>
    </organization>
  </organizations>
  <resources>
    <resource identifier="res_1" adlcp:scormtype="sco" href="Playing/Playing.html?lesson=1"/>
  </resources>
</manifest>`

const testHTML = `<html><head><script>init();</script></head>
<body><h1>Playing the Game</h1><p>Golf is played by striking a ball with a club towards a hole on the course.</p></body></html>`

// buildPackage writes a zip with the given entries and returns its path.
func buildPackage(t *testing.T, entries map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "course.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPipeline(t *testing.T, uploads *config.UploadsConfig, apiKey, endpoint string) *Pipeline {
	t.Helper()
	enricher := enrich.NewClient(&config.EnrichConfig{
		APIKey:         apiKey,
		Endpoint:       endpoint,
		Model:          "test-model",
		TimeoutSeconds: 5,
	}, zap.NewNop())
	return New(uploads, enricher, nil, nil, zap.NewNop())
}

func TestProcessArchive_fullRunWithoutKey(t *testing.T) {
	uploads := &config.UploadsConfig{Dir: t.TempDir()}
	p := newTestPipeline(t, uploads, "", "http://unused.invalid")

	zipPath := buildPackage(t, map[string]string{
		"imsmanifest.xml":      testManifest,
		"Playing/Playing.html": testHTML,
	})
	resp, err := p.ProcessArchive(context.Background(), zipPath, "course.zip")
	if err != nil {
		t.Fatalf("ProcessArchive: %v", err)
	}

	if resp.ManifestParsingStatus != models.StageSuccess {
		t.Fatalf("manifest status = %s (%s)", resp.ManifestParsingStatus, resp.ManifestErrorDetails)
	}
	if resp.ManifestData.CourseTitle != "Golf Explained" {
		t.Errorf("title = %q", resp.ManifestData.CourseTitle)
	}
	if resp.FirstSCO == nil || resp.FirstSCO.Status != models.StageSuccess || resp.FirstSCO.SCO.Identifier != "lesson_1" {
		t.Errorf("first SCO = %+v", resp.FirstSCO)
	}
	// Query string on the href must not break file resolution.
	if resp.TextExtraction == nil || resp.TextExtraction.Status != models.StageSuccess {
		t.Fatalf("text extraction = %+v", resp.TextExtraction)
	}
	if resp.TextExtraction.Text != "Playing the Game Golf is played by striking a ball with a club towards a hole on the course." {
		t.Errorf("text = %q", resp.TextExtraction.Text)
	}
	// Without an API key the enrichment stage is a skip, not a failure.
	if resp.Enrichment == nil || resp.Enrichment.Status != models.StageSkipped || resp.Enrichment.Cause != models.EnrichMissingKey {
		t.Errorf("enrichment = %+v", resp.Enrichment)
	}
	if resp.DetectedLanguage != "English" {
		t.Errorf("detected language = %q", resp.DetectedLanguage)
	}
	// Extraction dir is removed when retention is off.
	if _, statErr := os.Stat(resp.ExtractedContentPath); !os.IsNotExist(statErr) {
		t.Errorf("extraction dir not cleaned up: %v", statErr)
	}
}

func TestProcessArchive_retainKeepsDir(t *testing.T) {
	uploads := &config.UploadsConfig{Dir: t.TempDir(), Retain: true}
	p := newTestPipeline(t, uploads, "", "http://unused.invalid")

	zipPath := buildPackage(t, map[string]string{"imsmanifest.xml": testManifest})
	resp, err := p.ProcessArchive(context.Background(), zipPath, "course.zip")
	if err != nil {
		t.Fatal(err)
	}
	if _, statErr := os.Stat(resp.ExtractedContentPath); statErr != nil {
		t.Errorf("retained extraction dir missing: %v", statErr)
	}
}

func TestProcessArchive_corruptArchive(t *testing.T) {
	uploads := &config.UploadsConfig{Dir: t.TempDir()}
	p := newTestPipeline(t, uploads, "", "http://unused.invalid")

	badPath := filepath.Join(t.TempDir(), "bad.zip")
	if err := os.WriteFile(badPath, []byte("not a zip"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := p.ProcessArchive(context.Background(), badPath, "bad.zip")
	if !errors.Is(err, archive.ErrCorruptArchive) {
		t.Errorf("got %v, want ErrCorruptArchive", err)
	}
}

func TestProcessArchive_missingManifest(t *testing.T) {
	uploads := &config.UploadsConfig{Dir: t.TempDir()}
	p := newTestPipeline(t, uploads, "", "http://unused.invalid")

	zipPath := buildPackage(t, map[string]string{"index.html": "<html></html>"})
	resp, err := p.ProcessArchive(context.Background(), zipPath, "course.zip")
	if err != nil {
		t.Fatalf("missing manifest must degrade, not fail: %v", err)
	}
	if resp.ManifestParsingStatus != models.StageError || resp.ManifestErrorDetails == "" {
		t.Errorf("manifest status = %s (%q)", resp.ManifestParsingStatus, resp.ManifestErrorDetails)
	}
	// SCO-dependent fields are omitted entirely.
	if resp.FirstSCO != nil || resp.TextExtraction != nil || resp.Enrichment != nil {
		t.Errorf("SCO-dependent fields present: %+v", resp)
	}
}

func TestProcessArchive_noSCOs(t *testing.T) {
	uploads := &config.UploadsConfig{Dir: t.TempDir()}
	p := newTestPipeline(t, uploads, "", "http://unused.invalid")

	zipPath := buildPackage(t, map[string]string{
		"imsmanifest.xml": `<manifest><organizations><organization><title>Empty</title></organization></organizations><resources/></manifest>`,
	})
	resp, err := p.ProcessArchive(context.Background(), zipPath, "empty.zip")
	if err != nil {
		t.Fatal(err)
	}
	if resp.FirstSCO == nil || resp.FirstSCO.Status != models.StageSkipped {
		t.Errorf("first SCO = %+v", resp.FirstSCO)
	}
}

func TestProcessArchive_nonHTMLEntryPoint(t *testing.T) {
	uploads := &config.UploadsConfig{Dir: t.TempDir()}
	p := newTestPipeline(t, uploads, "", "http://unused.invalid")

	manifestSWF := `<manifest><organizations><organization><title>Legacy</title>
<item identifier="i1" identifierref="r1"><title>Flash Lesson</title></item>
</organization></organizations>
<resources><resource identifier="r1" scormtype="sco" href="lesson.swf"/></resources></manifest>`
	zipPath := buildPackage(t, map[string]string{
		"imsmanifest.xml": manifestSWF,
		"lesson.swf":      "FWS...",
	})
	resp, err := p.ProcessArchive(context.Background(), zipPath, "legacy.zip")
	if err != nil {
		t.Fatal(err)
	}
	if resp.TextExtraction == nil || resp.TextExtraction.Status != models.StageSkipped {
		t.Errorf("text extraction = %+v", resp.TextExtraction)
	}
	if resp.Enrichment == nil || resp.Enrichment.Status != models.StageSkipped {
		t.Errorf("enrichment = %+v", resp.Enrichment)
	}
}

func TestProcessArchive_missingContentFile(t *testing.T) {
	uploads := &config.UploadsConfig{Dir: t.TempDir()}
	p := newTestPipeline(t, uploads, "", "http://unused.invalid")

	zipPath := buildPackage(t, map[string]string{"imsmanifest.xml": testManifest})
	resp, err := p.ProcessArchive(context.Background(), zipPath, "course.zip")
	if err != nil {
		t.Fatal(err)
	}
	// Stage ran and failed: distinct from a skip.
	if resp.TextExtraction == nil || resp.TextExtraction.Status != models.StageError || resp.TextExtraction.Error == "" {
		t.Errorf("text extraction = %+v", resp.TextExtraction)
	}
	if resp.Enrichment == nil || resp.Enrichment.Status != models.StageSkipped {
		t.Errorf("enrichment = %+v", resp.Enrichment)
	}
}

func TestProcessArchive_recordsCourse(t *testing.T) {
	dir := t.TempDir()
	store, err := catalog.NewStore(filepath.Join(dir, "courses.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	idx, err := keyword.NewIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"title\":\"Golf\",\"language\":\"English\"}"}]}}]}`))
	}))
	defer srv.Close()

	uploads := &config.UploadsConfig{Dir: t.TempDir()}
	enricher := enrich.NewClient(&config.EnrichConfig{
		APIKey: "k", Endpoint: srv.URL, Model: "m", TimeoutSeconds: 5,
	}, zap.NewNop())
	p := New(uploads, enricher, store, idx, zap.NewNop())

	zipPath := buildPackage(t, map[string]string{
		"imsmanifest.xml":      testManifest,
		"Playing/Playing.html": testHTML,
	})
	resp, err := p.ProcessArchive(context.Background(), zipPath, "golf.zip")
	if err != nil {
		t.Fatal(err)
	}
	if resp.CourseID == "" {
		t.Fatal("course not recorded")
	}

	ctx := context.Background()
	course, err := store.GetCourse(ctx, resp.CourseID)
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	if course.Title != "Golf Explained" || course.SCOCount != 1 {
		t.Errorf("course = %+v", course)
	}
	if course.Enrichment["language"] != "English" {
		t.Errorf("enrichment = %+v", course.Enrichment)
	}

	hits, err := idx.Search(ctx, "golf", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != resp.CourseID {
		t.Errorf("hits = %+v", hits)
	}
}

func TestHrefPath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"page.html?quiz=1", "page.html"},
		{"page.html#top", "page.html"},
		{"dir/page.html", "dir/page.html"},
		{"page.html", "page.html"},
	}
	for _, c := range cases {
		if got := HrefPath(c.in); got != c.want {
			t.Errorf("HrefPath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestContainedPath_rejectsEscape(t *testing.T) {
	root := t.TempDir()
	if _, err := containedPath(root, "../outside.html"); err == nil {
		t.Error("escaping href must be rejected")
	}
	if _, err := containedPath(root, "inside/page.html"); err != nil {
		t.Errorf("legitimate href rejected: %v", err)
	}
}

func TestSweepExpired(t *testing.T) {
	dir := t.TempDir()
	uploads := &config.UploadsConfig{Dir: dir, RetentionMinutes: 30}
	p := newTestPipeline(t, uploads, "", "http://unused.invalid")

	old := filepath.Join(dir, "stale_extraction")
	if err := os.MkdirAll(old, 0755); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}
	fresh := filepath.Join(dir, "fresh_extraction")
	if err := os.MkdirAll(fresh, 0755); err != nil {
		t.Fatal(err)
	}

	removed, err := p.SweepExpired()
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale dir survived sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh dir removed by sweep")
	}
}
