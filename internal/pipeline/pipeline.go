// Package pipeline sequences archive extraction, manifest parsing, text
// extraction, and metadata enrichment for one uploaded SCORM package.
//
// Only archive extraction is fatal. Every later stage degrades instead of
// aborting: its outcome is recorded in the response and dependent stages
// are skipped with a reason, so the caller always receives a complete
// record of what ran, what failed, and what never ran.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/mokuji/internal/archive"
	"github.com/hyperjump/mokuji/internal/catalog"
	"github.com/hyperjump/mokuji/internal/config"
	"github.com/hyperjump/mokuji/internal/enrich"
	"github.com/hyperjump/mokuji/internal/extract"
	"github.com/hyperjump/mokuji/internal/keyword"
	"github.com/hyperjump/mokuji/internal/langid"
	"github.com/hyperjump/mokuji/internal/manifest"
	"github.com/hyperjump/mokuji/internal/models"
	"go.uber.org/zap"
)

// Pipeline processes uploaded SCORM archives. Store and index are optional;
// when nil, parsed courses are not recorded.
type Pipeline struct {
	uploads   *config.UploadsConfig
	extractor *extract.Extractor
	enricher  *enrich.Client
	detector  *langid.Detector
	store     *catalog.Store
	index     *keyword.Index
	logger    *zap.Logger
}

// New creates a pipeline with the given dependencies.
func New(uploads *config.UploadsConfig, enricher *enrich.Client, store *catalog.Store, index *keyword.Index, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		uploads:   uploads,
		extractor: extract.NewExtractor(),
		enricher:  enricher,
		detector:  langid.NewDetector(),
		store:     store,
		index:     index,
		logger:    logger,
	}
}

// ProcessArchive runs the full pipeline over the zip at archivePath.
// sourceName is the caller-supplied file name, used for the extraction
// directory prefix and the catalog record. An error is returned only for
// a corrupt archive or an internal fault; every other failure is carried
// inside the response.
func (p *Pipeline) ProcessArchive(ctx context.Context, archivePath, sourceName string) (*models.PipelineResponse, error) {
	extractDir := filepath.Join(p.uploads.Dir, extractionDirName(sourceName))
	if err := archive.Extract(archivePath, extractDir); err != nil {
		// All-or-nothing: drop whatever was partially written.
		_ = os.RemoveAll(extractDir)
		return nil, err
	}
	if !p.uploads.Retain {
		defer func() {
			if err := os.RemoveAll(extractDir); err != nil {
				p.logger.Warn("extraction dir cleanup failed", zap.String("dir", extractDir), zap.Error(err))
			}
		}()
	}

	resp := &models.PipelineResponse{
		Message:              "File uploaded and extracted successfully",
		ExtractedContentPath: extractDir,
	}

	cm, err := manifest.Parse(extractDir)
	if err != nil {
		p.logger.Info("manifest parse failed", zap.String("source", sourceName), zap.Error(err))
		resp.ManifestParsingStatus = models.StageError
		resp.ManifestErrorDetails = err.Error()
		return resp, nil
	}
	resp.ManifestParsingStatus = models.StageSuccess
	resp.ManifestData = cm

	text := p.processFirstSCO(ctx, resp, cm, extractDir)
	p.record(ctx, resp, cm, text, sourceName)
	return resp, nil
}

// processFirstSCO selects the entry-point SCO, extracts its text, and runs
// enrichment. Returns the extracted text ("" when nothing was extracted).
func (p *Pipeline) processFirstSCO(ctx context.Context, resp *models.PipelineResponse, cm *models.CourseManifest, extractDir string) string {
	if len(cm.SCOs) == 0 {
		resp.FirstSCO = &models.SCOSelection{
			Status: models.StageSkipped,
			Reason: "no processable SCOs in manifest",
		}
		return ""
	}
	first := cm.SCOs[0]
	resp.FirstSCO = &models.SCOSelection{Status: models.StageSuccess, SCO: &first}

	resp.TextExtraction = p.extractText(first, extractDir)
	if resp.TextExtraction.Status != models.StageSuccess {
		resp.Enrichment = &models.EnrichmentResult{
			Status: models.StageSkipped,
			Detail: "text extraction did not produce content",
		}
		return ""
	}

	text := resp.TextExtraction.Text
	resp.Enrichment = p.enricher.Enrich(ctx, text)
	if lang := enrichedLanguage(resp.Enrichment); lang == "" && text != "" {
		resp.DetectedLanguage = p.detector.Detect(text)
	}
	return text
}

// extractText resolves the SCO's href against the extraction root and pulls
// plain text from it. Non-HTML entry points and missing hrefs are skips,
// not errors.
func (p *Pipeline) extractText(sco models.SCO, extractDir string) *models.TextExtractionResult {
	if sco.Href == "" {
		return &models.TextExtractionResult{
			Status: models.StageSkipped,
			Reason: "first SCO has no content href",
		}
	}
	rel := HrefPath(sco.Href)
	if !isHTMLPath(rel) {
		return &models.TextExtractionResult{
			Status: models.StageSkipped,
			Reason: fmt.Sprintf("first SCO entry point %q is not an HTML document", rel),
		}
	}
	full, err := containedPath(extractDir, rel)
	if err != nil {
		return &models.TextExtractionResult{
			Status: models.StageError,
			Error:  err.Error(),
		}
	}
	text, err := p.extractor.ExtractFile(full)
	if err != nil {
		return &models.TextExtractionResult{
			Status: models.StageError,
			Error:  err.Error(),
		}
	}
	return &models.TextExtractionResult{Status: models.StageSuccess, Text: text}
}

// record persists the parsed course and indexes its text. Failures are
// logged but never fail the request.
func (p *Pipeline) record(ctx context.Context, resp *models.PipelineResponse, cm *models.CourseManifest, text, sourceName string) {
	if p.store == nil {
		return
	}
	course := &models.Course{
		ID:         uuid.NewString(),
		Title:      cm.CourseTitle,
		SCOCount:   len(cm.SCOs),
		Content:    text,
		SourceFile: sourceName,
	}
	if resp.Enrichment != nil && resp.Enrichment.Status == models.StageSuccess {
		course.Enrichment = resp.Enrichment.Data
	}
	if err := p.store.SaveCourse(ctx, course); err != nil {
		p.logger.Warn("course catalog save failed", zap.String("title", course.Title), zap.Error(err))
		return
	}
	if p.index != nil {
		if err := p.index.IndexCourse(ctx, course); err != nil {
			p.logger.Warn("course index failed", zap.String("id", course.ID), zap.Error(err))
		}
	}
	resp.CourseID = course.ID
}

// enrichedLanguage returns the language the enrichment stage reported, if any.
func enrichedLanguage(res *models.EnrichmentResult) string {
	if res == nil || res.Status != models.StageSuccess {
		return ""
	}
	if lang, ok := res.Data["language"].(string); ok {
		return lang
	}
	return ""
}

// HrefPath strips a query string or fragment from a manifest href, leaving
// the filesystem path portion (e.g. "page.html?quiz=1" -> "page.html").
func HrefPath(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		return href[:i]
	}
	return href
}

func isHTMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm"
}

// containedPath joins rel onto root and rejects paths that escape it.
// Manifest hrefs are untrusted input, same as archive entry names.
func containedPath(root, rel string) (string, error) {
	full := filepath.Join(root, filepath.FromSlash(rel))
	r, err := filepath.Rel(root, full)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("content href %q escapes the extraction directory", rel)
	}
	return full, nil
}

// extractionDirName builds a collision-free directory name for one request:
// sanitized source base name plus a random identifier, so concurrent
// uploads never interleave writes.
func extractionDirName(sourceName string) string {
	base := strings.TrimSuffix(filepath.Base(sourceName), filepath.Ext(sourceName))
	base = sanitizeName(base)
	if base == "" {
		base = "package"
	}
	return base + "_" + uuid.NewString()
}

// sanitizeName keeps letters, digits, dash, and underscore.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
