package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/mokuji/internal/models"
)

// FileName is the required manifest file name at the package root.
const FileName = "imsmanifest.xml"

// DefaultCourseTitle is used when the manifest carries no organization title.
const DefaultCourseTitle = "Untitled Course"

// DefaultSCOTitle is used when an item has neither a title nor an identifier.
const DefaultSCOTitle = "Untitled SCO"

// ErrorCode classifies manifest parse failures.
type ErrorCode string

const (
	ManifestNotFound    ErrorCode = "manifest_not_found"
	MalformedXML        ErrorCode = "malformed_xml"
	InvalidManifestRoot ErrorCode = "invalid_manifest_root"
)

// ParseError is a structured, recoverable manifest failure. The pipeline
// carries it in the response instead of aborting the request.
type ParseError struct {
	Code    ErrorCode
	Message string
}

func (e *ParseError) Error() string { return e.Message }

// Parse reads imsmanifest.xml directly under extractedDir and derives the
// normalized course manifest. All failures are returned as *ParseError.
func Parse(extractedDir string) (*models.CourseManifest, error) {
	path := filepath.Join(extractedDir, FileName)
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Code: ManifestNotFound, Message: "manifest file (imsmanifest.xml) not found in the package"}
	}
	defer f.Close()

	root, err := parseTree(f)
	if err != nil {
		return nil, &ParseError{Code: MalformedXML, Message: "failed to parse manifest XML: " + err.Error()}
	}
	if root.Tag != "manifest" {
		return nil, &ParseError{Code: InvalidManifestRoot, Message: "manifest root element not found"}
	}

	org := firstOrganization(root)
	return &models.CourseManifest{
		CourseTitle: courseTitle(org),
		SCOs:        deriveSCOs(collectItems(org), indexResources(root)),
	}, nil
}

// firstOrganization returns the first organizations.organization element, or nil.
func firstOrganization(root *Element) *Element {
	orgs := root.Child("organizations")
	if orgs == nil {
		return nil
	}
	return orgs.Child("organization")
}

func courseTitle(org *Element) string {
	if org == nil {
		return DefaultCourseTitle
	}
	if title := org.Child("title"); title != nil {
		if text := title.TrimmedText(); text != "" {
			return text
		}
	}
	return DefaultCourseTitle
}

// collectItems flattens every item element under org, depth-first in
// document order, including items nested arbitrarily deep. Uses an explicit
// stack; nesting depth is already bounded at XML parse time.
func collectItems(org *Element) []*Element {
	if org == nil {
		return nil
	}
	var out []*Element
	stack := reversed(org.ChildrenByTag("item"))
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, item)
		stack = append(stack, reversed(item.ChildrenByTag("item"))...)
	}
	return out
}

// reversed returns a copy of items in reverse order, so that popping from
// the stack yields document order.
func reversed(items []*Element) []*Element {
	out := make([]*Element, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	return out
}

type resourceInfo struct {
	href      string
	scormType string
}

// indexResources maps resource identifier -> {href, scormtype} from the
// resources subtree. A resource with no scormtype attribute (under any
// namespace prefix) is indexed with an empty type and never becomes a SCO.
func indexResources(root *Element) map[string]resourceInfo {
	idx := make(map[string]resourceInfo)
	resources := root.Child("resources")
	if resources == nil {
		return idx
	}
	for _, r := range resources.ChildrenByTag("resource") {
		id := r.Attr("identifier")
		if id == "" {
			continue
		}
		idx[id] = resourceInfo{href: r.Attr("href"), scormType: r.AttrFold("scormtype")}
	}
	return idx
}

// deriveSCOs emits one SCO per item whose identifierref resolves to a
// resource of scormtype "sco", preserving item document order. Items
// referencing assets or nothing at all are dropped.
func deriveSCOs(items []*Element, resources map[string]resourceInfo) []models.SCO {
	scos := make([]models.SCO, 0, len(items))
	for _, item := range items {
		ref := item.Attr("identifierref")
		if ref == "" {
			continue
		}
		res, ok := resources[ref]
		if !ok || !strings.EqualFold(res.scormType, "sco") {
			continue
		}
		scos = append(scos, models.SCO{
			Identifier: item.Attr("identifier"),
			Title:      itemTitle(item),
			Href:       res.href,
		})
	}
	return scos
}

// itemTitle falls back: title child text -> item identifier -> default.
func itemTitle(item *Element) string {
	if title := item.Child("title"); title != nil {
		if text := title.TrimmedText(); text != "" {
			return text
		}
	}
	if id := item.Attr("identifier"); id != "" {
		return id
	}
	return DefaultSCOTitle
}
