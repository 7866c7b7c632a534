// Package models defines core data structures for manifests, courses, and pipeline responses.
package models

// SCO is a Shareable Content Object: a launchable content unit derived from
// a manifest item whose resource carries scormtype "sco".
type SCO struct {
	// Identifier is the item identifier (not the resource identifier).
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	// Href is the resource's content entry path relative to the extraction
	// root. It may carry a query string; strip it before touching the filesystem.
	Href string `json:"href"`
}

// CourseManifest is the normalized view of an imsmanifest.xml: the course
// title plus every SCO in document order. SCOs holds only items whose
// identifierref resolves to a resource of scormtype "sco"; assets and
// navigation-only items are excluded.
type CourseManifest struct {
	CourseTitle string `json:"course_title"`
	SCOs        []SCO  `json:"scos"`
}
