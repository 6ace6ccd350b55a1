package bookpipe

import "errors"

// Only container-level failures are fatal: if the archive or the PDF cannot
// be opened at all, the whole operation fails. Anything below that boundary
// (a page, a spine item, one chapter's content) degrades to skip or
// placeholder instead, because source documents are malformed by default.
var (
	ErrUnsupportedFormat = errors.New("bookpipe: unsupported document format")

	ErrMissingContainer       = errors.New("epub: META-INF/container.xml not found")
	ErrMissingPackageDocument = errors.New("epub: package document not readable")
	ErrUnresolvedSpineItem    = errors.New("epub: spine item missing from manifest")

	ErrPDFLoad = errors.New("pdf: document not readable")

	ErrChapterUnavailable = errors.New("bookpipe: chapter content unavailable")
)
