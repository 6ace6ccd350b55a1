package bookpipe

// Format identifies a book container type.
type Format string

const (
	FormatEPUB Format = "epub"
	FormatPDF  Format = "pdf"
)

// ContentRef locates a chapter's content inside its source document.
// Exactly two implementations exist: EpubRef and PdfRef.
type ContentRef interface {
	isContentRef()
}

// EpubRef points at one content document inside an EPUB package.
// The href is an archive path, already resolved against the package
// document's directory.
type EpubRef struct {
	Href string `json:"href"`
}

func (EpubRef) isContentRef() {}

// PdfRef is an inclusive, 1-based page range inside a PDF.
type PdfRef struct {
	StartPage int `json:"start_page"`
	EndPage   int `json:"end_page"`
}

func (PdfRef) isContentRef() {}

// Chapter is one logical chapter in reading order.
type Chapter struct {
	Title string     `json:"title"`
	Order int        `json:"order"` // 1-based position in reading order
	Ref   ContentRef `json:"ref"`
}

// Book is the result of chapter discovery on one document.
type Book struct {
	Path     string            `json:"path"`
	Format   Format            `json:"format"`
	Title    string            `json:"title,omitempty"` // document metadata title, may be empty
	Chapters []Chapter         `json:"chapters"`
	Quality  *DiscoveryQuality `json:"quality,omitempty"`
}

// TextFragment is one positioned text run on a PDF page.
type TextFragment struct {
	Text     string
	X, Y     float64
	FontSize float64
}
