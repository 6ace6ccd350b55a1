package bookpipe

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

const containerEntry = "META-INF/container.xml"

// epubContainer mirrors META-INF/container.xml.
type epubContainer struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// epubPackage mirrors the OPF package document: metadata, manifest and spine.
type epubPackage struct {
	Metadata struct {
		Title string `xml:"title"`
	} `xml:"metadata"`
	Manifest []epubItem `xml:"manifest>item"`
	Spine    []struct {
		IDRef  string `xml:"idref,attr"`
		Linear string `xml:"linear,attr"`
	} `xml:"spine>itemref"`
}

type epubItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

// epubNCX mirrors the NCX navigation document.
type epubNCX struct {
	NavPoints []epubNavPoint `xml:"navMap>navPoint"`
}

type epubNavPoint struct {
	Label   string `xml:"navLabel>text"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []epubNavPoint `xml:"navPoint"`
}

// epubSpine is the resolved reading order of one package.
type epubSpine struct {
	title     string            // package metadata title
	hrefs     []string          // content document archive paths, in spine order
	ncxTitles map[string]string // href -> navigation label, when an NCX exists
}

// discoverEPUB resolves the package into one chapter per XHTML spine item.
// Spine order is authoritative and never re-sorted.
func (p *Pipeline) discoverEPUB(ctx context.Context, docPath string) (*Book, error) {
	r, err := zip.OpenReader(docPath)
	if err != nil {
		return nil, fmt.Errorf("open epub %s: %w", docPath, err)
	}
	defer r.Close()

	spine, err := p.resolveSpine(&r.Reader)
	if err != nil {
		return nil, err
	}

	book := &Book{
		Path:    docPath,
		Format:  FormatEPUB,
		Title:   normalizeTitle(spine.title, p.cfg.MaxTitleLen),
		Quality: &DiscoveryQuality{Strategy: StrategySpine, ChapterCount: len(spine.hrefs)},
	}

	for i, href := range spine.hrefs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("epub discovery canceled: %w", err)
		}
		title := spine.ncxTitles[href]
		if title == "" {
			// Per-document failures degrade to the generic title; one broken
			// content document never aborts the whole book.
			content, err := readArchiveEntry(&r.Reader, href)
			if err != nil {
				p.logger.Debug("chapter content unreadable", "href", href, "error", err)
			}
			title = p.chapterTitle(content, href, i+1)
		}
		book.Chapters = append(book.Chapters, Chapter{
			Title: normalizeTitle(title, p.cfg.MaxTitleLen),
			Order: i + 1,
			Ref:   EpubRef{Href: href},
		})
	}

	return book, nil
}

// resolveSpine reads the container descriptor, parses the package document
// and returns the ordered list of XHTML content documents.
func (p *Pipeline) resolveSpine(r *zip.Reader) (*epubSpine, error) {
	containerData, err := readArchiveEntry(r, containerEntry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingContainer, err)
	}

	var container epubContainer
	if err := xml.Unmarshal(containerData, &container); err != nil {
		return nil, fmt.Errorf("%w: parse container: %v", ErrMissingContainer, err)
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return nil, fmt.Errorf("%w: no rootfile declared", ErrMissingPackageDocument)
	}

	opfPath := container.Rootfiles[0].FullPath
	opfData, err := readArchiveEntry(r, opfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingPackageDocument, opfPath, err)
	}

	var pkg epubPackage
	if err := xml.Unmarshal(opfData, &pkg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrMissingPackageDocument, opfPath, err)
	}

	manifest := make(map[string]epubItem, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		manifest[item.ID] = item
	}

	baseDir := path.Dir(opfPath)
	spine := &epubSpine{title: pkg.Metadata.Title}

	for _, ref := range pkg.Spine {
		if ref.Linear == "no" {
			continue
		}
		item, ok := manifest[ref.IDRef]
		if !ok {
			p.logger.Debug("skipping spine item", "idref", ref.IDRef, "error", ErrUnresolvedSpineItem)
			continue
		}
		if !isXHTML(item.MediaType) {
			continue
		}
		spine.hrefs = append(spine.hrefs, resolveHref(baseDir, item.Href))
	}

	spine.ncxTitles = p.ncxTitles(r, baseDir, pkg.Manifest)
	return spine, nil
}

// ncxTitles maps resolved content-document paths to navigation labels when
// the package carries an NCX document. Labels beat per-document heuristics.
func (p *Pipeline) ncxTitles(r *zip.Reader, baseDir string, manifest []epubItem) map[string]string {
	var ncxHref string
	for _, item := range manifest {
		if item.MediaType == "application/x-dtbncx+xml" {
			ncxHref = resolveHref(baseDir, item.Href)
			break
		}
	}
	if ncxHref == "" {
		return nil
	}

	data, err := readArchiveEntry(r, ncxHref)
	if err != nil {
		p.logger.Debug("ncx unreadable", "href", ncxHref, "error", err)
		return nil
	}
	var ncx epubNCX
	if err := xml.Unmarshal(data, &ncx); err != nil {
		p.logger.Debug("ncx unparseable", "href", ncxHref, "error", err)
		return nil
	}

	titles := make(map[string]string)
	ncxDir := path.Dir(ncxHref)
	var walk func(points []epubNavPoint, depth int)
	walk = func(points []epubNavPoint, depth int) {
		if depth > 32 {
			return
		}
		for _, np := range points {
			src := np.Content.Src
			if i := strings.IndexByte(src, '#'); i >= 0 {
				src = src[:i]
			}
			label := strings.TrimSpace(np.Label)
			if src != "" && label != "" {
				href := resolveHref(ncxDir, src)
				if _, seen := titles[href]; !seen {
					titles[href] = label
				}
			}
			walk(np.Children, depth+1)
		}
	}
	walk(ncx.NavPoints, 0)
	return titles
}

// readEPUBEntry opens the archive and reads one named entry.
func (p *Pipeline) readEPUBEntry(docPath, href string) ([]byte, error) {
	r, err := zip.OpenReader(docPath)
	if err != nil {
		return nil, fmt.Errorf("open epub %s: %w", docPath, err)
	}
	defer r.Close()
	return readArchiveEntry(&r.Reader, href)
}

// readArchiveEntry looks up a named entry, trying an exact match first and a
// case-insensitive match second. Real-world packages disagree on casing.
func readArchiveEntry(r *zip.Reader, name string) ([]byte, error) {
	name = strings.TrimPrefix(path.Clean(name), "./")
	var fallback *zip.File
	for _, f := range r.File {
		clean := strings.TrimPrefix(path.Clean(f.Name), "./")
		if clean == name {
			return readZipFile(f)
		}
		if fallback == nil && strings.EqualFold(clean, name) {
			fallback = f
		}
	}
	if fallback != nil {
		return readZipFile(fallback)
	}
	return nil, fmt.Errorf("entry %q not found in archive", name)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

func isXHTML(mediaType string) bool {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "application/xhtml+xml", "text/html":
		return true
	}
	return false
}

// resolveHref joins a relative href onto the directory of the document that
// referenced it. Archive paths are slash-separated regardless of platform.
func resolveHref(baseDir, href string) string {
	href = strings.TrimSpace(href)
	if baseDir == "." || baseDir == "" {
		return path.Clean(href)
	}
	return path.Clean(path.Join(baseDir, href))
}
