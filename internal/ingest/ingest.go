// Package ingest turns uploaded files into slide pages.
package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnsupported is returned for file extensions with no processor.
	ErrUnsupported = errors.New("unsupported file type")

	// ErrNoImages is returned for a presentation without embedded media.
	ErrNoImages = errors.New("no images found")
)

// PDFDPI renders PDF pages at twice the 72 DPI base resolution.
const PDFDPI = 144

// Page is one slide image produced from an upload.
type Page struct {
	Filename string
	MIMEType string
	Data     []byte
}

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
}

var rasterExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "bmp": true, "webp": true,
}

// SupportedExtensions lists the accepted file extensions without dots.
func SupportedExtensions() []string {
	return []string{"png", "jpg", "jpeg", "gif", "bmp", "webp", "svg", "pdf", "pptx"}
}

// MIMEType maps an extension to its image MIME type, defaulting to PNG.
func MIMEType(ext string) string {
	if m, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return m
	}
	return "image/png"
}

// Extension returns the lower-cased extension of filename without the dot.
func Extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
}

// Process converts an uploaded file into pages. progress, if non-nil, is
// called after each PDF page is rendered.
func Process(filename string, data []byte, progress func(done, total int)) ([]Page, error) {
	ext := Extension(filename)

	var (
		kind  string
		pages []Page
		err   error
	)
	switch {
	case rasterExtensions[ext]:
		kind = "image"
		pages, err = processImage(filename, ext, data)
	case ext == "svg":
		kind = "svg"
		pages, err = processSVG(filename, data)
	case ext == "pdf":
		kind = "pdf"
		pages, err = processPDF(filename, data, progress)
	case ext == "pptx":
		kind = "pptx"
		pages, err = processPPTX(data)
	default:
		if ext == "" {
			ext = "(none)"
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}

	if err != nil {
		return nil, fmt.Errorf("process %s: %w", kind, err)
	}
	pagesTotal.WithLabelValues(kind).Add(float64(len(pages)))
	return pages, nil
}

func processImage(filename, ext string, data []byte) ([]Page, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	return []Page{{Filename: filename, MIMEType: mimeTypes[ext], Data: data}}, nil
}

func processSVG(filename string, data []byte) ([]Page, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root := ""
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse svg: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok && root == "" {
			root = start.Name.Local
		}
	}

	switch root {
	case "svg":
		return []Page{{Filename: filename, MIMEType: "image/svg+xml", Data: data}}, nil
	case "":
		return nil, errors.New("empty svg document")
	default:
		return nil, fmt.Errorf("root element is <%s>, want <svg>", root)
	}
}

func processPDF(filename string, data []byte, progress func(done, total int)) ([]Page, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	total := doc.NumPage()
	pages := make([]Page, 0, total)
	for n := 0; n < total; n++ {
		img, err := doc.ImageDPI(n, PDFDPI)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", n+1, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", n+1, err)
		}
		pages = append(pages, Page{
			Filename: fmt.Sprintf("%s - Page %d", filename, n+1),
			MIMEType: "image/png",
			Data:     buf.Bytes(),
		})

		if progress != nil {
			progress(n+1, total)
		}
	}
	return pages, nil
}

var firstNumber = regexp.MustCompile(`\d+`)

// mediaOrder is the first integer in a media path, or 0 if there is none.
func mediaOrder(p string) int {
	n, err := strconv.Atoi(firstNumber.FindString(p))
	if err != nil {
		return 0
	}
	return n
}

func processPPTX(data []byte) ([]Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	var media []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/media/") && !f.FileInfo().IsDir() {
			media = append(media, f)
		}
	}
	if len(media) == 0 {
		return nil, ErrNoImages
	}

	sort.SliceStable(media, func(i, j int) bool {
		return mediaOrder(media[i].Name) < mediaOrder(media[j].Name)
	})

	pages := make([]Page, 0, len(media))
	for _, f := range media {
		b, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		pages = append(pages, Page{
			Filename: path.Base(f.Name),
			MIMEType: MIMEType(Extension(f.Name)),
			Data:     b,
		})
	}
	return pages, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
