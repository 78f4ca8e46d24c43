package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"golang.org/x/image/bmp"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testPPTX(t *testing.T, files map[string][]byte, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(files[name])
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// minimalPDF builds a valid PDF with n blank pages.
func minimalPDF(n int) []byte {
	var objs []string
	kids := make([]string, n)
	for i := 0; i < n; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	objs = append(objs, "<< /Type /Catalog /Pages 2 0 R >>")
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	for i := 0; i < n; i++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 100] >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestProcess_Images(t *testing.T) {
	pngData := testPNG(t, 4, 3)

	var bmpBuf bytes.Buffer
	if err := bmp.Encode(&bmpBuf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		filename string
		data     []byte
		wantMIME string
	}{
		{name: "png", filename: "chart.png", data: pngData, wantMIME: "image/png"},
		{name: "upper case extension", filename: "CHART.PNG", data: pngData, wantMIME: "image/png"},
		{name: "bmp", filename: "old.bmp", data: bmpBuf.Bytes(), wantMIME: "image/bmp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := Process(tt.filename, tt.data, nil)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if len(pages) != 1 {
				t.Fatalf("expected 1 page, got %d", len(pages))
			}
			if pages[0].MIMEType != tt.wantMIME || pages[0].Filename != tt.filename {
				t.Errorf("page = %q %q", pages[0].Filename, pages[0].MIMEType)
			}
		})
	}

	t.Run("corrupt image", func(t *testing.T) {
		_, err := Process("broken.jpg", []byte("not a jpeg"), nil)
		if err == nil || !strings.HasPrefix(err.Error(), "process image:") {
			t.Errorf("expected wrapped image error, got %v", err)
		}
	})
}

func TestProcess_SVG(t *testing.T) {
	valid := `<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"/>`

	pages, err := Process("logo.svg", []byte(valid), nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if pages[0].MIMEType != "image/svg+xml" {
		t.Errorf("expected image/svg+xml, got %q", pages[0].MIMEType)
	}

	for name, doc := range map[string]string{
		"wrong root": `<html><body/></html>`,
		"empty":      ``,
		"malformed":  `<svg><g></svg>`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Process("bad.svg", []byte(doc), nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestProcess_PPTX(t *testing.T) {
	img := testPNG(t, 2, 2)
	files := map[string][]byte{
		"ppt/slides/slide1.xml":   []byte("<p:sld/>"),
		"ppt/media/image10.png":   img,
		"ppt/media/image2.jpeg":   []byte("jpeg"),
		"ppt/media/image1.svg":    []byte("<svg/>"),
		"ppt/media/background.xx": []byte("?"),
	}
	data := testPPTX(t, files, []string{
		"ppt/slides/slide1.xml",
		"ppt/media/image10.png",
		"ppt/media/image2.jpeg",
		"ppt/media/background.xx",
		"ppt/media/image1.svg",
	})

	pages, err := Process("deck.pptx", data, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	want := []struct{ name, mime string }{
		{"background.xx", "image/png"},
		{"image1.svg", "image/svg+xml"},
		{"image2.jpeg", "image/jpeg"},
		{"image10.png", "image/png"},
	}
	if len(pages) != len(want) {
		t.Fatalf("expected %d pages, got %d", len(want), len(pages))
	}
	for i, w := range want {
		if pages[i].Filename != w.name || pages[i].MIMEType != w.mime {
			t.Errorf("page %d = %q %q, want %q %q", i, pages[i].Filename, pages[i].MIMEType, w.name, w.mime)
		}
	}
	if !bytes.Equal(pages[3].Data, img) {
		t.Error("media bytes not preserved")
	}
}

func TestProcess_PPTXWithoutMedia(t *testing.T) {
	data := testPPTX(t, map[string][]byte{"ppt/slides/slide1.xml": []byte("<p:sld/>")}, []string{"ppt/slides/slide1.xml"})

	_, err := Process("empty.pptx", data, nil)
	if !errors.Is(err, ErrNoImages) {
		t.Errorf("expected ErrNoImages, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "process pptx:") {
		t.Errorf("expected wrapped error, got %q", err)
	}

	if _, err := Process("junk.pptx", []byte("not a zip"), nil); err == nil {
		t.Error("expected error for non-zip pptx")
	}
}

func TestProcess_PDF(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping PDF rendering in short mode")
	}

	var calls [][2]int
	pages, err := Process("talk.pdf", minimalPDF(2), func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[1].Filename != "talk.pdf - Page 2" || pages[1].MIMEType != "image/png" {
		t.Errorf("page 2 = %q %q", pages[1].Filename, pages[1].MIMEType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(pages[0].Data))
	if err != nil {
		t.Fatalf("page is not a PNG: %v", err)
	}
	// 200pt at 144 DPI is 400px.
	if cfg.Width != 400 {
		t.Errorf("expected 400px wide render, got %d", cfg.Width)
	}

	if len(calls) != 2 || calls[1] != [2]int{2, 2} {
		t.Errorf("progress calls = %v", calls)
	}
}

func TestProcess_PDFCorrupt(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping PDF rendering in short mode")
	}
	_, err := Process("bad.pdf", []byte("garbage"), nil)
	if err == nil || !strings.HasPrefix(err.Error(), "process pdf:") {
		t.Errorf("expected wrapped pdf error, got %v", err)
	}
}

func TestProcess_Unsupported(t *testing.T) {
	for _, name := range []string{"notes.txt", "deck.key", "README"} {
		_, err := Process(name, []byte("x"), nil)
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("Process(%q) error = %v, want ErrUnsupported", name, err)
		}
	}

	_, err := Process("movie.mp4", nil, nil)
	if !strings.Contains(err.Error(), "mp4") {
		t.Errorf("error should name the extension, got %q", err)
	}
}

func TestMediaOrder(t *testing.T) {
	tests := map[string]int{
		"ppt/media/image12.png": 12,
		"ppt/media/image3.png":  3,
		"ppt/media/logo.png":    0,
	}
	for in, want := range tests {
		if got := mediaOrder(in); got != want {
			t.Errorf("mediaOrder(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()
	for _, ext := range exts {
		if ext == "pdf" {
			continue
		}
		if _, err := Process("x."+ext, nil, nil); errors.Is(err, ErrUnsupported) {
			t.Errorf("extension %q listed but unsupported", ext)
		}
	}
}

func TestThumbnail(t *testing.T) {
	t.Run("scales wide images", func(t *testing.T) {
		out, err := Thumbnail(Page{Filename: "wide.png", MIMEType: "image/png", Data: testPNG(t, 800, 400)}, 200)
		if err != nil {
			t.Fatalf("Thumbnail() error = %v", err)
		}
		cfg, err := png.DecodeConfig(bytes.NewReader(out))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Width != 200 || cfg.Height != 100 {
			t.Errorf("expected 200x100, got %dx%d", cfg.Width, cfg.Height)
		}
	})

	t.Run("small images keep their size", func(t *testing.T) {
		out, err := Thumbnail(Page{MIMEType: "image/png", Data: testPNG(t, 50, 20)}, 0)
		if err != nil {
			t.Fatal(err)
		}
		cfg, _ := png.DecodeConfig(bytes.NewReader(out))
		if cfg.Width != 50 || cfg.Height != 20 {
			t.Errorf("expected 50x20, got %dx%d", cfg.Width, cfg.Height)
		}
	})

	t.Run("svg passes through", func(t *testing.T) {
		svg := []byte("<svg/>")
		out, err := Thumbnail(Page{MIMEType: "image/svg+xml", Data: svg}, 100)
		if err != nil || !bytes.Equal(out, svg) {
			t.Errorf("Thumbnail(svg) = %q, %v", out, err)
		}
	})

	t.Run("undecodable", func(t *testing.T) {
		if _, err := Thumbnail(Page{MIMEType: "image/png", Data: []byte("nope")}, 100); err == nil {
			t.Error("expected error")
		}
	})
}
