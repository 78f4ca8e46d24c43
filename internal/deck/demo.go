package deck

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/karanbalaji/spatial-presenter/internal/store"
)

type demoLine struct {
	y     int
	size  int
	color string
	text  string
}

type demoSlide struct {
	id    string
	name  string
	title string
	lines []demoLine
}

var demoSlides = []demoSlide{
	{
		id: "demo-welcome", name: "Welcome", title: "Welcome to Spatial Presenter",
		lines: []demoLine{
			{200, 28, "#a0a0a0", "Control your presentations with hand gestures!"},
			{320, 24, "#ffffff", "No clicker needed - just use your hands"},
			{380, 24, "#ffffff", "Voice commands work too: say \"next\" or \"go back\""},
			{500, 20, "#6b7280", "Swipe through these slides to learn more"},
		},
	},
	{
		id: "demo-upload", name: "How to Upload", title: "Upload Your Slides",
		lines: []demoLine{
			{180, 24, "#ffffff", "Open Manage Slides in the sidebar"},
			{240, 24, "#ffffff", "Then drag and drop your files or click to browse"},
			{560, 18, "#6b7280", "Slides are saved locally and persist between sessions"},
		},
	},
	{
		id: "demo-gestures", name: "Gestures", title: "Gesture Controls",
		lines: []demoLine{
			{260, 28, "#10b981", "Open Palm -> Next Slide"},
			{340, 28, "#3b82f6", "Victory / Peace -> Previous Slide"},
			{540, 18, "#6b7280", "Make sure your hand is visible in the webcam preview"},
			{580, 18, "#6b7280", "Hold the gesture briefly & release before the next one"},
		},
	},
	{
		id: "demo-formats", name: "File Formats", title: "Supported File Formats",
		lines: []demoLine{
			{220, 24, "#ffffff", "Images: PNG, JPG, GIF, BMP, WebP"},
			{270, 24, "#ffffff", "SVG: vector graphics"},
			{320, 24, "#ffffff", "PDF: each page becomes one slide"},
			{370, 24, "#ffffff", "PowerPoint: embedded images are extracted"},
			{450, 18, "#6b7280", "Pro Tip: Export Google Slides or Keynote as PDF"},
		},
	},
	{
		id: "demo-tips", name: "Tips", title: "Tips for Best Results",
		lines: []demoLine{
			{180, 24, "#ffffff", "Position yourself so the webcam can see your hand clearly"},
			{240, 24, "#ffffff", "Good lighting improves gesture recognition"},
			{300, 24, "#ffffff", "Use the arrow keys, Home and End as a fallback"},
			{360, 24, "#ffffff", "Use New Session to clear all slides and start fresh"},
			{540, 22, "#10b981", "Ready to present? Upload your slides!"},
		},
	},
}

func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func (d demoSlide) svg() []byte {
	var buf bytes.Buffer
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="1280" height="720" viewBox="0 0 1280 720">`)
	buf.WriteString(`<rect width="1280" height="720" fill="#1a1a2e"/>`)
	fmt.Fprintf(&buf, `<text x="640" y="80" font-family="system-ui, sans-serif" font-size="48" font-weight="bold" fill="#ffffff" text-anchor="middle">%s</text>`, escape(d.title))
	for _, l := range d.lines {
		fmt.Fprintf(&buf, `<text x="640" y="%d" font-family="system-ui, sans-serif" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
			l.y, l.size, l.color, escape(l.text))
	}
	buf.WriteString(`</svg>`)
	return buf.Bytes()
}

func demoDeck() []*store.Slide {
	out := make([]*store.Slide, len(demoSlides))
	for i, d := range demoSlides {
		out[i] = &store.Slide{
			ID:       d.id,
			Filename: d.name,
			MIMEType: "image/svg+xml",
			Kind:     store.KindDemo,
			Data:     d.svg(),
		}
	}
	return out
}
