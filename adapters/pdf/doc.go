// Package reportpdf renders translated reports into PDF documents.
//
// NativeRenderer lays reports out with a pure pagination planner (Plan) and
// serializes them with gofpdf using the PDF core fonts. Renderer is the HTML
// pipeline: a Styler produces a styled page and a pluggable Engine
// (chromedp, rod, playwright, wkhtmltopdf) converts it to PDF.
package reportpdf
