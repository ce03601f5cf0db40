// Package reporttemplate renders reports into a complete, styled HTML page.
//
// Styler executes the embedded pongo2 page template ("page.html") with the
// report title, the generated timestamp, the translated HTML body and the page
// geometry. The template is fixed; only RenderOptions parameterize it. A
// custom TemplateExecutor can replace it, for example a pongo2 set loaded from
// disk via NewPongo2Executor.
//
// Styler plugs into the PDF adapter's HTML pipeline (reportpdf.Renderer).
// Renderer exposes the same page as the "html" export format.
package reporttemplate
