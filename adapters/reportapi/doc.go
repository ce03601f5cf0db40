// Package reportapi holds the transport-neutral HTTP controller for report
// export, preview and one-time download. Transport adapters translate their
// native request/response types into Request and Response and call
// Controller.Serve or the individual handlers.
package reportapi
