// Package reportrouter mounts the report API on go-router, so the same
// routes serve fiber and net/http based applications.
package reportrouter
