// Package reporthttp mounts the report API on net/http.
package reporthttp
