//go:build !swagger
// +build !swagger

package api

// registerDocs is a no-op unless built with -tags swagger
func (s *Server) registerDocs() {}
