//go:build !linux
// +build !linux

package node

func (s *Server) Listen() error {
	return ErrUnsupportedPlatform
}

func (s *Server) Run() error {
	return ErrUnsupportedPlatform
}
