package listener

import (
	"fmt"
	"net"

	"github.com/plgd-dev/nmos-registry/pkg/fn"
	"github.com/plgd-dev/nmos-registry/pkg/log"
)

// Server is a TCP listener with close functions executed after the socket is closed.
type Server struct {
	net.Listener
	closeFn fn.FuncList
}

func New(config Config, logger log.Logger) (*Server, error) {
	l, err := net.Listen("tcp", config.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening failed: %w", err)
	}
	logger.Debugf("listening on %v", l.Addr().String())
	return &Server{Listener: l}, nil
}

// AddCloseFunc adds a function to be called when the listener is closed
func (s *Server) AddCloseFunc(f func()) {
	s.closeFn.AddFunc(f)
}

func (s *Server) Close() error {
	err := s.Listener.Close()
	s.closeFn.Execute()
	return err
}
