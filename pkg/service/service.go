package service

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/plgd-dev/nmos-registry/pkg/fn"
)

type Service struct {
	services []APIService
	done     chan struct{}
	sigs     chan os.Signal
	closeFn  fn.FuncList
}

type APIService interface {
	Serve() error
	Close() error
}

func New(services ...APIService) *Service {
	return &Service{
		sigs:     make(chan os.Signal, 1),
		done:     make(chan struct{}),
		services: services,
	}
}

// Add adds other API services. This needs to be called before Serve.
// Services are closed in the reverse order of addition.
func (s *Service) Add(services ...APIService) {
	s.services = append(s.services, services...)
}

func (s *Service) Serve() error {
	defer close(s.done)
	var wg sync.WaitGroup
	errCh := make(chan error, len(s.services)*2)
	wg.Add(len(s.services))
	for _, apiService := range s.services {
		go func(serve func() error) {
			defer wg.Done()
			err := serve()
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			errCh <- err
		}(apiService.Serve)
	}

	signal.Notify(s.sigs,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	<-s.sigs
	signal.Stop(s.sigs)
	for i := len(s.services) - 1; i >= 0; i-- {
		errCh <- s.services[i].Close()
	}
	wg.Wait()
	s.closeFn.Execute()
	var errs *multierror.Error
	for {
		select {
		case err := <-errCh:
			if err != nil {
				errs = multierror.Append(errs, err)
			}
		default:
			return errs.ErrorOrNil()
		}
	}
}

// Close turns off the server and waits until Serve returns.
func (s *Service) Close() error {
	select {
	case s.sigs <- syscall.SIGTERM:
	default:
	}
	<-s.done
	return nil
}

// AddCloseFunc adds a function to be called when the server is closed
func (s *Service) AddCloseFunc(f func()) {
	s.closeFn.AddFunc(f)
}
