// Package settings holds the options of the registry which can change at runtime.
package settings

import (
	"fmt"
	"sync"

	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"
)

const (
	LoggingLevelKey          = "logging_level"
	AllowInvalidResourcesKey = "allow_invalid_resources"
)

// Values is the JSON view of the settings.
type Values struct {
	LoggingLevel          int  `json:"logging_level"`
	AllowInvalidResources bool `json:"allow_invalid_resources"`
}

func (v Values) Validate() error {
	if v.LoggingLevel < log.SeverityTooMuchInfo || v.LoggingLevel > log.SeverityFatal {
		return fmt.Errorf("%v('%v')", LoggingLevelKey, v.LoggingLevel)
	}
	return nil
}

// SeverityLogger is a logger whose level can change at runtime.
type SeverityLogger interface {
	SetSeverity(severity int)
}

// Settings applies changes immediately: the lenient flag is read by every
// registration and the logging level is pushed to the logger.
type Settings struct {
	mutex   sync.Mutex
	level   atomic.Int64
	lenient atomic.Bool
	logger  SeverityLogger
}

func New(initial Values, logger SeverityLogger) (*Settings, error) {
	s := &Settings{logger: logger}
	if err := s.Set(initial); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Lenient() bool {
	return s.lenient.Load()
}

func (s *Settings) Get() Values {
	return Values{
		LoggingLevel:          int(s.level.Load()),
		AllowInvalidResources: s.lenient.Load(),
	}
}

// Set replaces all values.
func (s *Settings) Set(v Values) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", resource.ErrInvalidBody, err)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lenient.Store(v.AllowInvalidResources)
	s.level.Store(int64(v.LoggingLevel))
	if s.logger != nil {
		s.logger.SetSeverity(v.LoggingLevel)
	}
	return nil
}

// Apply merges a JSON object into the current values. Unknown keys and
// values of a wrong type are rejected and nothing is changed.
func (s *Settings) Apply(patch []byte) (Values, error) {
	if !gjson.ValidBytes(patch) {
		return Values{}, fmt.Errorf("%w: malformed json", resource.ErrInvalidBody)
	}
	body := gjson.ParseBytes(patch)
	if !body.IsObject() {
		return Values{}, fmt.Errorf("%w: settings must be an object", resource.ErrInvalidBody)
	}
	v := s.Get()
	var err error
	body.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case LoggingLevelKey:
			if value.Type != gjson.Number || float64(value.Int()) != value.Float() {
				err = fmt.Errorf("%w: %v must be an integer", resource.ErrInvalidBody, LoggingLevelKey)
				return false
			}
			v.LoggingLevel = int(value.Int())
		case AllowInvalidResourcesKey:
			if !value.IsBool() {
				err = fmt.Errorf("%w: %v must be a boolean", resource.ErrInvalidBody, AllowInvalidResourcesKey)
				return false
			}
			v.AllowInvalidResources = value.Bool()
		default:
			err = fmt.Errorf("%w: unknown setting('%v')", resource.ErrInvalidBody, key.String())
			return false
		}
		return true
	})
	if err != nil {
		return Values{}, err
	}
	if err := s.Set(v); err != nil {
		return Values{}, err
	}
	return v, nil
}
