// Package logging keeps the recent log events of the registry for the logging API.
package logging

import (
	"fmt"
	"strconv"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	pkgStrings "github.com/plgd-dev/nmos-registry/pkg/strings"
	pkgTime "github.com/plgd-dev/nmos-registry/pkg/time"
	"github.com/plgd-dev/nmos-registry/registry/query"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zapcore"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Event is one log entry.
type Event struct {
	ID             string                 `json:"id"`
	Timestamp      string                 `json:"timestamp"`
	Level          int                    `json:"level"`
	LevelName      string                 `json:"level_name"`
	Logger         string                 `json:"logger,omitempty"`
	SourceLocation string                 `json:"source_location,omitempty"`
	Message        string                 `json:"message"`
	Fields         map[string]interface{} `json:"fields,omitempty"`

	seq uint64
}

// Buffer is a ring of the most recent events. Its Core records the entries
// enabled by the level given to NewBuffer.
type Buffer struct {
	mutex    sync.Mutex
	events   []Event
	head     int
	capacity int
	lastSeq  uint64
	enabler  zapcore.LevelEnabler
}

// Seq orders the events, a later event has a greater Seq.
func (e Event) Seq() uint64 {
	return e.seq
}

func NewBuffer(config Config, enabler zapcore.LevelEnabler) *Buffer {
	return &Buffer{
		events:   make([]Event, 0, config.Capacity),
		capacity: config.Capacity,
		enabler:  enabler,
	}
}

func (b *Buffer) add(e Event) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.lastSeq++
	e.seq = b.lastSeq
	e.ID = strconv.FormatUint(e.seq, 10)
	if len(b.events) < b.capacity {
		b.events = append(b.events, e)
		return
	}
	b.events[b.head] = e
	b.head = (b.head + 1) % b.capacity
}

// Events returns the kept events, newest first.
func (b *Buffer) Events() []Event {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	n := len(b.events)
	out := make([]Event, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, b.events[(b.head+i)%n])
	}
	return out
}

func (b *Buffer) Get(id string) (Event, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, e := range b.events {
		if e.ID == id {
			return e, nil
		}
	}
	return Event{}, fmt.Errorf("%w: log event('%v')", resource.ErrNotFound, id)
}

// Select returns the events newer than paging.since matching every other
// parameter, newest first. A parameter is a gjson path of the event and its
// value may hold '*' wildcards.
func (b *Buffer) Select(params map[string]string) ([]Event, query.Paging, error) {
	paging, err := query.ParsePaging(params)
	if err != nil {
		return nil, query.Paging{}, err
	}
	keys := maps.Keys(params)
	slices.Sort(keys)
	var out []Event
	for _, e := range b.Events() {
		if len(out) == paging.Limit || e.seq <= paging.Since {
			break
		}
		ok, err := e.match(keys, params)
		if err != nil {
			return nil, query.Paging{}, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, paging, nil
}

func (e Event) match(keys []string, params map[string]string) (bool, error) {
	var data []byte
	for _, k := range keys {
		if k == query.PagingSinceParam || k == query.PagingLimitParam {
			continue
		}
		if data == nil {
			var err error
			if data, err = jsoniter.Marshal(e); err != nil {
				return false, fmt.Errorf("cannot encode log event('%v'): %w", e.ID, err)
			}
		}
		v := gjson.GetBytes(data, k)
		if !v.Exists() || !pkgStrings.MatchWildcard(params[k], v.String()) {
			return false, nil
		}
	}
	return true, nil
}

// Core returns the zap core writing to the buffer.
func (b *Buffer) Core() zapcore.Core {
	return &core{buffer: b}
}

type core struct {
	buffer *Buffer
	fields []zapcore.Field
}

func (c *core) Enabled(level zapcore.Level) bool {
	return c.buffer.enabler.Enabled(level)
}

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	return &core{
		buffer: c.buffer,
		fields: append(slices.Clip(c.fields), fields...),
	}
}

func (c *core) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *core) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	e := Event{
		Timestamp: pkgTime.FormatVersion(entry.Time),
		Level:     log.LevelToSeverity(entry.Level),
		LevelName: entry.Level.String(),
		Logger:    entry.LoggerName,
		Message:   entry.Message,
	}
	if entry.Caller.Defined {
		e.SourceLocation = entry.Caller.TrimmedPath()
	}
	if len(enc.Fields) > 0 {
		e.Fields = enc.Fields
	}
	c.buffer.add(e)
	return nil
}

func (c *core) Sync() error {
	return nil
}
