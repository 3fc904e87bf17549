package logstream

import "go.uber.org/zap/zapcore"

// Core is a zapcore.Core that mirrors log entries to the hub. Tee it with
// the primary console/file core at logger initialization.
type Core struct {
	zapcore.LevelEnabler
	hub    *Hub
	fields []zapcore.Field
}

// NewCore creates a log-streaming core. level filters what reaches clients.
func NewCore(level zapcore.LevelEnabler, hub *Hub) *Core {
	return &Core{LevelEnabler: level, hub: hub}
}

// With implements zapcore.Core
func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(clone.fields[:len(clone.fields):len(clone.fields)], fields...)
	return &clone
}

// Check implements zapcore.Core
func (c *Core) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

// Write implements zapcore.Core
func (c *Core) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if !c.Enabled(entry.Level) {
		return nil
	}

	all := fields
	if len(c.fields) > 0 {
		all = make([]zapcore.Field, 0, len(c.fields)+len(fields))
		all = append(all, c.fields...)
		all = append(all, fields...)
	}

	c.hub.Broadcast(FromZapEntry(entry, all))
	return nil
}

// Sync implements zapcore.Core; broadcasting is unbuffered at the core level
func (c *Core) Sync() error {
	return nil
}
