package logging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PrettyJSONHandler writes each record as one indented JSON object. It is
// meant for watching an arena from a terminal, not for log shipping.
type PrettyJSONHandler struct {
	w    io.Writer
	mu   *sync.Mutex
	opts slog.HandlerOptions

	attrs  []scopedAttr
	groups []string
}

// scopedAttr remembers the group path that was open when WithAttrs ran.
type scopedAttr struct {
	groups []string
	attr   slog.Attr
}

func NewPrettyJSONHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyJSONHandler {
	h := &PrettyJSONHandler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	return h
}

func (h *PrettyJSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *PrettyJSONHandler) Handle(_ context.Context, r slog.Record) error {
	when := r.Time
	if when.IsZero() {
		when = time.Now()
	}

	record := map[string]any{
		slog.TimeKey:    when.Format(time.RFC3339Nano),
		slog.LevelKey:   r.Level.String(),
		slog.MessageKey: r.Message,
	}
	if h.opts.AddSource {
		if src := shortSource(r.PC); src != "" {
			record[slog.SourceKey] = src
		}
	}

	for _, sa := range h.attrs {
		h.put(nest(record, sa.groups), sa.attr)
	}
	target := nest(record, h.groups)
	r.Attrs(func(a slog.Attr) bool {
		h.put(target, a)
		return true
	})

	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		b = []byte(`{"level":` + strconv.Quote(r.Level.String()) + `,"msg":` + strconv.Quote(r.Message) + `,"log_error":` + strconv.Quote(err.Error()) + `}`)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(append(b, '\n'))
	return err
}

func (h *PrettyJSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append([]scopedAttr(nil), h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, scopedAttr{groups: h.groups, attr: a})
	}
	return &clone
}

func (h *PrettyJSONHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *PrettyJSONHandler) put(dst map[string]any, a slog.Attr) {
	if h.opts.ReplaceAttr != nil && a.Value.Kind() != slog.KindGroup {
		a = h.opts.ReplaceAttr(h.groups, a)
	}
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		members := a.Value.Group()
		if len(members) == 0 {
			return
		}
		child := dst
		if a.Key != "" {
			child = nest(dst, []string{a.Key})
		}
		for _, m := range members {
			h.put(child, m)
		}
		return
	}
	dst[a.Key] = plain(a.Value)
}

func nest(root map[string]any, path []string) map[string]any {
	dst := root
	for _, g := range path {
		m, ok := dst[g].(map[string]any)
		if !ok {
			m = map[string]any{}
			dst[g] = m
		}
		dst = m
	}
	return dst
}

func plain(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return x.Error()
		case json.Marshaler, map[string]any, []any:
			return x
		case interface{ String() string }:
			return x.String()
		default:
			return x
		}
	default:
		return v.String()
	}
}

func shortSource(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	if f.File == "" {
		return ""
	}
	file := f.File
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		file = file[idx+1:]
	}
	return file + ":" + strconv.Itoa(f.Line)
}
