package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansInheritTraceID(t *testing.T) {
	ctx, root := Start(context.Background(), "product_search", "req-1")
	childCtx, child := StartChild(ctx, "coupang.search")
	_, grandchild := StartChild(childCtx, "coupang.sign")

	assert.Equal(t, "req-1", child.TraceID)
	assert.Equal(t, "req-1", grandchild.TraceID)
	require.Len(t, root.Children(), 1)
	assert.Same(t, child, root.Children()[0])
	assert.Same(t, child, FromContext(childCtx))
}

func TestChildWithoutParent(t *testing.T) {
	_, s := StartChild(context.Background(), "orphan")
	s.SetAttr("k", "v")
	s.End()
	assert.Empty(t, s.TraceID)
	assert.Nil(t, FromContext(context.Background()))
}

func TestEndIsIdempotent(t *testing.T) {
	_, s := Start(context.Background(), "x", "t")
	s.End()
	first := s.Duration
	s.End()
	assert.Equal(t, first, s.Duration)

	var nilSpan *Span
	nilSpan.End()
	nilSpan.SetAttr("k", 1)
}

func TestLogWritesTreeAtDebug(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := Start(context.Background(), "product_search", "req-2")
	root.SetAttr("keyword", "고양이 사료")
	_, child := StartChild(ctx, "cache.lookup")
	child.SetAttr("hit", true)
	child.End()
	root.End()
	root.Log(ctx, log)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "product_search", first["span"])
	assert.Equal(t, "고양이 사료", first["keyword"])
	assert.Equal(t, float64(0), first["depth"])
	assert.Equal(t, "cache.lookup", second["span"])
	assert.Equal(t, "req-2", second["trace_id"])
	assert.Equal(t, true, second["hit"])
	assert.Equal(t, float64(1), second["depth"])
}

func TestLogSkippedAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, root := Start(context.Background(), "product_search", "req-3")
	root.End()
	root.Log(ctx, log)

	assert.Empty(t, buf.String())
}
