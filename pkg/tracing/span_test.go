package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansAttachToParent(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "trace-1")
	_, normalize := StartChildSpan(ctx, "normalize")
	normalize.SetAttr("terms", 4)
	normalize.End()
	_, score := StartChildSpan(ctx, "score")
	score.End()
	root.End()

	require.Len(t, root.Children, 2)
	assert.Equal(t, "normalize", root.Children[0].Name)
	assert.Equal(t, "trace-1", root.Children[1].TraceID)
	assert.Equal(t, 4, root.Children[0].Attrs["terms"])
}

func TestChildWithoutParentIsNoop(t *testing.T) {
	ctx := context.Background()
	got, span := StartChildSpan(ctx, "orphan")

	assert.Nil(t, span)
	assert.Equal(t, ctx, got)
	span.SetAttr("k", "v")
	span.End()
	span.Log(slog.Default())
}

func TestLogWritesTree(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := StartSpan(context.Background(), "search", "t")
	_, child := StartChildSpan(ctx, "rank")
	child.End()
	root.End()
	root.Log(logger)

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "msg=span"))
	assert.Contains(t, out, "span=rank")
	assert.Contains(t, out, "depth=1")
}
