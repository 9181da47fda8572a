// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type attrErr struct{}

func (attrErr) Error() string { return "boom" }

func (attrErr) Attrs() []slog.Attr {
	return []slog.Attr{slog.String("kind", "test")}
}

func TestWrapFallback(t *testing.T) {
	var buf bytes.Buffer
	parent := slog.New(slog.NewJSONHandler(&buf, nil))

	l := Wrap(nil, parent)
	l.Info(context.Background(), "hello", slog.Int("n", 1))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "hello", rec["msg"])
	require.EqualValues(t, 1, rec["n"])
}

func TestZeroLoggerDiscards(t *testing.T) {
	l := Wrap()
	require.False(t, l.Enabled(context.Background(), slog.LevelError))
	l.Err(context.Background(), "ignored", attrErr{})
}

func TestErrAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := Wrap(slog.New(slog.NewJSONHandler(&buf, nil))).
		With(slog.String("device", "d1"))

	l.Err(context.Background(), "failed", attrErr{})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "failed", rec["msg"])
	require.Equal(t, "boom", rec["error"])
	require.Equal(t, "test", rec["kind"])
	require.Equal(t, "d1", rec["device"])
}
