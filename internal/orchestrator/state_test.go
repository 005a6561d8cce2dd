// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xlog "github.com/ManuGH/vcompose/internal/log"
)

func TestPipelineLogsTransitions(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	p := newPipeline("export", zerolog.New(&buf))

	p.begin(context.Background())
	p.fire(xlog.ContextWithBuildID(context.Background(), "b-1"), EventFail)
	// Not accepted from Failed; no action runs.
	p.fire(context.Background(), EventSucceed)

	require.Equal(t, StateFailed, p.state())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var start, fail map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &start))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &fail))

	assert.Equal(t, "pipeline.transition", start[xlog.FieldEvent])
	assert.Equal(t, "export", start["pipeline"])
	assert.Equal(t, "idle", start[xlog.FieldOldState])
	assert.Equal(t, "building", start[xlog.FieldNewState])
	assert.Equal(t, "start", start["trigger"])
	assert.NotContains(t, start, xlog.FieldBuildID)

	assert.Equal(t, "building", fail[xlog.FieldOldState])
	assert.Equal(t, "failed", fail[xlog.FieldNewState])
	assert.Equal(t, "b-1", fail[xlog.FieldBuildID])
}

func TestPipelineTransitionsKeepTable(t *testing.T) {
	p := newPipeline("preview", zerolog.Nop())
	for _, tr := range pipelineTransitions {
		assert.Nil(t, tr.Action, "shared table must stay free of per-pipeline actions")
	}

	ctx := context.Background()
	p.begin(ctx)
	p.fire(ctx, EventSucceed)
	p.begin(ctx)
	assert.Equal(t, StateBuilding, p.state())
	p.fire(ctx, EventCancel)
	assert.Equal(t, StateIdle, p.state())
}
