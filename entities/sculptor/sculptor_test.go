package sculptor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shape-studio/tools/llm"
	"shape-studio/tools/logger"
	"shape-studio/tools/render"
)

type fakeClient struct {
	resp   *llm.Response
	err    error
	system string
	msgs   []llm.Message
	opts   *llm.RequestOptions
}

func (f *fakeClient) Complete(ctx context.Context, system string, msgs []llm.Message, opts *llm.RequestOptions) (*llm.Response, error) {
	f.system, f.msgs, f.opts = system, msgs, opts
	return f.resp, f.err
}

func writeViews(t *testing.T) *render.ViewSet {
	t.Helper()
	dir := t.TempDir()
	for _, v := range render.Views {
		require.NoError(t, os.WriteFile(filepath.Join(dir, v.Name+render.Extension), []byte(v.Name), 0o644))
	}
	vs, err := render.LoadViewSet(dir)
	require.NoError(t, err)
	return vs
}

func TestProposeSendsLabelledImages(t *testing.T) {
	client := &fakeClient{resp: &llm.Response{Content: "```go\npackage main\n```", StopReason: "end_turn"}}
	s := New(client, Options{Views: []string{"pos_z", "pos_x"}}, logger.Discard())

	out, err := s.Propose(context.Background(), "package old", writeViews(t), writeViews(t))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", out)

	require.Len(t, client.msgs, 1)
	parts := client.msgs[0].Parts
	// two views from each set, label + image each, then the program
	require.Len(t, parts, 9)
	assert.Equal(t, "Target (right view):", parts[0].Text)
	assert.Equal(t, llm.PartImage, parts[1].Type)
	assert.Equal(t, "image/jpeg", parts[1].MediaType)
	assert.Equal(t, "Target (front view):", parts[2].Text)
	assert.Equal(t, "Current result (right view):", parts[4].Text)
	assert.Equal(t, "Current code:\npackage old", parts[8].Text)

	assert.Contains(t, client.system, "create_object()")
	assert.Contains(t, client.system, DefaultGuide)
	assert.Equal(t, 4000, client.opts.MaxTokens)
}

func TestProposeReturnsFencedProgramVerbatim(t *testing.T) {
	const program = "package main\n\nimport \"csg\"\n\nfunc create_object() *csg.Shape {\n\treturn csg.Cube(1, 1, 1)\n}\n"
	views := writeViews(t)

	for _, content := range []string{
		"```go\n" + program + "```",
		"```go\n" + program + "```\n",
		"The program already matches.\n```go\n" + program + "```\n",
	} {
		client := &fakeClient{resp: &llm.Response{Content: content, StopReason: "end_turn"}}
		out, err := New(client, Options{}, logger.Discard()).Propose(context.Background(), program, views, views)
		require.NoError(t, err)
		assert.Equal(t, program, out)
	}
}

func TestProposeErrors(t *testing.T) {
	views := writeViews(t)

	tests := []struct {
		name   string
		client *fakeClient
	}{
		{"transport", &fakeClient{err: errors.New("connection refused")}},
		{"truncated", &fakeClient{resp: &llm.Response{Content: "package", StopReason: "max_tokens"}}},
		{"empty", &fakeClient{resp: &llm.Response{Content: "```go\n```"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.client, Options{}, logger.Discard()).Propose(context.Background(), "p", views, views)
			var perr *ProposalError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestProposeRejectsIncompleteViews(t *testing.T) {
	client := &fakeClient{resp: &llm.Response{Content: "package main"}}
	_, err := New(client, Options{}, logger.Discard()).Propose(context.Background(), "p", writeViews(t), render.ViewSetAt(t.TempDir()))

	var perr *ProposalError
	require.ErrorAs(t, err, &perr)
	var rerr *render.RenderError
	assert.ErrorAs(t, err, &rerr)
	assert.Nil(t, client.msgs)
}

func TestExtractProgram(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "package main\n", "package main\n"},
		{"whole fence", "```go\npackage main\n\nfunc f() {}\n```\n", "package main\n\nfunc f() {}\n"},
		{"bare fence", "```\npackage main\n```", "package main\n"},
		{"fence in prose", "Here you go:\n```go\npackage main\n```\nDone.", "package main\n"},
		{"two fences", "```go\nA\n```\ntext\n```go\nB\n```", "A\n"},
		{"body whitespace kept", "```go\n\n  package main\n\n```", "\n  package main\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractProgram(tt.in))
		})
	}
}
