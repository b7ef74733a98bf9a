package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFrame = Format{Width: 1080, Height: 1920, FPS: 30}

// twoSegmentGraph is a minimal valid graph: two stills concatenated,
// narration mapped directly.
func twoSegmentGraph() *Graph {
	f := testFrame
	return &Graph{
		Frame: testFrame,
		Inputs: []Input{
			{Path: "narration.mp3", Kind: Audio},
			{Path: "a.png", Kind: Video},
			{Path: "b.png", Kind: Video},
		},
		Nodes: []Node{
			{In: []Stream{InputStream(1, Video)}, Chain: []Filter{F("setsar", "1")}, Out: Labeled("v0", Video), Format: &f},
			{In: []Stream{InputStream(2, Video)}, Chain: []Filter{F("setsar", "1")}, Out: Labeled("v1", Video), Format: &f},
			{
				In:     []Stream{Labeled("v0", Video), Labeled("v1", Video)},
				Chain:  []Filter{F("concat", "n=2", "v=1", "a=0")},
				Out:    Labeled("vout", Video),
				Format: &f,
			},
		},
		Outputs: []Stream{Labeled("vout", Video), InputStream(0, Audio)},
	}
}

func TestGraphString(t *testing.T) {
	g := twoSegmentGraph()
	require.NoError(t, g.Validate())
	assert.Equal(t,
		"[1:v]setsar=1[v0];[2:v]setsar=1[v1];[v0][v1]concat=n=2:v=1:a=0[vout]",
		g.String())
}

func TestStreamMapArg(t *testing.T) {
	assert.Equal(t, "0:a", InputStream(0, Audio).MapArg())
	assert.Equal(t, "[vout]", Labeled("vout", Video).MapArg())
}

func TestGraphValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *Graph)
		msg    string
	}{
		{
			name:   "dangling label",
			mutate: func(g *Graph) { g.Nodes[2].In[1] = Labeled("v9", Video) },
			msg:    "dangling",
		},
		{
			name:   "label defined twice",
			mutate: func(g *Graph) { g.Nodes[1].Out = Labeled("v0", Video) },
			msg:    "redefines",
		},
		{
			name:   "unused output",
			mutate: func(g *Graph) { g.Outputs = []Stream{InputStream(0, Audio), Labeled("vout", Video)}; g.Nodes[2].In = g.Nodes[2].In[:1] },
			msg:    "never used",
		},
		{
			name:   "missing input index",
			mutate: func(g *Graph) { g.Nodes[0].In[0] = InputStream(7, Video) },
			msg:    "missing input",
		},
		{
			name:   "audio input used as video",
			mutate: func(g *Graph) { g.Nodes[0].In[0] = InputStream(0, Video) },
			msg:    "input 0 is a",
		},
		{
			name: "resolution mismatch",
			mutate: func(g *Graph) {
				g.Nodes[1].Format = &Format{Width: 720, Height: 1280, FPS: 30}
			},
			msg: "declares 720x1280@30",
		},
		{
			name: "frame rate mismatch",
			mutate: func(g *Graph) {
				g.Nodes[0].Format = &Format{Width: 1080, Height: 1920, FPS: 25}
			},
			msg: "declares 1080x1920@25",
		},
		{
			name:   "concat segment without format",
			mutate: func(g *Graph) { g.Nodes[1].Format = nil },
			msg:    "no declared format",
		},
		{
			name:   "concat of raw input",
			mutate: func(g *Graph) { g.Nodes = g.Nodes[1:]; g.Nodes[1].In[0] = InputStream(1, Video) },
			msg:    "raw input",
		},
		{
			name:   "label consumed twice",
			mutate: func(g *Graph) { g.Nodes[2].In[1] = Labeled("v0", Video) },
			msg:    "second time",
		},
		{
			name:   "empty chain",
			mutate: func(g *Graph) { g.Nodes[0].Chain = nil },
			msg:    "empty filter chain",
		},
		{
			name:   "bad label characters",
			mutate: func(g *Graph) { g.Nodes[2].Out = Labeled("v out", Video); g.Outputs[0] = Labeled("v out", Video) },
			msg:    "invalid output label",
		},
		{
			name:   "no outputs",
			mutate: func(g *Graph) { g.Outputs = nil },
			msg:    "no mapped outputs",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := twoSegmentGraph()
			tt.mutate(g)
			err := g.Validate()
			require.ErrorIs(t, err, ErrInvalidGraph)
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}
