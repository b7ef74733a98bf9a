package render

import (
	"fmt"
	"regexp"
	"strings"
)

// MediaKind is the type of a stream flowing through the graph.
type MediaKind int

const (
	Video MediaKind = iota
	Audio
)

func (k MediaKind) String() string {
	if k == Audio {
		return "a"
	}
	return "v"
}

// Stream references one edge of the graph: either a stream of an input file
// ("[0:a]") or a label produced by a node ("[v0]").
type Stream struct {
	Label string // empty for input streams
	Input int
	Kind  MediaKind
}

// InputStream references the first stream of the given kind in input idx.
func InputStream(idx int, kind MediaKind) Stream {
	return Stream{Input: idx, Kind: kind}
}

// Labeled references a node output.
func Labeled(label string, kind MediaKind) Stream {
	return Stream{Label: label, Kind: kind}
}

func (s Stream) isInput() bool { return s.Label == "" }

// String renders the stream as a filtergraph pad, e.g. "[0:v]" or "[vout]".
func (s Stream) String() string {
	return "[" + s.spec() + "]"
}

// MapArg renders the stream as a -map argument.
func (s Stream) MapArg() string {
	if s.isInput() {
		return s.spec()
	}
	return s.String()
}

func (s Stream) spec() string {
	if s.isInput() {
		return fmt.Sprintf("%d:%s", s.Input, s.Kind)
	}
	return s.Label
}

// Format is the geometry and rate of a video stream.
type Format struct {
	Width  int
	Height int
	FPS    int
}

func (f Format) String() string {
	return fmt.Sprintf("%dx%d@%d", f.Width, f.Height, f.FPS)
}

// Filter is one ffmpeg filter with its already-formatted arguments.
type Filter struct {
	Name string
	Args []string
}

// F builds a Filter.
func F(name string, args ...string) Filter {
	return Filter{Name: name, Args: args}
}

func (f Filter) String() string {
	if len(f.Args) == 0 {
		return f.Name
	}
	return f.Name + "=" + strings.Join(f.Args, ":")
}

// Node is a linear filter chain with typed inputs and a single output.
// Format is the declared format of a video output; nil for audio.
type Node struct {
	In     []Stream
	Chain  []Filter
	Out    Stream
	Format *Format
}

// Input is one media file given to the encoder with -i.
type Input struct {
	Path string
	Kind MediaKind
}

// Graph is the whole filtergraph of a render: inputs, nodes in evaluation
// order, and the streams mapped to the output file.
type Graph struct {
	Frame   Format
	Inputs  []Input
	Nodes   []Node
	Outputs []Stream
}

var labelRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Validate checks that every edge is connected exactly once, that inputs
// exist with the right media kind, and that every declared video format
// (in particular all concat inputs) matches the frame format.
func (g *Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return fmt.Errorf("%w: no filter nodes", ErrInvalidGraph)
	}
	if len(g.Outputs) == 0 {
		return fmt.Errorf("%w: no mapped outputs", ErrInvalidGraph)
	}

	producers := make(map[string]int, len(g.Nodes))
	consumed := make(map[string]bool, len(g.Nodes))

	use := func(s Stream, where string) error {
		if s.isInput() {
			if s.Input < 0 || s.Input >= len(g.Inputs) {
				return fmt.Errorf("%w: %s references missing input %s", ErrInvalidGraph, where, s)
			}
			if g.Inputs[s.Input].Kind != s.Kind {
				return fmt.Errorf("%w: %s references %s but input %d is %s", ErrInvalidGraph, where, s, s.Input, g.Inputs[s.Input].Kind)
			}
			return nil
		}
		p, ok := producers[s.Label]
		if !ok {
			return fmt.Errorf("%w: %s references dangling label %s", ErrInvalidGraph, where, s)
		}
		if g.Nodes[p].Out.Kind != s.Kind {
			return fmt.Errorf("%w: %s expects %s as %s", ErrInvalidGraph, where, s, s.Kind)
		}
		if consumed[s.Label] {
			return fmt.Errorf("%w: %s consumes %s a second time", ErrInvalidGraph, where, s)
		}
		consumed[s.Label] = true
		return nil
	}

	for i, n := range g.Nodes {
		where := fmt.Sprintf("node %d", i)
		if len(n.Chain) == 0 {
			return fmt.Errorf("%w: %s has an empty filter chain", ErrInvalidGraph, where)
		}
		if len(n.In) == 0 {
			return fmt.Errorf("%w: %s has no inputs", ErrInvalidGraph, where)
		}
		for _, in := range n.In {
			if err := use(in, where); err != nil {
				return err
			}
		}
		if n.Out.isInput() || !labelRe.MatchString(n.Out.Label) {
			return fmt.Errorf("%w: %s has invalid output label %q", ErrInvalidGraph, where, n.Out.Label)
		}
		if _, dup := producers[n.Out.Label]; dup {
			return fmt.Errorf("%w: %s redefines label %s", ErrInvalidGraph, where, n.Out)
		}
		if n.Format != nil && *n.Format != g.Frame {
			return fmt.Errorf("%w: %s declares %s, frame is %s", ErrInvalidGraph, where, n.Format, g.Frame)
		}
		if isConcat(n) {
			if err := g.checkConcat(n, producers, where); err != nil {
				return err
			}
		}
		producers[n.Out.Label] = i
	}

	for _, out := range g.Outputs {
		if err := use(out, "output map"); err != nil {
			return err
		}
	}
	for label := range producers {
		if !consumed[label] {
			return fmt.Errorf("%w: label [%s] is produced but never used", ErrInvalidGraph, label)
		}
	}
	return nil
}

func isConcat(n Node) bool {
	for _, f := range n.Chain {
		if f.Name == "concat" {
			return true
		}
	}
	return false
}

// checkConcat requires every video segment of a concat to come from a node
// with a declared format equal to the frame format.
func (g *Graph) checkConcat(n Node, producers map[string]int, where string) error {
	for _, in := range n.In {
		if in.Kind != Video {
			continue
		}
		if in.isInput() {
			return fmt.Errorf("%w: %s concatenates raw input %s with unknown format", ErrInvalidGraph, where, in)
		}
		f := g.Nodes[producers[in.Label]].Format
		if f == nil {
			return fmt.Errorf("%w: %s segment %s has no declared format", ErrInvalidGraph, where, in)
		}
		if *f != g.Frame {
			return fmt.Errorf("%w: %s segment %s is %s, frame is %s", ErrInvalidGraph, where, in, f, g.Frame)
		}
	}
	return nil
}

// String serialises the graph to -filter_complex syntax.
func (g *Graph) String() string {
	chains := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		var b strings.Builder
		for _, in := range n.In {
			b.WriteString(in.String())
		}
		for i, f := range n.Chain {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(f.String())
		}
		b.WriteString(n.Out.String())
		chains = append(chains, b.String())
	}
	return strings.Join(chains, ";")
}
