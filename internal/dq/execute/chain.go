package execute

import (
	"fmt"

	"github.com/jacoelho/dq/internal/dq/query"
	"github.com/jacoelho/dq/internal/dq/resolver"
	"github.com/jacoelho/dq/internal/dq/transform"
	"github.com/jacoelho/dq/internal/dq/value"
	"github.com/jacoelho/dq/internal/dq/vars"
)

// run is the shared core: seed the environment, reset the sandbox when the
// query needs it, then reduce the chains left to right across array-pipe
// boundaries.
func (e *Engine) run(q *query.Query, node *resolver.Node, initial map[string]any) ([]any, *vars.Environment, error) {
	if q == nil || len(q.Chains) == 0 {
		return nil, nil, fmt.Errorf("%w: empty query", query.ErrParse)
	}

	var srcURL string
	if node != nil {
		srcURL = node.SourceURL()
	}

	env := vars.New()
	env.SeedBuiltins(srcURL)
	for name, v := range initial {
		env.Set(name, v)
	}

	// One reset per execution, and only when jseval is actually used.
	if q.UsesTransform(transform.NameJSEval) {
		e.sandbox.Reset()
	}

	pipeline := transform.NewPipeline(e.registry, e.sandbox, e.logf)

	current := node
	var result []any
	for i, chain := range q.Chains {
		if i > 0 {
			arr, err := value.ToJSON(result)
			if err != nil {
				e.logf("array pipe: %v", err)
				arr = []any{}
			}
			current = resolver.NewJSON(arr, srcURL)
			env = env.Clone()
		}
		result = e.runChain(chain, current, env, pipeline)
	}
	return result, env, nil
}

// runChain iterates one chain's segments against its input node. Fallback
// segments are skipped once something matched, pipe segments replace the
// accumulator by mapping over it, everything else evaluates against the
// original node and combines in. Discard markers are stripped exactly once,
// at the end of the pass.
func (e *Engine) runChain(chain query.Chain, node *resolver.Node, env *vars.Environment, pipeline *transform.Pipeline) []any {
	var acc []any
	var srcURL string
	if node != nil {
		srcURL = node.SourceURL()
	}
	for i, seg := range chain.Segments {
		if len(acc) > 0 && !seg.Required && !seg.Pipe {
			continue
		}
		if seg.Pipe && i > 0 {
			acc = e.runPipe(seg, acc, srcURL, env, pipeline)
			continue
		}
		acc = value.Combine(acc, e.evalSegment(seg, node, env, pipeline))
	}
	return value.StripDiscards(acc)
}

// runPipe re-evaluates seg once per element of the prior result, each
// element becoming a fresh input node of the segment's scheme. The
// environment threads through every sub-evaluation.
func (e *Engine) runPipe(seg query.Segment, acc []any, srcURL string, env *vars.Environment, pipeline *transform.Pipeline) []any {
	var out []any
	for _, el := range acc {
		node := resolver.Synthesize(seg.Scheme, value.Unwrap(el), srcURL)
		out = value.Combine(out, e.evalSegment(seg, node, env, pipeline))
	}
	return out
}

// evalSegment resolves placeholders just-in-time, dispatches the scheme, and
// feeds the raw matches through the transform pipeline. Template segments
// navigate nothing: the resolved path is their one-element result.
func (e *Engine) evalSegment(seg query.Segment, node *resolver.Node, env *vars.Environment, pipeline *transform.Pipeline) []any {
	path := env.Resolve(seg.Path)

	var specs map[query.Stage][]string
	if len(seg.Specs) > 0 {
		specs = make(map[query.Stage][]string, len(seg.Specs))
		for stage, raw := range seg.Specs {
			resolved := make([]string, len(raw))
			for i, spec := range raw {
				resolved[i] = env.Resolve(spec)
			}
			specs[stage] = resolved
		}
	}

	var matches []any
	if seg.Scheme == query.SchemeTemplate {
		matches = []any{path}
	} else {
		matches = resolver.Resolve(seg.Scheme, node, path)
	}

	return pipeline.Apply(matches, specs, env)
}
