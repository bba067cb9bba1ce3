package query

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/itchyny/gojq"
	"github.com/rendis/stationflow/pkg/schema"
)

// Projector runs jq programs over a station history. The input is the
// history array exactly as stored in etat_station.json.
type Projector struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// NewProjector creates an empty program cache.
func NewProjector() *Projector {
	return &Projector{cache: make(map[string]*gojq.Code)}
}

// Project evaluates expression against history and returns every output.
func (p *Projector) Project(ctx context.Context, expression string, history []schema.Snapshot) ([]any, error) {
	code, err := p.getOrCompile(expression)
	if err != nil {
		return nil, err
	}
	input, err := toJQ(history)
	if err != nil {
		return nil, err
	}

	iter := code.RunWithContext(ctx, input)
	var results []any
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := val.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeExpression,
				"jq evaluation failed for %q: %s", expression, err.Error()).
				WithCause(err).
				WithDetails(map[string]any{"expression": expression})
		}
		results = append(results, val)
	}
	return results, nil
}

func (p *Projector) getOrCompile(expression string) (*gojq.Code, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty jq expression")
	}
	p.mu.RLock()
	if code, ok := p.cache[expression]; ok {
		p.mu.RUnlock()
		return code, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if code, ok := p.cache[expression]; ok {
		return code, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"jq parse error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	code, err := gojq.Compile(query,
		// No $ENV access from operator input.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"jq compile error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	p.cache[expression] = code
	return code, nil
}

// toJQ turns the history into plain JSON values (float64 numbers, map
// objects) the way gojq expects them.
func toJQ(history []schema.Snapshot) (any, error) {
	if history == nil {
		history = []schema.Snapshot{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeExpression, "encode history").WithCause(err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, schema.NewError(schema.ErrCodeExpression, "decode history").WithCause(err)
	}
	return v, nil
}
