package docpipe

import (
	"context"
	"sync"
)

// BatchInput is one item of ConvertBatch. Data is sniffed like ConvertAuto;
// when Data is nil, Path is converted with ConvertFile.
type BatchInput struct {
	Source string
	Path   string
	Data   []byte
}

// BatchResult pairs an input's source with its outcome.
type BatchResult struct {
	Source     string
	Conversion *Conversion
	Err        error
}

// ConvertBatch converts inputs with at most Config.Workers in flight.
// Results are in input order. A failed item does not stop the others;
// a cancelled context fails the items not yet started.
func (p *Pipeline) ConvertBatch(ctx context.Context, inputs []BatchInput) []BatchResult {
	results := make([]BatchResult, len(inputs))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, p.cfg.Workers)

	for i, in := range inputs {
		results[i].Source = in.Source
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			continue
		}

		wg.Add(1)
		go func(i int, in BatchInput) {
			defer wg.Done()
			defer func() { <-semaphore }()
			var (
				conv *Conversion
				err  error
			)
			if in.Data == nil && in.Path != "" {
				conv, err = p.ConvertFile(ctx, in.Path)
			} else {
				conv, err = p.ConvertAuto(ctx, in.Data, in.Source)
			}
			results[i].Conversion = conv
			results[i].Err = err
		}(i, in)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	p.logger.DebugContext(ctx, "batch converted", "items", len(inputs), "failed", failed)
	return results
}
