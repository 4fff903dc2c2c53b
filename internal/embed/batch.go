package embed

import (
	"context"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// EmbedBatch generates embeddings for a slice of texts. Texts are processed
// in fixed-size groups with fan-out bounded by the batch size; a failure on
// one item degrades that item to a zero vector and never sinks the group.
// The result always has one entry per input text.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	if len(texts) == 0 {
		return nil
	}

	results := make([][]float32, len(texts))

	pool, err := ants.NewPool(c.cfg.BatchSize)
	if err != nil {
		// Pool creation only fails on nonsense sizes; fall back to serial.
		for i, text := range texts {
			results[i] = c.embedOrZero(ctx, i, text)
		}
		return results
	}
	defer pool.Release()

	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			i := i
			wg.Add(1)
			task := func() {
				defer wg.Done()
				results[i] = c.embedOrZero(ctx, i, texts[i])
			}
			if err := pool.Submit(task); err != nil {
				wg.Done()
				results[i] = c.embedOrZero(ctx, i, texts[i])
			}
		}
		wg.Wait()
	}

	return results
}

func (c *Client) embedOrZero(ctx context.Context, idx int, text string) []float32 {
	v, err := c.EmbedSingle(ctx, text)
	if err != nil {
		c.logger.Error("embedding failed, using zero vector", "index", idx, "error", err)
		return c.ZeroVector()
	}
	return v
}

// EmbedMessages embeds conversation message contents. Messages whose stripped
// content falls under the minimum character threshold are embedding-exempt
// and come back as nil so they stay out of the vector space entirely. The
// result always has one entry per input.
func (c *Client) EmbedMessages(ctx context.Context, contents []string) [][]float32 {
	if len(contents) == 0 {
		return nil
	}

	results := make([][]float32, len(contents))

	var eligible []string
	var eligibleIdx []int
	for i, content := range contents {
		if len(strings.TrimSpace(content)) <= c.cfg.MinEmbedChars {
			continue
		}
		eligible = append(eligible, content)
		eligibleIdx = append(eligibleIdx, i)
	}

	if len(eligible) == 0 {
		return results
	}

	c.logger.Info("embedding messages", "total", len(contents), "eligible", len(eligible))

	vectors := c.EmbedBatch(ctx, eligible)
	for j, v := range vectors {
		results[eligibleIdx[j]] = v
	}
	return results
}
