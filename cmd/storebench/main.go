package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/d60-Lab/gin-blog/config"
	"github.com/d60-Lab/gin-blog/internal/app"
	"github.com/d60-Lab/gin-blog/internal/model"
)

var benchTags = []string{"go", "web", "db", "ops", "misc"}

func main() {
	cfg := must(config.Load())
	ctx := context.Background()

	repo, closeFn, err := app.NewPostRepository(ctx, cfg)
	mustDo(err)
	defer func() { _ = closeFn(ctx) }()

	N := envInt("N", 1000)
	CONC := envInt("CONC", 8)
	if CONC > N {
		CONC = N
	}

	fmt.Printf("backend=%s N=%d CONC=%d\n", repo.Name(), N, CONC)

	ids := make([]string, N)
	createRecs := run(N, CONC, func(i int) error {
		p, err := repo.Create(ctx, model.PostInput{
			Title:    fmt.Sprintf("bench post %d", i),
			Content:  "storebench",
			Category: "bench",
			Tags:     []string{benchTags[i%len(benchTags)]},
		})
		if err != nil {
			return err
		}
		ids[i] = p.ID.String()
		return nil
	})
	report("create", createRecs)

	getRecs := run(N, CONC, func(i int) error {
		_, err := repo.Get(ctx, ids[i])
		return err
	})
	report("get", getRecs)

	filterN := len(benchTags) * 4
	filterRecs := run(filterN, CONC, func(i int) error {
		_, err := repo.FilterByTag(ctx, benchTags[i%len(benchTags)])
		return err
	})
	report("filter", filterRecs)

	listRecs := run(3, 1, func(int) error {
		_, err := repo.List(ctx)
		return err
	})
	report("list", listRecs)

	cleanup := run(N, CONC, func(i int) error { return repo.Delete(ctx, ids[i]) })
	fmt.Printf("cleanup: deleted=%d\n", len(cleanup))
}

// run 用 conc 个 worker 执行 n 次 op，返回成功调用的耗时
func run(n, conc int, op func(i int) error) []time.Duration {
	feed := make(chan int, n)
	for i := 0; i < n; i++ {
		feed <- i
	}
	close(feed)

	var (
		mu   sync.Mutex
		recs = make([]time.Duration, 0, n)
		errs int
		wg   sync.WaitGroup
	)
	for w := 0; w < conc; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range feed {
				st := time.Now()
				err := op(i)
				d := time.Since(st)
				mu.Lock()
				if err != nil {
					errs++
				} else {
					recs = append(recs, d)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if errs > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d operations failed\n", errs, n)
	}
	return recs
}

func report(name string, recs []time.Duration) {
	fmt.Printf("%-7s samples=%d avg=%v p50=%v p95=%v p99=%v\n",
		name, len(recs), avg(recs), pct(recs, 0.50), pct(recs, 0.95), pct(recs, 0.99))
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range vs {
		sum += v
	}
	return sum / time.Duration(len(vs))
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}
