// Command loggen writes synthetic log lines in the built-in formats, to a
// file, stdout, or a Redis channel, so every transport has something to tail.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	formatSpring   = "spring-boot"
	formatStandard = "standard-log"
	formatPython   = "python-logging"
)

// keep the Redis list bounded for read-once
const redisListCap = 5000

func main() {
	var (
		formatsCSV  string
		rate        float64
		outDir      string
		toStdout    bool
		durationStr string
		traceRatio  float64
		redisAddr   string
		redisChan   string
	)

	flag.StringVar(&formatsCSV, "formats", formatStandard, "comma-separated list: spring-boot,standard-log,python-logging")
	flag.Float64Var(&rate, "rate", 5.0, "messages per second per stream")
	flag.StringVar(&outDir, "dir", "simulateddata", "output directory; each format goes to <dir>/<format>.log")
	flag.BoolVar(&toStdout, "stdout", false, "write to stdout instead of files (first format only)")
	flag.StringVar(&durationStr, "duration", "", "optional run duration (e.g. 30s, 2m); empty runs until interrupted")
	flag.Float64Var(&traceRatio, "stack-ratio", 0.1, "fraction of errors followed by a stack trace")
	flag.StringVar(&redisAddr, "redis", "", "publish to this Redis address instead of files (host:port)")
	flag.StringVar(&redisChan, "channel", "app-logs", "Redis channel and list name, used with --redis")
	flag.Parse()

	formats := splitFormats(formatsCSV)
	if len(formats) == 0 {
		fmt.Fprintln(os.Stderr, "no valid formats provided")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if durationStr != "" {
		d, err := time.ParseDuration(durationStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid duration: %v\n", err)
			os.Exit(2)
		}
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, d)
		defer stop()
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	switch {
	case redisAddr != "":
		if err := runRedis(ctx, redisAddr, redisChan, formats[0], rate, traceRatio, rng); err != nil {
			fmt.Fprintf(os.Stderr, "redis: %v\n", err)
			os.Exit(1)
		}
	case toStdout:
		w := bufio.NewWriter(os.Stdout)
		defer w.Flush()
		runStream(ctx, w, newGenerator(formats[0], traceRatio, rng), rate)
	default:
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "create %s: %v\n", outDir, err)
			os.Exit(1)
		}
		var wg sync.WaitGroup
		for i, f := range formats {
			p := filepath.Join(outDir, f+".log")
			// separate sources so streams do not share the generator state
			g := newGenerator(f, traceRatio, rand.New(rand.NewSource(rng.Int63()+int64(i))))
			if err := runStreamToFile(ctx, &wg, g, p, rate); err != nil {
				fmt.Fprintf(os.Stderr, "start %s: %v\n", f, err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stderr, "generating %s logs -> %s at %.2f msg/s\n", f, p, rate)
		}
		wg.Wait()
	}
}

func splitFormats(csv string) []string {
	var out []string
	for _, p := range strings.Split(csv, ",") {
		if f := normalizeFormat(p); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func normalizeFormat(f string) string {
	switch strings.ToLower(strings.TrimSpace(f)) {
	case "spring", "spring-boot", "java":
		return formatSpring
	case "standard", "standard-log", "std":
		return formatStandard
	case "python", "python-logging", "py":
		return formatPython
	}
	return ""
}

func runStreamToFile(ctx context.Context, wg *sync.WaitGroup, g *generator, path string, rate float64) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer f.Close()
		defer w.Flush()
		runStream(ctx, w, g, rate)
	}()
	return nil
}

func interval(rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	d := time.Duration(float64(time.Second) / rate)
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}

func runStream(ctx context.Context, w *bufio.Writer, g *generator, rate float64) {
	ticker := time.NewTicker(interval(rate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeRecord(w, g.next())
			_ = w.Flush()
		}
	}
}

func writeRecord(w io.Writer, lines []string) {
	for _, l := range lines {
		_, _ = io.WriteString(w, l+"\n")
	}
}

// runRedis publishes each record as one message and mirrors it to a list so
// read-once has something to fetch.
func runRedis(ctx context.Context, addr, channel, format string, rate, traceRatio float64, rng *rand.Rand) error {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "publishing %s logs -> redis://%s/%s at %.2f msg/s\n", format, addr, channel, rate)

	g := newGenerator(format, traceRatio, rng)
	ticker := time.NewTicker(interval(rate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			msg := strings.Join(g.next(), "\n")
			pipe := client.Pipeline()
			pipe.Publish(ctx, channel, msg)
			pipe.RPush(ctx, channel, msg)
			pipe.LTrim(ctx, channel, -redisListCap, -1)
			if _, err := pipe.Exec(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

type generator struct {
	format     string
	traceRatio float64
	rng        *rand.Rand
	pid        int
}

func newGenerator(format string, traceRatio float64, rng *rand.Rand) *generator {
	return &generator{format: format, traceRatio: traceRatio, rng: rng, pid: 1000 + rng.Intn(60000)}
}

// next returns one record: a header line and, for some errors, an indented
// stack trace.
func (g *generator) next() []string {
	now := time.Now()
	lvl := g.level()
	msg := g.message(lvl)
	var head string
	switch g.format {
	case formatSpring:
		head = fmt.Sprintf("%s %5s %d --- [%s] %s : %s",
			now.Format("2006-01-02 15:04:05.000"), lvl, g.pid, g.thread(), g.logger(), msg)
	case formatPython:
		pyLvl := lvl
		if pyLvl == "WARN" {
			pyLvl = "WARNING"
		}
		head = fmt.Sprintf("%s - %s - %s - %s",
			strings.Replace(now.Format("2006-01-02 15:04:05.000"), ".", ",", 1), g.module(), pyLvl, msg)
	default:
		head = fmt.Sprintf("%s [%s] %s", now.Format("2006-01-02 15:04:05.000"), lvl, msg)
	}
	out := []string{head}
	if lvl == "ERROR" && g.rng.Float64() < g.traceRatio {
		out = append(out, g.stack()...)
	}
	return out
}

func (g *generator) pick(xs []string) string { return xs[g.rng.Intn(len(xs))] }

func (g *generator) level() string {
	r := g.rng.Float64()
	switch {
	case r < 0.6:
		return "INFO"
	case r < 0.8:
		return "DEBUG"
	case r < 0.95:
		return "WARN"
	default:
		return "ERROR"
	}
}

func (g *generator) message(lvl string) string {
	switch lvl {
	case "ERROR":
		return g.pick([]string{
			"request failed: upstream timeout",
			"could not acquire db connection",
			"payment declined for order " + g.hex(8),
			"unhandled exception in worker",
		})
	case "WARN":
		return g.pick([]string{
			"rate limit exceeded for user " + g.user(),
			"slow query took " + fmt.Sprintf("%.1fms", 200+g.rng.Float64()*800),
			"retrying job " + g.hex(6),
		})
	}
	method, path := g.pick([]string{"GET", "POST", "PUT", "DELETE"}), g.pick([]string{"/", "/health", "/login", "/api/v1/items", "/api/v1/orders"})
	return g.pick([]string{
		fmt.Sprintf("%s %s -> %d in %dms", method, path, g.status(), g.rng.Intn(400)),
		"user " + g.user() + " authenticated",
		"cache " + g.pick([]string{"hit", "miss"}) + " key=" + g.hex(8),
		"background job " + g.hex(6) + " finished",
	})
}

func (g *generator) status() int {
	r := g.rng.Float64()
	switch {
	case r < 0.8:
		return 200
	case r < 0.9:
		return 404
	default:
		return 500
	}
}

func (g *generator) user() string {
	return g.pick([]string{"alice", "bob", "carol", "dave", "erin"})
}

func (g *generator) thread() string {
	return g.pick([]string{"main", "http-nio-8080-exec-1", "http-nio-8080-exec-2", "scheduling-1", "task-3"})
}

func (g *generator) logger() string {
	return g.pick([]string{
		"o.s.web.servlet.DispatcherServlet",
		"com.example.orders.OrderService",
		"com.example.auth.TokenFilter",
		"o.h.engine.jdbc.spi.SqlExceptionHelper",
	})
}

func (g *generator) module() string {
	return g.pick([]string{"app.api", "app.worker", "app.db", "urllib3.connectionpool"})
}

func (g *generator) hex(n int) string {
	const digits = "0123456789abcdef"
	b := make([]byte, n)
	for i := range b {
		b[i] = digits[g.rng.Intn(len(digits))]
	}
	return string(b)
}

func (g *generator) stack() []string {
	if g.format == formatPython {
		return []string{
			"Traceback (most recent call last):",
			`  File "/srv/app/worker.py", line 88, in run`,
			"    result = job.execute()",
			`  File "/srv/app/jobs.py", line 41, in execute`,
			"    raise TimeoutError(\"upstream timeout\")",
			"TimeoutError: upstream timeout",
		}
	}
	return []string{
		"java.lang.IllegalStateException: upstream timeout",
		"\tat com.example.orders.OrderService.place(OrderService.java:118)",
		"\tat com.example.orders.OrderController.create(OrderController.java:54)",
		"\tat java.base/java.lang.Thread.run(Thread.java:833)",
	}
}
