package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"bialign/internal/align"
	"bialign/internal/config"
	"bialign/internal/fetch"
	"bialign/internal/htmlmd"
	"bialign/internal/llmfill"
	"bialign/internal/openai"
	"bialign/internal/version"
)

const (
	modeFullText  = "fulltext"
	modeSummary   = "summary"
	modeNormalize = "normalize"
)

type options struct {
	Mode        string
	EnSource    string
	ZhSource    string
	InPath      string
	ConfigPath  string
	OutPath     string
	RenderPath  string
	Model       string
	NearWindow  int
	MaxMissing  int
	UseLLM      bool
	HTMLInput   bool
	ShowStats   bool
	Timeout     time.Duration
	ShowVersion bool
	ShowHelp    bool
}

func Run(args []string, stdout io.Writer, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.ShowHelp {
		return nil
	}
	if opts.ShowVersion {
		_, _ = fmt.Fprintln(stdout, version.String())
		return nil
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	applyOverrides(&cfg, opts)

	switch opts.Mode {
	case modeNormalize:
		return runNormalize(opts, stdout)
	case modeFullText, modeSummary:
		return runAlign(opts, cfg, stdout, stderr)
	default:
		return fmt.Errorf("unknown mode %q (want fulltext, summary, or normalize)", opts.Mode)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	opts := options{}

	fs := flag.NewFlagSet("bialign", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintln(stderr, "Usage: bialign [flags] <english source> <chinese source>")
		_, _ = fmt.Fprintln(stderr, "       bialign -mode normalize [flags] <payload.json>")
		_, _ = fmt.Fprintln(stderr, "Sources are file paths or http(s) URLs.")
		_, _ = fmt.Fprintln(stderr, "")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.Mode, "mode", modeFullText, "alignment mode: fulltext, summary, or normalize")
	fs.StringVar(&opts.ConfigPath, "config", "", "path to TOML config file")
	fs.StringVar(&opts.OutPath, "out", "", "write payload JSON to this file instead of stdout")
	fs.StringVar(&opts.RenderPath, "render", "", "write bilingual markdown to this file")
	fs.StringVar(&opts.Model, "model", "", "LLM model id (overrides config)")
	fs.StringVar(&opts.InPath, "in", "", "persisted payload to normalize (normalize mode)")
	fs.IntVar(&opts.NearWindow, "near", 0, "near-timestamp window in seconds (overrides config)")
	fs.IntVar(&opts.MaxMissing, "max-missing", 0, "max missing pairs per LLM request (overrides config)")
	fs.BoolVar(&opts.UseLLM, "llm", false, "resolve remaining missing pairs via the LLM fallback")
	fs.BoolVar(&opts.HTMLInput, "html", false, "treat file inputs as HTML and convert to markdown first")
	fs.BoolVar(&opts.ShowStats, "stats", false, "print an alignment stats table")
	fs.DurationVar(&opts.Timeout, "timeout", 0, "network timeout for fetch and LLM calls (overrides config)")
	fs.BoolVar(&opts.ShowVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return options{ShowHelp: true}, nil
		}
		return options{}, err
	}

	rest := fs.Args()
	switch opts.Mode {
	case modeNormalize:
		if opts.InPath == "" && len(rest) > 0 {
			opts.InPath = rest[0]
		}
	default:
		if len(rest) >= 1 {
			opts.EnSource = rest[0]
		}
		if len(rest) >= 2 {
			opts.ZhSource = rest[1]
		}
	}

	return opts, nil
}

func applyOverrides(cfg *config.Config, opts options) {
	if opts.NearWindow > 0 {
		cfg.Align.NearWindowSec = opts.NearWindow
	}
	if opts.MaxMissing > 0 {
		cfg.Align.MaxMissing = opts.MaxMissing
	}
	if strings.TrimSpace(opts.Model) != "" {
		cfg.LLM.Model = opts.Model
	}
	if opts.Timeout > 0 {
		cfg.LLM.TimeoutSeconds = int(opts.Timeout / time.Second)
		if cfg.LLM.TimeoutSeconds == 0 {
			cfg.LLM.TimeoutSeconds = 1
		}
	}
}

func runNormalize(opts options, stdout io.Writer) error {
	if strings.TrimSpace(opts.InPath) == "" {
		return errors.New("normalize mode needs a payload path (-in or positional)")
	}

	raw, err := os.ReadFile(opts.InPath)
	if err != nil {
		return fmt.Errorf("read payload %s: %w", opts.InPath, err)
	}

	var out any
	if isSummaryPayload(raw) {
		payload, err := align.NormalizeSummaryPayload(raw)
		if err != nil {
			return fmt.Errorf("normalize summary payload: %w", err)
		}
		out = payload
	} else {
		payload, err := align.NormalizeFullTextPayload(raw)
		if err != nil {
			return fmt.Errorf("normalize full-text payload: %w", err)
		}
		out = payload
	}

	return writeJSON(out, opts.OutPath, stdout)
}

func isSummaryPayload(raw []byte) bool {
	var probe struct {
		Sections json.RawMessage `json:"sections"`
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err == nil {
			trimmed = inner
		}
	}
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return false
	}
	return probe.Sections != nil
}

func runAlign(opts options, cfg config.Config, stdout io.Writer, stderr io.Writer) error {
	if opts.EnSource == "" || opts.ZhSource == "" {
		return errors.New("two sources are required: <english source> <chinese source>")
	}

	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	ctx := context.Background()

	markdownEn, err := loadSource(ctx, opts, timeout, opts.EnSource)
	if err != nil {
		return fmt.Errorf("load English source: %w", err)
	}
	markdownZh, err := loadSource(ctx, opts, timeout, opts.ZhSource)
	if err != nil {
		return fmt.Errorf("load Chinese source: %w", err)
	}

	var payload any
	var stats align.Stats

	switch opts.Mode {
	case modeFullText:
		full := align.BuildFullTextPayload(markdownEn, markdownZh, align.Options{
			NearWindowSec: cfg.Align.NearWindowSec,
		})
		if opts.UseLLM {
			full = resolveFullText(ctx, full, markdownZh, cfg, stdout, stderr)
		}
		payload, stats = full, full.Stats
		if opts.RenderPath != "" {
			if err := writeRender(opts.RenderPath, align.RenderFullTextMarkdown(full)); err != nil {
				return err
			}
		}
	case modeSummary:
		summary := align.BuildSummaryPayload(markdownEn, markdownZh)
		if opts.UseLLM {
			summary = resolveSummary(ctx, summary, markdownZh, cfg, stdout, stderr)
		}
		payload, stats = summary, summary.Stats
		if opts.RenderPath != "" {
			if err := writeRender(opts.RenderPath, align.RenderSummaryMarkdown(summary)); err != nil {
				return err
			}
		}
	}

	if err := writeJSON(payload, opts.OutPath, stdout); err != nil {
		return err
	}

	if opts.ShowStats {
		_, _ = fmt.Fprintln(stdout, statsTable(stats, isTerminal(stdout)))
	}
	return nil
}

func loadSource(ctx context.Context, opts options, timeout time.Duration, source string) (string, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		page, err := fetch.Download(fetchCtx, &http.Client{Timeout: timeout}, source)
		if err != nil {
			return "", err
		}
		return htmlmd.FromHTML(page.HTML)
	}

	raw, err := os.ReadFile(source)
	if err != nil {
		return "", err
	}
	if opts.HTMLInput {
		return htmlmd.FromHTML(string(raw))
	}
	return string(raw), nil
}

// newResolver builds the production resolver binding, or nil (with a notice)
// when credentials are absent. Alignment stays fail-open either way.
func newResolver(cfg config.Config, timeout time.Duration, stderr io.Writer) llmfill.Resolver {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		_, _ = fmt.Fprintln(stderr, "OPENAI_API_KEY not set; skipping LLM fallback")
		return nil
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = cfg.LLM.BaseURL
	}

	return openai.NewClient(apiKey, cfg.LLM.Model, baseURL, &http.Client{Timeout: timeout}, cfg.LLM.MaxRetries)
}

func resolveFullText(ctx context.Context, payload *align.FullTextPayload, markdownZh string, cfg config.Config, stdout, stderr io.Writer) *align.FullTextPayload {
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	resolver := newResolver(cfg, timeout, stderr)
	if resolver == nil {
		return payload
	}

	out, result := llmfill.ApplyFullText(ctx, resolver, payload, llmfill.Options{
		RawZh:      markdownZh,
		MaxMissing: cfg.Align.MaxMissing,
		Logger:     slog.New(slog.NewTextHandler(stderr, nil)),
	})
	_, _ = fmt.Fprintf(stdout, "LLM fallback: attempted %d, matched %d\n", result.Attempted, result.LLMMatched)
	return out
}

func resolveSummary(ctx context.Context, payload *align.SummaryPayload, markdownZh string, cfg config.Config, stdout, stderr io.Writer) *align.SummaryPayload {
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	resolver := newResolver(cfg, timeout, stderr)
	if resolver == nil {
		return payload
	}

	out, result := llmfill.ApplySummary(ctx, resolver, payload, llmfill.Options{
		RawZh:      markdownZh,
		MaxMissing: cfg.Align.MaxMissing,
		Logger:     slog.New(slog.NewTextHandler(stderr, nil)),
	})
	_, _ = fmt.Fprintf(stdout, "LLM fallback: attempted %d, matched %d\n", result.Attempted, result.LLMMatched)
	return out
}

func writeJSON(payload any, outPath string, stdout io.Writer) error {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if strings.TrimSpace(outPath) == "" {
		_, _ = fmt.Fprintln(stdout, string(encoded))
		return nil
	}
	if err := os.WriteFile(outPath, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("write payload %s: %w", outPath, err)
	}
	return nil
}

func writeRender(path, markdown string) error {
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("write render %s: %w", path, err)
	}
	return nil
}

func sortedMethods(methods map[string]int) []string {
	keys := make([]string, 0, len(methods))
	for method := range methods {
		keys = append(keys, method)
	}
	sort.Strings(keys)
	return keys
}
