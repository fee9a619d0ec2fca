// CLAUDE:SUMMARY CLI entry point for ultradoc: convert exports, fetch documents, print stats, serve the HTTP API or MCP over stdio.
// Command ultradoc converts collaborative-document exports to Markdown,
// HTML or JSON.
//
// Usage:
//
//	ultradoc convert [-format md|html|json] [-o dir] [-keep-intermediate] <file>...
//	ultradoc fetch   [-mode http|browser] [-cookies file] [-o dir] <document url>
//	ultradoc stats   <file>...
//	ultradoc serve   [-addr :8080]
//	ultradoc mcp
//
// Every command accepts -config (YAML or TOML, default $ULTRADOC_CONFIG)
// and -log-level.
package main

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
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/ultradoc/config"
	"github.com/hazyhaar/ultradoc/docmodel"
	"github.com/hazyhaar/ultradoc/docpipe"
	"github.com/hazyhaar/ultradoc/horosafe"
	"github.com/hazyhaar/ultradoc/opendoc"
	"github.com/hazyhaar/ultradoc/render"
	"github.com/hazyhaar/ultradoc/server"
	"github.com/hazyhaar/ultradoc/store"
)

const version = "0.4.0"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "convert":
		err = cmdConvert(ctx, os.Args[2:], os.Stdout)
	case "fetch":
		err = cmdFetch(ctx, os.Args[2:], os.Stdout)
	case "stats":
		err = cmdStats(ctx, os.Args[2:], os.Stdout)
	case "serve":
		err = cmdServe(ctx, os.Args[2:])
	case "mcp":
		err = cmdMCP(ctx, os.Args[2:])
	case "version":
		fmt.Println("ultradoc", version)
	case "help", "-h", "-help", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(2)
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ultradoc %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `ultradoc: convert collaborative-document exports

usage:
  ultradoc convert [flags] <file>...       convert .json, .ejs, .b64/.txt or .bin exports
  ultradoc fetch   [flags] <document url>  download a document and convert it
  ultradoc stats   [flags] <file>...       print section counts per file
  ultradoc serve   [flags]                 run the HTTP API
  ultradoc mcp     [flags]                 serve MCP tools over stdio
  ultradoc version

Run "ultradoc <command> -h" for the flags of a command.
`)
}

// common holds the flags every command accepts.
type common struct {
	configPath string
	logLevel   string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "config file (.yaml or .toml), default $"+config.EnvPath)
	fs.StringVar(&c.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
}

// setup loads the configuration and builds the logger.
func (c *common) setup() (*config.Config, *slog.Logger, error) {
	logger := newLogger(c.logLevel)
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.Pipeline.Logger = logger
	return cfg, logger, nil
}

func newLogger(name string) *slog.Logger {
	var level slog.Level
	switch name {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// --- convert ---

type outputFlags struct {
	format           string
	outDir           string
	pageURL          string
	keepIntermediate bool
}

func (o *outputFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&o.format, "format", "markdown", "output format: markdown (md), html, json")
	fs.StringVar(&o.outDir, "o", "", "output directory (default: stdout for a single input)")
	fs.StringVar(&o.pageURL, "page-url", "", "page URL written to the Markdown front matter")
	fs.BoolVar(&o.keepIntermediate, "keep-intermediate", false, "also write the decoded mutations and styles as <name>.intermediate.json")
}

func cmdConvert(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	var c common
	var o outputFlags
	c.register(fs)
	o.register(fs)
	anchor := fs.String("heading-anchor", "", "heading lookup anchor: start or end (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one input file is required")
	}
	format, err := render.ParseFormat(o.format)
	if err != nil {
		return err
	}
	if fs.NArg() > 1 && o.outDir == "" {
		return errors.New("-o is required with several inputs")
	}

	cfg, logger, err := c.setup()
	if err != nil {
		return err
	}
	if *anchor != "" {
		cfg.Pipeline.HeadingAnchor = *anchor
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	pipe := docpipe.New(cfg.Pipeline)

	inputs := make([]docpipe.BatchInput, fs.NArg())
	for i, path := range fs.Args() {
		inputs[i] = docpipe.BatchInput{Source: path, Path: path}
	}
	results := pipe.ConvertBatch(ctx, inputs)

	names := namer{}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Error("convert failed", "source", r.Source, "error", r.Err)
			continue
		}
		written, err := emit(stdout, r.Conversion, format, o, names.next(r.Conversion.Document, fallbackName(r.Source)))
		if err != nil {
			return err
		}
		for _, p := range written {
			fmt.Fprintf(os.Stderr, "%s -> %s\n", r.Source, p)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(results))
	}
	return nil
}

// emit renders conv to stdout, or to name plus the format extension in
// o.outDir, and returns the paths written.
func emit(stdout io.Writer, conv *docpipe.Conversion, format render.Format, o outputFlags, name string) ([]string, error) {
	opts := render.Options{PageURL: o.pageURL}
	if o.outDir == "" {
		if o.keepIntermediate {
			return nil, errors.New("-keep-intermediate needs -o")
		}
		return nil, render.Write(stdout, conv.Document, format, opts)
	}

	if err := os.MkdirAll(o.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	path, err := horosafe.SafePath(o.outDir, name+format.Extension())
	if err != nil {
		return nil, err
	}
	if err := writeFile(path, func(w io.Writer) error {
		return render.Write(w, conv.Document, format, opts)
	}); err != nil {
		return nil, err
	}
	written := []string{path}

	if o.keepIntermediate && conv.Intermediate != nil {
		ipath, err := horosafe.SafePath(o.outDir, name+".intermediate.json")
		if err != nil {
			return nil, err
		}
		if err := writeFile(ipath, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(conv.Intermediate)
		}); err != nil {
			return nil, err
		}
		written = append(written, ipath)
	}
	return written, nil
}

// namer picks output names from document titles, suffixing repeats.
type namer map[string]int

func (n namer) next(d docmodel.Document, fallback string) string {
	name := horosafe.OutputName(documentTitle(d), fallback)
	if strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", "_")
	}
	n[name]++
	if c := n[name]; c > 1 {
		return fmt.Sprintf("%s-%d", name, c)
	}
	return name
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// documentTitle is the first heading's text, else the first non-empty
// paragraph's.
func documentTitle(d docmodel.Document) string {
	for _, s := range d.Sections {
		if s.Type == docmodel.Heading && strings.TrimSpace(s.Content) != "" {
			return s.Content
		}
	}
	for _, s := range d.Sections {
		if s.Type == docmodel.Paragraph && strings.TrimSpace(s.Content) != "" {
			return s.Content
		}
	}
	return ""
}

func fallbackName(source string) string {
	base := filepath.Base(source)
	if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" && name != "." {
		return name
	}
	return "document"
}

// --- fetch ---

func cmdFetch(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	var c common
	var o outputFlags
	c.register(fs)
	o.register(fs)
	mode := fs.String("mode", "", "fetch mode: http or browser (overrides config)")
	cookieFile := fs.String("cookies", "", "cookie file: Netscape, header or name=value lines (overrides config)")
	remote := fs.String("remote", "", "DevTools websocket URL of a running Chrome (browser mode)")
	raw := fs.Bool("raw", false, "write the fetched opendoc response as JSON instead of converting it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("exactly one document URL is required")
	}
	docURL := fs.Arg(0)
	format, err := render.ParseFormat(o.format)
	if err != nil {
		return err
	}

	cfg, logger, err := c.setup()
	if err != nil {
		return err
	}
	if *mode != "" {
		cfg.Fetch.Mode = *mode
	}
	if *cookieFile != "" {
		cfg.Fetch.CookieFile = *cookieFile
	}
	if *remote != "" {
		cfg.Fetch.Browser.Remote = *remote
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fetcher, err := newFetcher(cfg.Fetch, logger)
	if err != nil {
		return err
	}

	resp, err := fetcher.Fetch(ctx, docURL)
	if err != nil {
		return err
	}
	envelope, err := resp.JSON()
	if err != nil {
		return err
	}
	if *raw {
		if o.outDir == "" {
			_, err := stdout.Write(append(envelope, '\n'))
			return err
		}
		path, err := horosafe.SafePath(o.outDir, resp.Ref.ID+".json")
		if err != nil {
			return err
		}
		if err := os.MkdirAll(o.outDir, 0o755); err != nil {
			return err
		}
		return os.WriteFile(path, envelope, 0o644)
	}

	conv, err := docpipe.New(cfg.Pipeline).Convert(ctx, envelope, docURL)
	if err != nil {
		return err
	}
	if o.pageURL == "" {
		o.pageURL = docURL
	}
	written, err := emit(stdout, conv, format, o, namer{}.next(conv.Document, resp.Ref.ID))
	for _, p := range written {
		fmt.Fprintf(os.Stderr, "%s -> %s\n", docURL, p)
	}
	return err
}

// newFetcher builds the fetcher selected by cfg.Mode.
func newFetcher(cfg config.FetchConfig, logger *slog.Logger) (opendoc.Fetcher, error) {
	var cookies []*http.Cookie
	if cfg.CookieFile != "" {
		data, err := os.ReadFile(cfg.CookieFile)
		if err != nil {
			return nil, fmt.Errorf("read cookies: %w", err)
		}
		cookies = opendoc.ParseCookies(string(data))
		logger.Debug("cookies loaded", "file", cfg.CookieFile, "count", len(cookies))
	}

	if cfg.Mode == "browser" {
		return opendoc.NewBrowserFetcher(opendoc.BrowserConfig{
			RemoteURL:    cfg.Browser.Remote,
			Headful:      cfg.Browser.Headful,
			CookieDomain: cfg.Browser.CookieDomain,
			Timeout:      cfg.Timeout,
			Cookies:      cookies,
			Logger:       logger,
		}), nil
	}
	return opendoc.NewHTTPFetcher(
		opendoc.WithBaseURL(cfg.BaseURL),
		opendoc.WithUserAgent(cfg.UserAgent),
		opendoc.WithCookies(cookies),
		opendoc.WithMaxBody(cfg.MaxBody),
		opendoc.WithTimeout(cfg.Timeout),
		opendoc.WithLogger(logger),
	), nil
}

// --- stats ---

func cmdStats(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	var c common
	c.register(fs)
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one input file is required")
	}
	cfg, logger, err := c.setup()
	if err != nil {
		return err
	}
	pipe := docpipe.New(cfg.Pipeline)

	inputs := make([]docpipe.BatchInput, fs.NArg())
	for i, path := range fs.Args() {
		inputs[i] = docpipe.BatchInput{Source: path, Path: path}
	}
	results := pipe.ConvertBatch(ctx, inputs)

	if *asJSON {
		type row struct {
			Source  string                  `json:"source"`
			Stats   *docmodel.Stats         `json:"stats,omitempty"`
			Quality *docmodel.BufferQuality `json:"buffer_quality,omitempty"`
			Error   string                  `json:"error,omitempty"`
		}
		rows := make([]row, len(results))
		for i, r := range results {
			rows[i].Source = r.Source
			if r.Err != nil {
				rows[i].Error = r.Err.Error()
				continue
			}
			rows[i].Stats = &r.Conversion.Stats
			rows[i].Quality = &r.Conversion.Quality
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(stdout)
	header := table.Row{"File", "Sections"}
	for _, t := range docmodel.SectionTypes {
		header = append(header, string(t))
	}
	header = append(header, "Links", "Images", "Printable")
	tw.AppendHeader(header)

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Error("stats failed", "source", r.Source, "error", r.Err)
			continue
		}
		st := r.Conversion.Stats
		row := table.Row{r.Source, st.TotalSections}
		for _, t := range docmodel.SectionTypes {
			row = append(row, st.Count(t))
		}
		row = append(row, st.HyperlinkCount, len(st.Images), fmt.Sprintf("%.1f%%", r.Conversion.Quality.PrintableRatio*100))
		tw.AppendRow(row)
	}
	cols := []table.ColumnConfig{}
	for i := 2; i <= len(header); i++ {
		cols = append(cols, table.ColumnConfig{Number: i, Align: text.AlignRight})
	}
	tw.SetColumnConfigs(cols)
	tw.Render()

	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(results))
	}
	return nil
}

// --- serve ---

func cmdServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var c common
	c.register(fs)
	addr := fs.String("addr", "", "listen address (overrides config)")
	dbPath := fs.String("db", "", "SQLite conversion store path (overrides config)")
	noFetch := fs.Bool("no-fetch", false, "disable POST /v1/fetch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if c.logLevel == "warn" {
		c.logLevel = "info"
	}
	cfg, logger, err := c.setup()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}

	var (
		st    *store.Store
		audit *store.AuditLog
	)
	if cfg.Store.Path != "" {
		st, err = store.Open(cfg.Store.Path, store.WithMkdirAll())
		if err != nil {
			return err
		}
		defer st.Close()
		audit = st.NewAuditLog(1000, logger)
		defer audit.Close()
		if n, err := audit.Cleanup(ctx, cfg.Store.AuditRetention); err != nil {
			logger.Warn("audit cleanup failed", "error", err)
		} else if n > 0 {
			logger.Info("audit entries expired", "count", n)
		}
		logger.Info("conversion store opened", "path", cfg.Store.Path)
	}

	var fetcher opendoc.Fetcher
	if !*noFetch {
		if fetcher, err = newFetcher(cfg.Fetch, logger); err != nil {
			return err
		}
	}

	srv := server.New(docpipe.New(cfg.Pipeline), st, fetcher, server.Config{
		MaxBody:       cfg.Server.MaxBody,
		BasicAuthUser: cfg.Server.BasicAuthUser,
		BasicAuthHash: cfg.Server.BasicAuthHash,
		FetchTimeout:  cfg.Fetch.Timeout,
		Audit:         audit,
		Logger:        logger,
	})
	err = srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// --- mcp ---

func cmdMCP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, logger, err := c.setup()
	if err != nil {
		return err
	}

	srv := mcp.NewServer(&mcp.Implementation{Name: "ultradoc", Version: version}, nil)
	docpipe.New(cfg.Pipeline).RegisterMCP(srv)
	logger.Info("mcp server starting", "transport", "stdio")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
