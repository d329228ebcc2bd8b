package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/httpkit/httpclient"
	"github.com/kbukum/httpkit/logger"
	"github.com/kbukum/httpkit/observability"
	"github.com/kbukum/httpkit/version"
)

type options struct {
	configFile string
	envFile    string
	baseURL    string
	timeout    time.Duration
	data       string
	headers    []string
	query      []string
	requestID  string
	weight     int
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "httpcall [flags] METHOD PATH",
		Short: "Send an HTTP request and print the normalized response",
		Long: `httpcall sends one request through an httpkit client: it assigns a
correlation id, logs the request, waits for rate limit admission when a limit
is configured, and prints the response as JSON. Failed requests print the
normalized error and exit non-zero.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			weight := -1
			if cmd.Flags().Changed("weight") {
				weight = opts.weight
			}
			return run(cmd.Context(), opts, weight, args[0], args[1], stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "config file (default: search ./httpcall.yml, ./config/httpcall.yml, user config dir)")
	f.StringVar(&opts.envFile, "env-file", "", ".env file loaded before reading HTTPCALL_* variables")
	f.StringVarP(&opts.baseURL, "base-url", "u", "", "base URL prefixed to PATH (overrides client.base_url)")
	f.DurationVar(&opts.timeout, "timeout", 0, "per-request timeout")
	f.StringVarP(&opts.data, "data", "d", "", "request body; JSON is sent as application/json, @file reads a file")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, "request header 'Name: value' (repeatable, replaces configured headers)")
	f.StringArrayVarP(&opts.query, "query", "q", nil, "query parameter 'name=value' (repeatable)")
	f.StringVar(&opts.requestID, "request-id", "", "correlation id (default: random UUID)")
	f.IntVarP(&opts.weight, "weight", "w", 1, "rate limit cost of this request")

	cmd.AddCommand(newVersionCmd(stdout))
	return cmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			info := version.Get()
			switch output {
			case "json":
				return writeJSON(stdout, info)
			case "short":
				_, err := fmt.Fprintln(stdout, info.Short())
				return err
			case "text":
				_, err := fmt.Fprintf(stdout, "httpcall %s\ncommit: %s\nbuilt: %s\ngo: %s\n",
					info.Version, info.GitCommit, info.BuildTime, info.GoVersion)
				return err
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json, short)")
	return cmd
}

func run(ctx context.Context, opts *options, weight int, method, path string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.configFile, opts.envFile)
	if err != nil {
		return err
	}
	if opts.baseURL != "" {
		cfg.Client.BaseURL = opts.baseURL
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.NewWithWriter(&cfg.Logging, cfg.Name, stderr)
	logger.SetGlobalLogger(log)

	clientOpts := []httpclient.Option{
		httpclient.WithLogger(log.WithComponent("client")),
		httpclient.WithTracer(observability.Tracer()),
		httpclient.WithErrorFormatter(func(e *httpclient.HTTPError) {
			if err := writeJSON(stdout, errorOutput{Error: e.Message(), Status: e.StatusCode(), Data: e.Data()}); err != nil {
				log.Error("failed to write error output", logger.Fields(logger.FieldError, err.Error()))
			}
		}),
	}

	shutdown, metrics, err := setupTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()
	if metrics != nil {
		clientOpts = append(clientOpts, httpclient.WithMetrics(metrics))
	}

	client, err := httpclient.NewClient(cfg.Client, clientOpts...)
	if err != nil {
		return err
	}
	defer client.Close()

	reqOpts, err := requestOptions(opts, weight)
	if err != nil {
		return err
	}
	body, err := requestBody(opts.data)
	if err != nil {
		return err
	}

	resp, err := httpclient.Do[[]byte](ctx, client, strings.ToUpper(method), path, body, reqOpts...)
	if err != nil {
		return err
	}
	return writeJSON(stdout, responseOutput{
		Status:     resp.Status,
		StatusText: resp.StatusText,
		Headers:    resp.Headers,
		Data:       bodyValue(resp.Data),
	})
}

type responseOutput struct {
	Status     int         `json:"status"`
	StatusText string      `json:"statusText"`
	Headers    http.Header `json:"headers"`
	Data       any         `json:"data"`
}

type errorOutput struct {
	Error  string         `json:"error"`
	Status int            `json:"status,omitempty"`
	Data   map[string]any `json:"data"`
}

func setupTelemetry(ctx context.Context, cfg *Config) (func(), *observability.ClientMetrics, error) {
	var shutdowns []func(context.Context) error
	shutdown := func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, fn := range shutdowns {
			if err := fn(sctx); err != nil {
				logger.Warn("telemetry shutdown failed", logger.Fields(logger.FieldError, err.Error()))
			}
		}
	}

	if cfg.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, cfg.Tracing)
		if err != nil {
			return shutdown, nil, err
		}
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	if !cfg.Metrics.Enabled {
		return shutdown, nil, nil
	}
	mp, err := observability.InitMeter(ctx, &cfg.Metrics)
	if err != nil {
		return shutdown, nil, err
	}
	shutdowns = append(shutdowns, mp.Shutdown)

	metrics, err := observability.NewClientMetrics(observability.Meter())
	if err != nil {
		return shutdown, nil, err
	}
	return shutdown, metrics, nil
}

func requestOptions(opts *options, weight int) ([]httpclient.RequestOption, error) {
	var out []httpclient.RequestOption

	for _, h := range opts.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Name: value'", h)
		}
		out = append(out, httpclient.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
	}
	for _, q := range opts.query {
		name, value, ok := strings.Cut(q, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid query parameter %q, expected 'name=value'", q)
		}
		out = append(out, httpclient.WithQueryParam(name, value))
	}
	if opts.requestID != "" {
		out = append(out, httpclient.WithRequestID(opts.requestID))
	}
	if opts.timeout > 0 {
		out = append(out, httpclient.WithTimeout(opts.timeout))
	}
	if weight >= 0 {
		out = append(out, httpclient.WithWeight(weight))
	}
	return out, nil
}

// requestBody returns nil for no data, json.RawMessage for valid JSON and
// the raw string otherwise. "@path" reads the body from a file.
func requestBody(data string) (any, error) {
	if data == "" {
		return nil, nil
	}
	if name, ok := strings.CutPrefix(data, "@"); ok {
		b, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
		data = string(b)
	}
	if json.Valid([]byte(data)) {
		return json.RawMessage(data), nil
	}
	return data, nil
}

// bodyValue embeds JSON bodies as JSON and everything else as a string.
func bodyValue(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	return string(b)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
