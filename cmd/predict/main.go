package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"expressionpanel/internal/domain"
	"expressionpanel/internal/infra"
	"expressionpanel/internal/output"
	"expressionpanel/internal/predictor"
)

type options struct {
	Backend  string
	Origin   string
	Timeout  time.Duration
	Interval time.Duration
	Overflow string
	Raw      bool
	Verbose  bool
	Params   map[string]*string
}

var opts = options{Params: make(map[string]*string)}

var rootCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run one expression edit against a prediction server and print the result",
	Long: `predict submits the given parameters to a Cog-style prediction server,
waits for the job to finish and prints the normalized output as JSON.

A local --image is inlined as a data URI unless --origin is set, in which
case the path is rewritten to <origin>/file=<path> for a running panel to serve.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		return run(cmd.Context(), cmd, opts)
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&opts.Backend, "backend", envOr("PREDICTOR_URL", "http://0.0.0.0:5000"), "Prediction server base URL")
	flags.StringVar(&opts.Origin, "origin", os.Getenv("PUBLIC_ORIGIN"), "Public origin of a panel serving local files")
	flags.DurationVar(&opts.Timeout, "timeout", 10*time.Minute, "Give up waiting after this long")
	flags.DurationVar(&opts.Interval, "interval", time.Second, "Wait between status checks")
	flags.StringVar(&opts.Overflow, "overflow", "drop", "What to do with extra outputs: drop or append")
	flags.BoolVar(&opts.Raw, "raw", false, "Print the backend output without normalizing it")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Log each poll")
	for _, in := range domain.Inputs() {
		usage := in.Info
		if usage == "" {
			usage = in.Label
		}
		if in.Default != nil {
			usage = fmt.Sprintf("%s (server default %v)", usage, in.Default)
		}
		opts.Params[in.Name] = flags.String(in.Name, "", usage)
	}
	_ = rootCmd.MarkFlagRequired("image")
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		// A busy backend is worth retrying; scripts can tell it apart.
		if errors.Is(err, predictor.ErrServiceBusy) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cobra.Command, opts options) error {
	if opts.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive, got %s", opts.Timeout)
	}
	overflow, err := output.ParseOverflow(opts.Overflow)
	if err != nil {
		return err
	}

	logger := infra.NewConsoleLogger(cmd.ErrOrStderr(), opts.Verbose)

	params, err := collectParams(cmd, opts)
	if err != nil {
		return err
	}

	exists := func(string) bool { return false }
	if opts.Origin != "" {
		exists = nil
	}
	client, err := predictor.NewClient(predictor.Options{
		BaseURL:      opts.Backend,
		Logger:       &logger,
		PollInterval: opts.Interval,
		PollTimeout:  opts.Timeout,
		FileExists:   exists,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout+time.Minute)
	defer cancel()

	raw, job, err := client.Predict(ctx, params, opts.Origin)
	if err != nil {
		return err
	}
	logger.Info().Str("prediction_id", job.ID).Int("polls", job.Polls).Msg("prediction succeeded")

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if opts.Raw {
		return enc.Encode(raw)
	}
	result, err := output.Normalize(ctx, raw, domain.OutputConfig(overflow), output.ReferenceRenderer{})
	if err != nil {
		return err
	}
	return enc.Encode(result)
}

// collectParams validates the flags that were set, in schema order.
func collectParams(cmd *cobra.Command, opts options) (predictor.ParamSet, error) {
	var params predictor.ParamSet
	for _, name := range domain.InputNames() {
		if !cmd.Flags().Changed(name) {
			continue
		}
		v, err := domain.ParseValue(name, *opts.Params[name])
		if err != nil {
			return nil, err
		}
		if name == "image" && opts.Origin == "" {
			if v, err = inlineImage(v); err != nil {
				return nil, err
			}
		}
		params = params.Set(name, v)
	}
	if v, _ := params.Get("image"); v == nil {
		return nil, domain.ErrImageRequired
	}
	return params, nil
}

// inlineImage turns a local file into a data URI so the backend needs no
// route back to this machine.
func inlineImage(v any) (any, error) {
	path, ok := v.(string)
	if !ok {
		return v, nil
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return v, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
