package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/soyYisus/jaak-kyc-demo/internal/client"
	kycModels "github.com/soyYisus/jaak-kyc-demo/internal/kyc/models"
	"github.com/soyYisus/jaak-kyc-demo/internal/login"
	loginHandler "github.com/soyYisus/jaak-kyc-demo/internal/login/handler"
	"github.com/soyYisus/jaak-kyc-demo/internal/steps"
	pkgstrings "github.com/soyYisus/jaak-kyc-demo/pkg/platform/strings"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

// newApp builds the command tree. Flags are created per app so repeated
// runs in one process start from clean values. Results go to out, progress
// and notes to errOut.
func newApp(out, errOut io.Writer) *cli.App {
	flagServer := &cli.StringFlag{
		Name:    "server",
		Value:   "http://127.0.0.1:3000",
		Usage:   "Base URL of the demo server",
		EnvVars: []string{"KYC_DEMO_SERVER"},
	}
	flagStep := &cli.StringSliceFlag{
		Name:  "step",
		Usage: "Step key to store, repeatable and in flow order",
	}
	flagWithout := &cli.StringSliceFlag{
		Name:  "without",
		Usage: "Step key to leave out along with every step that requires it",
	}

	apiClient := func(cCtx *cli.Context) *client.Client {
		return client.New(cCtx.String(flagServer.Name))
	}

	return &cli.App{
		Name:      "kycctl",
		Usage:     "inspect and drive the embedded KYC demo server",
		Flags:     []cli.Flag{flagServer},
		Writer:    out,
		ErrWriter: errOut,
		// main maps exit codes; the default handler would exit mid-run.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "read or replace the stored flow configuration",
				Subcommands: []*cli.Command{
					{
						Name:  "show",
						Usage: "print the stored configuration",
						Action: func(cCtx *cli.Context) error {
							cfg, err := apiClient(cCtx).GetConfig(cCtx.Context)
							if err != nil {
								return err
							}
							return printJSON(out, cfg)
						},
					},
					{
						Name:      "set",
						Usage:     "replace the stored steps, adding the steps they require",
						ArgsUsage: "[STEP...]",
						Flags:     []cli.Flag{flagStep, flagWithout},
						Action: func(cCtx *cli.Context) error {
							requested := append(cCtx.StringSlice(flagStep.Name), cCtx.Args().Slice()...)
							keys := resolveSteps(errOut,
								pkgstrings.DedupeAndTrim(requested),
								pkgstrings.DedupeAndTrim(cCtx.StringSlice(flagWithout.Name)))
							if len(keys) == 0 {
								return cli.Exit("at least one step is required", 2)
							}
							cfg, err := apiClient(cCtx).SaveSteps(cCtx.Context, keys)
							if err != nil {
								return err
							}
							return printJSON(out, cfg)
						},
					},
				},
			},
			{
				Name:  "steps",
				Usage: "list the step catalogue",
				Action: func(cCtx *cli.Context) error {
					catalog, err := apiClient(cCtx).Steps(cCtx.Context)
					if err != nil {
						return err
					}
					for _, s := range catalog {
						line := fmt.Sprintf("%-22s %s", s.Key, s.Name)
						if len(s.Dependencies) > 0 {
							deps := make([]string, len(s.Dependencies))
							for i, d := range s.Dependencies {
								deps[i] = string(d)
							}
							line += " (requires " + strings.Join(deps, ", ") + ")"
						}
						fmt.Fprintln(out, line)
					}
					return nil
				},
			},
			{
				Name:  "session",
				Usage: "provider sessions",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "open a KYC session through the proxy",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Usage: "Session name"},
							&cli.StringFlag{Name: "flow", Usage: "Provider flow"},
							&cli.StringFlag{Name: "country", Usage: "Document country, three letters"},
							&cli.StringFlag{Name: "redirect-url", Usage: "Where the provider sends the user afterwards"},
						},
						Action: func(cCtx *cli.Context) error {
							req := kycModels.FlowRequest{
								Name:            cCtx.String("name"),
								Flow:            cCtx.String("flow"),
								CountryDocument: cCtx.String("country"),
								RedirectURL:     cCtx.String("redirect-url"),
							}
							if err := req.Validate(); err != nil {
								return cli.Exit(err.Error(), 2)
							}
							resp, err := apiClient(cCtx).CreateFlow(cCtx.Context, req)
							if err != nil {
								return err
							}
							return printJSON(out, resp)
						},
					},
				},
			},
			{
				Name:  "login",
				Usage: "submit the login form and print the redirect",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"KYC_DEMO_PASSWORD"}},
					&cli.StringFlag{Name: "phone", Required: true},
					&cli.StringFlag{Name: "country-code", Value: login.DefaultCountryCode},
					&cli.DurationFlag{Name: "step-delay", Value: login.StepDelay, Usage: "Pace of the progress shown while the session is created"},
				},
				Action: func(cCtx *cli.Context) error {
					form := login.Form{
						Username:    cCtx.String("username"),
						Password:    cCtx.String("password"),
						Phone:       cCtx.String("phone"),
						CountryCode: cCtx.String("country-code"),
					}
					if err := form.Validate(); err != nil {
						var fields login.FieldErrors
						if errors.As(err, &fields) {
							printFields(out, fields)
						}
						return cli.Exit("login form is invalid", 2)
					}
					resp, err := loginWithProgress(cCtx.Context, errOut, cCtx.Duration("step-delay"),
						func(ctx context.Context) (*loginHandler.Response, error) {
							return apiClient(cCtx).Login(ctx, form)
						})
					if err != nil {
						var apiErr *client.APIError
						if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
							printFields(out, apiErr.Fields)
						}
						return err
					}
					return printJSON(out, resp)
				},
			},
		},
	}
}

// resolveSteps selects each key with the steps it requires, then removes the
// excluded keys and everything depending on them. Changes are noted on w.
func resolveSteps(w io.Writer, requested, without []string) []string {
	var selection []steps.Key
	for _, raw := range requested {
		key := steps.Key(raw)
		before := len(selection)
		selection = steps.Select(selection, key)
		for _, added := range selection[before:] {
			if added != key {
				fmt.Fprintf(w, "adding %s, required by %s\n", added, key)
			}
		}
	}
	for _, raw := range without {
		before := selection
		selection = steps.Deselect(selection, steps.Key(raw))
		for _, k := range before {
			if k != steps.Key(raw) && !slices.Contains(selection, k) {
				fmt.Fprintf(w, "removing %s, it requires %s\n", k, raw)
			}
		}
	}
	out := make([]string, len(selection))
	for i, k := range selection {
		out[i] = string(k)
	}
	return out
}

// loginWithProgress runs the login call while printing the verification
// steps on w. The progress stops early when the call fails.
func loginWithProgress(ctx context.Context, w io.Writer, delay time.Duration, call func(context.Context) (*loginHandler.Response, error)) (*loginHandler.Response, error) {
	var resp *loginHandler.Response
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total := len(login.ProgressSteps)
		return login.SimulateSteps(gctx, total, delay, func(step int) {
			fmt.Fprintf(w, "[%d/%d] %s\n", step+1, total, login.ProgressSteps[step])
		})
	})
	g.Go(func() error {
		var err error
		resp, err = call(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resp, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printFields(w io.Writer, fields map[string]string) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s: %s\n", name, fields[name])
	}
}
