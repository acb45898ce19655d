package backendcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/engram/cmd/engram/workspace"
	"github.com/papercomputeco/engram/pkg/backend"
	backendutils "github.com/papercomputeco/engram/pkg/backend/utils"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/config"
	"github.com/papercomputeco/engram/pkg/logger"
)

const setShortDesc string = "Select and configure a backend"

type setCommander struct {
	backend     config.BackendConfig
	secretStdin bool
	noTest      bool
	configDir   string
	in          io.Reader
	out         io.Writer
}

func newSetCmd() *cobra.Command {
	cmder := &setCommander{}

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: setShortDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.backend.Name = strings.ToLower(strings.TrimSpace(args[0]))
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.ValidBackendNames(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	f := cmd.Flags()
	f.StringVar(&cmder.backend.Token, "token", "", "github/gitee: personal access token")
	f.StringVar(&cmder.backend.Repo, "repo", "", "github/gitee: owner/name repository")
	f.StringVar(&cmder.backend.Branch, "branch", "", "github/gitee: branch (default main)")
	f.StringVar(&cmder.backend.URL, "url", "", "webdav: server URL")
	f.StringVar(&cmder.backend.Username, "username", "", "webdav: username")
	f.StringVar(&cmder.backend.Password, "password", "", "webdav: password")
	f.StringVar(&cmder.backend.Endpoint, "endpoint", "", "s3: custom endpoint for S3-compatible stores")
	f.StringVar(&cmder.backend.Region, "region", "", "s3: region")
	f.StringVar(&cmder.backend.Bucket, "bucket", "", "s3: bucket")
	f.StringVar(&cmder.backend.AccessKey, "access-key", "", "s3: access key id")
	f.StringVar(&cmder.backend.SecretKey, "secret-key", "", "s3: secret access key")
	f.StringVar(&cmder.backend.Prefix, "prefix", "", "Remote folder or key prefix")
	f.BoolVar(&cmder.secretStdin, "secret-stdin", false, "Read the token, password or secret key from stdin")
	f.BoolVar(&cmder.noTest, "no-test", false, "Save without testing the connection")

	return cmd
}

func (c *setCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !config.IsValidBackend(c.backend.Name) {
		return fmt.Errorf("%w: %q\n\nSupported backends: %s",
			backend.ErrUnknownBackend, c.backend.Name, strings.Join(config.ValidBackendNames(), ", "))
	}

	if c.secretStdin {
		field := secretField(&c.backend)
		if field == nil {
			return fmt.Errorf("the %s backend takes no secret", c.backend.Name)
		}
		secret, err := readSecret(c.in, c.out, c.backend.Name)
		if err != nil {
			return err
		}
		*field = secret
	}

	// Constructing the backend validates the required settings.
	b, err := backendutils.New(c.backend, logger.Nop())
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}
	cfg.Backend = c.backend
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Backend set to %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(c.backend.Name))

	if !c.noTest && c.backend.Name != backend.NameLocal {
		if err := testConnection(ctx, c.out, b); err != nil {
			fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("Saved anyway. Fix the settings and run engram backend test."))
		}
	}
	fmt.Fprintln(c.out)
	return nil
}

// secretField points at the credential the backend authenticates with.
func secretField(c *config.BackendConfig) *string {
	switch c.Name {
	case backend.NameGitHub, backend.NameGitee:
		return &c.Token
	case backend.NameWebDAV:
		return &c.Password
	case backend.NameS3:
		return &c.SecretKey
	default:
		return nil
	}
}

// readSecret reads one secret line. A terminal gets a hidden prompt, a pipe
// is read up to the first newline.
func readSecret(in io.Reader, out io.Writer, name string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "  Enter %s secret: ", name)
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return requireSecret(string(raw))
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return requireSecret(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}

func requireSecret(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("secret cannot be empty")
	}
	return s, nil
}

func testConnection(ctx context.Context, out io.Writer, b backend.Backend) error {
	return cliui.Step(out, "Testing connection to "+b.Name(), func() error {
		if !b.TestConnection(ctx) {
			return fmt.Errorf("%s backend is not reachable", b.Name())
		}
		return nil
	})
}

func openBackend(cmd *cobra.Command) (backend.Backend, error) {
	opts := workspace.FromCommand(cmd)
	_, cfg, err := workspace.LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	return backendutils.New(cfg.Backend, workspace.NewLogger(cmd.ErrOrStderr(), opts.Debug))
}
