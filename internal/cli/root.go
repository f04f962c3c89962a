// Package cli - командная строка оператора (ricectl).
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xela07ax/ricemarket-console/internal/app"
	"github.com/xela07ax/ricemarket-console/internal/infra"
)

// Version information (set at build time).
var Version = "0.1.0"

type appKey struct{}

type globalFlags struct {
	format  string
	demo    bool
	verbose bool
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "ricectl",
		Short: "ricectl - rice market console from the terminal",
		Long: `ricectl talks to the rice market backends (NL-SQL, agent coordinator,
RAG and forecasting) the same way the web console does.

Configuration is read from ./config.yaml or ./configs/config.yaml and
environment variables (SERVICES_NL_SQL_URL=...).`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			if flags.format != FormatTable && flags.format != FormatJSON {
				return fmt.Errorf("unknown --format %q (table|json)", flags.format)
			}

			cfg, err := infra.LoadConfig()
			if err != nil {
				return err
			}
			if flags.demo {
				cfg.Server.Demo = true
			}
			// в терминале логи только мешают выводу
			cfg.Logger.Format = "console"
			cfg.Logger.Level = "error"
			if flags.verbose {
				cfg.Logger.Level = "debug"
			}
			logger, _, err := infra.NewLogger(cfg.Logger)
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			// статусы сервисов нужны до отправки, как при открытии страницы
			a.Gate.CheckAll(cmd.Context())

			sess := &session{app: a, format: flags.format}
			if h, ok := cmd.Context().Value(appKey{}).(*holder); ok {
				h.session = sess
				return nil
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &holder{session: sess}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.format, "format", "o", FormatTable, "Output format (table|json)")
	rootCmd.PersistentFlags().BoolVar(&flags.demo, "demo", false, "Use simulated backends")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Verbose logging to stderr")

	_ = rootCmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{FormatTable, FormatJSON}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(
		newQueryCommand(),
		newHealthCommand(),
		newStatsCommand(),
		newForecastCommand(),
		newSearchCommand(),
		newUploadCommand(),
		newDocsCommand(),
		newAgentsCommand(),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	if err := Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// Run выполняет одну команду и закрывает собранное приложение,
// даже если команда завершилась ошибкой.
func Run(ctx context.Context, args []string, out, errOut io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	h := &holder{}
	err := rootCmd.ExecuteContext(context.WithValue(ctx, appKey{}, h))
	if h.session != nil {
		if cerr := h.session.app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// session - собранное приложение и формат вывода на время одной команды.
type session struct {
	app    *app.App
	format string
}

type holder struct {
	session *session
}

func sessionFrom(cmd *cobra.Command) (*session, error) {
	h, ok := cmd.Context().Value(appKey{}).(*holder)
	if !ok || h.session == nil {
		return nil, fmt.Errorf("console is not initialized")
	}
	return h.session, nil
}
