package cmd

import (
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"settings-lite/internal/api"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// newServeCmd creates the serve command.
func newServeCmd(provider *AppProvider) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the store over HTTP",
		Long: `Serve the configured store over the settings HTTP API until interrupted.

Endpoints:
  GET    /healthz
  GET    /v1/settings          whole settings document
  PUT    /v1/settings          replace every setting
  GET    /v1/settings/{key}    one record
  PUT    /v1/settings/{key}    set one record
  DELETE /v1/settings/{key}    remove one key

Requests other than /healthz need "Authorization: Bearer <token>" when
server.token (or SETTINGS_TOKEN) is set. Every write is saved before the
response is sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := app.Config.Server
			if listen != "" {
				cfg.Listen = listen
			}
			handler := api.NewHTTPHandler(api.HTTPDeps{
				Service: api.NewService(app.Store),
				Token:   cfg.Token,
			})
			return api.Serve(ctx, api.ServerOptions{
				Listen:         cfg.Listen,
				MaxConnections: cfg.MaxConnections,
				CertFile:       cfg.TLS.CertFile,
				KeyFile:        cfg.TLS.KeyFile,
				CAFile:         cfg.TLS.CAFile,
				Ready: func(addr net.Addr) {
					fmt.Fprintf(app.Err, "Serving %s on %s\n", app.Location(), addr)
				},
			}, handler)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Override server.listen")

	return cmd
}

// newMCPCmd creates the mcp command.
func newMCPCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the store as MCP tools over stdio",
		Long: `Run an MCP server on stdin/stdout exposing get_setting, set_setting,
remove_setting and list_settings. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			s := api.NewMCPServer(api.NewService(app.Store), Version)
			return server.ServeStdio(s)
		},
	}
	return cmd
}
