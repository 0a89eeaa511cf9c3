package cmd

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rosettalab/xlate/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over SSE",
	Long: `Start an MCP server on an HTTP listener using the SSE transport.
By default it binds 127.0.0.1:8080. Use --host and --port to change it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		host := viper.GetString("host")
		port := viper.GetInt("port")
		addr := fmt.Sprintf("%s:%d", host, port)

		eng, err := buildEngine(cmd)
		if err != nil {
			return err
		}
		srv := mcp.NewServer(eng, logger)

		ui.Info("Serving MCP (SSE) on http://%s", addr)
		if err := srv.ServeSSE(addr); err != nil {
			var opErr *net.OpError
			if errors.As(err, &opErr) {
				ui.Error("bind %s: %v", addr, err)
				os.Exit(3)
			}
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "127.0.0.1", "host to bind")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}
