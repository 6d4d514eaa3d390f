package cli

import (
	"fmt"

	"github.com/MajordomoAI/majordomo/internal/gateway"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		printHeader("🚀 Majordomo Gateway")
		fmt.Printf("Listening on http://%s:%d\n", rt.cfg.Gateway.Host, rt.cfg.Gateway.Port)
		if rt.cfg.Gateway.AuthToken == "" {
			fmt.Println("Auth:      ✗ No token set (API is open, local use only)")
		} else {
			fmt.Println("Auth:      ✓ Bearer token required")
		}

		srv := gateway.NewServer(rt.engine, rt.ledger, rt.gate, rt.store, rt.cfg.Gateway.AuthToken)
		defer srv.Close()
		return srv.ListenAndServe(rt.cfg.Gateway.Host, rt.cfg.Gateway.Port)
	},
}
