package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssc-dashboards/portal/internal/access"
)

var (
	routeStatus    string
	routeRole      string
	routeAnonymous bool
	routePath      string
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Print where a session with the given status and role is sent",
	Example: `  portal route --status APPROVED --role DONOR
  portal route --status PENDING --path /user/dashboard
  portal route --anonymous`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var s *access.Session
		if !routeAnonymous {
			s = &access.Session{
				Status: access.ParseStatus(routeStatus),
				Role:   access.ParseRole(routeRole),
			}
		}

		out := cmd.OutOrStdout()
		if routePath == "" {
			fmt.Fprintln(out, access.Resolve(s))
			return nil
		}
		to, redirect := access.Redirect(s, routePath)
		if redirect {
			fmt.Fprintf(out, "%s -> %s\n", routePath, to)
		} else {
			fmt.Fprintf(out, "%s (allowed)\n", routePath)
		}
		return nil
	},
}

func init() {
	routeCmd.Flags().StringVar(&routeStatus, "status", "", "account status (PENDING, APPROVED, REJECTED)")
	routeCmd.Flags().StringVar(&routeRole, "role", "", "account role (ADMIN, GENERAL, DONOR, VOLUNTEER, COLLABORATOR)")
	routeCmd.Flags().BoolVar(&routeAnonymous, "anonymous", false, "resolve with no session at all")
	routeCmd.Flags().StringVar(&routePath, "path", "", "check a request path instead of printing the home route")
	rootCmd.AddCommand(routeCmd)
}
