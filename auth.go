package main

import (
	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google in the browser",
		Long: `Discard any saved credential and run the Google consent flow.

A browser is opened on the consent page; if that fails the URL is printed.
The redirect lands on a short-lived local listener at callback_addr, which
must match a redirect URI registered for the OAuth client.`,
		RunE: runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved credential",
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger, closeLog, err := buildLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := shutdownContext(cmd.Context(), logger)

	logger.Info("login started")

	if _, err := newAuthenticator(resolvedCfg, logger).ForceConsent(ctx); err != nil {
		return err
	}

	logger.Info("login successful")
	statusf("Login successful.\n")

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger, closeLog, err := buildLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	if err := newAuthenticator(resolvedCfg, logger).Logout(); err != nil {
		return err
	}

	statusf("Logged out.\n")

	return nil
}
