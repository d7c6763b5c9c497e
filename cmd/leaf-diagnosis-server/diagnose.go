package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"leaf-diagnosis-server/internal/bootstrap"
	"leaf-diagnosis-server/internal/domain/diagnosis"
	"leaf-diagnosis-server/internal/platform/errors"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <image>",
	Short: "Diagnose one leaf image and print the JSON result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiagnose(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)
}

func runDiagnose(cmd *cobra.Command, path string) error {
	app, err := bootstrap.Assemble(cmd.Context(), bootstrap.Options{
		ConfigPath: configPath,
		Console:    os.Stderr,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	result, err := diagnoseFile(cmd, app, path, format)
	if err != nil {
		out, _ := sonic.ConfigStd.MarshalIndent(map[string]string{"error": errors.Message(err)}, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return fmt.Errorf("diagnosis failed (%s)", errors.KindOf(err))
	}

	out, err := sonic.ConfigStd.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func diagnoseFile(cmd *cobra.Command, app *bootstrap.App, path, format string) (*diagnosis.Result, error) {
	img, _, err := app.Images.ProcessFile(cmd.Context(), path, format)
	if err != nil {
		return nil, err
	}
	return app.Pipeline.Run(cmd.Context(), img, diagnosis.Meta{Filename: filepath.Base(path)})
}
