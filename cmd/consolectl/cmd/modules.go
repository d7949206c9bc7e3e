package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openctemio/console/internal/app"
	"github.com/openctemio/console/internal/infra/http/handler"
	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/shared"
)

var flagPurge bool

var modulesCmd = &cobra.Command{
	Use:     "modules",
	Aliases: []string{"module", "mod"},
	Short:   "Manage modules",
}

var modulesScanCmd = &cobra.Command{
	Use:   "scan [PATH]",
	Short: "Register modules from the module root",
	Long:  "Register one module directory, or every module under the root when PATH is omitted or \"all\".",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, "/api/v1/modules/scan", args)
	},
}

var modulesUpdateCmd = &cobra.Command{
	Use:   "update [PATH]",
	Short: "Refresh installed modules from their manifests",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, "/api/v1/modules/update", args)
	},
}

var modulesInstallCmd = &cobra.Command{
	Use:   "install MODULE_ID",
	Short: "Install a module for the current account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := shared.IDFromString(args[0])
		if err != nil {
			return err
		}
		var out handler.InstallResponse
		if err := call(cmd, "/api/v1/modules/install", handler.ModuleIDRequest{ModuleID: id}, &out); err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), out, func(t *tableWriter) {
			t.Header("ID", "NAME", "ALREADY-INSTALLED", "IMPORTED-MENUS")
			t.AddRow(out.ModuleID.String(), out.ModuleName, boolToStr(out.AlreadyInstalled), fmt.Sprint(out.ImportedMenus))
		})
	},
}

var modulesUninstallCmd = &cobra.Command{
	Use:   "uninstall MODULE_ID",
	Short: "Uninstall a module from the current account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := shared.IDFromString(args[0])
		if err != nil {
			return err
		}
		var out handler.UninstallResponse
		input := app.UninstallInput{ModuleID: id, Purge: flagPurge}
		if err := call(cmd, "/api/v1/modules/uninstall", input, &out); err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), out, func(t *tableWriter) {
			t.Header("ID", "NAME", "PURGED", "ENTITLEMENTS", "MENUS", "GRANTS", "RELOCATIONS")
			t.AddRow(out.ModuleID.String(), out.ModuleName, boolToStr(out.Purged),
				fmt.Sprint(out.RemovedEntitlements), fmt.Sprint(out.RemovedMenus),
				fmt.Sprint(out.RemovedGrants), fmt.Sprint(out.RemovedRelocations))
		})
	},
}

var modulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List modules installed for the current account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var out []handler.InstalledModuleResponse
		if err := call(cmd, "/api/v1/modules/list", nil, &out); err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), out, func(t *tableWriter) {
			t.Header("ID", "NAME", "ALIAS")
			for _, m := range out {
				t.AddRow(m.ModuleID.String(), m.ModuleName, m.ModuleAlias)
			}
		})
	},
}

var modulesRegistryCmd = &cobra.Command{
	Use:   "registry",
	Short: "List every registered module",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var out []handler.ModuleResponse
		if err := call(cmd, "/api/v1/modules/registry", nil, &out); err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), out, func(t *tableWriter) {
			t.Header("ID", "NAME", "VERSION", "STATUS", "CORE", "INSTALLED", "PATH")
			for _, m := range out {
				t.AddRow(m.ModuleID.String(), m.ModuleName, m.Version, m.Status,
					boolToStr(m.IsCore), boolToStr(m.IsInstalled), m.Path)
			}
		})
	},
}

var modulesEnableCmd = &cobra.Command{
	Use:   "enable MODULE_ID",
	Short: "Enable a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetStatus(cmd, args[0], module.StatusEnabled)
	},
}

var modulesDisableCmd = &cobra.Command{
	Use:   "disable MODULE_ID",
	Short: "Disable a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetStatus(cmd, args[0], module.StatusDisabled)
	},
}

var modulesSortCmd = &cobra.Command{
	Use:   "sort MODULE_ID...",
	Short: "Reorder installed modules",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]shared.ID, 0, len(args))
		for _, a := range args {
			id, err := shared.IDFromString(a)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		var out handler.CountResponse
		if err := call(cmd, "/api/v1/modules/sort", app.ReorderInput{ModuleIDs: ids}, &out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reordered %d modules\n", out.Count)
		return nil
	},
}

func init() {
	modulesUninstallCmd.Flags().BoolVar(&flagPurge, "purge", false, "Also remove the module source directory")

	modulesCmd.AddCommand(modulesScanCmd)
	modulesCmd.AddCommand(modulesUpdateCmd)
	modulesCmd.AddCommand(modulesInstallCmd)
	modulesCmd.AddCommand(modulesUninstallCmd)
	modulesCmd.AddCommand(modulesListCmd)
	modulesCmd.AddCommand(modulesRegistryCmd)
	modulesCmd.AddCommand(modulesEnableCmd)
	modulesCmd.AddCommand(modulesDisableCmd)
	modulesCmd.AddCommand(modulesSortCmd)
}

// call posts input and decodes the envelope data into out.
func call(cmd *cobra.Command, path string, input, out any) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	client.logOut = cmd.ErrOrStderr()
	data, err := client.Post(cmd.Context(), path, input)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runBatch(cmd *cobra.Command, path string, args []string) error {
	input := app.ScanInput{Path: app.ScanAll}
	if len(args) == 1 {
		input.Path = args[0]
	}
	var out handler.BatchReportResponse
	if err := call(cmd, path, input, &out); err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), out, func(t *tableWriter) {
		t.Header("RESULT", "MODULE", "DETAIL")
		for _, s := range out.Success {
			t.AddRow("ok", s.ModuleName, s.Path)
		}
		for _, f := range out.Failed {
			t.AddRow("failed", f.Path, f.Message)
		}
		for _, w := range out.Warnings {
			t.AddRow("warning", w.ModuleName, w.Message)
		}
	})
}

func runSetStatus(cmd *cobra.Command, arg string, status module.Status) error {
	id, err := shared.IDFromString(arg)
	if err != nil {
		return err
	}
	var out handler.ModuleResponse
	input := app.SetStatusInput{ModuleID: id, Status: string(status)}
	if err := call(cmd, "/api/v1/modules/status", input, &out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Module %s is now %s\n", out.ModuleName, out.Status)
	return nil
}
