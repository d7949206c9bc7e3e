package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openctemio/console/internal/app"
	"github.com/openctemio/console/internal/infra/http/handler"
	"github.com/openctemio/console/pkg/domain/shared"
)

var (
	flagAccountType string
	flagMenus       string
	flagMoveMap     string
	flagTarget      string
	flagModule      string
)

var rolesCmd = &cobra.Command{
	Use:     "roles",
	Aliases: []string{"role"},
	Short:   "Manage role menu trees and grants",
}

var rolesMenusCmd = &cobra.Command{
	Use:   "menus ROLE_ID",
	Short: "Show a role's menu tree grouped by module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roleID, err := shared.IDFromString(args[0])
		if err != nil {
			return err
		}
		var out app.RoleMenus
		input := app.GetMenusInput{RoleID: roleID, AccountType: flagAccountType}
		if err := call(cmd, "/api/v1/roles/menus", input, &out); err != nil {
			return err
		}

		checked := shared.NewIDSet(out.CheckedMenuIDs...)
		return render(cmd.OutOrStdout(), out, func(t *tableWriter) {
			t.Header("MODULE", "MENU", "KEY", "GRANTED", "RELOCATED")
			for _, bucket := range out.ModulesWithMenus {
				for _, m := range bucket.Menus {
					addMenuRows(t, bucket.ModuleName, m, 0, checked)
				}
			}
		})
	},
}

var rolesUpdateCmd = &cobra.Command{
	Use:   "update ROLE_ID",
	Short: "Replace a role's granted menus",
	Long: `Replace a role's granted menus. Required menus stay granted even when omitted.

Pass --move-map to replace the role's relocations in the same call, e.g.
--move-map 10=2,11=2 moves menus 10 and 11 under module 2. An empty
--move-map="" clears every relocation; omitting the flag leaves them alone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roleID, err := shared.IDFromString(args[0])
		if err != nil {
			return err
		}
		menuIDs, err := parseIDs(flagMenus)
		if err != nil {
			return err
		}
		input := app.UpdateMenusInput{RoleID: roleID, MenuIDs: menuIDs}
		if menuIDs == nil {
			input.MenuIDs = []shared.ID{}
		}
		if cmd.Flags().Changed("move-map") {
			moveMap, err := parseMoveMap(flagMoveMap)
			if err != nil {
				return err
			}
			input.MenuMoveMap = &moveMap
		}

		var out app.UpdateMenusOutput
		if err := call(cmd, "/api/v1/roles/menus/update", input, &out); err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), out, func(t *tableWriter) {
			t.Header("ADDED", "REMOVED", "FORCED-KEPT")
			t.AddRow(idsToStr(out.Added), idsToStr(out.Removed), idsToStr(out.ForcedKept))
		})
	},
}

var rolesMoveCmd = &cobra.Command{
	Use:   "move ROLE_ID",
	Short: "Relocate menus under another module for a role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roleID, err := shared.IDFromString(args[0])
		if err != nil {
			return err
		}
		menuIDs, err := parseIDs(flagMenus)
		if err != nil {
			return err
		}
		target, err := shared.IDFromString(flagTarget)
		if err != nil {
			return fmt.Errorf("--target: %w", err)
		}
		input := app.MoveMenusInput{RoleID: roleID, MenuIDs: menuIDs, TargetModuleID: target}
		return runCount(cmd, "/api/v1/roles/menus/move", input, "Moved %d menus\n")
	},
}

var rolesMoveBackCmd = &cobra.Command{
	Use:   "move-back ROLE_ID",
	Short: "Return relocated menus to their owning module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roleID, err := shared.IDFromString(args[0])
		if err != nil {
			return err
		}
		menuIDs, err := parseIDs(flagMenus)
		if err != nil {
			return err
		}
		input := app.MoveBackInput{RoleID: roleID, MenuIDs: menuIDs}
		return runCount(cmd, "/api/v1/roles/menus/move-back", input, "Moved back %d menus\n")
	},
}

var rolesMoveAllBackCmd = &cobra.Command{
	Use:   "move-all-back ROLE_ID",
	Short: "Clear every relocation targeting a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roleID, err := shared.IDFromString(args[0])
		if err != nil {
			return err
		}
		moduleID, err := shared.IDFromString(flagModule)
		if err != nil {
			return fmt.Errorf("--module: %w", err)
		}
		input := app.MoveAllBackInput{RoleID: roleID, ModuleID: moduleID}
		return runCount(cmd, "/api/v1/roles/menus/move-all-back", input, "Moved back %d menus\n")
	},
}

func init() {
	rolesMenusCmd.Flags().StringVar(&flagAccountType, "account-type", "", "Account type of the tree (defaults to the caller's)")

	rolesUpdateCmd.Flags().StringVar(&flagMenus, "menus", "", "Comma separated menu IDs to grant")
	rolesUpdateCmd.Flags().StringVar(&flagMoveMap, "move-map", "", "Relocations as MENU=MODULE pairs")

	rolesMoveCmd.Flags().StringVar(&flagMenus, "menus", "", "Comma separated menu IDs")
	rolesMoveCmd.Flags().StringVar(&flagTarget, "target", "", "Target module ID")
	_ = rolesMoveCmd.MarkFlagRequired("menus")
	_ = rolesMoveCmd.MarkFlagRequired("target")

	rolesMoveBackCmd.Flags().StringVar(&flagMenus, "menus", "", "Comma separated menu IDs")
	_ = rolesMoveBackCmd.MarkFlagRequired("menus")

	rolesMoveAllBackCmd.Flags().StringVar(&flagModule, "module", "", "Module ID whose relocations are cleared")
	_ = rolesMoveAllBackCmd.MarkFlagRequired("module")

	rolesCmd.AddCommand(rolesMenusCmd)
	rolesCmd.AddCommand(rolesUpdateCmd)
	rolesCmd.AddCommand(rolesMoveCmd)
	rolesCmd.AddCommand(rolesMoveBackCmd)
	rolesCmd.AddCommand(rolesMoveAllBackCmd)
}

func runCount(cmd *cobra.Command, path string, input any, format string) error {
	var out handler.CountResponse
	if err := call(cmd, path, input, &out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), format, out.Count)
	return nil
}

func addMenuRows(t *tableWriter, moduleName string, m *app.MenuView, depth int, checked shared.IDSet) {
	name := strings.Repeat("  ", depth) + m.MenuName
	t.AddRow(moduleName, name, m.MenuKey, boolToStr(checked.Has(m.MenuID)), boolToStr(m.Relocated))

	for _, c := range m.Children {
		addMenuRows(t, moduleName, c, depth+1, checked)
	}
}
