package cmd

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/swim4love/swim4love/internal/config"
	"github.com/swim4love/swim4love/internal/database"
	"github.com/swim4love/swim4love/internal/engine"
	"github.com/swim4love/swim4love/internal/hub"
)

// cliActor is recorded as the author of changes made from the command line.
var cliActor = engine.Actor{Username: "cli", IsAdmin: true}

var volunteerAddFlags struct {
	Admin    bool
	Password string
}

var volunteerCmd = &cobra.Command{
	Use:   "volunteer",
	Short: "Manage volunteer accounts",
}

var volunteerAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a volunteer account",
	Long:  `Create a volunteer account. The password is read from stdin unless --password is set.`,
	Args:  cobra.ExactArgs(1),
	RunE:  volunteerAdd,
}

var volunteerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List volunteer accounts",
	Args:  cobra.NoArgs,
	RunE:  volunteerList,
}

var volunteerDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a volunteer account",
	Args:  cobra.ExactArgs(1),
	RunE:  volunteerDelete,
}

func init() {
	volunteerAddCmd.Flags().BoolVar(&volunteerAddFlags.Admin, "admin", false, "Grant admin rights")
	volunteerAddCmd.Flags().StringVar(&volunteerAddFlags.Password, "password", "", "Password of the account")

	volunteerCmd.AddCommand(volunteerAddCmd, volunteerListCmd, volunteerDeleteCmd)
	rootCmd.AddCommand(volunteerCmd)
}

// openEngine loads the config and opens the database for one-shot commands.
func openEngine() (*engine.Engine, func(), error) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	h := hub.New(cfg.Live.GetQueueSize())
	closeFn := func() {
		h.Close()
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}
	return engine.New(cfg, db, h), closeFn, nil
}

func volunteerAdd(cmd *cobra.Command, args []string) error {
	password := volunteerAddFlags.Password
	if password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	eng, closeFn, err := openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	volunteer, err := eng.RegisterVolunteer(cmd.Context(), cliActor, args[0], password, volunteerAddFlags.Admin)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created volunteer %q with id %d\n", volunteer.Username, volunteer.ID)
	return nil
}

func volunteerList(cmd *cobra.Command, _ []string) error {
	eng, closeFn, err := openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	volunteers, err := eng.Volunteers(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, v := range volunteers {
		role := "volunteer"
		if v.IsAdmin {
			role = "admin"
		}
		if v.External {
			role += " (external)"
		}
		fmt.Fprintf(out, "%d\t%s\t%s\n", v.ID, v.Username, role)
	}
	return nil
}

func volunteerDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 0)
	if err != nil {
		return fmt.Errorf("invalid volunteer id %q", args[0])
	}

	eng, closeFn, err := openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := eng.DeleteVolunteer(cmd.Context(), cliActor, uint(id)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted volunteer %d\n", id)
	return nil
}
