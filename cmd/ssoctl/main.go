// ssoctl es la herramienta de administración: opera directo sobre el
// storage con la misma config que el servidor. Sirve para el bootstrap
// (primer usuario, primer admin) y para operaciones que no pasan por la API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/ssohub/internal/config"
	"github.com/dropDatabas3/ssohub/internal/observability/logger"
	"github.com/dropDatabas3/ssohub/internal/security/password"
	"github.com/dropDatabas3/ssohub/internal/store/core"
	"github.com/dropDatabas3/ssohub/internal/store/memory"
	"github.com/dropDatabas3/ssohub/internal/store/pg"
)

func main() {
	if err := newRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ssoctl:", err)
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "ssoctl",
		Short:         "Administración de ssohub (directo sobre el storage)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "ruta del archivo de configuración")

	open := func(ctx context.Context) (core.Store, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(logger.Config{Env: cfg.App.Env, Level: "warn", ServiceName: "ssoctl"})
		if cfg.Storage.Driver == "memory" {
			return memory.New(), nil
		}
		lifetime, _ := time.ParseDuration(cfg.Storage.Postgres.ConnMaxLifetime)
		return pg.New(ctx, cfg.Storage.DSN, pg.Tuning{
			MaxConns:        2,
			ConnMaxLifetime: lifetime,
		})
	}

	root.AddCommand(newUserCmd(open), newServiceCmd(open))
	return root
}

type opener func(ctx context.Context) (core.Store, error)

func withStore(open opener, fn func(ctx context.Context, store core.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		store, err := open(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(ctx, store)
	}
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id inválido: %q", s)
	}
	return id, nil
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

// ------------------------------------------------------------------ user

func newUserCmd(open opener) *cobra.Command {
	userCmd := &cobra.Command{Use: "user", Short: "Gestión de usuarios"}

	var username, email, pass string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Crear un usuario",
		RunE: withStore(open, func(ctx context.Context, store core.Store) error {
			if username == "" || email == "" || pass == "" {
				return fmt.Errorf("faltan --username, --email o --password")
			}
			hash, err := password.Hash(pass)
			if err != nil {
				return err
			}
			id, err := store.CreateUser(ctx, username, email, hash)
			if err != nil {
				return err
			}
			fmt.Printf("usuario creado: id=%d\n", id)
			return nil
		}),
	}
	createCmd.Flags().StringVar(&username, "username", "", "nombre de usuario")
	createCmd.Flags().StringVar(&email, "email", "", "email")
	createCmd.Flags().StringVar(&pass, "password", "", "password inicial")

	setPermCmd := &cobra.Command{
		Use:   "set-permission <id> <BANNED|NORMAL|ADMIN|ROOT>",
		Short: "Cambiar el nivel administrativo de un usuario",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(open, func(ctx context.Context, store core.Store) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				perm := core.Permission(args[1])
				switch perm {
				case core.PermissionBanned, core.PermissionNormal, core.PermissionAdmin, core.PermissionRoot:
				default:
					return fmt.Errorf("permiso inválido: %q", args[1])
				}
				ok, err := store.SetPermission(ctx, core.UserID(id), perm)
				if err != nil {
					return err
				}
				if !ok {
					return core.ErrNotFound
				}
				fmt.Println("ok")
				return nil
			})(cmd, args)
		},
	}

	passwdCmd := &cobra.Command{
		Use:   "passwd <id> <new-password>",
		Short: "Resetear el password (invalida todos los tokens USER previos)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(open, func(ctx context.Context, store core.Store) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				hash, err := password.Hash(args[1])
				if err != nil {
					return err
				}
				ok, err := store.SetPassword(ctx, core.UserID(id), hash)
				if err != nil {
					return err
				}
				if !ok {
					return core.ErrNotFound
				}
				fmt.Println("ok")
				return nil
			})(cmd, args)
		},
	}

	userCmd.AddCommand(createCmd, setPermCmd, passwdCmd)
	return userCmd
}

// ----------------------------------------------------------------- service

func newServiceCmd(open opener) *cobra.Command {
	serviceCmd := &cobra.Command{Use: "service", Short: "Gestión de servicios"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Listar todos los servicios (vista admin)",
		RunE: withStore(open, func(ctx context.Context, store core.Store) error {
			admin := &core.UserInfo{Permission: core.PermissionRoot}
			page, err := store.ListServices(ctx, admin, nil, nil, 0, 100)
			if err != nil {
				return err
			}
			printJSON(page.List)
			return nil
		}),
	}

	approveCmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Aprobar un servicio pendiente (pasa a NORMAL y aplica lo pendiente)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(open, func(ctx context.Context, store core.Store) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				svc, err := store.GetService(ctx, core.ServiceID(id))
				if err != nil {
					return err
				}
				applyPendingEdits(svc)
				svc.Status = core.ServiceNormal
				if err := store.UpdateService(ctx, svc); err != nil {
					return err
				}
				printJSON(svc)
				return nil
			})(cmd, args)
		},
	}

	rotateCmd := &cobra.Command{
		Use:   "rotate-secret <id>",
		Short: "Rotar el secreto (invalida todos los tokens del servicio)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(open, func(ctx context.Context, store core.Store) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				ok, err := store.RevokeSecret(ctx, core.ServiceID(id))
				if err != nil {
					return err
				}
				if !ok {
					return core.ErrNotFound
				}
				fmt.Println("ok")
				return nil
			})(cmd, args)
		},
	}

	serviceCmd.AddCommand(listCmd, approveCmd, rotateCmd)
	return serviceCmd
}

// applyPendingEdits promueve los campos pending a definitivos y los limpia.
func applyPendingEdits(svc *core.ServiceInfo) {
	if svc.PendingName != nil {
		svc.Name = *svc.PendingName
	}
	if svc.PendingDescription != nil {
		svc.Description = *svc.PendingDescription
	}
	if svc.PendingUnauthorized != nil {
		svc.Unauthorized = *svc.PendingUnauthorized
	}
	if svc.PendingAuthorized != nil {
		svc.Authorized = *svc.PendingAuthorized
	}
	if svc.PendingCancelAuthorization != nil {
		svc.CancelAuthorization = *svc.PendingCancelAuthorization
	}
	svc.PendingName = nil
	svc.PendingDescription = nil
	svc.PendingUnauthorized = nil
	svc.PendingAuthorized = nil
	svc.PendingCancelAuthorization = nil
}
