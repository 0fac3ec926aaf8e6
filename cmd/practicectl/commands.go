package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"practice-portal/internal/adminrpc"
	"practice-portal/internal/auth"
	"practice-portal/internal/config"
	"practice-portal/internal/logger"
	"practice-portal/internal/model"
	"practice-portal/internal/reminder"
	"practice-portal/internal/service"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			applied, err := e.store.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", n)
			}
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	var (
		days   int
		remote string
		token  string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the admin dashboard numbers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if remote != "" {
				stats, err := remoteStats(ctx, remote, token, days)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			}

			e, err := open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			stats, err := e.svc.AdminStats(ctx, days)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "range in days (1-365)")
	cmd.Flags().StringVar(&remote, "remote", "", "admin gRPC address, e.g. localhost:50051")
	cmd.Flags().StringVar(&token, "token", os.Getenv("PRACTICECTL_TOKEN"), "bearer token for --remote (minted from JWT_SECRET when empty)")
	return cmd
}

// remoteStats asks a running server instead of the database.
func remoteStats(ctx context.Context, addr, token string, days int) (*model.DashboardStats, error) {
	if token == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		token, err = auth.MakeToken(uuid.Nil.String(), model.RoleAdmin, cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	return adminrpc.NewClient(conn).DashboardStats(ctx, &adminrpc.StatsRequest{RangeDays: days})
}

func newRemindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Appointment reminders",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run one reminder and follow-up pass now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			w := reminder.New(e.store, e.cache, e.mail, reminder.Config{
				Interval: e.cfg.ReminderInterval,
				Lead:     e.cfg.ReminderLead,
				SiteURL:  e.cfg.SiteURL,
				Location: e.cfg.Location(),
			}, logger.Logger)
			res, err := w.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	})
	return cmd
}

func newSubscribersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribers",
		Short: "Newsletter subscribers",
	}
	var (
		status string
		out    string
	)
	export := &cobra.Command{
		Use:   "export",
		Short: "Write subscribers as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			list, err := e.svc.ListSubscribers(cmd.Context(), status)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := writeSubscribersCSV(w, list); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d subscribers exported\n", len(list))
			return nil
		},
	}
	export.Flags().StringVar(&status, "status", model.SubscriberActive, "pending, active, unsubscribed or empty for all")
	export.Flags().StringVarP(&out, "output", "o", "-", "file to write, - for stdout")
	cmd.AddCommand(export)
	return cmd
}

var subscriberHeader = []string{"email", "name", "status", "source", "created_at", "confirmed_at"}

func writeSubscribersCSV(w io.Writer, list []service.SubscriberView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(subscriberHeader); err != nil {
		return err
	}
	for _, s := range list {
		confirmed := ""
		if s.ConfirmedAt != nil {
			confirmed = s.ConfirmedAt.UTC().Format(time.RFC3339)
		}
		row := []string{s.Email, s.Name, s.Status, s.Source, s.CreatedAt.UTC().Format(time.RFC3339), confirmed}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func newAppointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "Appointment administration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Move an appointment to a new status as an admin",
		Long: "Valid statuses: scheduled, confirmed, completed, cancelled, no_show.\n" +
			"completed and no_show are only accepted once the appointment has started.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			a, err := e.svc.SetStatus(cmd.Context(), service.Actor{Role: model.RoleAdmin}, args[0], strings.ToLower(args[1]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a)
		},
	})
	return cmd
}

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-role <email> <client|provider|admin>",
		Short: "Change an account's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.svc.SetRole(cmd.Context(), args[0], strings.ToLower(args[1])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], strings.ToLower(args[1]))
			return nil
		},
	})
	return cmd
}

func newContentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Courses, workbooks and resources",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <catalog.json>",
		Short: "Upsert courses, lessons, workbooks and resources from a JSON catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			cat, err := readCatalog(f)
			if err != nil {
				return err
			}

			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			res, err := e.svc.ImportCatalog(cmd.Context(), cat)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	})
	return cmd
}

func readCatalog(r io.Reader) (service.Catalog, error) {
	var cat service.Catalog
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cat); err != nil {
		return cat, fmt.Errorf("read catalog: %w", err)
	}
	if len(cat.Courses)+len(cat.Workbooks)+len(cat.Resources) == 0 {
		return cat, errors.New("read catalog: nothing to import")
	}
	return cat, nil
}
