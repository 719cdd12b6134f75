package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/liststore"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/logger"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/resource"
)

// mutation is one optimistic change issued from the command line.
type mutation struct {
	verb   string
	local  liststore.LocalUpdate
	remote func(svc *resource.Service, id string) liststore.RemoteCall
}

// runMutation loads the list, applies m to id and reports the outcome.
func runMutation(ctx context.Context, cmd *cobra.Command, a *app, name, id string, refetch bool, m mutation) error {
	svc, err := a.service(name)
	if err != nil {
		return err
	}
	ctx, log := logger.WithRequestID(ctx, logger.FromContext(ctx), uuid.NewString())
	s := a.store(svc)
	defer s.Close()

	if res := s.Load(ctx, svc.List); res.Outcome == liststore.OutcomeFailed {
		return &commandError{message: res.Message, err: res.Err}
	}

	var opts []liststore.MutateOption
	if refetch {
		opts = append(opts, liststore.WithRefetch(svc.List))
	}
	res := s.Mutate(ctx, id, m.local, m.remote(svc, id), opts...)
	log.Debug("mutation finished", zap.String("id", id), zap.String("outcome", string(res.Outcome)))
	if res.Outcome != liststore.MutationCommitted {
		return &commandError{message: res.Message, err: res.Err}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s %s\n", m.verb, svc.Definition().Name, id)
	if res.Refetch != nil {
		if res.Refetch.Outcome == liststore.OutcomeFailed {
			fmt.Fprintln(out, summaryStyle.Render("reload failed: "+res.Refetch.Message))
		} else {
			fmt.Fprintln(out, summaryStyle.Render(fmt.Sprintf("%d %s after reload", res.Refetch.Count, svc.Definition().Name)))
		}
	}
	return nil
}

func newDeleteCmd(appFn func() *app) *cobra.Command {
	var refetch bool
	cmd := &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd.Context(), cmd, appFn(), args[0], args[1], refetch, mutation{
				verb:  "deleted",
				local: liststore.RemoveByID(),
				remote: func(svc *resource.Service, id string) liststore.RemoteCall {
					return svc.DeleteCall(id)
				},
			})
		},
	}
	cmd.Flags().BoolVar(&refetch, "refetch", false, "reload the list after the server confirms")
	return cmd
}

func newSetStatusCmd(appFn func() *app) *cobra.Command {
	var refetch bool
	cmd := &cobra.Command{
		Use:   "set-status <resource> <id> <status>",
		Short: "Change the status of a record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := strings.ToLower(strings.TrimSpace(args[2]))
			if status == "" {
				return &commandError{message: "status is empty"}
			}
			return runMutation(cmd.Context(), cmd, appFn(), args[0], args[1], refetch, mutation{
				verb:  "updated",
				local: liststore.SetField("status", status),
				remote: func(svc *resource.Service, id string) liststore.RemoteCall {
					return svc.StatusCall(id, status)
				},
			})
		},
	}
	cmd.Flags().BoolVar(&refetch, "refetch", false, "reload the list after the server confirms")
	return cmd
}
