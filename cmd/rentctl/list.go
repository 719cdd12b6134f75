package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/liststore"
)

type viewFlags struct {
	filters []string
	sort    string
	output  string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil, "keep items whose field is one of the values, as field=a,b (repeatable)")
	cmd.Flags().StringVar(&f.sort, "sort", "", "order by field, as field:asc or field:desc")
	cmd.Flags().StringVarP(&f.output, "output", "o", formatTable, "output format: table, json or yaml")
}

// apply installs the filters and the sort order on s.
func (f *viewFlags) apply(s *liststore.Store) error {
	if err := validFormat(f.output); err != nil {
		return err
	}
	for _, raw := range f.filters {
		field, values, ok := strings.Cut(raw, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return &commandError{message: fmt.Sprintf("invalid filter %q, expected field=value[,value]", raw)}
		}
		s.SetFilter(field, liststore.FieldIn(field, strings.Split(values, ",")...))
	}
	if f.sort == "" {
		return nil
	}
	field, dir, _ := strings.Cut(f.sort, ":")
	field = strings.TrimSpace(field)
	var descending bool
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
	case "desc":
		descending = true
	default:
		return &commandError{message: fmt.Sprintf("invalid sort direction %q, expected asc or desc", dir)}
	}
	if field == "" {
		return &commandError{message: "sort field is empty"}
	}
	s.SetSort(liststore.ByField(field, descending))
	return nil
}

func newListCmd(appFn func() *app) *cobra.Command {
	var flags viewFlags
	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "Load a resource list and print it",
		Example: `  rentctl list vehicles --filter car_type=suv,sedan --sort price:desc
  rentctl list bookings -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			svc, err := a.service(args[0])
			if err != nil {
				return err
			}
			s := a.store(svc)
			defer s.Close()

			if err := flags.apply(s); err != nil {
				return err
			}
			if res := s.Load(cmd.Context(), svc.List); res.Outcome == liststore.OutcomeFailed {
				return &commandError{message: res.Message, err: res.Err}
			}
			snap := s.Snapshot()
			skipped, err := render(cmd.OutOrStdout(), flags.output, svc.Definition().Schema.Names(), snap)
			if err != nil {
				return err
			}
			if skipped > 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), detailStyle.Render(skippedNote(skipped, snap.Name)))
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
