// File: cmd/runs.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/strengthsim/internal/config"
	"github.com/xkilldash9x/strengthsim/internal/observability"
	"github.com/xkilldash9x/strengthsim/internal/store"
)

// runLister is the part of the ledger the runs command reads.
type runLister interface {
	ListRuns(ctx context.Context, task string) ([]store.Run, error)
}

// runStoreProvider opens the ledger for reading.
type runStoreProvider interface {
	Create(ctx context.Context, cfg config.Interface) (runLister, func(), error)
}

type defaultRunStoreProvider struct{}

// NewRunStoreProvider returns the provider that reads the PostgreSQL ledger.
func NewRunStoreProvider() runStoreProvider {
	return &defaultRunStoreProvider{}
}

func (p *defaultRunStoreProvider) Create(ctx context.Context, cfg config.Interface) (runLister, func(), error) {
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (STRENGTHSIM_DATABASE_URL)")
	}
	s, cleanup, err := store.Connect(ctx, cfg.Database().URL, observability.GetLogger())
	if err != nil {
		return nil, nil, err
	}
	return s, cleanup, nil
}

func newRunsCmd(provider runStoreProvider) *cobra.Command {
	var taskName string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded simulation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runRuns(ctx, cfg, taskName, provider, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&taskName, "task", "t", "", "only list runs of this task")
	return cmd
}

func runRuns(ctx context.Context, cfg config.Interface, taskName string, provider runStoreProvider, out io.Writer) error {
	lister, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open run ledger: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	runs, err := lister.ListRuns(ctx, taskName)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tTASK\tNODES\tSTATUS\tOBJECTIVE\tITERATIONS\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%g\t%d\t%s\n",
			r.StartedAt.Format(time.RFC3339),
			r.Task,
			2*r.MeshIntervals+1,
			r.Status,
			r.Objective,
			r.Iterations,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	}
	return w.Flush()
}
