//go:build !solution

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	ei "github.com/rogov-ks/employee-importance/employeeimportance"
)

type policyFlags struct {
	countOnce bool
	missing   string
}

func (p *policyFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&p.countOnce, "count-once", false, "считать общего подчинённого один раз, а не по числу путей")
	fs.StringVar(&p.missing, "missing", "error", "неизвестный подчинённый: error или zero")
}

func (p *policyFlags) options() ([]ei.Option, error) {
	return resolverOptions(p.countOnce, p.missing)
}

func resolverOptions(countOnce bool, missing string) ([]ei.Option, error) {
	policy, err := ei.ParseMissingPolicy(missing)
	if err != nil {
		return nil, err
	}
	opts := []ei.Option{ei.WithMissing(policy)}
	if countOnce {
		opts = append(opts, ei.CountOnce())
	}
	return opts, nil
}

func newCalcCmd(logger *slog.Logger) *cobra.Command {
	var (
		file   string
		id     int
		all    bool
		policy policyFlags
	)

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Посчитать суммарную важность сотрудника по файлу со списком",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && !cmd.Flags().Changed("id") {
				return errors.New("необходимо указать --id или --all")
			}
			opts, err := policy.options()
			if err != nil {
				return err
			}

			employees, err := ei.LoadFile(file)
			if err != nil {
				return err
			}
			logger.Info("roster loaded", "path", file, "employees", len(employees))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			r := ei.NewResolver(employees, opts...)
			out := cmd.OutOrStdout()
			if !all {
				total, err := r.ImportanceContext(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d\t%d\n", id, total)
				return nil
			}

			totals, err := r.TotalsContext(ctx)
			if err != nil {
				return err
			}
			for _, id := range ei.NewDirectory(employees).IDs() {
				fmt.Fprintf(out, "%d\t%d\n", id, totals[id])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "путь к .yaml, .json или .xlsx файлу со списком сотрудников")
	cmd.Flags().IntVar(&id, "id", 0, "id сотрудника")
	cmd.Flags().BoolVar(&all, "all", false, "посчитать важность для всех сотрудников")
	policy.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newServeCmd(logger *slog.Logger) *cobra.Command {
	var (
		addr           string
		computeTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP сервер",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), addr, computeTimeout, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "адрес, на котором будет развёрнут сервер")
	cmd.Flags().DurationVar(&computeTimeout, "compute-timeout", defaultComputeTimeout, "максимальное время подсчёта одного запроса")
	return cmd
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "importance",
		Short:         "Суммарная важность сотрудника и всех его подчинённых",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCalcCmd(logger), newServeCmd(logger))
	return root
}

func runServer(ctx context.Context, addr string, computeTimeout time.Duration, logger *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(logger, prometheus.NewRegistry(), computeTimeout),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	// Контексты запросов отменяются вместе с сервером, иначе Shutdown ждёт долгие подсчёты
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	g.Go(func() error {
		logger.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}

func main() {
	// Логи в stderr, чтобы не смешивались с выводом calc
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
