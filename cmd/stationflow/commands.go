package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/stationflow/internal/backup"
	"github.com/rendis/stationflow/internal/console"
	"github.com/rendis/stationflow/internal/diagram"
	"github.com/rendis/stationflow/internal/export"
	"github.com/rendis/stationflow/internal/journal"
	"github.com/rendis/stationflow/internal/query"
	"github.com/rendis/stationflow/internal/scheduler"
	"github.com/rendis/stationflow/internal/station"
	"github.com/rendis/stationflow/pkg/mcp"
	"github.com/rendis/stationflow/pkg/schema"
)

func runMenu(ctx context.Context, a *app) error {
	m := console.NewMenu(a.svc, a.prompter(), a.out, a.logger)
	m.OutputDir = a.cfg.OutputDir
	return m.Run(ctx)
}

func newMenuCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive menu (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd.Context(), a)
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var (
		in     station.NewStation
		dest   string
		states []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a station; prompts when --name is not given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if in.Name == "" {
				prompted, err := a.prompter().NewStation(a.svc.ProcessTypes())
				if err != nil {
					return err
				}
				in = prompted
			} else {
				in.Destination = schema.Destination(dest)
			}
			overrides, err := parseAssignments(states)
			if err != nil {
				return err
			}
			if overrides.Len() > 0 {
				in.States = overrides
			}

			st, snap, err := a.svc.Create(ctx, in)
			if err != nil {
				return err
			}
			p := console.NewPrinter(a.out)
			p.Success("Station '%s' créée avec succès !", st.Name)
			p.Info("ID de la station : %s", st.ID)
			printStates(a, snap.States)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "station name")
	f.StringVar(&in.Location, "location", "", "location")
	f.Float64Var(&in.NominalFlow, "flow", 0, "nominal flow (m³/j)")
	f.StringVar(&in.ProcessType, "type", "", "process type identifier")
	f.StringVar(&dest, "destination", string(schema.DestinationNaturalEnv), "treated water destination")
	f.StringArrayVar(&states, "state", nil, "initial equipment state override, name=state (repeatable)")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		where  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stations, optionally filtered by an expression",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stations, err := a.svc.List(ctx)
			if err != nil {
				return err
			}
			rows := make([]query.Row, 0, len(stations))
			for _, st := range stations {
				r := query.Row{Station: st}
				if snap, ok, err := a.svc.Latest(ctx, st.ID); err != nil {
					return err
				} else if ok {
					r.Latest = &snap
				}
				rows = append(rows, r)
			}
			rows, err = query.NewFilter().Apply(where, rows)
			if err != nil {
				return err
			}

			selected := make([]schema.Station, len(rows))
			for i, r := range rows {
				selected[i] = r.Station
			}
			if asJSON {
				return writeJSON(a, selected)
			}
			if len(selected) == 0 {
				console.NewPrinter(a.out).Warn("Aucune station.")
				return nil
			}
			console.NewPrinter(a.out).Text(console.StationTable(selected))
			return nil
		},
	}
	cmd.Flags().StringVar(&where, "where", "", `filter expression, e.g. 'debit_nominal > 1000 && hors_service > 0'`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var format, out, at string
	cmd := &cobra.Command{
		Use:   "show STATION",
		Short: "Render the flow diagram of a station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.svc.Find(ctx, args[0])
			if err != nil {
				return err
			}
			fm, err := diagram.ParseFormat(format)
			if err != nil {
				return schema.NewError(schema.ErrCodeValidation, err.Error())
			}
			if format == "" && out != "" {
				if fm, err = diagram.ParseFormat(filepath.Ext(out)); err != nil {
					return schema.NewError(schema.ErrCodeValidation, err.Error())
				}
			}

			l, err := a.svc.Diagram(ctx, station.DiagramRequest{StationID: st.ID, At: at})
			if err != nil {
				return err
			}
			data, err := diagram.Render(ctx, l, fm)
			if err != nil {
				return err
			}

			textual := fm == diagram.FormatASCII || fm == diagram.FormatMermaid
			if out == "" && textual {
				_, err := a.out.Write(data)
				return err
			}
			if out == "" {
				out = filepath.Join(a.cfg.OutputDir, diagram.FileName(st.Name, fm.Ext(), time.Now()))
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return schema.NewErrorf(schema.ErrCodeStore, "write %s", out).WithCause(err)
			}
			console.NewPrinter(a.out).Success("Schéma enregistré : %s", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "ascii, mermaid, png, svg or pdf (default from --out extension, else ascii)")
	cmd.Flags().StringVar(&out, "out", "", "output file")
	cmd.Flags().StringVar(&at, "at", "", "snapshot date_maj (or date) to show instead of the latest")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update STATION [name=state ...]",
		Short: "Record new equipment states; prompts when no assignment is given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.svc.Find(ctx, args[0])
			if err != nil {
				return err
			}
			changes, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			if changes.Len() == 0 {
				current, _, err := a.svc.CurrentStates(ctx, st)
				if err != nil {
					return err
				}
				if changes, err = a.prompter().EditStates(current); err != nil {
					return err
				}
				if changes.Len() == 0 {
					console.NewPrinter(a.out).Warn("Aucun changement, rien n'a été enregistré.")
					return nil
				}
			}
			snap, err := a.svc.UpdateStates(ctx, st.ID, changes)
			if err != nil {
				return err
			}
			console.NewPrinter(a.out).Success("%d ouvrage(s) mis à jour le %s.", changes.Len(), snap.UpdatedAt)
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var jq string
	cmd := &cobra.Command{
		Use:   "history STATION",
		Short: "Show the state history of a station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.svc.Find(ctx, args[0])
			if err != nil {
				return err
			}
			history, err := a.svc.History(ctx, st.ID)
			if err != nil {
				return err
			}
			if jq != "" {
				results, err := query.NewProjector().Project(ctx, jq, history)
				if err != nil {
					return err
				}
				for _, r := range results {
					if err := writeJSON(a, r); err != nil {
						return err
					}
				}
				return nil
			}

			p := console.NewPrinter(a.out)
			if len(history) == 0 {
				p.Warn("Aucun historique pour '%s'.", st.Name)
				return nil
			}
			p.Title("HISTORIQUE : " + st.Name)
			for _, snap := range history {
				p.Text(console.Styles.Header.Render(snap.UpdatedAt))
				printStates(a, snap.States)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&jq, "jq", "", "jq program applied to the history array")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete STATION",
		Short: "Delete a station and its whole history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.svc.Find(ctx, args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := a.prompter().Confirm("Supprimer définitivement la station '" + st.Name + "' et tout son historique ?")
				if err != nil {
					return err
				}
				if !ok {
					console.NewPrinter(a.out).Warn("Opération annulée.")
					return nil
				}
			}
			if _, err := a.svc.Delete(ctx, st.ID); err != nil {
				return err
			}
			console.NewPrinter(a.out).Success("Station '%s' supprimée.", st.Name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Back up the data files and rewrite them in the current format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := a.svc.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			p := console.NewPrinter(a.out)
			if rep.Backup != nil {
				p.Info("Sauvegarde : %s (%d fichier(s))", filepath.Join(rep.Backup.Dir, rep.Backup.File), len(rep.Backup.Entries))
			}
			p.Info("Historique : format %s, %d station(s), %d état(s), %d réparé(s)",
				rep.States.Shape, rep.States.Stations, rep.States.Snapshots, rep.States.Repaired)
			if rep.StationsStripped > 0 {
				p.Info("%d station(s) nettoyée(s), %d état(s) initial(aux) créé(s)", rep.StationsStripped, rep.SnapshotsCreated)
			}
			p.Success("Migration terminée avec succès !")
			return nil
		},
	}
}

func newBackupCmd(a *app) *cobra.Command {
	var verify string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy the data files into the backup directory (and S3 when configured)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := console.NewPrinter(a.out)
			if verify != "" {
				bad, err := backup.Verify(verify)
				if err != nil {
					return err
				}
				if len(bad) > 0 {
					return schema.NewErrorf(schema.ErrCodeStore, "checksum mismatch: %s", strings.Join(bad, ", "))
				}
				p.Success("Sauvegarde intègre : %s", verify)
				return nil
			}

			man, err := a.svc.Backup(cmd.Context())
			if man != nil {
				for _, e := range man.Entries {
					p.Info("%s  %s", e.SHA256[:12], filepath.Join(man.Dir, e.Name))
				}
				for _, u := range man.Uploaded {
					p.Info("Envoyé vers %s", u)
				}
			}
			if err != nil {
				return err
			}
			p.Success("Sauvegarde créée : %s", filepath.Join(man.Dir, man.File))
			return nil
		},
	}
	cmd.Flags().StringVar(&a.flags.s3Bucket, "s3-bucket", "", "also upload to this S3 bucket")
	cmd.Flags().StringVar(&verify, "verify", "", "check a MANIFEST_*.sha256 file instead of creating a backup")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var backupCron, metricsCron string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run scheduled backups and metrics dumps until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if backupCron == "" {
				backupCron = a.cfg.BackupCron
			}
			if metricsCron == "" {
				metricsCron = a.cfg.MetricsCron
			}

			sched := scheduler.NewScheduler(0, a.logger)
			if backupCron != "" {
				_, err := sched.Add("backup", backupCron, func(ctx context.Context) error {
					_, err := a.svc.Backup(ctx)
					return err
				})
				if err != nil {
					return schema.NewError(schema.ErrCodeValidation, err.Error())
				}
			}
			if metricsCron != "" && a.cfg.MetricsFile != "" {
				_, err := sched.Add("metrics", metricsCron, func(context.Context) error {
					return a.metrics.WriteTextfile(a.cfg.MetricsFile)
				})
				if err != nil {
					return schema.NewError(schema.ErrCodeValidation, err.Error())
				}
			}
			jobs := sched.Jobs()
			if len(jobs) == 0 {
				return schema.NewError(schema.ErrCodeValidation, "nothing to schedule: set --backup or --metrics with metrics_file")
			}

			p := console.NewPrinter(a.out)
			for _, j := range jobs {
				p.Info("%s : %s (prochaine exécution %s)", j.Name, j.Spec, j.NextRunAt.Format(schema.TimestampLayout))
			}
			if err := sched.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return sched.Stop()
		},
	}
	cmd.Flags().StringVar(&backupCron, "backup", "", "cron expression for backups (default from backup_cron)")
	cmd.Flags().StringVar(&metricsCron, "metrics", "", "cron expression for metrics textfile dumps")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var xlsx string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stations and history to a spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stations, err := a.svc.List(ctx)
			if err != nil {
				return err
			}
			histories := make(map[string][]schema.Snapshot, len(stations))
			for _, st := range stations {
				h, err := a.svc.History(ctx, st.ID)
				if err != nil {
					return err
				}
				histories[st.ID] = h
			}
			data, err := export.BuildXLSX(stations, func(id string) []schema.Snapshot { return histories[id] })
			if err != nil {
				return err
			}
			if err := os.WriteFile(xlsx, data, 0o644); err != nil {
				return schema.NewErrorf(schema.ErrCodeExport, "write %s", xlsx).WithCause(err)
			}
			console.NewPrinter(a.out).Success("Export enregistré : %s (%d station(s))", xlsx, len(stations))
			return nil
		},
	}
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "output .xlsx file")
	_ = cmd.MarkFlagRequired("xlsx")
	return cmd
}

func newJournalCmd(a *app) *cobra.Command {
	var (
		op    string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "journal [STATION]",
		Short: "Show journaled operations, for one station or the most recent overall",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if a.journal == nil {
				return schema.NewError(schema.ErrCodeStore, "journal is disabled")
			}
			var entries []*journal.Entry
			if len(args) == 1 {
				st, err := a.svc.Find(ctx, args[0])
				if err != nil {
					return err
				}
				list, err := a.journal.List(ctx, st.ID, 0)
				if err != nil {
					return err
				}
				entries = list
			} else {
				list, err := a.journal.Recent(ctx, journal.Filter{Operation: op, Limit: limit})
				if err != nil {
					return err
				}
				entries = list
			}
			p := console.NewPrinter(a.out)
			if len(entries) == 0 {
				p.Warn("Journal vide.")
				return nil
			}
			for _, e := range entries {
				p.Text(fmt.Sprintf("%s  #%-3d %-18s %s %s",
					e.Timestamp.Local().Format(schema.TimestampLayout), e.Sequence, e.Operation, e.StationID, string(e.Payload)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&op, "op", "", "only this operation")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries when no station is given")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the station tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := mcp.NewStationServer(mcp.StationServerDeps{Service: a.svc, Logger: a.logger}, version)
			a.logger.Info("mcp server listening on stdio")
			return srv.Serve(cmd.Context())
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"bare": "true"},
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(a.out)
		},
	}
}

// parseAssignments reads name=state arguments in order.
func parseAssignments(args []string) (*schema.EquipmentStates, error) {
	out := schema.NewEquipmentStates()
	for _, arg := range args {
		i := strings.LastIndex(arg, "=")
		if i <= 0 {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "expected name=state, got %q", arg)
		}
		name := strings.TrimSpace(arg[:i])
		state, ok := schema.ParseOperatingState(arg[i+1:])
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown state %q for %s", arg[i+1:], name)
		}
		out.Set(name, state)
	}
	return out, nil
}

func printStates(a *app, states *schema.EquipmentStates) {
	p := console.NewPrinter(a.out)
	for i, pair := range states.Pairs() {
		p.Text(fmt.Sprintf("%2d. %s %s", i+1, pair.Name, console.StateBadge(pair.State)))
	}
}

func writeJSON(a *app, v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
