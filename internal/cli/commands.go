package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/rpggio/facelapse/internal/capturedate"
	"github.com/rpggio/facelapse/internal/domain/activity"
	"github.com/rpggio/facelapse/internal/domain/alignment"
	"github.com/rpggio/facelapse/internal/domain/ingest"
	"github.com/rpggio/facelapse/internal/domain/video"
	"github.com/rpggio/facelapse/internal/watcher"
)

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid photo id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Add photos to the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.ingest.SubmitFiles(cmd.Context(), args)
			if err != nil {
				return err
			}
			printBatch(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func printBatch(w io.Writer, res *ingest.Result) {
	for _, o := range res.Outcomes {
		switch o.Status {
		case ingest.StatusAccepted:
			fmt.Fprintf(w, "added      %s -> %s", o.SourceName, o.Photo.DisplayName)
			if o.DateSource != "" && o.DateSource != capturedate.SourceUnknown {
				fmt.Fprintf(w, " (date from %s)", o.DateSource)
			}
			fmt.Fprintln(w)
		case ingest.StatusDuplicateInLibrary:
			fmt.Fprintf(w, "duplicate  %s already stored as %s\n", o.SourceName, o.ExistingName)
		case ingest.StatusDuplicateInBatch:
			fmt.Fprintf(w, "duplicate  %s repeats another file in this batch\n", o.SourceName)
		}
	}
	fmt.Fprintf(w, "%d added, %d duplicates\n", res.Accepted, res.Duplicates)
}

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Ingest photos as they are written into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			if !cmd.Flags().Changed("debounce") {
				debounce = a.cfg.Watch.Debounce
			}
			w := watcher.New(args[0], e.ingest, debounce, a.logger)
			w.OnBatch = func(res *ingest.Result) { printBatch(cmd.OutOrStdout(), res) }
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "quiet period before a batch is submitted")
	return cmd
}

func newAlignCmd(a *app) *cobra.Command {
	var noProgress bool
	cmd := &cobra.Command{
		Use:   "align [ID...]",
		Short: "Detect faces and write aligned frames",
		Long:  "Aligns the given photos, or every photo that was never aligned when no ids are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			if len(ids) == 0 {
				if ids, err = e.alignment.Pending(ctx); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "nothing to align")
				return nil
			}
			e.checkDetector(ctx)

			bar := progressbar.NewOptions(len(ids),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetVisibility(!noProgress),
				progressbar.OptionSetDescription("aligning"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(cmd.ErrOrStderr()) }),
			)

			var failed []alignment.Progress
			aligned := 0
			for p, err := range e.alignment.Run(ctx, ids) {
				if err != nil {
					return err
				}
				_ = bar.Add(1)
				if p.Status == alignment.StatusOK {
					aligned++
				} else {
					failed = append(failed, p)
				}
			}
			_ = bar.Finish()

			for _, p := range failed {
				name := p.DisplayName
				if name == "" {
					name = fmt.Sprintf("#%d", p.PhotoID)
				}
				fmt.Fprintf(out, "%-12s %s", p.Status, name)
				if p.Reason != "" {
					fmt.Fprintf(out, ": %s", p.Reason)
				}
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "%d aligned, %d failed\n", aligned, len(failed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "hide the progress bar")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show photos in timeline order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			photos, err := e.timeline.Listing(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(photos)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "POS\tID\tNAME\tCAPTURED\tFACE\tINCLUDED\tORDER\tADDED")
			for _, p := range photos {
				captured := "-"
				if p.CapturedAt != nil {
					captured = p.CapturedAt.Format(time.DateOnly)
				}
				order := "-"
				if p.ManualOrder != nil {
					order = strconv.Itoa(*p.ManualOrder)
				}
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					p.Position, p.ID, p.DisplayName, captured,
					yesNo(p.FaceDetected), yesNo(p.IncludedInOutput), order, humanize.Time(p.CreatedAt))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func newOrderCmd(a *app) *cobra.Command {
	var clearOrder bool
	cmd := &cobra.Command{
		Use:   "order ID [POSITION]",
		Short: "Pin a photo to a manual position",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			var order *int
			switch {
			case clearOrder && len(args) == 2:
				return fmt.Errorf("--clear takes no position")
			case !clearOrder && len(args) == 1:
				return fmt.Errorf("position required (or --clear)")
			case !clearOrder:
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid position %q", args[1])
				}
				order = &n
			}

			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.timeline.SetManualOrder(cmd.Context(), ids[0], order)
			if err != nil {
				return err
			}
			if order == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: manual position cleared\n", p.DisplayName)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: manual position %d\n", p.DisplayName, *order)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearOrder, "clear", false, "remove the manual position")
	return cmd
}

func newInterpolateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "interpolate [ID...]",
		Short: "Estimate capture dates of undated photos",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.timeline.Interpolate(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d dates interpolated\n", n)
			return nil
		},
	}
}

func newIncludeCmd(a *app) *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "include ID",
		Short: "Include a photo in videos, or exclude it with --off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.photos.SetInclusion(cmd.Context(), ids[0], !off)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: included=%t\n", p.DisplayName, p.IncludedInOutput)
			return nil
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "exclude instead of include")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete photos and their files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			for _, id := range ids {
				if err := e.photos.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("photo %d: %w", id, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d deleted\n", len(ids))
			return nil
		},
	}
}

func newPruneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete every aligned photo without a face",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.photos.PruneNoFace(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d deleted\n", n)
			return nil
		},
	}
}

func newDuplicatesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates",
		Short: "Report stored photos with identical content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			groups, err := e.photos.DuplicateReport(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintln(out, "no duplicates")
				return nil
			}
			for _, g := range groups {
				fmt.Fprintf(out, "%s:", g.ContentHash[:min(12, len(g.ContentHash))])
				for _, p := range g.Photos {
					fmt.Fprintf(out, " %s", p.DisplayName)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func newVideoCmd(a *app) *cobra.Command {
	var (
		frameDuration time.Duration
		showDates     bool
		birthday      string
	)
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Encode the included aligned frames into an mp4",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("frame-duration") {
				frameDuration = a.cfg.Video.FrameDuration
			}
			opts := video.Options{FrameDuration: frameDuration, ShowDates: showDates}
			if birthday != "" {
				b, err := time.Parse(time.DateOnly, birthday)
				if err != nil {
					return fmt.Errorf("invalid birthday %q, want YYYY-MM-DD", birthday)
				}
				opts.Birthday = &b
			}

			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.video.Build(cmd.Context(), opts)
			if err != nil {
				return err
			}
			size := ""
			if info, err := os.Stat(res.Path); err == nil {
				size = ", " + humanize.Bytes(uint64(info.Size()))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d frames, %.1fs%s)\n", res.Path, res.FrameCount, res.TotalDuration, size)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.DurationVar(&frameDuration, "frame-duration", video.DefaultFrameDuration, "time each frame is shown")
	flags.BoolVar(&showDates, "dates", false, "draw the capture date on each frame")
	flags.StringVar(&birthday, "birthday", "", "YYYY-MM-DD; adds the age to date labels")
	return cmd
}

func newActivityCmd(a *app) *cobra.Command {
	var (
		limit   int
		kind    string
		photoID int64
	)
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent activity, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			opts := activity.ListActivityOptions{Limit: limit}
			if kind != "" {
				t := activity.ActivityType(kind)
				opts.ActivityType = &t
			}
			if photoID > 0 {
				opts.PhotoID = &photoID
			}
			entries, err := e.activity.GetRecentActivity(cmd.Context(), opts)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, entry := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", humanize.Time(entry.CreatedAt), entry.ActivityType, entry.Summary)
			}
			return tw.Flush()
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&limit, "limit", 20, "maximum number of entries")
	flags.StringVar(&kind, "type", "", "only entries of this type")
	flags.Int64Var(&photoID, "photo", 0, "only entries about this photo id")
	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "facelapse %s\n", a.version)
		},
	}
}
