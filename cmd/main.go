package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryan-cox/chorebot/internal/clipboard"
	"github.com/bryan-cox/chorebot/internal/config"
	"github.com/bryan-cox/chorebot/internal/filter"
	"github.com/bryan-cox/chorebot/internal/host"
	"github.com/bryan-cox/chorebot/internal/model"
	"github.com/bryan-cox/chorebot/internal/points"
	"github.com/bryan-cox/chorebot/internal/report"
	"github.com/bryan-cox/chorebot/internal/snapshot"
)

// --- Cobra Command Definitions ---

var (
	// Persistent flags.
	snapshotPath   string
	cardPath       string
	entityID       string
	pointsSensorID string
	nowFlag        string

	// View flags.
	viewDate        string
	includeFuture   bool
	includeDateless bool
	sectionFilter   string
	personFilter    string
	showPoints      bool
	copyOutput      bool
	toggleGroups    []string
	watchGroups     bool
	watchInterval   time.Duration
	rewardSort      string
	showDisabled    bool

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "chorebot",
		Short: "A CLI for ChoreBot task lists, points and rewards.",
		Long: `ChoreBot reads todo lists and the points sensor from a home automation host
(or a saved state snapshot) and shows what is due, grouped by tag, with points
and rewards. Mutating commands call the host's services.`,
	}

	tasksCmd = &cobra.Command{
		Use:   "tasks",
		Short: "List the tasks active on a day.",
		Long:  `Lists the tasks visible when viewing a day: due that day, overdue, or completed that day. Past and future days follow the same rules as the dashboard card.`,
		Run:   runTasksCommand,
	}

	groupsCmd = &cobra.Command{
		Use:   "groups",
		Short: "Show today's tasks grouped by tag.",
		Long:  `Groups today's tasks by tag with per-group progress. With --future, tasks due later go to the upcoming bucket, which starts collapsed.`,
		Run:   runGroupsCommand,
	}

	progressCmd = &cobra.Command{
		Use:   "progress",
		Short: "Show a person's balance and today's progress.",
		Long:  `Shows a person's points balance and how many of today's dated tasks assigned to them are done, across every ChoreBot list.`,
		Run:   runProgressCommand,
	}

	rewardsCmd = &cobra.Command{
		Use:   "rewards",
		Short: "List rewards and whether they can be redeemed.",
		Run:   runRewardsCommand,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Errors from commands are handled by slog, so we just exit.
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&snapshotPath, "snapshot", "", "Path to a state snapshot (YAML or JSON). When empty, states are fetched from the host.")
	rootCmd.PersistentFlags().StringVar(&cardPath, "card", "", "Path to a card config YAML file.")
	rootCmd.PersistentFlags().StringVar(&entityID, "entity", "", "Todo list entity id. Overrides the card and CHOREBOT_ENTITY.")
	rootCmd.PersistentFlags().StringVar(&pointsSensorID, "points-sensor", "", "Points sensor entity id. Overrides CHOREBOT_POINTS_SENSOR.")
	rootCmd.PersistentFlags().StringVar(&nowFlag, "now", "", "Current time override (RFC 3339). Its offset is used as the local zone.")

	tasksCmd.Flags().StringVar(&viewDate, "date", "", "Day to view (YYYY-MM-DD). Defaults to today.")
	tasksCmd.Flags().BoolVar(&includeFuture, "future", false, "Include tasks when viewing a future day.")
	tasksCmd.Flags().BoolVar(&includeDateless, "dateless", true, "Include tasks without a due date.")
	tasksCmd.Flags().StringVar(&sectionFilter, "section", "", "Only show tasks in this section (id or name).")
	tasksCmd.Flags().StringVar(&personFilter, "person", "", "Only show tasks assigned to this person entity.")
	tasksCmd.Flags().BoolVar(&showPoints, "points", false, "Show points badges.")
	tasksCmd.Flags().BoolVar(&copyOutput, "copy", false, "Also copy the output to the clipboard.")

	groupsCmd.Flags().BoolVar(&includeFuture, "future", false, "Show tasks due after today in the upcoming bucket.")
	groupsCmd.Flags().BoolVar(&includeDateless, "dateless", true, "Include tasks without a due date.")
	groupsCmd.Flags().StringVar(&sectionFilter, "section", "", "Only show tasks in this section (id or name).")
	groupsCmd.Flags().StringVar(&personFilter, "person", "", "Only show tasks assigned to this person entity.")
	groupsCmd.Flags().BoolVar(&showPoints, "points", false, "Show points badges.")
	groupsCmd.Flags().BoolVar(&copyOutput, "copy", false, "Also copy the output to the clipboard.")
	groupsCmd.Flags().StringSliceVar(&toggleGroups, "toggle", nil, "Flip the collapsed state of these groups.")
	groupsCmd.Flags().BoolVar(&watchGroups, "watch", false, "Keep refreshing and auto-collapse groups as they complete.")
	groupsCmd.Flags().DurationVar(&watchInterval, "interval", 30*time.Second, "Refresh interval for --watch.")

	progressCmd.Flags().StringVar(&personFilter, "person", "", "Person entity id, e.g. person.sam.")
	progressCmd.MarkFlagRequired("person")

	rewardsCmd.Flags().StringVar(&personFilter, "person", "", "Person whose balance decides what is redeemable.")
	rewardsCmd.Flags().StringVar(&rewardSort, "sort", "", "Sort by cost, name or created.")
	rewardsCmd.Flags().BoolVar(&showDisabled, "show-disabled", false, "Include disabled rewards.")

	rootCmd.AddCommand(tasksCmd, groupsCmd, progressCmd, rewardsCmd)
	rootCmd.AddCommand(completeCmd, addCmd, editCmd, deleteCmd, redeemCmd, rewardCmd, rruleCmd)
}

// --- Main Application Entry Point ---

func main() {
	// Setup structured JSON logger for errors.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	Execute(ctx)
}

// --- Shared State ---

// env is what every command resolves before doing its work.
type env struct {
	cfg  *config.Config
	card config.Card
	now  time.Time
}

func loadEnv() *env {
	card, err := config.LoadCard(cardPath)
	if err != nil {
		fatal("failed to load card config", err, "path", cardPath)
	}
	now, err := currentTime()
	if err != nil {
		fatal("invalid --now value", err, "now", nowFlag)
	}
	return &env{cfg: config.Load(), card: card, now: now}
}

func currentTime() (time.Time, error) {
	if nowFlag == "" {
		return time.Now(), nil
	}
	return time.Parse(time.RFC3339, nowFlag)
}

// entity resolves the todo list: flag, then card, then environment.
func (e *env) entity() string {
	switch {
	case entityID != "":
		return entityID
	case e.card.Entity != "":
		return e.card.Entity
	}
	return e.cfg.Entity
}

func (e *env) sensorID() string {
	if pointsSensorID != "" {
		return pointsSensorID
	}
	return e.cfg.PointsSensor
}

// loadSnapshot reads the snapshot file, or the live states when no file is given.
func (e *env) loadSnapshot(ctx context.Context) model.Snapshot {
	if snapshotPath != "" {
		snap, err := snapshot.Load(snapshotPath)
		if err != nil {
			fatal("failed to load snapshot", err, "path", snapshotPath)
		}
		return snap
	}

	client, err := host.NewClient(e.cfg.Host)
	if err != nil {
		fatal("no snapshot file given and host is not reachable", err)
	}
	snap, err := client.States(ctx)
	if err != nil {
		fatal("failed to fetch states from host", err, "url", e.cfg.Host.URL)
	}
	return snap
}

func (e *env) board(snap model.Snapshot) model.Board {
	board, err := snapshot.Board(snap, e.entity())
	if err != nil {
		fatal("failed to load todo list", err, "entity", e.entity())
	}
	return board
}

func (e *env) title(board model.Board) string {
	if e.card.Title == config.DefaultCard().Title && board.Name != "" {
		return board.Name
	}
	return e.card.Title
}

// filterOptions starts from the card and applies any view flags that were set.
func (e *env) filterOptions(cmd *cobra.Command, board model.Board) filter.Options {
	opts := filter.Options{
		IncludeDateless: e.card.IncludeDateless(),
		IncludeFuture:   e.card.ShowFutureTasks,
		Section:         e.card.FilterSectionID,
		Person:          e.card.PersonEntity,
		Sections:        board.Sections,
	}
	flags := cmd.Flags()
	if flags.Changed("dateless") {
		opts.IncludeDateless = includeDateless
	}
	if flags.Changed("future") {
		opts.IncludeFuture = includeFuture
	}
	if flags.Changed("section") {
		opts.Section = sectionFilter
	}
	if flags.Changed("person") {
		opts.Person = personFilter
	}
	return opts
}

func (e *env) renderContext(cmd *cobra.Command, board model.Board, display model.PointsDisplay) report.RenderContext {
	show := e.card.ShowPoints
	if cmd.Flags().Changed("points") {
		show = showPoints
	}
	return report.RenderContext{
		Now:        e.now,
		Templates:  points.TemplateIndex(board.Templates),
		Display:    display,
		ShowPoints: show,
	}
}

// display returns the points display config, falling back to the default
// when the sensor is missing.
func (e *env) display(snap model.Snapshot) model.PointsDisplay {
	sensor, err := snapshot.PointsSensor(snap, e.sensorID())
	if err != nil {
		slog.Debug("points sensor not found, using default display", "entity", e.sensorID())
	}
	return sensor.Display
}

func fatal(msg string, err error, attrs ...any) {
	slog.Error(msg, append([]any{"error", err}, attrs...)...)
	os.Exit(1)
}

// emit writes rendered output, copying it to the clipboard when --copy is set.
func emit(cmd *cobra.Command, render func(io.Writer)) {
	out := cmd.OutOrStdout()
	if !copyOutput {
		render(out)
		return
	}

	var buf bytes.Buffer
	render(&buf)
	out.Write(buf.Bytes())
	if err := clipboard.CopyText(buf.String()); err != nil {
		slog.Warn("failed to copy to clipboard", "error", err)
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Copied to clipboard.")
}

// --- Command Execution Logic ---

func runTasksCommand(cmd *cobra.Command, args []string) {
	e := loadEnv()
	snap := e.loadSnapshot(cmd.Context())
	board := e.board(snap)

	ref := e.now
	if viewDate != "" {
		d, err := time.ParseInLocation("2006-01-02", viewDate, e.now.Location())
		if err != nil {
			fatal("invalid date format, use YYYY-MM-DD", err, "date", viewDate)
		}
		ref = d
	}

	tasks := filter.SelectActiveTasks(board.Tasks, ref, e.now, e.filterOptions(cmd, board))
	ctx := e.renderContext(cmd, board, e.display(snap))
	title := fmt.Sprintf("%s · %s", e.title(board), ref.Format("Mon Jan 2"))

	emit(cmd, func(w io.Writer) {
		report.PrintTaskList(w, title, tasks, ctx)
	})
}

func runGroupsCommand(cmd *cobra.Command, args []string) {
	e := loadEnv()
	snap := e.loadSnapshot(cmd.Context())
	board := e.board(snap)

	opts := report.GroupOptions{
		Options:       e.filterOptions(cmd, board),
		UntaggedLabel: e.card.UntaggedHeader,
		FutureLabel:   e.card.UpcomingHeader,
		Order:         e.card.TagGroupOrder,
	}
	opts.ShowFuture = opts.IncludeFuture
	display := e.display(snap)

	if watchGroups {
		runGroupsWatch(cmd, e, opts, display)
		return
	}

	tracker := report.NewCollapseTracker(report.DefaultCollapseDelay, opts.FutureLabel, nil)
	defer tracker.Stop()
	groups := tracker.Apply(report.BuildGroups(board.Tasks, e.now, opts))
	for _, name := range toggleGroups {
		tracker.Toggle(name)
	}
	groups = tracker.Apply(groups)

	ctx := e.renderContext(cmd, board, display)
	emit(cmd, func(w io.Writer) {
		fmt.Fprintln(w, report.Header(e.title(board)))
		report.PrintGroups(w, groups, ctx)
	})
}

// runGroupsWatch re-reads the snapshot on every tick and lets the tracker
// collapse groups that become complete. It returns when the command context
// is cancelled.
func runGroupsWatch(cmd *cobra.Command, e *env, opts report.GroupOptions, display model.PointsDisplay) {
	collapsed := make(chan string, 1)
	tracker := report.NewCollapseTracker(report.DefaultCollapseDelay, opts.FutureLabel, func(name string) {
		select {
		case collapsed <- name:
		default:
		}
	})
	defer tracker.Stop()

	var (
		board  model.Board
		groups []report.Group
	)
	refresh := func() {
		now, err := currentTime()
		if err != nil {
			fatal("invalid --now value", err, "now", nowFlag)
		}
		e.now = now
		board = e.board(e.loadSnapshot(cmd.Context()))
		groups = report.BuildGroups(board.Tasks, e.now, opts)
		for _, g := range groups {
			tracker.Observe(g.Name, report.CalculateProgress(g.Tasks))
		}
	}
	render := func() {
		ctx := e.renderContext(cmd, board, display)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\n%s · %s\n", report.Header(e.title(board)), e.now.Format(time.Kitchen))
		report.PrintGroups(out, tracker.Apply(groups), ctx)
	}

	refresh()
	for _, name := range toggleGroups {
		tracker.Toggle(name)
	}
	render()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-cmd.Context().Done():
			return
		case name := <-collapsed:
			slog.Debug("group collapsed", "group", name)
			render()
		case <-ticker.C:
			refresh()
			render()
		}
	}
}

func runProgressCommand(cmd *cobra.Command, args []string) {
	e := loadEnv()
	snap := e.loadSnapshot(cmd.Context())

	progress := report.PersonProgress(snapshot.Boards(snap), personFilter, e.now)

	sensor, err := snapshot.PointsSensor(snap, e.sensorID())
	if err != nil {
		slog.Warn("points sensor not found, balance unknown", "entity", e.sensorID())
	}
	person, ok := sensor.People[personFilter]
	if !ok {
		person = model.PersonPoints{EntityID: personFilter}
	}

	report.PrintPersonProgress(cmd.OutOrStdout(), snapshot.PersonName(snap, personFilter), person, progress, sensor.Display)
}

func runRewardsCommand(cmd *cobra.Command, args []string) {
	e := loadEnv()
	snap := e.loadSnapshot(cmd.Context())

	sensor, err := snapshot.PointsSensor(snap, e.sensorID())
	if err != nil {
		fatal("failed to load points sensor", err, "entity", e.sensorID())
	}

	sortBy := e.card.SortBy
	if rewardSort != "" {
		sortBy = rewardSort
	}
	mode, err := points.ParseSortMode(sortBy)
	if err != nil {
		fatal("invalid reward sort mode", err, "sort", sortBy)
	}

	who := e.card.PersonEntity
	if personFilter != "" {
		who = personFilter
	}
	var person *model.PersonPoints
	if who != "" {
		if p, ok := sensor.People[who]; ok {
			person = &p
		} else {
			slog.Warn("person not found on points sensor", "person", who)
		}
	}

	rewards := points.RewardsFor(sensor.Rewards, who)
	rewards = points.VisibleRewards(rewards, showDisabled || e.card.ShowDisabledRewards)
	rewards = points.SortRewards(rewards, mode)

	report.PrintRewards(cmd.OutOrStdout(), rewards, person, sensor.Display)
}
