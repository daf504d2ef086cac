package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bryan-cox/chorebot/internal/draft"
	"github.com/bryan-cox/chorebot/internal/filter"
	"github.com/bryan-cox/chorebot/internal/host"
	"github.com/bryan-cox/chorebot/internal/model"
	"github.com/bryan-cox/chorebot/internal/points"
	"github.com/bryan-cox/chorebot/internal/rrule"
	"github.com/bryan-cox/chorebot/internal/session"
	"github.com/bryan-cox/chorebot/internal/snapshot"
)

var (
	// Task form flags, shared by add and edit.
	taskSummary     string
	taskDescription string
	taskSection     string
	taskTags        []string
	taskPoints      int
	taskDue         string
	taskTime        string
	taskAllDay      bool
	taskNoDue       bool
	bonusPoints     int
	bonusInterval   int

	// Recurrence flags, shared by add, edit and rrule encode.
	ruleFreq       string
	ruleInterval   int
	ruleByDay      []string
	ruleByMonthDay int

	// Reward flags.
	rewardID          string
	rewardName        string
	rewardCost        int
	rewardIcon        string
	rewardDescription string
	rewardPerson      string
	rewardDisabled    bool

	completeCmd = &cobra.Command{
		Use:   "complete <uid>",
		Short: "Toggle a task between done and not done.",
		Args:  cobra.ExactArgs(1),
		Run:   runCompleteCommand,
	}

	addCmd = &cobra.Command{
		Use:   "add",
		Short: "Add a task to the list.",
		Run:   runAddCommand,
	}

	editCmd = &cobra.Command{
		Use:   "edit <uid>",
		Short: "Edit a task. Only the flags given are changed.",
		Long:  `Edits a task the way the edit dialog does. Changes to an instance of a recurring task also apply to its future occurrences. Use --freq none to stop a task repeating and --no-due to clear its due date.`,
		Args:  cobra.ExactArgs(1),
		Run:   runEditCommand,
	}

	deleteCmd = &cobra.Command{
		Use:   "delete <uid>",
		Short: "Delete a task from the list.",
		Args:  cobra.ExactArgs(1),
		Run:   runDeleteCommand,
	}

	redeemCmd = &cobra.Command{
		Use:   "redeem <reward-id>",
		Short: "Spend a person's points on a reward.",
		Args:  cobra.ExactArgs(1),
		Run:   runRedeemCommand,
	}

	rewardCmd = &cobra.Command{
		Use:   "reward",
		Short: "Manage reward definitions.",
	}

	rewardSetCmd = &cobra.Command{
		Use:   "set",
		Short: "Create a reward, or update it when --id is given.",
		Run:   runRewardSetCommand,
	}

	rruleCmd = &cobra.Command{
		Use:   "rrule",
		Short: "Decode and encode recurrence rules.",
	}

	rruleDecodeCmd = &cobra.Command{
		Use:   "decode <rule>",
		Short: "Show the fields of a recurrence rule.",
		Args:  cobra.ExactArgs(1),
		Run:   runRRuleDecodeCommand,
	}

	rruleEncodeCmd = &cobra.Command{
		Use:   "encode",
		Short: "Build a recurrence rule from flags.",
		Run:   runRRuleEncodeCommand,
	}
)

func init() {
	registerTaskFlags(addCmd)
	addCmd.MarkFlagRequired("summary")

	registerTaskFlags(editCmd)
	editCmd.Flags().BoolVar(&taskNoDue, "no-due", false, "Clear the due date.")

	redeemCmd.Flags().StringVar(&personFilter, "person", "", "Person entity id redeeming the reward.")
	redeemCmd.MarkFlagRequired("person")

	rewardSetCmd.Flags().StringVar(&rewardID, "id", "", "Reward id to update.")
	rewardSetCmd.Flags().StringVar(&rewardName, "name", "", "Reward name.")
	rewardSetCmd.Flags().IntVar(&rewardCost, "cost", 0, "Cost in points.")
	rewardSetCmd.Flags().StringVar(&rewardIcon, "icon", "", "Icon, e.g. mdi:gift.")
	rewardSetCmd.Flags().StringVar(&rewardDescription, "description", "", "Description.")
	rewardSetCmd.Flags().StringVar(&rewardPerson, "person", "", "Limit the reward to one person.")
	rewardSetCmd.Flags().BoolVar(&rewardDisabled, "disabled", false, "Create or keep the reward disabled.")
	rewardSetCmd.MarkFlagRequired("name")
	rewardCmd.AddCommand(rewardSetCmd)

	registerRecurrenceFlags(rruleEncodeCmd)
	rruleEncodeCmd.MarkFlagRequired("freq")
	rruleCmd.AddCommand(rruleDecodeCmd, rruleEncodeCmd)
}

func registerTaskFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&taskSummary, "summary", "", "Task summary.")
	cmd.Flags().StringVar(&taskDescription, "description", "", "Task description.")
	cmd.Flags().StringVar(&taskSection, "section", "", "Section id or name.")
	cmd.Flags().StringSliceVar(&taskTags, "tags", nil, "Comma-separated tags.")
	cmd.Flags().IntVar(&taskPoints, "points", 0, "Points awarded on completion.")
	cmd.Flags().StringVar(&taskDue, "due", "", "Due date (YYYY-MM-DD).")
	cmd.Flags().StringVar(&taskTime, "time", "", "Due time (HH:MM), local.")
	cmd.Flags().BoolVar(&taskAllDay, "all-day", false, "The task is due on a day rather than at a time.")
	cmd.Flags().IntVar(&bonusPoints, "bonus-points", 0, "Streak bonus points for recurring tasks.")
	cmd.Flags().IntVar(&bonusInterval, "bonus-interval", 0, "Award the streak bonus every N completions.")
	registerRecurrenceFlags(cmd)
}

func registerRecurrenceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ruleFreq, "freq", "", "Repeat frequency: daily, weekly or monthly (none to stop repeating).")
	cmd.Flags().IntVar(&ruleInterval, "interval", 1, "Repeat every N periods.")
	cmd.Flags().StringSliceVar(&ruleByDay, "byday", nil, "Weekdays for weekly rules, e.g. MO,WE.")
	cmd.Flags().IntVar(&ruleByMonthDay, "bymonthday", 0, "Day of month for monthly rules.")
}

// --- Flag Parsing ---

func parseFrequency(s string) (rrule.Frequency, error) {
	f := rrule.Frequency(strings.ToUpper(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unsupported frequency %q, use daily, weekly or monthly", s)
	}
	return f, nil
}

func parseWeekdays(values []string) ([]rrule.Weekday, error) {
	days := make([]rrule.Weekday, 0, len(values))
	for _, v := range values {
		w := rrule.Weekday(strings.ToUpper(strings.TrimSpace(v)))
		if !w.Valid() {
			return nil, fmt.Errorf("unknown weekday %q, use MO, TU, WE, TH, FR, SA or SU", v)
		}
		days = append(days, w)
	}
	return days, nil
}

// applyDraftFlags copies the task form flags that were set onto d.
func applyDraftFlags(cmd *cobra.Command, d *draft.Draft) error {
	flags := cmd.Flags()
	if flags.Changed("summary") {
		d.Summary = taskSummary
	}
	if flags.Changed("description") {
		d.Description = taskDescription
	}
	if flags.Changed("section") {
		d.SectionID = taskSection
	}
	if flags.Changed("tags") {
		d.Tags = taskTags
	}
	if flags.Changed("points") {
		d.PointsValue = taskPoints
	}
	if flags.Changed("due") {
		d.HasDueDate = true
		d.DueDate = taskDue
	}
	if flags.Changed("time") {
		d.DueTime = taskTime
	}
	if flags.Changed("all-day") {
		d.IsAllDay = taskAllDay
	}
	if flags.Changed("no-due") && taskNoDue {
		d.HasDueDate = false
		d.DueDate = ""
		d.DueTime = ""
	}
	if d.DueTime != "" && !d.HasDueDate {
		return fmt.Errorf("--time needs a due date")
	}

	if flags.Changed("freq") {
		if strings.EqualFold(ruleFreq, "none") {
			d.HasRecurrence = false
		} else {
			f, err := parseFrequency(ruleFreq)
			if err != nil {
				return err
			}
			d.HasRecurrence = true
			d.Recurrence.Frequency = f
		}
	}
	if flags.Changed("interval") {
		d.Recurrence.Interval = ruleInterval
	}
	if flags.Changed("byday") {
		days, err := parseWeekdays(ruleByDay)
		if err != nil {
			return err
		}
		d.Recurrence.ByWeekday = days
	}
	if flags.Changed("bymonthday") {
		d.Recurrence.ByMonthDay = ruleByMonthDay
	}
	if flags.Changed("bonus-points") {
		d.StreakBonusPoints = bonusPoints
	}
	if flags.Changed("bonus-interval") {
		d.StreakBonusInterval = bonusInterval
	}
	return nil
}

func newSession(e *env) *session.Session {
	client, err := host.NewClient(e.cfg.Host)
	if err != nil {
		fatal("failed to create host client", err)
	}
	return session.New(client, e.entity())
}

func findTask(board model.Board, uid string) *model.Task {
	for i := range board.Tasks {
		if board.Tasks[i].UID == uid {
			return &board.Tasks[i]
		}
	}
	return nil
}

// --- Command Execution Logic ---

func runCompleteCommand(cmd *cobra.Command, args []string) {
	e := loadEnv()
	board := e.board(e.loadSnapshot(cmd.Context()))
	task := findTask(board, args[0])
	if task == nil {
		fatal("task not found", fmt.Errorf("no task with uid %q", args[0]), "entity", board.EntityID)
	}

	if err := newSession(e).Toggle(cmd.Context(), task); err != nil {
		fatal("failed to update task", err, "uid", task.UID)
	}
	state := "done"
	if task.IsCompleted() {
		state = "not done"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked %q as %s.\n", task.Summary, state)
}

func runAddCommand(cmd *cobra.Command, args []string) {
	e := loadEnv()
	board := e.board(e.loadSnapshot(cmd.Context()))

	d := draft.Draft{
		Tags:       append([]string(nil), e.card.DefaultTags...),
		Recurrence: rrule.Descriptor{Interval: 1},
	}
	if err := applyDraftFlags(cmd, &d); err != nil {
		fatal("invalid task flags", err)
	}
	if d.SectionID != "" {
		d.SectionID = filter.ResolveSection(d.SectionID, board.Sections)
	} else {
		d.SectionID = filter.DefaultSection(e.card.DefaultSectionID, board.Sections)
	}

	if err := newSession(e).Add(cmd.Context(), d, e.now.Location()); err != nil {
		fatal("failed to add task", err, "summary", d.Summary)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %q to %s.\n", strings.TrimSpace(d.Summary), e.entity())
}

func runEditCommand(cmd *cobra.Command, args []string) {
	e := loadEnv()
	board := e.board(e.loadSnapshot(cmd.Context()))
	task := findTask(board, args[0])
	if task == nil {
		fatal("task not found", fmt.Errorf("no task with uid %q", args[0]), "entity", board.EntityID)
	}

	loc := e.now.Location()
	d := draft.PrepareDraft(task, points.TemplateIndex(board.Templates), loc)
	if err := applyDraftFlags(cmd, &d); err != nil {
		fatal("invalid task flags", err)
	}
	d.SectionID = filter.ResolveSection(d.SectionID, board.Sections)

	if err := newSession(e).Save(cmd.Context(), d, loc); err != nil {
		fatal("failed to save task", err, "uid", task.UID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %q.\n", strings.TrimSpace(d.Summary))
}

func runDeleteCommand(cmd *cobra.Command, args []string) {
	e := loadEnv()
	if err := newSession(e).Delete(cmd.Context(), args[0]); err != nil {
		fatal("failed to delete task", err, "uid", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s from %s.\n", args[0], e.entity())
}

func runRedeemCommand(cmd *cobra.Command, args []string) {
	e := loadEnv()
	sensor, err := snapshot.PointsSensor(e.loadSnapshot(cmd.Context()), e.sensorID())
	if err != nil {
		fatal("failed to load points sensor", err, "entity", e.sensorID())
	}

	var reward *model.Reward
	for i := range sensor.Rewards {
		if sensor.Rewards[i].ID == args[0] {
			reward = &sensor.Rewards[i]
			break
		}
	}
	if reward == nil {
		fatal("reward not found", fmt.Errorf("no reward with id %q", args[0]))
	}

	var person *model.PersonPoints
	if p, ok := sensor.People[personFilter]; ok {
		person = &p
	}

	if err := newSession(e).Redeem(cmd.Context(), person, *reward); err != nil {
		fatal("failed to redeem reward", err, "reward", reward.ID, "person", personFilter)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Redeemed %q for %s (%d %s).\n", reward.Name, personFilter, reward.Cost, points.Term(sensor.Display))
}

func runRewardSetCommand(cmd *cobra.Command, args []string) {
	e := loadEnv()
	r := model.Reward{
		ID:          rewardID,
		PersonID:    rewardPerson,
		Name:        rewardName,
		Cost:        rewardCost,
		Icon:        rewardIcon,
		Description: rewardDescription,
		Enabled:     !rewardDisabled,
	}
	if err := newSession(e).ManageReward(cmd.Context(), r); err != nil {
		fatal("failed to save reward", err, "name", r.Name)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved reward %q.\n", r.Name)
}

// ruleView is the printed form of a decoded rule.
type ruleView struct {
	Frequency  rrule.Frequency `yaml:"frequency"`
	Interval   int             `yaml:"interval"`
	ByWeekday  []rrule.Weekday `yaml:"byweekday,omitempty"`
	ByMonthDay int             `yaml:"bymonthday,omitempty"`
	Summary    string          `yaml:"summary"`
	Canonical  string          `yaml:"canonical"`
}

func runRRuleDecodeCommand(cmd *cobra.Command, args []string) {
	d := rrule.Decode(args[0])
	out := cmd.OutOrStdout()
	if d == nil {
		fmt.Fprintln(out, rrule.Describe(nil))
		return
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(ruleView{
		Frequency:  d.Frequency,
		Interval:   d.Interval,
		ByWeekday:  d.ByWeekday,
		ByMonthDay: d.ByMonthDay,
		Summary:    rrule.Describe(d),
		Canonical:  rrule.Encode(d),
	}); err != nil {
		fatal("failed to print rule", err)
	}
}

func runRRuleEncodeCommand(cmd *cobra.Command, args []string) {
	f, err := parseFrequency(ruleFreq)
	if err != nil {
		fatal("invalid --freq", err, "freq", ruleFreq)
	}
	days, err := parseWeekdays(ruleByDay)
	if err != nil {
		fatal("invalid --byday", err, "byday", ruleByDay)
	}
	fmt.Fprintln(cmd.OutOrStdout(), rrule.Encode(&rrule.Descriptor{
		Frequency:  f,
		Interval:   ruleInterval,
		ByWeekday:  days,
		ByMonthDay: ruleByMonthDay,
	}))
}
