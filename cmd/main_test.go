package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const testNow = "2026-10-14T10:00:00-05:00"

// --- Test Setup ---

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func setupTests(t *testing.T) (string, func()) {
	t.Helper()
	content := []byte(`
todo.chorebot_chores:
  state: "4"
  attributes:
    friendly_name: Chores
    chorebot_tasks:
      - uid: t1
        summary: Dishes
        status: needs_action
        due: "2026-10-14T22:00:00Z"
        tags: [Kitchen]
        points_value: 5
        computed_person_id: person.sam
      - uid: t2
        summary: Trash
        status: completed
        due: "2026-10-14T12:00:00Z"
        last_completed: "2026-10-14T13:00:00Z"
        tags: [Chores]
        parent_uid: tpl1
        points_value: 10
        computed_person_id: person.sam
      - uid: t3
        summary: Mow lawn
        status: needs_action
        due: "2026-10-13T17:00:00Z"
        tags: [Yard]
        section_id: s1
      - uid: t4
        summary: Vacuum
        status: needs_action
        due: "2026-10-16T17:00:00Z"
        tags: [Chores]
      - uid: t5
        summary: Read a book
        status: needs_action
        computed_person_id: person.sam
    chorebot_templates:
      - uid: tpl1
        rrule: FREQ=DAILY;INTERVAL=1
        streak_current: 4
        streak_longest: 6
        streak_bonus_points: 3
        streak_bonus_interval: 5
    chorebot_sections:
      - {id: s1, name: Outside, sort_order: 1}
      - {id: s2, name: Inside, sort_order: 3}
sensor.chorebot_points:
  state: ok
  attributes:
    people:
      person.sam: {points_balance: 40, lifetime_points: 90}
    rewards:
      - {id: r1, name: Arcade, cost: 20, enabled: true, created: "2026-01-02T00:00:00Z"}
      - {id: r2, name: Pony, cost: 500, enabled: true, created: "2026-01-01T00:00:00Z"}
      - {id: r3, name: Old toy, cost: 5, enabled: false}
person.sam:
  state: home
  attributes:
    friendly_name: Sam
`)
	tmpfile, err := os.CreateTemp("", "test_snapshot.*.yml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if _, err := tmpfile.Write(content); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatalf("Failed to close temp file: %v", err)
	}

	return tmpfile.Name(), func() {
		os.Remove(tmpfile.Name())
	}
}

// resetFlags puts every flag of cmd and its children back to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// executeCommandText captures plain text output from a command.
func executeCommandText(t *testing.T, args ...string) string {
	t.Helper()
	b := new(bytes.Buffer)

	rootCmd.SetOut(b)
	rootCmd.SetErr(b)
	rootCmd.SetArgs(args)
	resetFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("command execution failed: %v", err)
	}

	return b.String()
}

type serviceCall struct {
	Path string
	Body map[string]any
}

// fakeHost records service calls and answers them with an empty list.
func fakeHost(t *testing.T) (*[]serviceCall, func()) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []serviceCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Expected bearer token, got %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode service data: %v", err)
		}
		mu.Lock()
		calls = append(calls, serviceCall{Path: r.URL.Path, Body: body})
		mu.Unlock()
		w.Write([]byte("[]"))
	}))

	t.Setenv("CHOREBOT_HOST_URL", srv.URL)
	t.Setenv("CHOREBOT_TOKEN", "test-token")
	t.Setenv("CHOREBOT_ENTITY", "todo.chorebot_chores")
	return &calls, srv.Close
}

func onlyCall(t *testing.T, calls *[]serviceCall, path string) map[string]any {
	t.Helper()
	if len(*calls) != 1 {
		t.Fatalf("Expected exactly one service call, got %d", len(*calls))
	}
	call := (*calls)[0]
	if call.Path != path {
		t.Fatalf("Expected call to %s, got %s", path, call.Path)
	}
	return call.Body
}

// --- Test Functions ---

func TestTasksCommand(t *testing.T) {
	tmpFile, cleanup := setupTests(t)
	defer cleanup()

	t.Run("lists today's tasks", func(t *testing.T) {
		output := executeCommandText(t, "tasks", "--snapshot", tmpFile, "--now", testNow)

		if !strings.Contains(output, "Chores · Wed Oct 14 (1/4)") {
			t.Errorf("Expected title with progress, got:\n%s", output)
		}
		for _, want := range []string{"[ ] Dishes · 5:00 PM", "[x] Trash", "[ ] Mow lawn · Yesterday", "[ ] Read a book"} {
			if !strings.Contains(output, want) {
				t.Errorf("Expected %q in output:\n%s", want, output)
			}
		}
		if strings.Contains(output, "Vacuum") {
			t.Error("Task due in two days should not be listed today")
		}
	})

	t.Run("shows points badges", func(t *testing.T) {
		output := executeCommandText(t, "tasks", "--snapshot", tmpFile, "--now", testNow, "--points")
		if !strings.Contains(output, "+5 points") {
			t.Errorf("Expected points badge, got:\n%s", output)
		}
		if !strings.Contains(output, "+10 + 3 points") {
			t.Errorf("Expected bonus badge for the templated task, got:\n%s", output)
		}
	})

	t.Run("future day carries overdue work forward", func(t *testing.T) {
		output := executeCommandText(t, "tasks", "--snapshot", tmpFile, "--now", testNow, "--date", "2026-10-16", "--future")
		for _, want := range []string{"Vacuum", "Dishes", "Mow lawn"} {
			if !strings.Contains(output, want) {
				t.Errorf("Expected %q in future view:\n%s", want, output)
			}
		}
		if strings.Contains(output, "Trash") {
			t.Error("Completed task should not carry forward")
		}
	})

	t.Run("future day is empty without --future", func(t *testing.T) {
		output := executeCommandText(t, "tasks", "--snapshot", tmpFile, "--now", testNow, "--date", "2026-10-16")
		if !strings.Contains(output, "(0/0)") {
			t.Errorf("Expected empty future view, got:\n%s", output)
		}
	})

	t.Run("filters by section name", func(t *testing.T) {
		output := executeCommandText(t, "tasks", "--snapshot", tmpFile, "--now", testNow, "--section", "Outside")
		if !strings.Contains(output, "Mow lawn") || strings.Contains(output, "Dishes") {
			t.Errorf("Expected only the Outside section, got:\n%s", output)
		}
	})

	t.Run("hides dateless tasks", func(t *testing.T) {
		output := executeCommandText(t, "tasks", "--snapshot", tmpFile, "--now", testNow, "--dateless=false")
		if strings.Contains(output, "Read a book") {
			t.Errorf("Dateless task should be hidden, got:\n%s", output)
		}
	})
}

func TestGroupsCommand(t *testing.T) {
	tmpFile, cleanup := setupTests(t)
	defer cleanup()

	t.Run("groups by tag in order", func(t *testing.T) {
		output := executeCommandText(t, "groups", "--snapshot", tmpFile, "--now", testNow)

		order := []string{"Chores (1/1)", "Kitchen (0/1)", "Yard (0/1)", "Untagged (0/1)"}
		last := -1
		for _, header := range order {
			i := strings.Index(output, header)
			if i < 0 {
				t.Fatalf("Expected group %q in output:\n%s", header, output)
			}
			if i < last {
				t.Errorf("Group %q is out of order:\n%s", header, output)
			}
			last = i
		}
	})

	t.Run("upcoming bucket starts collapsed", func(t *testing.T) {
		output := executeCommandText(t, "groups", "--snapshot", tmpFile, "--now", testNow, "--future")
		if !strings.Contains(output, "Upcoming (0/1) [collapsed]") {
			t.Errorf("Expected collapsed upcoming bucket, got:\n%s", output)
		}
		if strings.Contains(output, "Vacuum") {
			t.Error("Collapsed bucket should hide its tasks")
		}
	})

	t.Run("toggle expands a group", func(t *testing.T) {
		output := executeCommandText(t, "groups", "--snapshot", tmpFile, "--now", testNow, "--future", "--toggle", "Upcoming,Kitchen")
		if !strings.Contains(output, "Vacuum") {
			t.Errorf("Expected expanded upcoming bucket, got:\n%s", output)
		}
		if !strings.Contains(output, "Kitchen (0/1) [collapsed]") {
			t.Errorf("Expected Kitchen collapsed, got:\n%s", output)
		}
	})

	t.Run("card config sets labels and order", func(t *testing.T) {
		card, err := os.CreateTemp("", "test_card.*.yml")
		if err != nil {
			t.Fatalf("Failed to create card file: %v", err)
		}
		defer os.Remove(card.Name())
		card.WriteString("untagged_header: Other\ntag_group_order: [Yard, Kitchen]\n")
		card.Close()

		output := executeCommandText(t, "groups", "--snapshot", tmpFile, "--now", testNow, "--card", card.Name())
		yard, kitchen, chores, other := strings.Index(output, "Yard ("), strings.Index(output, "Kitchen ("), strings.Index(output, "Chores ("), strings.Index(output, "Other (")
		if !(yard >= 0 && yard < kitchen && kitchen < chores && chores < other) {
			t.Errorf("Expected Yard, Kitchen, Chores, Other order, got:\n%s", output)
		}
	})
}

func TestProgressCommand(t *testing.T) {
	tmpFile, cleanup := setupTests(t)
	defer cleanup()

	output := executeCommandText(t, "progress", "--snapshot", tmpFile, "--now", testNow, "--person", "person.sam")
	for _, want := range []string{"Sam", "40 points", "Today: 1/2 done"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output:\n%s", want, output)
		}
	}
}

func TestRewardsCommand(t *testing.T) {
	tmpFile, cleanup := setupTests(t)
	defer cleanup()

	t.Run("sorted by cost with redeem markers", func(t *testing.T) {
		output := executeCommandText(t, "rewards", "--snapshot", tmpFile, "--person", "person.sam")
		if !strings.Contains(output, "Arcade · 20 points [redeemable]") {
			t.Errorf("Expected Arcade redeemable, got:\n%s", output)
		}
		if !strings.Contains(output, "Pony · 500 points [need 460 more]") {
			t.Errorf("Expected Pony out of reach, got:\n%s", output)
		}
		if strings.Contains(output, "Old toy") {
			t.Error("Disabled reward should be hidden")
		}
	})

	t.Run("created order with disabled shown", func(t *testing.T) {
		output := executeCommandText(t, "rewards", "--snapshot", tmpFile, "--sort", "created", "--show-disabled")
		old, pony, arcade := strings.Index(output, "Old toy"), strings.Index(output, "Pony"), strings.Index(output, "Arcade")
		if !(old >= 0 && old < pony && pony < arcade) {
			t.Errorf("Expected Old toy, Pony, Arcade order, got:\n%s", output)
		}
		if !strings.Contains(output, "[disabled]") {
			t.Errorf("Expected disabled marker, got:\n%s", output)
		}
	})
}

func TestRRuleCommands(t *testing.T) {
	t.Run("decode", func(t *testing.T) {
		output := executeCommandText(t, "rrule", "decode", "freq=weekly;interval=2;byday=MO,WE")
		for _, want := range []string{"frequency: WEEKLY", "interval: 2", "summary: every 2 weeks on MO, WE", "canonical: FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE"} {
			if !strings.Contains(output, want) {
				t.Errorf("Expected %q in output:\n%s", want, output)
			}
		}
	})

	t.Run("decode unsupported", func(t *testing.T) {
		output := executeCommandText(t, "rrule", "decode", "FREQ=YEARLY")
		if output != "does not repeat\n" {
			t.Errorf("Expected %q, got %q", "does not repeat\n", output)
		}
	})

	t.Run("encode", func(t *testing.T) {
		output := executeCommandText(t, "rrule", "encode", "--freq", "monthly", "--bymonthday", "40")
		expected := "FREQ=MONTHLY;INTERVAL=1;BYMONTHDAY=31\n"
		if output != expected {
			t.Errorf("Expected %q, got %q", expected, output)
		}
	})
}

func TestMutationCommands(t *testing.T) {
	tmpFile, cleanup := setupTests(t)
	defer cleanup()

	t.Run("complete", func(t *testing.T) {
		calls, stop := fakeHost(t)
		defer stop()

		output := executeCommandText(t, "complete", "t1", "--snapshot", tmpFile, "--now", testNow)
		body := onlyCall(t, calls, "/api/services/todo/update_item")
		if body["entity_id"] != "todo.chorebot_chores" || body["item"] != "t1" || body["status"] != "completed" {
			t.Errorf("Unexpected service data: %v", body)
		}
		if !strings.Contains(output, `Marked "Dishes" as done.`) {
			t.Errorf("Unexpected output: %q", output)
		}
	})

	t.Run("edit recurring instance", func(t *testing.T) {
		calls, stop := fakeHost(t)
		defer stop()

		executeCommandText(t, "edit", "t2", "--snapshot", tmpFile, "--now", testNow, "--summary", "Take out trash")
		body := onlyCall(t, calls, "/api/services/chorebot/update_task")

		expected := map[string]any{
			"list_id":                    "todo.chorebot_chores",
			"uid":                        "t2",
			"summary":                    "Take out trash",
			"due":                        "2026-10-14T12:00:00Z",
			"is_all_day":                 false,
			"rrule":                      "FREQ=DAILY;INTERVAL=1",
			"include_future_occurrences": true,
			"streak_bonus_points":        float64(3),
			"streak_bonus_interval":      float64(5),
			"points_value":               float64(10),
		}
		for key, want := range expected {
			if body[key] != want {
				t.Errorf("Expected %s=%v, got %v", key, want, body[key])
			}
		}
	})

	t.Run("edit clears due and recurrence", func(t *testing.T) {
		calls, stop := fakeHost(t)
		defer stop()

		executeCommandText(t, "edit", "t2", "--snapshot", tmpFile, "--now", testNow, "--no-due", "--freq", "none")
		body := onlyCall(t, calls, "/api/services/chorebot/update_task")
		if body["due"] != "" || body["rrule"] != "" {
			t.Errorf("Expected due and rrule cleared, got %v", body)
		}
	})

	t.Run("add", func(t *testing.T) {
		calls, stop := fakeHost(t)
		defer stop()

		output := executeCommandText(t, "add", "--snapshot", tmpFile, "--now", testNow, "--summary", "Water plants", "--due", "2026-10-15", "--time", "08:30", "--freq", "weekly", "--byday", "mo,th", "--tags", "Garden")
		body := onlyCall(t, calls, "/api/services/chorebot/add_task")
		if body["due"] != "2026-10-15T13:30:00Z" {
			t.Errorf("Expected due in UTC, got %v", body["due"])
		}
		if body["rrule"] != "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,TH" {
			t.Errorf("Unexpected rrule %v", body["rrule"])
		}
		if !strings.Contains(output, `Added "Water plants" to todo.chorebot_chores.`) {
			t.Errorf("Unexpected output: %q", output)
		}
	})

	t.Run("add resolves section name", func(t *testing.T) {
		calls, stop := fakeHost(t)
		defer stop()

		executeCommandText(t, "add", "--snapshot", tmpFile, "--now", testNow, "--summary", "Rake", "--section", "Outside")
		body := onlyCall(t, calls, "/api/services/chorebot/add_task")
		if body["section_id"] != "s1" {
			t.Errorf("Expected section_id s1, got %v", body["section_id"])
		}
	})

	t.Run("add defaults to highest sort order section", func(t *testing.T) {
		calls, stop := fakeHost(t)
		defer stop()

		executeCommandText(t, "add", "--snapshot", tmpFile, "--now", testNow, "--summary", "Rake")
		body := onlyCall(t, calls, "/api/services/chorebot/add_task")
		if body["section_id"] != "s2" {
			t.Errorf("Expected section_id s2, got %v", body["section_id"])
		}
	})

	t.Run("add uses card defaults", func(t *testing.T) {
		calls, stop := fakeHost(t)
		defer stop()

		card, err := os.CreateTemp("", "test_card.*.yml")
		if err != nil {
			t.Fatalf("Failed to create card file: %v", err)
		}
		defer os.Remove(card.Name())
		card.WriteString("default_section_id: outside\ndefault_tags: [Yard]\n")
		card.Close()

		executeCommandText(t, "add", "--snapshot", tmpFile, "--card", card.Name(), "--now", testNow, "--summary", "Rake")
		body := onlyCall(t, calls, "/api/services/chorebot/add_task")
		if body["section_id"] != "s1" {
			t.Errorf("Expected section_id s1, got %v", body["section_id"])
		}
		tags, _ := body["tags"].([]any)
		if len(tags) != 1 || tags[0] != "Yard" {
			t.Errorf("Expected default tags [Yard], got %v", body["tags"])
		}
	})

	t.Run("add tags flag replaces card defaults", func(t *testing.T) {
		calls, stop := fakeHost(t)
		defer stop()

		card, err := os.CreateTemp("", "test_card.*.yml")
		if err != nil {
			t.Fatalf("Failed to create card file: %v", err)
		}
		defer os.Remove(card.Name())
		card.WriteString("default_tags: [Yard]\n")
		card.Close()

		executeCommandText(t, "add", "--snapshot", tmpFile, "--card", card.Name(), "--now", testNow, "--summary", "Rake", "--tags", "Garden")
		body := onlyCall(t, calls, "/api/services/chorebot/add_task")
		tags, _ := body["tags"].([]any)
		if len(tags) != 1 || tags[0] != "Garden" {
			t.Errorf("Expected tags [Garden], got %v", body["tags"])
		}
	})

	t.Run("delete", func(t *testing.T) {
		calls, stop := fakeHost(t)
		defer stop()

		executeCommandText(t, "delete", "t4")
		body := onlyCall(t, calls, "/api/services/todo/remove_item")
		if body["item"] != "t4" {
			t.Errorf("Unexpected service data: %v", body)
		}
	})

	t.Run("redeem", func(t *testing.T) {
		calls, stop := fakeHost(t)
		defer stop()

		output := executeCommandText(t, "redeem", "r1", "--snapshot", tmpFile, "--person", "person.sam")
		body := onlyCall(t, calls, "/api/services/chorebot/redeem_reward")
		if body["person_id"] != "person.sam" || body["reward_id"] != "r1" {
			t.Errorf("Unexpected service data: %v", body)
		}
		if !strings.Contains(output, `Redeemed "Arcade" for person.sam (20 points).`) {
			t.Errorf("Unexpected output: %q", output)
		}
	})

	t.Run("reward set", func(t *testing.T) {
		calls, stop := fakeHost(t)
		defer stop()

		executeCommandText(t, "reward", "set", "--name", "Movie night", "--cost", "50")
		body := onlyCall(t, calls, "/api/services/chorebot/manage_reward")
		if body["name"] != "Movie night" || body["cost"] != float64(50) || body["enabled"] != true {
			t.Errorf("Unexpected service data: %v", body)
		}
	})
}
