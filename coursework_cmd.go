package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/classroom-go/internal/ledger"
	"github.com/tonimelisma/classroom-go/internal/submission"
)

// defaultHistoryLimit is how many ledger entries history shows by default.
const defaultHistoryLimit = 20

var errLedgerDisabled = errors.New("submission ledger is disabled (set ledger = true in the config file)")

func newCoursesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List enrolled courses",
		Args:  cobra.NoArgs,
		RunE:  runCourses,
	}
}

func newAssignmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assignments <course-id>",
		Short: "List a course's assignments with your submission status",
		Args:  cobra.ExactArgs(1),
		RunE:  runAssignments,
	}
}

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit --course <id> --assignment <id> <file>",
		Short: "Upload a file and turn it in for an assignment",
		Long: `Upload a file to Google Drive, attach it to your submission for the
assignment and turn it in. A submission is created when none exists yet.
An assignment that is already turned in is left untouched; the uploaded
Drive file is kept and recorded in the history.`,
		Args: cobra.ExactArgs(1),
		RunE: runSubmit,
	}

	cmd.Flags().String("course", "", "course ID")
	cmd.Flags().String("assignment", "", "assignment (coursework) ID")

	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("assignment")

	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent submit attempts from the local ledger",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().Int("limit", defaultHistoryLimit, "maximum number of entries")

	return cmd
}

func runCourses(cmd *cobra.Command, _ []string) error {
	logger, closeLog, err := buildLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	wf, err := newWorkflow(cmd.Context(), resolvedCfg, nil, logger)
	if err != nil {
		return err
	}

	courses, err := wf.Courses(cmd.Context())
	if err != nil {
		return err
	}

	return printCourses(cmd.OutOrStdout(), courses, flagJSON)
}

func printCourses(w io.Writer, courses []submission.Course, asJSON bool) error {
	if asJSON {
		return printJSON(w, courses)
	}

	if len(courses) == 0 {
		fmt.Fprintln(w, "No courses found.")
		return nil
	}

	rows := make([][]string, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, []string{c.ID, c.Name})
	}

	printTable(w, []string{"ID", "NAME"}, rows)

	return nil
}

func runAssignments(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := buildLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	wf, err := newWorkflow(cmd.Context(), resolvedCfg, nil, logger)
	if err != nil {
		return err
	}

	assignments, err := wf.Assignments(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	return printAssignments(cmd.OutOrStdout(), assignments, flagJSON)
}

func printAssignments(w io.Writer, assignments []submission.Assignment, asJSON bool) error {
	if asJSON {
		return printJSON(w, assignments)
	}

	if len(assignments) == 0 {
		fmt.Fprintln(w, "No assignments found.")
		return nil
	}

	rows := make([][]string, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, []string{a.ID, a.Status, a.Due, a.Title})
	}

	printTable(w, []string{"ID", "STATUS", "DUE", "TITLE"}, rows)

	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	courseID, err := cmd.Flags().GetString("course")
	if err != nil {
		return err
	}

	assignmentID, err := cmd.Flags().GetString("assignment")
	if err != nil {
		return err
	}

	path := args[0]

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}

	logger, closeLog, err := buildLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := shutdownContext(cmd.Context(), logger)

	lg, err := openLedger(ctx, resolvedCfg, logger)
	if err != nil {
		return err
	}

	var rec submission.Recorder
	if lg != nil {
		defer lg.Close()

		rec = lg
	}

	wf, err := newWorkflow(ctx, resolvedCfg, rec, logger)
	if err != nil {
		return err
	}

	name := norm.NFC.String(filepath.Base(path))
	statusf("Uploading %s (%s)...\n", name, formatSize(info.Size()))

	res, err := wf.Submit(ctx, submission.SubmitRequest{
		CourseID:     courseID,
		AssignmentID: assignmentID,
		FileName:     name,
		Path:         path,
	})
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), res)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Assignment %s submitted successfully.\n", res.AssignmentID)

	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}

	logger, closeLog, err := buildLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	lg, err := openLedger(cmd.Context(), resolvedCfg, logger)
	if err != nil {
		return err
	}

	if lg == nil {
		return errLedgerDisabled
	}
	defer lg.Close()

	entries, err := lg.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}

	return printHistory(cmd.OutOrStdout(), entries, flagJSON)
}

func printHistory(w io.Writer, entries []ledger.Entry, asJSON bool) error {
	if asJSON {
		return printJSON(w, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No submissions recorded.")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			formatTime(e.CreatedAt),
			e.CourseID,
			e.AssignmentID,
			e.FileName,
			e.Outcome,
			e.Error,
		})
	}

	printTable(w, []string{"ID", "TIME", "COURSE", "ASSIGNMENT", "FILE", "OUTCOME", "ERROR"}, rows)

	return nil
}
