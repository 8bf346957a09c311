package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/Aarzish/study-planner/internal/app"
	"github.com/Aarzish/study-planner/internal/model"
	"github.com/Aarzish/study-planner/internal/plan"
	"github.com/Aarzish/study-planner/internal/reminder"
	internalhttp "github.com/Aarzish/study-planner/internal/server/http"
	"github.com/Aarzish/study-planner/internal/store"
)

const permissionWait = 5 * time.Second

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	app       *app.App
	dashboard internalhttp.Config
	out       io.Writer
}

func newCommandLine(a *app.App, config Config) *commandLine {
	return &commandLine{app: a, dashboard: config.Dashboard, out: os.Stdout}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage: planner [-config FILE] COMMAND [FLAGS]")
	fmt.Fprintln(cli.out, "  login -username NAME                 log in; the password is prompted")
	fmt.Fprintln(cli.out, "  register -username NAME              create an account; the password is prompted")
	fmt.Fprintln(cli.out, "  logout                               forget the session")
	fmt.Fprintln(cli.out, "  whoami                               show the session")
	fmt.Fprintln(cli.out, "  courses                              list courses")
	fmt.Fprintln(cli.out, "  course-add -name NAME [-description TEXT]")
	fmt.Fprintln(cli.out, "  course-rm -id ID")
	fmt.Fprintln(cli.out, "  events [-date YYYY-MM-DD]            list events on a date (today by default)")
	fmt.Fprintln(cli.out, "  events-all                           list every event")
	fmt.Fprintln(cli.out, "  upcoming                             list events from today on")
	fmt.Fprintln(cli.out, "  event-add -title TITLE [-date YYYY-MM-DD] [-remind none|day|N] [-wait]")
	fmt.Fprintln(cli.out, "  event-rm -id ID")
	fmt.Fprintln(cli.out, "  clear-past                           delete events before today")
	fmt.Fprintln(cli.out, "  export [-out FILE]                   write all events as iCalendar")
	fmt.Fprintln(cli.out, "  topic-add -course ID -name NAME -difficulty 1..10 -days N")
	fmt.Fprintln(cli.out, "  topic-rm -id ID")
	fmt.Fprintln(cli.out, "  session-log -topic ID -minutes N [-completed] [-confidence 0..10]")
	fmt.Fprintln(cli.out, "  plan -hours H -topic NAME:DIFFICULTY:DAYS ...   split study hours among topics")
	fmt.Fprintln(cli.out, "  serve                                run the local dashboard")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		cli.printUsage()
		return errHelp
	}
	// each command loads only what it prints
	cli.app.StartReminders(ctx)

	cmd, args := args[0], args[1:]
	switch cmd {
	case "login", "register":
		return cli.credentials(ctx, cmd, args)
	case "logout":
		return cli.app.Logout(ctx)
	case "whoami":
		return cli.whoami()
	case "courses":
		return cli.courses(ctx)
	case "course-add":
		return cli.addCourse(ctx, args)
	case "course-rm":
		return cli.removeCourse(ctx, args)
	case "events":
		return cli.events(ctx, args)
	case "events-all":
		return cli.allEvents(ctx)
	case "upcoming":
		return cli.upcoming(ctx)
	case "event-add":
		return cli.addEvent(ctx, args)
	case "event-rm":
		return cli.removeEvent(ctx, args)
	case "clear-past":
		return cli.clearPast(ctx)
	case "export":
		return cli.export(ctx, args)
	case "topic-add":
		return cli.addTopic(ctx, args)
	case "topic-rm":
		return cli.removeTopic(ctx, args)
	case "session-log":
		return cli.logSession(ctx, args)
	case "plan":
		return cli.plan(args)
	case "serve":
		return cli.serve(ctx)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) requireSession() error {
	if !cli.app.Session.Authenticated() {
		return fmt.Errorf("%w: run 'planner login' first", app.ErrNotAuthenticated)
	}
	return nil
}

func (cli *commandLine) credentials(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	username := fs.String("username", "", "The username. The password will be prompted next.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*username) == "" {
		fs.Usage()
		return errHelp
	}

	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cli.out)
	if err != nil {
		return err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return errHelp
	}

	if cmd == "register" {
		if err := cli.app.Register(ctx, *username, string(pwd)); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "registered %s\n", strings.TrimSpace(*username))
		return nil
	}
	if err := cli.app.Login(ctx, *username, string(pwd)); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "logged in as %s\n", strings.TrimSpace(*username))
	return nil
}

func (cli *commandLine) whoami() error {
	st := cli.app.State()
	if !st.Authenticated {
		fmt.Fprintln(cli.out, "anonymous")
		return nil
	}
	if st.ExpiresAt != nil {
		fmt.Fprintf(cli.out, "user %s, session expires %s\n", st.User, st.ExpiresAt.Format(time.RFC1123))
		return nil
	}
	fmt.Fprintf(cli.out, "user %s\n", st.User)
	return nil
}

func (cli *commandLine) courses(ctx context.Context) error {
	if err := cli.requireSession(); err != nil {
		return err
	}
	courses := cli.app.Courses.Load(ctx)
	if len(courses) == 0 {
		fmt.Fprintln(cli.out, "no courses")
		return nil
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
	for _, c := range courses {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, c.Description)
	}
	return w.Flush()
}

// addCourse silently ignores a blank name.
func (cli *commandLine) addCourse(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("course-add", flag.ContinueOnError)
	fs.SetOutput(cli.out)
	name := fs.String("name", "", "Course name")
	description := fs.String("description", "", "Course description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cli.requireSession(); err != nil {
		return err
	}

	course, err := cli.app.AddCourse(ctx, *name, *description)
	if errors.Is(err, store.ErrBlank) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "added course %s (%s)\n", course.Name, course.ID)
	return nil
}

func (cli *commandLine) removeCourse(ctx context.Context, args []string) error {
	id, err := parseID("course-rm", args, cli.out)
	if err != nil {
		return err
	}
	if err := cli.requireSession(); err != nil {
		return err
	}
	if err := cli.app.RemoveCourse(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "removed course %s\n", id)
	return nil
}

func (cli *commandLine) events(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	fs.SetOutput(cli.out)
	dateFlag := fs.String("date", "", "Date as YYYY-MM-DD; today when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	date, err := cli.parseDate(*dateFlag)
	if err != nil {
		return err
	}
	if err := cli.requireSession(); err != nil {
		return err
	}
	return cli.printEvents(cli.app.SelectDate(ctx, date))
}

func (cli *commandLine) allEvents(ctx context.Context) error {
	if err := cli.requireSession(); err != nil {
		return err
	}
	return cli.printEvents(cli.app.Events.LoadAll(ctx))
}

func (cli *commandLine) upcoming(ctx context.Context) error {
	if err := cli.requireSession(); err != nil {
		return err
	}
	cli.app.Events.LoadAll(ctx)
	return cli.printEvents(cli.app.State().Upcoming)
}

// addEvent silently ignores a blank title. With -wait it blocks until the
// reminder has fired or the process is interrupted.
func (cli *commandLine) addEvent(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("event-add", flag.ContinueOnError)
	fs.SetOutput(cli.out)
	title := fs.String("title", "", "Event title")
	dateFlag := fs.String("date", "", "Date as YYYY-MM-DD; today when empty")
	remind := fs.String("remind", "none", `Reminder: "none", "day" or a number of days before`)
	wait := fs.Bool("wait", false, "Wait for the reminder to fire")
	if err := fs.Parse(args); err != nil {
		return err
	}
	date, err := cli.parseDate(*dateFlag)
	if err != nil {
		return err
	}
	offset, err := reminder.ParseOffset(*remind)
	if err != nil {
		return err
	}
	if err := cli.requireSession(); err != nil {
		return err
	}

	if offset != reminder.None {
		cli.awaitPermission(ctx)
	}
	cli.app.SelectDate(ctx, date)
	added, err := cli.app.AddEvent(ctx, *title, offset)
	if errors.Is(err, store.ErrBlank) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "added event %s on %s (%s)\n", added.Event.Title, added.Event.Date, added.Event.ID)
	if added.RemindAt == nil {
		return nil
	}
	fmt.Fprintf(cli.out, "reminder at %s\n", added.RemindAt.Format(time.RFC1123))
	if *wait {
		cli.awaitReminder(ctx, added.Event.ID)
	}
	return nil
}

func (cli *commandLine) awaitPermission(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, permissionWait)
	defer cancel()
	select {
	case <-cli.app.Reminders.Answered():
	case <-ctx.Done():
	}
}

func (cli *commandLine) awaitReminder(ctx context.Context, id model.ID) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		pending := false
		for _, r := range cli.app.Reminders.Pending() {
			if r.EventID == id {
				pending = true
				break
			}
		}
		if !pending {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (cli *commandLine) removeEvent(ctx context.Context, args []string) error {
	id, err := parseID("event-rm", args, cli.out)
	if err != nil {
		return err
	}
	if err := cli.requireSession(); err != nil {
		return err
	}
	if err := cli.app.RemoveEvent(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "removed event %s\n", id)
	return nil
}

func (cli *commandLine) clearPast(ctx context.Context) error {
	if err := cli.requireSession(); err != nil {
		return err
	}
	if err := cli.app.ClearPast(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "past events cleared")
	return nil
}

func (cli *commandLine) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(cli.out)
	out := fs.String("out", "-", `Output file, "-" for stdout`)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cli.requireSession(); err != nil {
		return err
	}
	cli.app.Events.LoadAll(ctx)

	if *out == "-" {
		return cli.app.ExportCalendar(cli.out)
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", *out, err)
	}
	if err := cli.app.ExportCalendar(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// addTopic silently ignores a blank name.
func (cli *commandLine) addTopic(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("topic-add", flag.ContinueOnError)
	fs.SetOutput(cli.out)
	course := fs.String("course", "", "Course id")
	name := fs.String("name", "", "Topic name")
	difficulty := fs.Float64("difficulty", 5, "Estimated difficulty from 1 to 10")
	days := fs.Int("days", 7, "Days until the deadline")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cli.requireSession(); err != nil {
		return err
	}

	topic, err := cli.app.AddTopic(ctx, model.Topic{
		CourseID:          model.ID(*course),
		Name:              *name,
		Difficulty:        *difficulty,
		DaysUntilDeadline: *days,
	})
	if errors.Is(err, store.ErrBlank) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "added topic %s (%s)\n", topic.Name, topic.ID)
	return nil
}

func (cli *commandLine) removeTopic(ctx context.Context, args []string) error {
	id, err := parseID("topic-rm", args, cli.out)
	if err != nil {
		return err
	}
	if err := cli.requireSession(); err != nil {
		return err
	}
	if err := cli.app.RemoveTopic(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "removed topic %s\n", id)
	return nil
}

func (cli *commandLine) logSession(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("session-log", flag.ContinueOnError)
	fs.SetOutput(cli.out)
	topic := fs.String("topic", "", "Topic id")
	minutes := fs.Int("minutes", 0, "Minutes studied")
	completed := fs.Bool("completed", false, "The session was completed")
	confidence := fs.Float64("confidence", 0, "Confidence from 0 to 10")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cli.requireSession(); err != nil {
		return err
	}

	logged, err := cli.app.LogStudySession(ctx, model.NewStudySession{
		TopicID:         model.ID(*topic),
		DurationMinutes: *minutes,
		Completed:       *completed,
		ConfidenceLevel: *confidence,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "logged %d minutes on topic %s (%s)\n", logged.DurationMinutes, logged.TopicID, logged.ID)
	return nil
}

// plan splits hours among the topics given with -topic, or among the topics
// added in this run when there are none.
func (cli *commandLine) plan(args []string) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(cli.out)
	hours := fs.Float64("hours", 0, "Study hours available")
	var topics []model.Topic
	fs.Func("topic", "Topic as NAME:DIFFICULTY:DAYS; may be repeated", func(s string) error {
		t, err := parseTopic(s)
		if err != nil {
			return err
		}
		topics = append(topics, t)
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *hours <= 0 {
		fs.Usage()
		return errHelp
	}

	var allocations []plan.Allocation
	var err error
	if len(topics) > 0 {
		allocations, err = plan.Allocate(topics, *hours)
	} else {
		allocations, err = cli.app.PlanStudy(*hours)
	}
	if err != nil {
		return err
	}
	if len(allocations) == 0 {
		fmt.Fprintln(cli.out, "no topics")
		return nil
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOPIC\tDIFFICULTY\tDAYS\tHOURS")
	for _, a := range allocations {
		fmt.Fprintf(w, "%s\t%g\t%d\t%.2f\n", a.Topic.Name, a.Topic.Difficulty, a.Topic.DaysUntilDeadline, a.Hours)
	}
	return w.Flush()
}

func parseTopic(s string) (model.Topic, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return model.Topic{}, fmt.Errorf("topic %q must be NAME:DIFFICULTY:DAYS", s)
	}
	n := len(parts)
	difficulty, err := strconv.ParseFloat(parts[n-2], 64)
	if err != nil {
		return model.Topic{}, fmt.Errorf("topic %q: bad difficulty: %w", s, err)
	}
	days, err := strconv.Atoi(parts[n-1])
	if err != nil {
		return model.Topic{}, fmt.Errorf("topic %q: bad days: %w", s, err)
	}
	name := strings.TrimSpace(strings.Join(parts[:n-2], ":"))
	if name == "" {
		return model.Topic{}, fmt.Errorf("topic %q has no name", s)
	}
	return model.Topic{Name: name, Difficulty: difficulty, DaysUntilDeadline: days}, nil
}

func (cli *commandLine) serve(ctx context.Context) error {
	if cli.app.Session.Authenticated() {
		if err := cli.app.Refresh(ctx); err != nil {
			return err
		}
	}
	server := internalhttp.NewServer(cli.dashboard, cli.app)

	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			fmt.Fprintf(cli.out, "failed to stop dashboard: %v\n", err)
		}
	}()

	return server.Start(ctx)
}

func (cli *commandLine) parseDate(s string) (model.Date, error) {
	if s == "" {
		return cli.app.Today(), nil
	}
	return model.ParseDate(s)
}

func (cli *commandLine) printEvents(events []model.Event) error {
	if len(events) == 0 {
		fmt.Fprintln(cli.out, "no events")
		return nil
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTITLE")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.Date, e.Title)
	}
	return w.Flush()
}

func parseID(cmd string, args []string, out io.Writer) (model.ID, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	id := fs.String("id", "", "Identifier")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *id == "" {
		fs.Usage()
		return "", errHelp
	}
	return model.ID(*id), nil
}
