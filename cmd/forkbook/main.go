// Forkbook is a personal recipe manager with versioned recipes and
// per-step cooking timers.
//
// Usage:
//
//	forkbook [flags] <command> [args]
//
// Commands:
//
//	list                          list all recipes
//	search <query>                search recipes by title
//	show <header-id> [version-id] show one recipe in full
//	versions <header-id>          list a recipe's versions
//	favorites                     list favorite recipes
//	favorite <header-id>          mark a recipe favorite
//	unfavorite <header-id>        unmark a recipe favorite
//	delete <header-id>            delete a recipe and all its versions
//	delete-version <version-id>   delete one version
//	units                         list measure units
//	import <url>                  import a recipe from a URL
//	cook <header-id> [version-id] run the version's step timers
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/kbenzarti/forkbook/internal/catalog"
	"github.com/kbenzarti/forkbook/internal/domain"
	"github.com/kbenzarti/forkbook/internal/logger"
	"github.com/kbenzarti/forkbook/internal/remote"
	"github.com/kbenzarti/forkbook/internal/repository"
	"github.com/kbenzarti/forkbook/internal/sound"
	"github.com/kbenzarti/forkbook/internal/store"
	"github.com/kbenzarti/forkbook/internal/timer"
)

// EnvParserURL points at the recipe parsing service used by `import`.
const EnvParserURL = "FORKBOOK_PARSER_URL"

func main() {
	_ = godotenv.Load()

	dbPath := flag.String("db", "forkbook.db", "path to the recipe database")
	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", "", "file to write logs to (default: stderr)")
	noSound := flag.Bool("no-sound", false, "disable the timer alert sound")
	flag.Parse()

	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	var logOut io.Writer = os.Stderr
	if *logFile != "" {
		dir := filepath.Dir(*logFile)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}
	log := logger.New(logLevel, logOut)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	st, err := store.Open(*dbPath, log.Named("store"), store.WithSampleRecipes())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: opening store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	cat := catalog.New(st, log.Named("catalog"))
	repo := repository.New(st, cat, log.Named("repo"))

	var alert domain.AlertPlayer = sound.NewNoOp(log)
	if !*noSound {
		beeper, err := sound.NewBeeper(log.Named("sound"))
		if err != nil {
			log.Warn("audio device unavailable, alerts disabled: %v", err)
		} else {
			alert = beeper
		}
	}

	if err := run(ctx, repo, alert, log, args); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			fmt.Fprintln(os.Stderr, "not found")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, repo domain.Repository, alert domain.AlertPlayer, log *logger.Logger, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		headers, err := repo.GetHeaders(ctx)
		if err != nil {
			return err
		}
		printHeaders(headers)
		return nil

	case "search":
		if len(rest) < 1 {
			return errors.New("usage: search <query>")
		}
		headers, err := repo.SearchRecipes(ctx, strings.Join(rest, " "))
		if err != nil {
			return err
		}
		printHeaders(headers)
		return nil

	case "favorites":
		headers := <-repo.WatchFavorites(ctx)
		printHeaders(headers)
		return nil

	case "show":
		if len(rest) < 1 {
			return errors.New("usage: show <header-id> [version-id]")
		}
		versionID := ""
		if len(rest) > 1 {
			versionID = rest[1]
		}
		details, err := repo.GetRecipeDetails(ctx, rest[0], versionID)
		if err != nil {
			return err
		}
		printDetails(details)
		return nil

	case "versions":
		if len(rest) < 1 {
			return errors.New("usage: versions <header-id>")
		}
		versions, err := repo.GetVersionsForRecipe(ctx, rest[0])
		if err != nil {
			return err
		}
		for _, v := range versions {
			fmt.Printf("%-38s %-16s %s\n", v.ID, v.Name,
				time.UnixMilli(v.CreatedAt).Format("2006-01-02 15:04"))
		}
		return nil

	case "favorite":
		if len(rest) < 1 {
			return errors.New("usage: favorite <header-id>")
		}
		return repo.MarkFavorite(ctx, rest[0])

	case "unfavorite":
		if len(rest) < 1 {
			return errors.New("usage: unfavorite <header-id>")
		}
		return repo.RemoveFavorite(ctx, rest[0])

	case "delete":
		if len(rest) < 1 {
			return errors.New("usage: delete <header-id>")
		}
		return repo.DeleteHeader(ctx, rest[0])

	case "delete-version":
		if len(rest) < 1 {
			return errors.New("usage: delete-version <version-id>")
		}
		return repo.DeleteVersion(ctx, rest[0])

	case "units":
		units, err := repo.AllMeasureUnits(ctx)
		if err != nil {
			return err
		}
		for _, u := range units {
			fmt.Printf("%-10s %-12s %s\n", u.ID, u.Name, u.Abbreviation)
		}
		return nil

	case "import":
		if len(rest) < 1 {
			return errors.New("usage: import <url>")
		}
		endpoint := os.Getenv(EnvParserURL)
		if endpoint == "" {
			return fmt.Errorf("%s not set", EnvParserURL)
		}
		units, err := repo.AllMeasureUnits(ctx)
		if err != nil {
			return err
		}
		parser := remote.NewClient(endpoint, os.Getenv("FORKBOOK_PARSER_KEY"),
			log.Named("parser"), remote.WithUnits(units))
		id, err := repo.ImportParsed(ctx, parser, rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("imported recipe %s\n", id)
		return nil

	case "cook":
		if len(rest) < 1 {
			return errors.New("usage: cook <header-id> [version-id]")
		}
		versionID := ""
		if len(rest) > 1 {
			versionID = rest[1]
		}
		return cook(ctx, repo, alert, log, rest[0], versionID)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printHeaders(headers []domain.RecipeHeader) {
	for _, h := range headers {
		star := " "
		if h.IsFavorite {
			star = "*"
		}
		fmt.Printf("%s %-38s %-14s %s\n", star, h.ID, h.Category.Name, h.Title)
	}
}

func printDetails(d *domain.RecipeDetails) {
	fmt.Printf("%s (%s)\n", d.Header.Title, d.Header.Category.Name)
	fmt.Printf("versions: %d\n", len(d.AllVersions))
	v := d.SelectedVersion
	if v == nil {
		return
	}
	fmt.Printf("\n-- %s", v.Name)
	if v.Commentary != "" {
		fmt.Printf(" (%s)", v.Commentary)
	}
	fmt.Printf(", prep %d min\n", v.PrepTimeMins(&d.Header))
	for _, ing := range v.Ingredients {
		fmt.Printf("  %g %s %s\n", ing.Quantity, ing.Unit.Abbreviation, ing.DisplayName)
	}
	for i, step := range v.Directions {
		fmt.Printf("  %d. %s", i+1, step.Description)
		if step.Timer != nil {
			fmt.Printf(" [%s]", time.Duration(step.Timer.DurationSeconds)*time.Second)
		}
		fmt.Println()
	}
}

// cookListener drives the cook command: prints ticks, auto-checks finished
// steps, and plays the alert exactly once per finished timer.
type cookListener struct {
	alert domain.AlertPlayer
	log   *logger.Logger

	mu      sync.Mutex
	pending int
	done    chan struct{}
}

func (l *cookListener) OnTick(stepID string, remaining int64) {
	fmt.Printf("  [%s] %ds remaining\n", stepID, remaining)
}

func (l *cookListener) OnFinish(stepID string) {
	fmt.Printf("  [%s] done ✓\n", stepID)
	if err := l.alert.PlayAlert(); err != nil {
		l.log.Warn("alert playback: %v", err)
	}

	l.mu.Lock()
	l.pending--
	finished := l.pending == 0
	l.mu.Unlock()
	if finished {
		close(l.done)
	}
}

func cook(ctx context.Context, repo domain.Repository, alert domain.AlertPlayer, log *logger.Logger, headerID, versionID string) error {
	details, err := repo.GetRecipeDetails(ctx, headerID, versionID)
	if err != nil {
		return err
	}
	v := details.SelectedVersion
	if v == nil {
		return fmt.Errorf("recipe has no versions: %w", domain.ErrNotFound)
	}

	engine := timer.New(log.Named("timer"))
	defer engine.CancelAll()

	listener := &cookListener{alert: alert, log: log, done: make(chan struct{})}

	type timed struct {
		id   string
		info domain.TimerInfo
	}
	var timers []timed
	for _, step := range v.Directions {
		if step.Timer != nil {
			timers = append(timers, timed{step.ID, *step.Timer})
		}
	}
	if prep := v.PrepTimeMins(&details.Header); prep > 0 {
		timers = append(timers, timed{timer.PrepTimerStepID, domain.TimerInfo{DurationSeconds: int64(prep) * 60}})
	}
	if len(timers) == 0 {
		fmt.Println("nothing to time in this version")
		return nil
	}

	listener.pending = len(timers)
	fmt.Printf("cooking %q (%s), %d timers\n", details.Header.Title, v.Name, len(timers))
	fmt.Println("keys: p <step-id> pause, r <step-id> resume, q quit")
	for _, t := range timers {
		if err := engine.Start(ctx, t.id, t.info, listener); err != nil {
			return err
		}
	}

	input := readLines(ctx, os.Stdin)
	for {
		select {
		case <-listener.done:
			fmt.Println("all timers finished")
			return nil
		case <-ctx.Done():
			engine.CancelAll()
			fmt.Println("\ncancelled")
			return nil
		case line, ok := <-input:
			if !ok {
				input = nil // stdin closed; keep the timers running
				continue
			}
			if !cookCommand(engine, line) {
				engine.CancelAll()
				fmt.Println("stopped")
				return nil
			}
		}
	}
}

// readLines streams stdin lines until EOF or ctx cancellation.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// cookCommand applies one interactive cook-mode command. Returns false when
// the session should end.
func cookCommand(engine *timer.Engine, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	switch fields[0] {
	case "q", "quit":
		return false
	case "p", "pause":
		if len(fields) < 2 {
			fmt.Println("usage: p <step-id>")
			return true
		}
		engine.Pause(fields[1])
		fmt.Printf("  [%s] paused\n", fields[1])
	case "r", "resume":
		if len(fields) < 2 {
			fmt.Println("usage: r <step-id>")
			return true
		}
		engine.Resume(fields[1])
		fmt.Printf("  [%s] resumed\n", fields[1])
	default:
		fmt.Println("keys: p <step-id> pause, r <step-id> resume, q quit")
	}
	return true
}
